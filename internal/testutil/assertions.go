package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"testing"
)

// ResponseAssertion chains checks against one HTTP response. The body is
// read once, on the first check that needs it.
type ResponseAssertion struct {
	t    *testing.T
	resp *http.Response
	body *string
}

// AssertResponse starts an assertion chain for resp
func AssertResponse(t *testing.T, resp *http.Response) *ResponseAssertion {
	t.Helper()
	return &ResponseAssertion{t: t, resp: resp}
}

func (ra *ResponseAssertion) readBody() string {
	if ra.body == nil {
		defer ra.resp.Body.Close()
		b, err := io.ReadAll(ra.resp.Body)
		if err != nil {
			ra.t.Fatalf("reading response body: %v", err)
		}
		s := string(b)
		ra.body = &s
	}
	return *ra.body
}

func (ra *ResponseAssertion) Status(code int) *ResponseAssertion {
	ra.t.Helper()
	if ra.resp.StatusCode != code {
		ra.t.Errorf("status = %d, want %d\nbody: %s", ra.resp.StatusCode, code, truncate(ra.readBody(), 300))
	}
	return ra
}

func (ra *ResponseAssertion) StatusOK() *ResponseAssertion {
	ra.t.Helper()
	return ra.Status(http.StatusOK)
}

// StatusBadRequest is what handlers return for an unknown year, chart, KPI or field
func (ra *ResponseAssertion) StatusBadRequest() *ResponseAssertion {
	ra.t.Helper()
	return ra.Status(http.StatusBadRequest)
}

func (ra *ResponseAssertion) StatusNotFound() *ResponseAssertion {
	ra.t.Helper()
	return ra.Status(http.StatusNotFound)
}

// Header asserts that header name contains substr
func (ra *ResponseAssertion) Header(name, substr string) *ResponseAssertion {
	ra.t.Helper()
	if got := ra.resp.Header.Get(name); !strings.Contains(got, substr) {
		ra.t.Errorf("%s = %q, want it to contain %q", name, got, substr)
	}
	return ra
}

func (ra *ResponseAssertion) ContentType(expected string) *ResponseAssertion {
	ra.t.Helper()
	return ra.Header("Content-Type", expected)
}

func (ra *ResponseAssertion) ContentTypeHTML() *ResponseAssertion {
	ra.t.Helper()
	return ra.ContentType("text/html")
}

func (ra *ResponseAssertion) ContentTypeJSON() *ResponseAssertion {
	ra.t.Helper()
	return ra.ContentType("application/json")
}

func (ra *ResponseAssertion) ContentTypeCSV() *ResponseAssertion {
	ra.t.Helper()
	return ra.ContentType("text/csv")
}

// Attachment asserts a download whose file name contains name
func (ra *ResponseAssertion) Attachment(name string) *ResponseAssertion {
	ra.t.Helper()
	ra.Header("Content-Disposition", "attachment")
	return ra.Header("Content-Disposition", name)
}

func (ra *ResponseAssertion) Contains(substr string) *ResponseAssertion {
	ra.t.Helper()
	return ra.ContainsAll(substr)
}

func (ra *ResponseAssertion) ContainsAll(substrs ...string) *ResponseAssertion {
	ra.t.Helper()
	body := ra.readBody()
	for _, substr := range substrs {
		if !strings.Contains(body, substr) {
			ra.t.Errorf("body does not contain %q\nbody: %s", substr, truncate(body, 500))
		}
	}
	return ra
}

func (ra *ResponseAssertion) NotContains(substr string) *ResponseAssertion {
	ra.t.Helper()
	if strings.Contains(ra.readBody(), substr) {
		ra.t.Errorf("body contains %q", substr)
	}
	return ra
}

// HasElement asserts an element with the given id is present
func (ra *ResponseAssertion) HasElement(id string) *ResponseAssertion {
	ra.t.Helper()
	pattern := regexp.MustCompile(`id=["']` + regexp.QuoteMeta(id) + `["']`)
	if !pattern.MatchString(ra.readBody()) {
		ra.t.Errorf("no element with id=%q", id)
	}
	return ra
}

// HasChart asserts a chart container for chartType, as rendered by the
// dashboard and analysis pages
func (ra *ResponseAssertion) HasChart(chartType string) *ResponseAssertion {
	ra.t.Helper()
	pattern := regexp.MustCompile(`data-(chart|box)=["']` + regexp.QuoteMeta(chartType) + `["']`)
	if !pattern.MatchString(ra.readBody()) {
		ra.t.Errorf("no chart container for %q", chartType)
	}
	return ra
}

// JSON decodes the body into v
func (ra *ResponseAssertion) JSON(v interface{}) *ResponseAssertion {
	ra.t.Helper()
	if err := json.Unmarshal([]byte(ra.readBody()), v); err != nil {
		ra.t.Fatalf("decoding JSON body: %v\nbody: %s", err, truncate(ra.readBody(), 300))
	}
	return ra
}

func (ra *ResponseAssertion) Body() string {
	return ra.readBody()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
