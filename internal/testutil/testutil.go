// Package testutil provides HTTP and fixture helpers for healthdash tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

// FixtureFile is the CSV under testdata used by handler and service tests
const FixtureFile = "healthcare_dataset.csv"

var (
	rootOnce sync.Once
	root     string
)

// ProjectRoot is the directory holding go.mod, found by walking up from
// this source file
func ProjectRoot() string {
	rootOnce.Do(func() {
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			panic("testutil: no caller info")
		}
		for dir := filepath.Dir(filename); ; dir = filepath.Dir(dir) {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				root = dir
				return
			}
			if filepath.Dir(dir) == dir {
				panic("testutil: go.mod not found above " + filename)
			}
		}
	})
	return root
}

// TestDataDir is <root>/testdata
func TestDataDir() string {
	return filepath.Join(ProjectRoot(), "testdata")
}

// FixturePath is the absolute path of FixtureFile
func FixturePath() string {
	return filepath.Join(TestDataDir(), FixtureFile)
}

// TestConfig returns the environment that points config.Load at the
// fixture data and the real templates. Exports go to a per-test temp dir.
func TestConfig(t *testing.T) map[string]string {
	t.Helper()
	web := filepath.Join(ProjectRoot(), "web")
	return map[string]string{
		"HEALTHDASH_DATA_DIR":      TestDataDir(),
		"HEALTHDASH_DATA_FILE":     FixtureFile,
		"HEALTHDASH_TEMPLATES_DIR": filepath.Join(web, "templates"),
		"HEALTHDASH_STATIC_DIR":    filepath.Join(web, "static"),
		"HEALTHDASH_EXPORT_DIR":    t.TempDir(),
		"HEALTHDASH_LOG_LEVEL":     "error",
		"HEALTHDASH_LISTEN_ADDR":   ":0",
	}
}

// SetTestEnv applies TestConfig for the duration of the test
func SetTestEnv(t *testing.T) {
	t.Helper()
	for k, v := range TestConfig(t) {
		t.Setenv(k, v)
	}
}

// TestServer is an httptest server around the application router
type TestServer struct {
	Server  *httptest.Server
	BaseURL string
	t       *testing.T
}

// NewTestServer starts router on a loopback port and closes it when the
// test ends
func NewTestServer(t *testing.T, router http.Handler) *TestServer {
	t.Helper()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &TestServer{Server: server, BaseURL: server.URL, t: t}
}

func (ts *TestServer) do(method, path string, query url.Values, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()

	target := ts.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	return ts.do(http.MethodGet, path, nil, "", nil)
}

// GETWithQuery encodes query onto path, so values such as "All Years" need
// no escaping by the caller
func (ts *TestServer) GETWithQuery(path string, query map[string]string) *http.Response {
	ts.t.Helper()
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	return ts.do(http.MethodGet, path, values, "", nil)
}

func (ts *TestServer) POST(path string, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()
	return ts.do(http.MethodPost, path, nil, contentType, body)
}

// Close shuts the server down early; NewTestServer already registers it
// for cleanup
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// ReadBody reads and closes the response body
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(b)
}

// DecodeJSON reads the response body into v and closes it
func DecodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding JSON response: %v", err)
	}
}
