// Package httpx holds the helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"healthdash/internal/models"
	"healthdash/internal/services/charts"
	"healthdash/internal/templates"
)

var (
	// ErrUnknownYear is returned when the requested year is not in the data
	ErrUnknownYear = errors.New("unknown year")
	// ErrBadRequest marks a malformed query or path parameter
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound marks a missing record
	ErrNotFound = errors.New("not found")
)

// RenderTemplate renders a full page template with data
func RenderTemplate(w http.ResponseWriter, renderer *templates.Renderer, templateName string, data map[string]interface{}) {
	if renderer != nil {
		renderer.Render(w, templateName, data)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><h1>" + templateName + "</h1><p>Templates not loaded. Check configuration.</p></body></html>"))
}

// RenderPartial renders a partial template with data
func RenderPartial(w http.ResponseWriter, renderer *templates.Renderer, partialName string, data map[string]interface{}) {
	if renderer != nil {
		renderer.RenderPartial(w, partialName, data)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<div><!-- Partial " + partialName + " not loaded --></div>"))
}

// JSON writes v as a JSON response
func JSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	JSONStatus(w, r, http.StatusOK, v)
}

// JSONStatus writes v as JSON with the given status code
func JSONStatus(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("encoding json response")
	}
}

// ErrorResponse logs err on the request logger and sends it with status
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error, status int) {
	evt := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		evt = zerolog.Ctx(r.Context()).Error()
	}
	evt.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, err.Error(), status)
}

// StatusFor maps a handler error onto an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownYear), errors.Is(err, ErrBadRequest), errors.Is(err, charts.ErrUnknownChart):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Fail is ErrorResponse with the status picked by StatusFor
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, err, StatusFor(err))
}

// YearSelection is the parsed year filter of a request
type YearSelection struct {
	Year int // 0 means all years
}

// All reports whether every year is selected
func (s YearSelection) All() bool {
	return s.Year == 0
}

// Label is the dropdown value of the selection
func (s YearSelection) Label() string {
	if s.All() {
		return models.AllYears
	}
	return strconv.Itoa(s.Year)
}

// Apply narrows ps to the selection
func (s YearSelection) Apply(ps *models.PatientSet) *models.PatientSet {
	if s.All() {
		return ps.Copy()
	}
	return ps.FilterByYear(s.Year)
}

// ParseYear reads a year filter value. Empty and "All Years" select every
// year; anything else must be a year present in ps.
func ParseYear(raw string, ps *models.PatientSet) (YearSelection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, models.AllYears) {
		return YearSelection{}, nil
	}

	year, err := strconv.Atoi(raw)
	if err != nil || !ps.HasYear(year) {
		return YearSelection{}, fmt.Errorf("%w: %q", ErrUnknownYear, raw)
	}
	return YearSelection{Year: year}, nil
}

// YearOptions returns the dropdown values: "All Years" then each year
func YearOptions(ps *models.PatientSet) []string {
	years := ps.Years()
	options := make([]string, 0, len(years)+1)
	options = append(options, models.AllYears)
	for _, y := range years {
		options = append(options, strconv.Itoa(y))
	}
	return options
}
