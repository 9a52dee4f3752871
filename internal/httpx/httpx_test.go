package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthdash/internal/models"
	"healthdash/internal/services/charts"
)

func patients() *models.PatientSet {
	var records []models.PatientRecord
	for i, year := range []int{2021, 2022, 2022} {
		p := models.PatientRecord{
			Name:          fmt.Sprintf("p%d", i),
			AdmissionDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
			DateValid:     true,
		}
		p.ComputeDerivedFields()
		records = append(records, p)
	}
	return models.NewPatientSet(records)
}

func TestParseYear(t *testing.T) {
	ps := patients()

	tests := []struct {
		raw     string
		year    int
		label   string
		wantErr bool
	}{
		{"", 0, models.AllYears, false},
		{"All Years", 0, models.AllYears, false},
		{"all years", 0, models.AllYears, false},
		{"2022", 2022, "2022", false},
		{" 2021 ", 2021, "2021", false},
		{"2019", 0, "", true},
		{"twenty", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			sel, err := ParseYear(tt.raw, ps)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownYear)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.year, sel.Year)
			assert.Equal(t, tt.label, sel.Label())
		})
	}
}

func TestYearSelectionApply(t *testing.T) {
	ps := patients()

	all := YearSelection{}.Apply(ps)
	assert.Equal(t, ps.Len(), all.Len())
	assert.NotSame(t, ps, all)

	assert.Equal(t, 2, YearSelection{Year: 2022}.Apply(ps).Len())
	assert.Equal(t, []string{"All Years", "2021", "2022"}, YearOptions(ps))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(fmt.Errorf("wrap: %w", ErrUnknownYear)))
	assert.Equal(t, http.StatusBadRequest, StatusFor(charts.ErrUnknownChart))
	assert.Equal(t, http.StatusBadRequest, StatusFor(fmt.Errorf("%w: perPage", ErrBadRequest)))
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("record abc: %w", ErrNotFound)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("disk on fire")))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, ErrUnknownYear, http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?year=1900", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"path":"/dashboard"`)
	assert.Contains(t, buf.String(), `"status":400`)
	assert.Contains(t, buf.String(), rec.Header().Get(RequestIDHeader))
}

func TestRecoverer(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
