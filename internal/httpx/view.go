package httpx

import (
	"net/http"

	"healthdash/internal/models"
	"healthdash/internal/services/dataloader"
)

// View is the cleaned table narrowed by the request's year filter
type View struct {
	Load     *dataloader.LoadResult
	Year     YearSelection
	Patients *models.PatientSet
}

// LoadView loads the table and applies the "year" query parameter.
// Errors map onto statuses through StatusFor.
func LoadView(r *http.Request, loader *dataloader.DataLoader) (*View, error) {
	result, err := loader.Load()
	if err != nil {
		return nil, err
	}

	sel, err := ParseYear(r.URL.Query().Get("year"), result.Patients)
	if err != nil {
		return nil, err
	}

	return &View{
		Load:     result,
		Year:     sel,
		Patients: sel.Apply(result.Patients),
	}, nil
}
