// Package api serves the dashboard data as JSON.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthdash/internal/httpx"
	"healthdash/internal/models"
	"healthdash/internal/services/dataloader"
	"healthdash/internal/services/metrics"
)

var (
	loader         *dataloader.DataLoader
	metricsService = metrics.New()
)

// Initialize sets up the api package with required dependencies
func Initialize(l *dataloader.DataLoader) {
	loader = l
}

// RegisterRoutes registers the JSON routes
func RegisterRoutes(r chi.Router) {
	r.Get("/api/years", handleYears)
	r.Get("/api/metrics", handleMetrics)
	r.Get("/api/dataset", handleDataset)
}

// handleYears lists "All Years" followed by each admission year
func handleYears(w http.ResponseWriter, r *http.Request) {
	result, err := loader.Load()
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	years := result.Patients.Years()
	options := make([]interface{}, 0, len(years)+1)
	options = append(options, models.AllYears)
	for _, y := range years {
		options = append(options, y)
	}
	httpx.JSON(w, r, options)
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	view, err := httpx.LoadView(r, loader)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"year":    view.Year.Label(),
		"metrics": metricsService.CalculateMetrics(view.Patients),
	}
	if !view.Year.All() {
		if cmp := metricsService.CalculateComparison(view.Load.Patients, view.Year.Year); cmp != nil {
			resp["comparison"] = cmp
		}
	}
	httpx.JSON(w, r, resp)
}

func handleDataset(w http.ResponseWriter, r *http.Request) {
	result, err := loader.Load()
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.JSON(w, r, result.Report())
}
