package insights

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"healthdash/internal/httpx"
	"healthdash/internal/models"
	"healthdash/internal/services/analysis"
	"healthdash/internal/services/charts"
	"healthdash/internal/services/dataloader"
	"healthdash/internal/templates"
)

var (
	loader          *dataloader.DataLoader
	renderer        *templates.Renderer
	analysisService *analysis.Service
)

// Initialize sets up the insights package with required dependencies
func Initialize(l *dataloader.DataLoader, r *templates.Renderer, a *analysis.Service) {
	loader = l
	renderer = r
	analysisService = a
}

// RegisterRoutes registers the statistical analysis routes
func RegisterRoutes(r chi.Router) {
	r.Get("/analysis", handleAnalysis)
	r.Get("/analysis/charts/{group}", handleGroupChart)
	r.Get("/api/analysis", handleAnalysisAPI)
}

// report returns the statistical block for the whole cleaned table. The
// year filter never applies here.
func report() (*models.AnalysisReport, error) {
	result, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return analysisService.Report(result.Patients), nil
}

func handleAnalysis(w http.ResponseWriter, r *http.Request) {
	rep, err := report()
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	pageData := map[string]interface{}{
		"Title":     "Statistical Analysis",
		"ActiveTab": "analysis",
		"Report":    rep,
	}

	httpx.RenderTemplate(w, renderer, "base", pageData)
}

func handleGroupChart(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	rep, err := report()
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	var fig *models.ChartResponse
	switch group {
	case "hospital-billing":
		fig = charts.GroupBox(rep.HospitalBilling.Qualifying, "Billing Amount by Hospital", "Billing Amount")
	case "condition-age":
		fig = charts.GroupBox(rep.ConditionAge.Qualifying, "Age by Medical Condition", "Age")
	default:
		httpx.Fail(w, r, fmt.Errorf("%w: %q", charts.ErrUnknownChart, group))
		return
	}

	httpx.JSON(w, r, fig)
}

func handleAnalysisAPI(w http.ResponseWriter, r *http.Request) {
	rep, err := report()
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	if r.URL.Query().Get("format") != "yaml" {
		httpx.JSON(w, r, rep)
		return
	}

	out, err := yaml.Marshal(rep)
	if err != nil {
		httpx.Fail(w, r, fmt.Errorf("encode report: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(out)
}
