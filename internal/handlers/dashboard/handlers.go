package dashboard

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"healthdash/internal/httpx"
	"healthdash/internal/models"
	"healthdash/internal/services/charts"
	"healthdash/internal/services/dataloader"
	"healthdash/internal/services/metrics"
	"healthdash/internal/templates"
)

var (
	loader         *dataloader.DataLoader
	renderer       *templates.Renderer
	metricsService = metrics.New()
)

// kpiTitles lists the KPI cards that support a per-year drilldown
var kpiTitles = map[string]string{
	"patients":  "Total Patients",
	"billing":   "Total Billing",
	"hospitals": "Total Hospitals",
	"doctors":   "Total Doctors",
	"insurers":  "Insurance Providers",
}

// drilldownFields maps URL path segments onto categorical fields
var drilldownFields = map[string]models.Field{
	"gender":         models.FieldGender,
	"age-group":      models.FieldAgeGroup,
	"condition":      models.FieldMedicalCondition,
	"admission-type": models.FieldAdmissionType,
	"insurer":        models.FieldInsuranceProvider,
	"hospital":       models.FieldHospital,
	"doctor":         models.FieldDoctor,
}

// Initialize sets up the dashboard package with required dependencies
func Initialize(l *dataloader.DataLoader, r *templates.Renderer) {
	loader = l
	renderer = r
}

// RegisterRoutes registers all dashboard routes
func RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", handleDashboard)
	r.Get("/dashboard/kpis", handleKPIsPartial)
	r.Get("/dashboard/charts/data/{chartType}", handleChartData)
	r.Get("/dashboard/category/{field}/{value}", handleCategoryDrilldown)
	r.Get("/dashboard/kpi/{kpiType}", handleKPIDetail)
	r.Get("/dashboard/kpi/{kpiType}/export", handleKPIExport)
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := httpx.LoadView(r, loader)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	pageData := map[string]interface{}{
		"Title":        "Healthcare Dashboard",
		"ActiveTab":    "dashboard",
		"Years":        httpx.YearOptions(view.Load.Patients),
		"SelectedYear": view.Year.Label(),
		"Metrics":      metricsService.CalculateMetrics(view.Patients),
		"InvalidDates": view.Load.InvalidDates,
		"MissingNames": view.Load.MissingNames,
		"ChartTypes":   charts.Types,
	}
	if !view.Year.All() {
		pageData["Comparison"] = metricsService.CalculateComparison(view.Load.Patients, view.Year.Year)
	}

	httpx.RenderTemplate(w, renderer, "base", pageData)
}

func handleKPIsPartial(w http.ResponseWriter, r *http.Request) {
	view, err := httpx.LoadView(r, loader)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	partialData := map[string]interface{}{
		"Metrics":      metricsService.CalculateMetrics(view.Patients),
		"SelectedYear": view.Year.Label(),
	}
	if !view.Year.All() {
		partialData["Comparison"] = metricsService.CalculateComparison(view.Load.Patients, view.Year.Year)
	}

	if renderer == nil {
		httpx.JSON(w, r, partialData)
		return
	}
	httpx.RenderPartial(w, renderer, "kpis", partialData)
}

func handleChartData(w http.ResponseWriter, r *http.Request) {
	chartType := chi.URLParam(r, "chartType")

	view, err := httpx.LoadView(r, loader)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	fig, err := charts.Build(chartType, view.Patients)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	httpx.JSON(w, r, fig)
}

func handleCategoryDrilldown(w http.ResponseWriter, r *http.Request) {
	fieldKey := chi.URLParam(r, "field")
	value := chi.URLParam(r, "value")

	field, ok := drilldownFields[fieldKey]
	if !ok {
		httpx.Fail(w, r, fmt.Errorf("%w: unknown field %q", httpx.ErrBadRequest, fieldKey))
		return
	}

	view, err := httpx.LoadView(r, loader)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	matched := view.Patients.FilterByValue(field, value)
	total := matched.SumBilling()

	var billed int
	for _, p := range matched.Patients {
		if p.BillingValid {
			billed++
		}
	}
	var avgBilling float64
	if billed > 0 {
		avgBilling = total / float64(billed)
	}

	partialData := map[string]interface{}{
		"Field":        string(field),
		"Value":        value,
		"SelectedYear": view.Year.Label(),
		"Patients":     matched.SortByDateDesc().Patients,
		"Count":        matched.Len(),
		"Total":        total,
		"AvgBilling":   avgBilling,
	}

	if renderer == nil {
		httpx.JSON(w, r, partialData)
		return
	}
	httpx.RenderPartial(w, renderer, "category-drilldown", partialData)
}

// YearStat is one row of a KPI drilldown
type YearStat struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

func handleKPIDetail(w http.ResponseWriter, r *http.Request) {
	kpiType := chi.URLParam(r, "kpiType")
	title, ok := kpiTitles[kpiType]
	if !ok {
		httpx.Fail(w, r, fmt.Errorf("%w: unknown kpi %q", httpx.ErrBadRequest, kpiType))
		return
	}

	result, err := loader.Load()
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	yearly := kpiByYear(result.Patients, kpiType)

	var sum, minV, maxV, avg float64
	var minYear, maxYear int
	for i, s := range yearly {
		sum += s.Value
		if i == 0 || s.Value < minV {
			minV, minYear = s.Value, s.Year
		}
		if i == 0 || s.Value > maxV {
			maxV, maxYear = s.Value, s.Year
		}
	}
	if len(yearly) > 0 {
		avg = sum / float64(len(yearly))
	}

	partialData := map[string]interface{}{
		"Type":      kpiType,
		"Title":     title,
		"Yearly":    yearly,
		"Average":   avg,
		"Min":       minV,
		"Max":       maxV,
		"MinYear":   minYear,
		"MaxYear":   maxYear,
		"IsBilling": kpiType == "billing",
	}

	if renderer == nil {
		httpx.JSON(w, r, partialData)
		return
	}
	httpx.RenderPartial(w, renderer, "kpi-detail", partialData)
}

func handleKPIExport(w http.ResponseWriter, r *http.Request) {
	kpiType := chi.URLParam(r, "kpiType")
	title, ok := kpiTitles[kpiType]
	if !ok {
		httpx.Fail(w, r, fmt.Errorf("%w: unknown kpi %q", httpx.ErrBadRequest, kpiType))
		return
	}

	result, err := loader.Load()
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Write([]string{"Year", title})
	for _, s := range kpiByYear(result.Patients, kpiType) {
		value := strconv.FormatFloat(s.Value, 'f', 0, 64)
		if kpiType == "billing" {
			value = strconv.FormatFloat(s.Value, 'f', 2, 64)
		}
		writer.Write([]string{strconv.Itoa(s.Year), value})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		httpx.Fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-by-year.csv", kpiType))
	w.Write(buf.Bytes())
}

// kpiByYear evaluates one KPI for every admission year
func kpiByYear(ps *models.PatientSet, kpiType string) []YearStat {
	years := ps.Years()
	stats := make([]YearStat, 0, len(years))
	for _, y := range years {
		m := metricsService.CalculateMetrics(ps.FilterByYear(y))
		var v float64
		switch kpiType {
		case "patients":
			v = float64(m.TotalPatients)
		case "billing":
			v = m.TotalBilling
		case "hospitals":
			v = float64(m.TotalHospitals)
		case "doctors":
			v = float64(m.TotalDoctors)
		case "insurers":
			v = float64(m.TotalInsurers)
		}
		stats = append(stats, YearStat{Year: y, Value: v})
	}
	return stats
}

