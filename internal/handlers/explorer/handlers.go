package explorer

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"healthdash/internal/httpx"
	"healthdash/internal/models"
	"healthdash/internal/services/dataloader"
	"healthdash/internal/templates"
)

var (
	loader   *dataloader.DataLoader
	renderer *templates.Renderer
)

// Initialize sets up the explorer package with required dependencies
func Initialize(l *dataloader.DataLoader, r *templates.Renderer) {
	loader = l
	renderer = r
}

// RegisterRoutes registers all explorer routes
func RegisterRoutes(r chi.Router) {
	r.Get("/explorer", handleExplorer)
	r.Get("/explorer/records", handleRecordsPartial)
	r.Get("/explorer/record/{hash}", handleRecordDetail)
}

// tableQuery holds the parsed table parameters of a request
type tableQuery struct {
	Search    string
	Condition string
	Hospital  string
	Sort      string
	Order     string
	Page      int
	PerPage   int
}

func parseTableQuery(r *http.Request) tableQuery {
	q := r.URL.Query()
	tq := tableQuery{
		Search:    strings.TrimSpace(q.Get("search")),
		Condition: q.Get("condition"),
		Hospital:  q.Get("hospital"),
		Sort:      q.Get("sort"),
		Order:     q.Get("order"),
	}

	// Defaults
	if tq.Sort == "" {
		tq.Sort = "date"
	}
	if tq.Order != "asc" {
		tq.Order = "desc"
	}

	tq.Page, _ = strconv.Atoi(q.Get("page"))
	if tq.Page < 1 {
		tq.Page = 1
	}
	tq.PerPage, _ = strconv.Atoi(q.Get("perPage"))
	if tq.PerPage < 1 {
		tq.PerPage = 25
	}
	if tq.PerPage > 500 {
		tq.PerPage = 500
	}
	return tq
}

// buildTable filters, sorts and paginates the year view into template data
func buildTable(view *httpx.View, tq tableQuery) map[string]interface{} {
	filtered := view.Patients
	if tq.Condition != "" {
		filtered = filtered.FilterByValue(models.FieldMedicalCondition, tq.Condition)
	}
	if tq.Hospital != "" {
		filtered = filtered.FilterByValue(models.FieldHospital, tq.Hospital)
	}
	if tq.Search != "" {
		filtered = filtered.FilterBySearch(tq.Search)
	}

	// Totals before pagination
	totalCount := filtered.Len()
	totalBilling := filtered.SumBilling()

	filtered = sortPatients(filtered, tq.Sort, tq.Order)

	page := tq.Page
	totalPages := filtered.TotalPages(tq.PerPage)
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}
	paginated := filtered.Paginate(page, tq.PerPage)

	pageStart := (page-1)*tq.PerPage + 1
	pageEnd := pageStart + paginated.Len() - 1
	if totalCount == 0 {
		pageStart = 0
		pageEnd = 0
	}

	return map[string]interface{}{
		"Patients":     paginated.Patients,
		"SelectedYear": view.Year.Label(),
		"Search":       tq.Search,
		"Condition":    tq.Condition,
		"Hospital":     tq.Hospital,
		"Sort":         tq.Sort,
		"Order":        tq.Order,
		"Page":         page,
		"PerPage":      tq.PerPage,
		"TotalPages":   totalPages,
		"TotalCount":   totalCount,
		"TotalBilling": totalBilling,
		"PageRange":    calculatePageRange(page, totalPages),
		"PageStart":    pageStart,
		"PageEnd":      pageEnd,
	}
}

func handleExplorer(w http.ResponseWriter, r *http.Request) {
	view, err := httpx.LoadView(r, loader)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	pageData := buildTable(view, parseTableQuery(r))
	pageData["Title"] = "Filtered Data"
	pageData["ActiveTab"] = "explorer"
	pageData["Years"] = httpx.YearOptions(view.Load.Patients)
	pageData["Conditions"] = categories(view.Load.Patients, models.FieldMedicalCondition)
	pageData["Hospitals"] = categories(view.Load.Patients, models.FieldHospital)

	httpx.RenderTemplate(w, renderer, "base", pageData)
}

func handleRecordsPartial(w http.ResponseWriter, r *http.Request) {
	view, err := httpx.LoadView(r, loader)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	partialData := buildTable(view, parseTableQuery(r))

	if renderer == nil {
		httpx.JSON(w, r, partialData)
		return
	}
	httpx.RenderPartial(w, renderer, "records-table", partialData)
}

func handleRecordDetail(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	result, err := loader.Load()
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	p, ok := result.Patients.FindByHash(hash)
	if !ok {
		httpx.Fail(w, r, fmt.Errorf("record %s: %w", hash, httpx.ErrNotFound))
		return
	}

	partialData := map[string]interface{}{
		"Patient": p,
	}

	if renderer == nil {
		httpx.JSON(w, r, partialData)
		return
	}
	httpx.RenderPartial(w, renderer, "record-detail", partialData)
}

// categories returns the sorted distinct values of a field
func categories(ps *models.PatientSet, field models.Field) []string {
	counts := ps.ValueCounts(field)
	values := make([]string, len(counts))
	for i, c := range counts {
		values[i] = c.Value
	}
	sort.Strings(values)
	return values
}

func sortPatients(ps *models.PatientSet, field, order string) *models.PatientSet {
	sorted := ps.Copy()
	asc := order == "asc"

	byText := func(get func(p *models.PatientRecord) string) {
		sort.SliceStable(sorted.Patients, func(i, j int) bool {
			a := strings.ToLower(get(&sorted.Patients[i]))
			b := strings.ToLower(get(&sorted.Patients[j]))
			if asc {
				return a < b
			}
			return a > b
		})
	}

	// Missing numbers and dates sort last in either direction
	byNumber := func(get func(p *models.PatientRecord) (float64, bool)) {
		sort.SliceStable(sorted.Patients, func(i, j int) bool {
			a, okA := get(&sorted.Patients[i])
			b, okB := get(&sorted.Patients[j])
			if okA != okB {
				return okA
			}
			if asc {
				return a < b
			}
			return a > b
		})
	}

	switch field {
	case "name":
		byText(func(p *models.PatientRecord) string { return p.Name })
	case "gender":
		byText(func(p *models.PatientRecord) string { return p.Gender })
	case "condition":
		byText(func(p *models.PatientRecord) string { return p.MedicalCondition })
	case "doctor":
		byText(func(p *models.PatientRecord) string { return p.Doctor })
	case "hospital":
		byText(func(p *models.PatientRecord) string { return p.Hospital })
	case "insurer":
		byText(func(p *models.PatientRecord) string { return p.InsuranceProvider })
	case "type":
		byText(func(p *models.PatientRecord) string { return p.AdmissionType })
	case "age":
		byNumber(models.AgeValue)
	case "billing":
		byNumber(models.BillingValue)
	case "date":
		byNumber(func(p *models.PatientRecord) (float64, bool) {
			return float64(p.AdmissionDate.Unix()), p.DateValid
		})
	default:
		// Default to date descending
		return ps.SortByDateDesc()
	}

	return sorted
}

// calculatePageRange returns a slice of page numbers to display in pagination
func calculatePageRange(currentPage, totalPages int) []int {
	if totalPages <= 7 {
		result := make([]int, totalPages)
		for i := range result {
			result[i] = i + 1
		}
		return result
	}

	// Show pages around current page
	var pages []int
	start := currentPage - 2
	end := currentPage + 2

	if start < 1 {
		start = 1
		end = 5
	}
	if end > totalPages {
		end = totalPages
		start = totalPages - 4
		if start < 1 {
			start = 1
		}
	}

	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}

	return pages
}
