package main

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthdash/internal/config"
	"healthdash/internal/models"
	"healthdash/internal/services/analysis"
	"healthdash/internal/services/charts"
	"healthdash/internal/services/storage"
	"healthdash/internal/testutil"
)

// setupTestServer initializes dependencies with the fixture CSV and returns a test server
func setupTestServer(t *testing.T) *testutil.TestServer {
	t.Helper()
	testutil.SetTestEnv(t)

	c, err := config.Load("")
	require.NoError(t, err)
	logger = zerolog.Nop()

	// Initialize storage (unencrypted for tests)
	store, err = storage.New(c.DataDirectory, logger)
	require.NoError(t, err)

	require.NoError(t, SetupDependencies(c))
	require.NotNil(t, renderer, "templates failed to load")

	return testutil.NewTestServer(t, SetupRouter())
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/api/health")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeJSON().
		ContainsAll(`"status":"ok"`, `"name":"healthdash"`)
}

// TestRootRedirect tests that / redirects to /dashboard
func TestRootRedirect(t *testing.T) {
	ts := setupTestServer(t)

	// Don't follow redirects
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(ts.BaseURL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestDashboard(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/dashboard")
	a := testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		ContainsAll(
			"Healthcare Dashboard",
			"Total Patients",
			"Total Billing",
			"Insurance Providers",
			"All Years",
		).
		HasElement("kpis")

	for _, chartType := range charts.Types {
		a.HasChart(chartType)
	}
}

func TestDashboardYearFilter(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		year   string
		status int
	}{
		{"all years", models.AllYears, http.StatusOK},
		{"2023", "2023", http.StatusOK},
		{"2022", "2022", http.StatusOK},
		{"unknown year", "1900", http.StatusBadRequest},
		{"garbage", "twenty", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.GETWithQuery("/dashboard", map[string]string{"year": tt.year})
			testutil.AssertResponse(t, resp).Status(tt.status)
		})
	}
}

func TestDashboardKPIsPartial(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GETWithQuery("/dashboard/kpis", map[string]string{"year": "2023"})
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("Total Patients", "vs 2022")
}

func TestDashboardChartData(t *testing.T) {
	ts := setupTestServer(t)

	for _, chartType := range charts.Types {
		t.Run(chartType, func(t *testing.T) {
			var fig models.ChartResponse
			testutil.AssertResponse(t, ts.GET("/dashboard/charts/data/"+chartType)).
				StatusOK().
				ContentTypeJSON().
				JSON(&fig)
			assert.NotEmpty(t, fig.Data)
			assert.NotEmpty(t, fig.Layout.Title)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		resp := ts.GET("/dashboard/charts/data/nope")
		testutil.AssertResponse(t, resp).StatusBadRequest()
	})
}

func TestDashboardKPIDetail(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/dashboard/kpi/billing")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("Total Billing", "2022", "2023")

	resp = ts.GET("/dashboard/kpi/rooms")
	testutil.AssertResponse(t, resp).StatusBadRequest()
}

func TestDashboardKPIExport(t *testing.T) {
	ts := setupTestServer(t)

	body := testutil.AssertResponse(t, ts.GET("/dashboard/kpi/patients/export")).
		StatusOK().
		ContentTypeCSV().
		Attachment("patients-by-year.csv").
		Body()

	lines := strings.Split(strings.TrimSpace(body), "\n")
	assert.Len(t, lines, 3, "header plus one row per year")
}

func TestDashboardCategoryDrilldown(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/dashboard/category/condition/Asthma")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("Asthma", "Grace Lee")

	resp = ts.GETWithQuery("/dashboard/category/condition/Asthma", map[string]string{"year": "2023"})
	testutil.AssertResponse(t, resp).
		StatusOK().
		Contains("Grace Lee").
		NotContains("Eve Adams")

	resp = ts.GET("/dashboard/category/blood/A+")
	testutil.AssertResponse(t, resp).StatusBadRequest()
}

func TestExplorer(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/explorer")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("Filtered Data", "Search", "Alice Smith")
}

func TestExplorerFiltering(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name    string
		query   map[string]string
		want    string
		without string
	}{
		{"search", map[string]string{"search": "kim"}, "Kim Park", "Bob Jones"},
		{"condition", map[string]string{"condition": "Hypertension"}, "Dan Black", "Bob Jones"},
		{"hospital", map[string]string{"hospital": "City Clinic"}, "Grace Lee", "Henry Ford"},
		{"year", map[string]string{"year": "2022"}, "Mia Wong", "Liam Young"},
		{"sort by billing", map[string]string{"sort": "billing", "order": "asc"}, "Liam Young", ""},
		{"paged", map[string]string{"perPage": "5", "page": "2"}, "Page 2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.GETWithQuery("/explorer/records", tt.query)
			a := testutil.AssertResponse(t, resp).
				StatusOK().
				ContentTypeHTML().
				Contains(tt.want)
			if tt.without != "" {
				a.NotContains(tt.without)
			}
		})
	}
}

func TestExplorerRecordDetail(t *testing.T) {
	ts := setupTestServer(t)

	result, err := loader.Load()
	require.NoError(t, err)
	p := result.Patients.Patients[0]

	resp := ts.GET("/explorer/record/" + p.Hash)
	testutil.AssertResponse(t, resp).
		StatusOK().
		Contains(p.Name)

	resp = ts.GET("/explorer/record/does-not-exist")
	testutil.AssertResponse(t, resp).StatusNotFound()
}

func TestAnalysisPage(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/analysis")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("Statistical Analysis", "Billing Amount by Hospital", "Age by Medical Condition", "Lakeside Hospital").
		HasChart("hospital-billing").
		HasChart("condition-age")
}

func TestAnalysisAPI(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/api/analysis")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep models.AnalysisReport
	testutil.DecodeJSON(t, resp, &rep)
	assert.Equal(t, 14, rep.Records)
	assert.NotNil(t, rep.ChiSquare)
	assert.NotEmpty(t, rep.Skipped, "the two-record hospital is below the group threshold")

	resp = ts.GETWithQuery("/api/analysis", map[string]string{"format": "yaml"})
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentType("application/yaml").
		ContainsAll("chi_square:", "hospital_billing:")
}

func TestAnalysisGroupCharts(t *testing.T) {
	ts := setupTestServer(t)

	for _, group := range []string{"hospital-billing", "condition-age"} {
		t.Run(group, func(t *testing.T) {
			var fig models.ChartResponse
			testutil.AssertResponse(t, ts.GET("/analysis/charts/"+group)).StatusOK().JSON(&fig)
			require.NotEmpty(t, fig.Data)
			assert.Equal(t, "box", fig.Data[0].Type)
		})
	}

	resp := ts.GET("/analysis/charts/gender-age")
	testutil.AssertResponse(t, resp).StatusBadRequest()
}

func TestAPIYears(t *testing.T) {
	ts := setupTestServer(t)

	var years []interface{}
	testutil.DecodeJSON(t, ts.GET("/api/years"), &years)
	require.Len(t, years, 3)
	assert.Equal(t, models.AllYears, years[0])
	assert.EqualValues(t, 2022, years[1])
	assert.EqualValues(t, 2023, years[2])
}

func TestAPIMetrics(t *testing.T) {
	ts := setupTestServer(t)

	var all struct {
		Year    string                  `json:"year"`
		Metrics models.DashboardMetrics `json:"metrics"`
	}
	testutil.DecodeJSON(t, ts.GET("/api/metrics"), &all)
	assert.Equal(t, models.AllYears, all.Year)
	assert.Equal(t, 14, all.Metrics.RecordCount)
	assert.Equal(t, 13, all.Metrics.TotalPatients, "Alice Smith was admitted twice")

	resp := ts.GETWithQuery("/api/metrics", map[string]string{"year": "2023"})
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContainsAll(`"year":"2023"`, `"comparison"`)
}

func TestAPIDataset(t *testing.T) {
	ts := setupTestServer(t)

	var report models.DatasetReport
	testutil.DecodeJSON(t, ts.GET("/api/dataset"), &report)
	assert.Equal(t, 15, report.SourceRows)
	assert.Equal(t, 1, report.MissingNames)
	assert.Equal(t, 1, report.InvalidDates)
	assert.Equal(t, 14, report.Records)
}

func TestExports(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		path        string
		contentType string
		filename    string
	}{
		{"/export/xlsx?year=2023", "spreadsheetml", "healthdash-2023-"},
		{"/export/parquet", "parquet", "healthdash-all-years-"},
		{"/export/chart/gender.png", "image/png", ".png"},
		{"/export/chart/billing-by-year.png?year=2022", "image/png", ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			body := testutil.AssertResponse(t, ts.GET(tt.path)).
				StatusOK().
				ContentType(tt.contentType).
				Attachment(tt.filename).
				Body()
			assert.NotEmpty(t, body)
		})
	}
}

func TestExportSave(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.POST("/export/save/parquet?year=2022", "application/x-www-form-urlencoded", nil)
	testutil.AssertResponse(t, resp).
		Status(http.StatusCreated).
		ContainsAll(`"file"`, `"records":6`)

	resp = ts.POST("/export/save/csv", "application/x-www-form-urlencoded", nil)
	testutil.AssertResponse(t, resp).StatusBadRequest()
}

func TestPrintReport(t *testing.T) {
	setupTestServer(t)

	result, err := loader.Load()
	require.NoError(t, err)
	rep := analysis.Run(result.Patients, analysis.DefaultOptions(), zerolog.Nop())

	tests := []struct {
		format string
		want   string
	}{
		{"text", "Chi-square: Gender x Admission Type"},
		{"json", `"chi_square"`},
		{"yaml", "chi_square:"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, printReport(&buf, rep, tt.format))
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	assert.Error(t, printReport(&bytes.Buffer{}, rep, "xml"))
}
