package models

import "time"

// DashboardMetrics contains the main KPI metrics for the dashboard
type DashboardMetrics struct {
	TotalPatients       int       `json:"total_patients"`
	TotalBilling        float64   `json:"total_billing"`
	TotalBillingDisplay string    `json:"total_billing_display"`
	TotalHospitals      int       `json:"total_hospitals"`
	TotalDoctors        int       `json:"total_doctors"`
	TotalInsurers       int       `json:"total_insurers"`
	RecordCount         int       `json:"record_count"`
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
}

// YearComparison holds metrics for a year and the year before it
type YearComparison struct {
	Year         int               `json:"year"`
	PreviousYear int               `json:"previous_year"`
	Current      *DashboardMetrics `json:"current"`
	Previous     *DashboardMetrics `json:"previous"`
	HasData      bool              `json:"has_data"`

	// Percentage changes
	PatientsChange  float64 `json:"patients_change_pct"`
	BillingChange   float64 `json:"billing_change_pct"`
	HospitalsChange float64 `json:"hospitals_change_pct"`
	DoctorsChange   float64 `json:"doctors_change_pct"`
	InsurersChange  float64 `json:"insurers_change_pct"`
}

// DatasetReport summarises a load of the source table
type DatasetReport struct {
	File         string    `json:"file"`
	SizeBytes    int64     `json:"size_bytes"`
	ModTime      time.Time `json:"mod_time"`
	SourceRows   int       `json:"source_rows"`
	MissingNames int       `json:"missing_names"`
	InvalidDates int       `json:"invalid_dates"`
	Records      int       `json:"records"`
	Years        []int     `json:"years"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// ChartData represents data for a Plotly chart
type ChartData struct {
	Type   string      `json:"type"`             // bar, pie, scatter
	X      interface{} `json:"x,omitempty"`      // x-axis values
	Y      interface{} `json:"y,omitempty"`      // y-axis values
	Labels []string    `json:"labels,omitempty"` // for pie charts
	Values []float64   `json:"values,omitempty"` // for pie charts
	Name   string      `json:"name,omitempty"`
	Mode   string      `json:"mode,omitempty"` // lines, markers, lines+markers
	Hole   float64     `json:"hole,omitempty"`
	Marker *Marker     `json:"marker,omitempty"`
}

// Marker carries per-point colors
type Marker struct {
	Color  interface{} `json:"color,omitempty"`  // single color or one per point
	Colors []string    `json:"colors,omitempty"` // pie slices
}

// ChartResponse wraps chart data with layout options
type ChartResponse struct {
	Data   []ChartData `json:"data"`
	Layout ChartLayout `json:"layout,omitempty"`
}

// ChartLayout defines Plotly layout options
type ChartLayout struct {
	Title      string `json:"title,omitempty"`
	XAxisTitle string `json:"xaxis_title,omitempty"`
	YAxisTitle string `json:"yaxis_title,omitempty"`
	ShowLegend bool   `json:"showlegend,omitempty"`
}
