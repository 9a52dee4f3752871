package charts

import (
	"errors"
	"fmt"

	"healthdash/internal/models"
	"healthdash/internal/services/classifier"
)

// ErrUnknownChart is returned by Build for an unrecognised chart type
var ErrUnknownChart = errors.New("unknown chart type")

// Chart type identifiers used in URLs
const (
	Gender        = "gender"
	AgeGroup      = "age-group"
	BillingByYear = "billing-by-year"
	Condition     = "condition"
	AdmissionType = "admission-type"
	Insurer       = "insurer"
)

// Types lists every chart in dashboard order
var Types = []string{Gender, AgeGroup, BillingByYear, Condition, AdmissionType, Insurer}

// Build returns the Plotly figure for chartType over ps
func Build(chartType string, ps *models.PatientSet) (*models.ChartResponse, error) {
	switch chartType {
	case Gender:
		return GenderPie(ps), nil
	case AgeGroup:
		return AgeGroupBar(ps), nil
	case BillingByYear:
		return BillingByYearLine(ps), nil
	case Condition:
		return ConditionBar(ps), nil
	case AdmissionType:
		return AdmissionTypeBar(ps), nil
	case Insurer:
		return InsurerDonut(ps), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChart, chartType)
}

// GenderPie shows patient counts per gender as a donut
func GenderPie(ps *models.PatientSet) *models.ChartResponse {
	counts := ps.ValueCounts(models.FieldGender)
	labels, values := splitCounts(counts)

	return &models.ChartResponse{
		Data: []models.ChartData{{
			Type:   "pie",
			Labels: labels,
			Values: values,
			Hole:   0.4,
			Marker: &models.Marker{Colors: cycle(Set2, len(labels))},
		}},
		Layout: models.ChartLayout{
			Title:      "Patient Distribution by Gender",
			ShowLegend: true,
		},
	}
}

// AgeGroupBar shows patient counts per age bucket, empty buckets included
func AgeGroupBar(ps *models.PatientSet) *models.ChartResponse {
	labels, values := splitCounts(classifier.AgeGroupCounts(ps))
	return bar(labels, values, Set1R, "Patients by Age Group", "Age Group", "Count")
}

// BillingByYearLine shows summed billing per admission year
func BillingByYearLine(ps *models.PatientSet) *models.ChartResponse {
	totals := ps.BillingByYear()
	years := make([]int, len(totals))
	amounts := make([]float64, len(totals))
	for i, t := range totals {
		years[i] = t.Year
		amounts[i] = t.Total
	}

	return &models.ChartResponse{
		Data: []models.ChartData{{
			Type:   "scatter",
			Mode:   "lines",
			X:      years,
			Y:      amounts,
			Marker: &models.Marker{Color: Set1[0]},
		}},
		Layout: models.ChartLayout{
			Title:      "Total Billing Amount by Year",
			XAxisTitle: "Year",
			YAxisTitle: "Total Billing Amount",
		},
	}
}

// ConditionBar shows patient counts per medical condition
func ConditionBar(ps *models.PatientSet) *models.ChartResponse {
	labels, values := splitCounts(ps.ValueCounts(models.FieldMedicalCondition))
	return bar(labels, values, Set2, "Patients by Medical Condition", "Medical Condition", "Count")
}

// AdmissionTypeBar shows patient counts per admission type
func AdmissionTypeBar(ps *models.PatientSet) *models.ChartResponse {
	labels, values := splitCounts(ps.ValueCounts(models.FieldAdmissionType))
	return bar(labels, values, Set3, "Patients by Admission Type", "Admission Type", "Count")
}

// InsurerDonut shows summed billing per insurance provider
func InsurerDonut(ps *models.PatientSet) *models.ChartResponse {
	totals := ps.BillingBy(models.FieldInsuranceProvider)
	labels := make([]string, len(totals))
	values := make([]float64, len(totals))
	for i, t := range totals {
		labels[i] = t.Value
		values[i] = t.Total
	}

	return &models.ChartResponse{
		Data: []models.ChartData{{
			Type:   "pie",
			Labels: labels,
			Values: values,
			Hole:   0.4,
			Marker: &models.Marker{Colors: cycle(Pastel, len(labels))},
		}},
		Layout: models.ChartLayout{
			Title:      "Total Billing Amount by Insurance Provider",
			ShowLegend: true,
		},
	}
}

// bar builds a single-series bar chart colored with the first palette entry
func bar(labels []string, values []float64, palette []string, title, xTitle, yTitle string) *models.ChartResponse {
	return &models.ChartResponse{
		Data: []models.ChartData{{
			Type:   "bar",
			X:      labels,
			Y:      values,
			Marker: &models.Marker{Color: palette[0]},
		}},
		Layout: models.ChartLayout{
			Title:      title,
			XAxisTitle: xTitle,
			YAxisTitle: yTitle,
		},
	}
}

func splitCounts(counts []models.CategoryCount) ([]string, []float64) {
	labels := make([]string, len(counts))
	values := make([]float64, len(counts))
	for i, c := range counts {
		labels[i] = c.Value
		values[i] = float64(c.Count)
	}
	return labels, values
}

// GroupBox draws one box per group, used for the groups behind the
// normality and variance tests
func GroupBox(groups []models.ValueGroup, title, yTitle string) *models.ChartResponse {
	colors := cycle(Pastel, len(groups))
	data := make([]models.ChartData, 0, len(groups))
	for i, g := range groups {
		data = append(data, models.ChartData{
			Type:   "box",
			Y:      g.Values,
			Name:   g.Key,
			Marker: &models.Marker{Color: colors[i]},
		})
	}

	return &models.ChartResponse{
		Data: data,
		Layout: models.ChartLayout{
			Title:      title,
			YAxisTitle: yTitle,
		},
	}
}
