package metrics

import (
	"math"
	"strconv"
	"strings"

	"healthdash/internal/models"
)

// Service provides metric calculation functionality
type Service struct{}

// New creates a new metrics service
func New() *Service {
	return &Service{}
}

// CalculateMetrics computes the dashboard KPIs for a (filtered) patient set
func (s *Service) CalculateMetrics(ps *models.PatientSet) *models.DashboardMetrics {
	totalBilling := ps.SumBilling()

	return &models.DashboardMetrics{
		TotalPatients:       ps.CountDistinct(models.FieldName),
		TotalBilling:        totalBilling,
		TotalBillingDisplay: FormatCurrency(totalBilling),
		TotalHospitals:      ps.CountDistinct(models.FieldHospital),
		TotalDoctors:        ps.CountDistinct(models.FieldDoctor),
		TotalInsurers:       ps.CountDistinct(models.FieldInsuranceProvider),
		RecordCount:         ps.Len(),
		StartDate:           ps.MinDate(),
		EndDate:             ps.MaxDate(),
	}
}

// CalculateComparison compares a year against the year before it.
// Returns nil when the previous year has no records.
func (s *Service) CalculateComparison(data *models.PatientSet, year int) *models.YearComparison {
	previous := data.FilterByYear(year - 1)
	if previous.Len() == 0 {
		return nil
	}

	current := s.CalculateMetrics(data.FilterByYear(year))
	prior := s.CalculateMetrics(previous)

	return &models.YearComparison{
		Year:            year,
		PreviousYear:    year - 1,
		Current:         current,
		Previous:        prior,
		HasData:         true,
		PatientsChange:  s.PercentChange(float64(current.TotalPatients), float64(prior.TotalPatients)),
		BillingChange:   s.PercentChange(current.TotalBilling, prior.TotalBilling),
		HospitalsChange: s.PercentChange(float64(current.TotalHospitals), float64(prior.TotalHospitals)),
		DoctorsChange:   s.PercentChange(float64(current.TotalDoctors), float64(prior.TotalDoctors)),
		InsurersChange:  s.PercentChange(float64(current.TotalInsurers), float64(prior.TotalInsurers)),
	}
}

// PercentChange calculates the percentage change between two values
func (s *Service) PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return ((current - previous) / math.Abs(previous)) * 100
}

// FormatCurrency renders an amount as "$1,234,567.89"; negatives keep the sign after "$"
func FormatCurrency(amount float64) string {
	return "$" + FormatNumber(amount, 2)
}

// FormatNumber renders a number with thousands separators and fixed decimals
func FormatNumber(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return sign + b.String() + frac
}
