package classifier

import (
	"math"

	"healthdash/internal/models"
)

// AgeBucket is a half-open age interval [Lower, Upper)
type AgeBucket struct {
	Label string
	Lower float64
	Upper float64
}

// AgeBuckets are the age groups in display order.
// Labels are historical; the intervals are left-closed so age 18 lands in "19-35".
var AgeBuckets = []AgeBucket{
	{Label: "0-18", Lower: 0, Upper: 18},
	{Label: "19-35", Lower: 18, Upper: 35},
	{Label: "36-50", Lower: 35, Upper: 50},
	{Label: "51-65", Lower: 50, Upper: 65},
	{Label: "66-80", Lower: 65, Upper: 80},
	{Label: "81-100", Lower: 80, Upper: 100},
}

// AgeGroupLabels returns the bucket labels in display order
func AgeGroupLabels() []string {
	labels := make([]string, len(AgeBuckets))
	for i, b := range AgeBuckets {
		labels[i] = b.Label
	}
	return labels
}

// ClassifyAge returns the bucket label for an age, or "" when uncategorized
func ClassifyAge(age float64) string {
	if math.IsNaN(age) {
		return ""
	}
	for _, b := range AgeBuckets {
		if age >= b.Lower && age < b.Upper {
			return b.Label
		}
	}
	return ""
}

// ClassifyPatients sets AgeGroup on every record with a valid age
func ClassifyPatients(patients []models.PatientRecord) []models.PatientRecord {
	for i := range patients {
		if !patients[i].AgeValid {
			patients[i].AgeGroup = ""
			continue
		}
		patients[i].AgeGroup = ClassifyAge(patients[i].Age)
	}
	return patients
}

// AgeGroupCounts counts records per bucket in display order, including empty buckets
func AgeGroupCounts(ps *models.PatientSet) []models.CategoryCount {
	index := make(map[string]int, len(AgeBuckets))
	counts := make([]models.CategoryCount, len(AgeBuckets))
	for i, b := range AgeBuckets {
		index[b.Label] = i
		counts[i] = models.CategoryCount{Value: b.Label}
	}

	for _, p := range ps.Patients {
		if idx, ok := index[p.AgeGroup]; ok {
			counts[idx].Count++
		}
	}
	return counts
}
