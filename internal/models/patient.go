package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// AllYears is the year filter sentinel that selects the whole cleaned table
const AllYears = "All Years"

// Field names a categorical column of a patient record
type Field string

const (
	FieldName              Field = "Name"
	FieldGender            Field = "Gender"
	FieldMedicalCondition  Field = "Medical Condition"
	FieldDoctor            Field = "Doctor"
	FieldHospital          Field = "Hospital"
	FieldInsuranceProvider Field = "Insurance Provider"
	FieldAdmissionType     Field = "Admission Type"
	FieldAgeGroup          Field = "Age Group"
)

// PatientRecord represents a single admission row of the source table
type PatientRecord struct {
	Name              string    `json:"name"`
	Age               float64   `json:"age"`
	AgeValid          bool      `json:"age_valid"`
	Gender            string    `json:"gender"`
	MedicalCondition  string    `json:"medical_condition"`
	AdmissionDate     time.Time `json:"admission_date"`
	DateValid         bool      `json:"date_valid"`
	Doctor            string    `json:"doctor"`
	Hospital          string    `json:"hospital"`
	InsuranceProvider string    `json:"insurance_provider"`
	BillingAmount     float64   `json:"billing_amount"`
	BillingValid      bool      `json:"billing_valid"`
	AdmissionType     string    `json:"admission_type"`
	Line              int       `json:"line"`
	Hash              string    `json:"hash"`

	// Derived fields (computed, not stored)
	Year     int    `json:"year,omitempty"`
	AgeGroup string `json:"age_group,omitempty"`
}

// ComputeHash generates a stable identifier for the record
func (p *PatientRecord) ComputeHash() string {
	dateStr := ""
	if p.DateValid {
		dateStr = p.AdmissionDate.Format("2006-01-02")
	}
	input := fmt.Sprintf("%d|%s|%s|%s|%.2f",
		p.Line,
		strings.ToLower(strings.TrimSpace(p.Name)),
		dateStr,
		strings.ToLower(p.Hospital),
		p.BillingAmount,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}

// ComputeDerivedFields populates Year from the admission date
func (p *PatientRecord) ComputeDerivedFields() {
	if p.DateValid {
		p.Year = p.AdmissionDate.Year()
	} else {
		p.Year = 0
	}
}

// Value returns the categorical value of the given field
func (p *PatientRecord) Value(f Field) string {
	switch f {
	case FieldName:
		return p.Name
	case FieldGender:
		return p.Gender
	case FieldMedicalCondition:
		return p.MedicalCondition
	case FieldDoctor:
		return p.Doctor
	case FieldHospital:
		return p.Hospital
	case FieldInsuranceProvider:
		return p.InsuranceProvider
	case FieldAdmissionType:
		return p.AdmissionType
	case FieldAgeGroup:
		return p.AgeGroup
	}
	return ""
}

// CategoryCount is one bar/slice of a categorical chart
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategoryTotal is a summed amount for one category
type CategoryTotal struct {
	Value string  `json:"value"`
	Total float64 `json:"total"`
}

// YearTotal is a summed amount for one admission year
type YearTotal struct {
	Year  int     `json:"year"`
	Total float64 `json:"total"`
}

// ValueGroup holds the numeric observations of one category
type ValueGroup struct {
	Key    string    `json:"key"`
	Values []float64 `json:"values"`
}

// PatientSet wraps a slice with filtering/aggregation methods
type PatientSet struct {
	Patients []PatientRecord
}

// NewPatientSet creates a new PatientSet from a slice
func NewPatientSet(patients []PatientRecord) *PatientSet {
	return &PatientSet{Patients: patients}
}

// Len returns the number of records
func (ps *PatientSet) Len() int {
	return len(ps.Patients)
}

// Years returns the sorted distinct admission years of records with a valid date
func (ps *PatientSet) Years() []int {
	years := lo.Uniq(lo.FilterMap(ps.Patients, func(p PatientRecord, _ int) (int, bool) {
		return p.Year, p.DateValid
	}))
	sort.Ints(years)
	return years
}

// HasYear reports whether any record was admitted in the given year
func (ps *PatientSet) HasYear(year int) bool {
	return lo.ContainsBy(ps.Patients, func(p PatientRecord) bool {
		return p.DateValid && p.Year == year
	})
}

// FilterByYear returns the records admitted in the given year
func (ps *PatientSet) FilterByYear(year int) *PatientSet {
	result := &PatientSet{}
	for _, p := range ps.Patients {
		if p.DateValid && p.Year == year {
			result.Patients = append(result.Patients, p)
		}
	}
	return result
}

// FilterByValue returns the records whose field equals value
func (ps *PatientSet) FilterByValue(f Field, value string) *PatientSet {
	result := &PatientSet{}
	for i := range ps.Patients {
		if ps.Patients[i].Value(f) == value {
			result.Patients = append(result.Patients, ps.Patients[i])
		}
	}
	return result
}

// FilterBySearch returns records whose name, doctor or hospital contains the term
func (ps *PatientSet) FilterBySearch(search string) *PatientSet {
	result := &PatientSet{}
	searchLower := strings.ToLower(search)
	for _, p := range ps.Patients {
		if strings.Contains(strings.ToLower(p.Name), searchLower) ||
			strings.Contains(strings.ToLower(p.Doctor), searchLower) ||
			strings.Contains(strings.ToLower(p.Hospital), searchLower) {
			result.Patients = append(result.Patients, p)
		}
	}
	return result
}

// CountDistinct counts the distinct non-empty values of a field
func (ps *PatientSet) CountDistinct(f Field) int {
	seen := make(map[string]struct{})
	for i := range ps.Patients {
		v := ps.Patients[i].Value(f)
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

// SumBilling returns the sum of all valid billing amounts
func (ps *PatientSet) SumBilling() float64 {
	var sum float64
	for _, p := range ps.Patients {
		if p.BillingValid {
			sum += p.BillingAmount
		}
	}
	return sum
}

// ValueCounts counts records per category, most frequent first.
// Ties keep the order in which the categories first appear.
func (ps *PatientSet) ValueCounts(f Field) []CategoryCount {
	index := make(map[string]int)
	var counts []CategoryCount
	for i := range ps.Patients {
		v := ps.Patients[i].Value(f)
		if v == "" {
			continue
		}
		idx, ok := index[v]
		if !ok {
			idx = len(counts)
			index[v] = idx
			counts = append(counts, CategoryCount{Value: v})
		}
		counts[idx].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

// BillingBy sums valid billing amounts per category, sorted by category
func (ps *PatientSet) BillingBy(f Field) []CategoryTotal {
	totals := make(map[string]float64)
	for i := range ps.Patients {
		p := &ps.Patients[i]
		v := p.Value(f)
		if v == "" {
			continue
		}
		if _, ok := totals[v]; !ok {
			totals[v] = 0
		}
		if p.BillingValid {
			totals[v] += p.BillingAmount
		}
	}

	keys := lo.Keys(totals)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) CategoryTotal {
		return CategoryTotal{Value: k, Total: totals[k]}
	})
}

// BillingByYear sums valid billing amounts per admission year, ascending
func (ps *PatientSet) BillingByYear() []YearTotal {
	totals := make(map[int]float64)
	for _, p := range ps.Patients {
		if !p.DateValid {
			continue
		}
		if _, ok := totals[p.Year]; !ok {
			totals[p.Year] = 0
		}
		if p.BillingValid {
			totals[p.Year] += p.BillingAmount
		}
	}

	years := lo.Keys(totals)
	sort.Ints(years)
	return lo.Map(years, func(y int, _ int) YearTotal {
		return YearTotal{Year: y, Total: totals[y]}
	})
}

// GroupValues collects numeric observations per category in first-appearance order.
// Records whose value is not valid are skipped.
func (ps *PatientSet) GroupValues(f Field, value func(p *PatientRecord) (float64, bool)) []ValueGroup {
	index := make(map[string]int)
	var groups []ValueGroup
	for i := range ps.Patients {
		p := &ps.Patients[i]
		key := p.Value(f)
		if key == "" {
			continue
		}
		idx, ok := index[key]
		if !ok {
			idx = len(groups)
			index[key] = idx
			groups = append(groups, ValueGroup{Key: key})
		}
		if v, ok := value(p); ok {
			groups[idx].Values = append(groups[idx].Values, v)
		}
	}
	return groups
}

// BillingValue extracts the billing amount for GroupValues
func BillingValue(p *PatientRecord) (float64, bool) {
	return p.BillingAmount, p.BillingValid
}

// AgeValue extracts the age for GroupValues
func AgeValue(p *PatientRecord) (float64, bool) {
	return p.Age, p.AgeValid
}

// FindByHash returns the record with the given hash
func (ps *PatientSet) FindByHash(hash string) (*PatientRecord, bool) {
	for i := range ps.Patients {
		if ps.Patients[i].Hash == hash {
			return &ps.Patients[i], true
		}
	}
	return nil, false
}

// MinDate returns the earliest valid admission date
func (ps *PatientSet) MinDate() time.Time {
	var minDate time.Time
	for _, p := range ps.Patients {
		if p.DateValid && (minDate.IsZero() || p.AdmissionDate.Before(minDate)) {
			minDate = p.AdmissionDate
		}
	}
	return minDate
}

// MaxDate returns the latest valid admission date
func (ps *PatientSet) MaxDate() time.Time {
	var maxDate time.Time
	for _, p := range ps.Patients {
		if p.DateValid && p.AdmissionDate.After(maxDate) {
			maxDate = p.AdmissionDate
		}
	}
	return maxDate
}

// Paginate returns a slice of records for the given page
func (ps *PatientSet) Paginate(page, perPage int) *PatientSet {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 25
	}

	start := (page - 1) * perPage
	if start >= len(ps.Patients) {
		return &PatientSet{}
	}

	end := start + perPage
	if end > len(ps.Patients) {
		end = len(ps.Patients)
	}

	return &PatientSet{Patients: ps.Patients[start:end]}
}

// TotalPages returns the number of pages for the given page size
func (ps *PatientSet) TotalPages(perPage int) int {
	if perPage < 1 {
		perPage = 25
	}
	return (len(ps.Patients) + perPage - 1) / perPage
}

// SortByDateDesc returns a copy ordered by admission date, newest first.
// Records without a valid date go last.
func (ps *PatientSet) SortByDateDesc() *PatientSet {
	sorted := ps.Copy()
	sort.SliceStable(sorted.Patients, func(i, j int) bool {
		a, b := sorted.Patients[i], sorted.Patients[j]
		if a.DateValid != b.DateValid {
			return a.DateValid
		}
		return a.AdmissionDate.After(b.AdmissionDate)
	})
	return sorted
}

// Copy creates a shallow copy of the PatientSet
func (ps *PatientSet) Copy() *PatientSet {
	copied := make([]PatientRecord, len(ps.Patients))
	copy(copied, ps.Patients)
	return &PatientSet{Patients: copied}
}
