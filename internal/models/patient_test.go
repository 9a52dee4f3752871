package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func record(name string, year int, hospital, insurer string, billing float64) PatientRecord {
	p := PatientRecord{
		Name:              name,
		Hospital:          hospital,
		InsuranceProvider: insurer,
		BillingAmount:     billing,
		BillingValid:      true,
		AdmissionDate:     time.Date(year, 3, 1, 0, 0, 0, 0, time.UTC),
		DateValid:         true,
	}
	p.ComputeDerivedFields()
	return p
}

func TestFilterByYear(t *testing.T) {
	ps := NewPatientSet([]PatientRecord{
		record("a", 2021, "H1", "I1", 10),
		record("b", 2022, "H1", "I1", 20),
		record("c", 2022, "H2", "I2", 30),
		{Name: "d", BillingAmount: 40, BillingValid: true},
	})

	filtered := ps.FilterByYear(2022)
	assert.Equal(t, 2, filtered.Len())
	for _, p := range filtered.Patients {
		assert.Equal(t, 2022, p.Year)
	}

	assert.Zero(t, ps.FilterByYear(1999).Len())
	assert.Equal(t, []int{2021, 2022}, ps.Years())
	assert.True(t, ps.HasYear(2021))
	assert.False(t, ps.HasYear(0), "records without a valid date belong to no year")
}

func TestBillingPartition(t *testing.T) {
	ps := NewPatientSet([]PatientRecord{
		record("a", 2021, "H1", "I1", 10.25),
		record("b", 2022, "H1", "I1", 20.50),
		record("c", 2022, "H2", "I2", 30),
		{Name: "d", BillingAmount: 40, BillingValid: true},
	})

	var perYear float64
	for _, y := range ps.BillingByYear() {
		perYear += y.Total
	}
	assert.InDelta(t, ps.SumBilling(), perYear+40, 1e-9)
}

func TestInsurerBillingExample(t *testing.T) {
	ps := NewPatientSet([]PatientRecord{
		record("a", 2022, "H", "A", 100),
		record("b", 2022, "H", "B", 50),
		record("c", 2022, "H", "A", 200),
		record("d", 2022, "H", "A", 300),
	})

	totals := ps.BillingBy(FieldInsuranceProvider)
	assert.Equal(t, []CategoryTotal{{Value: "A", Total: 600}, {Value: "B", Total: 50}}, totals)
	assert.Equal(t, 650.0, ps.SumBilling())
}

func TestSumBillingSkipsMissing(t *testing.T) {
	ps := NewPatientSet([]PatientRecord{
		record("a", 2022, "H", "A", 100),
		{Name: "b", BillingAmount: 999, BillingValid: false},
	})
	assert.Equal(t, 100.0, ps.SumBilling())
}

func TestValueCountsOrdering(t *testing.T) {
	ps := NewPatientSet([]PatientRecord{
		{Name: "a", MedicalCondition: "Asthma"},
		{Name: "b", MedicalCondition: "Cancer"},
		{Name: "c", MedicalCondition: "Cancer"},
		{Name: "d", MedicalCondition: "Diabetes"},
		{Name: "e", MedicalCondition: "Asthma"},
		{Name: "f", MedicalCondition: "Obesity"},
		{Name: "g", MedicalCondition: ""},
	})

	assert.Equal(t, []CategoryCount{
		{Value: "Asthma", Count: 2},
		{Value: "Cancer", Count: 2},
		{Value: "Diabetes", Count: 1},
		{Value: "Obesity", Count: 1},
	}, ps.ValueCounts(FieldMedicalCondition))
}

func TestCountDistinct(t *testing.T) {
	ps := NewPatientSet([]PatientRecord{
		{Name: "Alice", Doctor: "Dr. A"},
		{Name: "Alice", Doctor: "Dr. B"},
		{Name: "Bob", Doctor: ""},
	})
	assert.Equal(t, 2, ps.CountDistinct(FieldName))
	assert.Equal(t, 2, ps.CountDistinct(FieldDoctor))
	assert.Zero(t, ps.CountDistinct(FieldHospital))
}

func TestGroupValues(t *testing.T) {
	ps := NewPatientSet([]PatientRecord{
		{Name: "a", Hospital: "B", BillingAmount: 1, BillingValid: true},
		{Name: "b", Hospital: "A", BillingAmount: 2, BillingValid: true},
		{Name: "c", Hospital: "B", BillingAmount: 3, BillingValid: true},
		{Name: "d", Hospital: "A", BillingAmount: 4, BillingValid: false},
	})

	groups := ps.GroupValues(FieldHospital, BillingValue)
	assert.Equal(t, []ValueGroup{
		{Key: "B", Values: []float64{1, 3}},
		{Key: "A", Values: []float64{2}},
	}, groups)
}

func TestPaginate(t *testing.T) {
	var patients []PatientRecord
	for i := 0; i < 7; i++ {
		patients = append(patients, PatientRecord{Name: string(rune('a' + i))})
	}
	ps := NewPatientSet(patients)

	tests := []struct {
		page, perPage, want int
	}{
		{1, 3, 3},
		{3, 3, 1},
		{4, 3, 0},
		{0, 3, 3},
		{1, 0, 7},
	}
	for _, tt := range tests {
		if got := ps.Paginate(tt.page, tt.perPage).Len(); got != tt.want {
			t.Errorf("Paginate(%d, %d) returned %d records, want %d", tt.page, tt.perPage, got, tt.want)
		}
	}
	assert.Equal(t, 3, ps.TotalPages(3))
}

func TestComputeHashStable(t *testing.T) {
	a := record("Alice", 2022, "H", "I", 10)
	a.Line = 2
	b := a
	assert.Equal(t, a.ComputeHash(), b.ComputeHash())

	b.Line = 3
	assert.NotEqual(t, a.ComputeHash(), b.ComputeHash())
}

func TestFindByHash(t *testing.T) {
	a := record("Alice", 2022, "H", "I", 10)
	a.Hash = a.ComputeHash()
	ps := NewPatientSet([]PatientRecord{a})

	found, ok := ps.FindByHash(a.Hash)
	assert.True(t, ok)
	assert.Equal(t, "Alice", found.Name)

	_, ok = ps.FindByHash("missing")
	assert.False(t, ok)
}

func TestSortByDateDesc(t *testing.T) {
	undated := record("Nora", 0, "H", "I", 1)
	undated.DateValid = false
	ps := NewPatientSet([]PatientRecord{
		record("Old", 2019, "H", "I", 1),
		undated,
		record("New", 2023, "H", "I", 1),
	})

	sorted := ps.SortByDateDesc()
	names := []string{sorted.Patients[0].Name, sorted.Patients[1].Name, sorted.Patients[2].Name}
	assert.Equal(t, []string{"New", "Old", "Nora"}, names)
	assert.Equal(t, "Old", ps.Patients[0].Name, "original order untouched")
}
