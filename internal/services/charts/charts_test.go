package charts

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthdash/internal/models"
	"healthdash/internal/services/dataloader"
	"healthdash/internal/services/storage"
	"healthdash/internal/testutil"
)

func loadFixture(t *testing.T) *models.PatientSet {
	t.Helper()
	dir := testutil.TestDataDir()
	store, err := storage.New(dir, zerolog.Nop())
	require.NoError(t, err)
	result, err := dataloader.New(filepath.Join(dir, "healthcare_dataset.csv"), store, zerolog.Nop()).Load()
	require.NoError(t, err)
	return result.Patients
}

func TestBuildAllTypes(t *testing.T) {
	ps := loadFixture(t)
	for _, chartType := range Types {
		t.Run(chartType, func(t *testing.T) {
			chart, err := Build(chartType, ps)
			require.NoError(t, err)
			require.Len(t, chart.Data, 1)
			assert.NotEmpty(t, chart.Layout.Title)

			_, err = json.Marshal(chart)
			assert.NoError(t, err)
		})
	}
}

func TestBuildUnknownType(t *testing.T) {
	_, err := Build("histogram", models.NewPatientSet(nil))
	assert.ErrorIs(t, err, ErrUnknownChart)
}

func TestGenderPie(t *testing.T) {
	chart := GenderPie(loadFixture(t))
	trace := chart.Data[0]
	assert.Equal(t, "pie", trace.Type)
	assert.Equal(t, 0.4, trace.Hole)
	assert.Equal(t, []string{"Female", "Male"}, trace.Labels)
	assert.Equal(t, []float64{8, 6}, trace.Values)
	assert.Equal(t, Set2[:2], trace.Marker.Colors)
}

func TestAgeGroupBarIncludesEmptyBuckets(t *testing.T) {
	chart := AgeGroupBar(loadFixture(t))
	trace := chart.Data[0]
	assert.Equal(t, []string{"0-18", "19-35", "36-50", "51-65", "66-80", "81-100"}, trace.X)
	assert.Equal(t, []float64{1, 4, 2, 3, 1, 1}, trace.Y)
	assert.Equal(t, "rgb(153,153,153)", trace.Marker.Color)

	empty := AgeGroupBar(models.NewPatientSet(nil))
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, empty.Data[0].Y)
}

func TestBillingByYearLine(t *testing.T) {
	chart := BillingByYearLine(loadFixture(t))
	trace := chart.Data[0]
	assert.Equal(t, "lines", trace.Mode)
	assert.Equal(t, []int{2022, 2023}, trace.X)

	y := trace.Y.([]float64)
	assert.InDelta(t, 11300.50, y[0], 1e-6)
	assert.InDelta(t, 10200.0, y[1], 1e-6)
}

func TestConditionBarTieOrder(t *testing.T) {
	chart := ConditionBar(loadFixture(t))
	assert.Equal(t, []string{"Diabetes", "Asthma", "Hypertension"}, chart.Data[0].X)
	assert.Equal(t, []float64{5, 5, 4}, chart.Data[0].Y)
}

func TestAdmissionTypeBar(t *testing.T) {
	chart := AdmissionTypeBar(loadFixture(t))
	assert.Equal(t, []string{"Emergency", "Elective", "Urgent"}, chart.Data[0].X)
	assert.Equal(t, []float64{6, 4, 4}, chart.Data[0].Y)
	assert.Equal(t, Set3[0], chart.Data[0].Marker.Color)
}

func TestInsurerDonutMatchesTotalBilling(t *testing.T) {
	ps := loadFixture(t)
	chart := InsurerDonut(ps)
	trace := chart.Data[0]

	assert.Equal(t, []string{"Aetna", "Blue Cross", "Cigna", "Medicare"}, trace.Labels)
	assert.InDeltaSlice(t, []float64{10400, 3200.50, 5150.25, 4500}, trace.Values, 1e-6)

	var sum float64
	for _, v := range trace.Values {
		sum += v
	}
	assert.InDelta(t, ps.SumBilling(), sum, 1e-6)
}

func TestYearFilterNarrowsCharts(t *testing.T) {
	ps := loadFixture(t).FilterByYear(2022)
	chart := BillingByYearLine(ps)
	assert.Equal(t, []int{2022}, chart.Data[0].X)
}

func TestGroupBox(t *testing.T) {
	groups := loadFixture(t).GroupValues(models.FieldHospital, models.BillingValue)
	chart := GroupBox(groups, "Billing by Hospital", "Billing Amount")

	require.Len(t, chart.Data, len(groups))
	for i, trace := range chart.Data {
		assert.Equal(t, "box", trace.Type)
		assert.Equal(t, groups[i].Key, trace.Name)
		assert.Equal(t, groups[i].Values, trace.Y)
	}
}
