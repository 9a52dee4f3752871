package analysis

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"healthdash/internal/logging"
	"healthdash/internal/models"
	"healthdash/internal/services/dataloader"
	"healthdash/internal/services/storage"
	"healthdash/internal/testutil"
)

func TestChiSquare(t *testing.T) {
	tests := []struct {
		name      string
		counts    [][]float64
		statistic float64
		pValue    float64
		maxP      float64
		dof       int
		yates     bool
	}{
		{
			name:      "2x3 without correction",
			counts:    [][]float64{{1, 4, 3}, {3, 2, 1}},
			statistic: 2.430556,
			pValue:    0.296628,
			dof:       2,
		},
		{
			name:      "2x2 with yates correction",
			counts:    [][]float64{{10, 20}, {20, 10}},
			statistic: 5.4,
			pValue:    0.020137,
			dof:       1,
			yates:     true,
		},
		{
			name:      "skewed gender by admission type",
			counts:    [][]float64{{50, 2, 1}, {1, 3, 60}},
			statistic: 104.231138,
			pValue:    0,
			maxP:      1e-6,
			dof:       2,
		},
		{
			name:      "proportional table",
			counts:    [][]float64{{10, 20, 30}, {20, 40, 60}},
			statistic: 0,
			pValue:    1,
			dof:       2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &models.ContingencyTable{
				Rows:   make([]string, len(tt.counts)),
				Cols:   make([]string, len(tt.counts[0])),
				Counts: tt.counts,
			}
			res, err := ChiSquare(table)
			require.NoError(t, err)
			assert.InDelta(t, tt.statistic, res.Statistic, 1e-5)
			assert.InDelta(t, tt.pValue, res.PValue, 1e-5)
			if tt.maxP > 0 {
				assert.Less(t, res.PValue, tt.maxP)
			}
			assert.Equal(t, tt.dof, res.DOF)
			assert.Equal(t, tt.yates, res.YatesCorrected)
		})
	}
}

func TestChiSquareDegenerate(t *testing.T) {
	_, err := ChiSquare(&models.ContingencyTable{})
	assert.ErrorIs(t, err, ErrDegenerate)

	// A single column leaves no degrees of freedom
	res, err := ChiSquare(&models.ContingencyTable{
		Rows:   []string{"Female", "Male"},
		Cols:   []string{"Urgent"},
		Counts: [][]float64{{3}, {4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.DOF)
	assert.Equal(t, 1.0, res.PValue)
	assert.False(t, math.IsNaN(res.Statistic))
}

func TestShapiroWilk(t *testing.T) {
	// Weights of 11 men, the classic Shapiro-Wilk example
	w, p, err := ShapiroWilk([]float64{148, 154, 158, 160, 161, 162, 166, 170, 182, 195, 236})
	require.NoError(t, err)
	assert.InDelta(t, 0.7888, w, 1e-3)
	assert.InDelta(t, 0.0067, p, 5e-4)

	w, p, err = ShapiroWilk([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1, w, 1e-9)
	assert.InDelta(t, 1, p, 1e-9)

	w, p, err = ShapiroWilk([]float64{1, 2, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.9643, w, 1e-3)
	assert.InDelta(t, 0.6369, p, 1e-3)

	_, p, err = ShapiroWilk([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 50})
	require.NoError(t, err)
	assert.Less(t, p, 0.001)

	normal := make([]float64, 20)
	for i := range normal {
		normal[i] = distuv.UnitNormal.Quantile((float64(i) + 0.5) / 20)
	}
	_, p, err = ShapiroWilk(normal)
	require.NoError(t, err)
	assert.Greater(t, p, 0.5)
}

func TestShapiroWilkErrors(t *testing.T) {
	_, _, err := ShapiroWilk([]float64{1, 2})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, _, err = ShapiroWilk([]float64{5, 5, 5, 5})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestOneWayANOVA(t *testing.T) {
	res, err := OneWayANOVA([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.InDelta(t, 13.5, res.Statistic, 1e-9)
	assert.InDelta(t, 0.0213, res.PValue, 1e-3)
	assert.Equal(t, 1, res.DFBetween)
	assert.Equal(t, 4, res.DFWithin)
	assert.Equal(t, 6, res.N)

	_, err = OneWayANOVA([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrInsufficientGroups)

	_, err = OneWayANOVA([][]float64{{1}, {2}})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = OneWayANOVA([][]float64{{1, 1}, {2, 2}})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestLevene(t *testing.T) {
	res, err := Levene([][]float64{{1, 2, 3, 4, 5}, {2, 4, 6, 8, 10}})
	require.NoError(t, err)
	assert.InDelta(t, 2.0571, res.Statistic, 1e-3)
	assert.Greater(t, res.PValue, 0.15)
	assert.Less(t, res.PValue, 0.25)

	// Same spread around different centres
	res, err = Levene([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Statistic, 1e-12)
	assert.InDelta(t, 1, res.PValue, 1e-9)

	_, err = Levene([][]float64{{1, 1, 1}, {2, 2, 2}})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestKruskalWallis(t *testing.T) {
	res, err := KruskalWallis([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.InDelta(t, 3.857, res.H, 1e-3)
	assert.InDelta(t, 0.0495, res.PValue, 1e-3)
	assert.InDelta(t, 1, res.TieCorrection, 1e-12)
	assert.Equal(t, 1, res.DF)

	res, err = KruskalWallis([][]float64{{1, 1, 2}, {2, 3, 3}})
	require.NoError(t, err)
	assert.Less(t, res.TieCorrection, 1.0)

	_, err = KruskalWallis([][]float64{{7, 7}, {7, 7}})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func loadFixture(t *testing.T) *models.PatientSet {
	t.Helper()
	store, err := storage.New(testutil.TestDataDir(), zerolog.Nop())
	require.NoError(t, err)
	loader := dataloader.New(testutil.FixturePath(), store, zerolog.Nop())
	res, err := loader.Load()
	require.NoError(t, err)
	return res.Patients
}

func TestRunOnFixture(t *testing.T) {
	ps := loadFixture(t)
	report := Run(ps, DefaultOptions(), zerolog.New(io.Discard))

	assert.Equal(t, 14, report.Records)
	assert.NotEmpty(t, report.ID)

	require.NotNil(t, report.ChiSquare)
	assert.Equal(t, []string{"Female", "Male"}, report.ChiSquare.Table.Rows)
	assert.Equal(t, []string{"Elective", "Emergency", "Urgent"}, report.ChiSquare.Table.Cols)
	assert.Equal(t, [][]float64{{1, 4, 3}, {3, 2, 1}}, report.ChiSquare.Table.Counts)
	assert.InDelta(t, 0.2966, report.ChiSquare.PValue, 1e-3)
	assert.False(t, report.ChiSquare.Significant)

	hb := report.HospitalBilling
	assert.Len(t, hb.Qualifying, 3)
	assert.Len(t, hb.Normality, 3)
	assert.NotNil(t, hb.Levene)
	for _, n := range hb.Normality {
		assert.NotEqual(t, "Lakeside Hospital", n.Group)
		assert.True(t, n.PValue >= 0 && n.PValue <= 1)
	}

	var lakeside *models.SkipNotice
	for i := range report.Skipped {
		if report.Skipped[i].Group == "Lakeside Hospital" {
			lakeside = &report.Skipped[i]
		}
	}
	require.NotNil(t, lakeside)
	assert.Equal(t, 2, lakeside.N)

	require.NotNil(t, report.ANOVA)
	assert.Equal(t, 4, report.ANOVA.Groups)
	assert.Equal(t, 13, report.ANOVA.N)

	ca := report.ConditionAge
	assert.Len(t, ca.Qualifying, 3)
	require.NotNil(t, report.Kruskal)
	assert.Equal(t, 3, report.Kruskal.Groups)
	assert.Equal(t, 13, report.Kruskal.N)
	assert.Equal(t, 2, report.Kruskal.DF)
}

func TestRunLogsSkippedGroups(t *testing.T) {
	ps := loadFixture(t)

	var buf bytes.Buffer
	report := Run(ps, DefaultOptions(), logging.NewWithWriter(&buf, "info", "json"))
	require.NotEmpty(t, report.Skipped)

	out := buf.String()
	assert.Contains(t, out, `"group":"Lakeside Hospital"`)
	assert.Contains(t, out, `"step":"shapiro-wilk"`)
	assert.Contains(t, out, `"n":2`)
	assert.Contains(t, out, `"level":"info"`)
}

func TestRunWithTooFewGroups(t *testing.T) {
	ps := models.NewPatientSet([]models.PatientRecord{
		{Name: "a", Gender: "Female", AdmissionType: "Urgent", Hospital: "H1", BillingAmount: 10, BillingValid: true},
		{Name: "b", Gender: "Male", AdmissionType: "Urgent", Hospital: "H1", BillingAmount: 20, BillingValid: true},
	})

	report := Run(ps, DefaultOptions(), zerolog.Nop())

	assert.Nil(t, report.HospitalBilling.Levene)
	assert.Nil(t, report.ANOVA)
	assert.Nil(t, report.Kruskal)
	assert.NotEmpty(t, report.Skipped)

	steps := make(map[string]bool)
	for _, s := range report.Skipped {
		steps[s.Step] = true
	}
	assert.True(t, steps["levene"])
	assert.True(t, steps["anova"])
	assert.True(t, steps["kruskal-wallis"])
}

func TestServiceReportCache(t *testing.T) {
	ps := loadFixture(t)
	svc := New(Options{}, zerolog.Nop())

	assert.Equal(t, DefaultOptions(), svc.Options())

	first := svc.Report(ps)
	assert.Same(t, first, svc.Report(ps))

	other := svc.Report(ps.Copy())
	assert.NotEqual(t, first.ID, other.ID)
}

func TestWriteText(t *testing.T) {
	report := Run(loadFixture(t), DefaultOptions(), zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "Chi-square: Gender x Admission Type")
	assert.Contains(t, out, "Shapiro-Wilk: Billing Amount by Hospital")
	assert.Contains(t, out, "Kruskal-Wallis: Age by Medical Condition")
	assert.Contains(t, out, "Lakeside")
	assert.Contains(t, out, "Skipped")
}
