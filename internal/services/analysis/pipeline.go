package analysis

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"healthdash/internal/models"
)

// Options tunes the statistical block
type Options struct {
	Alpha        float64
	MinGroupSize int
}

// DefaultOptions returns alpha 0.05 and a minimum group size of 3
func DefaultOptions() Options {
	return Options{Alpha: 0.05, MinGroupSize: 3}
}

// Service runs the statistical block and keeps the report of the last dataset
type Service struct {
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	source *models.PatientSet
	report *models.AnalysisReport
}

// New creates an analysis service
func New(opts Options, logger zerolog.Logger) *Service {
	if opts.Alpha <= 0 || opts.Alpha >= 1 {
		opts.Alpha = DefaultOptions().Alpha
	}
	if opts.MinGroupSize < 3 {
		opts.MinGroupSize = DefaultOptions().MinGroupSize
	}
	return &Service{
		opts:   opts,
		logger: logger.With().Str("component", "analysis").Logger(),
	}
}

// Options returns the effective options
func (s *Service) Options() Options {
	return s.opts
}

// Report returns the report for ps, running the block only when ps is a
// different dataset from the previous call.
func (s *Service) Report(ps *models.PatientSet) *models.AnalysisReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.report != nil && s.source == ps {
		return s.report
	}

	s.report = Run(ps, s.opts, s.logger)
	s.source = ps
	return s.report
}

// Run executes every step of the statistical block over the unfiltered table
func Run(ps *models.PatientSet, opts Options, logger zerolog.Logger) *models.AnalysisReport {
	r := &runner{
		opts:   opts,
		logger: logger,
		report: &models.AnalysisReport{
			ID:           uuid.New().String(),
			GeneratedAt:  time.Now(),
			Alpha:        opts.Alpha,
			MinGroupSize: opts.MinGroupSize,
			Records:      ps.Len(),
			Skipped:      []models.SkipNotice{},
		},
	}

	r.chiSquare(ps)
	r.report.HospitalBilling = r.groupAnalysis(ps, models.FieldHospital, "Billing Amount", models.BillingValue)
	r.anova(ps)
	r.report.ConditionAge = r.groupAnalysis(ps, models.FieldMedicalCondition, "Age", models.AgeValue)
	r.kruskal(r.report.ConditionAge)

	logger.Info().
		Str("report_id", r.report.ID).
		Int("records", r.report.Records).
		Int("skipped", len(r.report.Skipped)).
		Msg("statistical analysis complete")

	return r.report
}

type runner struct {
	opts   Options
	logger zerolog.Logger
	report *models.AnalysisReport
}

func (r *runner) skip(step, group string, n int, reason string) {
	r.report.Skipped = append(r.report.Skipped, models.SkipNotice{
		Step:   step,
		Group:  group,
		N:      n,
		Reason: reason,
	})

	if group != "" {
		r.logger.Info().Str("step", step).Str("group", group).Int("n", n).Msg("skipped: " + reason)
		return
	}
	r.logger.Warn().Str("step", step).Msg("skipped: " + reason)
}

func (r *runner) significant(p float64) bool {
	return p < r.opts.Alpha
}

func (r *runner) chiSquare(ps *models.PatientSet) {
	table := Crosstab(ps, models.FieldGender, models.FieldAdmissionType)
	res, err := ChiSquare(table)
	if err != nil {
		r.skip("chi-square", "", 0, err.Error())
		return
	}

	res.Significant = r.significant(res.PValue)
	if res.Significant {
		res.Interpretation = fmt.Sprintf("Gender and Admission Type are associated (p=%.4g < %.2g); reject independence.",
			res.PValue, r.opts.Alpha)
	} else {
		res.Interpretation = fmt.Sprintf("No evidence of association between Gender and Admission Type (p=%.4g >= %.2g).",
			res.PValue, r.opts.Alpha)
	}
	r.report.ChiSquare = res

	r.logger.Info().
		Float64("chi2", res.Statistic).
		Float64("p_value", res.PValue).
		Int("dof", res.DOF).
		Bool("yates", res.YatesCorrected).
		Msg("chi-square test of independence: Gender x Admission Type")
}

// groupAnalysis runs Shapiro-Wilk per group and Levene across the groups
// with at least MinGroupSize observations
func (r *runner) groupAnalysis(ps *models.PatientSet, field models.Field, variable string,
	value func(*models.PatientRecord) (float64, bool)) models.GroupAnalysis {
	ga := models.GroupAnalysis{
		GroupField: field,
		Variable:   variable,
		Normality:  []models.NormalityResult{},
	}

	for _, g := range ps.GroupValues(field, value) {
		n := len(g.Values)
		if n < r.opts.MinGroupSize {
			r.skip("shapiro-wilk", g.Key, n, fmt.Sprintf("fewer than %d observations", r.opts.MinGroupSize))
			continue
		}
		ga.Qualifying = append(ga.Qualifying, g)

		w, p, err := ShapiroWilk(g.Values)
		if err != nil {
			r.skip("shapiro-wilk", g.Key, n, err.Error())
			continue
		}
		if n > ShapiroMaxN {
			r.report.Notes = append(r.report.Notes,
				fmt.Sprintf("%s group %q has %d observations; the Shapiro-Wilk p-value may be inaccurate above %d.",
					field, g.Key, n, ShapiroMaxN))
		}

		res := models.NormalityResult{
			Group:       g.Key,
			N:           n,
			W:           w,
			PValue:      p,
			Significant: r.significant(p),
		}
		if res.Significant {
			res.Interpretation = fmt.Sprintf("%s for %s departs from normality.", variable, g.Key)
		} else {
			res.Interpretation = fmt.Sprintf("%s for %s is consistent with normality.", variable, g.Key)
		}
		ga.Normality = append(ga.Normality, res)

		r.logger.Info().
			Str("field", string(field)).
			Str("group", g.Key).
			Int("n", n).
			Float64("w", w).
			Float64("p_value", p).
			Msg("shapiro-wilk normality test")
	}

	if len(ga.Qualifying) < 2 {
		r.skip("levene", "", 0, fmt.Sprintf("%s: fewer than 2 %s groups with at least %d observations",
			variable, field, r.opts.MinGroupSize))
		return ga
	}

	lev, err := Levene(groupSlices(ga.Qualifying))
	if err != nil {
		r.skip("levene", "", 0, fmt.Sprintf("%s by %s: %v", variable, field, err))
		return ga
	}

	hr := &models.HomogeneityResult{
		Groups:      groupKeys(ga.Qualifying),
		Statistic:   lev.Statistic,
		PValue:      lev.PValue,
		DFBetween:   lev.DFBetween,
		DFWithin:    lev.DFWithin,
		Significant: r.significant(lev.PValue),
	}
	if hr.Significant {
		hr.Interpretation = fmt.Sprintf("Variances of %s differ across %s groups.", variable, field)
	} else {
		hr.Interpretation = fmt.Sprintf("No evidence of unequal variances of %s across %s groups.", variable, field)
	}
	ga.Levene = hr

	r.logger.Info().
		Str("field", string(field)).
		Int("groups", len(ga.Qualifying)).
		Float64("statistic", lev.Statistic).
		Float64("p_value", lev.PValue).
		Msg("levene homogeneity of variances")

	return ga
}

func (r *runner) anova(ps *models.PatientSet) {
	var groups []models.ValueGroup
	for _, g := range ps.GroupValues(models.FieldHospital, models.BillingValue) {
		if len(g.Values) > 0 {
			groups = append(groups, g)
		}
	}

	res, err := OneWayANOVA(groupSlices(groups))
	if err != nil {
		r.skip("anova", "", 0, "Billing Amount by Hospital: "+err.Error())
		return
	}

	ar := &models.ANOVAResult{
		Groups:      len(groups),
		N:           res.N,
		F:           res.Statistic,
		PValue:      res.PValue,
		DFBetween:   res.DFBetween,
		DFWithin:    res.DFWithin,
		Significant: r.significant(res.PValue),
	}
	if ar.Significant {
		ar.Interpretation = "Mean Billing Amount differs across hospitals."
	} else {
		ar.Interpretation = "No evidence that mean Billing Amount differs across hospitals."
	}
	r.report.ANOVA = ar

	r.logger.Info().
		Int("groups", ar.Groups).
		Float64("f", ar.F).
		Float64("p_value", ar.PValue).
		Msg("one-way anova: Billing Amount by Hospital")
}

func (r *runner) kruskal(ga models.GroupAnalysis) {
	if len(ga.Qualifying) < 2 {
		r.skip("kruskal-wallis", "", 0, fmt.Sprintf("fewer than 2 %s groups with at least %d observations",
			ga.GroupField, r.opts.MinGroupSize))
		return
	}

	res, err := KruskalWallis(groupSlices(ga.Qualifying))
	if err != nil {
		r.skip("kruskal-wallis", "", 0, fmt.Sprintf("%s by %s: %v", ga.Variable, ga.GroupField, err))
		return
	}

	kr := &models.KruskalResult{
		Groups:        len(ga.Qualifying),
		N:             res.N,
		H:             res.H,
		PValue:        res.PValue,
		DF:            res.DF,
		TieCorrection: res.TieCorrection,
		Significant:   r.significant(res.PValue),
	}
	if kr.Significant {
		kr.Interpretation = fmt.Sprintf("%s distributions differ across %s groups.", ga.Variable, ga.GroupField)
	} else {
		kr.Interpretation = fmt.Sprintf("No evidence that %s distributions differ across %s groups.", ga.Variable, ga.GroupField)
	}
	r.report.Kruskal = kr

	r.logger.Info().
		Int("groups", kr.Groups).
		Float64("h", kr.H).
		Float64("p_value", kr.PValue).
		Msg("kruskal-wallis H test: Age by Medical Condition")
}

func groupSlices(groups []models.ValueGroup) [][]float64 {
	out := make([][]float64, len(groups))
	for i, g := range groups {
		out[i] = g.Values
	}
	return out
}

func groupKeys(groups []models.ValueGroup) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Key
	}
	return out
}
