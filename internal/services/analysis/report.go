package analysis

import (
	"fmt"
	"io"
	"text/tabwriter"

	"healthdash/internal/models"
)

// WriteText prints a report as a plain-text summary, one block per test
func WriteText(w io.Writer, rep *models.AnalysisReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Statistical analysis %s\n", rep.ID)
	fmt.Fprintf(tw, "records\t%d\n", rep.Records)
	fmt.Fprintf(tw, "alpha\t%g\n", rep.Alpha)
	fmt.Fprintf(tw, "min group size\t%d\n\n", rep.MinGroupSize)

	fmt.Fprintln(tw, "Chi-square: Gender x Admission Type")
	if c := rep.ChiSquare; c != nil {
		fmt.Fprintf(tw, "  chi2\t%.4f\n", c.Statistic)
		fmt.Fprintf(tw, "  dof\t%d\n", c.DOF)
		fmt.Fprintf(tw, "  p\t%.4g\n", c.PValue)
		if c.YatesCorrected {
			fmt.Fprintln(tw, "  yates\tapplied")
		}
		fmt.Fprintf(tw, "  \t%s\n", c.Interpretation)
	} else {
		fmt.Fprintln(tw, "  not computed")
	}
	fmt.Fprintln(tw)

	writeGroupAnalysis(tw, rep.HospitalBilling)
	fmt.Fprintln(tw, "One-way ANOVA: Billing Amount by Hospital")
	if a := rep.ANOVA; a != nil {
		fmt.Fprintf(tw, "  F\t%.4f\n", a.F)
		fmt.Fprintf(tw, "  df\t%d, %d\n", a.DFBetween, a.DFWithin)
		fmt.Fprintf(tw, "  p\t%.4g\n", a.PValue)
		fmt.Fprintf(tw, "  \t%s\n", a.Interpretation)
	} else {
		fmt.Fprintln(tw, "  not computed")
	}
	fmt.Fprintln(tw)

	writeGroupAnalysis(tw, rep.ConditionAge)
	fmt.Fprintln(tw, "Kruskal-Wallis: Age by Medical Condition")
	if k := rep.Kruskal; k != nil {
		fmt.Fprintf(tw, "  H\t%.4f\n", k.H)
		fmt.Fprintf(tw, "  df\t%d\n", k.DF)
		fmt.Fprintf(tw, "  p\t%.4g\n", k.PValue)
		fmt.Fprintf(tw, "  \t%s\n", k.Interpretation)
	} else {
		fmt.Fprintln(tw, "  not computed")
	}

	if len(rep.Skipped) > 0 {
		fmt.Fprintln(tw, "\nSkipped")
		for _, s := range rep.Skipped {
			label := s.Step
			if s.Group != "" {
				label = fmt.Sprintf("%s [%s, n=%d]", s.Step, s.Group, s.N)
			}
			fmt.Fprintf(tw, "  %s\t%s\n", label, s.Reason)
		}
	}
	for _, note := range rep.Notes {
		fmt.Fprintf(tw, "\nnote: %s\n", note)
	}

	return tw.Flush()
}

func writeGroupAnalysis(w io.Writer, ga models.GroupAnalysis) {
	fmt.Fprintf(w, "Shapiro-Wilk: %s by %s\n", ga.Variable, ga.GroupField)
	if len(ga.Normality) == 0 {
		fmt.Fprintln(w, "  no qualifying groups")
	}
	for _, n := range ga.Normality {
		fmt.Fprintf(w, "  %s\tn=%d\tW=%.4f\tp=%.4g\n", n.Group, n.N, n.W, n.PValue)
	}
	if l := ga.Levene; l != nil {
		fmt.Fprintf(w, "Levene: %s by %s\n", ga.Variable, ga.GroupField)
		fmt.Fprintf(w, "  W\t%.4f\n", l.Statistic)
		fmt.Fprintf(w, "  p\t%.4g\n", l.PValue)
		fmt.Fprintf(w, "  \t%s\n", l.Interpretation)
	}
	fmt.Fprintln(w)
}
