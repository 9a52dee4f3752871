package models

import "time"

// ContingencyTable is a two-way frequency table of two categorical fields
type ContingencyTable struct {
	RowField Field       `json:"row_field" yaml:"row_field"`
	ColField Field       `json:"col_field" yaml:"col_field"`
	Rows     []string    `json:"rows" yaml:"rows"`
	Cols     []string    `json:"cols" yaml:"cols"`
	Counts   [][]float64 `json:"counts" yaml:"counts"`
}

// Total returns the sum of all cells
func (t *ContingencyTable) Total() float64 {
	var total float64
	for _, row := range t.Counts {
		for _, c := range row {
			total += c
		}
	}
	return total
}

// ChiSquareResult is a chi-square test of independence on a contingency table
type ChiSquareResult struct {
	Table          *ContingencyTable `json:"table" yaml:"table"`
	Statistic      float64           `json:"statistic" yaml:"statistic"`
	PValue         float64           `json:"p_value" yaml:"p_value"`
	DOF            int               `json:"dof" yaml:"dof"`
	Expected       [][]float64       `json:"expected" yaml:"expected"`
	YatesCorrected bool              `json:"yates_corrected" yaml:"yates_corrected"`
	Significant    bool              `json:"significant" yaml:"significant"`
	Interpretation string            `json:"interpretation" yaml:"interpretation"`
}

// NormalityResult is a Shapiro-Wilk test on one group
type NormalityResult struct {
	Group          string  `json:"group" yaml:"group"`
	N              int     `json:"n" yaml:"n"`
	W              float64 `json:"w" yaml:"w"`
	PValue         float64 `json:"p_value" yaml:"p_value"`
	Significant    bool    `json:"significant" yaml:"significant"`
	Interpretation string  `json:"interpretation" yaml:"interpretation"`
}

// HomogeneityResult is a Levene test of equal variances across groups
type HomogeneityResult struct {
	Groups         []string `json:"groups" yaml:"groups"`
	Statistic      float64  `json:"statistic" yaml:"statistic"`
	PValue         float64  `json:"p_value" yaml:"p_value"`
	DFBetween      int      `json:"df_between" yaml:"df_between"`
	DFWithin       int      `json:"df_within" yaml:"df_within"`
	Significant    bool     `json:"significant" yaml:"significant"`
	Interpretation string   `json:"interpretation" yaml:"interpretation"`
}

// ANOVAResult is a one-way analysis of variance
type ANOVAResult struct {
	Groups         int     `json:"groups" yaml:"groups"`
	N              int     `json:"n" yaml:"n"`
	F              float64 `json:"f" yaml:"f"`
	PValue         float64 `json:"p_value" yaml:"p_value"`
	DFBetween      int     `json:"df_between" yaml:"df_between"`
	DFWithin       int     `json:"df_within" yaml:"df_within"`
	Significant    bool    `json:"significant" yaml:"significant"`
	Interpretation string  `json:"interpretation" yaml:"interpretation"`
}

// KruskalResult is a Kruskal-Wallis H test
type KruskalResult struct {
	Groups         int     `json:"groups" yaml:"groups"`
	N              int     `json:"n" yaml:"n"`
	H              float64 `json:"h" yaml:"h"`
	PValue         float64 `json:"p_value" yaml:"p_value"`
	DF             int     `json:"df" yaml:"df"`
	TieCorrection  float64 `json:"tie_correction" yaml:"tie_correction"`
	Significant    bool    `json:"significant" yaml:"significant"`
	Interpretation string  `json:"interpretation" yaml:"interpretation"`
}

// SkipNotice records a step or group that was not tested and why
type SkipNotice struct {
	Step   string `json:"step" yaml:"step"`
	Group  string `json:"group,omitempty" yaml:"group,omitempty"`
	N      int    `json:"n,omitempty" yaml:"n,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// GroupAnalysis holds the per-group normality tests of one variable and the
// variance test across the groups that qualified
type GroupAnalysis struct {
	GroupField Field              `json:"group_field" yaml:"group_field"`
	Variable   string             `json:"variable" yaml:"variable"`
	Normality  []NormalityResult  `json:"normality" yaml:"normality"`
	Levene     *HomogeneityResult `json:"levene,omitempty" yaml:"levene,omitempty"`
	Qualifying []ValueGroup       `json:"-" yaml:"-"`
}

// AnalysisReport is the full output of the statistical block
type AnalysisReport struct {
	ID              string           `json:"id" yaml:"id"`
	GeneratedAt     time.Time        `json:"generated_at" yaml:"generated_at"`
	Alpha           float64          `json:"alpha" yaml:"alpha"`
	MinGroupSize    int              `json:"min_group_size" yaml:"min_group_size"`
	Records         int              `json:"records" yaml:"records"`
	ChiSquare       *ChiSquareResult `json:"chi_square,omitempty" yaml:"chi_square,omitempty"`
	HospitalBilling GroupAnalysis    `json:"hospital_billing" yaml:"hospital_billing"`
	ANOVA           *ANOVAResult     `json:"anova,omitempty" yaml:"anova,omitempty"`
	ConditionAge    GroupAnalysis    `json:"condition_age" yaml:"condition_age"`
	Kruskal         *KruskalResult   `json:"kruskal,omitempty" yaml:"kruskal,omitempty"`
	Skipped         []SkipNotice     `json:"skipped" yaml:"skipped"`
	Notes           []string         `json:"notes,omitempty" yaml:"notes,omitempty"`
}
