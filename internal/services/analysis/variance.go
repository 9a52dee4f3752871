package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FTestResult is the outcome of an F-distributed between/within test
type FTestResult struct {
	Statistic float64
	PValue    float64
	DFBetween int
	DFWithin  int
	N         int
}

// Levene tests equality of variances across groups using deviations from
// each group's median (the Brown-Forsythe variant).
func Levene(groups [][]float64) (*FTestResult, error) {
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: levene needs at least 2 groups, got %d", ErrInsufficientGroups, len(groups))
	}

	deviations := make([][]float64, len(groups))
	for i, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("%w: group %d is empty", ErrInsufficientData, i)
		}
		med := median(g)
		z := make([]float64, len(g))
		for j, v := range g {
			z[j] = math.Abs(v - med)
		}
		deviations[i] = z
	}

	res, err := oneWay(deviations)
	if err != nil {
		return nil, fmt.Errorf("levene: %w", err)
	}
	return res, nil
}

// OneWayANOVA tests whether the group means are equal
func OneWayANOVA(groups [][]float64) (*FTestResult, error) {
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: anova needs at least 2 groups, got %d", ErrInsufficientGroups, len(groups))
	}
	for i, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("%w: group %d is empty", ErrInsufficientData, i)
		}
	}

	res, err := oneWay(groups)
	if err != nil {
		return nil, fmt.Errorf("anova: %w", err)
	}
	return res, nil
}

// oneWay computes the one-way ANOVA F statistic over non-empty groups
func oneWay(groups [][]float64) (*FTestResult, error) {
	k := len(groups)
	var n int
	var grandSum float64
	for _, g := range groups {
		n += len(g)
		for _, v := range g {
			grandSum += v
		}
	}
	if n <= k {
		return nil, fmt.Errorf("%w: %d observations in %d groups leave no within-group degrees of freedom",
			ErrInsufficientData, n, k)
	}
	grandMean := grandSum / float64(n)

	var ssBetween, ssWithin float64
	for _, g := range groups {
		mean := stat.Mean(g, nil)
		ssBetween += float64(len(g)) * (mean - grandMean) * (mean - grandMean)
		for _, v := range g {
			ssWithin += (v - mean) * (v - mean)
		}
	}

	if ssWithin == 0 {
		return nil, fmt.Errorf("%w: zero within-group variance", ErrDegenerate)
	}

	dfBetween := k - 1
	dfWithin := n - k
	f := (ssBetween / float64(dfBetween)) / (ssWithin / float64(dfWithin))

	return &FTestResult{
		Statistic: f,
		PValue:    distuv.F{D1: float64(dfBetween), D2: float64(dfWithin)}.Survival(f),
		DFBetween: dfBetween,
		DFWithin:  dfWithin,
		N:         n,
	}, nil
}

// KruskalWallisResult is the outcome of a Kruskal-Wallis H test
type KruskalWallisResult struct {
	H             float64
	PValue        float64
	DF            int
	N             int
	TieCorrection float64
}

// KruskalWallis tests whether the groups come from the same distribution,
// ranking all observations together and correcting for ties.
func KruskalWallis(groups [][]float64) (*KruskalWallisResult, error) {
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: kruskal-wallis needs at least 2 groups, got %d", ErrInsufficientGroups, len(groups))
	}

	type obs struct {
		value float64
		group int
	}
	var all []obs
	for i, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("%w: group %d is empty", ErrInsufficientData, i)
		}
		for _, v := range g {
			all = append(all, obs{value: v, group: i})
		}
	}
	n := len(all)
	sort.SliceStable(all, func(i, j int) bool { return all[i].value < all[j].value })

	rankSums := make([]float64, len(groups))
	var tieSum float64
	for i := 0; i < n; {
		j := i
		for j < n && all[j].value == all[i].value {
			j++
		}
		// Positions i..j-1 share the average of ranks i+1..j
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			rankSums[all[k].group] += avg
		}
		t := float64(j - i)
		tieSum += t*t*t - t
		i = j
	}

	nf := float64(n)
	correction := 1 - tieSum/(nf*nf*nf-nf)
	if correction == 0 {
		return nil, fmt.Errorf("%w: all observations are identical", ErrDegenerate)
	}

	var h float64
	for i, g := range groups {
		h += rankSums[i] * rankSums[i] / float64(len(g))
	}
	h = 12/(nf*(nf+1))*h - 3*(nf+1)
	h /= correction

	df := len(groups) - 1
	return &KruskalWallisResult{
		H:             h,
		PValue:        distuv.ChiSquared{K: float64(df)}.Survival(h),
		DF:            df,
		N:             n,
		TieCorrection: correction,
	}, nil
}

func median(x []float64) float64 {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
