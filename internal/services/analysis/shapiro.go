package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Polynomial coefficients of Royston's AS R94 approximation
var (
	swG  = []float64{-2.273, 0.459}
	swC1 = []float64{0.0, 0.221157, -0.147981, -2.07119, 4.434685, -2.706056}
	swC2 = []float64{0.0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.5440, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
)

// ShapiroMaxN is the largest sample for which the p-value approximation is validated
const ShapiroMaxN = 5000

// ShapiroWilk tests whether x comes from a normal distribution.
// It returns the W statistic and its p-value; x must hold at least 3 values
// and not be constant.
func ShapiroWilk(x []float64) (w, p float64, err error) {
	n := len(x)
	if n < 3 {
		return 0, 0, fmt.Errorf("%w: shapiro-wilk needs at least 3 observations, got %d", ErrInsufficientData, n)
	}

	sorted := make([]float64, n)
	copy(sorted, x)
	sort.Float64s(sorted)

	rng := sorted[n-1] - sorted[0]
	if rng < 1e-19*math.Max(1, math.Abs(sorted[0])) {
		return 0, 0, fmt.Errorf("%w: all observations are identical", ErrDegenerate)
	}

	a := swilkCoefficients(n)

	// W is the squared correlation between the ordered sample and the
	// antisymmetric coefficient vector.
	var mean float64
	for _, v := range sorted {
		mean += v / rng
	}
	mean /= float64(n)

	var num, ssa, ssx float64
	for i := 0; i < n; i++ {
		j := n - 1 - i
		var c float64
		switch {
		case i < j:
			c = -a[i]
		case i > j:
			c = a[j]
		}
		xi := sorted[i]/rng - mean
		num += c * xi
		ssa += c * c
		ssx += xi * xi
	}
	w = num * num / (ssa * ssx)
	if w > 1 {
		w = 1
	}

	if n == 3 {
		const pi6 = 6 / math.Pi
		const stqr = math.Pi / 3
		p = pi6 * (math.Asin(math.Sqrt(w)) - stqr)
		return w, math.Min(math.Max(p, 0), 1), nil
	}

	if w >= 1 {
		return w, 1, nil
	}

	an := float64(n)
	y := math.Log(1 - w)
	var m, s float64
	if n <= 11 {
		gamma := poly(swG, an)
		if y >= gamma {
			return w, 1e-99, nil
		}
		y = -math.Log(gamma - y)
		m = poly(swC3, an)
		s = math.Exp(poly(swC4, an))
	} else {
		xx := math.Log(an)
		m = poly(swC5, xx)
		s = math.Exp(poly(swC6, xx))
	}

	p = distuv.Normal{Mu: m, Sigma: s}.Survival(y)
	return w, p, nil
}

// swilkCoefficients returns the first n/2 Shapiro-Wilk weights
func swilkCoefficients(n int) []float64 {
	half := n / 2
	a := make([]float64, half)
	if n == 3 {
		a[0] = math.Sqrt(0.5)
		return a
	}

	an25 := float64(n) + 0.25
	m := make([]float64, half)
	var summ2 float64
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / an25)
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(float64(n))

	a1 := poly(swC1, rsn) - m[0]/ssumm2

	var first int
	var fac float64
	if n > 5 {
		first = 2
		a2 := -m[1]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*m[0]*m[0] - 2*m[1]*m[1]) / (1 - 2*a1*a1 - 2*a2*a2))
		a[1] = a2
	} else {
		first = 1
		fac = math.Sqrt((summ2 - 2*m[0]*m[0]) / (1 - 2*a1*a1))
	}
	a[0] = a1
	for i := first; i < half; i++ {
		a[i] = -m[i] / fac
	}
	return a
}

// poly evaluates c[0] + c[1]x + c[2]x^2 + ...
func poly(c []float64, x float64) float64 {
	result := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		result = result*x + c[i]
	}
	return result
}
