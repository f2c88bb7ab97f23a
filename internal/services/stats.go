package services

import (
	"math"
	"sort"
)

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculateSampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := calculateMean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	variance := sumSquares / float64(len(values)-1)
	return math.Sqrt(variance)
}

// calculatePopStdDev is the population standard deviation, used for the
// cross-model uncertainty proxy (three samples) and the forecast band.
func calculatePopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := calculateMean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

func calculateMedian(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// calculatePercentile uses linear interpolation between closest ranks, the
// same method the feature percentile threshold was originally defined with.
func calculatePercentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// fitLinearTrend fits y = slope*x + intercept by ordinary least squares over
// a zero-based index. A degenerate x spread yields a flat trend at the mean.
func fitLinearTrend(y []float64) (slope, intercept float64) {
	n := len(y)
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, y[0]
	}

	meanX := float64(n-1) / 2
	meanY := calculateMean(y)

	var numerator, denominator float64
	for i, v := range y {
		dx := float64(i) - meanX
		numerator += dx * (v - meanY)
		denominator += dx * dx
	}
	if denominator == 0 {
		return 0, meanY
	}
	slope = numerator / denominator
	intercept = meanY - slope*meanX
	return slope, intercept
}

// zScoreForConfidence maps a two-sided confidence level to its normal
// quantile via the Acklam inverse-CDF approximation. 0.95 maps to ~1.96,
// 0.99 to ~2.576; arbitrary levels interpolate correctly instead of
// collapsing to a fixed pair of constants.
func zScoreForConfidence(level float64) float64 {
	if level <= 0 || level >= 1 {
		return 1.96
	}
	return inverseNormalCDF(0.5 + level/2)
}

// inverseNormalCDF computes the standard normal quantile function using
// Acklam's rational approximation (relative error below 1.15e-9).
func inverseNormalCDF(p float64) float64 {
	if p <= 0 || p >= 1 {
		return math.NaN()
	}

	a := [6]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := [5]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := [6]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := [4]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	const pLow = 0.02425
	const pHigh = 1 - pLow

	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p > pHigh:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	default:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
