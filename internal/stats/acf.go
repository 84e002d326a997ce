package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ACF returns the sample autocorrelation for lags 0..maxLag.
// It returns nil for a constant series.
func ACF(vals []float64, maxLag int) []float64 {
	n := len(vals)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}
	mean := stat.Mean(vals, nil)
	var c0 float64
	for _, v := range vals {
		c0 += (v - mean) * (v - mean)
	}
	if c0 == 0 {
		return nil
	}
	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		var ck float64
		for i := k; i < n; i++ {
			ck += (vals[i] - mean) * (vals[i-k] - mean)
		}
		acf[k] = ck / c0
	}
	return acf
}

// PACF returns the partial autocorrelation for lags 0..maxLag using the
// Durbin-Levinson recursion. Index 0 is always 1.
func PACF(vals []float64, maxLag int) []float64 {
	if maxLag >= len(vals) {
		maxLag = len(vals) - 1
	}
	if maxLag < 1 {
		return nil
	}
	acf := ACF(vals, maxLag)
	if acf == nil {
		return nil
	}
	pacf := make([]float64, maxLag+1)
	pacf[0] = 1
	phi := make([][]float64, maxLag+1)
	for i := range phi {
		phi[i] = make([]float64, maxLag+1)
	}
	phi[1][1] = acf[1]
	pacf[1] = acf[1]
	for k := 2; k <= maxLag; k++ {
		num, den := acf[k], 1.0
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-j]
			den -= phi[k-1][j] * acf[j]
		}
		if den == 0 {
			continue
		}
		phi[k][k] = num / den
		pacf[k] = phi[k][k]
		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}
	}
	return pacf
}

// ConfBound is the approximate 95% significance bound 1.96/sqrt(n).
func ConfBound(n int) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	return 1.96 / math.Sqrt(float64(n))
}

// LeadingSignificant counts consecutive lags from 1 whose absolute
// correlation exceeds bound, stopping at limit.
func LeadingSignificant(corr []float64, bound float64, limit int) int {
	count := 0
	for lag := 1; lag < len(corr) && lag <= limit; lag++ {
		if math.Abs(corr[lag]) <= bound {
			break
		}
		count++
	}
	return count
}

// PeakLags returns lags ≥ 2 where acf has a local maximum above bound,
// in ascending order.
func PeakLags(acf []float64, bound float64) []int {
	var peaks []int
	for lag := 2; lag+1 < len(acf); lag++ {
		if acf[lag] > bound && acf[lag] > acf[lag-1] && acf[lag] >= acf[lag+1] {
			peaks = append(peaks, lag)
		}
	}
	return peaks
}
