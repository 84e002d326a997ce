// Package analyze computes descriptive statistics and linear trend fits
// over a time series. All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/derickschaefer/forecast/internal/model"
)

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summary holds descriptive statistics for a series.
type Summary struct {
	Series     string  `json:"series"`
	Count      int     `json:"count"`       // total observations
	Missing    int     `json:"missing"`     // NaN count
	MissingPct float64 `json:"missing_pct"` // percent missing
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Min        float64 `json:"min"`
	P25        float64 `json:"p25"`
	Median     float64 `json:"median"`
	P75        float64 `json:"p75"`
	Max        float64 `json:"max"`
	Skew       float64 `json:"skew"`
	First      float64 `json:"first"`      // first non-NaN value
	Last       float64 `json:"last"`       // last non-NaN value
	Change     float64 `json:"change"`     // Last - First
	ChangePct  float64 `json:"change_pct"` // (Last-First)/First * 100
}

// Summarize computes descriptive statistics over ts.
// NaN values are excluded from all numeric computations but counted.
func Summarize(ts model.TimeSeries) Summary {
	s := Summary{Series: ts.Name, Count: ts.Len()}
	if ts.Len() == 0 {
		return s
	}

	vals := ts.Known()
	s.Missing = s.Count - len(vals)
	s.MissingPct = float64(s.Missing) / float64(s.Count) * 100
	if len(vals) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Max = nan, nan, nan, nan
		s.Median, s.P25, s.P75, s.Skew = nan, nan, nan, nan
		s.First, s.Last, s.Change, s.ChangePct = nan, nan, nan, nan
		return s
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	s.Mean, s.Std = MeanStd(vals)
	s.Median = Percentile(sorted, 50)
	s.P25 = Percentile(sorted, 25)
	s.P75 = Percentile(sorted, 75)
	s.Skew = Skewness(vals, s.Mean, s.Std)

	s.First = vals[0]
	s.Last = vals[len(vals)-1]
	s.Change = s.Last - s.First
	if s.First != 0 {
		s.ChangePct = s.Change / math.Abs(s.First) * 100
	} else {
		s.ChangePct = math.NaN()
	}

	return s
}

// MeanStd returns the mean and sample standard deviation of vals.
// The deviation is 0 for fewer than two values.
func MeanStd(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return math.NaN(), math.NaN()
	}
	if len(vals) < 2 {
		return vals[0], 0
	}
	return stat.MeanStdDev(vals, nil)
}

// Percentile returns the p-th percentile of sorted using linear
// interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Quartiles returns Q1 and Q3 of vals, which need not be sorted.
func Quartiles(vals []float64) (q1, q3 float64) {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return Percentile(sorted, 25), Percentile(sorted, 75)
}

// Skewness returns the adjusted Fisher-Pearson sample skewness.
func Skewness(vals []float64, mean, std float64) float64 {
	n := float64(len(vals))
	if n < 3 || std == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		d := (v - mean) / std
		s += d * d * d
	}
	return s * n / ((n - 1) * (n - 2))
}

// ─── Trend ────────────────────────────────────────────────────────────────────

// TrendResult holds the output of a trend analysis.
type TrendResult struct {
	Series       string  `json:"series"`
	Slope        float64 `json:"slope"` // units per day
	Intercept    float64 `json:"intercept"`
	R2           float64 `json:"r2"`
	Direction    string  `json:"direction"`      // "up", "down", "flat"
	SlopePerYear float64 `json:"slope_per_year"` // slope * 365.25
}

// Trend fits an OLS line to the series.
// X values are days since the first observation date.
// NaN observations are excluded.
func Trend(ts model.TimeSeries) (TrendResult, error) {
	tr := TrendResult{Series: ts.Name}

	var xs, ys []float64
	var t0 int64
	first := true
	for _, o := range ts.Obs {
		if o.IsMissing() {
			continue
		}
		unix := o.Date.Unix()
		if first {
			t0 = unix
			first = false
		}
		xs = append(xs, float64(unix-t0)/86400)
		ys = append(ys, o.Value)
	}
	if len(xs) < 2 {
		return tr, fmt.Errorf("trend: need at least 2 non-NaN observations, got %d", len(xs))
	}

	tr.Intercept, tr.Slope = stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(tr.Slope) {
		tr.Intercept, tr.Slope = stat.Mean(ys, nil), 0
	}

	tr.R2 = r2(xs, ys, tr.Slope, tr.Intercept)
	tr.SlopePerYear = tr.Slope * 365.25

	switch {
	case tr.SlopePerYear > 0.01:
		tr.Direction = "up"
	case tr.SlopePerYear < -0.01:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, nil
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

// r2 is 0 for a constant series: a flat line explains no variance.
func r2(xs, ys []float64, slope, intercept float64) float64 {
	yMean := stat.Mean(ys, nil)
	var ssTot, ssRes float64
	for i := range xs {
		pred := slope*xs[i] + intercept
		ssTot += (ys[i] - yMean) * (ys[i] - yMean)
		ssRes += (ys[i] - pred) * (ys[i] - pred)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
