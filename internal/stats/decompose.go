package stats

import (
	"errors"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"gonum.org/v1/gonum/stat"
)

// Decomposition is a classical additive decomposition. Trend and Residual
// are NaN where the centered moving average is undefined.
type Decomposition struct {
	Period   int
	Trend    []float64
	Seasonal []float64
	Residual []float64
}

// Decompose splits vals into trend, seasonal and residual components.
// It needs at least two full periods.
func Decompose(vals []float64, period int) (Decomposition, error) {
	n := len(vals)
	if period < 2 {
		return Decomposition{}, errors.New("decompose: period must be >= 2")
	}
	if n < 2*period {
		return Decomposition{}, errors.New("decompose: need at least two full periods")
	}

	tr := CenteredMA(vals, period)

	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range vals {
		if math.IsNaN(tr[i]) {
			continue
		}
		sums[i%period] += v - tr[i]
		counts[i%period]++
	}
	idx := make([]float64, period)
	for j := range idx {
		if counts[j] > 0 {
			idx[j] = sums[j] / float64(counts[j])
		}
	}
	adj := stat.Mean(idx, nil)
	for j := range idx {
		idx[j] -= adj
	}

	d := Decomposition{
		Period:   period,
		Trend:    tr,
		Seasonal: make([]float64, n),
		Residual: make([]float64, n),
	}
	for i, v := range vals {
		d.Seasonal[i] = idx[i%period]
		d.Residual[i] = v - tr[i] - d.Seasonal[i]
	}
	return d, nil
}

// CenteredMA returns the centered moving average of vals: a plain window
// for odd periods and a 2×period average for even ones. Positions without
// a full window are NaN.
func CenteredMA(vals []float64, period int) []float64 {
	n := len(vals)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	need := period
	if period%2 == 0 {
		need++
	}
	if period < 1 || n < need {
		return out
	}

	ma, first := sma(vals, period)
	if period%2 == 1 {
		// window ending at first+j is centered (period-1)/2 earlier
		for j, v := range ma {
			out[first+j-(period-1)/2] = v
		}
		return out
	}
	ma2, first2 := sma(ma, 2)
	// ma[j] is centered at first+j-(period-1)/2, i.e. halfway between slots;
	// averaging neighbours recenters onto first+first2+j-period/2.
	for j, v := range ma2 {
		pos := first + first2 + j - period/2
		if pos >= 0 && pos < n {
			out[pos] = v
		}
	}
	return out
}

// sma computes the simple moving average and returns the input index of the
// last element of the first window.
func sma(vals []float64, period int) ([]float64, int) {
	if len(vals) < period {
		return nil, 0
	}
	ind := trend.NewSmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ind.Compute(helper.SliceToChan(vals)))
	return out, len(vals) - len(out)
}

// SeasonalStrength is max(0, 1 − Var(R)/Var(S+R)).
func SeasonalStrength(d Decomposition) float64 {
	var r, sr []float64
	for i := range d.Residual {
		if math.IsNaN(d.Residual[i]) {
			continue
		}
		r = append(r, d.Residual[i])
		sr = append(sr, d.Seasonal[i]+d.Residual[i])
	}
	return strength(r, sr)
}

// TrendStrength is max(0, 1 − Var(R)/Var(T+R)).
func TrendStrength(d Decomposition) float64 {
	var r, tr []float64
	for i := range d.Residual {
		if math.IsNaN(d.Residual[i]) {
			continue
		}
		r = append(r, d.Residual[i])
		tr = append(tr, d.Trend[i]+d.Residual[i])
	}
	return strength(r, tr)
}

func strength(resid, combined []float64) float64 {
	if len(resid) < 2 {
		return 0
	}
	vc := stat.Variance(combined, nil)
	if vc == 0 || math.IsNaN(vc) {
		return 0
	}
	return math.Max(0, 1-stat.Variance(resid, nil)/vc)
}
