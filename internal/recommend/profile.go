// Package recommend is the hyperparameter advisor. Profile derives a
// SeriesProfile from a clean series; ForFamily maps a profile to suggested
// hyperparameters with fixed heuristics. Both are deterministic, and the
// advisor degrades to documented defaults instead of failing.
package recommend

import (
	"fmt"
	"math"
	"sort"

	"github.com/derickschaefer/forecast/internal/analyze"
	"github.com/derickschaefer/forecast/internal/gapfill"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/stats"
	"github.com/derickschaefer/forecast/internal/transform"
)

// Options holds the advisor thresholds.
type Options struct {
	DeepLearningMinPoints int     // below this, deep-learning models are not recommended
	MaxLag                int     // upper bound on ACF/PACF lags
	MaxOrder              int     // cap on suggested AR/MA orders
	MinPointsForOrders    int     // below this, AR/MA orders fall back to 1
	SeasonalThreshold     float64 // seasonal strength that enables a seasonal component
	MaxDiff               int
}

// DefaultOptions returns the documented thresholds.
func DefaultOptions() Options {
	return Options{
		DeepLearningMinPoints: 100,
		MaxLag:                20,
		MaxOrder:              3,
		MinPointsForOrders:    20,
		SeasonalThreshold:     0.6,
		MaxDiff:               2,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DeepLearningMinPoints <= 0 {
		o.DeepLearningMinPoints = d.DeepLearningMinPoints
	}
	if o.MaxLag <= 0 {
		o.MaxLag = d.MaxLag
	}
	if o.MaxOrder <= 0 {
		o.MaxOrder = d.MaxOrder
	}
	if o.MinPointsForOrders <= 0 {
		o.MinPointsForOrders = d.MinPointsForOrders
	}
	if o.SeasonalThreshold <= 0 {
		o.SeasonalThreshold = d.SeasonalThreshold
	}
	if o.MaxDiff <= 0 || o.MaxDiff > 2 {
		o.MaxDiff = d.MaxDiff
	}
	return o
}

// calendarPeriods lists the natural cycles of common sampling frequencies.
var calendarPeriods = map[string][]int{
	"minutely":   {60},
	"hourly":     {24, 168},
	"daily":      {7, 365},
	"weekly":     {52},
	"monthly":    {12},
	"quarterly":  {4},
	"semiannual": {2},
}

// Profile computes the intrinsic statistics of ts. Missing values are
// ignored; a zero freq is inferred from the dates when possible.
func Profile(ts model.TimeSeries, freq model.Frequency, opts Options) model.SeriesProfile {
	opts = opts.withDefaults()
	vals := ts.Known()
	p := model.SeriesProfile{Series: ts.Name, Length: ts.Len(), Known: len(vals), Frequency: freq}
	if freq.IsZero() && ts.Len() >= 2 {
		if f, err := gapfill.InferFrequency(ts.Dates()); err == nil {
			p.Frequency = f
		}
	}
	if len(vals) == 0 {
		p.Mean, p.StdDev, p.Min, p.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		p.Scale = model.ScaleNone
		p.Stationarity = model.Stationarity{DiffOrder: 1, Note: "empty series"}
		return p
	}

	sum := analyze.Summarize(ts)
	p.Min, p.Max = sum.Min, sum.Max
	p.Mean, p.StdDev, p.Skewness = sum.Mean, sum.Std, sum.Skew
	p.Scale = scaleFor(p)

	p.Stationarity = stationarity(vals, opts.MaxDiff)

	work, err := transform.Diff(vals, p.Stationarity.DiffOrder)
	if err != nil || len(work) < 3 {
		work = vals
	}
	nlags := min(opts.MaxLag, len(work)/2-1)
	if nlags >= 1 {
		p.ACF = stats.ACF(work, nlags)
		p.PACF = stats.PACF(work, nlags)
	}
	p.ConfBound = stats.ConfBound(len(work))

	if tr, err := analyze.Trend(ts); err == nil {
		p.TrendR2 = tr.R2
	}
	p.TrendStrength = p.TrendR2
	seasonality(&p, vals, work)
	return p
}

// stationarity runs ADF on successive differences until one is stationary.
// A series that becomes constant after differencing counts as stationary at
// that order. When the test cannot run, or no order up to maxDiff passes,
// the order falls back to 1.
func stationarity(vals []float64, maxDiff int) model.Stationarity {
	st := model.Stationarity{DiffOrder: 1}
	for d := 0; d <= maxDiff; d++ {
		series, err := transform.Diff(vals, d)
		if err != nil {
			break
		}
		if _, sd := analyze.MeanStd(series); sd == 0 && len(series) > 1 {
			if d == 0 {
				st.Note = "constant series; stationarity test skipped"
				return st
			}
			st.Ran, st.Stationary, st.DiffOrder = true, true, d
			st.Note = fmt.Sprintf("constant after %d difference(s)", d)
			return st
		}
		res, ok := stats.ADF(series, 0)
		if !ok {
			if d == 0 {
				st.Note = fmt.Sprintf("stationarity test needs at least %d points", stats.ADFMinPoints)
				return st
			}
			break
		}
		st.Ran = true
		st.Tests = append(st.Tests, model.ADFStep{
			Order: d, Statistic: res.Statistic, PValue: res.PValue, Lags: res.Lags, Stationary: res.Stationary,
		})
		if res.Stationary {
			st.Stationary, st.DiffOrder = true, d
			return st
		}
	}
	st.Note = fmt.Sprintf("not stationary up to d=%d; using d=1", maxDiff)
	return st
}

// harmonicMargin is the extra strength a multiple of the dominant period
// needs before it replaces it.
const harmonicMargin = 0.05

// seasonality fills the candidate periods, the dominant period and the
// seasonal and trend strengths.
func seasonality(p *model.SeriesProfile, vals, work []float64) {
	seen := map[int]bool{}
	var cands []int
	add := func(period int) {
		if period >= 2 && len(vals) >= 2*period && !seen[period] {
			seen[period] = true
			cands = append(cands, period)
		}
	}
	for _, period := range calendarPeriods[p.Frequency.Label] {
		add(period)
	}
	if acf := stats.ACF(work, min(len(work)/2, 400)); acf != nil {
		peaks := stats.PeakLags(acf, stats.ConfBound(len(work)))
		for i := 0; i < len(peaks) && i < 3; i++ {
			add(peaks[i])
		}
	}
	sort.Ints(cands)
	p.SeasonalPeriods = cands

	for _, period := range cands {
		d, err := stats.Decompose(vals, period)
		if err != nil {
			continue
		}
		s := stats.SeasonalStrength(d)
		// A multiple of the current period must explain clearly more.
		need := p.SeasonalStrength
		if p.DominantPeriod > 0 && period%p.DominantPeriod == 0 {
			need += harmonicMargin
		}
		if s > need {
			p.SeasonalStrength = s
			p.DominantPeriod = period
			p.TrendStrength = stats.TrendStrength(d)
		}
	}
}

// scaleFor suggests a normalization strategy: none for constant input,
// min-max for non-negative roughly symmetric data, z-score otherwise.
func scaleFor(p model.SeriesProfile) string {
	switch {
	case p.StdDev == 0 || math.IsNaN(p.StdDev):
		return model.ScaleNone
	case p.Min >= 0 && math.Abs(p.Skewness) <= 0.5:
		return model.ScaleMinMax
	default:
		return model.ScaleStandard
	}
}
