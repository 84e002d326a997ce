package recommend

import (
	"fmt"
	"math"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/stats"
)

// Conservative defaults used whenever a statistic is unavailable.
const (
	DefaultP = 1
	DefaultD = 1
	DefaultQ = 1
)

// ForFamily maps a profile to suggested hyperparameters for one model family.
// Only a missing or empty profile and an unknown family are errors.
func ForFamily(p *model.SeriesProfile, family model.Family, opts Options) (model.Recommendation, error) {
	if p == nil || p.Length == 0 || p.Known == 0 {
		return model.Recommendation{}, &model.UnsupportedConfigurationError{
			Op: "recommend", Key: "profile", Value: "empty", Reason: "a profile of a non-empty series is required",
		}
	}
	opts = opts.withDefaults()
	rec := model.Recommendation{
		Family:       family,
		Recommended:  true,
		Params:       model.Hyperparameters{},
		Explanations: map[string]string{},
	}
	switch family {
	case model.FamilyClassical:
		classical(p, opts, &rec)
	case model.FamilyBusiness:
		business(p, opts, &rec)
	case model.FamilyDeepLearning:
		deepLearning(p, opts, &rec)
	default:
		return model.Recommendation{}, &model.UnsupportedConfigurationError{
			Op: "recommend", Key: "model family", Value: string(family),
		}
	}
	return rec, nil
}

// seasonal reports whether the profile has a usable strong cycle.
func seasonal(p *model.SeriesProfile, opts Options) bool {
	return p.DominantPeriod >= 2 && p.SeasonalStrength >= opts.SeasonalThreshold
}

func seasonalNote(p *model.SeriesProfile, opts Options) string {
	if p.DominantPeriod < 2 {
		return "no seasonal cycle detected"
	}
	if seasonal(p, opts) {
		return fmt.Sprintf("seasonal strength %.2f at period %d", p.SeasonalStrength, p.DominantPeriod)
	}
	return fmt.Sprintf("seasonal strength %.2f at period %d is below %.2f", p.SeasonalStrength, p.DominantPeriod, opts.SeasonalThreshold)
}

// ─── Classical ────────────────────────────────────────────────────────────────

func classical(p *model.SeriesProfile, opts Options, rec *model.Recommendation) {
	d, dNote := diffOrder(p, opts)
	rec.Params["d"] = d
	rec.Explanations["d"] = dNote

	ar, arNote := order(p.PACF, p.ConfBound, p.Known, "PACF", opts)
	rec.Params["p"] = ar
	rec.Explanations["p"] = arNote

	ma, maNote := order(p.ACF, p.ConfBound, p.Known, "ACF", opts)
	rec.Params["q"] = ma
	rec.Explanations["q"] = maNote

	rec.Params["seasonal"] = seasonal(p, opts)
	rec.Explanations["seasonal"] = seasonalNote(p, opts)
	if seasonal(p, opts) {
		rec.Params["m"] = p.DominantPeriod
		rec.Explanations["m"] = fmt.Sprintf("dominant cycle of %d %s steps", p.DominantPeriod, p.Frequency)
	}
}

func diffOrder(p *model.SeriesProfile, opts Options) (int, string) {
	st := p.Stationarity
	if !st.Ran {
		note := "stationarity test could not run"
		if st.Note != "" {
			note = st.Note
		}
		return DefaultD, note + fmt.Sprintf("; default d=%d", DefaultD)
	}
	d := min(st.DiffOrder, opts.MaxDiff)
	if !st.Stationary {
		return d, st.Note
	}
	if len(st.Tests) == 0 {
		return d, st.Note
	}
	last := st.Tests[len(st.Tests)-1]
	if d == 0 {
		return 0, fmt.Sprintf("ADF p=%.3f: stationary without differencing", last.PValue)
	}
	first := st.Tests[0]
	return d, fmt.Sprintf("ADF p=%.3f at d=0; stationary after d=%d (p=%.3f)", first.PValue, d, last.PValue)
}

// order counts leading significant correlation lags, falling back to 1.
func order(corr []float64, bound float64, n int, name string, opts Options) (int, string) {
	if n < opts.MinPointsForOrders || len(corr) < 2 {
		return 1, fmt.Sprintf("fewer than %d points for %s; default 1", opts.MinPointsForOrders, name)
	}
	k := stats.LeadingSignificant(corr, bound, opts.MaxOrder)
	if k == 0 {
		return 1, fmt.Sprintf("no significant %s lags beyond ±%.3f; default 1", name, bound)
	}
	return k, fmt.Sprintf("%d leading %s lag(s) beyond ±%.3f", k, name, bound)
}

// ─── Business ─────────────────────────────────────────────────────────────────

func business(p *model.SeriesProfile, opts Options, rec *model.Recommendation) {
	cps := 0.05
	cpsNote := "moderate trend flexibility"
	switch {
	case p.TrendStrength >= 0.8 && !p.Stationarity.Stationary:
		cps, cpsNote = 0.1, fmt.Sprintf("strong non-stationary trend (%.2f); allow more changepoints", p.TrendStrength)
	case p.TrendStrength < 0.3:
		cps, cpsNote = 0.01, fmt.Sprintf("weak trend (%.2f); keep the trend rigid", p.TrendStrength)
	}
	rec.Params["changepoint_prior_scale"] = cps
	rec.Explanations["changepoint_prior_scale"] = cpsNote

	if seasonal(p, opts) {
		rec.Params["seasonality_prior_scale"] = 10.0
		rec.Params["seasonal_period"] = p.DominantPeriod
	} else {
		rec.Params["seasonality_prior_scale"] = 1.0
		rec.Params["seasonal_period"] = 0
	}
	rec.Explanations["seasonality_prior_scale"] = seasonalNote(p, opts)
	rec.Explanations["seasonal_period"] = seasonalNote(p, opts)

	mode := "additive"
	modeNote := "seasonal swings assumed constant in size"
	if seasonal(p, opts) && p.Min > 0 && p.TrendStrength >= 0.6 {
		mode, modeNote = "multiplicative", "positive trending series with strong seasonality; swings scale with level"
	}
	rec.Params["seasonality_mode"] = mode
	rec.Explanations["seasonality_mode"] = modeNote
}

// ─── Deep learning ────────────────────────────────────────────────────────────

func deepLearning(p *model.SeriesProfile, opts Options, rec *model.Recommendation) {
	if p.Known < opts.DeepLearningMinPoints {
		rec.Recommended = false
		rec.Reason = fmt.Sprintf("series has %d points; deep-learning models need at least %d", p.Known, opts.DeepLearningMinPoints)
		rec.Params = nil
		rec.Explanations = nil
		return
	}

	chunk := 5
	chunkNote := "default lookback window"
	if seasonal(p, opts) && p.DominantPeriod >= 3 && p.DominantPeriod <= 30 {
		chunk, chunkNote = p.DominantPeriod, fmt.Sprintf("one full cycle of %d steps", p.DominantPeriod)
	}
	rec.Params["input_chunk_length"] = chunk
	rec.Explanations["input_chunk_length"] = chunkNote

	epochs := 50
	epochNote := "moderate training budget"
	if p.Known > 1000 {
		epochs, epochNote = 20, "long series; fewer passes suffice"
	}
	rec.Params["n_epochs"] = epochs
	rec.Explanations["n_epochs"] = epochNote

	scaler := p.Scale
	if scaler == "" {
		scaler = model.ScaleStandard
	}
	rec.Params["scaler_type"] = scaler
	rec.Explanations["scaler_type"] = scaleNote(p)

	rec.Params["random_state"] = 22
}

func scaleNote(p *model.SeriesProfile) string {
	switch p.Scale {
	case model.ScaleNone:
		return "constant series; scaling has no effect"
	case model.ScaleMinMax:
		return fmt.Sprintf("non-negative, near-symmetric values (skew %.2f)", p.Skewness)
	default:
		if math.IsNaN(p.Skewness) {
			return "standard score"
		}
		return fmt.Sprintf("skew %.2f or negative values; standard score is more robust", p.Skewness)
	}
}
