// Package prophet is the business forecasting backend: a Prophet-style
// decomposition into a piecewise-linear trend with changepoints and a
// Fourier seasonal term, estimated as one penalized least-squares problem.
// The prior scales become ridge penalties on the changepoint and seasonal
// coefficients.
package prophet

import (
	"fmt"
	"math"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models"
	"github.com/derickschaefer/forecast/internal/recommend"
	"github.com/derickschaefer/forecast/internal/stats"
)

// ID is the registry identifier.
const ID = "prophet"

const (
	// changepointRange is the share of history that may hold changepoints.
	changepointRange = 0.8
	maxChangepoints  = 25
	maxFourierOrder  = 10
	// noiseVar is the assumed residual variance of the scaled series; prior
	// scale s maps to the ridge penalty noiseVar/s².
	noiseVar = 0.01
	minTrain = 10
)

// Seasonality modes.
const (
	Additive       = "additive"
	Multiplicative = "multiplicative"
)

// Config is the validated hyperparameter set.
type Config struct {
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	Mode                  string
	Period                int
}

// ConfigOf reads and validates params.
func ConfigOf(params model.Hyperparameters) (Config, error) {
	c := Config{
		ChangepointPriorScale: params.Float("changepoint_prior_scale", 0.05),
		SeasonalityPriorScale: params.Float("seasonality_prior_scale", 10),
		Mode:                  params.String("seasonality_mode", Additive),
		Period:                params.Int("seasonal_period", 0),
	}
	switch {
	case !(c.ChangepointPriorScale > 0):
		return c, badParam("changepoint_prior_scale", c.ChangepointPriorScale, "must be > 0")
	case !(c.SeasonalityPriorScale > 0):
		return c, badParam("seasonality_prior_scale", c.SeasonalityPriorScale, "must be > 0")
	case c.Mode != Additive && c.Mode != Multiplicative:
		return c, badParam("seasonality_mode", c.Mode, "must be additive or multiplicative")
	case c.Period < 0 || c.Period == 1:
		return c, badParam("seasonal_period", c.Period, "must be 0 (none) or >= 2")
	}
	return c, nil
}

func badParam(key string, v any, reason string) error {
	return &model.UnsupportedConfigurationError{Op: "prophet", Key: key, Value: fmt.Sprint(v), Reason: reason}
}

// Model is the Prophet-style backend.
type Model struct{}

// New returns the Prophet-style backend.
func New() *Model { return &Model{} }

func (*Model) ID() string           { return ID }
func (*Model) Family() model.Family { return model.FamilyBusiness }
func (*Model) Description() string {
	return "piecewise-linear trend with changepoints plus Fourier seasonality"
}

func (*Model) Params() []models.ParamSpec {
	return []models.ParamSpec{
		{Name: "changepoint_prior_scale", Kind: models.KindFloat, Default: 0.05, Min: 0.001, Max: 0.5,
			Description: "trend flexibility; larger allows sharper changes"},
		{Name: "seasonality_prior_scale", Kind: models.KindFloat, Default: 10.0, Min: 0.01, Max: 25,
			Description: "seasonal amplitude flexibility"},
		{Name: "seasonality_mode", Kind: models.KindChoice, Default: Additive, Choices: []string{Additive, Multiplicative},
			Description: "how seasonality combines with the trend"},
		{Name: "seasonal_period", Kind: models.KindInt, Default: 0, Min: 0, Max: 366,
			Description: "seasonal cycle in steps; 0 disables seasonality"},
	}
}

// MinTrain requires two full cycles when seasonality is on.
func (*Model) MinTrain(params model.Hyperparameters) int {
	c, err := ConfigOf(params)
	if err != nil || c.Period == 0 {
		return minTrain
	}
	return max(minTrain, 2*c.Period)
}

func (m *Model) Recommend(p *model.SeriesProfile, opts recommend.Options) (model.Recommendation, error) {
	return models.FamilyRecommendation(m, p, opts)
}

// Fit estimates trend and seasonality on train.
func (m *Model) Fit(train model.TimeSeries, params model.Hyperparameters) (models.Fitted, error) {
	c, err := ConfigOf(params)
	if err != nil {
		return nil, err
	}
	vals, err := models.CleanValues("prophet", train, m.MinTrain(params))
	if err != nil {
		return nil, err
	}

	n := len(vals)
	f := &Fitted{Config: c, n: n, tScale: float64(n - 1)}
	f.yScale = 0
	for _, v := range vals {
		f.yScale = math.Max(f.yScale, math.Abs(v))
	}
	if f.yScale == 0 {
		f.yScale = 1
	}
	y := make([]float64, n)
	for i, v := range vals {
		y[i] = v / f.yScale
	}

	k := min(maxChangepoints, int(float64(n)*changepointRange)/2)
	f.changepoints = make([]float64, k)
	for j := range f.changepoints {
		f.changepoints[j] = changepointRange * float64(j+1) / float64(k+1)
	}
	if c.Period >= 2 {
		f.order = min(maxFourierOrder, c.Period/2)
	}

	if c.Mode == Multiplicative && f.order > 0 {
		if err := f.fitMultiplicative(y); err == nil {
			return f, nil
		}
		// Trend not strictly positive; fall back to additive.
		f.Config.Mode = Additive
	}
	if err := f.fitAdditive(y); err != nil {
		return nil, err
	}
	return f, nil
}

// ─── Design ───────────────────────────────────────────────────────────────────

// Fitted is an estimated Prophet-style model.
type Fitted struct {
	Config Config
	Trend  []float64 // intercept, slope, changepoint deltas
	Season []float64 // sin/cos pairs by harmonic

	n            int
	tScale       float64
	yScale       float64
	changepoints []float64
	order        int
}

func (f *Fitted) t(i int) float64 {
	if f.tScale == 0 {
		return 0
	}
	return float64(i) / f.tScale
}

func (f *Fitted) trendRow(i int) []float64 {
	t := f.t(i)
	row := make([]float64, 2+len(f.changepoints))
	row[0], row[1] = 1, t
	for j, c := range f.changepoints {
		row[2+j] = math.Max(0, t-c)
	}
	return row
}

func (f *Fitted) seasonRow(i int) []float64 {
	row := make([]float64, 2*f.order)
	for k := 1; k <= f.order; k++ {
		x := 2 * math.Pi * float64(k) * float64(i) / float64(f.Config.Period)
		row[2*(k-1)] = math.Sin(x)
		row[2*(k-1)+1] = math.Cos(x)
	}
	return row
}

func (f *Fitted) trendPenalty() []float64 {
	lambda := make([]float64, 2+len(f.changepoints))
	lambda[0], lambda[1] = 1e-6, 1e-6
	cp := noiseVar / (f.Config.ChangepointPriorScale * f.Config.ChangepointPriorScale)
	for j := range f.changepoints {
		lambda[2+j] = cp
	}
	return lambda
}

func (f *Fitted) seasonPenalty() []float64 {
	lambda := make([]float64, 2*f.order)
	sp := noiseVar / (f.Config.SeasonalityPriorScale * f.Config.SeasonalityPriorScale)
	for i := range lambda {
		lambda[i] = sp
	}
	return lambda
}

func (f *Fitted) fitAdditive(y []float64) error {
	x := make([][]float64, len(y))
	for i := range y {
		x[i] = append(f.trendRow(i), f.seasonRow(i)...)
	}
	coef, err := stats.Ridge(x, y, append(f.trendPenalty(), f.seasonPenalty()...))
	if err != nil {
		return fmt.Errorf("prophet: %w", err)
	}
	nt := 2 + len(f.changepoints)
	f.Trend, f.Season = coef[:nt], coef[nt:]
	return nil
}

// fitMultiplicative fits the trend first, then the seasonal factor on the
// ratio y/trend - 1.
func (f *Fitted) fitMultiplicative(y []float64) error {
	x := make([][]float64, len(y))
	for i := range y {
		x[i] = f.trendRow(i)
	}
	trend, err := stats.Ridge(x, y, f.trendPenalty())
	if err != nil {
		return fmt.Errorf("prophet: %w", err)
	}
	f.Trend = trend
	ratio := make([]float64, len(y))
	sx := make([][]float64, len(y))
	for i := range y {
		tr := dot(trend, x[i])
		if tr <= 0 {
			return fmt.Errorf("prophet: non-positive trend at %d", i)
		}
		ratio[i] = y[i]/tr - 1
		sx[i] = f.seasonRow(i)
	}
	season, err := stats.Ridge(sx, ratio, f.seasonPenalty())
	if err != nil {
		return fmt.Errorf("prophet: %w", err)
	}
	f.Season = season
	return nil
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// at evaluates the model at step index i.
func (f *Fitted) at(i int) float64 {
	tr := dot(f.Trend, f.trendRow(i))
	if f.order == 0 {
		return tr * f.yScale
	}
	s := dot(f.Season, f.seasonRow(i))
	if f.Config.Mode == Multiplicative {
		return tr * (1 + s) * f.yScale
	}
	return (tr + s) * f.yScale
}

// Predict forecasts horizon steps past the training data.
func (f *Fitted) Predict(horizon int) ([]float64, error) {
	if err := models.CheckHorizon("prophet", horizon); err != nil {
		return nil, err
	}
	out := make([]float64, horizon)
	for h := range out {
		out[h] = f.at(f.n + h)
	}
	return out, nil
}

// InSample returns the fitted values over the training window.
func (f *Fitted) InSample() []float64 {
	out := make([]float64, f.n)
	for i := range out {
		out[i] = f.at(i)
	}
	return out
}
