// Package arima is the classical forecasting backend: a (seasonal) ARIMA
// estimated by the Hannan-Rissanen two-stage regression. A long
// autoregression supplies residual estimates, then the series is regressed
// on its own lags and the lagged residuals.
package arima

import (
	"fmt"
	"math"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models"
	"github.com/derickschaefer/forecast/internal/recommend"
	"github.com/derickschaefer/forecast/internal/stats"
	"github.com/derickschaefer/forecast/internal/transform"
)

// ID is the registry identifier.
const ID = "arima"

// ridgeLambda keeps the normal equations solvable on flat input.
const ridgeLambda = 1e-8

// Order is the model order read from hyperparameters.
type Order struct {
	P, D, Q  int
	Seasonal bool
	M        int
}

// OrderOf reads and validates the order in params.
func OrderOf(params model.Hyperparameters) (Order, error) {
	o := Order{
		P:        params.Int("p", 1),
		D:        params.Int("d", 1),
		Q:        params.Int("q", 1),
		Seasonal: params.Bool("seasonal", false),
		M:        params.Int("m", 12),
	}
	for _, kv := range []struct {
		key string
		v   int
	}{{"p", o.P}, {"d", o.D}, {"q", o.Q}} {
		if kv.v < 0 {
			return o, &model.UnsupportedConfigurationError{
				Op: "arima", Key: kv.key, Value: fmt.Sprint(kv.v), Reason: "must be >= 0",
			}
		}
	}
	if o.Seasonal && o.M < 2 {
		return o, &model.UnsupportedConfigurationError{
			Op: "arima", Key: "m", Value: fmt.Sprint(o.M), Reason: "seasonal period must be >= 2",
		}
	}
	return o, nil
}

func (o Order) String() string {
	if o.Seasonal {
		return fmt.Sprintf("ARIMA(%d,%d,%d)(0,1,0)[%d]", o.P, o.D, o.Q, o.M)
	}
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// Model is the ARIMA backend.
type Model struct{}

// New returns the ARIMA backend.
func New() *Model { return &Model{} }

func (*Model) ID() string           { return ID }
func (*Model) Family() model.Family { return model.FamilyClassical }
func (*Model) Description() string {
	return "ARIMA with optional seasonal differencing (Hannan-Rissanen estimation)"
}

// Params documents the accepted hyperparameters.
func (*Model) Params() []models.ParamSpec {
	return []models.ParamSpec{
		{Name: "p", Kind: models.KindInt, Default: 1, Min: 0, Max: 5, Description: "autoregressive order"},
		{Name: "d", Kind: models.KindInt, Default: 1, Min: 0, Max: 2, Description: "differencing order"},
		{Name: "q", Kind: models.KindInt, Default: 1, Min: 0, Max: 5, Description: "moving-average order"},
		{Name: "seasonal", Kind: models.KindBool, Default: false, Description: "apply one seasonal difference at period m"},
		{Name: "m", Kind: models.KindInt, Default: 12, Min: 2, Max: 366, Description: "seasonal period in steps"},
	}
}

// MinTrain is the fewest training points the order can be estimated from.
func (*Model) MinTrain(params model.Hyperparameters) int {
	o, err := OrderOf(params)
	if err != nil {
		return 10
	}
	need := o.D + o.P + o.Q + 8
	if o.Seasonal {
		need += o.M
	}
	return need
}

// Recommend derives an order from the profile.
func (m *Model) Recommend(p *model.SeriesProfile, opts recommend.Options) (model.Recommendation, error) {
	return models.FamilyRecommendation(m, p, opts)
}

// Fit estimates the model on train.
func (m *Model) Fit(train model.TimeSeries, params model.Hyperparameters) (models.Fitted, error) {
	o, err := OrderOf(params)
	if err != nil {
		return nil, err
	}
	vals, err := models.CleanValues("arima", train, m.MinTrain(params))
	if err != nil {
		return nil, err
	}

	f := &Fitted{Order: o, history: vals, seasonalBase: vals}
	work := vals
	if o.Seasonal {
		if work, err = transform.SeasonalDiff(work, o.M); err != nil {
			return nil, fmt.Errorf("arima: %w", err)
		}
		f.seasonalBase = work
	}
	if work, err = transform.Diff(work, o.D); err != nil {
		return nil, fmt.Errorf("arima: %w", err)
	}

	f.Mean, _ = meanOf(work)
	z := make([]float64, len(work))
	for i, v := range work {
		z[i] = v - f.Mean
	}
	if err := f.estimate(z); err != nil {
		return nil, err
	}
	return f, nil
}

// ─── Estimation ───────────────────────────────────────────────────────────────

// Fitted is an estimated ARIMA model.
type Fitted struct {
	Order Order
	Mean  float64   // mean of the differenced series
	AR    []float64 // phi_1..phi_p
	MA    []float64 // theta_1..theta_q
	Sigma float64   // residual standard deviation

	history      []float64 // training values
	seasonalBase []float64 // training values after seasonal differencing
	z            []float64 // centered differenced series
	resid        []float64
}

func (f *Fitted) estimate(z []float64) error {
	f.z = z
	p, q := f.Order.P, f.Order.Q
	n := len(z)

	var resid []float64
	start := p
	if q > 0 {
		long := min(max(p+q+2, 5), n/3)
		if phi, err := fitLags(z, nil, long, 0, long); long >= 1 && err == nil {
			resid = residuals(z, phi, nil)
			start = max(p, long+q)
		} else {
			// No residual estimates: fall back to a pure autoregression.
			q = 0
		}
	}

	f.AR, f.MA = make([]float64, p), make([]float64, f.Order.Q)
	if p+q > 0 && n-start > p+q {
		coef, err := fitLags(z, resid, p, q, start)
		if err != nil {
			return fmt.Errorf("arima: %w", err)
		}
		copy(f.AR, coef[:p])
		copy(f.MA, coef[p:])
	}
	f.AR = shrink(f.AR)
	f.MA = shrink(f.MA)

	f.resid = residuals(z, f.AR, f.MA)
	ss := 0.0
	for _, e := range f.resid {
		ss += e * e
	}
	if n > 0 {
		f.Sigma = math.Sqrt(ss / float64(n))
	}
	return nil
}

// fitLags regresses z_t on z_{t-1..t-p} and e_{t-1..t-q} for t >= start.
func fitLags(z, e []float64, p, q, start int) ([]float64, error) {
	if p+q == 0 {
		return nil, nil
	}
	var xs [][]float64
	var ys []float64
	for t := max(start, p, q); t < len(z); t++ {
		row := make([]float64, 0, p+q)
		for i := 1; i <= p; i++ {
			row = append(row, z[t-i])
		}
		for j := 1; j <= q; j++ {
			row = append(row, e[t-j])
		}
		xs = append(xs, row)
		ys = append(ys, z[t])
	}
	if len(ys) == 0 {
		return make([]float64, p+q), nil
	}
	lambda := make([]float64, p+q)
	for i := range lambda {
		lambda[i] = ridgeLambda
	}
	return stats.Ridge(xs, ys, lambda)
}

// residuals runs the ARMA recursion over z with zero pre-sample shocks.
func residuals(z, phi, theta []float64) []float64 {
	e := make([]float64, len(z))
	for t := range z {
		pred := 0.0
		for i, c := range phi {
			if t-i-1 >= 0 {
				pred += c * z[t-i-1]
			}
		}
		for j, c := range theta {
			if t-j-1 >= 0 {
				pred += c * e[t-j-1]
			}
		}
		e[t] = z[t] - pred
	}
	return e
}

// shrink scales coefficients so their absolute sum stays below one, a
// sufficient condition for a stable recursion.
func shrink(c []float64) []float64 {
	s := 0.0
	for _, v := range c {
		s += math.Abs(v)
	}
	if s < 0.99 {
		return c
	}
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = v * 0.99 / s
	}
	return out
}

func meanOf(v []float64) (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v)), true
}

// ─── Prediction ───────────────────────────────────────────────────────────────

// Predict forecasts horizon steps past the training data.
func (f *Fitted) Predict(horizon int) ([]float64, error) {
	if err := models.CheckHorizon("arima", horizon); err != nil {
		return nil, err
	}
	z := append([]float64(nil), f.z...)
	e := append([]float64(nil), f.resid...)
	n := len(z)
	for h := 0; h < horizon; h++ {
		t := n + h
		v := 0.0
		for i, c := range f.AR {
			if t-i-1 >= 0 {
				v += c * z[t-i-1]
			}
		}
		for j, c := range f.MA {
			if t-j-1 >= 0 {
				v += c * e[t-j-1]
			}
		}
		z = append(z, v)
		e = append(e, 0)
	}
	fc := make([]float64, horizon)
	for i := range fc {
		fc[i] = z[n+i] + f.Mean
	}

	out, err := transform.Integrate(f.seasonalBase, fc, f.Order.D)
	if err != nil {
		return nil, fmt.Errorf("arima: %w", err)
	}
	if f.Order.Seasonal {
		if out, err = transform.SeasonalIntegrate(f.history, out, f.Order.M); err != nil {
			return nil, fmt.Errorf("arima: %w", err)
		}
	}
	return out, nil
}
