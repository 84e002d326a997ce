// Package transform implements stateless operators over value slices and
// series: scaling with an invertible fitted scaler, and ordinary or seasonal
// differencing with its inverse. Each operator is a pure function; no side
// effects, no I/O.
package transform

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/derickschaefer/forecast/internal/model"
)

// ─── Scaling ──────────────────────────────────────────────────────────────────

// ScaleMethod selects the normalization algorithm.
type ScaleMethod string

const (
	ScaleNone   ScaleMethod = "none"
	ScaleZScore ScaleMethod = "zscore"
	ScaleMinMax ScaleMethod = "minmax"
)

// ParseScale accepts none, zscore (or standard) and minmax.
func ParseScale(s string) (ScaleMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return ScaleNone, nil
	case "zscore", "z-score", "standard":
		return ScaleZScore, nil
	case "minmax", "min-max":
		return ScaleMinMax, nil
	}
	return "", &model.UnsupportedConfigurationError{
		Op: "scale", Key: "scaling", Value: s, Reason: "use none, zscore or minmax",
	}
}

// Scaler maps x to (x - Center) / Scale.
type Scaler struct {
	Method ScaleMethod `json:"method"`
	Center float64     `json:"center"`
	Scale  float64     `json:"scale"`
}

// FitScaler estimates scaling parameters from the non-NaN values in vals.
// A zero spread leaves Scale at 1 so constant input maps to 0 instead of
// dividing by zero.
func FitScaler(vals []float64, method ScaleMethod) (Scaler, error) {
	s := Scaler{Method: method, Scale: 1}
	if method == ScaleNone || method == "" {
		s.Method = ScaleNone
		return s, nil
	}
	known := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			known = append(known, v)
		}
	}
	if len(known) == 0 {
		return s, fmt.Errorf("scale: no non-NaN values in series")
	}
	switch method {
	case ScaleZScore:
		s.Center = stat.Mean(known, nil)
		if len(known) > 1 {
			if sd := stat.StdDev(known, nil); sd > 0 {
				s.Scale = sd
			}
		}
	case ScaleMinMax:
		mn, mx := floats.Min(known), floats.Max(known)
		s.Center = mn
		if mx > mn {
			s.Scale = mx - mn
		}
	default:
		return s, fmt.Errorf("scale: unknown method %q (use zscore or minmax)", method)
	}
	return s, nil
}

// Transform applies the scaler; NaN stays NaN.
func (s Scaler) Transform(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = (v - s.Center) / s.Scale
	}
	return out
}

// Inverse undoes Transform.
func (s Scaler) Inverse(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v*s.Scale + s.Center
	}
	return out
}

// Normalize scales ts and returns the fitted scaler for later inversion.
func Normalize(ts model.TimeSeries, method ScaleMethod) (model.TimeSeries, Scaler, error) {
	s, err := FitScaler(ts.Values(), method)
	if err != nil {
		return model.TimeSeries{}, Scaler{}, err
	}
	if s.Method == ScaleNone {
		return ts.Clone(), s, nil
	}
	return ts.WithValues(s.Transform(ts.Values())), s, nil
}

// ─── Difference ───────────────────────────────────────────────────────────────

// Diff computes the n-th order difference. order=0 returns a copy.
func Diff(vals []float64, order int) ([]float64, error) {
	if order < 0 {
		return nil, fmt.Errorf("diff: order must be >= 0, got %d", order)
	}
	out := append([]float64(nil), vals...)
	for i := 0; i < order; i++ {
		if len(out) < 2 {
			return nil, fmt.Errorf("diff: need at least %d observations for order %d, got %d", order+1, order, len(vals))
		}
		next := make([]float64, len(out)-1)
		for j := 1; j < len(out); j++ {
			next[j-1] = out[j] - out[j-1]
		}
		out = next
	}
	return out, nil
}

// SeasonalDiff computes v[t] - v[t-lag].
func SeasonalDiff(vals []float64, lag int) ([]float64, error) {
	if lag < 1 {
		return nil, fmt.Errorf("seasonal-diff: lag must be >= 1, got %d", lag)
	}
	if len(vals) <= lag {
		return nil, fmt.Errorf("seasonal-diff: need more than %d observations, got %d", lag, len(vals))
	}
	out := make([]float64, len(vals)-lag)
	for i := lag; i < len(vals); i++ {
		out[i-lag] = vals[i] - vals[i-lag]
	}
	return out, nil
}

// Integrate inverts Diff for a forecast: history is the undifferenced series
// the forecast continues, and fc is a forecast of its order-th difference.
func Integrate(history, fc []float64, order int) ([]float64, error) {
	if order == 0 {
		return append([]float64(nil), fc...), nil
	}
	// tails[k] is the last value of the k-th difference of history.
	tails := make([]float64, order)
	level := history
	for k := 0; k < order; k++ {
		if len(level) == 0 {
			return nil, fmt.Errorf("integrate: history too short for order %d", order)
		}
		tails[k] = level[len(level)-1]
		if k == order-1 {
			break
		}
		next, err := Diff(level, 1)
		if err != nil {
			return nil, fmt.Errorf("integrate: %w", err)
		}
		level = next
	}
	out := append([]float64(nil), fc...)
	for k := order - 1; k >= 0; k-- {
		acc := tails[k]
		for i := range out {
			acc += out[i]
			out[i] = acc
		}
	}
	return out, nil
}

// SeasonalIntegrate inverts SeasonalDiff for a forecast continuing history.
func SeasonalIntegrate(history, fc []float64, lag int) ([]float64, error) {
	if len(history) < lag {
		return nil, fmt.Errorf("seasonal-integrate: need %d history points, got %d", lag, len(history))
	}
	full := append(append([]float64(nil), history...), make([]float64, len(fc))...)
	n := len(history)
	for i, w := range fc {
		full[n+i] = full[n+i-lag] + w
	}
	return full[n:], nil
}
