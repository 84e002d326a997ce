package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/derickschaefer/forecast/internal/model"
)

// ─── Metric Catalogue ─────────────────────────────────────────────────────────

// Metric is one named error measure over aligned actual/forecast values.
type Metric struct {
	Name          string                                   `json:"name"`
	Description   string                                   `json:"description"`
	LowerIsBetter bool                                     `json:"lower_is_better"`
	Fn            func(actual, forecast []float64) float64 `json:"-"`
}

var catalogue = []Metric{
	{Name: "mae", Description: "mean absolute error", LowerIsBetter: true, Fn: mae},
	{Name: "rmse", Description: "root mean squared error", LowerIsBetter: true, Fn: rmse},
	{Name: "mape", Description: "mean absolute percentage error (%)", LowerIsBetter: true, Fn: mape},
}

// Catalogue returns the registered metrics in display order.
func Catalogue() []Metric {
	return append([]Metric(nil), catalogue...)
}

// MetricNames returns the catalogue names in display order.
func MetricNames() []string {
	out := make([]string, len(catalogue))
	for i, m := range catalogue {
		out[i] = m.Name
	}
	return out
}

// ─── Error Measures ───────────────────────────────────────────────────────────

func checkLengths(op string, actual, forecast []float64) error {
	if len(actual) != len(forecast) {
		return &model.MisalignedForecastError{Op: op, Want: len(actual), Got: len(forecast)}
	}
	if len(actual) == 0 {
		return &model.InsufficientDataError{Op: op, Need: 1, Got: 0}
	}
	return nil
}

// MAE is the mean of |actual - forecast|.
func MAE(actual, forecast []float64) (float64, error) {
	if err := checkLengths("mae", actual, forecast); err != nil {
		return 0, err
	}
	return mae(actual, forecast), nil
}

// RMSE is the square root of the mean of (actual - forecast)².
func RMSE(actual, forecast []float64) (float64, error) {
	if err := checkLengths("rmse", actual, forecast); err != nil {
		return 0, err
	}
	return rmse(actual, forecast), nil
}

func mae(a, f []float64) float64 {
	s := 0.0
	for i := range a {
		s += math.Abs(a[i] - f[i])
	}
	return s / float64(len(a))
}

func rmse(a, f []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - f[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(a)))
}

// mape is NaN when any actual value is zero.
func mape(a, f []float64) float64 {
	s := 0.0
	for i := range a {
		if a[i] == 0 {
			return math.NaN()
		}
		s += math.Abs((a[i] - f[i]) / a[i])
	}
	return 100 * s / float64(len(a))
}

// Score evaluates every catalogue metric. Non-finite values are left out of
// the map and reported as warnings.
func Score(actual, forecast []float64) (map[string]float64, []string, error) {
	if err := checkLengths("score", actual, forecast); err != nil {
		return nil, nil, err
	}
	out := make(map[string]float64, len(catalogue))
	var warnings []string
	for _, m := range catalogue {
		v := m.Fn(actual, forecast)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			warnings = append(warnings, fmt.Sprintf("metric %s is not finite for this window and was omitted", m.Name))
			continue
		}
		out[m.Name] = v
	}
	return out, warnings, nil
}

// SortedMetricKeys orders a metric map by catalogue position, then by name
// for metrics outside the catalogue.
func SortedMetricKeys(m map[string]float64) []string {
	pos := map[string]int{}
	for i, c := range catalogue {
		pos[c.Name] = i
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, iok := pos[keys[i]]
		pj, jok := pos[keys[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}
