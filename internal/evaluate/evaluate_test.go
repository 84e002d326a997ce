package evaluate_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/evaluate"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models"
	"github.com/derickschaefer/forecast/internal/recommend"
)

func daily(t *testing.T, vals ...float64) model.TimeSeries {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, len(vals))
	for i, v := range vals {
		obs[i] = model.Observation{Date: start.AddDate(0, 0, i), Value: v}
	}
	ts, err := model.NewTimeSeries("eval", obs)
	require.NoError(t, err)
	return ts
}

func ramp(t *testing.T, n int) model.TimeSeries {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	return daily(t, vals...)
}

// fake predicts a constant; short trims its output to trigger misalignment.
type fake struct {
	value, minTrain, short int
}

type constant struct {
	v     float64
	short int
}

func (c constant) Predict(h int) ([]float64, error) {
	out := make([]float64, max(h-c.short, 0))
	for i := range out {
		out[i] = c.v
	}
	return out, nil
}

func (fake) ID() string                           { return "fake" }
func (fake) Family() model.Family                 { return model.FamilyClassical }
func (fake) Description() string                  { return "" }
func (fake) Params() []models.ParamSpec           { return nil }
func (f fake) MinTrain(model.Hyperparameters) int { return f.minTrain }
func (f fake) Fit(model.TimeSeries, model.Hyperparameters) (models.Fitted, error) {
	return constant{v: float64(f.value), short: f.short}, nil
}
func (fake) Recommend(*model.SeriesProfile, recommend.Options) (model.Recommendation, error) {
	return model.Recommendation{}, nil
}

func TestSplit_TenPoints(t *testing.T) {
	s, err := evaluate.Split(ramp(t, 10), 0.8, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, s.Train.Len())
	assert.Equal(t, 2, s.Test.Len())
	assert.True(t, s.Train.Last().Before(s.Test.First()))
}

func TestSplit_LengthsAlwaysAddUp(t *testing.T) {
	ts := ramp(t, 37)
	for _, r := range []float64{0.05, 0.3, 0.5, 0.7, 0.75, 0.8, 0.9, 0.95} {
		s, err := evaluate.Split(ts, r, 1, 1)
		require.NoError(t, err, r)
		assert.Equal(t, ts.Len(), s.Train.Len()+s.Test.Len(), r)
		assert.True(t, s.Train.Last().Before(s.Test.First()), r)
	}
}

func TestSplit_Invalid(t *testing.T) {
	ts := ramp(t, 10)
	for _, r := range []float64{0, 1, -0.2, 1.5} {
		_, err := evaluate.Split(ts, r, 1, 1)
		assert.True(t, errors.Is(err, model.ErrInvalidSplit), r)
	}
	_, err := evaluate.Split(ts, 0.8, 9, 1)
	var se *model.InvalidSplitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 8, se.Train)
	assert.Equal(t, 9, se.MinTrain)

	_, err = evaluate.Split(ts, 0.8, 1, 3)
	assert.True(t, errors.Is(err, model.ErrInvalidSplit))
}

func TestMetrics_Scenario(t *testing.T) {
	actual, fc := []float64{11, 11}, []float64{10, 12}
	mae, err := evaluate.MAE(actual, fc)
	require.NoError(t, err)
	rmse, err := evaluate.RMSE(actual, fc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mae, 1e-12)
	assert.InDelta(t, 1.0, rmse, 1e-12)
}

func TestMetrics_MAENeverExceedsRMSE(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		n := 1 + r.Intn(20)
		a, f := make([]float64, n), make([]float64, n)
		for i := range a {
			a[i], f[i] = r.NormFloat64()*10, r.NormFloat64()*10
		}
		mae, _ := evaluate.MAE(a, f)
		rmse, _ := evaluate.RMSE(a, f)
		assert.LessOrEqual(t, mae, rmse+1e-12)
	}
}

func TestMetrics_Errors(t *testing.T) {
	_, err := evaluate.MAE([]float64{1, 2}, []float64{1})
	assert.True(t, errors.Is(err, model.ErrMisalignedForecast))
	_, err = evaluate.RMSE(nil, nil)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}

func TestScore_DropsNonFinite(t *testing.T) {
	scores, warnings, err := evaluate.Score([]float64{0, 2}, []float64{1, 2})
	require.NoError(t, err)
	assert.Contains(t, scores, "mae")
	assert.Contains(t, scores, "rmse")
	assert.NotContains(t, scores, "mape")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "mape")
	assert.Equal(t, []string{"mae", "rmse"}, evaluate.SortedMetricKeys(scores))
}

func TestRunner_Evaluate(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := &evaluate.Runner{Now: func() time.Time { return fixed }, NewID: func() string { return "run-1" }}
	ts := ramp(t, 10)
	params := model.Hyperparameters{"k": 1}

	res, err := r.Evaluate(fake{value: 9, minTrain: 2}, ts, params, evaluate.Options{Ratio: 0.8, Horizon: 3, Preprocessing: []string{"gap_fill(method=linear)"}})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, fixed, res.TrainedAt)
	assert.Equal(t, 8, res.TrainLen)
	assert.Equal(t, 2, res.TestLen)
	require.Len(t, res.TestForecast, 2)
	assert.Equal(t, ts.Obs[8].Date, res.TestForecast[0].Date)
	// actual 9,10 against 9,9
	assert.InDelta(t, 0.5, res.Metrics["mae"], 1e-12)
	require.Len(t, res.Forecast, 3)
	assert.Equal(t, ts.Last().AddDate(0, 0, 1), res.Forecast[0].Date)
	assert.Equal(t, []string{"gap_fill(method=linear)"}, res.Preprocessing)

	params["k"] = 2
	assert.Equal(t, 1, res.Params["k"])
}

func TestRunner_Misaligned(t *testing.T) {
	_, err := (&evaluate.Runner{}).Evaluate(fake{value: 1, minTrain: 2, short: 1}, ramp(t, 10), nil, evaluate.DefaultOptions())
	var me *model.MisalignedForecastError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 2, me.Want)
	assert.Equal(t, 1, me.Got)
}

func TestRunner_InvalidSplitAndHorizon(t *testing.T) {
	r := &evaluate.Runner{}
	_, err := r.Evaluate(fake{minTrain: 50}, ramp(t, 10), nil, evaluate.DefaultOptions())
	assert.True(t, errors.Is(err, model.ErrInvalidSplit))

	_, err = r.Evaluate(fake{minTrain: 2}, ramp(t, 10), nil, evaluate.Options{Horizon: 400})
	assert.True(t, errors.Is(err, model.ErrUnsupportedConfiguration))
}

func TestRunner_HorizonBeyondTrainingWarns(t *testing.T) {
	res, err := (&evaluate.Runner{}).Evaluate(fake{value: 5, minTrain: 2}, ramp(t, 10), nil, evaluate.Options{Horizon: 30})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
}

func TestRunner_UnscalesForecasts(t *testing.T) {
	// model space is value/10; the fake predicts 1, i.e. 10 in original units
	scaled := daily(t, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0)
	unscale := func(v []float64) []float64 {
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = x * 10
		}
		return out
	}
	res, err := (&evaluate.Runner{}).Evaluate(fake{value: 1, minTrain: 2}, scaled, nil, evaluate.Options{Ratio: 0.8, Horizon: 2, Unscale: unscale})
	require.NoError(t, err)
	// actual 9,10 against 10,10
	assert.InDelta(t, 0.5, res.Metrics["mae"], 1e-9)
	for _, o := range append(res.TestForecast, res.Forecast...) {
		assert.InDelta(t, 10.0, o.Value, 1e-12)
	}
}

func TestFuture_Monthly(t *testing.T) {
	last := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	out := evaluate.Future(last, model.Frequency{Label: "monthly", Months: 1}, []float64{1, 2})
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), out[0].Date)
	assert.Equal(t, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), out[1].Date)
}
