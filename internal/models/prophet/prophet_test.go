package prophet_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models/prophet"
	"github.com/derickschaefer/forecast/internal/recommend"
)

func series(t *testing.T, f func(i int) float64, n int) model.TimeSeries {
	t.Helper()
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, n)
	for i := range obs {
		obs[i] = model.Observation{Date: start.AddDate(0, 0, i), Value: f(i)}
	}
	ts, err := model.NewTimeSeries("prophet", obs)
	require.NoError(t, err)
	return ts
}

func TestFit_Linear(t *testing.T) {
	line := func(i int) float64 { return 3*float64(i) + 5 }
	f, err := prophet.New().Fit(series(t, line, 50), nil)
	require.NoError(t, err)
	fc, err := f.Predict(10)
	require.NoError(t, err)
	for h, v := range fc {
		assert.InDelta(t, line(50+h), v, 0.05)
	}
}

func TestFit_AdditiveSeason(t *testing.T) {
	wave := func(i int) float64 { return 20 + 5*math.Sin(2*math.Pi*float64(i)/12) }
	f, err := prophet.New().Fit(series(t, wave, 72), model.Hyperparameters{"seasonal_period": 12})
	require.NoError(t, err)
	fc, err := f.Predict(24)
	require.NoError(t, err)
	for h, v := range fc {
		assert.InDelta(t, wave(72+h), v, 0.05)
	}
}

func TestFit_MultiplicativeSeason(t *testing.T) {
	wave := func(i int) float64 {
		return (10 + 0.5*float64(i)) * (1 + 0.2*math.Sin(2*math.Pi*float64(i)/12))
	}
	f, err := prophet.New().Fit(series(t, wave, 96), model.Hyperparameters{
		"seasonal_period": 12, "seasonality_mode": prophet.Multiplicative, "changepoint_prior_scale": 0.001,
	})
	require.NoError(t, err)
	assert.Equal(t, prophet.Multiplicative, f.(*prophet.Fitted).Config.Mode)

	fc, err := f.Predict(12)
	require.NoError(t, err)
	for h, v := range fc {
		want := wave(96 + h)
		assert.InDelta(t, 0, (v-want)/want, 0.05)
	}
}

func TestFit_MultiplicativeFallsBackOnNegativeTrend(t *testing.T) {
	wave := func(i int) float64 { return -100 + math.Sin(2*math.Pi*float64(i)/7) }
	f, err := prophet.New().Fit(series(t, wave, 42), model.Hyperparameters{
		"seasonal_period": 7, "seasonality_mode": prophet.Multiplicative,
	})
	require.NoError(t, err)
	assert.Equal(t, prophet.Additive, f.(*prophet.Fitted).Config.Mode)
}

func TestFit_InSampleLength(t *testing.T) {
	f, err := prophet.New().Fit(series(t, func(i int) float64 { return float64(i % 4) }, 30), nil)
	require.NoError(t, err)
	assert.Len(t, f.(*prophet.Fitted).InSample(), 30)
}

func TestConfig_Errors(t *testing.T) {
	m := prophet.New()
	flat := series(t, func(int) float64 { return 1 }, 40)
	for _, params := range []model.Hyperparameters{
		{"changepoint_prior_scale": 0.0},
		{"seasonality_prior_scale": -1.0},
		{"seasonality_mode": "cubic"},
		{"seasonal_period": 1},
	} {
		_, err := m.Fit(flat, params)
		assert.True(t, errors.Is(err, model.ErrUnsupportedConfiguration), "%v", params)
	}

	_, err := m.Fit(series(t, func(int) float64 { return 1 }, 20), model.Hyperparameters{"seasonal_period": 12})
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}

func TestRecommend_Business(t *testing.T) {
	m := prophet.New()
	p := recommend.Profile(series(t, func(i int) float64 { return float64(i%3) + 1 }, 60), model.Frequency{}, recommend.Options{})
	rec, err := m.Recommend(&p, recommend.Options{})
	require.NoError(t, err)
	assert.Equal(t, prophet.ID, rec.Model)
	assert.Contains(t, rec.Params, "changepoint_prior_scale")
	assert.Contains(t, rec.Params, "seasonality_mode")
}
