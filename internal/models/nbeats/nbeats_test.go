package nbeats_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models/nbeats"
	"github.com/derickschaefer/forecast/internal/recommend"
)

func sine(t *testing.T, n int) model.TimeSeries {
	t.Helper()
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, n)
	for i := range obs {
		obs[i] = model.Observation{Date: start.Add(time.Duration(i) * time.Hour), Value: 10 + 3*math.Sin(2*math.Pi*float64(i)/10)}
	}
	ts, err := model.NewTimeSeries("sine", obs)
	require.NoError(t, err)
	return ts
}

var params = model.Hyperparameters{"input_chunk_length": 10, "n_epochs": 150, "scaler_type": "standard", "random_state": 22}

func TestFit_LearnsSine(t *testing.T) {
	f, err := nbeats.New().Fit(sine(t, 200), params)
	require.NoError(t, err)
	assert.Less(t, f.(*nbeats.Fitted).Loss(), 0.5)

	fc, err := f.Predict(20)
	require.NoError(t, err)
	require.Len(t, fc, 20)
	for _, v := range fc {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestFit_SeedIsReproducible(t *testing.T) {
	ts := sine(t, 120)
	a, err := nbeats.New().Fit(ts, params)
	require.NoError(t, err)
	b, err := nbeats.New().Fit(ts, params)
	require.NoError(t, err)
	fa, _ := a.Predict(5)
	fb, _ := b.Predict(5)
	assert.Equal(t, fa, fb)
}

func TestFit_ScalerChoices(t *testing.T) {
	for _, s := range []string{"standard", "minmax", "none"} {
		p := params.Merge(model.Hyperparameters{"scaler_type": s, "n_epochs": 10})
		f, err := nbeats.New().Fit(sine(t, 60), p)
		require.NoError(t, err, s)
		fc, err := f.Predict(3)
		require.NoError(t, err, s)
		assert.Len(t, fc, 3)
	}
}

func TestFit_Errors(t *testing.T) {
	m := nbeats.New()
	_, err := m.Fit(sine(t, 60), model.Hyperparameters{"scaler_type": "robust"})
	assert.True(t, errors.Is(err, model.ErrUnsupportedConfiguration))

	_, err = m.Fit(sine(t, 12), model.Hyperparameters{"input_chunk_length": 10})
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}

func TestRecommend_ShortSeriesNotRecommended(t *testing.T) {
	p := recommend.Profile(sine(t, 50), model.Frequency{}, recommend.DefaultOptions())
	rec, err := nbeats.New().Recommend(&p, recommend.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, nbeats.ID, rec.Model)
	assert.False(t, rec.Recommended)
}
