package recommend_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/recommend"
)

func daily(t *testing.T, vals []float64) model.TimeSeries {
	t.Helper()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, len(vals))
	for i, v := range vals {
		obs[i] = model.Observation{Date: start.AddDate(0, 0, i), Value: v}
	}
	ts, err := model.NewTimeSeries("test", obs)
	require.NoError(t, err)
	return ts
}

func monthly(t *testing.T, vals []float64) model.TimeSeries {
	t.Helper()
	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, len(vals))
	for i, v := range vals {
		obs[i] = model.Observation{Date: start.AddDate(0, i, 0), Value: v}
	}
	ts, err := model.NewTimeSeries("monthly", obs)
	require.NoError(t, err)
	return ts
}

func noise(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = r.NormFloat64()
	}
	return out
}

func trend(n int) []float64 {
	out := noise(n, 3)
	for i := range out {
		out[i] += 10 * float64(i)
	}
	return out
}

func profile(t *testing.T, ts model.TimeSeries) model.SeriesProfile {
	t.Helper()
	return recommend.Profile(ts, model.Frequency{}, recommend.DefaultOptions())
}

func TestProfile_InfersFrequencyAndMoments(t *testing.T) {
	p := profile(t, daily(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
	assert.Equal(t, "daily", p.Frequency.Label)
	assert.Equal(t, 10, p.Length)
	assert.InDelta(t, 5.5, p.Mean, 1e-12)
	assert.Equal(t, 1.0, p.Min)
	assert.Equal(t, 10.0, p.Max)
}

func TestProfile_TrendNeedsOneDifference(t *testing.T) {
	p := profile(t, daily(t, trend(200)))
	require.True(t, p.Stationarity.Ran)
	assert.Equal(t, 1, p.Stationarity.DiffOrder)
	assert.Greater(t, p.TrendR2, 0.99)
}

func TestProfile_WhiteNoiseIsStationary(t *testing.T) {
	p := profile(t, daily(t, noise(200, 11)))
	require.True(t, p.Stationarity.Stationary)
	assert.Equal(t, 0, p.Stationarity.DiffOrder)
}

func TestProfile_ShortSeriesFallsBack(t *testing.T) {
	p := profile(t, daily(t, []float64{3, 1, 4, 1, 5}))
	assert.False(t, p.Stationarity.Ran)
	assert.Equal(t, 1, p.Stationarity.DiffOrder)
	assert.NotEmpty(t, p.Stationarity.Note)
}

func TestProfile_ConstantSeries(t *testing.T) {
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = 7
	}
	p := profile(t, daily(t, vals))
	assert.Equal(t, model.ScaleNone, p.Scale)
	assert.Equal(t, 0.0, p.StdDev)
}

func TestProfile_DetectsMonthlySeason(t *testing.T) {
	n := 120
	vals := noise(n, 5)
	for i := range vals {
		vals[i] = 50 + 10*math.Sin(2*math.Pi*float64(i)/12) + 0.1*vals[i]
	}
	p := profile(t, monthly(t, vals))
	assert.Equal(t, "monthly", p.Frequency.Label)
	assert.Equal(t, 12, p.DominantPeriod)
	assert.Greater(t, p.SeasonalStrength, 0.9)

	rec, err := recommend.ForFamily(&p, model.FamilyClassical, recommend.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, true, rec.Params["seasonal"])
	assert.Equal(t, 12, rec.Params["m"])
	assert.Contains(t, rec.Explanations, "m")
}

func TestForFamily_ClassicalTrend(t *testing.T) {
	p := profile(t, daily(t, trend(200)))
	rec, err := recommend.ForFamily(&p, model.FamilyClassical, recommend.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, rec.Recommended)
	assert.Equal(t, 1, rec.Params["d"])
	for _, k := range []string{"p", "q"} {
		v := rec.Params.Int(k, -1)
		assert.GreaterOrEqual(t, v, 1, k)
		assert.LessOrEqual(t, v, 3, k)
		assert.NotEmpty(t, rec.Explanations[k])
	}
	assert.Equal(t, false, rec.Params["seasonal"])
}

func TestForFamily_ShortSeriesOrdersDefault(t *testing.T) {
	p := profile(t, daily(t, []float64{1, 3, 2, 4, 3, 5, 4, 6, 5, 7, 6, 8}))
	rec, err := recommend.ForFamily(&p, model.FamilyClassical, recommend.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Params["p"])
	assert.Equal(t, 1, rec.Params["q"])
}

func TestForFamily_Business(t *testing.T) {
	p := profile(t, daily(t, noise(120, 2)))
	rec, err := recommend.ForFamily(&p, model.FamilyBusiness, recommend.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "additive", rec.Params["seasonality_mode"])
	cps := rec.Params.Float("changepoint_prior_scale", 0)
	assert.Equal(t, 0.01, cps)
	assert.Len(t, rec.Explanations, 4)
}

func TestForFamily_DeepLearningNeedsHistory(t *testing.T) {
	p := profile(t, daily(t, noise(50, 1)))
	rec, err := recommend.ForFamily(&p, model.FamilyDeepLearning, recommend.DefaultOptions())
	require.NoError(t, err)
	assert.False(t, rec.Recommended)
	assert.Contains(t, rec.Reason, "50")
	assert.Nil(t, rec.Params)
}

func TestForFamily_DeepLearning(t *testing.T) {
	p := profile(t, daily(t, noise(300, 9)))
	rec, err := recommend.ForFamily(&p, model.FamilyDeepLearning, recommend.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, rec.Recommended)
	assert.Equal(t, 50, rec.Params["n_epochs"])
	assert.Equal(t, 22, rec.Params["random_state"])
	assert.Equal(t, p.Scale, rec.Params["scaler_type"])
	chunk := rec.Params.Int("input_chunk_length", 0)
	assert.GreaterOrEqual(t, chunk, 3)
	assert.LessOrEqual(t, chunk, 30)
}

func TestForFamily_Errors(t *testing.T) {
	_, err := recommend.ForFamily(nil, model.FamilyClassical, recommend.DefaultOptions())
	assert.True(t, errors.Is(err, model.ErrUnsupportedConfiguration))

	p := profile(t, daily(t, noise(30, 1)))
	_, err = recommend.ForFamily(&p, model.Family("quantum"), recommend.DefaultOptions())
	var uc *model.UnsupportedConfigurationError
	require.ErrorAs(t, err, &uc)
	assert.Equal(t, "quantum", uc.Value)
}

func TestForFamily_Deterministic(t *testing.T) {
	ts := daily(t, trend(150))
	for _, fam := range []model.Family{model.FamilyClassical, model.FamilyBusiness, model.FamilyDeepLearning} {
		a := profile(t, ts)
		b := profile(t, ts)
		ra, err := recommend.ForFamily(&a, fam, recommend.DefaultOptions())
		require.NoError(t, err)
		rb, err := recommend.ForFamily(&b, fam, recommend.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, ra, rb, string(fam))
	}
}
