package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/metrics"
)

func TestObservePreprocess(t *testing.T) {
	m := metrics.New()
	m.ObservePreprocess("linear", 3, 1, 10*time.Millisecond)
	m.ObservePreprocess("linear", 2, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PreprocessRuns.WithLabelValues("linear")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.GapsFilled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutliersRemoved))
}

func TestObserveEvaluation(t *testing.T) {
	m := metrics.New()
	m.ObserveEvaluation("arima", time.Second, map[string]float64{"mae": 1.5}, nil)
	m.ObserveEvaluation("arima", time.Second, map[string]float64{"mae": 99}, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("arima", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("arima", "error")))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.EvaluationScore.WithLabelValues("arima", "mae")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest("/v1/models", "GET", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `forecast_http_requests_total{method="GET",route="/v1/models",status="200"} 1`)
}

func TestIndependentRegistries(t *testing.T) {
	a, b := metrics.New(), metrics.New()
	a.GapsFilled.Add(4)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.GapsFilled))
}
