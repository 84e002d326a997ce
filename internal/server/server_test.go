package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/app"
	"github.com/derickschaefer/forecast/internal/compare"
	"github.com/derickschaefer/forecast/internal/config"
	"github.com/derickschaefer/forecast/internal/server"
)

func init() { gin.SetMode(gin.TestMode) }

func newServer(t *testing.T) *server.Server {
	t.Helper()
	t.Setenv("FORECAST_LOG_LEVEL", "error")
	cfg, err := config.Load(nil, t.TempDir())
	require.NoError(t, err)
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	deps, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	return server.New(deps)
}

// payload builds a daily series body; nil entries are missing values.
func payload(name string, vals []*float64) map[string]any {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]map[string]any, len(vals))
	for i, v := range vals {
		row := map[string]any{"date": start.AddDate(0, 0, i).Format("2006-01-02"), "value": nil}
		if v != nil {
			row["value"] = *v
		}
		obs[i] = row
	}
	return map[string]any{"name": name, "observations": obs}
}

func f(v float64) *float64 { return &v }

// ramp returns n values 1..n with the listed indices missing.
func ramp(n int, missing ...int) []*float64 {
	vals := make([]*float64, n)
	for i := range vals {
		vals[i] = f(float64(i + 1))
	}
	for _, i := range missing {
		vals[i] = nil
	}
	return vals
}

func seasonalPayload(n int) map[string]any {
	vals := make([]*float64, n)
	for i := range vals {
		vals[i] = f(10 + 0.05*float64(i) + 2*math.Sin(2*math.Pi*float64(i)/7))
	}
	return payload("weekly", vals)
}

func do(t *testing.T, s *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestModels(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 3)
	assert.Equal(t, "arima", infos[0]["id"])
}

func TestPreprocessFillsGap(t *testing.T) {
	body := map[string]any{"series": payload("s", ramp(24, 3))}
	rec := do(t, newServer(t), http.MethodPost, "/v1/preprocess", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	obs := out["series"].(map[string]any)["observations"].([]any)
	require.Len(t, obs, 24)
	assert.InDelta(t, 4.0, obs[3].(map[string]any)["value"], 1e-9)
}

func TestPreprocessInsufficientData(t *testing.T) {
	missing := make([]int, 23)
	for i := range missing {
		missing[i] = i + 1
	}
	body := map[string]any{"series": payload("s", ramp(24, missing...))}
	rec := do(t, newServer(t), http.MethodPost, "/v1/preprocess", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_data", decode(t, rec)["kind"])
}

func TestShortSeriesRejected(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/v1/preprocess", "/v1/profile", "/v1/recommend/arima"} {
		rec := do(t, s, http.MethodPost, path, map[string]any{"series": payload("s", ramp(3))})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, path)
		body := decode(t, rec)
		assert.Equal(t, "insufficient_data", body["kind"], path)
		assert.Contains(t, body["error"], "need at least 20", path)
	}
}

func TestPreprocessBadBody(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/preprocess", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/preprocess", map[string]any{
		"series":        payload("s", ramp(24)),
		"preprocessing": map[string]any{"fill": "cubic"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_configuration", decode(t, rec)["kind"])
}

func TestProfile(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/v1/profile", map[string]any{"series": seasonalPayload(70)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, float64(70), out["length"])
	assert.Equal(t, "weekly", out["series"])
}

func TestRecommendDeepLearningShortSeries(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/v1/recommend/nbeats", map[string]any{"series": seasonalPayload(50)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode(t, rec)["recommendation"].(map[string]any)
	assert.Equal(t, false, r["recommended"])
	assert.NotEmpty(t, r["reason"])
}

func TestRecommendUnknownModel(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/v1/recommend/lstm", map[string]any{"series": seasonalPayload(30)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_configuration", decode(t, rec)["kind"])
}

func TestEvaluateScaledReportsOriginalUnits(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/v1/evaluate", map[string]any{
		"series":        seasonalPayload(84),
		"model":         "prophet",
		"horizon":       7,
		"preprocessing": map[string]any{"scale": "zscore"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	// the series runs from about 8 to 16; z-scores would sit near zero
	for _, key := range []string{"test_forecast", "forecast"} {
		for _, o := range out[key].([]any) {
			v := o.(map[string]any)["value"].(float64)
			assert.Greater(t, v, 5.0, key)
			assert.Less(t, v, 25.0, key)
		}
	}
}

func TestEvaluateAndResults(t *testing.T) {
	s := newServer(t)
	for _, id := range []string{"prophet", "arima"} {
		rec := do(t, s, http.MethodPost, "/v1/evaluate", map[string]any{
			"series":  seasonalPayload(84),
			"model":   id,
			"horizon": 7,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		out := decode(t, rec)
		assert.Equal(t, id, out["model"])
		assert.Len(t, out["forecast"], 7)
		assert.Equal(t, float64(67), out["train_len"])
		assert.Equal(t, float64(17), out["test_len"])
		metrics := out["metrics"].(map[string]any)
		assert.LessOrEqual(t, metrics["mae"].(float64), metrics["rmse"].(float64)+1e-12)
	}
	require.Equal(t, 2, s.Results().Len())

	rec := do(t, s, http.MethodGet, "/v1/results?series=weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var table compare.Table
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "arima", table.Rows[0].Model)
	assert.Equal(t, "prophet", table.Rows[1].Model)
}

func TestEvaluateBounds(t *testing.T) {
	s := newServer(t)
	cases := []map[string]any{
		{"ratio": 0.5},
		{"ratio": 0.95},
		{"horizon": 400},
		{"horizon": -1},
	}
	for i, extra := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			body := map[string]any{"series": seasonalPayload(60), "model": "arima"}
			for k, v := range extra {
				body[k] = v
			}
			rec := do(t, s, http.MethodPost, "/v1/evaluate", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestEvaluateInsufficientForModel(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/v1/evaluate", map[string]any{
		"series": seasonalPayload(30),
		"model":  "nbeats",
		"params": map[string]any{"input_chunk_length": 30},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	do(t, s, http.MethodGet, "/healthz", nil)
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `forecast_http_requests_total{method="GET",route="/healthz",status="200"}`)
}
