// Package metrics holds the prometheus instruments for preprocessing,
// evaluation and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all instruments. Each Metrics owns its registry so tests and
// multiple servers in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	PreprocessRuns     *prometheus.CounterVec
	PreprocessDuration prometheus.Histogram
	GapsFilled         prometheus.Counter
	OutliersRemoved    prometheus.Counter

	Evaluations        *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	EvaluationScore    *prometheus.GaugeVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		PreprocessRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_preprocess_runs_total",
			Help: "Preprocessing pipeline runs by fill method",
		}, []string{"fill"}),
		PreprocessDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_preprocess_duration_seconds",
			Help:    "Preprocessing pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		GapsFilled: f.NewCounter(prometheus.CounterOpts{
			Name: "forecast_gaps_filled_total",
			Help: "Missing observations imputed by the gap processor",
		}),
		OutliersRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "forecast_outliers_removed_total",
			Help: "Observations removed by the IQR rule",
		}),

		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_evaluations_total",
			Help: "Holdout evaluations by model and outcome",
		}, []string{"model", "outcome"}),
		EvaluationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_evaluation_duration_seconds",
			Help:    "Fit, score and refit latency per model",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"model"}),
		EvaluationScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forecast_evaluation_score",
			Help: "Most recent holdout metric value per model",
		}, []string{"model", "metric"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_http_requests_total",
			Help: "HTTP API requests by route and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_http_request_duration_seconds",
			Help:    "HTTP API latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// ObservePreprocess records one pipeline run.
func (m *Metrics) ObservePreprocess(fill string, gapsFilled, outliersRemoved int, d time.Duration) {
	m.PreprocessRuns.WithLabelValues(fill).Inc()
	m.PreprocessDuration.Observe(d.Seconds())
	m.GapsFilled.Add(float64(gapsFilled))
	m.OutliersRemoved.Add(float64(outliersRemoved))
}

// ObserveEvaluation records one evaluation. scores is ignored on error.
func (m *Metrics) ObserveEvaluation(modelID string, d time.Duration, scores map[string]float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Evaluations.WithLabelValues(modelID, outcome).Inc()
	m.EvaluationDuration.WithLabelValues(modelID).Observe(d.Seconds())
	if err != nil {
		return
	}
	for name, v := range scores {
		m.EvaluationScore.WithLabelValues(modelID, name).Set(v)
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
