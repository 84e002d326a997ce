package evaluate

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/derickschaefer/forecast/internal/gapfill"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models"
)

// Horizon bounds for the future forecast.
const (
	DefaultHorizon = 30
	MaxHorizon     = 365
)

// Options configures one evaluation run.
type Options struct {
	Ratio     float64
	Horizon   int
	MinTest   int
	Frequency model.Frequency // zero: infer from the series
	// Preprocessing is the rendered step record copied into the result.
	Preprocessing []string
	// Unscale maps model-space values back to the series' original units.
	// When set, forecasts are reported and scored after unscaling.
	Unscale func([]float64) []float64
}

// DefaultOptions returns ratio 0.8, horizon 30 and a one-point test minimum.
func DefaultOptions() Options {
	return Options{Ratio: DefaultRatio, Horizon: DefaultHorizon, MinTest: 1}
}

func (o Options) withDefaults() Options {
	if o.Ratio == 0 {
		o.Ratio = DefaultRatio
	}
	if o.Horizon == 0 {
		o.Horizon = DefaultHorizon
	}
	if o.MinTest <= 0 {
		o.MinTest = 1
	}
	return o
}

// Observer receives per-run outcomes; the metrics package implements it.
type Observer interface {
	ObserveEvaluation(modelID string, d time.Duration, scores map[string]float64, err error)
}

// Runner fits, scores and refits one model at a time. The zero value is
// usable.
type Runner struct {
	Log      logrus.FieldLogger
	Observer Observer
	Now      func() time.Time
	NewID    func() string
}

// NewRunner returns a Runner logging to log.
func NewRunner(log logrus.FieldLogger) *Runner {
	return &Runner{Log: log}
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Log != nil {
		return r.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

// Evaluate splits ts, fits m on train, scores the forecast of the test
// window, then refits on the whole series and forecasts opts.Horizon points
// past its end.
func (r *Runner) Evaluate(m models.ForecastModel, ts model.TimeSeries, params model.Hyperparameters, opts Options) (model.EvaluationResult, error) {
	start := time.Now()
	res, err := r.evaluate(m, ts, params, opts)
	if r.Observer != nil {
		r.Observer.ObserveEvaluation(m.ID(), time.Since(start), res.Metrics, err)
	}
	log := r.logger().WithFields(logrus.Fields{
		"op": "evaluate", "series": ts.Name, "model": m.ID(), "points": ts.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		log.WithError(err).Debug("evaluation failed")
		return model.EvaluationResult{}, err
	}
	for _, w := range res.Warnings {
		log.Warn(w)
	}
	log.WithField("metrics", res.Metrics).Debug("evaluation complete")
	return res, nil
}

func (r *Runner) evaluate(m models.ForecastModel, ts model.TimeSeries, params model.Hyperparameters, opts Options) (model.EvaluationResult, error) {
	opts = opts.withDefaults()
	if opts.Horizon < 1 || opts.Horizon > MaxHorizon {
		return model.EvaluationResult{}, &model.UnsupportedConfigurationError{
			Op: "evaluate", Key: "horizon", Value: fmt.Sprint(opts.Horizon),
			Reason: fmt.Sprintf("must be between 1 and %d", MaxHorizon),
		}
	}
	freq := opts.Frequency
	if freq.IsZero() {
		f, err := gapfill.InferFrequency(ts.Dates())
		if err != nil {
			return model.EvaluationResult{}, fmt.Errorf("evaluate: %w", err)
		}
		freq = f
	}

	started := time.Now()
	split, err := Split(ts, opts.Ratio, m.MinTrain(params), opts.MinTest)
	if err != nil {
		return model.EvaluationResult{}, err
	}

	fitted, err := m.Fit(split.Train, params)
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("evaluate: fit %s: %w", m.ID(), err)
	}
	testFc, err := predict(m.ID(), fitted, split.Test.Len())
	if err != nil {
		return model.EvaluationResult{}, err
	}
	actual := split.Test.Values()
	if opts.Unscale != nil {
		actual, testFc = opts.Unscale(actual), opts.Unscale(testFc)
	}
	scores, warnings, err := Score(actual, testFc)
	if err != nil {
		return model.EvaluationResult{}, err
	}

	full, err := m.Fit(ts, params)
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("evaluate: refit %s: %w", m.ID(), err)
	}
	future, err := predict(m.ID(), full, opts.Horizon)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	if opts.Unscale != nil {
		future = opts.Unscale(future)
	}
	if opts.Horizon > split.Train.Len() {
		warnings = append(warnings, fmt.Sprintf("horizon %d exceeds the training length %d", opts.Horizon, split.Train.Len()))
	}

	res := model.EvaluationResult{
		RunID:         r.newID(),
		Series:        ts.Name,
		Model:         m.ID(),
		Family:        m.Family(),
		Params:        params.Clone(),
		Ratio:         opts.Ratio,
		TrainLen:      split.Train.Len(),
		TestLen:       split.Test.Len(),
		Horizon:       opts.Horizon,
		TrainedAt:     r.now(),
		DurationMs:    time.Since(started).Milliseconds(),
		TestForecast:  Align(split.Test, testFc),
		Forecast:      Future(ts.Last(), freq, future),
		Metrics:       scores,
		Preprocessing: append([]string(nil), opts.Preprocessing...),
		Warnings:      warnings,
	}
	return res, nil
}

// predict asks f for exactly n points.
func predict(id string, f models.Fitted, n int) ([]float64, error) {
	fc, err := f.Predict(n)
	if err != nil {
		return nil, fmt.Errorf("evaluate: predict %s: %w", id, err)
	}
	if len(fc) != n {
		return nil, &model.MisalignedForecastError{Op: "evaluate", Model: id, Want: n, Got: len(fc)}
	}
	return fc, nil
}

// Align stamps a forecast with the timestamps of the window it covers.
// fc must be as long as window.
func Align(window model.TimeSeries, fc []float64) []model.Observation {
	out := make([]model.Observation, len(fc))
	for i, v := range fc {
		out[i] = model.Observation{Date: window.Obs[i].Date, Value: v}
	}
	return out
}

// Future stamps values with the grid slots following last.
func Future(last time.Time, freq model.Frequency, vals []float64) []model.Observation {
	out := make([]model.Observation, len(vals))
	for i, v := range vals {
		out[i] = model.Observation{Date: freq.Add(last, i+1), Value: v}
	}
	return out
}
