// Package app wires together configuration, the API client, the store and
// the model registry into a single Deps struct that commands receive at
// runtime, and holds the training flow shared by the CLI and the HTTP API.
package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/derickschaefer/forecast/internal/config"
	"github.com/derickschaefer/forecast/internal/evaluate"
	"github.com/derickschaefer/forecast/internal/fred"
	"github.com/derickschaefer/forecast/internal/gapfill"
	"github.com/derickschaefer/forecast/internal/logging"
	"github.com/derickschaefer/forecast/internal/metrics"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models"
	"github.com/derickschaefer/forecast/internal/models/builtin"
	"github.com/derickschaefer/forecast/internal/preprocess"
	"github.com/derickschaefer/forecast/internal/recommend"
	"github.com/derickschaefer/forecast/internal/store"
	"github.com/derickschaefer/forecast/internal/transform"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is opened lazily by RequireStore; commands that never touch the
// database never create it.
type Deps struct {
	Config   *config.Config
	Client   *fred.Client
	Store    *store.Store
	Registry *models.Registry
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) (*Deps, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, nil)
	if err != nil {
		return nil, err
	}
	client := fred.NewClient(cfg.APIKey, fred.Options{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		RatePerSec: cfg.Rate,
		Retries:    cfg.Retries,
		Log:        log,
	})
	return &Deps{
		Config:   cfg,
		Client:   client,
		Registry: builtin.Registry(),
		Logger:   log,
		Metrics:  metrics.New(),
	}, nil
}

// RequireStore opens the bbolt store on first use.
func (d *Deps) RequireStore() (*store.Store, error) {
	if d.Store != nil {
		return d.Store, nil
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return nil, err
	}
	d.Logger.WithFields(logrus.Fields{"op": "store", "path": s.Path()}).Debug("store opened")
	d.Store = s
	return s, nil
}

// Close releases the store if it was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}

// ─── Option builders ──────────────────────────────────────────────────────────

// PreprocessOptions converts the configured preprocessing keys.
func (d *Deps) PreprocessOptions() (preprocess.Options, error) {
	opts := preprocess.DefaultOptions()
	fill, err := gapfill.ParseMethod(d.Config.FillMethod)
	if err != nil {
		return opts, err
	}
	scale, err := transform.ParseScale(d.Config.Scaling)
	if err != nil {
		return opts, err
	}
	opts.Fill = fill
	opts.Outliers = d.Config.Outliers
	opts.IQRK = d.Config.IQRK
	opts.Scale = scale
	return opts, nil
}

// EvaluateOptions converts the configured split ratio and horizon.
func (d *Deps) EvaluateOptions() evaluate.Options {
	opts := evaluate.DefaultOptions()
	opts.Ratio = d.Config.SplitRatio
	opts.Horizon = d.Config.Horizon
	return opts
}

// RecommendOptions converts the configured recommendation thresholds.
func (d *Deps) RecommendOptions() recommend.Options {
	opts := recommend.DefaultOptions()
	opts.DeepLearningMinPoints = d.Config.DeepLearningMinPoints
	return opts
}

// Pipeline returns a preprocessing pipeline that logs and records metrics.
func (d *Deps) Pipeline(opts preprocess.Options) *preprocess.Pipeline {
	p := preprocess.New(opts)
	p.Log = d.Logger
	p.Observer = d.Metrics
	return p
}

// Runner returns an evaluation runner that logs and records metrics.
func (d *Deps) Runner() *evaluate.Runner {
	r := evaluate.NewRunner(d.Logger)
	r.Observer = d.Metrics
	return r
}

// ─── Training flow ────────────────────────────────────────────────────────────

// TrainRequest is one train invocation.
type TrainRequest struct {
	Model       string
	Overrides   model.Hyperparameters
	Recommend   bool // layer recommended values under the overrides
	Preprocess  preprocess.Options
	Evaluate    evaluate.Options
	Recommender recommend.Options
	Save        bool // persist the result to the store
}

// TrainResponse carries the evaluation plus what produced it.
type TrainResponse struct {
	Result         model.EvaluationResult
	Recommendation *model.Recommendation
	Preprocessing  model.PreprocessingRecord
}

// Train preprocesses ts, resolves hyperparameters as defaults, then the
// recommendation, then the overrides, and runs the holdout evaluation.
func (d *Deps) Train(ts model.TimeSeries, req TrainRequest) (TrainResponse, error) {
	start := time.Now()
	m, err := d.Registry.Get(req.Model)
	if err != nil {
		return TrainResponse{}, err
	}

	pre, err := d.Pipeline(req.Preprocess).Run(ts)
	if err != nil {
		return TrainResponse{}, err
	}

	var rec *model.Recommendation
	if req.Recommend {
		prof := recommend.Profile(pre.Series, pre.Frequency, req.Recommender)
		r, err := m.Recommend(&prof, req.Recommender)
		if err != nil {
			return TrainResponse{}, err
		}
		if !r.Recommended {
			d.Logger.WithFields(logrus.Fields{"op": "train", "model": m.ID(), "series": ts.Name}).Warn(r.Reason)
		}
		rec = &r
	}
	params := models.Resolve(m, rec, req.Overrides)

	evalOpts := req.Evaluate
	evalOpts.Frequency = pre.Frequency
	evalOpts.Preprocessing = pre.Record.Names()
	if pre.Scaler.Method != transform.ScaleNone {
		evalOpts.Unscale = pre.Scaler.Inverse
	}
	res, err := d.Runner().Evaluate(m, pre.Series, params, evalOpts)
	if err != nil {
		return TrainResponse{}, err
	}
	if rec != nil && !rec.Recommended {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s is not recommended for this series: %s", m.ID(), rec.Reason))
	}

	if req.Save {
		s, err := d.RequireStore()
		if err != nil {
			return TrainResponse{}, err
		}
		if err := s.PutResult(res); err != nil {
			return TrainResponse{}, fmt.Errorf("saving result: %w", err)
		}
	}
	d.Logger.WithFields(logrus.Fields{
		"op":          "train",
		"model":       m.ID(),
		"series":      ts.Name,
		"points":      ts.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("train complete")
	return TrainResponse{Result: res, Recommendation: rec, Preprocessing: pre.Record}, nil
}
