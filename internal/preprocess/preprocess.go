// Package preprocess runs the cleaning pipeline: outlier conversion, gap
// filling and optional scaling. A run never modifies its input and returns
// the clean series with the ordered record of applied steps.
package preprocess

import (
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/derickschaefer/forecast/internal/gapfill"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/outlier"
	"github.com/derickschaefer/forecast/internal/transform"
)

// Options selects the pipeline steps.
type Options struct {
	Fill      gapfill.Method
	Frequency model.Frequency // zero: infer
	Outliers  bool
	IQRK      float64
	Scale     transform.ScaleMethod
}

// DefaultOptions returns linear fill, outlier removal off, k=1.5, no scaling.
func DefaultOptions() Options {
	return Options{Fill: gapfill.Linear, IQRK: outlier.DefaultK, Scale: transform.ScaleNone}
}

// Result is the outcome of one run.
type Result struct {
	Series    model.TimeSeries          `json:"series"`
	Record    model.PreprocessingRecord `json:"record"`
	Frequency model.Frequency           `json:"frequency"`
	Gaps      []model.Gap               `json:"gaps"`
	Outliers  *outlier.Result           `json:"outliers,omitempty"`
	Scaler    transform.Scaler          `json:"scaler"`
}

// Observer receives per-run counts; the metrics package implements it.
type Observer interface {
	ObservePreprocess(fill string, gapsFilled, outliersRemoved int, d time.Duration)
}

// Pipeline binds options to optional logging and metrics.
type Pipeline struct {
	Options  Options
	Log      logrus.FieldLogger
	Observer Observer
}

// New returns a Pipeline with a discarding logger.
func New(opts Options) *Pipeline {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Pipeline{Options: opts, Log: l}
}

// Run cleans ts.
func (p *Pipeline) Run(ts model.TimeSeries) (Result, error) {
	start := time.Now()
	res, err := Run(ts, p.Options)
	if err != nil {
		p.Log.WithFields(logrus.Fields{"op": "preprocess", "series": ts.Name}).WithError(err).Debug("preprocess failed")
		return res, err
	}
	removed := 0
	if res.Outliers != nil {
		removed = res.Outliers.Count()
	}
	filled := 0
	for _, g := range res.Gaps {
		filled += g.Len()
	}
	p.Log.WithFields(logrus.Fields{
		"op":          "preprocess",
		"series":      ts.Name,
		"points":      res.Series.Len(),
		"frequency":   res.Frequency.String(),
		"gaps":        len(res.Gaps),
		"outliers":    removed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("preprocess complete")
	if p.Observer != nil {
		p.Observer.ObservePreprocess(string(p.Options.Fill), filled, removed, time.Since(start))
	}
	return res, nil
}

// Run is the pure pipeline. The series is first placed on its grid; outliers
// are then converted to missing slots and the shared imputation runs twice,
// once for the true gaps and once for the outlier positions.
func Run(ts model.TimeSeries, opts Options) (Result, error) {
	if opts.Fill == "" {
		opts.Fill = gapfill.Linear
	}
	if opts.IQRK == 0 {
		opts.IQRK = outlier.DefaultK
	}

	reg, freq, err := gapfill.Regularize(ts, opts.Frequency)
	if err != nil {
		return Result{}, err
	}
	res := Result{Frequency: freq, Gaps: gapfill.FindGaps(reg)}
	gapMask := gapfill.MissingMask(reg)

	work := reg
	var outMask []bool
	if opts.Outliers {
		marked, det, err := outlier.Remove(reg, opts.IQRK)
		if err != nil {
			return Result{}, err
		}
		res.Outliers = &det
		work = marked
		outMask = make([]bool, reg.Len())
		for _, i := range det.Positions {
			outMask[i] = true
		}
		res.Record.Append(model.Step{
			Name:      "outlier_removal",
			Params:    []model.Param{{Key: "iqr_k", Value: formatFloat(opts.IQRK)}},
			Count:     det.Count(),
			Positions: det.Positions,
		})
	}

	work, filled, err := gapfill.Impute(work, gapMask, opts.Fill)
	if err != nil {
		return Result{}, err
	}
	var gapPositions []int
	for i, m := range gapMask {
		if m {
			gapPositions = append(gapPositions, i)
		}
	}
	res.Record.Append(model.Step{
		Name: "gap_fill",
		Params: []model.Param{
			{Key: "method", Value: string(opts.Fill)},
			{Key: "frequency", Value: freq.String()},
		},
		Count:     filled,
		Positions: gapPositions,
	})

	if outMask != nil && res.Outliers.Count() > 0 {
		work, _, err = gapfill.Impute(work, outMask, opts.Fill)
		if err != nil {
			return Result{}, err
		}
	}

	if opts.Scale != "" && opts.Scale != transform.ScaleNone {
		scaled, sc, err := transform.Normalize(work, opts.Scale)
		if err != nil {
			return Result{}, err
		}
		work = scaled
		res.Scaler = sc
		res.Record.Append(model.Step{
			Name: "scaling",
			Params: []model.Param{
				{Key: "method", Value: string(sc.Method)},
				{Key: "center", Value: formatFloat(sc.Center)},
				{Key: "scale", Value: formatFloat(sc.Scale)},
			},
			Count: work.Len(),
		})
	} else {
		res.Scaler = transform.Scaler{Method: transform.ScaleNone, Scale: 1}
	}

	res.Series = work
	return res, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
