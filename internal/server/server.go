// Package server exposes the forecasting pipeline as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/derickschaefer/forecast/internal/app"
	"github.com/derickschaefer/forecast/internal/compare"
	"github.com/derickschaefer/forecast/internal/evaluate"
	"github.com/derickschaefer/forecast/internal/gapfill"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/pipeline"
	"github.com/derickschaefer/forecast/internal/preprocess"
	"github.com/derickschaefer/forecast/internal/recommend"
	"github.com/derickschaefer/forecast/internal/store"
	"github.com/derickschaefer/forecast/internal/transform"
)

// Ratio and horizon bounds accepted from clients.
const (
	MinRatio   = 0.70
	MaxRatio   = 0.90
	MinHorizon = 1
	MaxHorizon = evaluate.MaxHorizon
)

// Server holds the router and the process-wide comparison collector.
type Server struct {
	deps    *app.Deps
	results *compare.Collector
	router  *gin.Engine
	log     logrus.FieldLogger

	// Persist saves evaluation results to the store as well as the collector.
	Persist bool
}

// New builds the router. deps.Store is only used when Persist is set.
func New(deps *app.Deps) *Server {
	s := &Server{
		deps:    deps,
		results: compare.New(),
		log:     deps.Logger.WithField("op", "http"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	v1 := r.Group("/v1")
	v1.GET("/models", s.listModels)
	v1.POST("/preprocess", s.preprocess)
	v1.POST("/profile", s.profile)
	v1.POST("/recommend/:model", s.recommend)
	v1.POST("/evaluate", s.evaluate)
	v1.GET("/results", s.listResults)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Results returns the collector backing /v1/results.
func (s *Server) Results() *compare.Collector { return s.results }

// Run serves on addr until ctx is cancelled, then drains for up to 10s.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// observe logs each request at debug and records its latency.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		d := time.Since(start)
		s.deps.Metrics.ObserveRequest(route, c.Request.Method, c.Writer.Status(), d)
		s.log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"route":       route,
			"status":      c.Writer.Status(),
			"duration_ms": d.Milliseconds(),
		}).Debug("request")
	}
}

// ─── Requests ─────────────────────────────────────────────────────────────────

// Preprocessing overrides the configured pipeline options for one request.
type Preprocessing struct {
	Fill      string   `json:"fill,omitempty"`
	Frequency string   `json:"frequency,omitempty"`
	Outliers  *bool    `json:"outliers,omitempty"`
	IQRK      *float64 `json:"iqr_k,omitempty"`
	Scale     string   `json:"scale,omitempty"`
}

// SeriesRequest is the body of /v1/preprocess, /v1/profile and /v1/recommend.
type SeriesRequest struct {
	Series        pipeline.Payload `json:"series"`
	Preprocessing Preprocessing    `json:"preprocessing"`
}

// EvaluateRequest is the body of /v1/evaluate.
type EvaluateRequest struct {
	SeriesRequest
	Model     string                `json:"model"`
	Params    model.Hyperparameters `json:"params,omitempty"`
	Ratio     float64               `json:"ratio,omitempty"`
	Horizon   int                   `json:"horizon,omitempty"`
	Recommend *bool                 `json:"recommend,omitempty"`
}

// badRequest marks client input errors that carry no typed pipeline error.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func (s *Server) options(p Preprocessing) (preprocess.Options, error) {
	opts, err := s.deps.PreprocessOptions()
	if err != nil {
		return opts, err
	}
	if p.Fill != "" {
		if opts.Fill, err = gapfill.ParseMethod(p.Fill); err != nil {
			return opts, err
		}
	}
	if p.Frequency != "" {
		if opts.Frequency, err = gapfill.ParseFrequency(p.Frequency); err != nil {
			return opts, err
		}
	}
	if p.Scale != "" {
		if opts.Scale, err = transform.ParseScale(p.Scale); err != nil {
			return opts, err
		}
	}
	if p.Outliers != nil {
		opts.Outliers = *p.Outliers
	}
	if p.IQRK != nil {
		opts.IQRK = *p.IQRK
	}
	return opts, nil
}

func (s *Server) bindSeries(c *gin.Context, req *SeriesRequest) (model.TimeSeries, preprocess.Options, error) {
	ts, err := req.Series.Series()
	if err != nil {
		return ts, preprocess.Options{}, badRequest{err}
	}
	if ts.Len() < s.deps.Config.MinPoints {
		return ts, preprocess.Options{}, &model.InsufficientDataError{Op: "series", Need: s.deps.Config.MinPoints, Got: ts.Len()}
	}
	if ts.Len() > s.deps.Config.MaxPoints {
		return ts, preprocess.Options{}, badRequest{fmt.Errorf("series has %d points, limit is %d", ts.Len(), s.deps.Config.MaxPoints)}
	}
	opts, err := s.options(req.Preprocessing)
	return ts, opts, err
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "models": s.deps.Registry.IDs()})
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Registry.List())
}

func (s *Server) preprocess(c *gin.Context) {
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest{err})
		return
	}
	ts, opts, err := s.bindSeries(c, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := s.deps.Pipeline(opts).Run(ts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) profile(c *gin.Context) {
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest{err})
		return
	}
	ts, opts, err := s.bindSeries(c, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := s.deps.Pipeline(opts).Run(ts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recommend.Profile(res.Series, res.Frequency, s.deps.RecommendOptions()))
}

func (s *Server) recommend(c *gin.Context) {
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest{err})
		return
	}
	ts, opts, err := s.bindSeries(c, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := s.deps.Pipeline(opts).Run(ts)
	if err != nil {
		writeError(c, err)
		return
	}
	rec, prof, err := s.deps.Registry.Recommend(c.Param("model"), res.Series, res.Frequency, s.deps.RecommendOptions())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendation": rec, "profile": prof})
}

func (s *Server) evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest{err})
		return
	}
	ts, opts, err := s.bindSeries(c, &req.SeriesRequest)
	if err != nil {
		writeError(c, err)
		return
	}

	evalOpts := s.deps.EvaluateOptions()
	if req.Ratio != 0 {
		if req.Ratio < MinRatio || req.Ratio > MaxRatio {
			writeError(c, badRequest{fmt.Errorf("ratio %g: must be between %.2f and %.2f", req.Ratio, MinRatio, MaxRatio)})
			return
		}
		evalOpts.Ratio = req.Ratio
	}
	if req.Horizon != 0 {
		if req.Horizon < MinHorizon || req.Horizon > MaxHorizon {
			writeError(c, badRequest{fmt.Errorf("horizon %d: must be between %d and %d", req.Horizon, MinHorizon, MaxHorizon)})
			return
		}
		evalOpts.Horizon = req.Horizon
	}
	useRec := true
	if req.Recommend != nil {
		useRec = *req.Recommend
	}

	out, err := s.deps.Train(ts, app.TrainRequest{
		Model:       req.Model,
		Overrides:   req.Params,
		Recommend:   useRec,
		Preprocess:  opts,
		Evaluate:    evalOpts,
		Recommender: s.deps.RecommendOptions(),
		Save:        s.Persist,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.results.Add(out.Result)
	c.JSON(http.StatusOK, out.Result)
}

func (s *Server) listResults(c *gin.Context) {
	results := s.results.Results()
	if name := c.Query("series"); name != "" {
		results = s.results.ForSeries(name)
	}
	c.JSON(http.StatusOK, compare.New(results...).Table())
}

// ─── Errors ───────────────────────────────────────────────────────────────────

// Status maps an error to its HTTP status and kind label.
func Status(err error) (int, string) {
	var br badRequest
	switch {
	case errors.Is(err, model.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, model.ErrInvalidSplit):
		return http.StatusUnprocessableEntity, "invalid_split"
	case errors.Is(err, model.ErrMisalignedForecast):
		return http.StatusUnprocessableEntity, "misaligned_forecast"
	case errors.Is(err, model.ErrAmbiguousTimestamp):
		return http.StatusUnprocessableEntity, "ambiguous_timestamp"
	case errors.Is(err, model.ErrUnsupportedConfiguration):
		return http.StatusBadRequest, "unsupported_configuration"
	case errors.As(err, &br):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	status, kind := Status(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": kind})
}
