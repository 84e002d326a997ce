// Package models defines the capability every forecasting backend exposes
// and the registry that dispatches to backends by identifier.
//
// A backend recommends hyperparameters from a profile, fits on a training
// series and returns a Fitted value that predicts a horizon. Adding a model
// means implementing ForecastModel and registering it; nothing else changes.
package models

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/recommend"
)

// ─── Parameter Schema ─────────────────────────────────────────────────────────

// ParamKind is the value type of a hyperparameter.
type ParamKind string

const (
	KindInt    ParamKind = "int"
	KindFloat  ParamKind = "float"
	KindBool   ParamKind = "bool"
	KindChoice ParamKind = "choice"
)

// ParamSpec documents one hyperparameter of a model.
type ParamSpec struct {
	Name        string    `json:"name"`
	Kind        ParamKind `json:"kind"`
	Default     any       `json:"default"`
	Min         float64   `json:"min,omitempty"`
	Max         float64   `json:"max,omitempty"`
	Choices     []string  `json:"choices,omitempty"`
	Description string    `json:"description"`
}

// Bounded reports whether the spec carries a numeric range.
func (s ParamSpec) Bounded() bool {
	return (s.Kind == KindInt || s.Kind == KindFloat) && s.Max > s.Min
}

// Defaults returns the default value of every spec.
func Defaults(specs []ParamSpec) model.Hyperparameters {
	out := make(model.Hyperparameters, len(specs))
	for _, s := range specs {
		out[s.Name] = s.Default
	}
	return out
}

// Clamp returns params with numeric entries pulled into their spec range and
// unknown choices replaced by the default. It is applied to recommendations
// only; user overrides bypass it.
func Clamp(specs []ParamSpec, params model.Hyperparameters) model.Hyperparameters {
	if params == nil {
		return nil
	}
	out := params.Clone()
	for _, s := range specs {
		if _, ok := out[s.Name]; !ok {
			continue
		}
		switch {
		case s.Kind == KindInt && s.Bounded():
			v := out.Int(s.Name, 0)
			out[s.Name] = int(math.Max(s.Min, math.Min(s.Max, float64(v))))
		case s.Kind == KindFloat && s.Bounded():
			v := out.Float(s.Name, 0)
			out[s.Name] = math.Max(s.Min, math.Min(s.Max, v))
		case s.Kind == KindChoice && len(s.Choices) > 0:
			v := out.String(s.Name, "")
			if !contains(s.Choices, v) {
				out[s.Name] = s.Default
			}
		}
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

// ─── Capability ───────────────────────────────────────────────────────────────

// Fitted is a trained model.
type Fitted interface {
	// Predict returns exactly horizon values continuing the training series.
	Predict(horizon int) ([]float64, error)
}

// ForecastModel is the capability set a backend implements.
type ForecastModel interface {
	ID() string
	Family() model.Family
	Description() string
	// Params documents the accepted hyperparameters.
	Params() []ParamSpec
	// MinTrain is the fewest training points Fit accepts with params.
	MinTrain(params model.Hyperparameters) int
	Recommend(p *model.SeriesProfile, opts recommend.Options) (model.Recommendation, error)
	Fit(train model.TimeSeries, params model.Hyperparameters) (Fitted, error)
}

// Info is the listing form of a registered model.
type Info struct {
	ID          string       `json:"id"`
	Family      model.Family `json:"family"`
	Description string       `json:"description"`
	Params      []ParamSpec  `json:"params"`
}

// Describe builds the listing form of m.
func Describe(m ForecastModel) Info {
	return Info{ID: m.ID(), Family: m.Family(), Description: m.Description(), Params: m.Params()}
}

// Resolve layers model defaults, then recommended values, then user
// overrides. Overrides are copied through unchanged.
func Resolve(m ForecastModel, rec *model.Recommendation, overrides model.Hyperparameters) model.Hyperparameters {
	params := Defaults(m.Params())
	if rec != nil && rec.Recommended {
		params = params.Merge(rec.Params)
	}
	return params.Merge(overrides)
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry holds the available models keyed by identifier. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ForecastModel
}

// NewRegistry returns a registry holding ms. It panics on duplicate IDs,
// which are programming errors.
func NewRegistry(ms ...ForecastModel) *Registry {
	r := &Registry{models: make(map[string]ForecastModel)}
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds m under its ID.
func (r *Registry) Register(m ForecastModel) error {
	if m == nil || m.ID() == "" {
		return fmt.Errorf("registry: model must have a non-empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.models[m.ID()]; dup {
		return fmt.Errorf("registry: model %q already registered", m.ID())
	}
	r.models[m.ID()] = m
	return nil
}

// Get returns the model registered under id.
func (r *Registry) Get(id string) (ForecastModel, error) {
	r.mu.RLock()
	m, ok := r.models[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &model.UnsupportedConfigurationError{
			Op: "registry", Key: "model", Value: id, Reason: fmt.Sprintf("known models: %v", r.IDs()),
		}
	}
	return m, nil
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns the listing form of every model in ID order.
func (r *Registry) List() []Info {
	ids := r.IDs()
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		if m, err := r.Get(id); err == nil {
			out = append(out, Describe(m))
		}
	}
	return out
}

// Recommend profiles ts afresh and asks model id for hyperparameters.
func (r *Registry) Recommend(id string, ts model.TimeSeries, freq model.Frequency, opts recommend.Options) (model.Recommendation, model.SeriesProfile, error) {
	m, err := r.Get(id)
	if err != nil {
		return model.Recommendation{}, model.SeriesProfile{}, err
	}
	p := recommend.Profile(ts, freq, opts)
	rec, err := m.Recommend(&p, opts)
	if err != nil {
		return model.Recommendation{}, p, err
	}
	return rec, p, nil
}

// FamilyRecommendation is the shared adapter path: run the family
// heuristics, tag the model and clamp to its schema.
func FamilyRecommendation(m ForecastModel, p *model.SeriesProfile, opts recommend.Options) (model.Recommendation, error) {
	rec, err := recommend.ForFamily(p, m.Family(), opts)
	if err != nil {
		return model.Recommendation{}, err
	}
	rec.Model = m.ID()
	rec.Params = Clamp(m.Params(), rec.Params)
	return rec, nil
}

// ─── Adapter Helpers ──────────────────────────────────────────────────────────

// CleanValues returns the values of ts, rejecting missing entries. Models
// expect preprocessed input.
func CleanValues(op string, ts model.TimeSeries, need int) ([]float64, error) {
	vals := ts.Values()
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &model.UnsupportedConfigurationError{
				Op: op, Key: "series", Value: fmt.Sprintf("missing value at %d", i),
				Reason: "run preprocessing before fitting",
			}
		}
	}
	if len(vals) < need {
		return nil, &model.InsufficientDataError{Op: op, Need: need, Got: len(vals)}
	}
	return vals, nil
}

// CheckHorizon validates a prediction horizon.
func CheckHorizon(op string, horizon int) error {
	if horizon < 1 {
		return &model.UnsupportedConfigurationError{
			Op: op, Key: "horizon", Value: fmt.Sprint(horizon), Reason: "must be at least 1",
		}
	}
	return nil
}
