// Package model defines the canonical data types used throughout forecast.
// These types are the single source of truth for series, preprocessing
// records, profiles, hyperparameters and evaluation results, plus the result
// envelope that every command returns.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// ─── Time Series Types ────────────────────────────────────────────────────────

// Observation is a single data point in a time series.
// Value is NaN when the point is missing.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// IsMissing returns true if the observation value is NaN (missing data).
func (o Observation) IsMissing() bool {
	return math.IsNaN(o.Value)
}

type observationJSON struct {
	Date  time.Time `json:"date"`
	Value *float64  `json:"value"`
}

// MarshalJSON writes missing values as null; encoding/json cannot encode NaN.
func (o Observation) MarshalJSON() ([]byte, error) {
	row := observationJSON{Date: o.Date}
	if !math.IsNaN(o.Value) && !math.IsInf(o.Value, 0) {
		v := o.Value
		row.Value = &v
	}
	return json.Marshal(row)
}

// UnmarshalJSON reads null as a missing value.
func (o *Observation) UnmarshalJSON(b []byte) error {
	var row observationJSON
	if err := json.Unmarshal(b, &row); err != nil {
		return err
	}
	o.Date = row.Date
	if row.Value == nil {
		o.Value = math.NaN()
	} else {
		o.Value = *row.Value
	}
	return nil
}

// TimeSeries is an ordered sequence of observations with strictly
// increasing dates. Values may be missing until preprocessing completes.
type TimeSeries struct {
	Name   string        `json:"name"`
	Source string        `json:"source,omitempty"`
	Obs    []Observation `json:"observations"`
}

// NewTimeSeries copies obs, sorts it ascending by date and rejects
// duplicate timestamps.
func NewTimeSeries(name string, obs []Observation) (TimeSeries, error) {
	cp := make([]Observation, len(obs))
	copy(cp, obs)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })
	for i := 1; i < len(cp); i++ {
		if cp[i].Date.Equal(cp[i-1].Date) {
			return TimeSeries{}, fmt.Errorf("series %q: duplicate timestamp %s", name, cp[i].Date.Format(time.RFC3339))
		}
	}
	return TimeSeries{Name: name, Obs: cp}, nil
}

// Len returns the number of observations, missing included.
func (s TimeSeries) Len() int { return len(s.Obs) }

// Values returns a copy of the value column.
func (s TimeSeries) Values() []float64 {
	out := make([]float64, len(s.Obs))
	for i, o := range s.Obs {
		out[i] = o.Value
	}
	return out
}

// Dates returns a copy of the date column.
func (s TimeSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Obs))
	for i, o := range s.Obs {
		out[i] = o.Date
	}
	return out
}

// Known returns the non-missing values in order.
func (s TimeSeries) Known() []float64 {
	out := make([]float64, 0, len(s.Obs))
	for _, o := range s.Obs {
		if !o.IsMissing() {
			out = append(out, o.Value)
		}
	}
	return out
}

// MissingCount returns the number of missing values.
func (s TimeSeries) MissingCount() int {
	n := 0
	for _, o := range s.Obs {
		if o.IsMissing() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (s TimeSeries) Clone() TimeSeries {
	out := s
	out.Obs = make([]Observation, len(s.Obs))
	copy(out.Obs, s.Obs)
	return out
}

// Slice returns a copy of observations [i, j).
func (s TimeSeries) Slice(i, j int) TimeSeries {
	out := s
	out.Obs = make([]Observation, j-i)
	copy(out.Obs, s.Obs[i:j])
	return out
}

// WithValues returns a copy of s with vals as its value column.
// vals must have the same length as s.
func (s TimeSeries) WithValues(vals []float64) TimeSeries {
	out := s.Clone()
	for i := range out.Obs {
		out.Obs[i].Value = vals[i]
	}
	return out
}

// First and Last return the boundary dates; zero time for an empty series.
func (s TimeSeries) First() time.Time {
	if len(s.Obs) == 0 {
		return time.Time{}
	}
	return s.Obs[0].Date
}

func (s TimeSeries) Last() time.Time {
	if len(s.Obs) == 0 {
		return time.Time{}
	}
	return s.Obs[len(s.Obs)-1].Date
}

// ─── Frequency ────────────────────────────────────────────────────────────────

// Frequency is the expected sampling interval of a series. Fixed
// frequencies step by Step; calendar frequencies step by Months.
type Frequency struct {
	Label  string        `json:"label"`
	Step   time.Duration `json:"step,omitempty"`
	Months int           `json:"months,omitempty"`
}

// IsZero reports whether no frequency has been set.
func (f Frequency) IsZero() bool { return f.Step <= 0 && f.Months <= 0 }

// Calendar reports whether the frequency steps by calendar months.
func (f Frequency) Calendar() bool { return f.Months > 0 }

// Add returns t advanced by k steps. Calendar steps keep the day of month,
// clamped to the length of the target month.
func (f Frequency) Add(t time.Time, k int) time.Time {
	if !f.Calendar() {
		return t.Add(time.Duration(k) * f.Step)
	}
	y, m, d := t.Date()
	total := int(m) - 1 + k*f.Months
	ty := y + floorDiv(total, 12)
	tm := time.Month(total - floorDiv(total, 12)*12 + 1)
	if last := daysIn(ty, tm); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(ty, tm, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// Nominal returns the approximate length of one step, used for ratios.
func (f Frequency) Nominal() time.Duration {
	if f.Calendar() {
		return time.Duration(f.Months) * 30 * 24 * time.Hour
	}
	return f.Step
}

func (f Frequency) String() string {
	if f.Label != "" {
		return f.Label
	}
	if f.Calendar() {
		return fmt.Sprintf("%dmo", f.Months)
	}
	return f.Step.String()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ─── Preprocessing Types ──────────────────────────────────────────────────────

// Gap is a maximal run of missing positions [Start, End]. Before and After
// hold the bounding known values; nil means the gap is open at that edge.
type Gap struct {
	Start     int       `json:"start"`
	End       int       `json:"end"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Before    *float64  `json:"before"`
	After     *float64  `json:"after"`
}

// Len returns the number of missing slots in the gap.
func (g Gap) Len() int { return g.End - g.Start + 1 }

// Param is one ordered key=value pair of a preprocessing step.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Step is one applied preprocessing operation.
type Step struct {
	Name      string  `json:"name"`
	Params    []Param `json:"params,omitempty"`
	Count     int     `json:"count"`
	Positions []int   `json:"positions,omitempty"`
}

// String renders the step as name(k=v, ...).
func (s Step) String() string {
	out := s.Name + "("
	for i, p := range s.Params {
		if i > 0 {
			out += ", "
		}
		out += p.Key + "=" + p.Value
	}
	return out + ")"
}

// PreprocessingRecord is the ordered, append-only list of steps applied by
// one pipeline run.
type PreprocessingRecord struct {
	Steps []Step `json:"steps"`
}

// Append adds a step to the end of the record.
func (r *PreprocessingRecord) Append(s Step) {
	r.Steps = append(r.Steps, s)
}

// Names returns the rendered steps in order.
func (r PreprocessingRecord) Names() []string {
	out := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.String()
	}
	return out
}

// ─── Profile & Recommendation Types ──────────────────────────────────────────

// Family groups forecasting models by approach.
type Family string

const (
	FamilyClassical    Family = "classical"
	FamilyBusiness     Family = "business"
	FamilyDeepLearning Family = "deep_learning"
)

// Scaling strategies.
const (
	ScaleNone     = "none"
	ScaleStandard = "standard"
	ScaleMinMax   = "minmax"
)

// ADFStep is one augmented Dickey-Fuller run at a differencing order.
type ADFStep struct {
	Order      int     `json:"order"`
	Statistic  float64 `json:"statistic"`
	PValue     float64 `json:"p_value"`
	Lags       int     `json:"lags"`
	Stationary bool    `json:"stationary"`
}

// Stationarity summarises the differencing search.
type Stationarity struct {
	Ran        bool      `json:"ran"`
	Stationary bool      `json:"stationary"`
	DiffOrder  int       `json:"diff_order"`
	Tests      []ADFStep `json:"tests,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// SeriesProfile is a read-only snapshot of a series' intrinsic statistics.
// It is recomputed for every recommendation and never cached.
type SeriesProfile struct {
	Series           string       `json:"series"`
	Length           int          `json:"length"`
	Known            int          `json:"known"`
	Frequency        Frequency    `json:"frequency"`
	Mean             float64      `json:"mean"`
	StdDev           float64      `json:"std_dev"`
	Min              float64      `json:"min"`
	Max              float64      `json:"max"`
	Skewness         float64      `json:"skewness"`
	Stationarity     Stationarity `json:"stationarity"`
	ACF              []float64    `json:"acf"`
	PACF             []float64    `json:"pacf"`
	ConfBound        float64      `json:"conf_bound"`
	SeasonalPeriods  []int        `json:"seasonal_periods,omitempty"`
	DominantPeriod   int          `json:"dominant_period"`
	SeasonalStrength float64      `json:"seasonal_strength"`
	TrendStrength    float64      `json:"trend_strength"`
	TrendR2          float64      `json:"trend_r2"`
	Scale            string       `json:"scale"`
}

// Recommendation is the advisor's output for one model.
type Recommendation struct {
	Model        string            `json:"model"`
	Family       Family            `json:"family"`
	Recommended  bool              `json:"recommended"`
	Reason       string            `json:"reason,omitempty"`
	Params       Hyperparameters   `json:"params,omitempty"`
	Explanations map[string]string `json:"explanations,omitempty"`
}

// ─── Evaluation Types ─────────────────────────────────────────────────────────

// Split is a contiguous holdout partition; Train immediately precedes Test.
type Split struct {
	Ratio float64    `json:"ratio"`
	Train TimeSeries `json:"train"`
	Test  TimeSeries `json:"test"`
}

// EvaluationResult is the immutable outcome of one training run.
type EvaluationResult struct {
	RunID         string             `json:"run_id"`
	Series        string             `json:"series"`
	Model         string             `json:"model"`
	Family        Family             `json:"family"`
	Params        Hyperparameters    `json:"params"`
	Ratio         float64            `json:"ratio"`
	TrainLen      int                `json:"train_len"`
	TestLen       int                `json:"test_len"`
	Horizon       int                `json:"horizon"`
	TrainedAt     time.Time          `json:"trained_at"`
	DurationMs    int64              `json:"duration_ms"`
	TestForecast  []Observation      `json:"test_forecast"`
	Forecast      []Observation      `json:"forecast,omitempty"`
	Metrics       map[string]float64 `json:"metrics"`
	Preprocessing []string           `json:"preprocessing,omitempty"`
	Warnings      []string           `json:"warnings,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindSeries         = "series"
	KindGaps           = "gaps"
	KindPreprocess     = "preprocess"
	KindProfile        = "profile"
	KindRecommendation = "recommendation"
	KindSplit          = "split"
	KindEvaluation     = "evaluation"
	KindComparison     = "comparison"
	KindModels         = "models"
	KindTable          = "table"
)

// PreprocessResult is the payload of a preprocessing run.
type PreprocessResult struct {
	Series TimeSeries          `json:"series"`
	Record PreprocessingRecord `json:"record"`
}

// GapReport is the payload of gap detection.
type GapReport struct {
	Series    string    `json:"series"`
	Frequency Frequency `json:"frequency"`
	Length    int       `json:"length"`
	Gaps      []Gap     `json:"gaps"`
}
