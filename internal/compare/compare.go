// Package compare collects evaluation results for side-by-side display.
// It never ranks models; it only orders results deterministically and
// lays their metrics out in a common table.
package compare

import (
	"sort"
	"sync"

	"github.com/derickschaefer/forecast/internal/evaluate"
	"github.com/derickschaefer/forecast/internal/model"
)

// Collector is an append-only set of evaluation results. It is safe for
// concurrent use.
type Collector struct {
	mu      sync.Mutex
	results []model.EvaluationResult
}

// New returns a Collector seeded with results.
func New(results ...model.EvaluationResult) *Collector {
	c := &Collector{}
	for _, r := range results {
		c.Add(r)
	}
	return c
}

// Add appends a result. Results are immutable once added.
func (c *Collector) Add(r model.EvaluationResult) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

// Len returns the number of collected results.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Results returns a copy ordered by model ID, then training time, then run ID.
func (c *Collector) Results() []model.EvaluationResult {
	c.mu.Lock()
	out := append([]model.EvaluationResult(nil), c.results...)
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		if !a.TrainedAt.Equal(b.TrainedAt) {
			return a.TrainedAt.Before(b.TrainedAt)
		}
		return a.RunID < b.RunID
	})
	return out
}

// ForSeries returns the ordered results for one series.
func (c *Collector) ForSeries(name string) []model.EvaluationResult {
	var out []model.EvaluationResult
	for _, r := range c.Results() {
		if r.Series == name {
			out = append(out, r)
		}
	}
	return out
}

// ─── Table ────────────────────────────────────────────────────────────────────

// Row is one result in the comparison table.
type Row struct {
	RunID     string             `json:"run_id"`
	Model     string             `json:"model"`
	Series    string             `json:"series"`
	Params    string             `json:"params"`
	TrainLen  int                `json:"train_len"`
	TestLen   int                `json:"test_len"`
	TrainedAt string             `json:"trained_at"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Table is the comparison view: the metric columns plus one row per result.
type Table struct {
	Metrics []evaluate.Metric `json:"metrics"`
	Rows    []Row             `json:"rows"`
}

// Table lays out the ordered results. Metric columns follow the catalogue,
// followed by any metric a result carries that the catalogue lacks.
func (c *Collector) Table() Table {
	results := c.Results()
	t := Table{Metrics: evaluate.Catalogue()}
	known := map[string]bool{}
	for _, m := range t.Metrics {
		known[m.Name] = true
	}
	var extra []string
	for _, r := range results {
		for k := range r.Metrics {
			if !known[k] {
				known[k] = true
				extra = append(extra, k)
			}
		}
		t.Rows = append(t.Rows, Row{
			RunID:     r.RunID,
			Model:     r.Model,
			Series:    r.Series,
			Params:    r.Params.Format(),
			TrainLen:  r.TrainLen,
			TestLen:   r.TestLen,
			TrainedAt: r.TrainedAt.UTC().Format("2006-01-02 15:04:05"),
			Metrics:   r.Metrics,
		})
	}
	sort.Strings(extra)
	for _, k := range extra {
		t.Metrics = append(t.Metrics, evaluate.Metric{Name: k, LowerIsBetter: true})
	}
	return t
}
