package store_test

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testDB opens a fresh isolated database in t.TempDir().
// It is closed and deleted automatically when the test ends.
func testDB(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// makeSeries builds a monthly series starting January 2020.
func makeSeries(t *testing.T, name string, values ...float64) model.TimeSeries {
	t.Helper()
	obs := make([]model.Observation, len(values))
	for i, v := range values {
		obs[i] = model.Observation{Date: time.Date(2020, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC), Value: v}
	}
	ts, err := model.NewTimeSeries(name, obs)
	if err != nil {
		t.Fatalf("NewTimeSeries: %v", err)
	}
	return ts
}

func makeResult(series, runID string, at time.Time) model.EvaluationResult {
	return model.EvaluationResult{
		RunID:     runID,
		Series:    series,
		Model:     "arima",
		Params:    model.Hyperparameters{"p": 1},
		TrainedAt: at,
		Metrics:   map[string]float64{"mae": 1.5, "rmse": 2},
	}
}

// ─── Open / Path ──────────────────────────────────────────────────────────────

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path: expected %q, got %q", path, s.Path())
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.PutSeries(makeSeries(t, "gdp", 1, 2, 3), "test"); err != nil {
		t.Fatalf("PutSeries: %v", err)
	}
	s.Close()

	s2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, ok, _ := s2.GetSeries("gdp"); !ok {
		t.Error("series should survive reopen")
	}
}

// ─── Series ───────────────────────────────────────────────────────────────────

func TestSeriesRoundTripKeepsMissing(t *testing.T) {
	s := testDB(t)
	in := makeSeries(t, "unrate", 3.5, math.NaN(), 3.7)
	if err := s.PutSeries(in, "file:unrate.csv"); err != nil {
		t.Fatalf("PutSeries: %v", err)
	}
	out, ok, err := s.GetSeries("unrate")
	if err != nil || !ok {
		t.Fatalf("GetSeries: ok=%v err=%v", ok, err)
	}
	if out.Len() != 3 {
		t.Fatalf("expected 3 observations, got %d", out.Len())
	}
	if !math.IsNaN(out.Obs[1].Value) {
		t.Errorf("missing value should round-trip as NaN, got %v", out.Obs[1].Value)
	}
	if out.Obs[2].Value != 3.7 || !out.Obs[0].Date.Equal(in.Obs[0].Date) {
		t.Errorf("round trip mismatch: %+v", out.Obs)
	}
}

func TestGetSeriesMissing(t *testing.T) {
	s := testDB(t)
	_, ok, err := s.GetSeries("nope")
	if err != nil || ok {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestPutSeriesRequiresName(t *testing.T) {
	s := testDB(t)
	if err := s.PutSeries(makeSeries(t, "", 1), "x"); err == nil {
		t.Error("expected error for unnamed series")
	}
}

func TestListSeries(t *testing.T) {
	s := testDB(t)
	_ = s.PutSeries(makeSeries(t, "b", 1, math.NaN(), 3), "src-b")
	_ = s.PutSeries(makeSeries(t, "a", 1, 2), "src-a")

	infos, err := s.ListSeries()
	if err != nil {
		t.Fatalf("ListSeries: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "a" || infos[1].Name != "b" {
		t.Fatalf("expected [a b] in name order, got %+v", infos)
	}
	if infos[1].Points != 3 || infos[1].Missing != 1 || infos[1].Source != "src-b" {
		t.Errorf("info for b: %+v", infos[1])
	}
}

func TestDeleteSeriesRemovesResults(t *testing.T) {
	s := testDB(t)
	now := time.Now().UTC()
	_ = s.PutSeries(makeSeries(t, "a", 1, 2), "x")
	_ = s.PutResult(makeResult("a", "r1", now))
	_ = s.PutResult(makeResult("ab", "r2", now))

	if err := s.DeleteSeries("a"); err != nil {
		t.Fatalf("DeleteSeries: %v", err)
	}
	if _, ok, _ := s.GetSeries("a"); ok {
		t.Error("series should be gone")
	}
	if rs, _ := s.ListResults("a"); len(rs) != 0 {
		t.Errorf("results for a should be gone, got %d", len(rs))
	}
	if rs, _ := s.ListResults("ab"); len(rs) != 1 {
		t.Errorf("results for ab must survive, got %d", len(rs))
	}
	if err := s.DeleteSeries("a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

// ─── Results ──────────────────────────────────────────────────────────────────

func TestResultsOrderedByTrainingTime(t *testing.T) {
	s := testDB(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.PutResult(makeResult("gdp", "late", t0.Add(2*time.Hour)))
	_ = s.PutResult(makeResult("gdp", "early", t0))
	_ = s.PutResult(makeResult("cpi", "other", t0.Add(time.Hour)))

	rs, err := s.ListResults("gdp")
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(rs) != 2 || rs[0].RunID != "early" || rs[1].RunID != "late" {
		t.Fatalf("unexpected order: %+v", rs)
	}
	if rs[0].Metrics["mae"] != 1.5 || rs[0].Params.Int("p", 0) != 1 {
		t.Errorf("result did not round-trip: %+v", rs[0])
	}

	all, _ := s.ListResults("")
	if len(all) != 3 {
		t.Errorf("expected 3 results overall, got %d", len(all))
	}
}

func TestGetResult(t *testing.T) {
	s := testDB(t)
	_ = s.PutResult(makeResult("gdp", "r1", time.Now()))
	if r, err := s.GetResult("r1"); err != nil || r.RunID != "r1" {
		t.Errorf("GetResult: %+v, %v", r, err)
	}
	if _, err := s.GetResult("r9"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutResultRequiresKeys(t *testing.T) {
	s := testDB(t)
	if err := s.PutResult(model.EvaluationResult{Series: "x"}); err == nil {
		t.Error("expected error without run id")
	}
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

func TestStatsAndClear(t *testing.T) {
	s := testDB(t)
	_ = s.PutSeries(makeSeries(t, "a", 1, 2), "x")
	_ = s.PutResult(makeResult("a", "r1", time.Now()))

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 || stats[0].Name != "series" || stats[0].Count != 1 || stats[1].Count != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats[0].Bytes <= 0 {
		t.Error("byte count should be positive")
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	infos, _ := s.ListSeries()
	rs, _ := s.ListResults("")
	if len(infos) != 0 || len(rs) != 0 {
		t.Errorf("expected empty store after ClearAll, got %d series %d results", len(infos), len(rs))
	}
}
