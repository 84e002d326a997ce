package model_test

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/forecast/internal/model"
)

func day(d int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestNewTimeSeries_SortsAscending(t *testing.T) {
	ts, err := model.NewTimeSeries("x", []model.Observation{
		{Date: day(2), Value: 3},
		{Date: day(0), Value: 1},
		{Date: day(1), Value: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 2, 3} {
		if ts.Obs[i].Value != want {
			t.Errorf("[%d] = %v, want %v", i, ts.Obs[i].Value, want)
		}
	}
}

func TestNewTimeSeries_RejectsDuplicates(t *testing.T) {
	_, err := model.NewTimeSeries("x", []model.Observation{
		{Date: day(0), Value: 1},
		{Date: day(0), Value: 2},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestObservation_JSONNull(t *testing.T) {
	b, err := json.Marshal(model.Observation{Date: day(0), Value: math.NaN()})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"value":null`) {
		t.Errorf("NaN should encode as null, got %s", b)
	}
	var o model.Observation
	if err := json.Unmarshal(b, &o); err != nil {
		t.Fatal(err)
	}
	if !o.IsMissing() {
		t.Errorf("null should decode as missing, got %v", o.Value)
	}
}

func TestFrequency_AddCalendarClampsDay(t *testing.T) {
	f := model.Frequency{Label: "monthly", Months: 1}
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got := f.Add(start, 1)
	want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Add(Jan 31, 1) = %s, want %s", got, want)
	}
	if got := f.Add(start, 2); got.Day() != 31 || got.Month() != time.March {
		t.Errorf("Add(Jan 31, 2) = %s, want Mar 31", got)
	}
	if got := f.Add(start, -1); got.Year() != 2023 || got.Month() != time.December {
		t.Errorf("Add(Jan 31, -1) = %s, want Dec 2023", got)
	}
}

func TestHyperparameters_MergeDoesNotMutate(t *testing.T) {
	base := model.Hyperparameters{"p": 1, "d": 1}
	over := model.Hyperparameters{"p": 3}
	merged := base.Merge(over)
	if merged.Int("p", 0) != 3 || merged.Int("d", 0) != 1 {
		t.Errorf("merged = %v", merged)
	}
	if base.Int("p", 0) != 1 {
		t.Errorf("base was modified: %v", base)
	}
}

func TestHyperparameters_Getters(t *testing.T) {
	h := model.Hyperparameters{"a": 2.0, "b": "3", "c": json.Number("0.5"), "s": true}
	if h.Int("a", 0) != 2 || h.Int("b", 0) != 3 || h.Int("missing", 7) != 7 {
		t.Errorf("Int coercion failed: %v", h)
	}
	if h.Float("c", 0) != 0.5 {
		t.Errorf("Float(c) = %v", h.Float("c", 0))
	}
	if !h.Bool("s", false) {
		t.Errorf("Bool(s) = false")
	}
}

func TestParseParam(t *testing.T) {
	cases := []struct {
		in   string
		key  string
		want any
	}{
		{"p=2", "p", 2},
		{"changepoint_prior_scale=0.1", "changepoint_prior_scale", 0.1},
		{"seasonal=true", "seasonal", true},
		{"seasonality_mode=multiplicative", "seasonality_mode", "multiplicative"},
	}
	for _, c := range cases {
		k, v, err := model.ParseParam(c.in)
		if err != nil {
			t.Fatalf("ParseParam(%q): %v", c.in, err)
		}
		if k != c.key || v != c.want {
			t.Errorf("ParseParam(%q) = %s, %v; want %s, %v", c.in, k, v, c.key, c.want)
		}
	}
	if _, _, err := model.ParseParam("novalue"); err == nil {
		t.Error("expected error for missing '='")
	}
}

func TestErrors_MatchSentinels(t *testing.T) {
	var err error = &model.InvalidSplitError{Op: "split", Ratio: 0.8, N: 2}
	if !errors.Is(err, model.ErrInvalidSplit) {
		t.Error("InvalidSplitError should match ErrInvalidSplit")
	}
	if errors.Is(err, model.ErrInsufficientData) {
		t.Error("InvalidSplitError should not match ErrInsufficientData")
	}
	var target *model.InvalidSplitError
	if !errors.As(err, &target) || target.N != 2 {
		t.Error("errors.As should recover the typed error")
	}
	msg := (&model.InsufficientDataError{Op: "gapfill", Need: 2, Got: 1}).Error()
	if !strings.HasPrefix(msg, "gapfill:") || !strings.Contains(msg, "got 1") {
		t.Errorf("unexpected message %q", msg)
	}
}
