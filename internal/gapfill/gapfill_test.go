package gapfill_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/derickschaefer/forecast/internal/gapfill"
	"github.com/derickschaefer/forecast/internal/model"
)

var nan = math.NaN()

func makeSeries(vals ...float64) model.TimeSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, len(vals))
	for i, v := range vals {
		obs[i] = model.Observation{Date: start.AddDate(0, 0, i), Value: v}
	}
	return model.TimeSeries{Name: "test", Obs: obs}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFill_LinearScenario(t *testing.T) {
	ts := makeSeries(1, 2, 3, nan, 5, 6)
	out, rep, err := gapfill.Fill(ts, gapfill.Options{Method: gapfill.Linear})
	if err != nil {
		t.Fatal(err)
	}
	if out.Obs[3].Value != 4 {
		t.Errorf("filled value = %v, want 4", out.Obs[3].Value)
	}
	if rep.Filled != 1 || len(rep.Gaps) != 1 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Frequency.Label != "daily" {
		t.Errorf("frequency = %s, want daily", rep.Frequency)
	}
}

func TestFill_ExpandsMissingRows(t *testing.T) {
	ts := makeSeries(1, 2, 3, 4, 5, 6)
	// drop the row for day 3 entirely
	ts.Obs = append(ts.Obs[:3:3], ts.Obs[4:]...)
	out, rep, err := gapfill.Fill(ts, gapfill.Options{Method: gapfill.Linear})
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 6 {
		t.Fatalf("len = %d, want 6", out.Len())
	}
	if rep.Inserted != 1 {
		t.Errorf("inserted = %d, want 1", rep.Inserted)
	}
	if !approxEqual(out.Obs[3].Value, 4) {
		t.Errorf("filled = %v, want 4", out.Obs[3].Value)
	}
	want := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	if !out.Obs[3].Date.Equal(want) {
		t.Errorf("inserted date = %s, want %s", out.Obs[3].Date, want)
	}
}

func TestFill_ZeroFill(t *testing.T) {
	out, _, err := gapfill.Fill(makeSeries(1, nan, nan, 4), gapfill.Options{Method: gapfill.Zero})
	if err != nil {
		t.Fatal(err)
	}
	if out.Obs[1].Value != 0 || out.Obs[2].Value != 0 {
		t.Errorf("zero fill = %v", out.Values())
	}
}

func TestFill_EdgeCarry(t *testing.T) {
	out, _, err := gapfill.Fill(makeSeries(nan, nan, 3, 4, nan), gapfill.Options{Method: gapfill.Linear})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{3, 3, 3, 4, 4}
	for i, w := range want {
		if out.Obs[i].Value != w {
			t.Errorf("[%d] = %v, want %v", i, out.Obs[i].Value, w)
		}
	}
}

func TestFill_PreservesKnownAndLeavesNoMissing(t *testing.T) {
	cases := [][]float64{
		{1, nan, nan, nan, 9},
		{nan, 5, nan, 7, nan, nan, 2},
		{10, 11, 12},
		{nan, 1, 2, nan},
	}
	for _, vals := range cases {
		ts := makeSeries(vals...)
		out, _, err := gapfill.Fill(ts, gapfill.Options{Method: gapfill.Linear})
		if err != nil {
			t.Fatalf("Fill(%v): %v", vals, err)
		}
		if out.MissingCount() != 0 {
			t.Errorf("Fill(%v) left %d missing", vals, out.MissingCount())
		}
		for i, v := range vals {
			if !math.IsNaN(v) && out.Obs[i].Value != v {
				t.Errorf("Fill(%v)[%d] = %v, known value changed", vals, i, out.Obs[i].Value)
			}
		}
	}
}

func TestImpute_MonotonicBetweenBounds(t *testing.T) {
	ts := makeSeries(2, nan, nan, nan, nan, 12)
	out, _, err := gapfill.Impute(ts, gapfill.MissingMask(ts), gapfill.Linear)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < out.Len(); i++ {
		if out.Obs[i].Value < out.Obs[i-1].Value {
			t.Errorf("not monotonic at %d: %v", i, out.Values())
		}
	}
	if out.Obs[0].Value != 2 || out.Obs[5].Value != 12 {
		t.Errorf("bounds changed: %v", out.Values())
	}
}

func TestImpute_TimeWeighted(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := model.TimeSeries{Obs: []model.Observation{
		{Date: start, Value: 0},
		{Date: start.Add(1 * time.Hour), Value: nan},
		{Date: start.Add(4 * time.Hour), Value: 8},
	}}
	out, _, err := gapfill.Impute(ts, gapfill.MissingMask(ts), gapfill.Linear)
	if err != nil {
		t.Fatal(err)
	}
	if !approxEqual(out.Obs[1].Value, 2) {
		t.Errorf("time-weighted value = %v, want 2", out.Obs[1].Value)
	}
}

func TestImpute_MaskedKnownValuesAreNotBounds(t *testing.T) {
	ts := makeSeries(1, 100, 3)
	mask := []bool{false, true, false}
	out, n, err := gapfill.Impute(ts, mask, gapfill.Linear)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || out.Obs[1].Value != 2 {
		t.Errorf("masked fill = %v (n=%d), want 2", out.Obs[1].Value, n)
	}
}

func TestFill_InsufficientData(t *testing.T) {
	_, _, err := gapfill.Fill(makeSeries(nan, 5, nan), gapfill.Options{Method: gapfill.Linear})
	if !errors.Is(err, model.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	_, _, err = gapfill.Fill(makeSeries(5), gapfill.Options{})
	if !errors.Is(err, model.ErrInsufficientData) {
		t.Fatalf("single point: expected ErrInsufficientData, got %v", err)
	}
}

func TestFill_ConstantSeriesNoGaps(t *testing.T) {
	_, rep, err := gapfill.Fill(makeSeries(5, 5, 5, 5, 5), gapfill.Options{Method: gapfill.Linear})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Gaps) != 0 || rep.Inserted != 0 || rep.Filled != 0 {
		t.Errorf("constant series report = %+v", rep)
	}
}

func TestRegularize_SnapsAndRejectsAmbiguous(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	daily := model.Frequency{Label: "daily", Step: 24 * time.Hour}

	snapped := model.TimeSeries{Obs: []model.Observation{
		{Date: start, Value: 1},
		{Date: start.Add(25 * time.Hour), Value: 2},
		{Date: start.Add(48 * time.Hour), Value: 3},
	}}
	out, _, err := gapfill.Regularize(snapped, daily)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Obs[1].Date.Equal(start.Add(24*time.Hour)) || out.Obs[1].Value != 2 {
		t.Errorf("snap = %+v", out.Obs[1])
	}

	halfway := model.TimeSeries{Obs: []model.Observation{
		{Date: start, Value: 1},
		{Date: start.Add(36 * time.Hour), Value: 2},
	}}
	if _, _, err := gapfill.Regularize(halfway, daily); !errors.Is(err, model.ErrAmbiguousTimestamp) {
		t.Errorf("halfway: expected ErrAmbiguousTimestamp, got %v", err)
	}

	collide := model.TimeSeries{Obs: []model.Observation{
		{Date: start, Value: 1},
		{Date: start.Add(24 * time.Hour), Value: 2},
		{Date: start.Add(30 * time.Hour), Value: 3},
	}}
	if _, _, err := gapfill.Regularize(collide, daily); !errors.Is(err, model.ErrAmbiguousTimestamp) {
		t.Errorf("collision: expected ErrAmbiguousTimestamp, got %v", err)
	}
}

func TestInferFrequency(t *testing.T) {
	monthly := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	f, err := gapfill.InferFrequency(monthly)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Calendar() || f.Months != 1 || f.Label != "monthly" {
		t.Errorf("monthly inferred as %+v", f)
	}

	// one 1-day and one 2-day delta: the tie goes to the smaller delta
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tie := []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 3)}
	f, err = gapfill.InferFrequency(tie)
	if err != nil {
		t.Fatal(err)
	}
	if f.Step != 24*time.Hour {
		t.Errorf("tie inferred as %s, want 24h", f)
	}
}

func TestFill_MonthlyGap(t *testing.T) {
	ts := model.TimeSeries{Obs: []model.Observation{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 1},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Value: 2},
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Value: 3},
		{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Value: 5},
	}}
	out, rep, err := gapfill.Fill(ts, gapfill.Options{Method: gapfill.Linear})
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 5 || rep.Inserted != 1 {
		t.Fatalf("len = %d inserted = %d", out.Len(), rep.Inserted)
	}
	if out.Obs[3].Date.Month() != time.April {
		t.Errorf("inserted month = %s", out.Obs[3].Date.Month())
	}
	// April 1 sits 31 of 61 days between March 1 and May 1.
	want := 3 + 2*31.0/61.0
	if !approxEqual(out.Obs[3].Value, want) {
		t.Errorf("april = %v, want %v", out.Obs[3].Value, want)
	}
}

func TestParseMethodAndFrequency(t *testing.T) {
	if m, err := gapfill.ParseMethod("zero-fill"); err != nil || m != gapfill.Zero {
		t.Errorf("ParseMethod(zero-fill) = %v, %v", m, err)
	}
	if _, err := gapfill.ParseMethod("spline"); !errors.Is(err, model.ErrUnsupportedConfiguration) {
		t.Errorf("ParseMethod(spline) err = %v", err)
	}
	if f, err := gapfill.ParseFrequency("6h"); err != nil || f.Step != 6*time.Hour {
		t.Errorf("ParseFrequency(6h) = %v, %v", f, err)
	}
	if f, err := gapfill.ParseFrequency("quarterly"); err != nil || f.Months != 3 {
		t.Errorf("ParseFrequency(quarterly) = %v, %v", f, err)
	}
	if _, err := gapfill.ParseFrequency("fortnightly-ish"); err == nil {
		t.Error("expected error for unknown frequency")
	}
}

func TestFindGaps_Bounds(t *testing.T) {
	gaps := gapfill.FindGaps(makeSeries(nan, 1, nan, nan, 4))
	if len(gaps) != 2 {
		t.Fatalf("gaps = %d, want 2", len(gaps))
	}
	if gaps[0].Before != nil || gaps[0].After == nil || *gaps[0].After != 1 {
		t.Errorf("edge gap bounds = %+v", gaps[0])
	}
	if gaps[1].Len() != 2 || *gaps[1].Before != 1 || *gaps[1].After != 4 {
		t.Errorf("interior gap = %+v", gaps[1])
	}
}
