// Package gapfill implements the gap processor: it places a series on its
// regular sampling grid, reports runs of missing slots and fills them.
// Every function is pure; inputs are never modified.
package gapfill

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/util"
)

// maxSlots bounds grid expansion so a too-fine frequency cannot exhaust memory.
const maxSlots = 5_000_000

// Method selects how missing values are filled.
type Method string

const (
	Linear Method = "linear"
	Zero   Method = "zero"
)

// ParseMethod accepts linear, zero, zero-fill or zerofill.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear", "interpolate":
		return Linear, nil
	case "zero", "zero-fill", "zerofill":
		return Zero, nil
	}
	return "", &model.UnsupportedConfigurationError{
		Op: "gapfill", Key: "fill method", Value: s, Reason: "use linear or zero",
	}
}

// Options configures Fill. A zero Frequency is inferred from the data.
type Options struct {
	Method    Method
	Frequency model.Frequency
}

// Report describes what Fill did.
type Report struct {
	Frequency model.Frequency `json:"frequency"`
	Inserted  int             `json:"inserted"`
	Filled    int             `json:"filled"`
	Gaps      []model.Gap     `json:"gaps"`
}

// ─── Regularize ───────────────────────────────────────────────────────────────

// Regularize places every observation on the grid start + k·freq, inserting
// missing slots where an interval spans two or more steps. Observations
// keep their values; only their dates may snap to the nearest slot.
// A sample exactly halfway between slots, or two samples snapping to the
// same slot, returns an AmbiguousTimestampError.
func Regularize(ts model.TimeSeries, freq model.Frequency) (model.TimeSeries, model.Frequency, error) {
	if ts.Len() == 0 {
		return ts.Clone(), freq, &model.InsufficientDataError{Op: "gapfill", Need: 2, Got: 0}
	}
	if freq.IsZero() {
		f, err := InferFrequency(ts.Dates())
		if err != nil {
			return model.TimeSeries{}, freq, err
		}
		freq = f
	}

	start := ts.Obs[0].Date
	slots := make([]int, ts.Len())
	for i, o := range ts.Obs {
		k, err := slotOf(start, o.Date, freq)
		if err != nil {
			return model.TimeSeries{}, freq, err
		}
		if i > 0 && k == slots[i-1] {
			return model.TimeSeries{}, freq, &model.AmbiguousTimestampError{
				Op:        "gapfill",
				Timestamp: util.FormatDate(o.Date),
				Reason:    fmt.Sprintf("snaps to the same %s slot as %s", freq, util.FormatDate(ts.Obs[i-1].Date)),
			}
		}
		slots[i] = k
	}

	size := slots[len(slots)-1] + 1
	if size > maxSlots {
		return model.TimeSeries{}, freq, &model.UnsupportedConfigurationError{
			Op: "gapfill", Key: "frequency", Value: freq.String(),
			Reason: fmt.Sprintf("grid would have %d slots", size),
		}
	}

	out := model.TimeSeries{Name: ts.Name, Source: ts.Source, Obs: make([]model.Observation, size)}
	for k := range out.Obs {
		out.Obs[k] = model.Observation{Date: freq.Add(start, k), Value: math.NaN()}
	}
	for i, o := range ts.Obs {
		out.Obs[slots[i]].Value = o.Value
	}
	return out, freq, nil
}

// slotOf returns the nearest grid index of t.
func slotOf(start, t time.Time, freq model.Frequency) (int, error) {
	if !freq.Calendar() {
		pos := float64(t.Sub(start)) / float64(freq.Step)
		k := math.Round(pos)
		if math.Abs(pos-math.Floor(pos)-0.5) < 1e-9 {
			return 0, &model.AmbiguousTimestampError{
				Op: "gapfill", Timestamp: util.FormatDate(t),
				Reason: fmt.Sprintf("lies halfway between two %s slots", freq),
			}
		}
		return int(k), nil
	}

	months := (t.Year()-start.Year())*12 + int(t.Month()) - int(start.Month())
	base := months / freq.Months
	best, bestDist, tie := -1, time.Duration(math.MaxInt64), false
	for k := base - 1; k <= base+1; k++ {
		if k < 0 {
			continue
		}
		d := t.Sub(freq.Add(start, k))
		if d < 0 {
			d = -d
		}
		switch {
		case d < bestDist:
			best, bestDist, tie = k, d, false
		case d == bestDist:
			tie = true
		}
	}
	if tie {
		return 0, &model.AmbiguousTimestampError{
			Op: "gapfill", Timestamp: util.FormatDate(t),
			Reason: fmt.Sprintf("lies halfway between two %s slots", freq),
		}
	}
	return best, nil
}

// ─── Detection ────────────────────────────────────────────────────────────────

// FindGaps returns the maximal runs of missing values in a regular series.
func FindGaps(ts model.TimeSeries) []model.Gap {
	var gaps []model.Gap
	n := ts.Len()
	for i := 0; i < n; i++ {
		if !ts.Obs[i].IsMissing() {
			continue
		}
		j := i
		for j+1 < n && ts.Obs[j+1].IsMissing() {
			j++
		}
		g := model.Gap{Start: i, End: j, StartDate: ts.Obs[i].Date, EndDate: ts.Obs[j].Date}
		if i > 0 {
			v := ts.Obs[i-1].Value
			g.Before = &v
		}
		if j+1 < n {
			v := ts.Obs[j+1].Value
			g.After = &v
		}
		gaps = append(gaps, g)
		i = j
	}
	return gaps
}

// Detect regularizes ts and reports its gaps without filling them.
func Detect(ts model.TimeSeries, freq model.Frequency) (model.GapReport, model.TimeSeries, error) {
	reg, f, err := Regularize(ts, freq)
	if err != nil {
		return model.GapReport{}, model.TimeSeries{}, err
	}
	return model.GapReport{Series: ts.Name, Frequency: f, Length: reg.Len(), Gaps: FindGaps(reg)}, reg, nil
}

// ─── Imputation ───────────────────────────────────────────────────────────────

// Impute fills every position where missing[i] is true. Linear fill blends
// the nearest unmasked known values on each side, weighted by elapsed time;
// edge positions with a single bound carry the nearest value. Zero fill sets
// masked positions to 0. Unmasked values are never changed.
func Impute(ts model.TimeSeries, missing []bool, method Method) (model.TimeSeries, int, error) {
	if len(missing) != ts.Len() {
		return model.TimeSeries{}, 0, fmt.Errorf("impute: mask length %d does not match series length %d", len(missing), ts.Len())
	}
	out := ts.Clone()
	known := 0
	for i, o := range ts.Obs {
		if !missing[i] && !o.IsMissing() {
			known++
		}
	}
	if known < 2 {
		return model.TimeSeries{}, 0, &model.InsufficientDataError{Op: "gapfill", Need: 2, Got: known}
	}

	isBound := func(i int) bool { return !missing[i] && !ts.Obs[i].IsMissing() }
	filled := 0

	switch method {
	case Zero:
		for i := range out.Obs {
			if missing[i] {
				out.Obs[i].Value = 0
				filled++
			}
		}
	case Linear, "":
		// prev[i] / next[i]: nearest bound at or before / at or after i.
		n := ts.Len()
		prev := make([]int, n)
		next := make([]int, n)
		last := -1
		for i := 0; i < n; i++ {
			if isBound(i) {
				last = i
			}
			prev[i] = last
		}
		last = -1
		for i := n - 1; i >= 0; i-- {
			if isBound(i) {
				last = i
			}
			next[i] = last
		}
		for i := range out.Obs {
			if !missing[i] {
				continue
			}
			l, r := prev[i], next[i]
			switch {
			case l >= 0 && r >= 0:
				tl := ts.Obs[l].Date
				span := float64(ts.Obs[r].Date.Sub(tl))
				frac := float64(ts.Obs[i].Date.Sub(tl)) / span
				vl, vr := ts.Obs[l].Value, ts.Obs[r].Value
				out.Obs[i].Value = vl + frac*(vr-vl)
			case l >= 0:
				out.Obs[i].Value = ts.Obs[l].Value
			default:
				out.Obs[i].Value = ts.Obs[r].Value
			}
			filled++
		}
	default:
		return model.TimeSeries{}, 0, &model.UnsupportedConfigurationError{
			Op: "gapfill", Key: "fill method", Value: string(method), Reason: "use linear or zero",
		}
	}
	return out, filled, nil
}

// MissingMask returns true for every missing value in ts.
func MissingMask(ts model.TimeSeries) []bool {
	mask := make([]bool, ts.Len())
	for i, o := range ts.Obs {
		mask[i] = o.IsMissing()
	}
	return mask
}

// ─── Fill ─────────────────────────────────────────────────────────────────────

// Fill regularizes ts and fills every missing slot with opts.Method.
// The output has no missing values.
func Fill(ts model.TimeSeries, opts Options) (model.TimeSeries, Report, error) {
	reg, freq, err := Regularize(ts, opts.Frequency)
	if err != nil {
		return model.TimeSeries{}, Report{}, err
	}
	rep := Report{
		Frequency: freq,
		Inserted:  reg.Len() - ts.Len(),
		Gaps:      FindGaps(reg),
	}
	out, filled, err := Impute(reg, MissingMask(reg), opts.Method)
	if err != nil {
		return model.TimeSeries{}, Report{}, err
	}
	rep.Filled = filled
	return out, rep, nil
}
