package gapfill

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/forecast/internal/model"
)

const day = 24 * time.Hour

// Calendar bands: deltas inside a band count as one calendar step.
var calendarBands = []struct {
	lo, hi time.Duration
	months int
}{
	{28 * day, 31 * day, 1},
	{89 * day, 92 * day, 3},
	{181 * day, 184 * day, 6},
	{365 * day, 366 * day, 12},
}

// InferFrequency returns the modal delta between consecutive dates.
// Ties go to the smaller delta. Deltas that fall in a calendar band
// (28–31 days, 89–92 days, ...) are counted as calendar steps.
func InferFrequency(dates []time.Time) (model.Frequency, error) {
	if len(dates) < 2 {
		return model.Frequency{}, &model.InsufficientDataError{Op: "infer-frequency", Need: 2, Got: len(dates)}
	}
	counts := make(map[model.Frequency]int)
	for i := 1; i < len(dates); i++ {
		d := dates[i].Sub(dates[i-1])
		if d <= 0 {
			return model.Frequency{}, fmt.Errorf("infer-frequency: dates not strictly increasing at %s", dates[i].Format(time.RFC3339))
		}
		counts[classify(d)]++
	}
	cands := make([]model.Frequency, 0, len(counts))
	for f := range counts {
		cands = append(cands, f)
	}
	sort.Slice(cands, func(i, j int) bool {
		if counts[cands[i]] != counts[cands[j]] {
			return counts[cands[i]] > counts[cands[j]]
		}
		return cands[i].Nominal() < cands[j].Nominal()
	})
	return cands[0], nil
}

func classify(d time.Duration) model.Frequency {
	for _, b := range calendarBands {
		if d >= b.lo && d <= b.hi {
			return calendarFrequency(b.months)
		}
	}
	return fixedFrequency(d)
}

func calendarFrequency(months int) model.Frequency {
	f := model.Frequency{Months: months}
	switch months {
	case 1:
		f.Label = "monthly"
	case 3:
		f.Label = "quarterly"
	case 6:
		f.Label = "semiannual"
	case 12:
		f.Label = "annual"
	default:
		f.Label = strconv.Itoa(months) + "mo"
	}
	return f
}

func fixedFrequency(d time.Duration) model.Frequency {
	f := model.Frequency{Step: d}
	switch d {
	case time.Minute:
		f.Label = "minutely"
	case time.Hour:
		f.Label = "hourly"
	case day:
		f.Label = "daily"
	case 7 * day:
		f.Label = "weekly"
	default:
		f.Label = d.String()
	}
	return f
}

// ParseFrequency parses an explicit frequency: a name (hourly, daily,
// weekly, monthly, quarterly, annual), a Go duration ("15m", "6h") or a
// day/week count ("2d", "4w").
func ParseFrequency(s string) (model.Frequency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "minutely":
		return fixedFrequency(time.Minute), nil
	case "hourly", "h":
		return fixedFrequency(time.Hour), nil
	case "daily", "d":
		return fixedFrequency(day), nil
	case "weekly", "w":
		return fixedFrequency(7 * day), nil
	case "monthly", "m":
		return calendarFrequency(1), nil
	case "quarterly", "q":
		return calendarFrequency(3), nil
	case "semiannual", "sa":
		return calendarFrequency(6), nil
	case "annual", "yearly", "a":
		return calendarFrequency(12), nil
	}
	if n, ok := strings.CutSuffix(s, "d"); ok {
		if k, err := strconv.Atoi(n); err == nil && k > 0 {
			return fixedFrequency(time.Duration(k) * day), nil
		}
	}
	if n, ok := strings.CutSuffix(s, "w"); ok {
		if k, err := strconv.Atoi(n); err == nil && k > 0 {
			return fixedFrequency(time.Duration(k) * 7 * day), nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return fixedFrequency(d), nil
	}
	return model.Frequency{}, &model.UnsupportedConfigurationError{
		Op: "gapfill", Key: "frequency", Value: s,
		Reason: "use hourly|daily|weekly|monthly|quarterly|annual or a duration such as 6h",
	}
}
