// Package util provides shared utilities: date parsing, value parsing and
// formatting, and error aggregation.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"2006-01",
	"2006",
}

// ParseDate parses s using the first matching layout. Timestamps without a
// zone are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
}

// FormatDate formats t as YYYY-MM-DD when it falls on UTC midnight and as
// RFC3339 otherwise.
func FormatDate(t time.Time) string {
	u := t.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return u.Format(dateLayout)
	}
	return u.Format(time.RFC3339)
}

// ─── Value Parsing ────────────────────────────────────────────────────────────

// ParseValue parses an observation value.
// Missing markers ("", ".", "NA", "NaN", "null") return NaN with ok=true;
// anything else that is not a number returns ok=false.
func ParseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", ".", "na", "n/a", "nan", "null":
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// FormatValue formats a float64 for display, showing "." for NaN.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatFixed formats v with prec decimals. NaN and Inf render as a dash.
func FormatFixed(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "—"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error { return m.Errors }
