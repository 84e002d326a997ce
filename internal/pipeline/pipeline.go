// Package pipeline reads and writes series at the process boundary: JSONL
// on stdin/stdout (the canonical pipe format), CSV uploads, and the JSON
// payload shape shared with the HTTP API.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/util"
)

// Row is the wire form of one observation. Value is null when missing; a
// string value is parsed with util.ParseValue so "." and "" also mean missing.
type Row struct {
	Series string `json:"series,omitempty"`
	Date   string `json:"date"`
	Value  any    `json:"value"`
}

// Observation converts the row. line is used in error messages only.
func (r Row) Observation(line int) (model.Observation, error) {
	date, err := util.ParseDate(r.Date)
	if err != nil {
		return model.Observation{}, fmt.Errorf("line %d: %w", line, err)
	}
	val, err := rowValue(r.Value)
	if err != nil {
		return model.Observation{}, fmt.Errorf("line %d: %w", line, err)
	}
	return model.Observation{Date: date, Value: val}, nil
}

func rowValue(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	case string:
		f, ok := util.ParseValue(x)
		if !ok {
			return 0, fmt.Errorf("unexpected string value %q", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unexpected value type %T", v)
}

// Payload is the series shape used by the HTTP API:
// {"name": ..., "observations": [{"date": ..., "value": ...}]}.
type Payload struct {
	Name         string `json:"name"`
	Observations []Row  `json:"observations"`
}

// Series validates the payload into a sorted series.
func (p Payload) Series() (model.TimeSeries, error) {
	if len(p.Observations) == 0 {
		return model.TimeSeries{}, fmt.Errorf("payload: no observations")
	}
	obs := make([]model.Observation, len(p.Observations))
	for i, r := range p.Observations {
		o, err := r.Observation(i + 1)
		if err != nil {
			return model.TimeSeries{}, fmt.Errorf("payload: %w", err)
		}
		obs[i] = o
	}
	name := p.Name
	if name == "" {
		name = "series"
	}
	return model.NewTimeSeries(name, obs)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// ReadSeries reads JSONL records from r (stdin) and returns the series.
// Each line must be a JSON object with at least "date" and "value" fields;
// the name comes from the first "series" field seen.
func ReadSeries(r io.Reader) (model.TimeSeries, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var obs []model.Observation
	name := ""
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec Row
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return model.TimeSeries{}, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if name == "" && rec.Series != "" {
			name = rec.Series
		}
		o, err := rec.Observation(lineNum)
		if err != nil {
			return model.TimeSeries{}, err
		}
		obs = append(obs, o)
	}
	if err := scanner.Err(); err != nil {
		return model.TimeSeries{}, fmt.Errorf("reading input: %w", err)
	}
	if len(obs) == 0 {
		return model.TimeSeries{}, fmt.Errorf("no observations read from input (is stdin empty?)")
	}
	if name == "" {
		name = "stdin"
	}
	return model.NewTimeSeries(name, obs)
}

// WriteJSONL writes ts as JSONL to w, one observation per line.
func WriteJSONL(w io.Writer, ts model.TimeSeries) error {
	enc := json.NewEncoder(w)
	for _, o := range ts.Obs {
		var val any
		if !math.IsNaN(o.Value) && !math.IsInf(o.Value, 0) {
			val = o.Value
		}
		rec := Row{Series: ts.Name, Date: util.FormatDate(o.Date), Value: val}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
