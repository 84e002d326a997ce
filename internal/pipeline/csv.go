package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/util"
)

// Upload size limits.
const (
	DefaultMinPoints = 20
	DefaultMaxPoints = 50000
)

// CSVOptions selects the columns of an upload. Empty column names pick the
// first column whose values parse as dates and the first other column whose
// values parse as numbers.
type CSVOptions struct {
	Name      string
	DateCol   string
	ValueCol  string
	MinPoints int
	MaxPoints int
}

// ReadCSV reads a headed CSV upload into a series. Blank or marker values
// ("", ".", "NA") become missing; any other non-numeric value is an error.
func ReadCSV(r io.Reader, opts CSVOptions) (model.TimeSeries, error) {
	if opts.MinPoints <= 0 {
		opts.MinPoints = DefaultMinPoints
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("csv: %w", err)
	}
	if len(records) < 2 {
		return model.TimeSeries{}, errors.New("csv: need a header row and at least one data row")
	}
	header, rows := records[0], records[1:]
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	dateIdx, err := pickColumn(header, rows, opts.DateCol, -1, isDate)
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("csv: date column: %w", err)
	}
	valueIdx, err := pickColumn(header, rows, opts.ValueCol, dateIdx, isNumber)
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("csv: value column: %w", err)
	}
	if dateIdx == valueIdx {
		return model.TimeSeries{}, fmt.Errorf("csv: date and value columns must differ (both %q)", header[dateIdx])
	}

	obs := make([]model.Observation, 0, len(rows))
	for i, rec := range rows {
		line := i + 2
		if blankRow(rec) {
			continue
		}
		if dateIdx >= len(rec) {
			return model.TimeSeries{}, fmt.Errorf("csv: line %d: missing date", line)
		}
		d, err := util.ParseDate(rec[dateIdx])
		if err != nil {
			return model.TimeSeries{}, fmt.Errorf("csv: line %d: %w", line, err)
		}
		v := math.NaN()
		if valueIdx < len(rec) {
			var ok bool
			if v, ok = util.ParseValue(rec[valueIdx]); !ok {
				return model.TimeSeries{}, fmt.Errorf("csv: line %d: value %q in column %q is not numeric", line, rec[valueIdx], header[valueIdx])
			}
		}
		obs = append(obs, model.Observation{Date: d, Value: v})
	}

	if len(obs) < opts.MinPoints {
		return model.TimeSeries{}, &model.InsufficientDataError{Op: "csv", Need: opts.MinPoints, Got: len(obs)}
	}
	if len(obs) > opts.MaxPoints {
		return model.TimeSeries{}, fmt.Errorf("csv: %d rows exceeds the limit of %d", len(obs), opts.MaxPoints)
	}
	name := opts.Name
	if name == "" {
		name = header[valueIdx]
	}
	return model.NewTimeSeries(name, obs)
}

// pickColumn resolves a named column or scans for the first column other
// than skip whose sampled values satisfy ok.
func pickColumn(header []string, rows [][]string, name string, skip int, ok func(string) bool) (int, error) {
	if name != "" {
		for i, h := range header {
			if strings.EqualFold(h, name) {
				return i, nil
			}
		}
		return -1, fmt.Errorf("no column named %q (have %s)", name, strings.Join(header, ", "))
	}
	for i := range header {
		if i == skip {
			continue
		}
		if columnMatches(rows, i, ok) {
			return i, nil
		}
	}
	return -1, errors.New("no suitable column found")
}

// columnMatches checks up to the first 20 cells of column i that are not
// blank or missing markers.
func columnMatches(rows [][]string, i int, ok func(string) bool) bool {
	seen := 0
	for _, rec := range rows {
		if i >= len(rec) || isMissing(rec[i]) {
			continue
		}
		if !ok(rec[i]) {
			return false
		}
		if seen++; seen >= 20 {
			break
		}
	}
	return seen > 0
}

func isDate(s string) bool {
	_, err := util.ParseDate(s)
	return err == nil
}

func isNumber(s string) bool {
	_, ok := util.ParseValue(s)
	return ok
}

func isMissing(s string) bool {
	v, ok := util.ParseValue(s)
	return ok && math.IsNaN(v)
}

func blankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
