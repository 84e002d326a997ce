// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/forecast/internal/compare"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models"
	"github.com/derickschaefer/forecast/internal/pipeline"
	"github.com/derickschaefer/forecast/internal/util"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
)

// Table is the payload of KindTable: a plain header plus string rows.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// splitRow tags each observation with the partition it belongs to.
type splitRow struct {
	pipeline.Row
	Part string `json:"part"`
}

// renderJSONL writes series-shaped payloads one observation per line so the
// output can be piped into another command's "-" argument. Everything else is
// one compact JSON object per line.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch d := result.Data.(type) {
	case model.TimeSeries:
		return pipeline.WriteJSONL(w, d)
	case model.PreprocessResult:
		return pipeline.WriteJSONL(w, d.Series)
	case model.Split:
		for _, part := range []struct {
			name string
			ts   model.TimeSeries
		}{{"train", d.Train}, {"test", d.Test}} {
			for _, o := range part.ts.Obs {
				row := splitRow{Row: pipeline.Row{Series: part.ts.Name, Date: util.FormatDate(o.Date), Value: jsonValue(o.Value)}, Part: part.name}
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
		}
		return nil
	case []model.EvaluationResult:
		for _, r := range d {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	case compare.Table:
		for _, r := range d.Rows {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	case []models.Info:
		for _, m := range d {
			if err := enc.Encode(m); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderTable(w io.Writer, result *model.Result) error {
	switch d := result.Data.(type) {
	case model.TimeSeries:
		return renderObsTable(w, d)
	case model.GapReport:
		return renderGapTable(w, d)
	case model.PreprocessResult:
		return renderPreprocessTable(w, d)
	case model.SeriesProfile:
		return renderProfileTable(w, d)
	case model.Recommendation:
		return renderRecommendationTable(w, d)
	case model.Split:
		return renderSplitTable(w, d)
	case model.EvaluationResult:
		return renderEvaluationTable(w, d)
	case []model.EvaluationResult:
		return renderComparisonTable(w, compare.New(d...).Table())
	case compare.Table:
		return renderComparisonTable(w, d)
	case []models.Info:
		return renderModelsTable(w, d)
	case Table:
		return renderPlainTable(w, d)
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

func renderObsTable(w io.Writer, ts model.TimeSeries) error {
	tw := newTable(w, "SERIES", "DATE", "VALUE")
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, o := range ts.Obs {
		tw.Append([]string{ts.Name, util.FormatDate(o.Date), formatValue(o.Value)})
	}
	tw.Render()
	return nil
}

func renderGapTable(w io.Writer, g model.GapReport) error {
	fmt.Fprintf(w, "%s: %d slots at %s, %d gap(s)\n\n", g.Series, g.Length, g.Frequency, len(g.Gaps))
	if len(g.Gaps) == 0 {
		return nil
	}
	tw := newTable(w, "START", "END", "MISSING", "BEFORE", "AFTER")
	for _, gap := range g.Gaps {
		tw.Append([]string{
			util.FormatDate(gap.StartDate),
			util.FormatDate(gap.EndDate),
			strconv.Itoa(gap.Len()),
			formatBound(gap.Before),
			formatBound(gap.After),
		})
	}
	tw.Render()
	return nil
}

func renderPreprocessTable(w io.Writer, p model.PreprocessResult) error {
	tw := newTable(w, "STEP", "APPLIED", "COUNT")
	for i, s := range p.Record.Steps {
		tw.Append([]string{strconv.Itoa(i + 1), s.String(), strconv.Itoa(s.Count)})
	}
	tw.Render()
	fmt.Fprintln(w)
	return renderObsTable(w, p.Series)
}

func renderProfileTable(w io.Writer, p model.SeriesProfile) error {
	tw := newTable(w, "FIELD", "VALUE")
	rows := [][]string{
		{"Series", p.Series},
		{"Length", strconv.Itoa(p.Length)},
		{"Known", strconv.Itoa(p.Known)},
		{"Frequency", p.Frequency.String()},
		{"Mean", util.FormatFixed(p.Mean, 4)},
		{"Std Dev", util.FormatFixed(p.StdDev, 4)},
		{"Min", util.FormatFixed(p.Min, 4)},
		{"Max", util.FormatFixed(p.Max, 4)},
		{"Skewness", util.FormatFixed(p.Skewness, 4)},
		{"Stationary", stationarity(p.Stationarity)},
		{"Diff Order", strconv.Itoa(p.Stationarity.DiffOrder)},
		{"Dominant Period", strconv.Itoa(p.DominantPeriod)},
		{"Seasonal Strength", util.FormatFixed(p.SeasonalStrength, 3)},
		{"Trend Strength", util.FormatFixed(p.TrendStrength, 3)},
		{"Trend R²", util.FormatFixed(p.TrendR2, 3)},
		{"Suggested Scale", p.Scale},
	}
	if len(p.SeasonalPeriods) > 0 {
		rows = append(rows, []string{"Candidate Periods", joinInts(p.SeasonalPeriods)})
	}
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()

	if len(p.Stationarity.Tests) > 0 {
		fmt.Fprintln(w)
		at := newTable(w, "ADF D", "STATISTIC", "P-VALUE", "LAGS", "STATIONARY")
		for _, s := range p.Stationarity.Tests {
			at.Append([]string{
				strconv.Itoa(s.Order),
				util.FormatFixed(s.Statistic, 4),
				util.FormatFixed(s.PValue, 4),
				strconv.Itoa(s.Lags),
				strconv.FormatBool(s.Stationary),
			})
		}
		at.Render()
	}
	return nil
}

func stationarity(s model.Stationarity) string {
	switch {
	case !s.Ran:
		return "not tested (" + s.Note + ")"
	case s.Stationary:
		return "yes"
	default:
		return "no"
	}
}

func renderRecommendationTable(w io.Writer, r model.Recommendation) error {
	fmt.Fprintf(w, "%s (%s)\n", r.Model, r.Family)
	if !r.Recommended {
		fmt.Fprintf(w, "not recommended: %s\n", r.Reason)
		return nil
	}
	fmt.Fprintln(w)
	tw := newTable(w, "PARAM", "VALUE", "WHY")
	for _, k := range r.Params.Keys() {
		tw.Append([]string{k, fmt.Sprint(r.Params[k]), r.Explanations[k]})
	}
	tw.Render()
	return nil
}

func renderSplitTable(w io.Writer, s model.Split) error {
	tw := newTable(w, "PART", "POINTS", "FIRST", "LAST")
	for _, part := range []struct {
		name string
		ts   model.TimeSeries
	}{{"train", s.Train}, {"test", s.Test}} {
		first, last := "", ""
		if part.ts.Len() > 0 {
			first = util.FormatDate(part.ts.Obs[0].Date)
			last = util.FormatDate(part.ts.Obs[part.ts.Len()-1].Date)
		}
		tw.Append([]string{part.name, strconv.Itoa(part.ts.Len()), first, last})
	}
	tw.Render()
	fmt.Fprintf(w, "ratio %.2f\n", s.Ratio)
	return nil
}

func renderEvaluationTable(w io.Writer, r model.EvaluationResult) error {
	tw := newTable(w, "FIELD", "VALUE")
	tw.Append([]string{"Run", r.RunID})
	tw.Append([]string{"Series", r.Series})
	tw.Append([]string{"Model", fmt.Sprintf("%s (%s)", r.Model, r.Family)})
	tw.Append([]string{"Params", r.Params.Format()})
	tw.Append([]string{"Train / Test", fmt.Sprintf("%d / %d (ratio %.2f)", r.TrainLen, r.TestLen, r.Ratio)})
	for _, k := range sortedMetrics(r.Metrics) {
		tw.Append([]string{strings.ToUpper(k), util.FormatFixed(r.Metrics[k], 4)})
	}
	tw.Append([]string{"Trained", r.TrainedAt.Format(time.RFC3339)})
	tw.Append([]string{"Duration", fmt.Sprintf("%dms", r.DurationMs)})
	if len(r.Preprocessing) > 0 {
		tw.Append([]string{"Preprocessing", strings.Join(r.Preprocessing, " → ")})
	}
	tw.Render()

	if len(r.Forecast) > 0 {
		fmt.Fprintf(w, "\nForecast (%d steps)\n", len(r.Forecast))
		ft := newTable(w, "DATE", "FORECAST")
		ft.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
		for _, o := range r.Forecast {
			ft.Append([]string{util.FormatDate(o.Date), formatValue(o.Value)})
		}
		ft.Render()
	}
	return nil
}

func renderComparisonTable(w io.Writer, t compare.Table) error {
	headers := []string{"MODEL", "SERIES", "PARAMS", "TRAIN", "TEST"}
	for _, m := range t.Metrics {
		headers = append(headers, strings.ToUpper(m.Name))
	}
	headers = append(headers, "TRAINED")
	tw := newTable(w, headers...)
	for _, r := range t.Rows {
		row := []string{r.Model, r.Series, r.Params, strconv.Itoa(r.TrainLen), strconv.Itoa(r.TestLen)}
		for _, m := range t.Metrics {
			if v, ok := r.Metrics[m.Name]; ok {
				row = append(row, util.FormatFixed(v, 4))
			} else {
				row = append(row, "—")
			}
		}
		row = append(row, r.TrainedAt)
		tw.Append(row)
	}
	tw.Render()
	return nil
}

func renderModelsTable(w io.Writer, infos []models.Info) error {
	tw := newTable(w, "MODEL", "FAMILY", "PARAM", "KIND", "DEFAULT", "RANGE", "DESCRIPTION")
	for _, m := range infos {
		for i, p := range m.Params {
			id, fam := "", ""
			if i == 0 {
				id, fam = m.ID, string(m.Family)
			}
			tw.Append([]string{id, fam, p.Name, string(p.Kind), fmt.Sprint(p.Default), paramRange(p), p.Description})
		}
	}
	tw.Render()
	return nil
}

func paramRange(p models.ParamSpec) string {
	if len(p.Choices) > 0 {
		return strings.Join(p.Choices, "|")
	}
	if p.Bounded() {
		return fmt.Sprintf("%g..%g", p.Min, p.Max)
	}
	return ""
}

func renderPlainTable(w io.Writer, t Table) error {
	tw := newTable(w, t.Headers...)
	for _, r := range t.Rows {
		tw.Append(r)
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	writeSeries := func(ts model.TimeSeries) {
		for _, o := range ts.Obs {
			_ = cw.Write([]string{ts.Name, util.FormatDate(o.Date), formatValue(o.Value)})
		}
	}

	switch d := result.Data.(type) {
	case model.TimeSeries:
		_ = cw.Write([]string{"series", "date", "value"})
		writeSeries(d)
	case model.PreprocessResult:
		_ = cw.Write([]string{"series", "date", "value"})
		writeSeries(d.Series)
	case model.GapReport:
		_ = cw.Write([]string{"series", "start", "end", "missing"})
		for _, g := range d.Gaps {
			_ = cw.Write([]string{d.Series, util.FormatDate(g.StartDate), util.FormatDate(g.EndDate), strconv.Itoa(g.Len())})
		}
	case model.Recommendation:
		_ = cw.Write([]string{"param", "value", "explanation"})
		for _, k := range d.Params.Keys() {
			_ = cw.Write([]string{k, fmt.Sprint(d.Params[k]), d.Explanations[k]})
		}
	case model.EvaluationResult:
		_ = cw.Write([]string{"date", "forecast"})
		for _, o := range d.Forecast {
			_ = cw.Write([]string{util.FormatDate(o.Date), formatValue(o.Value)})
		}
	case compare.Table:
		writeComparison(cw, d)
	case []model.EvaluationResult:
		writeComparison(cw, compare.New(d...).Table())
	case Table:
		_ = cw.Write(d.Headers)
		for _, r := range d.Rows {
			_ = cw.Write(r)
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

func writeComparison(cw *csv.Writer, t compare.Table) {
	headers := []string{"run_id", "model", "series", "params", "train_len", "test_len"}
	for _, m := range t.Metrics {
		headers = append(headers, m.Name)
	}
	_ = cw.Write(append(headers, "trained_at"))
	for _, r := range t.Rows {
		row := []string{r.RunID, r.Model, r.Series, r.Params, strconv.Itoa(r.TrainLen), strconv.Itoa(r.TestLen)}
		for _, m := range t.Metrics {
			v, ok := r.Metrics[m.Name]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		_ = cw.Write(append(row, r.TrainedAt))
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatValue formats an observation value for display.
// Always shows at least one decimal place (e.g. 4.0, not 4).
// Trims unnecessary trailing zeros beyond the first (e.g. 3.400000 → 3.4).
// Missing values (NaN) render as ".".
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	s := strings.TrimRight(fmt.Sprintf("%.6f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0" // "4." → "4.0"
	}
	return s
}

func formatBound(v *float64) string {
	if v == nil {
		return "—"
	}
	return formatValue(*v)
}

func jsonValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

func sortedMetrics(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
