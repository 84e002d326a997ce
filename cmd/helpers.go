package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/app"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/pipeline"
	"github.com/derickschaefer/forecast/internal/render"
)

// outputWriter returns w, or the --out file when one is set. The returned
// close function must always be called.
func outputWriter(w io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return w, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result in the configured format and prints warnings to stderr.
func emit(cmd *cobra.Command, deps *app.Deps, result *model.Result) error {
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := render.Render(w, result, deps.Config.Format); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if !globalFlags.Quiet {
		render.PrintFooter(cmd.ErrOrStderr(), result, globalFlags.Verbose)
	}
	return nil
}

// newResult wraps data in a Result envelope.
func newResult(kind, command string, data any, items int, started time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			Items:      items,
			DurationMs: time.Since(started).Milliseconds(),
		},
	}
}

// notify prints a confirmation line unless --quiet is set.
func notify(cmd *cobra.Command, format string, args ...any) {
	if globalFlags.Quiet {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

// loadSeries resolves a series argument: "-" reads JSONL from stdin,
// anything else is a name in the local store.
func loadSeries(cmd *cobra.Command, deps *app.Deps, arg string) (model.TimeSeries, error) {
	if arg == "-" {
		return pipeline.ReadSeries(cmd.InOrStdin())
	}
	s, err := deps.RequireStore()
	if err != nil {
		return model.TimeSeries{}, err
	}
	ts, ok, err := s.GetSeries(arg)
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("reading store: %w", err)
	}
	if !ok {
		return model.TimeSeries{}, fmt.Errorf("no stored series named %q\n\n  Use: forecast load <file.csv> --name %s\n   or: forecast fetch <FRED_ID> --as %s", arg, arg, arg)
	}
	return ts, nil
}

// parseParams parses repeated --param key=value flags.
func parseParams(raw []string) (model.Hyperparameters, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := model.Hyperparameters{}
	var errs []error
	for _, s := range raw {
		k, v, err := model.ParseParam(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[k] = v
	}
	return out, errors.Join(errs...)
}

// checkRatio enforces the holdout ratio range accepted at the CLI.
func checkRatio(r float64) error {
	if r < 0.70 || r > 0.90 {
		return fmt.Errorf("--ratio %g: must be between 0.70 and 0.90", r)
	}
	return nil
}

// checkHorizon enforces the forecast horizon range.
func checkHorizon(h int) error {
	if h < 1 || h > 365 {
		return fmt.Errorf("--horizon %d: must be between 1 and 365", h)
	}
	return nil
}

// printKVTableTo renders a two-column key/value list with aligned columns.
func printKVTableTo(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}
