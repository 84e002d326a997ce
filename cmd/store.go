package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/render"
	"github.com/derickschaefer/forecast/internal/store"
	"github.com/derickschaefer/forecast/internal/util"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and manage the local database",
	Long: `Commands for the series and evaluation results kept in the local database.

Use 'forecast load' or 'forecast fetch' to add series.
Use 'forecast train' to add evaluation results.`,
}

// ─── store list ───────────────────────────────────────────────────────────────

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored series",
	Example: `  forecast store list
  forecast store list --format csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}

		infos, err := s.ListSeries()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No series in local database.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: forecast load <file.csv> --name NAME")
			return nil
		}

		table := render.Table{Headers: []string{"NAME", "SOURCE", "POINTS", "MISSING", "FIRST", "LAST", "SAVED AT"}}
		for _, info := range infos {
			table.Rows = append(table.Rows, []string{
				info.Name,
				info.Source,
				fmt.Sprint(info.Points),
				fmt.Sprint(info.Missing),
				util.FormatDate(info.First),
				util.FormatDate(info.Last),
				info.SavedAt.Format("2006-01-02 15:04"),
			})
		}
		return emit(cmd, deps, newResult(model.KindTable, "store list", table, len(infos), start))
	},
}

// ─── store get ────────────────────────────────────────────────────────────────

var storeGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a stored series",
	Example: `  forecast store get sales
  forecast store get sales --format jsonl | forecast clean -`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSeriesNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		ts, err := loadSeries(cmd, deps, args[0])
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindSeries, "store get "+ts.Name, ts, ts.Len(), start))
	},
}

// ─── store delete ─────────────────────────────────────────────────────────────

var storeDeleteCmd = &cobra.Command{
	Use:               "delete <name>",
	Short:             "Delete a stored series and its evaluation results",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSeriesNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}
		if err := s.DeleteSeries(args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no stored series named %q", args[0])
			}
			return err
		}
		notify(cmd, "✓ Deleted %s", args[0])
		return nil
	},
}

// ─── store results ────────────────────────────────────────────────────────────

var storeResultsCmd = &cobra.Command{
	Use:   "results [name]",
	Short: "List stored evaluation results, optionally for one series",
	Example: `  forecast store results
  forecast store results sales --format json`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeSeriesNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		results, err := s.ListResults(name)
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		return emit(cmd, deps, newResult(model.KindEvaluation, "store results", results, len(results), start))
	},
}

// ─── store stats / clear ──────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts and sizes per bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}
		stats, err := s.Stats()
		if err != nil {
			return err
		}
		table := render.Table{Headers: []string{"BUCKET", "ROWS", "BYTES"}}
		for _, b := range stats {
			table.Rows = append(table.Rows, []string{b.Name, fmt.Sprint(b.Count), fmt.Sprint(b.Bytes)})
		}
		if err := emit(cmd, deps, newResult(model.KindTable, "store stats", table, len(stats), start)); err != nil {
			return err
		}
		notify(cmd, "%s", s.Path())
		return nil
	},
}

var storeClearCmd = &cobra.Command{
	Use:       "clear [series|results]",
	Short:     "Remove every row from one bucket, or from all of them",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: store.AllBuckets,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			if err := s.ClearAll(); err != nil {
				return err
			}
			notify(cmd, "✓ Cleared all buckets")
			return nil
		}
		if err := s.ClearBucket(args[0]); err != nil {
			return err
		}
		notify(cmd, "✓ Cleared %s", args[0])
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeDeleteCmd)
	storeCmd.AddCommand(storeResultsCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeClearCmd)
}
