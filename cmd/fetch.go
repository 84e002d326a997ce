package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/app"
	"github.com/derickschaefer/forecast/internal/fred"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/render"
	"github.com/derickschaefer/forecast/internal/util"
)

const fetchConcurrency = 4

var (
	fetchAs    string
	fetchStart string
	fetchEnd   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <FRED_ID...>",
	Short: "Fetch FRED observations into the local database",
	Long: `Fetch observations for one or more FRED series and store them under their
upper-cased ID (or --as NAME for a single series). Values FRED reports as "."
are stored as missing and filled later by 'forecast clean'.`,
	Example: `  forecast fetch UNRATE
  forecast fetch CPIAUCSL --as cpi --start 2000-01-01
  forecast fetch GDP UNRATE PAYEMS`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := normaliseIDs(args)
		if fetchAs != "" && len(ids) > 1 {
			return fmt.Errorf("--as can only be used with a single series ID")
		}
		for _, d := range []string{fetchStart, fetchEnd} {
			if d == "" {
				continue
			}
			if _, err := util.ParseDate(d); err != nil {
				return err
			}
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Config.RequireAPIKey(); err != nil {
			return err
		}
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}

		start := time.Now()
		series, warnings := batchGetObs(cmd.Context(), deps, ids, fred.ObsOptions{Start: fetchStart, End: fetchEnd})
		table := render.Table{Headers: []string{"NAME", "SOURCE", "POINTS", "MISSING", "FIRST", "LAST"}}
		for _, ts := range series {
			if err := s.PutSeries(ts, ts.Source); err != nil {
				return fmt.Errorf("storing %s: %w", ts.Name, err)
			}
			table.Rows = append(table.Rows, []string{
				ts.Name, ts.Source, fmt.Sprint(ts.Len()), fmt.Sprint(ts.MissingCount()),
				util.FormatDate(ts.First()), util.FormatDate(ts.Last()),
			})
		}
		result := newResult(model.KindTable, "fetch", table, len(series), start)
		result.Warnings = warnings
		if err := emit(cmd, deps, result); err != nil {
			return err
		}
		if len(series) == 0 {
			return fmt.Errorf("no series fetched")
		}
		return nil
	},
}

// normaliseIDs upper-cases all series IDs and removes duplicates while
// preserving order.
func normaliseIDs(ids []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// batchGetObs fetches observations for multiple series IDs concurrently.
// Per-series failures come back as warnings; results keep the input order.
func batchGetObs(ctx context.Context, deps *app.Deps, ids []string, opts fred.ObsOptions) ([]model.TimeSeries, []string) {
	type result struct {
		ts  model.TimeSeries
		err error
	}

	sem := make(chan struct{}, fetchConcurrency)
	results := make([]result, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			name := ""
			if len(ids) == 1 {
				name = fetchAs
			}
			ts, err := deps.Client.GetObservations(ctx, id, name, opts)
			results[i] = result{ts: ts, err: err}
		}()
	}
	wg.Wait()

	var out []model.TimeSeries
	var warnings []string
	for i, r := range results {
		if r.err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", ids[i], r.err))
			continue
		}
		out = append(out, r.ts)
	}
	return out, warnings
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchAs, "as", "", "store under this name instead of the FRED ID")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "observation start date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "observation end date (YYYY-MM-DD)")
}
