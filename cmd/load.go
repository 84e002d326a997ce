package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/pipeline"
	"github.com/derickschaefer/forecast/internal/render"
	"github.com/derickschaefer/forecast/internal/util"
)

var (
	loadName     string
	loadDateCol  string
	loadValueCol string
)

var loadCmd = &cobra.Command{
	Use:   "load <file.csv|->",
	Short: "Import a CSV upload into the local database",
	Long: `Import a CSV file with a header row. The date and value columns are found
automatically (first parseable date column, first numeric column) unless named
with --date-col and --value-col. Blank, "." and "NA" cells become missing
values. Rows are sorted by date; duplicate dates are rejected.`,
	Example: `  forecast load sales.csv --name sales
  forecast load prices.csv --date-col day --value-col close
  cat data.csv | forecast load - --name demo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		var r io.Reader = cmd.InOrStdin()
		source := "csv:stdin"
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()
			r = f
			source = "csv:" + filepath.Base(args[0])
		}

		name := loadName
		if name == "" && args[0] != "-" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		ts, err := pipeline.ReadCSV(r, pipeline.CSVOptions{
			Name:      name,
			DateCol:   loadDateCol,
			ValueCol:  loadValueCol,
			MinPoints: deps.Config.MinPoints,
			MaxPoints: deps.Config.MaxPoints,
		})
		if err != nil {
			return err
		}

		s, err := deps.RequireStore()
		if err != nil {
			return err
		}
		if err := s.PutSeries(ts, source); err != nil {
			return fmt.Errorf("storing %s: %w", ts.Name, err)
		}
		table := render.Table{
			Headers: []string{"NAME", "SOURCE", "POINTS", "MISSING", "FIRST", "LAST"},
			Rows: [][]string{{
				ts.Name, source, fmt.Sprint(ts.Len()), fmt.Sprint(ts.MissingCount()),
				util.FormatDate(ts.First()), util.FormatDate(ts.Last()),
			}},
		}
		return emit(cmd, deps, newResult(model.KindTable, "load", table, ts.Len(), start))
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVar(&loadName, "name", "", "store under this name (default: file name, or the value column for stdin)")
	loadCmd.Flags().StringVar(&loadDateCol, "date-col", "", "date column header")
	loadCmd.Flags().StringVar(&loadValueCol, "value-col", "", "value column header")
}
