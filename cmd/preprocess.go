package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/app"
	"github.com/derickschaefer/forecast/internal/gapfill"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/preprocess"
	"github.com/derickschaefer/forecast/internal/transform"
)

// pipelineFlags are shared by every command that preprocesses a series.
// Unset flags fall back to the configured fill_method, outliers, iqr_k and
// scaling keys.
var pipelineFlags struct {
	Fill     string
	Freq     string
	Outliers bool
	IQRK     float64
	Scale    string
}

func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&pipelineFlags.Fill, "fill", "", "gap fill method: linear|zero (default: config fill_method)")
	f.StringVar(&pipelineFlags.Freq, "freq", "", "sampling frequency, e.g. 24h, daily, monthly (default: inferred)")
	f.BoolVar(&pipelineFlags.Outliers, "outliers", false, "remove IQR outliers before filling")
	f.Float64Var(&pipelineFlags.IQRK, "iqr-k", 0, "IQR multiplier k (default: config iqr_k)")
	f.StringVar(&pipelineFlags.Scale, "scale", "", "scaling: none|zscore|minmax (default: config scaling)")
}

// pipelineOptions layers changed flags over the configured options.
func pipelineOptions(cmd *cobra.Command, deps *app.Deps) (preprocess.Options, error) {
	opts, err := deps.PreprocessOptions()
	if err != nil {
		return opts, err
	}
	f := cmd.Flags()
	if f.Changed("fill") {
		if opts.Fill, err = gapfill.ParseMethod(pipelineFlags.Fill); err != nil {
			return opts, err
		}
	}
	if f.Changed("freq") {
		if opts.Frequency, err = gapfill.ParseFrequency(pipelineFlags.Freq); err != nil {
			return opts, err
		}
	}
	if f.Changed("outliers") {
		opts.Outliers = pipelineFlags.Outliers
	}
	if f.Changed("iqr-k") {
		if pipelineFlags.IQRK <= 0 {
			return opts, fmt.Errorf("--iqr-k %g: must be positive", pipelineFlags.IQRK)
		}
		opts.IQRK = pipelineFlags.IQRK
	}
	if f.Changed("scale") {
		if opts.Scale, err = transform.ParseScale(pipelineFlags.Scale); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// ─── gaps ─────────────────────────────────────────────────────────────────────

var gapsFreq string

var gapsCmd = &cobra.Command{
	Use:   "gaps <name|->",
	Short: "Report missing observations on the series' frequency grid",
	Example: `  forecast gaps sales
  forecast gaps sensor --freq 1h`,
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
		var freq model.Frequency
		if gapsFreq != "" {
			if freq, err = gapfill.ParseFrequency(gapsFreq); err != nil {
				return err
			}
		}
		report, _, err := gapfill.Detect(ts, freq)
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindGaps, "gaps "+ts.Name, report, len(report.Gaps), start))
	},
}

// ─── clean ────────────────────────────────────────────────────────────────────

var cleanSaveAs string

var cleanCmd = &cobra.Command{
	Use:   "clean <name|->",
	Short: "Run the preprocessing pipeline: outliers, gap fill, scaling",
	Long: `Run the preprocessing pipeline on a series. Steps run in a fixed order:
IQR outlier removal (when enabled), gap filling on the frequency grid, then
scaling. Every applied step is listed with its parameters.`,
	Example: `  forecast clean sales
  forecast clean sales --outliers --iqr-k 3 --save-as sales_clean
  forecast store get sales --format jsonl | forecast clean - --fill zero --format jsonl`,
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
		opts, err := pipelineOptions(cmd, deps)
		if err != nil {
			return err
		}
		res, err := deps.Pipeline(opts).Run(ts)
		if err != nil {
			return err
		}

		if cleanSaveAs != "" {
			s, err := deps.RequireStore()
			if err != nil {
				return err
			}
			out := res.Series.Clone()
			out.Name = cleanSaveAs
			if err := s.PutSeries(out, "clean:"+ts.Name); err != nil {
				return fmt.Errorf("storing %s: %w", cleanSaveAs, err)
			}
			notify(cmd, "✓ Saved cleaned series as %s", cleanSaveAs)
		}

		payload := model.PreprocessResult{Series: res.Series, Record: res.Record}
		return emit(cmd, deps, newResult(model.KindPreprocess, "clean "+ts.Name, payload, res.Series.Len(), start))
	},
}

func init() {
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(cleanCmd)

	gapsCmd.Flags().StringVar(&gapsFreq, "freq", "", "sampling frequency, e.g. 24h, daily, monthly (default: inferred)")
	addPipelineFlags(cleanCmd)
	cleanCmd.Flags().StringVar(&cleanSaveAs, "save-as", "", "store the cleaned series under this name")
}
