// Package cmd implements the forecast CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/app"
	"github.com/derickschaefer/forecast/internal/config"
)

// globalFlags holds the parsed values of the persistent flags that are not
// configuration keys. --api-key, --db, --format, --log-level and --log-format
// are bound into config.Load and read back from the resolved Config.
var globalFlags struct {
	APIKey    string
	DB        string
	Format    string
	LogLevel  string
	LogFormat string
	Out       string
	Quiet     bool
	Verbose   bool
}

// rootCmd is the base command. Running `forecast` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Time-series cleaning, model advice and holdout evaluation",
	Long: `forecast loads time series from CSV files or the FRED® API, cleans them
(gap filling, IQR outlier removal, scaling), profiles their statistics,
recommends hyperparameters for each forecasting model, and scores models on a
chronological holdout split.

Quick start:
  forecast load sales.csv --name sales     # import a CSV upload
  forecast profile sales                   # stationarity, seasonality, trend
  forecast recommend sales --model arima   # suggested hyperparameters
  forecast train sales --model arima       # fit, score and forecast
  forecast compare sales                   # side-by-side results

Commands that take a series accept "-" to read JSONL from stdin:
  forecast store get sales --format jsonl | forecast clean - --format jsonl | forecast split -`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(rootCmd.PersistentFlags())
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.APIKey, "api-key", "",
		"FRED API key (overrides env FORECAST_FRED_API_KEY and config.json)")
	pf.StringVar(&globalFlags.DB, "db", "",
		"path to the local database (default: ~/.forecast/forecast.db)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv (default: table)")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "",
		"log level: debug|info|warn|error (default: warn)")
	pf.StringVar(&globalFlags.LogFormat, "log-format", "",
		"log format: text|json (default: text)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
}
