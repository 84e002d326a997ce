package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/app"
	"github.com/derickschaefer/forecast/internal/compare"
	"github.com/derickschaefer/forecast/internal/evaluate"
	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/util"
)

// evalFlags are shared by split, train and compare. Zero values fall back to
// the configured split_ratio and horizon.
var evalFlags struct {
	Ratio       float64
	Horizon     int
	Params      []string
	NoRecommend bool
	NoSave      bool
}

func addRatioFlag(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&evalFlags.Ratio, "ratio", 0, "holdout training share, 0.70..0.90 (default: config split_ratio)")
}

func addTrainFlags(cmd *cobra.Command) {
	addRatioFlag(cmd)
	addPipelineFlags(cmd)
	f := cmd.Flags()
	f.IntVar(&evalFlags.Horizon, "horizon", 0, "future points to forecast after refitting, 1..365 (default: config horizon)")
	f.BoolVar(&evalFlags.NoRecommend, "no-recommend", false, "start from model defaults instead of recommended values")
	f.BoolVar(&evalFlags.NoSave, "no-save", false, "do not store the evaluation result")
}

// evaluateOptions layers changed flags over the configured options.
func evaluateOptions(cmd *cobra.Command, deps *app.Deps) (evaluate.Options, error) {
	opts := deps.EvaluateOptions()
	if cmd.Flags().Changed("ratio") {
		if err := checkRatio(evalFlags.Ratio); err != nil {
			return opts, err
		}
		opts.Ratio = evalFlags.Ratio
	}
	if cmd.Flags().Changed("horizon") {
		if err := checkHorizon(evalFlags.Horizon); err != nil {
			return opts, err
		}
		opts.Horizon = evalFlags.Horizon
	}
	return opts, nil
}

// trainRequest builds the shared request for train and compare.
func trainRequest(cmd *cobra.Command, deps *app.Deps, modelID string) (app.TrainRequest, error) {
	pre, err := pipelineOptions(cmd, deps)
	if err != nil {
		return app.TrainRequest{}, err
	}
	ev, err := evaluateOptions(cmd, deps)
	if err != nil {
		return app.TrainRequest{}, err
	}
	overrides, err := parseParams(evalFlags.Params)
	if err != nil {
		return app.TrainRequest{}, err
	}
	return app.TrainRequest{
		Model:       modelID,
		Overrides:   overrides,
		Recommend:   !evalFlags.NoRecommend,
		Preprocess:  pre,
		Evaluate:    ev,
		Recommender: deps.RecommendOptions(),
		Save:        !evalFlags.NoSave,
	}, nil
}

// ─── split ────────────────────────────────────────────────────────────────────

var splitCmd = &cobra.Command{
	Use:   "split <name|->",
	Short: "Show the chronological train/test partition",
	Long: `Split a series into a training window followed by a test window. The
training window holds floor(ratio × n) points; the rest are held out.`,
	Example: `  forecast split sales
  forecast split sales --ratio 0.75
  forecast clean sales --format jsonl | forecast split - --format jsonl`,
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
		opts, err := evaluateOptions(cmd, deps)
		if err != nil {
			return err
		}
		sp, err := evaluate.Split(ts, opts.Ratio, 1, 1)
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindSplit, "split "+ts.Name, sp, ts.Len(), start))
	},
}

// ─── train ────────────────────────────────────────────────────────────────────

var trainModel string

var trainCmd = &cobra.Command{
	Use:   "train <name|->",
	Short: "Fit a model on the training window, score it, and forecast ahead",
	Long: `Preprocess the series, resolve hyperparameters (model defaults, then the
recommendation, then --param overrides), fit on the training window and score
the test window with MAE, RMSE and MAPE. The model is then refit on the whole
series and forecasts --horizon points past its last date. The result is stored
for 'forecast compare' unless --no-save is given.`,
	Example: `  forecast train sales --model arima
  forecast train sales --model arima --param p=2 --param q=0
  forecast train sales --model nbeats --no-recommend --horizon 14`,
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
		req, err := trainRequest(cmd, deps, trainModel)
		if err != nil {
			return err
		}
		out, err := deps.Train(ts, req)
		if err != nil {
			return err
		}
		result := newResult(model.KindEvaluation, "train "+ts.Name, out.Result, out.Result.TestLen, start)
		result.Warnings = out.Result.Warnings
		return emit(cmd, deps, result)
	},
}

// ─── compare ──────────────────────────────────────────────────────────────────

var compareModels []string

var compareCmd = &cobra.Command{
	Use:   "compare <name>",
	Short: "Compare evaluation results for a series side by side",
	Long: `With --model, train each listed model on the series (as 'forecast train'
would) and store the results. Then list every stored result for the series,
ordered by model and training time.`,
	Example: `  forecast compare sales
  forecast compare sales --model arima --model prophet --model nbeats`,
	Args:              cobra.ExactArgs(1),
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

		var warnings []string
		var fresh []model.EvaluationResult
		if len(compareModels) > 0 {
			ts, err := loadSeries(cmd, deps, args[0])
			if err != nil {
				return err
			}
			var errs util.MultiError
			for _, id := range compareModels {
				req, err := trainRequest(cmd, deps, id)
				if err != nil {
					return err
				}
				out, err := deps.Train(ts, req)
				if err != nil {
					errs.Add(fmt.Errorf("%s: %w", id, err))
					continue
				}
				fresh = append(fresh, out.Result)
				warnings = append(warnings, out.Result.Warnings...)
			}
			if len(fresh) == 0 {
				return errs.Err()
			}
			for _, e := range errs.Errors {
				warnings = append(warnings, e.Error())
			}
		}

		c := compare.New()
		if evalFlags.NoSave {
			for _, r := range fresh {
				c.Add(r)
			}
		}
		stored, err := s.ListResults(args[0])
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		for _, r := range stored {
			c.Add(r)
		}
		if c.Len() == 0 {
			return fmt.Errorf("no evaluation results for %q\n\n  Use: forecast compare %s --model arima --model prophet", args[0], args[0])
		}

		result := newResult(model.KindComparison, "compare "+args[0], c.Table(), c.Len(), start)
		result.Warnings = warnings
		return emit(cmd, deps, result)
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(compareCmd)

	addRatioFlag(splitCmd)

	addTrainFlags(trainCmd)
	trainCmd.Flags().StringVar(&trainModel, "model", "", "model ID (see 'forecast models')")
	trainCmd.Flags().StringArrayVar(&evalFlags.Params, "param", nil, "hyperparameter override key=value (repeatable)")
	_ = trainCmd.MarkFlagRequired("model")
	_ = trainCmd.RegisterFlagCompletionFunc("model", completeModelIDs)

	addTrainFlags(compareCmd)
	compareCmd.Flags().StringArrayVar(&compareModels, "model", nil, "train this model first (repeatable)")
	compareCmd.Flags().StringArrayVar(&evalFlags.Params, "param", nil, "hyperparameter override applied to every trained model")
	_ = compareCmd.RegisterFlagCompletionFunc("model", completeModelIDs)
}
