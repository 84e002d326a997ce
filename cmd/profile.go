package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/recommend"
)

// ─── profile ──────────────────────────────────────────────────────────────────

var profileCmd = &cobra.Command{
	Use:   "profile <name|->",
	Short: "Compute the statistical profile used for recommendations",
	Long: `Preprocess a series with the configured options, then report its moments,
ADF stationarity tests with the differencing order they imply, ACF/PACF,
candidate seasonal periods with seasonal and trend strength, and the suggested
scaling. The profile is recomputed on every call.`,
	Example: `  forecast profile sales
  forecast profile sales --format json | jq .stationarity`,
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
		prof := recommend.Profile(res.Series, res.Frequency, deps.RecommendOptions())
		return emit(cmd, deps, newResult(model.KindProfile, "profile "+ts.Name, prof, prof.Length, start))
	},
}

// ─── recommend ────────────────────────────────────────────────────────────────

var recommendModel string

var recommendCmd = &cobra.Command{
	Use:   "recommend <name|->",
	Short: "Suggest hyperparameters for a model from the series profile",
	Long: `Profile a series and derive hyperparameters for one model, each with a
one-line explanation. Deep-learning models are marked "not recommended" for
series below deep_learning_min_points known values.`,
	Example: `  forecast recommend sales --model arima
  forecast recommend sales --model prophet --format json`,
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
		rec, _, err := deps.Registry.Recommend(recommendModel, res.Series, res.Frequency, deps.RecommendOptions())
		if err != nil {
			return err
		}
		result := newResult(model.KindRecommendation, "recommend "+ts.Name, rec, len(rec.Params), start)
		if !rec.Recommended {
			deps.Logger.WithFields(logrus.Fields{"op": "recommend", "model": rec.Model, "series": ts.Name}).Warn(rec.Reason)
		}
		return emit(cmd, deps, result)
	},
}

func completeModelIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	deps, err := buildDeps()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return deps.Registry.IDs(), cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(recommendCmd)

	addPipelineFlags(profileCmd)
	addPipelineFlags(recommendCmd)
	recommendCmd.Flags().StringVar(&recommendModel, "model", "", "model ID (see 'forecast models')")
	_ = recommendCmd.MarkFlagRequired("model")
	_ = recommendCmd.RegisterFlagCompletionFunc("model", completeModelIDs)
}
