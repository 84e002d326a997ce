package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List registered forecasting models and their hyperparameters",
	Example: `  forecast models
  forecast models --format json | jq '.data[].id'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		list := deps.Registry.List()
		return emit(cmd, deps, newResult(model.KindModels, "models", list, len(list), start))
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
