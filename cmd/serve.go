package cmd

import (
	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline as a JSON HTTP API",
	Long: `Start an HTTP server exposing preprocessing, profiling, recommendation and
evaluation. Evaluation results are stored in the local database and listed by
GET /v1/results. Prometheus metrics are served at /metrics.

Routes:
  GET  /healthz
  GET  /metrics
  GET  /v1/models
  POST /v1/preprocess
  POST /v1/profile
  POST /v1/recommend/:model
  POST /v1/evaluate
  GET  /v1/results?series=NAME`,
	Example: `  forecast serve
  forecast serve --addr 127.0.0.1:9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if _, err := deps.RequireStore(); err != nil {
			return err
		}

		addr := deps.Config.ServeAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		srv := server.New(deps)
		srv.Persist = true
		notify(cmd, "✓ Listening on %s", addr)
		return srv.Run(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: config serve_addr)")
}
