package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is the release string. Production builds overwrite it via:
//
//	go build -ldflags "-X github.com/derickschaefer/forecast/cmd.Version=v0.2.0"
var Version = "v0.1.0"

// BuildTime is optionally injected at build time alongside Version.
var BuildTime = ""

// versionInfo is the structured payload for --format json output.
type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the forecast version and build information",
	Long: `Print the forecast version string and build metadata.

Default output is plain text, suitable for shell scripts and pipelines.
Use --format json for structured output.

Examples:
  forecast version
  forecast version --format json | jq .version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Version:   Version,
			GoVersion: runtime.Version(),
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			Commit:    vcsRevision(),
			BuildTime: BuildTime,
		}

		switch globalFlags.Format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)

		case "jsonl":
			b, err := json.Marshal(info)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return nil

		default:
			// Plain text, one value per line.
			fmt.Fprintf(cmd.OutOrStdout(), "forecast %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "go       %s\n", info.GoVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "os       %s/%s\n", info.GOOS, info.GOARCH)
			if info.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "commit   %s\n", info.Commit)
			}
			if info.BuildTime != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "built    %s\n", info.BuildTime)
			}
			return nil
		}
	},
}

// vcsRevision reads the commit stamped by the Go toolchain, if any.
func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
