package cmd

import (
	"github.com/spf13/cobra"
)

var completionNoDesc bool

// completionCmd replaces Cobra's default completion command so the help text
// can show forecast-specific install lines.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for forecast.

  source <(forecast completion bash)
  source <(forecast completion zsh)
  forecast completion fish | source

Stored series names complete for commands that take a <name> argument.`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, out := cmd.Root(), cmd.OutOrStdout()
		desc := !completionNoDesc
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, desc)
		case "zsh":
			if desc {
				return root.GenZshCompletion(out)
			}
			return root.GenZshCompletionNoDesc(out)
		case "fish":
			return root.GenFishCompletion(out, desc)
		default:
			if desc {
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return root.GenPowerShellCompletion(out)
		}
	},
}

// completeSeriesNames offers stored series names for the first argument.
func completeSeriesNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	deps, err := buildDeps()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer deps.Close()
	s, err := deps.RequireStore()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	infos, err := s.ListSeries()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(infos)+1)
	names = append(names, "-")
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)
	completionCmd.Flags().BoolVar(&completionNoDesc, "no-descriptions", false, "disable completion descriptions")
}
