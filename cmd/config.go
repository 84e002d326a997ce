package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/forecast/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage forecast configuration",
	Long: `Read and write forecast configuration stored in config.json.

config.json is read from the current directory, then ~/.forecast/.
Every key can also be set with a FORECAST_<KEY> environment variable.`,
}

var configInitHome bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath(configInitHome)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Set fred_api_key to use `forecast fetch`.")
		fmt.Fprintln(cmd.OutOrStdout(), "  Get a free key at: https://fred.stlouisfed.org/docs/api/api_key.html")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the resolved configuration and where each value came from",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootCmd.PersistentFlags())
		if err != nil {
			return err
		}
		keys := config.Keys()
		if len(args) == 1 {
			keys = []string{strings.ToLower(args[0])}
		}

		type entry struct {
			Key    string        `json:"key"`
			Value  string        `json:"value"`
			Source config.Source `json:"source"`
		}
		entries := make([]entry, 0, len(keys))
		for _, k := range keys {
			val, src, err := cfg.Lookup(k)
			if err != nil {
				return err
			}
			if val == "" {
				val = "(not set)"
			}
			entries = append(entries, entry{Key: k, Value: val, Source: src})
		}

		file := "(not found)"
		if cfg.ConfigPath != "" {
			file = cfg.ConfigPath
		}

		switch cfg.Format {
		case "json", "jsonl":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				ConfigFile string  `json:"config_file"`
				Values     []entry `json:"values"`
			}{file, entries})
		default:
			rows := make([][]string, 0, len(entries)+1)
			for _, e := range entries {
				rows = append(rows, []string{e.Key, fmt.Sprintf("%s  [%s]", e.Value, e.Source)})
			}
			rows = append(rows, []string{"config_file", file})
			printKVTableTo(cmd.OutOrStdout(), rows)
			return nil
		}
	},
}

var configSetHome bool

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Example: `  forecast config set fred_api_key abcd1234
  forecast config set outliers true
  forecast config set split_ratio 0.75`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		if !config.IsKey(key) {
			return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(config.Keys(), ", "))
		}
		path, err := configFilePath(configSetHome)
		if err != nil {
			return err
		}
		if err := config.Set(path, key, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

// configFilePath returns ./config.json, or ~/.forecast/config.json when home is set.
func configFilePath(home bool) (string, error) {
	if !home {
		return config.DefaultConfigFile, nil
	}
	dirs := config.SearchDirs()
	if len(dirs) < 2 {
		return "", fmt.Errorf("cannot resolve home directory")
	}
	return dirs[1] + string(os.PathSeparator) + config.DefaultConfigFile, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitHome, "home", false, "write to ~/.forecast/config.json instead of the current directory")
	configSetCmd.Flags().BoolVar(&configSetHome, "home", false, "edit ~/.forecast/config.json instead of the current directory")
}
