// Package config handles loading and resolving forecast configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags (--api-key, --db, --format, --log-level, --log-format)
//  2. Environment variables FORECAST_<KEY>, e.g. FORECAST_FRED_API_KEY
//  3. config.json in the current working directory, then $HOME/.forecast/
//  4. Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigFile = "config.json"
	DefaultFormat     = "table"
	DefaultTimeout    = 30 * time.Second
	DefaultRate       = 5.0
	DefaultRetries    = 4
	DefaultBaseURL    = "https://api.stlouisfed.org/fred/"
	DefaultSplitRatio = 0.8
	DefaultHorizon    = 30
	DefaultMinPoints  = 20
	DefaultMaxPoints  = 50000
	DefaultServeAddr  = ":8080"
	EnvPrefix         = "FORECAST"
)

// Source names where a resolved value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Config is the fully-resolved runtime configuration.
// All callers use this struct; viper is only consulted during loading.
type Config struct {
	APIKey                string        `mapstructure:"fred_api_key"`
	BaseURL               string        `mapstructure:"base_url"`
	Timeout               time.Duration `mapstructure:"timeout"`
	Rate                  float64       `mapstructure:"rate"`
	Retries               int           `mapstructure:"retries"`
	DBPath                string        `mapstructure:"db_path"`
	Format                string        `mapstructure:"format"`
	LogLevel              string        `mapstructure:"log_level"`
	LogFormat             string        `mapstructure:"log_format"`
	FillMethod            string        `mapstructure:"fill_method"`
	Outliers              bool          `mapstructure:"outliers"`
	IQRK                  float64       `mapstructure:"iqr_k"`
	Scaling               string        `mapstructure:"scaling"`
	SplitRatio            float64       `mapstructure:"split_ratio"`
	Horizon               int           `mapstructure:"horizon"`
	MinPoints             int           `mapstructure:"min_points"`
	MaxPoints             int           `mapstructure:"max_points"`
	ServeAddr             string        `mapstructure:"serve_addr"`
	DeepLearningMinPoints int           `mapstructure:"deep_learning_min_points"`

	ConfigPath string `mapstructure:"-"` // path of the config.json that was loaded (empty if none found)

	v     *viper.Viper
	flags *pflag.FlagSet
}

// defaults lists every key with its built-in value. Keys() derives from it.
var defaults = map[string]any{
	"fred_api_key":             "",
	"base_url":                 DefaultBaseURL,
	"timeout":                  DefaultTimeout.String(),
	"rate":                     DefaultRate,
	"retries":                  DefaultRetries,
	"db_path":                  "",
	"format":                   DefaultFormat,
	"log_level":                "warn",
	"log_format":               "text",
	"fill_method":              "linear",
	"outliers":                 false,
	"iqr_k":                    1.5,
	"scaling":                  "none",
	"split_ratio":              DefaultSplitRatio,
	"horizon":                  DefaultHorizon,
	"min_points":               DefaultMinPoints,
	"max_points":               DefaultMaxPoints,
	"serve_addr":               DefaultServeAddr,
	"deep_learning_min_points": 100,
}

// flagKeys maps persistent CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"api-key":    "fred_api_key",
	"db":         "db_path",
	"format":     "format",
	"log-level":  "log_level",
	"log-format": "log_format",
}

// Keys returns every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is a known configuration key.
func IsKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Load resolves configuration from all sources. flags may be nil; only the
// flags named in flagKeys that the user actually set take precedence.
// dirs overrides the search path for config.json (default: ".", "$HOME/.forecast").
func Load(flags *pflag.FlagSet, dirs ...string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	path := findFile(dirs)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigPath = path
	cfg.v = v
	cfg.flags = flags

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DBPath = filepath.Join(home, ".forecast", "forecast.db")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchDirs returns the default config.json search path.
func SearchDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".forecast"))
	}
	return dirs
}

func findFile(dirs []string) string {
	if len(dirs) == 0 {
		dirs = SearchDirs()
	}
	for _, d := range dirs {
		p, err := filepath.Abs(filepath.Join(d, DefaultConfigFile))
		if err != nil {
			continue
		}
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// Validate rejects out-of-range values with a message naming the key.
func (c *Config) Validate() error {
	var errs []error
	bad := func(key string, val any, want string) {
		errs = append(errs, fmt.Errorf("config %s=%v: must be %s", key, val, want))
	}
	switch c.Format {
	case "table", "json", "jsonl", "csv", "tsv":
	default:
		bad("format", c.Format, "one of table|json|jsonl|csv|tsv")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("log_level", c.LogLevel, "one of debug|info|warn|error")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		bad("log_format", c.LogFormat, "text or json")
	}
	switch c.FillMethod {
	case "linear", "zero", "zero-fill":
	default:
		bad("fill_method", c.FillMethod, "linear or zero")
	}
	switch c.Scaling {
	case "none", "zscore", "standard", "minmax":
	default:
		bad("scaling", c.Scaling, "one of none|zscore|minmax")
	}
	if c.Timeout <= 0 {
		bad("timeout", c.Timeout, "a positive duration")
	}
	if c.Rate <= 0 {
		bad("rate", c.Rate, "positive")
	}
	if c.Retries < 1 {
		bad("retries", c.Retries, "at least 1")
	}
	if c.IQRK <= 0 {
		bad("iqr_k", c.IQRK, "positive")
	}
	if c.SplitRatio < 0.7 || c.SplitRatio > 0.9 {
		bad("split_ratio", c.SplitRatio, "between 0.70 and 0.90")
	}
	if c.Horizon < 1 || c.Horizon > 365 {
		bad("horizon", c.Horizon, "between 1 and 365")
	}
	if c.MinPoints < 2 {
		bad("min_points", c.MinPoints, "at least 2")
	}
	if c.MaxPoints < c.MinPoints {
		bad("max_points", c.MaxPoints, "at least min_points")
	}
	if c.DeepLearningMinPoints < 1 {
		bad("deep_learning_min_points", c.DeepLearningMinPoints, "at least 1")
	}
	return errors.Join(errs...)
}

// RequireAPIKey returns an error if no FRED API key is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return errors.New(
			"FRED API key not found.\n\n" +
				"Set it one of these ways:\n" +
				"  1. CLI flag:        forecast --api-key YOUR_KEY ...\n" +
				"  2. Environment:     export FORECAST_FRED_API_KEY=YOUR_KEY\n" +
				"  3. config.json:     {\"fred_api_key\": \"YOUR_KEY\"}\n\n" +
				"Get a free key at https://fred.stlouisfed.org/docs/api/api_key.html",
		)
	}
	return nil
}

// RedactedAPIKey returns the API key with most characters replaced by asterisks.
// Safe for logging and display.
func (c *Config) RedactedAPIKey() string {
	if len(c.APIKey) <= 4 {
		return "****"
	}
	return c.APIKey[:2] + "****" + c.APIKey[len(c.APIKey)-2:]
}

// Lookup returns the resolved value of key as display text and its source.
func (c *Config) Lookup(key string) (string, Source, error) {
	if !IsKey(key) {
		return "", "", fmt.Errorf("unknown config key %q", key)
	}
	val := fmt.Sprint(c.v.Get(key))
	switch key {
	case "fred_api_key":
		if c.APIKey != "" {
			val = c.RedactedAPIKey()
		}
	case "db_path":
		val = c.DBPath
	}
	return val, c.source(key), nil
}

func (c *Config) source(key string) Source {
	if c.flags != nil {
		for name, k := range flagKeys {
			if k == key {
				if f := c.flags.Lookup(name); f != nil && f.Changed {
					return SourceFlag
				}
			}
		}
	}
	if _, ok := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(key)); ok {
		return SourceEnv
	}
	if c.v.InConfig(key) {
		return SourceFile
	}
	return SourceDefault
}

// ─── File editing ─────────────────────────────────────────────────────────────

// Template returns the key/value map written by `forecast config init`.
func Template() map[string]any {
	t := make(map[string]any, len(defaults))
	for k, v := range defaults {
		t[k] = v
	}
	delete(t, "db_path")
	return t
}

// WriteFile serialises m to the given path with owner-only permissions.
func WriteFile(path string, m map[string]any) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

// Set updates one key in the config file at path, creating it when missing.
// The value is stored with the type of the key's default.
func Set(path, key, raw string) error {
	def, ok := defaults[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	var val any = raw
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config %s: %q is not a boolean", key, raw)
		}
		val = b
	case int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config %s: %q is not an integer", key, raw)
		}
		val = n
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("config %s: %q is not a number", key, raw)
		}
		val = f
	}

	m := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("reading %s: %w", path, err)
	}
	m[key] = val
	return WriteFile(path, m)
}
