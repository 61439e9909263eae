// Package config handles configuration loading and validation for CodeCaliper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/imyousuf/codecaliper/internal/input"
	"github.com/imyousuf/codecaliper/internal/report"
	"github.com/imyousuf/codecaliper/internal/store"
)

const (
	// DefaultConfigFile is the default configuration file name (without extension).
	DefaultConfigFile = ".codecaliper"
	// DefaultConfigType is the default configuration file type.
	DefaultConfigType = "yaml"
	// EnvPrefix prefixes environment variable overrides, e.g. CODECALIPER_REPORT_FORMAT.
	EnvPrefix = "CODECALIPER"
)

// Config holds all configuration for CodeCaliper.
type Config struct {
	// Root is the directory to analyze.
	Root string `mapstructure:"root" yaml:"root"`
	// Include lists case-insensitive path regexes; a file must match one.
	Include []string `mapstructure:"include" yaml:"include"`
	// Exclude lists case-insensitive path regexes; a matching file is skipped.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	// Parallelism bounds concurrent transforms per stage; 0 picks a default.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism"`
	// ContinueOnError records failing files instead of aborting the run.
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	// Report controls the report output.
	Report ReportConfig `mapstructure:"report" yaml:"report"`
	// Snapshot controls the optional snapshot export.
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// ReportConfig holds report configuration.
type ReportConfig struct {
	Format        string   `mapstructure:"format" yaml:"format"`
	MinComplexity int      `mapstructure:"min_complexity" yaml:"min_complexity"`
	Top           int      `mapstructure:"top" yaml:"top"`
	Kinds         []string `mapstructure:"kinds" yaml:"kinds,omitempty"`
}

// SnapshotConfig holds snapshot configuration.
type SnapshotConfig struct {
	// Path is the snapshot directory; empty disables the export.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// Default returns the configuration used when no file or override is present.
func Default() *Config {
	return &Config{
		Root:    ".",
		Include: defaultInclude(),
		Exclude: defaultExclude(),
		Report:  ReportConfig{Format: string(report.FormatText)},
	}
}

func defaultInclude() []string { return []string{`\.cs$`, `\.java$`} }

func defaultExclude() []string {
	return []string{`/\.git/`, `/bin/`, `/obj/`, `/target/`, `/build/`}
}

// Load loads configuration from configFile (or .codecaliper.yaml in the
// working directory when empty), environment variables, and defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		// An explicit file must exist.
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigFile)
		v.SetConfigType(DefaultConfigType)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	return &cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must be >= 0, got %d", c.Parallelism)
	}
	if _, err := input.NewMatcher(c.Include, c.Exclude); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return err
	}
	if c.Report.MinComplexity < 0 {
		return fmt.Errorf("report.min_complexity must be >= 0, got %d", c.Report.MinComplexity)
	}
	if c.Report.Top < 0 {
		return fmt.Errorf("report.top must be >= 0, got %d", c.Report.Top)
	}
	if _, err := c.ReportOptions(); err != nil {
		return err
	}
	return nil
}

// ReportOptions converts the report settings into report.Options.
func (c *Config) ReportOptions() (report.Options, error) {
	opts := report.Options{
		MinComplexity: c.Report.MinComplexity,
		Top:           c.Report.Top,
	}
	for _, k := range c.Report.Kinds {
		kind, ok := store.ParseScopeKind(strings.ToLower(strings.TrimSpace(k)))
		if !ok {
			return report.Options{}, fmt.Errorf("report.kinds: unknown scope kind %q (want file, type, function or accessor)", k)
		}
		opts.Kinds = append(opts.Kinds, kind)
	}
	return opts, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root", d.Root)
	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("parallelism", 0)
	v.SetDefault("continue_on_error", false)
	v.SetDefault("report.format", d.Report.Format)
	v.SetDefault("report.min_complexity", 0)
	v.SetDefault("report.top", 0)
	v.SetDefault("report.kinds", []string{})
	v.SetDefault("snapshot.path", "")
}
