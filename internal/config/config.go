// Package config provides configuration loading and validation for the
// pytrace CLI. Flags override config values, which override defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidFormat   = errors.New("invalid output format")
	ErrInvalidMaxDepth = errors.New("max depth must not be negative")
)

// Output formats accepted by the CLI.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds all configuration for the pytrace CLI.
type Config struct {
	// Interpreter is the Python binary probed for search paths.
	Interpreter string `mapstructure:"interpreter"`

	// Ignore holds default glob patterns excluded from every trace.
	Ignore []string `mapstructure:"ignore"`

	IncludeStdlib       bool `mapstructure:"include_stdlib"`
	IncludeSitePackages bool `mapstructure:"include_site_packages"`
	FollowDynamic       bool `mapstructure:"follow_dynamic"`

	// MaxDepth bounds trace recursion. Zero means unlimited.
	MaxDepth int `mapstructure:"max_depth"`

	Output OutputConfig `mapstructure:"output"`
}

// OutputConfig holds output-specific configuration.
type OutputConfig struct {
	Format      string `mapstructure:"format"`
	Relative    bool   `mapstructure:"relative"`
	ShowReasons bool   `mapstructure:"show_reasons"`
	NoColor     bool   `mapstructure:"no_color"`
}

// Load reads configuration from an optional file and PYTRACE_* environment
// variables. An absent config file is fine; defaults apply.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("pytrace")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.config/pytrace")
	}

	viperCfg.SetEnvPrefix("PYTRACE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("interpreter", "python3")
	viperCfg.SetDefault("ignore", []string{})
	viperCfg.SetDefault("include_stdlib", false)
	viperCfg.SetDefault("include_site_packages", true)
	viperCfg.SetDefault("follow_dynamic", false)
	viperCfg.SetDefault("max_depth", 0)

	viperCfg.SetDefault("output.format", FormatText)
	viperCfg.SetDefault("output.relative", false)
	viperCfg.SetDefault("output.show_reasons", false)
	viperCfg.SetDefault("output.no_color", false)
}

func validateConfig(config *Config) error {
	switch config.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, config.Output.Format)
	}

	if config.MaxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDepth, config.MaxDepth)
	}

	return nil
}
