// Package config loads the Fake4Dataverse configuration using Viper.
//
// Everything here is optional: a process that never touches config gets
// calendar-year quarters and the default engine limits. Test setup code
// typically builds a fresh Viper instance, overrides the fiscal section,
// and passes the result to LoadWithViper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the Fake4Dataverse configuration
type Config struct {
	Fiscal FiscalConfig `mapstructure:"fiscal"`
	Engine EngineConfig `mapstructure:"engine"`
}

// FiscalConfig configures the process-wide fiscal calendar.
// The defaults describe a calendar-year quarterly fiscal calendar.
type FiscalConfig struct {
	StartMonth  int    `mapstructure:"start_month"`  // 1-12, month the fiscal year begins (default: 1)
	StartDay    int    `mapstructure:"start_day"`    // 1-31, day the fiscal year begins (default: 1)
	PeriodType  string `mapstructure:"period_type"`  // monthly, quarterly, semiannual, annual (default: quarterly)
	YearDisplay string `mapstructure:"year_display"` // start or end: which calendar year names the fiscal year (default: start)
}

// EngineConfig configures query engine limits
type EngineConfig struct {
	MaxGroupCardinality int `mapstructure:"max_group_cardinality"` // distinct group cap for aggregation (default: 50000)
}

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the configuration, caching the result for subsequent calls
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific TOML file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", configPath, err)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Fiscal calendar defaults: calendar-year quarters
	v.SetDefault("fiscal.start_month", 1)
	v.SetDefault("fiscal.start_day", 1)
	v.SetDefault("fiscal.period_type", "quarterly")
	v.SetDefault("fiscal.year_display", "start")

	// Engine defaults
	v.SetDefault("engine.max_group_cardinality", 50_000)
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetConfigName("fake4dataverse")
	v.SetConfigType("toml")

	// Search the working directory, then the user config directory
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "fake4dataverse"))
	}

	v.SetEnvPrefix("F4D")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// A missing config file is fine; defaults apply
	_ = v.ReadInConfig()

	viperInstance = v
	return v
}
