package config

import "github.com/spf13/viper"

// CacheConfig holds settings for the graph snapshot cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Config holds all runtime configuration for a pulsar invocation.
// Values are populated from .pulsar.yaml, PULSAR_* env vars, and CLI flags.
type Config struct {
	Workspace     string      `mapstructure:"workspace"`
	TelemetryFile string      `mapstructure:"telemetry_file"`
	Verbose       bool        `mapstructure:"verbose"`
	Cache         CacheConfig `mapstructure:"cache"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("workspace", ".")
	viper.SetDefault("telemetry_file", "")
	viper.SetDefault("verbose", false)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dir", ".pulsar/cache")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
