package seeder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModeIngest = "ingest"
	ModeCreate = "create"
)

// Config represents the complete seeder configuration
type Config struct {
	Version  string         `mapstructure:"version" yaml:"version"`
	Defaults DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`
}

// DefaultsConfig holds default seeder settings
type DefaultsConfig struct {
	Mode       string        `mapstructure:"mode" yaml:"mode"`
	Count      int           `mapstructure:"count" yaml:"count"`
	TimeSpread time.Duration `mapstructure:"time_spread" yaml:"time_spread"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
	// InvalidRatio is the share of create requests generated to fail
	// validation, in [0, 1].
	InvalidRatio float64  `mapstructure:"invalid_ratio" yaml:"invalid_ratio"`
	Severities   []string `mapstructure:"severities" yaml:"severities"`
	Seed         int64    `mapstructure:"seed" yaml:"seed"`
}

// LoadConfig loads configuration with cascade: flags > ./seeder.yaml > ~/.anomctl/seeder.yaml > defaults
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("seeder")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SEEDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".anomctl"))
		}
	}

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "1.0")

	v.SetDefault("defaults.mode", ModeIngest)
	v.SetDefault("defaults.count", 100)
	v.SetDefault("defaults.time_spread", 24*time.Hour)
	v.SetDefault("defaults.interval", 0)
	v.SetDefault("defaults.invalid_ratio", 0.0)
	v.SetDefault("defaults.severities", []string{"low", "medium", "high", "critical"})
	v.SetDefault("defaults.seed", 0)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Defaults.Mode {
	case ModeIngest, ModeCreate:
	default:
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeIngest, ModeCreate, c.Defaults.Mode))
	}
	if c.Defaults.Count <= 0 {
		errs = append(errs, errors.New("count must be positive"))
	}
	if c.Defaults.InvalidRatio < 0 || c.Defaults.InvalidRatio > 1 {
		errs = append(errs, fmt.Errorf("invalid_ratio must be within [0, 1], got %v", c.Defaults.InvalidRatio))
	}
	if len(c.Defaults.Severities) == 0 {
		errs = append(errs, errors.New("at least one severity is required"))
	}
	if c.Defaults.TimeSpread < 0 || c.Defaults.Interval < 0 {
		errs = append(errs, errors.New("time_spread and interval must not be negative"))
	}

	return errors.Join(errs...)
}
