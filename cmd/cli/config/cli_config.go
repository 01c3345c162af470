package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/inferloop/kano/internal/privacy"
	"github.com/inferloop/kano/pkg/constants"
)

type CLIConfig struct {
	LogLevel      string                      `mapstructure:"log_level"`
	LogFormat     string                      `mapstructure:"log_format"`
	DefaultFormat string                      `mapstructure:"default_format"`
	CSV           CSVConfig                   `mapstructure:"csv"`
	Anonymization privacy.AnonymizationConfig `mapstructure:"anonymization"`
}

type CSVConfig struct {
	Delimiter        string `mapstructure:"delimiter"`
	TrimLeadingSpace bool   `mapstructure:"trim_leading_space"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		LogLevel:      constants.LogLevelWarn,
		LogFormat:     constants.LogFormatText,
		DefaultFormat: constants.OutputFormatCSV,
		CSV: CSVConfig{
			Delimiter:        ",",
			TrimLeadingSpace: true,
		},
		Anonymization: privacy.DefaultAnonymizationConfig(),
	}
}

// LoadConfig reads cfgFile, or $HOME/.kano/config.yaml when cfgFile is
// empty, with KANO_* environment overrides. A missing default file is not
// an error.
func LoadConfig(cfgFile string) (*CLIConfig, error) {
	config := DefaultConfig()
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, "."+constants.AppName))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(strings.ToUpper(constants.AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", config.LogLevel)
	v.SetDefault("log_format", config.LogFormat)
	v.SetDefault("default_format", config.DefaultFormat)
	v.SetDefault("csv.delimiter", config.CSV.Delimiter)
	v.SetDefault("csv.trim_leading_space", config.CSV.TrimLeadingSpace)
	v.SetDefault("anonymization.k", config.Anonymization.K)
	v.SetDefault("anonymization.search.max_steps", config.Anonymization.Search.MaxSteps)
	v.SetDefault("anonymization.search.growth", config.Anonymization.Search.Growth)
	v.SetDefault("anonymization.search.max_bins", config.Anonymization.Search.MaxBins)
	v.SetDefault("anonymization.equivalence_basis", config.Anonymization.EquivalenceBasis)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the delimiter and the anonymization defaults.
func (c *CLIConfig) Validate() error {
	if len([]rune(c.CSV.Delimiter)) != 1 {
		return fmt.Errorf("csv.delimiter must be a single character, got %q", c.CSV.Delimiter)
	}
	if c.DefaultFormat != constants.OutputFormatCSV && c.DefaultFormat != constants.OutputFormatJSON {
		return fmt.Errorf("default_format must be csv or json, got %q", c.DefaultFormat)
	}
	return c.Anonymization.Validate()
}

// SaveConfig writes config as YAML to cfgFile, or to the default path.
func SaveConfig(config *CLIConfig, cfgFile string) error {
	if cfgFile == "" {
		cfgFile = GetDefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(cfgFile), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.Set("log_level", config.LogLevel)
	v.Set("log_format", config.LogFormat)
	v.Set("default_format", config.DefaultFormat)
	v.Set("csv.delimiter", config.CSV.Delimiter)
	v.Set("csv.trim_leading_space", config.CSV.TrimLeadingSpace)
	v.Set("anonymization.k", config.Anonymization.K)
	v.Set("anonymization.search.max_steps", config.Anonymization.Search.MaxSteps)
	v.Set("anonymization.search.growth", config.Anonymization.Search.Growth)
	v.Set("anonymization.search.max_bins", config.Anonymization.Search.MaxBins)
	v.Set("anonymization.equivalence_basis", config.Anonymization.EquivalenceBasis)

	return v.WriteConfigAs(cfgFile)
}

func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+constants.AppName, "config.yaml")
}
