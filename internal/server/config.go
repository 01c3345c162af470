package server

import (
	"fmt"
	"time"

	"github.com/inferloop/kano/internal/privacy"
	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

// Config contains server configuration
type Config struct {
	Host            string        `yaml:"host" json:"host" mapstructure:"host"`
	Port            int           `yaml:"port" json:"port" mapstructure:"port"`
	MetricsPort     int           `yaml:"metrics_port" json:"metrics_port" mapstructure:"metrics_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	EnableMetrics   bool          `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	EnableCORS      bool          `yaml:"enable_cors" json:"enable_cors" mapstructure:"enable_cors"`
	MaxRequestSize  int64         `yaml:"max_request_size" json:"max_request_size" mapstructure:"max_request_size"`
	MaxStepsLimit   int           `yaml:"max_steps_limit" json:"max_steps_limit" mapstructure:"max_steps_limit"`
	TLSCertFile     string        `yaml:"tls_cert_file,omitempty" json:"tls_cert_file,omitempty" mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `yaml:"tls_key_file,omitempty" json:"tls_key_file,omitempty" mapstructure:"tls_key_file"`

	// Anonymization holds the defaults applied when a request omits k or
	// max_steps.
	Anonymization privacy.AnonymizationConfig `yaml:"anonymization" json:"anonymization" mapstructure:"anonymization"`
}

// Validate checks ports, limits and the anonymization defaults.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NewAppError(errors.ErrorTypeConfiguration, errors.CodeInvalidInput, "invalid port").
			WithDetails(fmt.Sprintf("port %d is out of range", c.Port))
	}
	if c.EnableMetrics && (c.MetricsPort <= 0 || c.MetricsPort > 65535 || c.MetricsPort == c.Port) {
		return errors.NewAppError(errors.ErrorTypeConfiguration, errors.CodeInvalidInput, "invalid metrics port").
			WithDetails(fmt.Sprintf("metrics port %d must be in range and differ from port %d", c.MetricsPort, c.Port))
	}
	if c.MaxRequestSize <= 0 {
		return errors.NewAppError(errors.ErrorTypeConfiguration, errors.CodeInvalidInput, "max request size must be positive")
	}
	if c.MaxStepsLimit < c.Anonymization.Search.MaxSteps {
		return errors.NewAppError(errors.ErrorTypeConfiguration, errors.CodeInvalidMaxSteps, "max steps limit below the default max steps").
			WithDetails(fmt.Sprintf("limit %d, default %d", c.MaxStepsLimit, c.Anonymization.Search.MaxSteps))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.NewAppError(errors.ErrorTypeConfiguration, errors.CodeInvalidInput, "TLS needs both a certificate and a key")
	}
	return c.Anonymization.Validate()
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            constants.DefaultHost,
		Port:            constants.DefaultPort,
		MetricsPort:     constants.DefaultMetricsPort,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		IdleTimeout:     constants.DefaultIdleTimeout,
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		EnableMetrics:   true,
		EnableCORS:      false,
		MaxRequestSize:  constants.MaxUploadSize,
		MaxStepsLimit:   constants.DefaultMaxStepsLimit,
		Anonymization:   privacy.DefaultAnonymizationConfig(),
	}
}
