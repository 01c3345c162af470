package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/inferloop/kano/internal/server"
	"github.com/inferloop/kano/pkg/constants"
)

type Config struct {
	Port        int
	Host        string
	ConfigFile  string
	LogLevel    string
	LogFormat   string
	MetricsPort int
	MaxBodySize int64
	EnableCORS  bool
	TLSCert     string
	TLSKey      string
	Version     bool

	// set records which flags were given explicitly.
	set map[string]bool
}

func ParseFlags() *Config {
	config := &Config{set: make(map[string]bool)}

	flag.IntVar(&config.Port, "port", constants.DefaultPort, "Server port")
	flag.StringVar(&config.Host, "host", constants.DefaultHost, "Server host")
	flag.StringVar(&config.ConfigFile, "config", "", "Path to configuration file")
	flag.StringVar(&config.LogLevel, "log-level", constants.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&config.LogFormat, "log-format", constants.DefaultLogFormat, "Log format (json, text)")
	flag.IntVar(&config.MetricsPort, "metrics-port", constants.DefaultMetricsPort, "Prometheus metrics port (0 disables the metrics server)")
	flag.Int64Var(&config.MaxBodySize, "max-body-size", constants.MaxUploadSize, "Maximum request body size in bytes")
	flag.BoolVar(&config.EnableCORS, "enable-cors", false, "Enable CORS headers")
	flag.StringVar(&config.TLSCert, "tls-cert", "", "Path to TLS certificate")
	flag.StringVar(&config.TLSKey, "tls-key", "", "Path to TLS key")
	flag.BoolVar(&config.Version, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nk-anonymity bin generalization server\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) { config.set[f.Name] = true })

	if config.Version {
		info := GetBuildInfo()
		fmt.Printf("Version: %s\n", info.Version)
		fmt.Printf("Git Commit: %s\n", info.GitCommit)
		fmt.Printf("Build Date: %s\n", info.BuildDate)
		fmt.Printf("Go Version: %s\n", info.GoVersion)
		fmt.Printf("Platform: %s\n", info.Platform)
		os.Exit(0)
	}

	return config
}

// ServerConfig merges defaults, the optional config file, KANO_* environment
// variables and explicitly set flags, in increasing precedence.
func (c *Config) ServerConfig() (*server.Config, error) {
	v := viper.New()
	defaults := server.DefaultConfig()

	v.SetDefault("host", defaults.Host)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("metrics_port", defaults.MetricsPort)
	v.SetDefault("read_timeout", defaults.ReadTimeout)
	v.SetDefault("write_timeout", defaults.WriteTimeout)
	v.SetDefault("idle_timeout", defaults.IdleTimeout)
	v.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)
	v.SetDefault("enable_metrics", defaults.EnableMetrics)
	v.SetDefault("enable_cors", defaults.EnableCORS)
	v.SetDefault("max_request_size", defaults.MaxRequestSize)
	v.SetDefault("max_steps_limit", defaults.MaxStepsLimit)
	v.SetDefault("anonymization.k", defaults.Anonymization.K)
	v.SetDefault("anonymization.search.max_steps", defaults.Anonymization.Search.MaxSteps)
	v.SetDefault("anonymization.search.growth", defaults.Anonymization.Search.Growth)
	v.SetDefault("anonymization.search.max_bins", defaults.Anonymization.Search.MaxBins)
	v.SetDefault("anonymization.equivalence_basis", defaults.Anonymization.EquivalenceBasis)

	v.SetEnvPrefix(strings.ToUpper(constants.AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", c.ConfigFile, err)
		}
	}

	config := &server.Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode server config: %w", err)
	}

	if c.set["host"] {
		config.Host = c.Host
	}
	if c.set["port"] {
		config.Port = c.Port
	}
	if c.set["metrics-port"] {
		config.MetricsPort = c.MetricsPort
		config.EnableMetrics = c.MetricsPort > 0
	}
	if c.set["max-body-size"] {
		config.MaxRequestSize = c.MaxBodySize
	}
	if c.set["enable-cors"] {
		config.EnableCORS = c.EnableCORS
	}
	if c.set["tls-cert"] {
		config.TLSCertFile = c.TLSCert
	}
	if c.set["tls-key"] {
		config.TLSKeyFile = c.TLSKey
	}

	return config, nil
}
