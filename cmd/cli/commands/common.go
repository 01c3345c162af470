package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/cmd/cli/config"
	"github.com/inferloop/kano/internal/ingest"
	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
)

// Globals carries the state shared by every subcommand. It is populated by
// the root command before a subcommand runs.
type Globals struct {
	ConfigFile string
	Verbose    bool
	LogLevel   string

	Config *config.CLIConfig
	Logger *logrus.Logger
}

// Load reads the configuration and configures the logger. Flags override
// the configured log level.
func (g *Globals) Load(stderr io.Writer) error {
	cfg, err := config.LoadConfig(g.ConfigFile)
	if err != nil {
		return err
	}
	g.Config = cfg

	level := cfg.LogLevel
	if g.LogLevel != "" {
		level = g.LogLevel
	}
	if g.Verbose {
		level = constants.LogLevelDebug
	}
	g.Logger = newLogger(level, cfg.LogFormat, stderr)
	return nil
}

func newLogger(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.WarnLevel
	}
	logger.SetLevel(logLevel)

	if format == constants.LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// loadTable reads a CSV file, or standard input when path is "-".
func (g *Globals) loadTable(ctx context.Context, path string, stdin io.Reader) (*table.Table, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	loader := ingest.NewCSVLoader(ingest.CSVLoaderOptions{
		Delimiter:        []rune(g.Config.CSV.Delimiter)[0],
		TrimLeadingSpace: g.Config.CSV.TrimLeadingSpace,
	}, g.Logger)

	t, err := loader.Load(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return t, nil
}

func splitColumns(values []string) []string {
	var columns []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if name := strings.TrimSpace(part); name != "" {
				columns = append(columns, name)
			}
		}
	}
	return columns
}
