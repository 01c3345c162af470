package export

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/pkg/errors"
)

// ExportEngine dispatches datasets to format-specific exporters.
type ExportEngine struct {
	logger    *logrus.Logger
	config    *ExportConfig
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// ExportConfig configures the export engine
type ExportConfig struct {
	OutputDirectory  string `json:"output_directory" mapstructure:"output_directory"`
	CompressionLevel int    `json:"compression_level" mapstructure:"compression_level"`
}

// ExportFormat defines supported export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// Dataset is anything with a header and string rows: a generalized table or
// a grouped table.
type Dataset interface {
	Header() []string
	Rows() [][]string
}

// ExportOptions contains export-specific options
type ExportOptions struct {
	IncludeHeaders bool        `json:"include_headers"`
	CSVOptions     CSVOptions  `json:"csv_options,omitempty"`
	JSONOptions    JSONOptions `json:"json_options,omitempty"`
}

// DefaultExportOptions writes headers with the default delimiter.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{IncludeHeaders: true}
}

type CSVOptions struct {
	Delimiter  string `json:"delimiter"`
	LineEnding string `json:"line_ending"`
}

type JSONOptions struct {
	Pretty bool `json:"pretty"`
}

// Exporter interface for format-specific exporters
type Exporter interface {
	Name() string
	SupportedFormats() []ExportFormat
	Export(ctx context.Context, writer io.Writer, data Dataset, options ExportOptions) error
	ValidateOptions(options ExportOptions) error
}

// NewExportEngine creates a new export engine with the CSV and JSON
// exporters registered.
func NewExportEngine(config *ExportConfig, logger *logrus.Logger) (*ExportEngine, error) {
	if config == nil {
		config = getDefaultExportConfig()
	}

	if logger == nil {
		logger = logrus.New()
	}

	engine := &ExportEngine{
		logger:    logger,
		config:    config,
		exporters: make(map[string]Exporter),
	}

	engine.registerDefaultExporters()

	return engine, nil
}

// RegisterExporter registers a custom exporter
func (ee *ExportEngine) RegisterExporter(exporter Exporter) {
	ee.mu.Lock()
	defer ee.mu.Unlock()

	ee.exporters[exporter.Name()] = exporter
	ee.logger.WithField("exporter", exporter.Name()).Debug("Registered exporter")
}

// ParseFormat maps a user-supplied format name to an ExportFormat.
func ParseFormat(name string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(name))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", errors.NewValidationError(errors.CodeInvalidFormat, "unsupported export format").
			WithDetails(fmt.Sprintf("format %q is not one of csv, json", name))
	}
}

// Export writes data in the given format to writer.
func (ee *ExportEngine) Export(ctx context.Context, data Dataset, format ExportFormat, writer io.Writer, options ExportOptions) error {
	ee.mu.RLock()
	exporter, exists := ee.findExporterForFormat(format)
	ee.mu.RUnlock()

	if !exists {
		return errors.NewValidationError(errors.CodeInvalidFormat, "unsupported export format").
			WithDetails(fmt.Sprintf("no exporter found for format %s", format))
	}

	if err := exporter.ValidateOptions(options); err != nil {
		return fmt.Errorf("invalid export options: %w", err)
	}

	start := time.Now()
	err := exporter.Export(ctx, writer, data, options)

	ee.logger.WithFields(logrus.Fields{
		"format":   format,
		"rows":     len(data.Rows()),
		"duration": time.Since(start),
	}).Debug("Export completed")

	return err
}

// ExportToFile writes data to path, creating parent directories. A
// relative path is resolved against the configured output directory and a
// ".gz" suffix gzip-compresses the output.
func (ee *ExportEngine) ExportToFile(ctx context.Context, data Dataset, format ExportFormat, path string, options ExportOptions) error {
	if !filepath.IsAbs(path) && ee.config.OutputDirectory != "" {
		path = filepath.Join(ee.config.OutputDirectory, path)
	}

	file, err := ee.createOutputFile(path)
	if err != nil {
		return err
	}

	if err := ee.Export(ctx, data, format, file, options); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	ee.logger.WithFields(logrus.Fields{
		"path":   path,
		"format": format,
	}).Info("Wrote export")
	return nil
}

// GetSupportedFormats returns all supported export formats, sorted.
func (ee *ExportEngine) GetSupportedFormats() []ExportFormat {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	formats := make(map[ExportFormat]bool)
	for _, exporter := range ee.exporters {
		for _, format := range exporter.SupportedFormats() {
			formats[format] = true
		}
	}

	result := make([]ExportFormat, 0, len(formats))
	for format := range formats {
		result = append(result, format)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	return result
}

// Helper methods

func (ee *ExportEngine) findExporterForFormat(format ExportFormat) (Exporter, bool) {
	for _, exporter := range ee.exporters {
		for _, supportedFormat := range exporter.SupportedFormats() {
			if supportedFormat == format {
				return exporter, true
			}
		}
	}
	return nil, false
}

func (ee *ExportEngine) createOutputFile(path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".gz" {
		gz, err := gzip.NewWriterLevel(file, ee.config.CompressionLevel)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("invalid compression level %d: %w", ee.config.CompressionLevel, err)
		}
		return &gzipWriter{file: file, gzWriter: gz}, nil
	}
	return file, nil
}

// gzipWriter wraps gzip writer with file
type gzipWriter struct {
	file     *os.File
	gzWriter *gzip.Writer
}

func (gw *gzipWriter) Write(p []byte) (int, error) {
	return gw.gzWriter.Write(p)
}

func (gw *gzipWriter) Close() error {
	if err := gw.gzWriter.Close(); err != nil {
		gw.file.Close()
		return err
	}
	return gw.file.Close()
}

func (ee *ExportEngine) registerDefaultExporters() {
	ee.RegisterExporter(&CSVExporter{})
	ee.RegisterExporter(&JSONExporter{})
}

func getDefaultExportConfig() *ExportConfig {
	return &ExportConfig{
		CompressionLevel: gzip.DefaultCompression,
	}
}
