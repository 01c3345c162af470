package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// CSVExporter writes datasets as CSV with every field quoted. The output
// reads back with encoding/csv.
type CSVExporter struct{}

// Name returns the exporter name
func (ce *CSVExporter) Name() string {
	return "csv"
}

// SupportedFormats returns supported formats
func (ce *CSVExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV}
}

// Export writes the header (when enabled) followed by one record per row.
func (ce *CSVExporter) Export(ctx context.Context, writer io.Writer, data Dataset, options ExportOptions) error {
	csvOptions := options.CSVOptions
	if csvOptions.Delimiter == "" {
		csvOptions.Delimiter = ","
	}
	if csvOptions.LineEnding == "" {
		csvOptions.LineEnding = "\n"
	}

	w := bufio.NewWriter(writer)

	if options.IncludeHeaders {
		if err := writeQuotedRecord(w, data.Header(), csvOptions); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for i, row := range data.Rows() {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if err := writeQuotedRecord(w, row, csvOptions); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	return w.Flush()
}

// ValidateOptions validates CSV export options
func (ce *CSVExporter) ValidateOptions(options ExportOptions) error {
	d := options.CSVOptions.Delimiter
	if d != "" && (len(d) != 1 || d == "\"" || d == "\r" || d == "\n") {
		return fmt.Errorf("CSV delimiter must be a single character other than a quote or line break")
	}
	switch options.CSVOptions.LineEnding {
	case "", "\n", "\r\n":
		return nil
	default:
		return fmt.Errorf("CSV line ending must be \\n or \\r\\n")
	}
}

func writeQuotedRecord(w *bufio.Writer, fields []string, options CSVOptions) error {
	for i, field := range fields {
		if i > 0 {
			if _, err := w.WriteString(options.Delimiter); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quoteField(field)); err != nil {
			return err
		}
	}
	_, err := w.WriteString(options.LineEnding)
	return err
}

// quoteField wraps field in double quotes, doubling embedded quotes.
func quoteField(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
