package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// JSONExporter writes datasets as a JSON array of records keyed by header.
type JSONExporter struct{}

// Name returns the exporter name
func (je *JSONExporter) Name() string {
	return "json"
}

// SupportedFormats returns supported formats
func (je *JSONExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatJSON}
}

// Export writes one object per row.
func (je *JSONExporter) Export(ctx context.Context, writer io.Writer, data Dataset, options ExportOptions) error {
	header := data.Header()
	rows := data.Rows()

	records := make([]map[string]string, len(rows))
	for i, row := range rows {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		record := make(map[string]string, len(header))
		for j, name := range header {
			if j < len(row) {
				record[name] = row[j]
			}
		}
		records[i] = record
	}

	return je.ExportValue(writer, records, options)
}

// ExportValue encodes an arbitrary value, such as a full anonymization
// result.
func (je *JSONExporter) ExportValue(writer io.Writer, v interface{}, options ExportOptions) error {
	encoder := json.NewEncoder(writer)
	if options.JSONOptions.Pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ValidateOptions validates JSON export options
func (je *JSONExporter) ValidateOptions(options ExportOptions) error {
	return nil
}
