// Package ingest reads delimited text into typed tables.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/errors"
)

// CSVLoaderOptions configures CSV parsing.
type CSVLoaderOptions struct {
	Delimiter        rune                  `json:"delimiter" mapstructure:"delimiter"`
	TrimLeadingSpace bool                  `json:"trim_leading_space" mapstructure:"trim_leading_space"`
	Kinds            map[string]table.Kind `json:"kinds" mapstructure:"kinds"`
}

// CSVLoader parses CSV with a mandatory header row. Column kinds are
// inferred unless declared in Kinds.
type CSVLoader struct {
	options CSVLoaderOptions
	logger  *logrus.Logger
}

func NewCSVLoader(options CSVLoaderOptions, logger *logrus.Logger) *CSVLoader {
	if options.Delimiter == 0 {
		options.Delimiter = ','
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CSVLoader{options: options, logger: logger}
}

// Load reads the whole of r. Empty lines are skipped; rows shorter than
// the header are padded with empty cells.
func (l *CSVLoader) Load(ctx context.Context, r io.Reader) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = l.options.Delimiter
	reader.TrimLeadingSpace = l.options.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError(errors.CodeHeaderMissing, "", "CSV input has no header row")
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Failed to read CSV")
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	}

	builder := table.NewBuilder(header)
	for column, kind := range l.options.Kinds {
		builder.Declare(column, kind)
	}

	for {
		if builder.Len()%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Failed to read CSV").
				WithDetails(fmt.Sprintf("after %d data rows", builder.Len()))
		}
		if isBlank(record) {
			continue
		}
		if err := builder.Append(record); err != nil {
			return nil, err
		}
	}

	t, err := builder.Build()
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"rows":    t.Len(),
		"columns": len(header),
	}).Debug("Loaded CSV")
	return t, nil
}

// NumericColumns lists the columns of t whose values are all numeric, in
// table order. These are the columns eligible for generalization.
func NumericColumns(t *table.Table) []string {
	var names []string
	for _, name := range t.Columns() {
		if col, ok := t.Column(name); ok && col.Kind() == table.KindNumeric {
			names = append(names, name)
		}
	}
	return names
}

// isBlank reports a record made only of empty fields, such as a line of
// bare delimiters.
func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
