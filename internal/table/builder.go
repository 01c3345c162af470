package table

import (
	"fmt"

	"github.com/inferloop/kano/pkg/errors"
)

// Builder assembles a table from raw string cells, inferring or enforcing a
// Kind per column. Validation happens once, in Build.
type Builder struct {
	header []string
	cells  [][]string
	kinds  map[string]Kind
}

// NewBuilder starts a table with the given header.
func NewBuilder(header []string) *Builder {
	h := make([]string, len(header))
	copy(h, header)
	cells := make([][]string, len(h))
	return &Builder{header: h, cells: cells, kinds: make(map[string]Kind)}
}

// Declare forces the kind of a column instead of inferring it.
func (b *Builder) Declare(column string, kind Kind) *Builder {
	b.kinds[column] = kind
	return b
}

// Append adds one row. Rows shorter than the header are padded with empty
// cells; longer rows are an error.
func (b *Builder) Append(row []string) error {
	if len(row) > len(b.header) {
		return errors.NewSchemaError(errors.CodeColumnLength, "", "row has more fields than the header").
			WithDetails(fmt.Sprintf("row %d has %d fields, header has %d", b.Len(), len(row), len(b.header)))
	}
	for i := range b.header {
		value := ""
		if i < len(row) {
			value = row[i]
		}
		b.cells[i] = append(b.cells[i], value)
	}
	return nil
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int {
	if len(b.cells) == 0 {
		return 0
	}
	return len(b.cells[0])
}

// Build validates the cells and produces the table. A column declared
// numeric that holds an unparseable value is a schema error naming the
// column, row and value.
func (b *Builder) Build() (*Table, error) {
	for column := range b.kinds {
		if indexOf(b.header, column) < 0 {
			return nil, MissingColumnError(column)
		}
	}

	columns := make([]*Column, 0, len(b.header))
	for i, name := range b.header {
		values := b.cells[i]
		kind, declared := b.kinds[name]
		if !declared {
			kind = inferKind(values)
		}

		if kind != KindNumeric {
			columns = append(columns, NewStringColumn(name, kind, values))
			continue
		}

		numbers := make([]float64, len(values))
		for row, s := range values {
			v, ok := ParseNumber(s)
			if !ok {
				return nil, errors.NewSchemaError(errors.CodeNonNumeric, name, "column is not numeric").
					WithDetails(fmt.Sprintf("column %q contains non-numeric value %q at row %d", name, s, row)).
					WithContext("value", s).
					WithContext("row", row)
			}
			numbers[row] = v
		}
		columns = append(columns, NewNumericColumn(name, numbers))
	}
	return New(columns...)
}

// FromRecords builds a table from a list of records, the shape produced by
// header-aware CSV parsers. Column order follows header.
func FromRecords(header []string, records []map[string]string) (*Table, error) {
	b := NewBuilder(header)
	for _, record := range records {
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = record[name]
		}
		if err := b.Append(row); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// inferKind treats a column as numeric when it is non-empty and every value
// parses as a number.
func inferKind(values []string) Kind {
	if len(values) == 0 {
		return KindCategorical
	}
	for _, s := range values {
		if _, ok := ParseNumber(s); !ok {
			return KindCategorical
		}
	}
	return KindNumeric
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
