// Package table provides the column-oriented store the anonymizer reads and
// produces. Tables and columns are immutable once built; every transform
// returns a new Table.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/inferloop/kano/pkg/errors"
)

// Kind declares how a column's values are stored and interpreted.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindPassthrough Kind = "passthrough"
)

// Column is a named, typed sequence of values. Numeric columns hold
// float64 values, the other kinds hold strings.
type Column struct {
	name    string
	kind    Kind
	numbers []float64
	strings []string
}

// NewNumericColumn copies values into a numeric column.
func NewNumericColumn(name string, values []float64) *Column {
	numbers := make([]float64, len(values))
	copy(numbers, values)
	return &Column{name: name, kind: KindNumeric, numbers: numbers}
}

// NewStringColumn copies values into a categorical or passthrough column.
func NewStringColumn(name string, kind Kind, values []string) *Column {
	if kind == KindNumeric {
		kind = KindCategorical
	}
	strs := make([]string, len(values))
	copy(strs, values)
	return &Column{name: name, kind: kind, strings: strs}
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }

// Len returns the number of values in the column.
func (c *Column) Len() int {
	if c.kind == KindNumeric {
		return len(c.numbers)
	}
	return len(c.strings)
}

// Numbers returns the numeric values. The slice must not be modified.
func (c *Column) Numbers() []float64 { return c.numbers }

// Strings returns the string values of a non-numeric column. The slice
// must not be modified.
func (c *Column) Strings() []string { return c.strings }

// Value returns the string form of the i-th value.
func (c *Column) Value(i int) string {
	if c.kind == KindNumeric {
		return FormatNumber(c.numbers[i])
	}
	return c.strings[i]
}

// firstNonNumeric returns the index and text of the first value that does
// not parse as a number, or -1.
func (c *Column) firstNonNumeric() (int, string) {
	if c.kind == KindNumeric {
		return -1, ""
	}
	for i, s := range c.strings {
		if _, ok := ParseNumber(s); !ok {
			return i, s
		}
	}
	return -1, ""
}

// Table is an ordered set of equal-length columns.
type Table struct {
	order   []string
	columns map[string]*Column
	rows    int
}

// New builds a table from columns, rejecting duplicate names and unequal
// lengths.
func New(columns ...*Column) (*Table, error) {
	t := &Table{
		order:   make([]string, 0, len(columns)),
		columns: make(map[string]*Column, len(columns)),
	}
	for i, col := range columns {
		if _, exists := t.columns[col.name]; exists {
			return nil, errors.NewSchemaError(errors.CodeDuplicateColumn, col.name, "duplicate column").
				WithDetails(fmt.Sprintf("column %q appears more than once", col.name))
		}
		if i == 0 {
			t.rows = col.Len()
		} else if col.Len() != t.rows {
			return nil, errors.NewSchemaError(errors.CodeColumnLength, col.name, "column length mismatch").
				WithDetails(fmt.Sprintf("column %q has %d values, expected %d", col.name, col.Len(), t.rows)).
				WithContext("length", col.Len())
		}
		t.order = append(t.order, col.name)
		t.columns[col.name] = col
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns the column names in declaration order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	col, ok := t.columns[name]
	return col, ok
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Numeric returns the values of a numeric column. A missing column or a
// column holding non-numeric values is a schema error naming the column
// and the first offending value.
func (t *Table) Numeric(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, MissingColumnError(name)
	}
	if col.kind != KindNumeric {
		err := errors.NewSchemaError(errors.CodeNonNumeric, name, "column is not numeric")
		if row, value := col.firstNonNumeric(); row >= 0 {
			return nil, err.
				WithDetails(fmt.Sprintf("column %q contains non-numeric value %q at row %d", name, value, row)).
				WithContext("value", value).
				WithContext("row", row)
		}
		return nil, err.WithDetails(fmt.Sprintf("column %q is declared %s", name, col.kind))
	}
	return col.numbers, nil
}

// WithColumn returns a new table where col replaces the column of the same
// name, or is appended when no such column exists.
func (t *Table) WithColumn(col *Column) (*Table, error) {
	columns := make([]*Column, 0, len(t.order)+1)
	replaced := false
	for _, name := range t.order {
		if name == col.name {
			columns = append(columns, col)
			replaced = true
			continue
		}
		columns = append(columns, t.columns[name])
	}
	if !replaced {
		columns = append(columns, col)
	}
	return New(columns...)
}

// Select returns a table restricted to the named columns, in the given
// order.
func (t *Table) Select(names ...string) (*Table, error) {
	columns := make([]*Column, 0, len(names))
	for _, name := range names {
		col, ok := t.columns[name]
		if !ok {
			return nil, MissingColumnError(name)
		}
		columns = append(columns, col)
	}
	return New(columns...)
}

// Header returns the column names, for export.
func (t *Table) Header() []string { return t.Columns() }

// Rows returns every row as the string form of its values.
func (t *Table) Rows() [][]string {
	rows := make([][]string, t.rows)
	for i := range rows {
		row := make([]string, len(t.order))
		for j, name := range t.order {
			row[j] = t.columns[name].Value(i)
		}
		rows[i] = row
	}
	return rows
}

// Records returns the list-of-records view of the table.
func (t *Table) Records() []map[string]string {
	records := make([]map[string]string, t.rows)
	for i := range records {
		record := make(map[string]string, len(t.order))
		for _, name := range t.order {
			record[name] = t.columns[name].Value(i)
		}
		records[i] = record
	}
	return records
}

// MissingColumnError builds the schema error for an absent column.
func MissingColumnError(name string) *errors.AppError {
	return errors.NewSchemaError(errors.CodeColumnMissing, name, "column not found").
		WithDetails(fmt.Sprintf("column %q does not exist in the table", name))
}

// FormatNumber renders v in its shortest exact decimal form. Negative zero
// renders as "0".
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseNumber parses a trimmed decimal number. Empty strings, NaN and
// infinities are not numbers.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
