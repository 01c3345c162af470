package privacy

import (
	"sort"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
)

// Label returns the display label of interval i, "{b_i}-{b_{i+1}-1}".
func (b Bins) Label(i int) string {
	return table.FormatNumber(b[i]) + "-" + table.FormatNumber(b[i+1]-1)
}

// Generalize maps each value to the label of the first interval containing
// it. Values outside every interval get constants.OutOfRangeLabel. Labels
// are built only for intervals that hold a value.
func Generalize(values []float64, bins Bins) []string {
	labels := make(map[int]string)

	out := make([]string, len(values))
	for i, v := range values {
		j := bins.index(v)
		if j < 0 {
			out[i] = constants.OutOfRangeLabel
			continue
		}
		label, ok := labels[j]
		if !ok {
			label = bins.Label(j)
			labels[j] = label
		}
		out[i] = label
	}
	return out
}

// index returns the interval [b_j, b_j+1) holding v, or -1.
func (b Bins) index(v float64) int {
	if len(b) < 2 || v < b[0] || !(v < b[len(b)-1]) {
		return -1
	}
	j := sort.SearchFloat64s(b, v)
	if j == len(b) || b[j] != v {
		j--
	}
	return j
}

// GeneralizeTable returns a copy of t in which every column of assignment is
// replaced by its categorical labels. Other columns are carried over as is.
func GeneralizeTable(t *table.Table, assignment BinAssignment) (*table.Table, error) {
	result := t
	for _, column := range assignment.Columns() {
		values, err := t.Numeric(column)
		if err != nil {
			return nil, err
		}
		labels := Generalize(values, assignment[column])
		result, err = result.WithColumn(table.NewStringColumn(column, table.KindCategorical, labels))
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
