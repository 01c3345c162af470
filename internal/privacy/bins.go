package privacy

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/errors"
)

// Bins is a strictly ascending boundary sequence b0 < b1 < ... < bn that
// defines the half-open intervals [b_i, b_{i+1}).
type Bins []float64

// Count returns the number of intervals.
func (b Bins) Count() int {
	if len(b) < 2 {
		return 0
	}
	return len(b) - 1
}

// Lower returns the first boundary.
func (b Bins) Lower() float64 { return b[0] }

// Upper returns the last boundary.
func (b Bins) Upper() float64 { return b[len(b)-1] }

// Clone returns an independent copy.
func (b Bins) Clone() Bins {
	if b == nil {
		return nil
	}
	c := make(Bins, len(b))
	copy(c, b)
	return c
}

// BinAssignment maps each generalized column to its boundaries.
type BinAssignment map[string]Bins

// Clone returns a deep copy; the copy shares no slices with the receiver.
func (a BinAssignment) Clone() BinAssignment {
	c := make(BinAssignment, len(a))
	for column, bins := range a {
		c[column] = bins.Clone()
	}
	return c
}

// Columns returns the assigned column names in sorted order.
func (a BinAssignment) Columns() []string {
	columns := make([]string, 0, len(a))
	for column := range a {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// MakeBins derives numBins equal-width bins covering [min, max+1) of a
// numeric column.
func MakeBins(t *table.Table, column string, numBins int) (Bins, error) {
	values, err := t.Numeric(column)
	if err != nil {
		return nil, err
	}
	return MakeBinsFromValues(column, values, numBins)
}

// MakeBinsFromValues is MakeBins over an already extracted column. The width
// is rounded up so the bins stay integer-aligned when the range does not
// divide evenly; the resulting boundaries are deduplicated, so callers must
// check Count before assuming numBins intervals were produced.
func MakeBinsFromValues(column string, values []float64, numBins int) (Bins, error) {
	if numBins < 1 {
		return nil, errors.NewRangeError(errors.CodeBinCount, column, "bin count must be at least 1").
			WithDetails(fmt.Sprintf("requested %d bins for column %q", numBins, column)).
			WithContext("bins", numBins)
	}
	if len(values) == 0 {
		return nil, errors.NewRangeError(errors.CodeDegenerate, column, "column range too small to form a bin").
			WithDetails(fmt.Sprintf("column %q has no values", column))
	}

	lo := floats.Min(values)
	hi := floats.Max(values) + 1
	span := hi - lo
	if span < 1 {
		return nil, errors.NewRangeError(errors.CodeDegenerate, column, "column range too small to form a bin").
			WithDetails(fmt.Sprintf("column %q spans %v", column, span))
	}

	width := math.Ceil(span / float64(numBins))
	bounds := make([]float64, 0, numBins+1)
	for i := 0; i <= numBins; i++ {
		bounds = append(bounds, lo+width*float64(i))
	}

	bins := dedupeSorted(bounds)
	if len(bins) < 2 {
		return nil, errors.NewRangeError(errors.CodeDegenerate, column, "column range too small to form a bin").
			WithDetails(fmt.Sprintf("column %q collapsed to a single boundary", column))
	}
	return bins, nil
}

// IsSequential reports whether any two adjacent boundaries are exactly one
// apart, i.e. the bins are already as fine as integer values and provide no
// generalization.
func IsSequential(b Bins) bool {
	for i := 0; i+1 < len(b); i++ {
		if b[i+1]-b[i] == 1 {
			return true
		}
	}
	return false
}

func dedupeSorted(values []float64) Bins {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	out := make(Bins, 0, len(sorted))
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}
