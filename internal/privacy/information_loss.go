package privacy

import (
	"fmt"
	"sort"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

// LossBreakdown separates the two additive terms of the objective.
type LossBreakdown struct {
	// CellLoss sums, per cell, the width of the cell's bin relative to the
	// column's full bin range.
	CellLoss float64 `json:"cell_loss"`
	// EquivalenceLoss counts unordered row pairs that are identical across
	// the evaluated columns.
	EquivalenceLoss float64 `json:"equivalence_loss"`
	Total           float64 `json:"total"`
}

// LossEvaluator computes the information-loss objective of a bin
// assignment. Lower is better; values are only comparable for the same
// table and columns.
type LossEvaluator struct {
	basis string
}

// NewLossEvaluator creates an evaluator. basis selects which values the
// row-equivalence term compares: constants.EquivalenceRaw (default) or
// constants.EquivalenceGeneralized.
func NewLossEvaluator(basis string) *LossEvaluator {
	if basis != constants.EquivalenceGeneralized {
		basis = constants.EquivalenceRaw
	}
	return &LossEvaluator{basis: basis}
}

// Basis returns the row-equivalence basis in use.
func (e *LossEvaluator) Basis() string { return e.basis }

// ObjectiveLoss evaluates assignment against the raw values of t using the
// raw row-equivalence basis.
func ObjectiveLoss(t *table.Table, columns []string, assignment BinAssignment) (float64, error) {
	breakdown, err := NewLossEvaluator(constants.EquivalenceRaw).Evaluate(t, columns, assignment)
	if err != nil {
		return 0, err
	}
	return breakdown.Total, nil
}

// Evaluate computes both loss terms. A raw value outside its column's
// boundaries is a range error naming the value and column.
func (e *LossEvaluator) Evaluate(t *table.Table, columns []string, assignment BinAssignment) (LossBreakdown, error) {
	var breakdown LossBreakdown

	for _, column := range columns {
		values, err := t.Numeric(column)
		if err != nil {
			return LossBreakdown{}, err
		}
		bins, ok := assignment[column]
		if !ok || bins.Count() < 1 {
			return LossBreakdown{}, errors.NewValidationError(errors.CodeInvalidInput, "no bins assigned to column").
				WithDetails(fmt.Sprintf("column %q has no bin boundaries", column)).
				WithContext("column", column)
		}

		loss, err := cellLoss(column, values, bins)
		if err != nil {
			return LossBreakdown{}, err
		}
		breakdown.CellLoss += loss
	}

	equivalence, err := e.equivalenceLoss(t, columns, assignment)
	if err != nil {
		return LossBreakdown{}, err
	}
	breakdown.EquivalenceLoss = equivalence
	breakdown.Total = breakdown.CellLoss + breakdown.EquivalenceLoss
	return breakdown, nil
}

func cellLoss(column string, values []float64, bins Bins) (float64, error) {
	lower, upper := bins.Lower(), bins.Upper()
	span := upper - lower

	total := 0.0
	for _, v := range values {
		if v < lower || v > upper {
			return 0, errors.NewRangeError(errors.CodeValueOutOfBin, column, "value out of range for bins").
				WithDetails(fmt.Sprintf("value '%s' in column '%s' is out of range for bins", table.FormatNumber(v), column)).
				WithContext("value", v)
		}
		// Index of the last boundary <= v; the upper boundary itself is
		// charged to the last interval.
		i := sort.SearchFloat64s(bins, v)
		if i == len(bins) || bins[i] != v {
			i--
		}
		if i >= bins.Count() {
			i = bins.Count() - 1
		}
		total += (bins[i+1] - bins[i]) / span
	}
	return total, nil
}

// equivalenceLoss counts identical row pairs with the closed form
// sum s*(s-1)/2 over equal-value groups.
func (e *LossEvaluator) equivalenceLoss(t *table.Table, columns []string, assignment BinAssignment) (float64, error) {
	if len(columns) == 0 {
		return 0, nil
	}

	source := t
	if e.basis == constants.EquivalenceGeneralized {
		subset := make(BinAssignment, len(columns))
		for _, column := range columns {
			subset[column] = assignment[column]
		}
		generalized, err := GeneralizeTable(t, subset)
		if err != nil {
			return 0, err
		}
		source = generalized
	}

	grouped, err := GroupAndCount(source, columns)
	if err != nil {
		return 0, err
	}

	pairs := 0.0
	for _, s := range grouped.Counts {
		pairs += float64(s) * float64(s-1) / 2
	}
	return pairs, nil
}
