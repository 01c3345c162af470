package privacy

import (
	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

// SweepOptions controls a uniform sweep.
type SweepOptions struct {
	MaxSteps int    `json:"max_steps"`
	MaxBound int    `json:"max_bound"`
	Growth   string `json:"growth"`
}

// SweepStep is one uniform bin count applied to every column.
type SweepStep struct {
	Step         int           `json:"step"`
	NumBins      int           `json:"num_bins"`
	Assignment   BinAssignment `json:"assignment"`
	Loss         float64       `json:"loss"`
	MinGroupSize int           `json:"min_group_size"`
	SatisfiesK   bool          `json:"satisfies_k"`
}

// Sweep applies the same bin count to every column for increasing counts
// and reports loss and group support per step. It is a diagnostic: no
// per-column search or rollback happens. The sweep ends at MaxSteps, when
// the count exceeds MaxBound, or when a column's bins cannot be built.
func Sweep(t *table.Table, columns []string, k int, opts SweepOptions) ([]SweepStep, error) {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = constants.DefaultMaxSteps
	}
	if opts.MaxBound <= 0 {
		opts.MaxBound = constants.DefaultSweepMaxBound
	}
	if opts.Growth == "" {
		opts.Growth = constants.DefaultGrowth
	}
	if err := validateRequest(t, columns, k); err != nil {
		return nil, err
	}

	steps := make([]SweepStep, 0, opts.MaxSteps)
	numBins := 1
	for step := 0; step < opts.MaxSteps && numBins <= opts.MaxBound; step++ {
		assignment, err := uniformAssignment(t, columns, numBins)
		if errors.IsRangeError(err) {
			break
		}
		if err != nil {
			return nil, err
		}

		loss, err := ObjectiveLoss(t, columns, assignment)
		if err != nil {
			return nil, err
		}
		generalized, err := GeneralizeTable(t, assignment)
		if err != nil {
			return nil, err
		}
		grouped, err := GroupAndCount(generalized, columns)
		if err != nil {
			return nil, err
		}

		steps = append(steps, SweepStep{
			Step:         step,
			NumBins:      numBins,
			Assignment:   assignment,
			Loss:         loss,
			MinGroupSize: grouped.MinCount(),
			SatisfiesK:   grouped.MinCount() >= k,
		})

		next := NextBinCount(opts.Growth, numBins)
		if next <= numBins {
			break
		}
		numBins = next
	}
	return steps, nil
}

func uniformAssignment(t *table.Table, columns []string, numBins int) (BinAssignment, error) {
	assignment := make(BinAssignment, len(columns))
	for _, column := range columns {
		bins, err := MakeBins(t, column, numBins)
		if err != nil {
			return nil, err
		}
		assignment[column] = bins
	}
	return assignment, nil
}
