package privacy

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/internal/table"
)

// Coordination is the outcome of a multi-column search.
type Coordination struct {
	// Assignment is the last jointly k-anonymous assignment found, or the
	// one-bin assignment when none was.
	Assignment BinAssignment `json:"assignment"`
	// BinCounts records the requested bin count behind each column's bins.
	BinCounts map[string]int `json:"bin_counts"`
	// Candidates holds each column's single-column search result.
	Candidates map[string][]int `json:"candidates"`
	// Satisfied reports whether Assignment is jointly k-anonymous.
	Satisfied bool `json:"satisfied"`

	SearchSteps int `json:"search_steps"`
	JointChecks int `json:"joint_checks"`
}

// Coordinator combines per-column candidate sequences into one assignment
// that is k-anonymous across all columns. Columns are refined one at a
// time, in input order; each refinement is installed, checked jointly and
// either committed or rolled back to the last jointly valid assignment.
type Coordinator struct {
	searcher *BinSearcher
	logger   *logrus.Logger
}

// NewCoordinator creates a coordinator using config for the per-column
// searches.
func NewCoordinator(config SearchConfig, logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Coordinator{
		searcher: NewBinSearcher(config, logger),
		logger:   logger,
	}
}

// Coordinate runs a doubling search with the given step cap.
func Coordinate(ctx context.Context, t *table.Table, columns []string, maxSteps, k int) (*Coordination, error) {
	return NewCoordinator(SearchConfig{MaxSteps: maxSteps}, nil).Coordinate(ctx, t, columns, k)
}

// Coordinate searches for a bin assignment over columns. Schema errors and
// failures to build the initial one-bin boundaries abort the search; running
// out of candidates does not.
func (c *Coordinator) Coordinate(ctx context.Context, t *table.Table, columns []string, k int) (*Coordination, error) {
	values := make(map[string][]float64, len(columns))
	for _, column := range columns {
		v, err := t.Numeric(column)
		if err != nil {
			return nil, err
		}
		values[column] = v
	}

	result := &Coordination{
		BinCounts:  make(map[string]int, len(columns)),
		Candidates: make(map[string][]int, len(columns)),
	}

	working := make(BinAssignment, len(columns))
	for _, column := range columns {
		candidates, steps := c.searcher.candidatesFromValues(column, values[column], k)
		result.Candidates[column] = candidates
		result.SearchSteps += steps

		bins, err := MakeBinsFromValues(column, values[column], 1)
		if err != nil {
			return nil, err
		}
		working[column] = bins
		result.BinCounts[column] = 1
	}

	lastGood := working.Clone()
	satisfied, err := c.jointlySatisfies(t, columns, working, k)
	if err != nil {
		return nil, err
	}
	result.JointChecks++

	for _, column := range columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := c.logger.WithField("column", column)
		for _, numBins := range result.Candidates[column] {
			if numBins <= result.BinCounts[column] {
				continue
			}

			bins, err := MakeBinsFromValues(column, values[column], numBins)
			if err != nil {
				log.WithError(err).Debug("Candidate bins could not be rebuilt")
				break
			}
			working[column] = bins

			ok, err := c.jointlySatisfies(t, columns, working, k)
			if err != nil {
				return nil, err
			}
			result.JointChecks++

			if !ok {
				log.WithField("bins", numBins).Debug("Joint k-anonymity lost, rolling back")
				working = lastGood.Clone()
				break
			}

			lastGood = working.Clone()
			result.BinCounts[column] = numBins
			satisfied = true
			log.WithField("bins", numBins).Debug("Committed refinement")
		}
	}

	result.Assignment = lastGood
	result.Satisfied = satisfied

	c.logger.WithFields(logrus.Fields{
		"columns":      columns,
		"bin_counts":   result.BinCounts,
		"satisfied":    result.Satisfied,
		"joint_checks": result.JointChecks,
	}).Debug("Coordination complete")

	return result, nil
}

func (c *Coordinator) jointlySatisfies(t *table.Table, columns []string, assignment BinAssignment, k int) (bool, error) {
	generalized, err := GeneralizeTable(t, assignment)
	if err != nil {
		return false, err
	}
	return SatisfiesK(generalized, columns, k)
}
