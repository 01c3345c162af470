package privacy

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

// SearchConfig bounds the per-column bin search.
type SearchConfig struct {
	// MaxSteps caps the number of bin counts tried per column.
	MaxSteps int `json:"max_steps" mapstructure:"max_steps"`
	// Growth is constants.GrowthDoubling or the deprecated
	// constants.GrowthSquaring.
	Growth string `json:"growth" mapstructure:"growth"`
	// MaxBins ends the search before a bin count larger than it is tried.
	MaxBins int `json:"max_bins" mapstructure:"max_bins"`
}

// DefaultSearchConfig returns {MaxSteps: 10, Growth: doubling, MaxBins: 4096}.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MaxSteps: constants.DefaultMaxSteps,
		Growth:   constants.DefaultGrowth,
		MaxBins:  constants.DefaultMaxBins,
	}
}

// Validate checks the search bounds.
func (c SearchConfig) Validate() error {
	if c.MaxSteps < 1 {
		return errors.NewValidationError(errors.CodeInvalidMaxSteps, "max steps must be at least 1").
			WithDetails(fmt.Sprintf("got %d", c.MaxSteps))
	}
	if c.MaxBins < 0 {
		return errors.NewValidationError(errors.CodeInvalidInput, "max bins must not be negative").
			WithDetails(fmt.Sprintf("got %d", c.MaxBins))
	}
	switch c.Growth {
	case constants.GrowthDoubling, constants.GrowthSquaring:
		return nil
	default:
		return errors.NewValidationError(errors.CodeInvalidInput, "unknown growth strategy").
			WithDetails(fmt.Sprintf("growth %q is not one of %s, %s", c.Growth, constants.GrowthDoubling, constants.GrowthSquaring))
	}
}

// NextBinCount returns the bin count following n under growth. Squaring
// goes 1, 2, 4, 16, 256; doubling goes 1, 2, 4, 8.
func NextBinCount(growth string, n int) int {
	if growth == constants.GrowthSquaring {
		if n*n > n {
			return n * n
		}
		return n + 1
	}
	return n * 2
}

// BinSearcher finds, for one column in isolation, the increasingly fine bin
// counts that keep the column k-anonymous.
type BinSearcher struct {
	config SearchConfig
	logger *logrus.Logger
}

// NewBinSearcher creates a searcher. Zero-valued config fields take their
// defaults.
func NewBinSearcher(config SearchConfig, logger *logrus.Logger) *BinSearcher {
	defaults := DefaultSearchConfig()
	if config.MaxSteps <= 0 {
		config.MaxSteps = defaults.MaxSteps
	}
	if config.Growth == "" {
		config.Growth = defaults.Growth
	}
	if config.MaxBins <= 0 {
		config.MaxBins = defaults.MaxBins
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &BinSearcher{config: config, logger: logger}
}

// CandidateBinCounts runs a doubling search on column with the given step cap.
func CandidateBinCounts(t *table.Table, column string, maxSteps, k int) ([]int, error) {
	return NewBinSearcher(SearchConfig{MaxSteps: maxSteps, Growth: constants.GrowthDoubling}, nil).Candidates(t, column, k)
}

// Candidates returns the bin counts, coarsest first, for which column alone
// is k-anonymous. The search stops at the first failing count, at the first
// count whose bins are sequential, when bins cannot be built, after
// MaxSteps counts, or before a count above MaxBins. A missing or non-numeric column is a schema error.
func (s *BinSearcher) Candidates(t *table.Table, column string, k int) ([]int, error) {
	values, err := t.Numeric(column)
	if err != nil {
		return nil, err
	}
	candidates, _ := s.candidatesFromValues(column, values, k)
	return candidates, nil
}

// candidatesFromValues also returns the number of steps evaluated.
func (s *BinSearcher) candidatesFromValues(column string, values []float64, k int) ([]int, int) {
	candidates := make([]int, 0, s.config.MaxSteps)
	log := s.logger.WithFields(logrus.Fields{
		"column": column,
		"k":      k,
	})

	numBins := 1
	steps := 0
	for steps < s.config.MaxSteps && numBins <= s.config.MaxBins {
		steps++
		bins, err := MakeBinsFromValues(column, values, numBins)
		if err != nil {
			log.WithError(err).WithField("bins", numBins).Debug("Bin construction failed, ending search")
			break
		}
		if IsSequential(bins) {
			log.WithField("bins", numBins).Debug("Bins are sequential, ending search")
			break
		}

		ok, err := labelsSatisfyK(column, Generalize(values, bins), k)
		if err != nil || !ok {
			log.WithField("bins", numBins).Debug("Column no longer k-anonymous, ending search")
			break
		}

		candidates = append(candidates, numBins)
		next := NextBinCount(s.config.Growth, numBins)
		if next <= numBins {
			break
		}
		numBins = next
	}

	log.WithFields(logrus.Fields{
		"candidates": candidates,
		"steps":      steps,
	}).Debug("Single-column search complete")
	return candidates, steps
}

func labelsSatisfyK(column string, labels []string, k int) (bool, error) {
	single, err := table.New(table.NewStringColumn(column, table.KindCategorical, labels))
	if err != nil {
		return false, err
	}
	return SatisfiesK(single, []string{column}, k)
}
