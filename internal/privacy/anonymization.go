package privacy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

// Run outcomes reported to a Recorder.
const (
	RunStatusSuccess     = "success"
	RunStatusUnsatisfied = "unsatisfied"
	RunStatusError       = "error"
)

type AnonymizationConfig struct {
	K                int          `json:"k" mapstructure:"k"`
	Search           SearchConfig `json:"search" mapstructure:"search"`
	EquivalenceBasis string       `json:"equivalence_basis" mapstructure:"equivalence_basis"`
}

// Validate checks k, the search bounds and the equivalence basis.
func (c *AnonymizationConfig) Validate() error {
	if c.K < 1 {
		return errors.NewValidationError(errors.CodeInvalidK, "k must be at least 1").
			WithDetails(fmt.Sprintf("got k=%d", c.K))
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	switch c.EquivalenceBasis {
	case "", constants.EquivalenceRaw, constants.EquivalenceGeneralized:
		return nil
	default:
		return errors.NewValidationError(errors.CodeInvalidInput, "unknown equivalence basis").
			WithDetails(fmt.Sprintf("basis %q is not one of %s, %s", c.EquivalenceBasis,
				constants.EquivalenceRaw, constants.EquivalenceGeneralized))
	}
}

// Recorder receives run telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordRun(status string, duration time.Duration, loss float64)
	RecordSearchSteps(phase string, steps int)
}

type Anonymizer struct {
	config   *AnonymizationConfig
	logger   *logrus.Logger
	recorder Recorder
}

// Result carries the three artifacts of a run plus the search details.
type Result struct {
	RunID         string         `json:"run_id"`
	Columns       []string       `json:"columns"`
	K             int            `json:"k"`
	Assignment    BinAssignment  `json:"assignment"`
	BinCounts     map[string]int `json:"bin_counts"`
	Generalized   *table.Table   `json:"-"`
	Grouped       *GroupedTable  `json:"grouped"`
	Loss          float64        `json:"loss"`
	LossBreakdown LossBreakdown  `json:"loss_breakdown"`
	Satisfied     bool           `json:"satisfied"`
	MinGroupSize  int            `json:"min_group_size"`
	Duration      time.Duration  `json:"duration"`
}

// Suppressed returns the grouped view restricted to groups of at least K
// rows.
func (r *Result) Suppressed() *GroupedTable {
	return r.Grouped.FilterMinCount(r.K)
}

func NewAnonymizer(config *AnonymizationConfig, logger *logrus.Logger, recorder Recorder) *Anonymizer {
	defaults := getDefaultAnonymizationConfig()
	if config == nil {
		config = defaults
	}
	if config.K <= 0 {
		config.K = defaults.K
	}
	if config.Search.MaxSteps <= 0 {
		config.Search.MaxSteps = defaults.Search.MaxSteps
	}
	if config.Search.Growth == "" {
		config.Search.Growth = defaults.Search.Growth
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Anonymizer{
		config:   config,
		logger:   logger,
		recorder: recorder,
	}
}

// Run anonymizes t with the default configuration.
func Run(ctx context.Context, t *table.Table, columns []string, k, maxSteps int) (*Result, error) {
	return NewAnonymizer(nil, nil, nil).Run(ctx, t, columns, k, maxSteps)
}

// Config returns the anonymizer's configuration.
func (a *Anonymizer) Config() AnonymizationConfig { return *a.config }

// Run searches for a bin assignment over columns, generalizes t under it,
// evaluates the information loss against the raw values and groups the
// generalized table. maxSteps <= 0 takes the configured default.
func (a *Anonymizer) Run(ctx context.Context, t *table.Table, columns []string, k, maxSteps int) (*Result, error) {
	start := time.Now()
	if maxSteps <= 0 {
		maxSteps = a.config.Search.MaxSteps
	}

	result, err := a.run(ctx, t, columns, k, maxSteps)
	duration := time.Since(start)
	if err != nil {
		a.record(RunStatusError, duration, 0)
		a.logger.WithError(err).WithField("columns", columns).Error("Anonymization failed")
		return nil, err
	}

	result.Duration = duration
	status := RunStatusSuccess
	if !result.Satisfied {
		status = RunStatusUnsatisfied
	}
	a.record(status, duration, result.Loss)

	a.logger.WithFields(logrus.Fields{
		"run_id":         result.RunID,
		"bin_counts":     result.BinCounts,
		"loss":           result.Loss,
		"groups":         result.Grouped.Len(),
		"min_group_size": result.MinGroupSize,
		"satisfied":      result.Satisfied,
		"duration":       duration,
	}).Info("Anonymization complete")

	return result, nil
}

func (a *Anonymizer) run(ctx context.Context, t *table.Table, columns []string, k, maxSteps int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(t, columns, k); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	a.logger.WithFields(logrus.Fields{
		"run_id":    runID,
		"rows":      t.Len(),
		"columns":   columns,
		"k_value":   k,
		"max_steps": maxSteps,
	}).Info("Applying k-anonymity")

	search := a.config.Search
	search.MaxSteps = maxSteps
	coordination, err := NewCoordinator(search, a.logger).Coordinate(ctx, t, columns, k)
	if err != nil {
		return nil, err
	}
	a.recordSteps("single_column", coordination.SearchSteps)
	a.recordSteps("joint", coordination.JointChecks)

	if !coordination.Satisfied {
		a.logger.WithFields(logrus.Fields{
			"run_id":  runID,
			"k_value": k,
		}).Warn("No jointly k-anonymous assignment found, returning the coarsest bins")
	}

	generalized, err := GeneralizeTable(t, coordination.Assignment)
	if err != nil {
		return nil, err
	}

	breakdown, err := NewLossEvaluator(a.config.EquivalenceBasis).Evaluate(t, columns, coordination.Assignment)
	if err != nil {
		return nil, err
	}

	grouped, err := GroupAndCount(generalized, columns)
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:         runID,
		Columns:       append([]string(nil), columns...),
		K:             k,
		Assignment:    coordination.Assignment,
		BinCounts:     coordination.BinCounts,
		Generalized:   generalized,
		Grouped:       grouped,
		Loss:          breakdown.Total,
		LossBreakdown: breakdown,
		Satisfied:     coordination.Satisfied,
		MinGroupSize:  grouped.MinCount(),
	}, nil
}

// validateRequest rejects bad arguments before any bins are built. Callers
// resolve maxSteps <= 0 to their default first.
func validateRequest(t *table.Table, columns []string, k int) error {
	if len(columns) == 0 {
		return errors.NewValidationError(errors.CodeNoColumns, "at least one column must be selected")
	}
	if k < 1 {
		return errors.NewValidationError(errors.CodeInvalidK, "k must be at least 1").
			WithDetails(fmt.Sprintf("got k=%d", k))
	}
	seen := make(map[string]bool, len(columns))
	for _, column := range columns {
		if seen[column] {
			return errors.NewSchemaError(errors.CodeDuplicateColumn, column, "duplicate column").
				WithDetails(fmt.Sprintf("column %q selected more than once", column))
		}
		seen[column] = true

		if _, err := t.Numeric(column); err != nil {
			return err
		}
	}
	return nil
}

func (a *Anonymizer) record(status string, duration time.Duration, loss float64) {
	if a.recorder != nil {
		a.recorder.RecordRun(status, duration, loss)
	}
}

func (a *Anonymizer) recordSteps(phase string, steps int) {
	if a.recorder != nil {
		a.recorder.RecordSearchSteps(phase, steps)
	}
}

func getDefaultAnonymizationConfig() *AnonymizationConfig {
	return &AnonymizationConfig{
		K:                constants.DefaultK,
		Search:           DefaultSearchConfig(),
		EquivalenceBasis: constants.EquivalenceRaw,
	}
}

// DefaultAnonymizationConfig returns the configuration used when none is
// supplied.
func DefaultAnonymizationConfig() AnonymizationConfig {
	return *getDefaultAnonymizationConfig()
}
