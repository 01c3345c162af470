package privacy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	steps    map[string]int
}

func (r *fakeRecorder) RecordRun(status string, _ time.Duration, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *fakeRecorder) RecordSearchSteps(phase string, steps int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.steps == nil {
		r.steps = make(map[string]int)
	}
	r.steps[phase] += steps
}

func TestRunAgeIncome(t *testing.T) {
	tbl := ageIncomeTable(t)
	recorder := &fakeRecorder{}
	anonymizer := NewAnonymizer(nil, quietLogger(), recorder)

	result, err := anonymizer.Run(context.Background(), tbl, []string{"Age", "Income"}, 2, 10)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.True(t, result.Satisfied)
	assert.Equal(t, 2, result.MinGroupSize)
	assert.InDelta(t, 4.0, result.Loss, 1e-9)
	assert.Equal(t, 4, result.Grouped.Len())
	assert.Equal(t, tbl.Len(), result.Grouped.Total())
	assert.Equal(t, []string{"25-33", "40000-48750", "2"}, result.Grouped.Rows()[0])

	oneBin, err := ObjectiveLoss(tbl, []string{"Age", "Income"}, BinAssignment{
		"Age":    Bins{25, 61},
		"Income": Bins{40000, 75001},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Loss, oneBin)

	ok, err := SatisfiesK(result.Generalized, []string{"Age", "Income"}, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{RunStatusSuccess}, recorder.statuses)
	assert.Positive(t, recorder.steps["single_column"])
	assert.Positive(t, recorder.steps["joint"])
}

func TestRunKeepsPassthroughColumns(t *testing.T) {
	tbl, err := table.New(
		table.NewNumericColumn("Age", []float64{25, 30, 35, 40}),
		table.NewStringColumn("Name", table.KindPassthrough, []string{"a", "b", "c", "d"}),
	)
	require.NoError(t, err)

	result, err := Run(context.Background(), tbl, []string{"Age"}, 2, 10)
	require.NoError(t, err)

	name, ok := result.Generalized.Column("Name")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c", "d"}, name.Strings())
	assert.Equal(t, []string{"Age"}, result.Grouped.Columns)
}

func TestRunValidation(t *testing.T) {
	tbl := ageIncomeTable(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		columns  []string
		k        int
		maxSteps int
		code     string
		schema   bool
	}{
		{"no columns", nil, 2, 10, errors.CodeNoColumns, false},
		{"zero k", []string{"Age"}, 0, 10, errors.CodeInvalidK, false},
		{"duplicate column", []string{"Age", "Age"}, 2, 10, errors.CodeDuplicateColumn, true},
		{"missing column", []string{"Zip"}, 2, 10, errors.CodeColumnMissing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(ctx, tbl, tt.columns, tt.k, tt.maxSteps)
			require.Error(t, err)
			assert.Equal(t, tt.schema, errors.IsSchemaError(err))
			assert.ErrorContains(t, err, tt.code)
		})
	}
}

func TestRunRecordsFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	anonymizer := NewAnonymizer(nil, quietLogger(), recorder)

	_, err := anonymizer.Run(context.Background(), ageIncomeTable(t), []string{"Zip"}, 2, 0)
	require.Error(t, err)
	assert.Equal(t, []string{RunStatusError}, recorder.statuses)
}

func TestRunUnsatisfiedSuppression(t *testing.T) {
	tbl, err := table.New(table.NewNumericColumn("Age", []float64{25, 30, 35}))
	require.NoError(t, err)
	recorder := &fakeRecorder{}

	result, err := NewAnonymizer(nil, quietLogger(), recorder).
		Run(context.Background(), tbl, []string{"Age"}, 5, 10)
	require.NoError(t, err)

	assert.False(t, result.Satisfied)
	assert.Equal(t, 3, result.MinGroupSize)
	assert.Equal(t, 0, result.Suppressed().Len())
	assert.Equal(t, []string{RunStatusUnsatisfied}, recorder.statuses)
}

func TestNewAnonymizerDefaults(t *testing.T) {
	anonymizer := NewAnonymizer(&AnonymizationConfig{}, quietLogger(), nil)
	config := anonymizer.Config()

	assert.Equal(t, constants.DefaultK, config.K)
	assert.Equal(t, constants.DefaultMaxSteps, config.Search.MaxSteps)
	assert.Equal(t, constants.GrowthDoubling, config.Search.Growth)
	require.NoError(t, config.Validate())

	bad := DefaultAnonymizationConfig()
	bad.EquivalenceBasis = "cosine"
	assert.True(t, errors.IsValidationError(bad.Validate()))
}

func TestSweep(t *testing.T) {
	tbl := ageIncomeTable(t)
	columns := []string{"Age", "Income"}

	steps, err := Sweep(tbl, columns, 2, SweepOptions{MaxSteps: 4})
	require.NoError(t, err)
	require.Len(t, steps, 4)

	counts := make([]int, len(steps))
	for i, step := range steps {
		counts[i] = step.NumBins
	}
	assert.Equal(t, []int{1, 2, 4, 8}, counts)
	assert.True(t, steps[2].SatisfiesK)
	assert.False(t, steps[3].SatisfiesK)
	assert.Equal(t, 1, steps[3].MinGroupSize)
	assert.InDelta(t, 16.0, steps[0].Loss, 1e-9)
	assert.InDelta(t, 4.0, steps[2].Loss, 1e-9)
}

func TestSweepBoundsAndGrowth(t *testing.T) {
	tbl := ageIncomeTable(t)
	columns := []string{"Age", "Income"}

	bounded, err := Sweep(tbl, columns, 2, SweepOptions{MaxSteps: 10, MaxBound: 3})
	require.NoError(t, err)
	assert.Len(t, bounded, 2)

	squared, err := Sweep(tbl, columns, 2, SweepOptions{MaxSteps: 4, Growth: constants.GrowthSquaring})
	require.NoError(t, err)
	require.Len(t, squared, 4)
	assert.Equal(t, 16, squared[3].NumBins)

	_, err = Sweep(tbl, []string{"Zip"}, 2, SweepOptions{})
	assert.True(t, errors.IsSchemaError(err))
}
