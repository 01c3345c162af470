package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

func TestGeneralizeLabels(t *testing.T) {
	bins := Bins{25, 34, 43, 52, 61}
	labels := Generalize([]float64{25, 33, 34, 60, 61, 10}, bins)

	assert.Equal(t, []string{"25-33", "25-33", "34-42", "52-60", constants.OutOfRangeLabel, constants.OutOfRangeLabel}, labels)
}

func TestGeneralizeManyBins(t *testing.T) {
	values := []float64{0, 0, 1e15, 1e15}
	bins, err := MakeBinsFromValues("x", values, constants.DefaultMaxBins)
	require.NoError(t, err)
	require.Equal(t, constants.DefaultMaxBins, bins.Count())

	labels := Generalize(values, bins)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[2], labels[3])
	assert.Equal(t, bins.Label(0), labels[0])
	assert.Equal(t, bins.Label(bins.Count()-1), labels[3])
	assert.Equal(t, []string{constants.OutOfRangeLabel}, Generalize([]float64{bins.Upper()}, bins))
}

func TestGeneralizeTablePreservesOtherColumns(t *testing.T) {
	tbl, err := table.New(
		table.NewNumericColumn("Age", []float64{25, 30, 45}),
		table.NewStringColumn("Gender", table.KindCategorical, []string{"Male", "Female", "Male"}),
	)
	require.NoError(t, err)

	generalized, err := GeneralizeTable(tbl, BinAssignment{"Age": Bins{25, 43, 61}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Age", "Gender"}, generalized.Columns())
	assert.Equal(t, 3, generalized.Len())
	assert.Equal(t, [][]string{
		{"25-42", "Male"},
		{"25-42", "Female"},
		{"43-60", "Male"},
	}, generalized.Rows())

	age, ok := generalized.Column("Age")
	require.True(t, ok)
	assert.Equal(t, table.KindCategorical, age.Kind())

	// The source table is untouched.
	values, err := tbl.Numeric("Age")
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 30, 45}, values)
}

func TestGeneralizeTableRejectsNonNumericColumn(t *testing.T) {
	tbl, err := table.New(
		table.NewStringColumn("Age", table.KindCategorical, []string{"25", "unknown"}),
	)
	require.NoError(t, err)

	_, err = GeneralizeTable(tbl, BinAssignment{"Age": Bins{25, 61}})
	require.Error(t, err)
	assert.True(t, errors.IsSchemaError(err))
	assert.Contains(t, err.Error(), "unknown")
}

func TestGroupAndCount(t *testing.T) {
	tbl, err := table.New(
		table.NewStringColumn("Age", table.KindCategorical, []string{"25-42", "43-60", "25-42", "25-42"}),
		table.NewStringColumn("Gender", table.KindCategorical, []string{"Male", "Male", "Female", "Male"}),
	)
	require.NoError(t, err)

	grouped, err := GroupAndCount(tbl, []string{"Age", "Gender"})
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"25-42", "Male"},
		{"43-60", "Male"},
		{"25-42", "Female"},
	}, grouped.Groups)
	assert.Equal(t, []int{2, 1, 1}, grouped.Counts)
	assert.Equal(t, tbl.Len(), grouped.Total())
	assert.Equal(t, 1, grouped.MinCount())
	assert.Equal(t, []string{"Age", "Gender", constants.CountColumn}, grouped.Header())
	assert.Equal(t, []string{"25-42", "Male", "2"}, grouped.Rows()[0])

	ages, ok := grouped.Column("Age")
	require.True(t, ok)
	assert.Equal(t, []string{"25-42", "43-60", "25-42"}, ages)
}

func TestGroupAndCountKeysDoNotCollide(t *testing.T) {
	tbl, err := table.New(
		table.NewStringColumn("a", table.KindCategorical, []string{"x|y", "x"}),
		table.NewStringColumn("b", table.KindCategorical, []string{"z", "y|z"}),
	)
	require.NoError(t, err)

	grouped, err := GroupAndCount(tbl, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, grouped.Len())
}

func TestGroupAndCountMissingColumn(t *testing.T) {
	tbl := ageIncomeTable(t)
	_, err := GroupAndCount(tbl, []string{"Age", "Zip"})
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.AppError{Type: errors.ErrorTypeSchema, Code: errors.CodeColumnMissing})
}

func TestFilterMinCount(t *testing.T) {
	grouped := &GroupedTable{
		Columns: []string{"Age"},
		Groups:  [][]string{{"25-42"}, {"43-60"}, {"*"}},
		Counts:  []int{4, 1, 3},
	}
	filtered := grouped.FilterMinCount(3)

	assert.Equal(t, [][]string{{"25-42"}, {"*"}}, filtered.Groups)
	assert.Equal(t, []int{4, 3}, filtered.Counts)
	assert.Equal(t, 3, grouped.Len())
	assert.Equal(t, 0, (&GroupedTable{}).MinCount())
}

func TestSatisfiesK(t *testing.T) {
	tbl, err := table.New(
		table.NewStringColumn("Age", table.KindCategorical, []string{"a", "a", "b", "b", "b"}),
	)
	require.NoError(t, err)

	for k, want := range map[int]bool{1: true, 2: true, 3: false, 5: false} {
		ok, err := SatisfiesK(tbl, []string{"Age"}, k)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "k=%d", k)
	}

	empty, err := table.New(table.NewNumericColumn("Age", nil))
	require.NoError(t, err)
	ok, err := SatisfiesK(empty, []string{"Age"}, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = SatisfiesK(tbl, nil, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSatisfiesKIsMonotonic(t *testing.T) {
	tbl := sequenceTable(t, "Age", 1, 40)
	generalized, err := GeneralizeTable(tbl, BinAssignment{"Age": Bins{1, 8, 15, 22, 29, 36, 43}})
	require.NoError(t, err)

	previous := true
	for k := 1; k <= 10; k++ {
		ok, err := SatisfiesK(generalized, []string{"Age"}, k)
		require.NoError(t, err)
		if !previous {
			assert.False(t, ok, "k=%d satisfied after a smaller k failed", k)
		}
		previous = ok
	}
}

func TestValidateKAnonymity(t *testing.T) {
	tbl, err := table.New(
		table.NewStringColumn("Age", table.KindCategorical, []string{"a", "a", "b"}),
	)
	require.NoError(t, err)

	require.NoError(t, ValidateKAnonymity(tbl, []string{"Age"}, 1))

	err = ValidateKAnonymity(tbl, []string{"Age"}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.AppError{Type: errors.ErrorTypePrivacy, Code: errors.CodeKAnonymityViolated})
	assert.Contains(t, err.Error(), "[b] has size 1")
}
