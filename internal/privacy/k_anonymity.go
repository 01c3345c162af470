package privacy

import (
	"fmt"
	"strings"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/errors"
)

// SatisfiesK reports whether every combination of values over columns is
// shared by at least k rows. An empty table or an empty column list is
// trivially k-anonymous.
func SatisfiesK(t *table.Table, columns []string, k int) (bool, error) {
	if t.Len() == 0 || len(columns) == 0 {
		return true, nil
	}
	grouped, err := GroupAndCount(t, columns)
	if err != nil {
		return false, err
	}
	return grouped.MinCount() >= k, nil
}

// ValidateKAnonymity is SatisfiesK reporting the first equivalence class
// smaller than k as a privacy violation.
func ValidateKAnonymity(t *table.Table, columns []string, k int) error {
	if t.Len() == 0 || len(columns) == 0 {
		return nil
	}
	grouped, err := GroupAndCount(t, columns)
	if err != nil {
		return err
	}
	for i, size := range grouped.Counts {
		if size < k {
			return errors.NewAppError(errors.ErrorTypePrivacy, errors.CodeKAnonymityViolated, "equivalence class smaller than k").
				WithDetails(fmt.Sprintf("equivalence class [%s] has size %d, less than k=%d",
					strings.Join(grouped.Groups[i], ", "), size, k)).
				WithContext("size", size).
				WithContext("k", k)
		}
	}
	return nil
}
