package gormsource

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Alp4ka/flowpager"
)

// DefaultMaxLimit caps the page size a source will query for.
const DefaultMaxLimit = 1000

// splitLookahead trims the extra row fetched to detect whether another page
// follows. Reports whether it was present.
func splitLookahead[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) <= limit {
		return rows, false
	}

	return rows[:limit], true
}

// findRows runs the query and classifies its failure for the pager.
func findRows[T any](tx *gorm.DB) ([]T, error) {
	var rows []T

	err := tx.Find(&rows).Error
	switch {
	case err == nil:
		return rows, nil
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		return nil, flowpager.NewTransientError(fmt.Errorf("query page: %w", err))
	}
}
