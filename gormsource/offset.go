package gormsource

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/Alp4ka/flowpager"
)

// OffsetSource serves a gorm query with LIMIT/OFFSET pagination. Keys are
// 1-based page numbers, a nil key addresses the first page.
//
// Offsets are derived from the requested size, so every request of one pager
// must ask for the same size. flowpager.Pager always does.
type OffsetSource[T any] struct {
	db       *gorm.DB
	sort     Orderings
	maxLimit int
}

// NewOffsetSource creates a source reading rows of db ordered by orderBy. db
// is used as a base query and is never modified.
//
// Usage:
//
//	source, err := gormsource.NewOffsetSource[User](
//		db.Table("users").Where("deleted_at IS NULL"),
//		gormsource.OrderBy{Column: "id", Direction: gormsource.DirectionASC},
//	)
func NewOffsetSource[T any](db *gorm.DB, orderBy ...OrderBy) (*OffsetSource[T], error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	sort := Orderings(orderBy)
	if err := sort.validate(); err != nil {
		return nil, fmt.Errorf("invalid offset source ordering: %w", err)
	}

	return &OffsetSource[T]{
		db:       db,
		sort:     sort,
		maxLimit: DefaultMaxLimit,
	}, nil
}

// WithMaxLimit caps the page size. flowpager.NoLimit disables the cap.
func (s *OffsetSource[T]) WithMaxLimit(limit int) *OffsetSource[T] {
	s.maxLimit = limit
	return s
}

// Load - implements flowpager.Loader.
func (s *OffsetSource[T]) Load(ctx context.Context, req flowpager.LoadRequest[int]) (flowpager.Page[int, T], error) {
	page := lo.FromPtrOr(req.Key, 1)
	if page < 1 {
		return flowpager.Page[int, T]{}, flowpager.NewInvalidCursorError(fmt.Errorf("page number must be positive, got %d", page))
	}

	limit := flowpager.NormalizePageSize(req.RequestedSize, s.maxLimit)

	tx := s.sort.Apply(s.db.WithContext(ctx)).
		Offset((page - 1) * limit).
		Limit(limit + 1)

	rows, err := findRows[T](tx)
	if err != nil {
		return flowpager.Page[int, T]{}, err
	}

	rows, hasMore := splitLookahead(rows, limit)

	ret := flowpager.Page[int, T]{Items: rows}
	if page > 1 {
		ret.PrevKey = lo.ToPtr(page - 1)
	}
	if hasMore {
		ret.NextKey = lo.ToPtr(page + 1)
	}

	return ret, nil
}

// RefreshKey - implements flowpager.RefreshKeyer.
func (s *OffsetSource[T]) RefreshKey(state flowpager.State[int, T]) *int {
	return flowpager.IntRefreshKey(state)
}

var (
	_ flowpager.Loader[int, any]       = (*OffsetSource[any])(nil)
	_ flowpager.RefreshKeyer[int, any] = (*OffsetSource[any])(nil)
)
