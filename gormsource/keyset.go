package gormsource

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/Alp4ka/flowpager"
)

// KeysetSource serves a gorm query with keyset pagination. Keys are opaque
// cursor tokens, see Cursor.
//
// Appends read forward from the trailing row of the window. Prepends read the
// reversed ordering backward from the leading row, and the rows are restored
// to domain order before they are returned.
type KeysetSource[T any] struct {
	db       *gorm.DB
	sort     Orderings
	getters  Getters[T]
	maxLimit int
}

// NewKeysetSource creates a source reading rows of db ordered by orderBy.
// getters must cover every ordering column.
func NewKeysetSource[T any](db *gorm.DB, getters Getters[T], orderBy ...OrderBy) (*KeysetSource[T], error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	sort := Orderings(orderBy)
	if err := sort.validate(); err != nil {
		return nil, fmt.Errorf("invalid keyset source ordering: %w", err)
	}

	if err := getters.validate(sort); err != nil {
		return nil, err
	}

	return &KeysetSource[T]{
		db:       db,
		sort:     sort,
		getters:  getters,
		maxLimit: DefaultMaxLimit,
	}, nil
}

// WithMaxLimit caps the page size. flowpager.NoLimit disables the cap.
func (s *KeysetSource[T]) WithMaxLimit(limit int) *KeysetSource[T] {
	s.maxLimit = limit
	return s
}

// Load - implements flowpager.Loader.
func (s *KeysetSource[T]) Load(ctx context.Context, req flowpager.LoadRequest[string]) (flowpager.Page[string, T], error) {
	cursor, err := s.decode(req)
	if err != nil {
		return flowpager.Page[string, T]{}, flowpager.NewInvalidCursorError(err)
	}

	limit := flowpager.NormalizePageSize(req.RequestedSize, s.maxLimit)
	backward := cursor.IsBackward()
	sort := lo.Ternary(backward, s.sort.Reverse(), s.sort)

	tx := cursor.Apply(sort.Apply(s.db.WithContext(ctx))).Limit(limit + 1)

	rows, err := findRows[T](tx)
	if err != nil {
		return flowpager.Page[string, T]{}, err
	}

	rows, hasMore := splitLookahead(rows, limit)
	if backward {
		slices.Reverse(rows)
	}

	ret := flowpager.Page[string, T]{Items: rows}
	if len(rows) == 0 {
		return ret, nil
	}

	first, last := rows[0], rows[len(rows)-1]
	if backward {
		if hasMore {
			ret.PrevKey = s.token(first, true)
		}
		ret.NextKey = s.token(last, false)
	} else {
		if !cursor.IsEmpty() {
			ret.PrevKey = s.token(first, true)
		}
		if hasMore {
			ret.NextKey = s.token(last, false)
		}
	}

	return ret, nil
}

// decode parses the request key and checks that it suits the direction.
func (s *KeysetSource[T]) decode(req flowpager.LoadRequest[string]) (*Cursor, error) {
	cursor, err := DecodeCursor(lo.FromPtr(req.Key))
	if err != nil {
		return nil, err
	}

	if err = cursor.validate(s.sort); err != nil {
		return nil, fmt.Errorf("cursor does not match source ordering: %w", err)
	}

	switch req.Direction {
	case flowpager.DirectionPrepend:
		if cursor.IsEmpty() || !cursor.IsBackward() {
			return nil, fmt.Errorf("prepend requires a backward cursor")
		}
	case flowpager.DirectionAppend:
		if cursor.IsEmpty() || cursor.IsBackward() {
			return nil, fmt.Errorf("append requires a forward cursor")
		}
	}

	return cursor, nil
}

func (s *KeysetSource[T]) token(row T, backward bool) *string {
	return lo.ToPtr(cursorAt(s.sort, s.getters, row, backward, false).String())
}

// RefreshKey - implements flowpager.RefreshKeyer. The refresh restarts at the
// first row of the page covering the anchor, that row included.
func (s *KeysetSource[T]) RefreshKey(state flowpager.State[string, T]) *string {
	if state.AnchorPosition == nil {
		return nil
	}

	page, ok := state.ClosestPageToPosition(*state.AnchorPosition)
	if !ok || len(page.Items) == 0 {
		return nil
	}

	return lo.ToPtr(cursorAt(s.sort, s.getters, page.Items[0], false, true).String())
}

var (
	_ flowpager.Loader[string, any]       = (*KeysetSource[any])(nil)
	_ flowpager.RefreshKeyer[string, any] = (*KeysetSource[any])(nil)
)
