package gormsource

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alp4ka/flowpager"
)

func newUsersKeysetSource(t *testing.T, orderBy ...OrderBy) (*KeysetSource[tUser], sqlmock.Sqlmock) {
	t.Helper()

	_, db, dbMock, err := newGORMPostgresMock()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	source, err := NewKeysetSource(usersQuery(db), _userGetters, orderBy...)
	require.NoError(t, err)

	return source, dbMock
}

func Test_NewKeysetSource(t *testing.T) {
	_, db, _, err := newGORMMySQLMock()
	require.NoError(t, err)

	_, err = NewKeysetSource[tUser](nil, _userGetters, OrderBy{Column: "id", Direction: DirectionASC})
	require.Error(t, err)

	_, err = NewKeysetSource(db, _userGetters)
	require.Error(t, err)

	_, err = NewKeysetSource(db, _userGetters, OrderBy{Column: "created_at", Direction: DirectionASC})
	require.Error(t, err, "every ordering column needs a getter")
}

func Test_KeysetSource_Load_Query(t *testing.T) {
	byID := Orderings{{Column: "id", Direction: DirectionASC}}
	byNameID := Orderings{
		{Column: "name", Direction: DirectionASC},
		{Column: "id", Direction: DirectionASC},
	}

	tests := []struct {
		name          string
		orderings     Orderings
		direction     flowpager.LoadDirection
		cursor        *Cursor
		expectedQuery string
		expectedArgs  []driver.Value
	}{
		{
			name:          "refresh from the start",
			orderings:     byID,
			direction:     flowpager.DirectionRefresh,
			expectedQuery: _qUsersBase + " ORDER BY id ASC LIMIT 3$",
		},
		{
			name:          "append after a row",
			orderings:     byID,
			direction:     flowpager.DirectionAppend,
			cursor:        NewCursor(CursorElement{Column: "id", Value: 5, Operator: OperatorGT}),
			expectedQuery: _qUsersBase + " AND id > " + _qArg + " ORDER BY id ASC LIMIT 3$",
			expectedArgs:  []driver.Value{5},
		},
		{
			name:          "prepend reads the reversed ordering",
			orderings:     byID,
			direction:     flowpager.DirectionPrepend,
			cursor:        NewCursor(CursorElement{Column: "id", Value: 5, Operator: OperatorLT}).WithBackward(true),
			expectedQuery: _qUsersBase + " AND id < " + _qArg + " ORDER BY id DESC LIMIT 3$",
			expectedArgs:  []driver.Value{5},
		},
		{
			name:          "inclusive refresh",
			orderings:     byID,
			direction:     flowpager.DirectionRefresh,
			cursor:        NewCursor(CursorElement{Column: "id", Value: 5, Operator: OperatorGT}).WithInclusive(true),
			expectedQuery: _qUsersBase + " AND id >= " + _qArg + " ORDER BY id ASC LIMIT 3$",
			expectedArgs:  []driver.Value{5},
		},
		{
			name:      "append with multiple columns",
			orderings: byNameID,
			direction: flowpager.DirectionAppend,
			cursor: NewCursor(
				CursorElement{Column: "name", Value: "lol", Operator: OperatorGT},
				CursorElement{Column: "id", Value: 2, Operator: OperatorGT},
			),
			expectedQuery: _qUsersBase + " AND \\(name > " + _qArg + " OR \\(name = " + _qArg + " AND id > " + _qArg + "\\)\\) ORDER BY name ASC, id ASC LIMIT 3$",
			expectedArgs:  []driver.Value{"lol", "lol", 2},
		},
		{
			name:      "prepend with multiple columns",
			orderings: byNameID,
			direction: flowpager.DirectionPrepend,
			cursor: NewCursor(
				CursorElement{Column: "name", Value: "lol", Operator: OperatorLT},
				CursorElement{Column: "id", Value: 2, Operator: OperatorLT},
			).WithBackward(true),
			expectedQuery: _qUsersBase + " AND \\(name < " + _qArg + " OR \\(name = " + _qArg + " AND id < " + _qArg + "\\)\\) ORDER BY name DESC, id DESC LIMIT 3$",
			expectedArgs:  []driver.Value{"lol", "lol", 2},
		},
	}

	for _, sqlMockFn := range _sqlMockFnList {
		for _, tt := range tests {
			dialect, db, dbMock, err := sqlMockFn()
			t.Run(fmt.Sprintf("%s %s", dialect, tt.name), func(t *testing.T) {
				require.NoError(t, err)

				expectation := dbMock.ExpectQuery(tt.expectedQuery)
				if len(tt.expectedArgs) > 0 {
					expectation = expectation.WithArgs(tt.expectedArgs...)
				}
				expectation.WillReturnRows(userRows())

				source, err := NewKeysetSource(usersQuery(db), _userGetters, tt.orderings...)
				require.NoError(t, err)

				var key *string
				if !tt.cursor.IsEmpty() {
					key = lo.ToPtr(tt.cursor.String())
				}

				page, err := source.Load(_bg, request(tt.direction, key, 2))
				require.NoError(t, err)
				require.Empty(t, page.Items)
				require.Nil(t, page.PrevKey)
				require.Nil(t, page.NextKey)

				assert.NoError(t, dbMock.ExpectationsWereMet())
			})
		}
	}
}

func Test_KeysetSource_Load_Walk(t *testing.T) {
	source, dbMock := newUsersKeysetSource(t, OrderBy{Column: "id", Direction: DirectionASC})

	dbMock.ExpectQuery(_qUsersBase + " ORDER BY id ASC LIMIT 3$").WillReturnRows(userRows(1, 2, 3))
	first, err := source.Load(_bg, request[string](flowpager.DirectionRefresh, nil, 2))
	require.NoError(t, err)
	require.Equal(t, []uint{1, 2}, userIDs(first.Items))
	require.Nil(t, first.PrevKey, "the start of data has no previous page")
	require.NotNil(t, first.NextKey)

	dbMock.ExpectQuery(_qUsersBase+" AND id > "+_qArg+" ORDER BY id ASC LIMIT 3$").WithArgs(2).WillReturnRows(userRows(3, 4))
	second, err := source.Load(_bg, request(flowpager.DirectionAppend, first.NextKey, 2))
	require.NoError(t, err)
	require.Equal(t, []uint{3, 4}, userIDs(second.Items))
	require.Nil(t, second.NextKey, "no lookahead row means end of data")
	require.NotNil(t, second.PrevKey)

	// The window was trimmed to the second page; scrolling back reads page one
	// again through the reversed ordering.
	dbMock.ExpectQuery(_qUsersBase+" AND id < "+_qArg+" ORDER BY id DESC LIMIT 3$").WithArgs(3).WillReturnRows(userRows(2, 1))
	back, err := source.Load(_bg, request(flowpager.DirectionPrepend, second.PrevKey, 2))
	require.NoError(t, err)
	require.Equal(t, []uint{1, 2}, userIDs(back.Items), "rows must be restored to domain order")
	require.Nil(t, back.PrevKey)
	require.NotNil(t, back.NextKey)

	dbMock.ExpectQuery(_qUsersBase+" AND id < "+_qArg+" ORDER BY id DESC LIMIT 2$").WithArgs(9).WillReturnRows(userRows(8, 7))
	source = source.WithMaxLimit(1)
	more, err := source.Load(_bg, request(flowpager.DirectionPrepend, lo.ToPtr(cursorAt(source.sort, _userGetters, tUser{ID: 9}, true, false).String()), 10))
	require.NoError(t, err)
	require.Equal(t, []uint{8}, userIDs(more.Items))
	require.NotNil(t, more.PrevKey, "lookahead row means more data before")
}

func Test_KeysetSource_Load_InvalidCursor(t *testing.T) {
	source, _ := newUsersKeysetSource(t, OrderBy{Column: "id", Direction: DirectionASC})

	forward := NewCursor(CursorElement{Column: "id", Value: 1, Operator: OperatorGT}).String()
	backward := NewCursor(CursorElement{Column: "id", Value: 1, Operator: OperatorLT}).WithBackward(true).String()
	foreign := NewCursor(CursorElement{Column: "name", Value: "x", Operator: OperatorGT}).String()

	tests := []struct {
		name      string
		direction flowpager.LoadDirection
		key       *string
	}{
		{"garbage token", flowpager.DirectionAppend, lo.ToPtr("!!!")},
		{"column of another ordering", flowpager.DirectionRefresh, &foreign},
		{"append with backward cursor", flowpager.DirectionAppend, &backward},
		{"prepend with forward cursor", flowpager.DirectionPrepend, &forward},
		{"append without cursor", flowpager.DirectionAppend, nil},
		{"prepend without cursor", flowpager.DirectionPrepend, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := source.Load(_bg, request(tt.direction, tt.key, 2))
			require.ErrorIs(t, err, flowpager.ErrInvalidCursor)
			require.Equal(t, flowpager.ErrorKindInvalidCursor, flowpager.KindOf(err))
		})
	}
}

func Test_KeysetSource_Load_QueryError(t *testing.T) {
	source, dbMock := newUsersKeysetSource(t, OrderBy{Column: "id", Direction: DirectionASC})

	dbMock.ExpectQuery(_qUsersBase).WillReturnError(errors.New("too many connections"))

	_, err := source.Load(_bg, request[string](flowpager.DirectionRefresh, nil, 2))
	require.ErrorIs(t, err, flowpager.ErrTransient)
}

func Test_KeysetSource_RefreshKey(t *testing.T) {
	source, dbMock := newUsersKeysetSource(t, OrderBy{Column: "id", Direction: DirectionASC})

	state := flowpager.State[string, tUser]{
		Pages: []flowpager.Page[string, tUser]{
			{Items: []tUser{{ID: 10}, {ID: 11}}},
			{Items: []tUser{{ID: 12}, {ID: 13}}},
		},
	}
	require.Nil(t, source.RefreshKey(state), "no anchor restarts from the beginning")

	state.AnchorPosition = lo.ToPtr(3)
	key := source.RefreshKey(state)
	require.NotNil(t, key)

	cursor, err := DecodeCursor(*key)
	require.NoError(t, err)
	require.True(t, cursor.IsInclusive())
	require.False(t, cursor.IsBackward())

	// The refresh reloads the anchored page from its first row.
	dbMock.ExpectQuery(_qUsersBase+" AND id >= "+_qArg+" ORDER BY id ASC LIMIT 3$").WithArgs(12).WillReturnRows(userRows(12, 13, 14))
	page, err := source.Load(_bg, request(flowpager.DirectionRefresh, key, 2))
	require.NoError(t, err)
	require.Equal(t, []uint{12, 13}, userIDs(page.Items))
	require.NotNil(t, page.PrevKey)
	require.NotNil(t, page.NextKey)
}
