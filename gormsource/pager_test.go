package gormsource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Alp4ka/flowpager"
)

func Test_OffsetSource_WithPager(t *testing.T) {
	_, db, dbMock, err := newGORMMySQLMock()
	require.NoError(t, err)

	dbMock.ExpectQuery(_qUsersBase + " ORDER BY id ASC LIMIT 4$").WillReturnRows(userRows(1, 2, 3, 4))
	dbMock.ExpectQuery(_qUsersBase + " ORDER BY id ASC LIMIT 4 OFFSET 3$").WillReturnRows(userRows(4, 5))

	source, err := NewOffsetSource[tUser](usersQuery(db), OrderBy{Column: "id", Direction: DirectionASC})
	require.NoError(t, err)

	p, err := flowpager.New[int, tUser](source, nil, flowpager.Config{
		PageSize:         3,
		MaxRetainedItems: flowpager.NoLimit,
		PrefetchDistance: 1,
	}, flowpager.WithLogger[int, tUser](zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer p.Close()

	waitItems := func(n int) flowpager.Snapshot[tUser] {
		require.Eventually(t, func() bool {
			snap := p.Snapshot()
			return snap.LoadState.IsIdle() && snap.ItemCount() == n
		}, 2*time.Second, 5*time.Millisecond)

		return p.Snapshot()
	}

	waitItems(3)
	require.NoError(t, p.ReportAnchor(2))

	snap := waitItems(5)
	require.Equal(t, []uint{1, 2, 3, 4, 5}, userIDs(snap.Items()))
	require.True(t, snap.LoadState.Append.EndOfPagination)
	require.True(t, snap.LoadState.Prepend.EndOfPagination)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func Test_KeysetSource_WithPager(t *testing.T) {
	source, dbMock := newUsersKeysetSource(t, OrderBy{Column: "id", Direction: DirectionDESC})

	dbMock.ExpectQuery(_qUsersBase + " ORDER BY id DESC LIMIT 3$").WillReturnRows(userRows(9, 8, 7))
	dbMock.ExpectQuery(_qUsersBase+" AND id <= "+_qArg+" ORDER BY id DESC LIMIT 3$").WithArgs(9).WillReturnRows(userRows(9, 8, 7))

	p, err := flowpager.New[string, tUser](source, nil, flowpager.Config{
		PageSize:         2,
		MaxRetainedItems: flowpager.NoLimit,
		PrefetchDistance: 0,
	}, flowpager.WithLogger[string, tUser](zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer p.Close()

	require.Eventually(t, func() bool {
		snap := p.Snapshot()
		return snap.LoadState.IsIdle() && snap.ItemCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.ReportAnchor(0))
	before := p.Snapshot().Version
	require.NoError(t, p.Refresh())

	// The refresh restarts at the anchored row, that row included.
	require.Eventually(t, func() bool {
		snap := p.Snapshot()
		return snap.LoadState.IsIdle() && snap.Version >= before+2
	}, 2*time.Second, 5*time.Millisecond)

	snap := p.Snapshot()
	require.Equal(t, []uint{9, 8}, userIDs(snap.Items()))
	require.False(t, snap.LoadState.Prepend.EndOfPagination, "rows may precede an inclusive refresh")
}
