package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/Alp4ka/flowpager"
)

const _usersBatchSize = 20

// user is the item type of every demo source. The same struct is the gorm
// model of the SQL sources.
type user struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
}

func (u user) String() string {
	return u.Name
}

// usersBackend is an endless in-memory user directory addressed by 1-based
// page numbers. Page P holds users (P-1)*size .. P*size-1.
type usersBackend struct {
	latency time.Duration
}

func newUsersBackend(latency time.Duration) *usersBackend {
	return &usersBackend{latency: latency}
}

func (b *usersBackend) Load(ctx context.Context, req flowpager.LoadRequest[int]) (flowpager.Page[int, user], error) {
	pageNumber := lo.FromPtrOr(req.Key, 1)
	if pageNumber < 1 {
		return flowpager.Page[int, user]{}, flowpager.NewInvalidCursorError(fmt.Errorf("page number must be positive, got %d", pageNumber))
	}

	if b.latency > 0 {
		timer := time.NewTimer(b.latency)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return flowpager.Page[int, user]{}, ctx.Err()
		}
	}

	size := lo.Ternary(req.RequestedSize > 0, req.RequestedSize, _usersBatchSize)
	offset := (pageNumber - 1) * size

	items := make([]user, 0, size)
	for i := offset; i < offset+size; i++ {
		items = append(items, user{
			ID:   uint(i),
			Name: fmt.Sprintf("User %d (Page %d)", i, pageNumber),
		})
	}

	ret := flowpager.Page[int, user]{
		Items:   items,
		NextKey: lo.ToPtr(pageNumber + 1),
	}
	if pageNumber > 1 {
		ret.PrevKey = lo.ToPtr(pageNumber - 1)
	}

	return ret, nil
}

func (b *usersBackend) RefreshKey(state flowpager.State[int, user]) *int {
	return flowpager.IntRefreshKey(state)
}

var (
	_ flowpager.Loader[int, user]       = (*usersBackend)(nil)
	_ flowpager.RefreshKeyer[int, user] = (*usersBackend)(nil)
)
