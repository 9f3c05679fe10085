package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/sketch-mvp/internal/room"
)

// Lease claims per-room leadership so only one process drives a room clock.
// The TTL is two tick intervals: a crashed holder is replaced within two ticks.
type Lease struct {
	store  room.Store
	holder string
	ttl    time.Duration
}

func NewLease(store room.Store, holder string, tick time.Duration) *Lease {
	return &Lease{store: store, holder: holder, ttl: 2 * tick}
}

func (l *Lease) Holder() string {
	return l.holder
}

func (l *Lease) TTL() time.Duration {
	return l.ttl
}

// Acquire takes or renews the lease. It returns false while another live
// holder owns the room.
func (l *Lease) Acquire(ctx context.Context, roomID string, now time.Time) (bool, error) {
	_, ok, err := l.store.ClaimLeadership(ctx, roomID, l.holder, now, l.ttl)
	if errors.Is(err, room.ErrNotFound) {
		return false, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("%w: claim leadership: %v", ErrStore, err)
	}
	return ok, nil
}
