package room

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("room not found")

// Change is a single field notification. Delivery is at-least-once and
// there is no ordering between different fields.
type Change struct {
	RoomID  string          `json:"roomId"`
	Field   string          `json:"field,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// RoomClosed is sent once when the whole document is removed.
func (c Change) RoomClosed() bool {
	return c.Field == "" && c.Deleted
}

// Store is the shared room document. Writes are partial merges; only
// ClaimOnce, Increment and ClaimLeadership are conditional.
type Store interface {
	Create(ctx context.Context, r Room) error
	Read(ctx context.Context, roomID string) (Room, error)
	WriteFields(ctx context.Context, roomID string, f Fields) error
	AppendMessage(ctx context.Context, roomID string, m Message) (string, error)
	Messages(ctx context.Context, roomID string, limit int) ([]Message, error)
	// ClaimOnce sets field only if it is absent and reports whether it did.
	ClaimOnce(ctx context.Context, roomID, field string, value any) (bool, error)
	Increment(ctx context.Context, roomID, field string, delta int) (int, error)
	// ClaimLeadership takes the lease if it is free, expired or already ours,
	// and returns the lease record in effect after the call.
	ClaimLeadership(ctx context.Context, roomID, holder string, now time.Time, ttl time.Duration) (Leadership, bool, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, roomID string) error
	Subscribe(ctx context.Context, roomID string, fn func(Change)) (func(), error)
}

func changesFor(roomID string, set map[string]string, del []string) []Change {
	out := make([]Change, 0, len(set)+len(del))
	for _, k := range sortedKeys(set) {
		out = append(out, Change{RoomID: roomID, Field: k, Value: json.RawMessage(set[k])})
	}
	for _, k := range del {
		out = append(out, Change{RoomID: roomID, Field: k, Deleted: true})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	f := make(Fields, len(m))
	for k := range m {
		f[k] = struct{}{}
	}
	return f.Keys()
}

func leaseFor(holder string, now time.Time, ttl time.Duration) Leadership {
	return Leadership{
		Holder:      holder,
		HeartbeatMs: now.UnixMilli(),
		ExpiresAtMs: now.Add(ttl).UnixMilli(),
	}
}
