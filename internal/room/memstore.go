package room

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MemStore keeps rooms in process memory. Subscribers are called
// synchronously after the write, outside the lock.
type MemStore struct {
	mu       sync.Mutex
	rooms    map[string]map[string]string
	messages map[string][]Message
	subs     map[string]map[int]func(Change)
	nextSub  int
	seq      int64
	now      func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		rooms:    make(map[string]map[string]string),
		messages: make(map[string][]Message),
		subs:     make(map[string]map[int]func(Change)),
		now:      time.Now,
	}
}

func (s *MemStore) Create(ctx context.Context, r Room) error {
	set, _, err := encodeFields(DocumentFields(r))
	if err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.rooms[r.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("room %s already exists", r.ID)
	}
	s.rooms[r.ID] = set
	fns := s.subscribersLocked(r.ID)
	s.mu.Unlock()

	s.notify(fns, changesFor(r.ID, set, nil))
	return nil
}

func (s *MemStore) Read(ctx context.Context, roomID string) (Room, error) {
	s.mu.Lock()
	doc, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return Room{}, ErrNotFound
	}
	raw := make(map[string]string, len(doc))
	for k, v := range doc {
		raw[k] = v
	}
	s.mu.Unlock()
	return decodeRoom(raw)
}

func (s *MemStore) WriteFields(ctx context.Context, roomID string, f Fields) error {
	set, del, err := encodeFields(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	doc, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	for k, v := range set {
		doc[k] = v
	}
	for _, k := range del {
		delete(doc, k)
	}
	fns := s.subscribersLocked(roomID)
	s.mu.Unlock()

	s.notify(fns, changesFor(roomID, set, del))
	return nil
}

func (s *MemStore) AppendMessage(ctx context.Context, roomID string, m Message) (string, error) {
	s.mu.Lock()
	if _, ok := s.rooms[roomID]; !ok {
		s.mu.Unlock()
		return "", ErrNotFound
	}
	s.seq++
	m.ID = strconv.FormatInt(s.seq, 10)
	if m.Timestamp == 0 {
		m.Timestamp = s.now().UnixMilli()
	}
	s.messages[roomID] = append(s.messages[roomID], m)
	fns := s.subscribersLocked(roomID)
	s.mu.Unlock()

	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	s.notify(fns, []Change{{RoomID: roomID, Field: MessageField(m.ID), Value: b}})
	return m.ID, nil
}

func (s *MemStore) Messages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, ErrNotFound
	}
	all := s.messages[roomID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Message, len(all))
	copy(out, all)
	return out, nil
}

func (s *MemStore) ClaimOnce(ctx context.Context, roomID, field string, value any) (bool, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	doc, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	if _, taken := doc[field]; taken {
		s.mu.Unlock()
		return false, nil
	}
	doc[field] = string(b)
	fns := s.subscribersLocked(roomID)
	s.mu.Unlock()

	s.notify(fns, []Change{{RoomID: roomID, Field: field, Value: b}})
	return true, nil
}

func (s *MemStore) Increment(ctx context.Context, roomID, field string, delta int) (int, error) {
	s.mu.Lock()
	doc, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return 0, ErrNotFound
	}
	cur := 0
	if v, ok := doc[field]; ok {
		if err := json.Unmarshal([]byte(v), &cur); err != nil {
			s.mu.Unlock()
			return 0, fmt.Errorf("increment %s: %w", field, err)
		}
	}
	cur += delta
	val := strconv.Itoa(cur)
	doc[field] = val
	fns := s.subscribersLocked(roomID)
	s.mu.Unlock()

	s.notify(fns, []Change{{RoomID: roomID, Field: field, Value: json.RawMessage(val)}})
	return cur, nil
}

func (s *MemStore) ClaimLeadership(ctx context.Context, roomID, holder string, now time.Time, ttl time.Duration) (Leadership, bool, error) {
	s.mu.Lock()
	doc, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return Leadership{}, false, ErrNotFound
	}
	if v, ok := doc[FieldLeader]; ok {
		var cur Leadership
		if err := json.Unmarshal([]byte(v), &cur); err != nil {
			s.mu.Unlock()
			return Leadership{}, false, fmt.Errorf("decode leader: %w", err)
		}
		if cur.Holder != holder && !cur.Expired(now) {
			s.mu.Unlock()
			return cur, false, nil
		}
	}
	lease := leaseFor(holder, now, ttl)
	b, err := json.Marshal(lease)
	if err != nil {
		s.mu.Unlock()
		return Leadership{}, false, err
	}
	doc[FieldLeader] = string(b)
	fns := s.subscribersLocked(roomID)
	s.mu.Unlock()

	s.notify(fns, []Change{{RoomID: roomID, Field: FieldLeader, Value: b}})
	return lease, true, nil
}

func (s *MemStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out, nil
}

func (s *MemStore) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if _, ok := s.rooms[roomID]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.rooms, roomID)
	delete(s.messages, roomID)
	fns := s.subscribersLocked(roomID)
	s.mu.Unlock()

	s.notify(fns, []Change{{RoomID: roomID, Deleted: true}})
	return nil
}

func (s *MemStore) Subscribe(ctx context.Context, roomID string, fn func(Change)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[roomID] == nil {
		s.subs[roomID] = make(map[int]func(Change))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[roomID][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[roomID], id)
		if len(s.subs[roomID]) == 0 {
			delete(s.subs, roomID)
		}
	}, nil
}

func (s *MemStore) subscribersLocked(roomID string) []func(Change) {
	fns := make([]func(Change), 0, len(s.subs[roomID]))
	for _, fn := range s.subs[roomID] {
		fns = append(fns, fn)
	}
	return fns
}

func (s *MemStore) notify(fns []func(Change), changes []Change) {
	for _, fn := range fns {
		for _, c := range changes {
			fn(c)
		}
	}
}
