package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"example.com/sketch-mvp/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Keys:
//
//	room:{id}           hash, one field per document path, JSON values
//	room:{id}:messages  stream of chat/system messages
//	room:{id}:changes   pub/sub channel, JSON []Change per write
//	rooms               set of live room ids
const roomsKey = "rooms"

var writeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
local n = tonumber(ARGV[1])
for i = 2, 2 * n, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
for i = 2 * n + 2, #ARGV do
  redis.call('HDEL', KEYS[1], ARGV[i])
end
return 1
`)

var claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
return redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2])
`)

var incrScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return false end
return redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
`)

// ARGV: holder, now ms, new lease JSON.
var leaderScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return false end
local cur = redis.call('HGET', KEYS[1], 'leader')
if cur then
  local l = cjson.decode(cur)
  if l.holder ~= ARGV[1] and tonumber(l.expiresAt) > tonumber(ARGV[2]) then
    return {0, cur}
  end
end
redis.call('HSET', KEYS[1], 'leader', ARGV[3])
return {1, ARGV[3]}
`)

var appendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return false end
return redis.call('XADD', KEYS[2], '*', 'data', ARGV[1])
`)

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (s *RedisStore) key(roomID string) string {
	return fmt.Sprintf("room:%s", roomID)
}

func (s *RedisStore) messagesKey(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

func (s *RedisStore) changesChannel(roomID string) string {
	return fmt.Sprintf("room:%s:changes", roomID)
}

func (s *RedisStore) Create(ctx context.Context, r Room) error {
	set, _, err := encodeFields(DocumentFields(r))
	if err != nil {
		return err
	}
	values := make([]any, 0, 2*len(set))
	for k, v := range set {
		values = append(values, k, v)
	}

	ok, err := s.rdb.HSetNX(ctx, s.key(r.ID), FieldID, set[FieldID]).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("room %s already exists", r.ID)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.key(r.ID), values...)
	pipe.SAdd(ctx, roomsKey, r.ID)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(r.ID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	s.notify(ctx, r.ID, changesFor(r.ID, set, nil))
	return nil
}

func (s *RedisStore) Read(ctx context.Context, roomID string) (Room, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key(roomID)).Result()
	if err != nil {
		return Room{}, err
	}
	if len(raw) == 0 {
		return Room{}, ErrNotFound
	}
	return decodeRoom(raw)
}

func (s *RedisStore) WriteFields(ctx context.Context, roomID string, f Fields) error {
	set, del, err := encodeFields(f)
	if err != nil {
		return err
	}
	args := make([]any, 0, 1+2*len(set)+len(del))
	args = append(args, len(set))
	for _, k := range sortedKeys(set) {
		args = append(args, k, set[k])
	}
	for _, k := range del {
		args = append(args, k)
	}

	n, err := writeScript.Run(ctx, s.rdb, []string{s.key(roomID)}, args...).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.touch(ctx, roomID)
	s.notify(ctx, roomID, changesFor(roomID, set, del))
	return nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, roomID string, m Message) (string, error) {
	if m.Timestamp == 0 {
		m.Timestamp = s.now().UnixMilli()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	id, err := appendScript.Run(ctx, s.rdb, []string{s.key(roomID), s.messagesKey(roomID)}, string(b)).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if s.ttl > 0 {
		_ = s.rdb.Expire(ctx, s.messagesKey(roomID), s.ttl).Err()
	}

	m.ID = id
	b, err = json.Marshal(m)
	if err != nil {
		return "", err
	}
	s.notify(ctx, roomID, []Change{{RoomID: roomID, Field: MessageField(id), Value: b}})
	return id, nil
}

func (s *RedisStore) Messages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	exists, err := s.rdb.Exists(ctx, s.key(roomID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	var entries []redis.XMessage
	if limit > 0 {
		entries, err = s.rdb.XRevRangeN(ctx, s.messagesKey(roomID), "+", "-", int64(limit)).Result()
	} else {
		entries, err = s.rdb.XRevRange(ctx, s.messagesKey(roomID), "+", "-").Result()
	}
	if err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		data, _ := entries[i].Values["data"].(string)
		var m Message
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", entries[i].ID, err)
		}
		m.ID = entries[i].ID
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) ClaimOnce(ctx context.Context, roomID, field string, value any) (bool, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	n, err := claimScript.Run(ctx, s.rdb, []string{s.key(roomID)}, field, string(b)).Int()
	if err != nil {
		return false, err
	}
	switch n {
	case -1:
		return false, ErrNotFound
	case 0:
		return false, nil
	}
	s.notify(ctx, roomID, []Change{{RoomID: roomID, Field: field, Value: b}})
	return true, nil
}

func (s *RedisStore) Increment(ctx context.Context, roomID, field string, delta int) (int, error) {
	n, err := incrScript.Run(ctx, s.rdb, []string{s.key(roomID)}, field, delta).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	val := json.RawMessage(strconv.Itoa(n))
	s.notify(ctx, roomID, []Change{{RoomID: roomID, Field: field, Value: val}})
	return n, nil
}

func (s *RedisStore) ClaimLeadership(ctx context.Context, roomID, holder string, now time.Time, ttl time.Duration) (Leadership, bool, error) {
	lease := leaseFor(holder, now, ttl)
	b, err := json.Marshal(lease)
	if err != nil {
		return Leadership{}, false, err
	}

	res, err := leaderScript.Run(ctx, s.rdb, []string{s.key(roomID)}, holder, now.UnixMilli(), string(b)).Slice()
	if errors.Is(err, redis.Nil) {
		return Leadership{}, false, ErrNotFound
	}
	if err != nil {
		return Leadership{}, false, err
	}
	if len(res) != 2 {
		return Leadership{}, false, fmt.Errorf("leader script: unexpected reply %v", res)
	}

	acquired, _ := res[0].(int64)
	raw, _ := res[1].(string)
	var cur Leadership
	if err := json.Unmarshal([]byte(raw), &cur); err != nil {
		return Leadership{}, false, fmt.Errorf("decode leader: %w", err)
	}
	if acquired != 1 {
		return cur, false, nil
	}
	s.notify(ctx, roomID, []Change{{RoomID: roomID, Field: FieldLeader, Value: json.RawMessage(raw)}})
	return cur, true, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, roomsKey).Result()
}

func (s *RedisStore) Delete(ctx context.Context, roomID string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, s.key(roomID))
	pipe.Del(ctx, s.messagesKey(roomID))
	pipe.SRem(ctx, roomsKey, roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	s.notify(ctx, roomID, []Change{{RoomID: roomID, Deleted: true}})
	return nil
}

// Subscribe listens on the room's change channel until the returned
// function is called.
func (s *RedisStore) Subscribe(ctx context.Context, roomID string, fn func(Change)) (func(), error) {
	ps := s.rdb.Subscribe(ctx, s.changesChannel(roomID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var batch []Change
			if err := json.Unmarshal([]byte(msg.Payload), &batch); err != nil {
				continue
			}
			for _, c := range batch {
				fn(c)
			}
		}
	}()

	return func() {
		_ = ps.Close()
		<-done
	}, nil
}

func (s *RedisStore) touch(ctx context.Context, roomID string) {
	if s.ttl > 0 {
		_ = s.rdb.Expire(ctx, s.key(roomID), s.ttl).Err()
	}
}

// notify publishes changes of an already committed write. A lost
// notification is logged and does not fail the write.
func (s *RedisStore) notify(ctx context.Context, roomID string, changes []Change) {
	if err := s.publish(ctx, roomID, changes); err != nil {
		logging.FromContext(ctx).Warnw("publish room changes failed", "room", roomID, "changes", len(changes), "error", err)
	}
}

func (s *RedisStore) publish(ctx context.Context, roomID string, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	b, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.changesChannel(roomID), b).Err()
}
