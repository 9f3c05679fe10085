//go:build integration

package room

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, rdb.Ping(ctx).Err(), "redis is not reachable")
	return rdb
}

func TestRedisStore_Document(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)

	// Чистим Redis, чтобы тест был детерминированный
	require.NoError(t, rdb.FlushDB(ctx).Err())

	s := NewRedisStore(rdb, time.Hour)
	require.NoError(t, s.Create(ctx, newTestRoom("r1")))

	require.NoError(t, s.WriteFields(ctx, "r1", Fields{
		FieldPhase:       PhaseDrawing,
		FieldCurrentWord: "apple",
		FieldRotation:    []string{"a", "b"},
	}))
	require.NoError(t, s.WriteFields(ctx, "r1", Fields{FieldCurrentWord: nil}))

	r, err := s.Read(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, PhaseDrawing, r.Phase)
	assert.Empty(t, r.CurrentWord)
	assert.Equal(t, []string{"a", "b"}, r.Rotation)
	assert.Len(t, r.Players, 2)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "r1")

	err = s.WriteFields(ctx, "missing", Fields{FieldPhase: PhaseDrawing})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ConditionalPrimitives(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	s := NewRedisStore(rdb, time.Hour)
	require.NoError(t, s.Create(ctx, newTestRoom("r1")))

	// две параллельные попытки засчитать одну и ту же догадку
	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.ClaimOnce(ctx, "r1", GuessedField("b"), true)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()
	assert.ElementsMatch(t, []bool{true, false}, results)

	n, err := s.Increment(ctx, "r1", PlayerField("b", AttrScore), 80)
	require.NoError(t, err)
	assert.Equal(t, 80, n)

	now := time.UnixMilli(50_000)
	_, ok, err := s.ClaimLeadership(ctx, "r1", "p1", now, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	l, ok, err := s.ClaimLeadership(ctx, "r1", "p2", now.Add(time.Second), 2*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "p1", l.Holder)
	_, ok, err = s.ClaimLeadership(ctx, "r1", "p2", now.Add(2*time.Second), 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Increment(ctx, "missing", PlayerField("b", AttrScore), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_MessagesAndSubscribe(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	s := NewRedisStore(rdb, time.Hour)
	require.NoError(t, s.Create(ctx, newTestRoom("r1")))

	got := make(chan Change, 16)
	unsub, err := s.Subscribe(ctx, "r1", func(c Change) { got <- c })
	require.NoError(t, err)
	defer unsub()

	_, err = s.AppendMessage(ctx, "r1", Message{Text: "hello", AuthorID: "a", Kind: MessageRegular})
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "r1", Message{Text: "world", AuthorID: "b", Kind: MessageRegular})
	require.NoError(t, err)

	msgs, err := s.Messages(ctx, "r1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "world", msgs[1].Text)

	select {
	case c := <-got:
		assert.True(t, IsMessageField(c.Field))
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	require.NoError(t, s.Delete(ctx, "r1"))
	_, err = s.Read(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// dropPublish fails every PUBLISH and passes the rest through.
type dropPublish struct{}

func (dropPublish) DialHook(next redis.DialHook) redis.DialHook { return next }

func (dropPublish) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "publish" {
			err := errors.New("publish unavailable")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (dropPublish) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStore_CommittedWriteSurvivesLostPublish(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())
	rdb.AddHook(dropPublish{})

	s := NewRedisStore(rdb, time.Hour)
	require.NoError(t, s.Create(ctx, newTestRoom("r1")))
	require.NoError(t, s.WriteFields(ctx, "r1", Fields{FieldPhase: PhaseDrawing}))

	ok, err := s.ClaimOnce(ctx, "r1", GuessedField("b"), true)
	require.NoError(t, err)
	assert.True(t, ok)

	// повтор после «ошибки» не должен засчитаться второй раз
	ok, err = s.ClaimOnce(ctx, "r1", GuessedField("b"), true)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Increment(ctx, "r1", PlayerField("b", AttrScore), 80)
	require.NoError(t, err)
	assert.Equal(t, 80, n)

	_, err = s.AppendMessage(ctx, "r1", Message{AuthorID: "b", AuthorName: "Bob", Text: "hi", Kind: MessageRegular})
	require.NoError(t, err)

	r, err := s.Read(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, PhaseDrawing, r.Phase)
	assert.True(t, r.GuessedPlayerIDs["b"])
	assert.Equal(t, 80, r.Players["b"].Score)
}
