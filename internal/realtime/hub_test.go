package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/sketch-mvp/internal/game"
	"example.com/sketch-mvp/internal/room"
	"example.com/sketch-mvp/internal/words"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

type fixture struct {
	store *room.MemStore
	coord *game.Coordinator
	hub   *Hub
	srv   *httptest.Server
	room  string
}

// newFixture creates a room hosted by "a" (Alice) with "b" (Bob) joined.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	cat, err := words.New([]string{"cat", "dog", "sun"})
	require.NoError(t, err)

	store := room.NewMemStore()
	coord := game.NewCoordinator(store, game.Options{
		Catalog: cat,
		Rand:    firstRand{},
		NewID:   func() string { return "room1" },
	})
	ctx := context.Background()
	r, err := coord.CreateRoom(ctx, "a", "Alice", game.Settings{})
	require.NoError(t, err)
	_, err = coord.JoinRoom(ctx, r.ID, "b", "Bob")
	require.NoError(t, err)

	hub := NewHub(coord, store, opts)
	// в тесте игрок берётся прямо из query, без токена
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		hub.Serve(w, req, q.Get("room"), q.Get("player"), q.Get("player"))
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &fixture{store: store, coord: coord, hub: hub, srv: srv, room: r.ID}
}

func (f *fixture) dial(t *testing.T, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?room=" + f.room + "&player=" + player
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, typ string, payload any) {
	t.Helper()
	env := Envelope{Type: typ}
	if payload != nil {
		env.Payload = mustJSON(payload)
	}
	require.NoError(t, ws.WriteJSON(env))
}

func readFrame(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, ws.ReadJSON(&env))
	return env
}

// readUntil returns every frame up to and including the first match.
func readUntil(t *testing.T, ws *websocket.Conn, match func(Envelope) bool) []Envelope {
	t.Helper()
	var seen []Envelope
	for {
		env := readFrame(t, ws)
		seen = append(seen, env)
		if match(env) {
			return seen
		}
	}
}

func isType(typ string) func(Envelope) bool {
	return func(e Envelope) bool { return e.Type == typ }
}

func isField(name string) func(Envelope) bool {
	return func(e Envelope) bool {
		if e.Type != TypeFields {
			return false
		}
		var p FieldPayload
		return json.Unmarshal(e.Payload, &p) == nil && p.Field == name
	}
}

func isMessage(substr string) func(Envelope) bool {
	return func(e Envelope) bool {
		if e.Type != TypeMessage {
			return false
		}
		var m room.Message
		return json.Unmarshal(e.Payload, &m) == nil && strings.Contains(m.Text, substr)
	}
}

func fieldsNamed(frames []Envelope, name string) []FieldPayload {
	var out []FieldPayload
	for _, e := range frames {
		var p FieldPayload
		if e.Type == TypeFields && json.Unmarshal(e.Payload, &p) == nil && p.Field == name {
			out = append(out, p)
		}
	}
	return out
}

func snapshotOf(t *testing.T, env Envelope) SnapshotPayload {
	t.Helper()
	require.Equal(t, TypeSnapshot, env.Type)
	var s SnapshotPayload
	require.NoError(t, json.Unmarshal(env.Payload, &s))
	return s
}

func TestHub_RoundFlow(t *testing.T) {
	f := newFixture(t, Options{})
	alice := f.dial(t, "a")
	bob := f.dial(t, "b")

	snapA := snapshotOf(t, readFrame(t, alice))
	snapB := snapshotOf(t, readFrame(t, bob))
	assert.Equal(t, "a", snapA.You)
	assert.Equal(t, "b", snapB.You)
	assert.Len(t, snapB.Room.Players, 2)
	assert.Nil(t, snapB.Room.Leader)
	assert.NotEmpty(t, snapB.Room.Messages, "join message is part of the snapshot")

	send(t, alice, TypeStart, nil)

	framesA := readUntil(t, alice, isMessage("is choosing a word"))
	framesB := readUntil(t, bob, isMessage("is choosing a word"))

	optsA := fieldsNamed(framesA, room.FieldWordOptions)
	require.Len(t, optsA, 1)
	var options []string
	require.NoError(t, json.Unmarshal(optsA[0].Value, &options))
	require.Len(t, options, game.WordOptionsCount)

	assert.Empty(t, fieldsNamed(framesB, room.FieldWordOptions), "guessers never see the options")
	assert.NotEmpty(t, fieldsNamed(framesB, room.FieldPhase))

	send(t, alice, TypeChooseWord, WordPayload{Word: options[0]})

	readUntil(t, alice, isField(room.FieldHints))
	framesB = readUntil(t, bob, isField(room.FieldHints))
	assert.Empty(t, fieldsNamed(framesB, room.FieldCurrentWord), "guessers never see the word")

	// снапшот угадывающего тоже без слова
	late := f.dial(t, "b")
	snap := snapshotOf(t, readFrame(t, late))
	assert.Empty(t, snap.Room.CurrentWord)
	assert.Empty(t, snap.Room.WordOptions)
	assert.Len(t, snap.Room.Hints, len([]rune(options[0])))

	send(t, bob, TypeGuess, TextPayload{Text: strings.ToUpper(options[0])})
	frames := readUntil(t, bob, isType(TypeGuessResult))
	var res game.GuessResult
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Payload, &res))
	assert.True(t, res.Correct)
	assert.Equal(t, game.MaxGuessPoints, res.Points)

	readUntil(t, alice, isMessage("guessed the word correctly"))
	r, err := f.store.Read(context.Background(), f.room)
	require.NoError(t, err)
	assert.Equal(t, game.MaxGuessPoints, r.Players["b"].Score)
	assert.Equal(t, game.DrawerBonus, r.Players["a"].Score)
}

func TestHub_Errors(t *testing.T) {
	tests := []struct {
		name     string
		scenario func(t *testing.T, f *fixture, bob *websocket.Conn)
	}{
		{
			name: "unknown frame type",
			scenario: func(t *testing.T, f *fixture, bob *websocket.Conn) {
				send(t, bob, "dance", nil)
				env := readFrame(t, bob)
				require.Equal(t, TypeError, env.Type)
				assert.Contains(t, string(env.Payload), CodeUnknownType)
			},
		},
		{
			name: "only the host starts",
			scenario: func(t *testing.T, f *fixture, bob *websocket.Conn) {
				send(t, bob, TypeStart, nil)
				env := readFrame(t, bob)
				require.Equal(t, TypeError, env.Type)
				assert.Contains(t, string(env.Payload), game.CodeForbidden)
			},
		},
		{
			name: "chat without payload",
			scenario: func(t *testing.T, f *fixture, bob *websocket.Conn) {
				send(t, bob, TypeChat, nil)
				env := readFrame(t, bob)
				require.Equal(t, TypeError, env.Type)
				assert.Contains(t, string(env.Payload), game.CodeValidation)
			},
		},
		{
			name: "stroke outside drawing",
			scenario: func(t *testing.T, f *fixture, bob *websocket.Conn) {
				send(t, bob, TypeStroke, room.Stroke{Action: room.StrokeClear})
				env := readFrame(t, bob)
				require.Equal(t, TypeError, env.Type)
				assert.Contains(t, string(env.Payload), game.CodeStaleState)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			bob := f.dial(t, "b")
			snapshotOf(t, readFrame(t, bob))
			tt.scenario(t, f, bob)
		})
	}
}

func TestHub_ChatRateLimit(t *testing.T) {
	f := newFixture(t, Options{ChatRate: rate.Every(time.Hour), ChatBurst: 1})
	bob := f.dial(t, "b")
	snapshotOf(t, readFrame(t, bob))

	send(t, bob, TypeChat, TextPayload{Text: "hi"})
	readUntil(t, bob, isMessage("hi"))

	send(t, bob, TypeChat, TextPayload{Text: "hi again"})
	env := readFrame(t, bob)
	require.Equal(t, TypeError, env.Type)
	assert.Contains(t, string(env.Payload), CodeRateLimited)
}

func TestHub_HostLeaveClosesRoom(t *testing.T) {
	f := newFixture(t, Options{})
	alice := f.dial(t, "a")
	bob := f.dial(t, "b")
	snapshotOf(t, readFrame(t, alice))
	snapshotOf(t, readFrame(t, bob))
	require.Equal(t, 2, f.hub.Clients(f.room))

	send(t, alice, TypeLeave, nil)

	readUntil(t, bob, isType(TypeRoomClosed))
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := bob.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Eventually(t, func() bool { return f.hub.Clients(f.room) == 0 }, 2*time.Second, 10*time.Millisecond)
	_, err = f.store.Read(context.Background(), f.room)
	assert.ErrorIs(t, err, room.ErrNotFound)
}

// drawerSwapStore commits a drawer change right before each subscription is
// registered, the way another process can between two reads.
type drawerSwapStore struct {
	*room.MemStore
	drawer string
}

func (s *drawerSwapStore) Subscribe(ctx context.Context, roomID string, fn func(room.Change)) (func(), error) {
	if err := s.MemStore.WriteFields(ctx, roomID, room.Fields{room.FieldCurrentDrawerID: s.drawer}); err != nil {
		return nil, err
	}
	return s.MemStore.Subscribe(ctx, roomID, fn)
}

func TestHub_AttachSeesDrawerChangedDuringSubscribe(t *testing.T) {
	f := newFixture(t, Options{})
	hub := NewHub(f.coord, &drawerSwapStore{MemStore: f.store, drawer: "b"}, Options{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hub.Serve(w, req, f.room, req.URL.Query().Get("player"), "")
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?player=b", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	snapshotOf(t, readFrame(t, ws))

	require.NoError(t, f.store.WriteFields(context.Background(), f.room, room.Fields{room.FieldCurrentWord: "cat"}))
	frames := readUntil(t, ws, isField(room.FieldCurrentWord))
	assert.Len(t, fieldsNamed(frames, room.FieldCurrentWord), 1)
}

func TestChannel_SeedDoesNotOverrideNewerDrawer(t *testing.T) {
	ch := &channel{clients: make(map[*Client]struct{})}
	ch.dispatch(room.Change{RoomID: "room1", Field: room.FieldCurrentDrawerID, Value: mustJSON("b")})
	ch.seedDrawer("a")
	assert.Equal(t, "b", ch.drawerID)

	fresh := &channel{clients: make(map[*Client]struct{})}
	fresh.seedDrawer("a")
	assert.Equal(t, "a", fresh.drawerID)
}
