package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"example.com/sketch-mvp/internal/game"
	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/room"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// SnapshotMessages is how many chat lines a fresh connection receives.
const SnapshotMessages = 50

// Game is the part of the coordinator a connection drives.
type Game interface {
	Room(ctx context.Context, roomID string, messages int) (room.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	StartGame(ctx context.Context, roomID, actorID string) error
	ChooseWord(ctx context.Context, roomID, actorID, word string) error
	PostMessage(ctx context.Context, roomID, playerID, text string) (game.GuessResult, error)
	SubmitGuess(ctx context.Context, roomID, playerID, text string) (game.GuessResult, error)
	RecordStroke(ctx context.Context, roomID, playerID string, s room.Stroke) error
	ResetGame(ctx context.Context, roomID, actorID string) error
}

type Options struct {
	// ChatRate and ChatBurst limit chat and guess frames per connection.
	ChatRate  rate.Limit
	ChatBurst int
}

// Hub fans room changes out to the WebSocket clients of that room.
type Hub struct {
	game     Game
	store    room.Store
	opts     Options
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*channel
}

// channel is the set of local connections watching one room.
type channel struct {
	mu          sync.Mutex
	clients     map[*Client]struct{}
	drawerID    string
	drawerSeen  bool
	unsubscribe func()
}

// seedDrawer sets the drawer read at attach time unless a newer change
// already arrived through the subscription.
func (ch *channel) seedDrawer(id string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !ch.drawerSeen {
		ch.drawerID = id
	}
}

func NewHub(g Game, store room.Store, opts Options) *Hub {
	if opts.ChatRate <= 0 {
		opts.ChatRate = 2
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = 5
	}
	return &Hub{
		game:  g,
		store: store,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // MVP
		},
		rooms: make(map[string]*channel),
	}
}

// Serve upgrades the request and runs the connection of an already joined
// player until either side closes it.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, roomID, playerID, name string) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugw("ws upgrade failed", "room", roomID, "error", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	c := newClient(ws, playerID, name, rate.NewLimiter(h.opts.ChatRate, h.opts.ChatBurst))
	go c.writeLoop()

	if err := h.attach(ctx, roomID, c); err != nil {
		log.Warnw("ws attach failed", "room", roomID, "player", playerID, "error", err)
		c.enqueue(frame(TypeError, ErrorPayload{Code: game.ErrorCode(err), Message: "room unavailable"}))
		c.Close()
		return
	}
	defer func() {
		h.detach(roomID, c)
		c.Close()
	}()

	if err := h.sendSnapshot(ctx, roomID, c); err != nil {
		h.sendError(c, err)
		return
	}
	log.Debugw("ws connected", "room", roomID, "player", playerID)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Debugw("ws closed", "room", roomID, "player", playerID, "error", err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.enqueue(frame(TypeError, ErrorPayload{Code: game.CodeValidation, Message: "bad json"}))
			continue
		}
		if stop := h.handle(ctx, roomID, c, env); stop {
			return
		}
	}
}

// handle runs one client frame. It reports whether the connection should end.
func (h *Hub) handle(ctx context.Context, roomID string, c *Client, env Envelope) bool {
	var err error
	switch env.Type {
	case TypeChat, TypeGuess:
		var p TextPayload
		if err = decode(env.Payload, &p); err != nil {
			break
		}
		if !c.limiter.Allow() {
			c.enqueue(frame(TypeError, ErrorPayload{Code: CodeRateLimited, Message: "slow down"}))
			return false
		}
		var res game.GuessResult
		if env.Type == TypeGuess {
			res, err = h.game.SubmitGuess(ctx, roomID, c.playerID, p.Text)
		} else {
			res, err = h.game.PostMessage(ctx, roomID, c.playerID, p.Text)
		}
		if err == nil && (env.Type == TypeGuess || res.Correct || res.Close) {
			c.enqueue(frame(TypeGuessResult, res))
		}

	case TypeChooseWord:
		var p WordPayload
		if err = decode(env.Payload, &p); err == nil {
			err = h.game.ChooseWord(ctx, roomID, c.playerID, p.Word)
		}

	case TypeStroke:
		var s room.Stroke
		if err = decode(env.Payload, &s); err == nil {
			err = h.game.RecordStroke(ctx, roomID, c.playerID, s)
		}

	case TypeStart:
		err = h.game.StartGame(ctx, roomID, c.playerID)

	case TypeReset:
		err = h.game.ResetGame(ctx, roomID, c.playerID)

	case TypeLeave:
		if err = h.game.LeaveRoom(ctx, roomID, c.playerID); err == nil {
			return true
		}

	default:
		c.enqueue(frame(TypeError, ErrorPayload{Code: CodeUnknownType, Message: "unknown type: " + env.Type}))
		return false
	}

	if err != nil {
		h.sendError(c, err)
	}
	return false
}

const (
	CodeRateLimited = "rate_limited"
	CodeUnknownType = "unknown_type"
)

var errBadPayload = errors.New("bad payload")

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

func (h *Hub) sendError(c *Client, err error) {
	code := game.ErrorCode(err)
	msg := err.Error()
	switch {
	case errors.Is(err, errBadPayload):
		code = game.CodeValidation
	case code == game.CodeStore || code == game.CodeInternal:
		msg = "internal error"
	}
	c.enqueue(frame(TypeError, ErrorPayload{Code: code, Message: msg}))
}

func (h *Hub) sendSnapshot(ctx context.Context, roomID string, c *Client) error {
	r, err := h.game.Room(ctx, roomID, SnapshotMessages)
	if err != nil {
		return err
	}
	c.enqueue(frame(TypeSnapshot, SnapshotPayload{You: c.playerID, Room: r.VisibleTo(c.playerID)}))
	return nil
}

func (h *Hub) attach(ctx context.Context, roomID string, c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.rooms[roomID]
	if !ok {
		ch = &channel{clients: make(map[*Client]struct{})}
		// подписка живёт, пока в комнате есть хоть одно соединение
		unsub, err := h.store.Subscribe(context.WithoutCancel(ctx), roomID, ch.dispatch)
		if err != nil {
			return err
		}
		// read after subscribing so no drawer change falls between the two
		r, err := h.game.Room(ctx, roomID, 0)
		if err != nil {
			unsub()
			return err
		}
		ch.seedDrawer(r.CurrentDrawerID)
		ch.unsubscribe = unsub
		h.rooms[roomID] = ch
	}

	ch.mu.Lock()
	ch.clients[c] = struct{}{}
	ch.mu.Unlock()
	return nil
}

func (h *Hub) detach(roomID string, c *Client) {
	h.mu.Lock()
	ch, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	ch.mu.Lock()
	delete(ch.clients, c)
	empty := len(ch.clients) == 0
	ch.mu.Unlock()
	if empty {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	if empty {
		ch.unsubscribe()
	}
}

// Clients is the number of local connections watching roomID.
func (h *Hub) Clients(roomID string) int {
	h.mu.Lock()
	ch, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.clients)
}

// Close disconnects every client. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*channel)
	h.mu.Unlock()

	for _, ch := range rooms {
		ch.unsubscribe()
		ch.mu.Lock()
		for c := range ch.clients {
			c.Close()
		}
		ch.mu.Unlock()
	}
}

func (ch *channel) dispatch(change room.Change) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	switch {
	case change.RoomClosed():
		msg := frame(TypeRoomClosed, struct {
			RoomID string `json:"roomId"`
		}{change.RoomID})
		for c := range ch.clients {
			c.enqueue(msg)
			c.Close()
		}
		return

	case room.IsMessageField(change.Field):
		if change.Deleted {
			return
		}
		msg := frame(TypeMessage, change.Value)
		for c := range ch.clients {
			c.enqueue(msg)
		}
		return

	case change.Field == room.FieldLeader:
		return

	case change.Field == room.FieldCurrentDrawerID:
		ch.drawerID = ""
		ch.drawerSeen = true
		if !change.Deleted {
			_ = json.Unmarshal(change.Value, &ch.drawerID)
		}
	}

	msg := frame(TypeFields, FieldPayload{Field: change.Field, Value: change.Value, Deleted: change.Deleted})
	secret := !change.Deleted && (change.Field == room.FieldCurrentWord || change.Field == room.FieldWordOptions)
	for c := range ch.clients {
		if secret && c.playerID != ch.drawerID {
			continue
		}
		c.enqueue(msg)
	}
}
