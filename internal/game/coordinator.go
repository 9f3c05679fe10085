package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/room"
	"example.com/sketch-mvp/internal/words"
	"go.uber.org/zap"
)

const (
	MaxMessageLength = 200
	RoomIDLength     = 8
)

// GameEndHook is called after a game's final state has been committed.
type GameEndHook func(ctx context.Context, r room.Room)

type Options struct {
	Catalog *words.Catalog
	Rand    Rand
	Now     func() time.Time
	NewID   func() string
}

// Coordinator applies every room transition. Operations on the same room
// are serialized in-process; each one reads a fresh snapshot and writes
// only the fields it owns.
type Coordinator struct {
	store     room.Store
	scheduler *Scheduler
	rng       Rand
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	hooks []GameEndHook
}

func NewCoordinator(store room.Store, opts Options) *Coordinator {
	if opts.Rand == nil {
		opts.Rand = FastRand{}
	}
	if opts.Catalog == nil {
		opts.Catalog = words.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return randID(RoomIDLength) }
	}
	return &Coordinator{
		store:     store,
		scheduler: NewScheduler(opts.Catalog, opts.Rand),
		rng:       opts.Rand,
		now:       opts.Now,
		newID:     opts.NewID,
		locks:     make(map[string]*sync.Mutex),
	}
}

// OnGameEnd registers a hook for finished games.
func (c *Coordinator) OnGameEnd(h GameEndHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

func (c *Coordinator) lock(roomID string) func() {
	c.mu.Lock()
	l, ok := c.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[roomID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (c *Coordinator) forget(roomID string) {
	c.mu.Lock()
	delete(c.locks, roomID)
	c.mu.Unlock()
}

func (c *Coordinator) read(ctx context.Context, roomID string) (room.Room, error) {
	r, err := c.store.Read(ctx, roomID)
	if errors.Is(err, room.ErrNotFound) {
		return room.Room{}, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return room.Room{}, fmt.Errorf("%w: read %s: %v", ErrStore, roomID, err)
	}
	return r, nil
}

func (c *Coordinator) write(ctx context.Context, roomID string, f room.Fields) error {
	err := c.store.WriteFields(ctx, roomID, f)
	if errors.Is(err, room.ErrNotFound) {
		return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		logging.FromContext(ctx).Errorw("room write failed", "room", roomID, "error", err)
		return fmt.Errorf("%w: write %s: %v", ErrStore, roomID, err)
	}
	return nil
}

func (c *Coordinator) system(ctx context.Context, roomID, text string) error {
	_, err := c.store.AppendMessage(ctx, roomID, room.Message{
		Text:      text,
		AuthorID:  "system",
		Timestamp: c.now().UnixMilli(),
		Kind:      room.MessageSystem,
	})
	if err != nil {
		logging.FromContext(ctx).Errorw("append system message failed", "room", roomID, "error", err)
		return fmt.Errorf("%w: append message: %v", ErrStore, err)
	}
	return nil
}

// Room returns a fresh snapshot with the latest messages.
func (c *Coordinator) Room(ctx context.Context, roomID string, messages int) (room.Room, error) {
	r, err := c.read(ctx, roomID)
	if err != nil {
		return room.Room{}, err
	}
	if messages > 0 {
		msgs, err := c.store.Messages(ctx, roomID, messages)
		if err != nil && !errors.Is(err, room.ErrNotFound) {
			return room.Room{}, fmt.Errorf("%w: messages: %v", ErrStore, err)
		}
		r.Messages = msgs
	}
	return r, nil
}

func (c *Coordinator) CreateRoom(ctx context.Context, hostID, hostName string, s Settings) (room.Room, error) {
	hostName = strings.TrimSpace(hostName)
	if hostID == "" || hostName == "" {
		return room.Room{}, validationf("host identity is required")
	}
	s = s.withDefaults(hostName)
	if err := s.validate(1); err != nil {
		return room.Room{}, err
	}

	now := c.now()
	r := room.Room{
		ID:                  c.newID(),
		Name:                s.Name,
		HostID:              hostID,
		Phase:               room.PhaseWaiting,
		MaxPlayers:          s.MaxPlayers,
		TotalRounds:         s.TotalRounds,
		DrawDurationSeconds: s.DrawDurationSeconds,
		CreatedAt:           now.UnixMilli(),
		GuessedPlayerIDs:    map[string]bool{},
		Players: map[string]room.Player{
			hostID: {ID: hostID, Name: hostName, IsHost: true, JoinedAt: now.UnixMilli()},
		},
	}
	if err := c.store.Create(ctx, r); err != nil {
		logging.FromContext(ctx).Errorw("create room failed", "host", hostID, "error", err)
		return room.Room{}, fmt.Errorf("%w: create: %v", ErrStore, err)
	}
	logging.FromContext(ctx).Infow("room created", "room", r.ID, "host", hostID)
	return r, nil
}

// JoinRoom adds a player. Joining again with the same id is a no-op.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID, playerID, name string) (_ room.Room, err error) {
	defer func() { logFailure(ctx, "join", roomID, playerID, err) }()

	name = strings.TrimSpace(name)
	if playerID == "" || name == "" {
		return room.Room{}, validationf("player identity is required")
	}

	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return room.Room{}, err
	}
	if r.HasPlayer(playerID) {
		return r, nil
	}
	if len(r.Players) >= r.MaxPlayers {
		return room.Room{}, validationf("room is full")
	}

	// вернувшийся в том же раунде уже угадал
	p := room.Player{ID: playerID, Name: name, JoinedAt: c.now().UnixMilli(), HasGuessed: r.GuessClaims[playerID]}
	if err := c.write(ctx, roomID, room.PlayerFields(p)); err != nil {
		return room.Room{}, err
	}
	_ = c.system(ctx, roomID, fmt.Sprintf("%s joined the room", name))

	r.Players[playerID] = p
	if p.HasGuessed {
		r.GuessedPlayerIDs[playerID] = true
	}
	return r, nil
}

// LeaveRoom removes a player. The host leaving closes the room.
func (c *Coordinator) LeaveRoom(ctx context.Context, roomID, playerID string) (err error) {
	defer func() { logFailure(ctx, "leave", roomID, playerID, err) }()

	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return err
	}
	if playerID == r.HostID {
		return c.deleteLocked(ctx, roomID)
	}
	p, ok := r.Players[playerID]
	if !ok {
		return nil
	}

	if err := c.write(ctx, roomID, room.RemovePlayerFields(playerID)); err != nil {
		return err
	}
	_ = c.system(ctx, roomID, fmt.Sprintf("%s left the room", p.Name))

	delete(r.Players, playerID)
	delete(r.GuessedPlayerIDs, playerID)

	switch {
	case r.Phase.InRound() && playerID == r.CurrentDrawerID:
		return c.endRound(ctx, r)
	case r.Phase == room.PhaseDrawing && r.AllGuessed() && r.TimerSeconds > 1:
		return c.write(ctx, roomID, room.Fields{room.FieldTimerSeconds: 1})
	}
	return nil
}

func (c *Coordinator) UpdateSettings(ctx context.Context, roomID, actorID string, patch SettingsPatch) (_ room.Room, err error) {
	defer func() { logFailure(ctx, "settings", roomID, actorID, err) }()

	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return room.Room{}, err
	}
	if actorID != r.HostID {
		return room.Room{}, fmt.Errorf("%w: only the host can change settings", ErrForbidden)
	}
	if r.Phase != room.PhaseWaiting {
		return room.Room{}, stalef("settings are locked once the game has started")
	}
	if patch.Empty() {
		return r, nil
	}

	s := patch.apply(Settings{
		Name:                r.Name,
		MaxPlayers:          r.MaxPlayers,
		TotalRounds:         r.TotalRounds,
		DrawDurationSeconds: r.DrawDurationSeconds,
	})
	if err := s.validate(len(r.Players)); err != nil {
		return room.Room{}, err
	}

	f := room.Fields{}
	if patch.Name != nil {
		f[room.FieldName] = s.Name
	}
	if patch.MaxPlayers != nil {
		f[room.FieldMaxPlayers] = s.MaxPlayers
	}
	if patch.TotalRounds != nil {
		f[room.FieldTotalRounds] = s.TotalRounds
	}
	if patch.DrawDurationSeconds != nil {
		f[room.FieldDrawDurationSeconds] = s.DrawDurationSeconds
	}
	if err := c.write(ctx, roomID, f); err != nil {
		return room.Room{}, err
	}

	r.Name, r.MaxPlayers, r.TotalRounds, r.DrawDurationSeconds = s.Name, s.MaxPlayers, s.TotalRounds, s.DrawDurationSeconds
	return r, nil
}

// ListRooms returns the rooms still waiting for players.
func (c *Coordinator) ListRooms(ctx context.Context) ([]room.Room, error) {
	ids, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrStore, err)
	}
	out := make([]room.Room, 0, len(ids))
	for _, id := range ids {
		r, err := c.store.Read(ctx, id)
		if errors.Is(err, room.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrStore, id, err)
		}
		if r.Phase == room.PhaseWaiting {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Coordinator) DeleteRoom(ctx context.Context, roomID, actorID string) (err error) {
	defer func() { logFailure(ctx, "delete", roomID, actorID, err) }()

	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return err
	}
	if actorID != r.HostID {
		return fmt.Errorf("%w: only the host can delete the room", ErrForbidden)
	}
	return c.deleteLocked(ctx, roomID)
}

func (c *Coordinator) deleteLocked(ctx context.Context, roomID string) error {
	err := c.store.Delete(ctx, roomID)
	if errors.Is(err, room.ErrNotFound) {
		return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStore, roomID, err)
	}
	c.forget(roomID)
	logging.FromContext(ctx).Infow("room deleted", "room", roomID)
	return nil
}

// PostMessage posts a chat line. While drawing, lines from players who
// still have to guess are evaluated as guesses.
func (c *Coordinator) PostMessage(ctx context.Context, roomID, playerID, text string) (GuessResult, error) {
	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return GuessResult{}, err
	}
	if r.Phase == room.PhaseDrawing && playerID != r.CurrentDrawerID && !r.GuessedPlayerIDs[playerID] {
		return c.submitGuessLocked(ctx, roomID, playerID, text)
	}

	p, ok := r.Players[playerID]
	if !ok {
		return GuessResult{}, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	text, err = cleanText(text)
	if err != nil {
		return GuessResult{}, err
	}
	if err := c.chat(ctx, roomID, p, text); err != nil {
		return GuessResult{}, err
	}
	return GuessResult{Accepted: true}, nil
}

func (c *Coordinator) chat(ctx context.Context, roomID string, p room.Player, text string) error {
	_, err := c.store.AppendMessage(ctx, roomID, room.Message{
		Text:       text,
		AuthorID:   p.ID,
		AuthorName: p.Name,
		Timestamp:  c.now().UnixMilli(),
		Kind:       room.MessageRegular,
	})
	if err != nil {
		logging.FromContext(ctx).Errorw("append message failed", "room", roomID, "player", p.ID, "error", err)
		return fmt.Errorf("%w: append message: %v", ErrStore, err)
	}
	return nil
}

// RecordStroke relays a drawing op from the current drawer.
func (c *Coordinator) RecordStroke(ctx context.Context, roomID, playerID string, s room.Stroke) (err error) {
	defer func() { logFailure(ctx, "stroke", roomID, playerID, err) }()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return err
	}
	if r.Phase != room.PhaseDrawing {
		return stalef("strokes are accepted only while drawing")
	}
	if playerID != r.CurrentDrawerID {
		return fmt.Errorf("%w: only the drawer can draw", ErrForbidden)
	}
	if s.Action != room.StrokeDraw && s.Action != room.StrokeClear {
		return validationf("unknown stroke action %q", s.Action)
	}
	if s.Action == room.StrokeDraw && (s.From == nil || s.To == nil) {
		return validationf("draw stroke needs from and to")
	}
	if s.Timestamp == 0 {
		s.Timestamp = c.now().UnixMilli()
	}
	return c.write(ctx, roomID, room.Fields{room.FieldLastStroke: s})
}

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", validationf("message is empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", validationf("message longer than %d characters", MaxMessageLength)
	}
	return text, nil
}

func logFailure(ctx context.Context, op, roomID, playerID string, err error) {
	if err == nil || errors.Is(err, ErrStaleState) {
		return
	}
	logging.FromContext(ctx).Desugar().Warn("room operation failed",
		zap.String("op", op),
		zap.String("room", roomID),
		zap.String("player", playerID),
		zap.Error(err),
	)
}
