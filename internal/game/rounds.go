package game

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/room"
	"github.com/enescakir/emoji"
)

// StartGame moves a waiting room into its first round.
func (c *Coordinator) StartGame(ctx context.Context, roomID, actorID string) (err error) {
	defer func() { logFailure(ctx, "start", roomID, actorID, err) }()

	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return err
	}
	if actorID != r.HostID {
		return fmt.Errorf("%w: only the host can start the game", ErrForbidden)
	}
	if r.Phase != room.PhaseWaiting {
		return stalef("game already started")
	}
	if len(r.Players) < MinPlayers {
		return validationf("need at least %d players to start", MinPlayers)
	}

	options, err := c.scheduler.WordOptions()
	if err != nil {
		return err
	}
	rotation := FreezeRotation(r.PlayerList())

	f := room.Fields{
		room.FieldRotation:   rotation,
		room.FieldWinners:    nil,
		room.FieldLastStroke: room.ClearStroke(c.now()),
	}
	for _, p := range r.Players {
		f[room.PlayerField(p.ID, room.AttrScore)] = 0
	}
	f.Merge(c.roundFields(r, 1, rotation[0], options))

	if err := c.write(ctx, roomID, f); err != nil {
		return err
	}
	logging.FromContext(ctx).Infow("game started", "room", roomID, "players", len(rotation))
	return c.system(ctx, roomID, fmt.Sprintf("%s Round 1: %s is choosing a word", emoji.Pen, r.Players[rotation[0]].Name))
}

// roundFields resets per-round state for a new choosing phase.
func (c *Coordinator) roundFields(r room.Room, round int, drawerID string, options []string) room.Fields {
	f := room.Fields{
		room.FieldPhase:           room.PhaseChoosing,
		room.FieldRoundNumber:     round,
		room.FieldCurrentDrawerID: drawerID,
		room.FieldWordOptions:     options,
		room.FieldTimerSeconds:    ChoosingSeconds,
		room.FieldCurrentWord:     nil,
		room.FieldHints:           nil,
	}
	for id := range r.GuessClaims {
		f[room.GuessedField(id)] = nil
	}
	for _, p := range r.Players {
		f[room.PlayerField(p.ID, room.AttrHasGuessed)] = false
	}
	return f
}

// ChooseWord commits the drawer's pick and starts drawing.
func (c *Coordinator) ChooseWord(ctx context.Context, roomID, actorID, word string) (err error) {
	defer func() { logFailure(ctx, "choose_word", roomID, actorID, err) }()

	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return err
	}
	if r.Phase != room.PhaseChoosing {
		return stalef("no word to choose")
	}
	if actorID != r.CurrentDrawerID {
		return fmt.Errorf("%w: only the drawer can choose the word", ErrForbidden)
	}
	word = strings.TrimSpace(word)
	if !slices.Contains(r.WordOptions, word) {
		return validationf("%q is not one of the offered words", word)
	}
	return c.beginDrawing(ctx, r, word)
}

func (c *Coordinator) beginDrawing(ctx context.Context, r room.Room, word string) error {
	return c.write(ctx, r.ID, room.Fields{
		room.FieldPhase:        room.PhaseDrawing,
		room.FieldCurrentWord:  word,
		room.FieldHints:        Mask(word),
		room.FieldTimerSeconds: r.DrawDurationSeconds,
	})
}

// Tick advances the room clock by one second. Only the lease holder calls it.
func (c *Coordinator) Tick(ctx context.Context, roomID string) (err error) {
	defer func() { logFailure(ctx, "tick", roomID, "", err) }()

	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return err
	}

	// рисующий ушёл, а раунд ещё идёт
	if r.Phase.InRound() && !r.HasPlayer(r.CurrentDrawerID) {
		return c.endRound(ctx, r)
	}

	timer := r.TimerSeconds - 1
	switch r.Phase {
	case room.PhaseChoosing:
		if timer > 0 {
			return c.write(ctx, roomID, room.Fields{room.FieldTimerSeconds: timer})
		}
		if len(r.WordOptions) == 0 {
			opts, err := c.scheduler.WordOptions()
			if err != nil {
				return err
			}
			r.WordOptions = opts
		}
		return c.beginDrawing(ctx, r, r.WordOptions[0])

	case room.PhaseDrawing:
		// a forced timer=1 from another process may have been overwritten
		if timer <= 0 || r.AllGuessed() {
			return c.endRound(ctx, r)
		}
		f := room.Fields{room.FieldTimerSeconds: timer}
		if HintDue(r.DrawDurationSeconds, timer) {
			if next := RevealNext(r.CurrentWord, r.Hints, c.rng); Revealed(next) > Revealed(r.Hints) {
				f[room.FieldHints] = next
			}
		}
		return c.write(ctx, roomID, f)

	case room.PhaseRoundEnd:
		if timer > 0 {
			return c.write(ctx, roomID, room.Fields{room.FieldTimerSeconds: timer})
		}
		return c.advance(ctx, r)
	}
	return nil
}

func (c *Coordinator) endRound(ctx context.Context, r room.Room) error {
	if err := c.write(ctx, r.ID, room.Fields{
		room.FieldPhase:        room.PhaseRoundEnd,
		room.FieldTimerSeconds: RoundEndSeconds,
	}); err != nil {
		return err
	}
	if r.CurrentWord == "" {
		return c.system(ctx, r.ID, "The drawer left, skipping the turn")
	}
	return c.system(ctx, r.ID, fmt.Sprintf("The word was: %s", r.CurrentWord))
}

// advance starts the next round from the frozen rotation, or ends the game.
func (c *Coordinator) advance(ctx context.Context, r room.Room) error {
	limit := r.TotalRounds * len(r.Rotation)
	next := r.RoundNumber + 1
	for next <= limit && !r.HasPlayer(DrawerFor(r.Rotation, next)) {
		next++
	}
	if next > limit || len(r.Players) < MinPlayers {
		return c.endGame(ctx, r)
	}

	options, err := c.scheduler.WordOptions()
	if err != nil {
		return err
	}
	drawer := DrawerFor(r.Rotation, next)
	f := c.roundFields(r, next, drawer, options)
	f[room.FieldLastStroke] = room.ClearStroke(c.now())
	if err := c.write(ctx, r.ID, f); err != nil {
		return err
	}
	return c.system(ctx, r.ID, fmt.Sprintf("%s Round %d: %s is choosing a word", emoji.Pen, next, r.Players[drawer].Name))
}

func (c *Coordinator) endGame(ctx context.Context, r room.Room) error {
	winners := Winners(r.PlayerList())
	if err := c.write(ctx, r.ID, room.Fields{
		room.FieldPhase:        room.PhaseGameEnd,
		room.FieldWinners:      winners,
		room.FieldTimerSeconds: 0,
	}); err != nil {
		return err
	}
	if len(winners) > 0 {
		_ = c.system(ctx, r.ID, announce(winners))
	}

	r.Phase = room.PhaseGameEnd
	r.Winners = winners
	r.TimerSeconds = 0

	c.mu.Lock()
	hooks := slices.Clone(c.hooks)
	c.mu.Unlock()
	for _, h := range hooks {
		h(ctx, r)
	}
	logging.FromContext(ctx).Infow("game ended", "room", r.ID, "winners", len(winners))
	return nil
}

func announce(winners []room.Winner) string {
	if len(winners) == 1 {
		return fmt.Sprintf("%s Game Over! %s wins with %d points!", emoji.Trophy, winners[0].Name, winners[0].Score)
	}
	names := make([]string, len(winners))
	for i, w := range winners {
		names[i] = w.Name
	}
	return fmt.Sprintf("%s Game Over! It's a tie between %s with %d points!", emoji.Trophy, strings.Join(names, ", "), winners[0].Score)
}

// ResetGame returns a finished game to the lobby.
func (c *Coordinator) ResetGame(ctx context.Context, roomID, actorID string) (err error) {
	defer func() { logFailure(ctx, "reset", roomID, actorID, err) }()

	unlock := c.lock(roomID)
	defer unlock()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return err
	}
	if actorID != r.HostID {
		return fmt.Errorf("%w: only the host can reset the game", ErrForbidden)
	}
	if r.Phase != room.PhaseGameEnd {
		return stalef("game is not over")
	}

	f := room.Fields{
		room.FieldPhase:           room.PhaseWaiting,
		room.FieldCurrentDrawerID: nil,
		room.FieldCurrentWord:     nil,
		room.FieldWordOptions:     nil,
		room.FieldHints:           nil,
		room.FieldWinners:         nil,
		room.FieldRotation:        nil,
		room.FieldTimerSeconds:    0,
		room.FieldRoundNumber:     0,
		room.FieldLastStroke:      room.ClearStroke(c.now()),
	}
	for id := range r.GuessClaims {
		f[room.GuessedField(id)] = nil
	}
	for _, p := range r.Players {
		f[room.PlayerField(p.ID, room.AttrScore)] = 0
		f[room.PlayerField(p.ID, room.AttrHasGuessed)] = false
	}
	return c.write(ctx, roomID, f)
}
