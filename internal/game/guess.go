package game

import (
	"context"
	"fmt"
	"strings"

	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/room"
	"github.com/agnivade/levenshtein"
	"github.com/enescakir/emoji"
)

// CloseDistance is the max edit distance reported back as "close".
const CloseDistance = 2

type GuessResult struct {
	// Accepted is false when the guess was a duplicate of an already credited one.
	Accepted bool `json:"accepted"`
	Correct  bool `json:"correct"`
	Close    bool `json:"close,omitempty"`
	Points   int  `json:"points,omitempty"`
}

// Matches is exact equality after trimming, ignoring case.
func Matches(guess, word string) bool {
	return word != "" && strings.EqualFold(strings.TrimSpace(guess), strings.TrimSpace(word))
}

// IsClose reports a wrong guess within CloseDistance edits of the word.
func IsClose(guess, word string) bool {
	g := strings.ToLower(strings.TrimSpace(guess))
	w := strings.ToLower(strings.TrimSpace(word))
	if g == "" || g == w {
		return false
	}
	return levenshtein.ComputeDistance(g, w) <= CloseDistance
}

// SubmitGuess evaluates a guess from a player during drawing.
func (c *Coordinator) SubmitGuess(ctx context.Context, roomID, playerID, text string) (GuessResult, error) {
	unlock := c.lock(roomID)
	defer unlock()
	return c.submitGuessLocked(ctx, roomID, playerID, text)
}

func (c *Coordinator) submitGuessLocked(ctx context.Context, roomID, playerID, text string) (res GuessResult, err error) {
	defer func() { logFailure(ctx, "guess", roomID, playerID, err) }()

	r, err := c.read(ctx, roomID)
	if err != nil {
		return GuessResult{}, err
	}
	p, ok := r.Players[playerID]
	if !ok {
		return GuessResult{}, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	switch {
	case r.Phase != room.PhaseDrawing:
		return GuessResult{}, stalef("not accepting guesses")
	case playerID == r.CurrentDrawerID:
		return GuessResult{}, stalef("the drawer cannot guess")
	case r.GuessedPlayerIDs[playerID]:
		return GuessResult{}, stalef("already guessed")
	}

	text, err = cleanText(text)
	if err != nil {
		return GuessResult{}, err
	}
	// догадка всегда видна в чате
	if err := c.chat(ctx, roomID, p, text); err != nil {
		return GuessResult{}, err
	}

	if !Matches(text, r.CurrentWord) {
		return GuessResult{Accepted: true, Close: IsClose(text, r.CurrentWord)}, nil
	}

	claimed, err := c.store.ClaimOnce(ctx, roomID, room.GuessedField(playerID), true)
	if err != nil {
		return GuessResult{}, fmt.Errorf("%w: claim guess: %v", ErrStore, err)
	}
	if !claimed {
		return GuessResult{Accepted: false, Correct: true}, nil
	}

	fresh, err := c.read(ctx, roomID)
	if err != nil {
		return GuessResult{}, err
	}
	if fresh.Phase != room.PhaseDrawing || fresh.CurrentWord != r.CurrentWord {
		_ = c.write(ctx, roomID, room.Fields{room.GuessedField(playerID): nil})
		return GuessResult{}, stalef("round ended before the guess was credited")
	}

	points := GuessPoints(fresh.TimerSeconds)
	if _, err := c.store.Increment(ctx, roomID, room.PlayerField(playerID, room.AttrScore), points); err != nil {
		return GuessResult{}, fmt.Errorf("%w: award guesser: %v", ErrStore, err)
	}
	if fresh.HasPlayer(fresh.CurrentDrawerID) {
		if _, err := c.store.Increment(ctx, roomID, room.PlayerField(fresh.CurrentDrawerID, room.AttrScore), DrawerBonus); err != nil {
			return GuessResult{}, fmt.Errorf("%w: award drawer: %v", ErrStore, err)
		}
	}
	if err := c.write(ctx, roomID, room.Fields{room.PlayerField(playerID, room.AttrHasGuessed): true}); err != nil {
		return GuessResult{}, err
	}
	_ = c.system(ctx, roomID, fmt.Sprintf("%s %s guessed the word correctly!", emoji.CheckMarkButton, p.Name))

	fresh.GuessedPlayerIDs[playerID] = true
	if fresh.AllGuessed() && fresh.TimerSeconds > 1 {
		if err := c.write(ctx, roomID, room.Fields{room.FieldTimerSeconds: 1}); err != nil {
			return GuessResult{}, err
		}
	}

	logging.FromContext(ctx).Debugw("guess credited", "room", roomID, "player", playerID, "points", points)
	return GuessResult{Accepted: true, Correct: true, Points: points}, nil
}
