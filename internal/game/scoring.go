package game

import (
	"sort"

	"example.com/sketch-mvp/internal/room"
)

const (
	MinGuessPoints = 50
	MaxGuessPoints = 100
	DrawerBonus    = 25
)

// GuessPoints awards 2 points per remaining second, clamped to [50, 100].
func GuessPoints(secondsRemaining int) int {
	p := 2 * secondsRemaining
	if p < MinGuessPoints {
		return MinGuessPoints
	}
	if p > MaxGuessPoints {
		return MaxGuessPoints
	}
	return p
}

// Winners returns every player holding the top score. Ties are kept.
func Winners(players []room.Player) []room.Winner {
	if len(players) == 0 {
		return nil
	}
	best := players[0].Score
	for _, p := range players[1:] {
		if p.Score > best {
			best = p.Score
		}
	}

	var out []room.Winner
	for _, p := range players {
		if p.Score == best {
			out = append(out, room.Winner{ID: p.ID, Name: p.Name, Score: p.Score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
