package game

import (
	"errors"
	"fmt"

	"example.com/sketch-mvp/internal/room"
	"example.com/sketch-mvp/internal/words"
)

const WordOptionsCount = 3

// Scheduler picks drawers and word options for each round.
type Scheduler struct {
	catalog *words.Catalog
	rng     Rand
}

func NewScheduler(catalog *words.Catalog, rng Rand) *Scheduler {
	if rng == nil {
		rng = FastRand{}
	}
	return &Scheduler{catalog: catalog, rng: rng}
}

func (s *Scheduler) WordOptions() ([]string, error) {
	if s.catalog == nil {
		return nil, validationf("no word catalog")
	}
	opts, err := s.catalog.Sample(WordOptionsCount, s.rng)
	if errors.Is(err, words.ErrTooSmall) {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return opts, err
}

// FreezeRotation captures the drawer order at game start.
func FreezeRotation(players []room.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.ID)
	}
	return out
}

// DrawerFor returns the drawer of a 1-based round.
func DrawerFor(rotation []string, round int) string {
	if len(rotation) == 0 || round < 1 {
		return ""
	}
	return rotation[(round-1)%len(rotation)]
}
