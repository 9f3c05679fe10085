package game

import (
	"context"
	"errors"
	"time"

	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/room"
	"github.com/google/uuid"
)

const DefaultTickInterval = time.Second

type RunnerConfig struct {
	Interval time.Duration
	// Holder identifies this process in leadership records. Random when empty.
	Holder string
	Now    func() time.Time
}

// Runner is the room clock: once per interval it ticks every active room
// whose lease this process holds.
type Runner struct {
	coord    *Coordinator
	store    room.Store
	lease    *Lease
	interval time.Duration
	now      func() time.Time
}

func NewRunner(coord *Coordinator, store room.Store, cfg RunnerConfig) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	if cfg.Holder == "" {
		cfg.Holder = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		coord:    coord,
		store:    store,
		lease:    NewLease(store, cfg.Holder, cfg.Interval),
		interval: cfg.Interval,
		now:      cfg.Now,
	}
}

func (r *Runner) Holder() string {
	return r.lease.Holder()
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Infow("room clock started", "holder", r.lease.Holder(), "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infow("room clock stopped", "holder", r.lease.Holder())
			return nil
		case <-ticker.C:
			r.Step(ctx)
		}
	}
}

// Step runs one pass over all rooms and returns how many were ticked.
func (r *Runner) Step(ctx context.Context) int {
	log := logging.FromContext(ctx)

	ids, err := r.store.List(ctx)
	if err != nil {
		log.Errorw("list rooms failed", "error", err)
		return 0
	}

	ticked := 0
	for _, id := range ids {
		rm, err := r.store.Read(ctx, id)
		if errors.Is(err, room.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Errorw("read room failed", "room", id, "error", err)
			continue
		}
		if !rm.Phase.Active() {
			continue
		}

		ok, err := r.lease.Acquire(ctx, id, r.now())
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Errorw("claim leadership failed", "room", id, "error", err)
			}
			continue
		}
		if !ok {
			continue
		}

		// ошибки уже залогированы внутри Tick
		if err := r.coord.Tick(ctx, id); err == nil {
			ticked++
		}
	}
	return ticked
}
