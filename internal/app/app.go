package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"example.com/sketch-mvp/internal/archive"
	"example.com/sketch-mvp/internal/auth"
	"example.com/sketch-mvp/internal/config"
	"example.com/sketch-mvp/internal/game"
	"example.com/sketch-mvp/internal/httpapi"
	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/migrate"
	"example.com/sketch-mvp/internal/realtime"
	"example.com/sketch-mvp/internal/room"
	"example.com/sketch-mvp/internal/store"
	"example.com/sketch-mvp/internal/words"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const pingTimeout = 10 * time.Second

type App struct {
	cfg config.Config
	log *zap.SugaredLogger

	db      *pgxpool.Pool
	rdb     *redis.Client
	archive *archive.DB

	coord  *game.Coordinator
	runner *game.Runner
	hub    *realtime.Hub
	srv    *http.Server
}

func New(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (_ *App, err error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	ctx = logging.WithLogger(ctx, log)
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	rooms, err := a.openRoomStore(ctx)
	if err != nil {
		return nil, err
	}

	// --- Postgres (optional) ---
	var (
		users *store.UserStore
		stats *store.StatsStore
	)
	if cfg.Postgres.URL != "" {
		if cfg.Postgres.RunMigrations {
			if err := migrate.Up(ctx, cfg.Postgres.URL, log); err != nil {
				return nil, err
			}
		}
		a.db, err = pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := a.db.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		if users, err = store.NewUserStore(a.db, cfg.Auth.UserCacheSize); err != nil {
			return nil, err
		}
		stats = store.NewStatsStore(a.db)
	} else {
		log.Infow("POSTGRES_URL is empty, accounts are disabled")
	}

	// --- Archive (optional) ---
	if cfg.Archive.File != "" {
		if a.archive, err = archive.Open(ctx, cfg.Archive.File); err != nil {
			return nil, err
		}
	}

	// --- Game ---
	catalog := words.Default()
	if cfg.Game.WordsFile != "" {
		if catalog, err = words.LoadFile(cfg.Game.WordsFile); err != nil {
			return nil, err
		}
	}
	log.Infow("word catalog loaded", "words", catalog.Len())

	a.coord = game.NewCoordinator(rooms, game.Options{Catalog: catalog})
	if stats != nil {
		a.coord.OnGameEnd(func(ctx context.Context, r room.Room) {
			if err := stats.RecordGame(ctx, r); err != nil {
				logging.FromContext(ctx).Errorw("record stats failed", "room", r.ID, "error", err)
			}
		})
	}
	if a.archive != nil {
		db := a.archive
		a.coord.OnGameEnd(func(ctx context.Context, r room.Room) {
			if err := db.Add(archive.RecordFromRoom(r, time.Now())); err != nil {
				logging.FromContext(ctx).Errorw("archive game failed", "room", r.ID, "error", err)
			}
		})
	}
	a.runner = game.NewRunner(a.coord, rooms, game.RunnerConfig{Interval: cfg.Game.TickInterval})
	a.hub = realtime.NewHub(a.coord, rooms, realtime.Options{
		ChatRate:  rate.Limit(cfg.Game.ChatRate),
		ChatBurst: cfg.Game.ChatBurst,
	})

	// --- HTTP ---
	tokens := auth.NewService([]byte(cfg.Auth.Secret))
	authH := &httpapi.AuthHandler{Tokens: tokens, TokenTTL: cfg.Auth.TokenTTL}
	if users != nil {
		authH.Users = users
		authH.Stats = stats
	}
	gamesH := &httpapi.GamesHandler{}
	if a.archive != nil {
		gamesH.Archive = a.archive
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Auth:   authH,
		Rooms:  &httpapi.RoomHandler{Rooms: a.coord, Realtime: a.hub},
		Games:  gamesH,
		Tokens: tokens,
		Log:    log,
	})

	a.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

func (a *App) openRoomStore(ctx context.Context) (room.Store, error) {
	if a.cfg.StoreBackend != config.BackendRedis {
		a.log.Infow("room store: memory")
		return room.NewMemStore(), nil
	}

	a.rdb = redis.NewClient(&redis.Options{
		Addr: a.cfg.Redis.Addr,
		DB:   a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := a.rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping (%s db=%d): %w", a.cfg.Redis.Addr, a.cfg.Redis.DB, err)
	}
	a.log.Infow("room store: redis", "addr", a.cfg.Redis.Addr, "db", a.cfg.Redis.DB)
	return room.NewRedisStore(a.rdb, a.cfg.Redis.RoomTTL), nil
}

// Handler is the HTTP handler, for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Infow("http server starting", "addr", a.cfg.HTTP.Addr, "holder", a.runner.Holder())

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.runner.Run(logging.WithLogger(gctx, a.log))
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Infow("http server shutting down")
		a.hub.Close()
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.archive != nil {
		errs = append(errs, a.archive.Close())
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	return errors.Join(errs...)
}
