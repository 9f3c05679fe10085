package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const defaultSecret = "dev-secret-change-me"

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config describes all runtime settings for the server.
// Nested sections read prefixed variables, e.g. HTTP_ADDR, REDIS_ROOM_TTL.
type Config struct {
	Env          string `envconfig:"APP_ENV" default:"dev"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`

	Log struct {
		Format string `envconfig:"FORMAT" default:"text"`
		Debug  bool   `envconfig:"DEBUG" default:"false"`
	}

	HTTP struct {
		Addr              string        `envconfig:"ADDR" default:":8080"`
		ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
		ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"0s"`
		WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"0s"`
		IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
		ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	}

	// Empty URL runs without accounts and stats; only guest tokens are issued.
	Postgres struct {
		URL           string `envconfig:"URL"`
		RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	}

	Redis struct {
		Addr    string        `envconfig:"ADDR" default:"localhost:6379"`
		DB      int           `envconfig:"DB" default:"0"`
		RoomTTL time.Duration `envconfig:"ROOM_TTL" default:"24h"`
	}

	Auth struct {
		Secret        string        `envconfig:"SECRET" default:"dev-secret-change-me"`
		TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
		UserCacheSize int           `envconfig:"USER_CACHE_SIZE" default:"1024"`
	}

	Game struct {
		TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"1s"`
		WordsFile    string        `envconfig:"WORDS_FILE"`
		ChatRate     float64       `envconfig:"CHAT_RATE" default:"2"`
		ChatBurst    int           `envconfig:"CHAT_BURST" default:"5"`
	}

	Archive struct {
		File string `envconfig:"FILE" default:"games.db"`
	}
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP_ADDR is empty")
	}
	if c.StoreBackend != BackendMemory && c.StoreBackend != BackendRedis {
		return fmt.Errorf("unsupported STORE_BACKEND=%q (want memory|redis)", c.StoreBackend)
	}
	if c.StoreBackend == BackendRedis && c.Redis.Addr == "" {
		return errors.New("REDIS_ADDR is empty")
	}
	if c.Auth.Secret == "" {
		return errors.New("AUTH_SECRET is empty")
	}
	if c.Env != "dev" && c.Auth.Secret == defaultSecret {
		return fmt.Errorf("refuse to run with default AUTH_SECRET in %s", c.Env)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	if c.Game.TickInterval <= 0 {
		return errors.New("GAME_TICK_INTERVAL must be positive")
	}
	if c.Game.ChatRate <= 0 || c.Game.ChatBurst <= 0 {
		return errors.New("GAME_CHAT_RATE and GAME_CHAT_BURST must be positive")
	}
	if c.Auth.UserCacheSize <= 0 {
		return errors.New("AUTH_USER_CACHE_SIZE must be positive")
	}
	return nil
}
