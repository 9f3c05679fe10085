package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", c.Env)
	assert.Equal(t, BackendMemory, c.StoreBackend)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, 5*time.Second, c.HTTP.ReadHeaderTimeout)
	assert.Equal(t, time.Second, c.Game.TickInterval)
	assert.Equal(t, 24*time.Hour, c.Redis.RoomTTL)
	assert.Empty(t, c.Postgres.URL)
}

func TestLoad_NestedPrefixes(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REDIS_ROOM_TTL", "2h")
	t.Setenv("GAME_TICK_INTERVAL", "500ms")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("STORE_BACKEND", "redis")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.HTTP.Addr)
	assert.Equal(t, 2*time.Hour, c.Redis.RoomTTL)
	assert.Equal(t, 500*time.Millisecond, c.Game.TickInterval)
	assert.Equal(t, "json", c.Log.Format)
	assert.Equal(t, BackendRedis, c.StoreBackend)
}

func TestValidate(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "etcd" }},
		{name: "default secret in prod", mutate: func(c *Config) { c.Env = "prod" }},
		{name: "empty secret", mutate: func(c *Config) { c.Auth.Secret = "" }},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
		{name: "zero tick", mutate: func(c *Config) { c.Game.TickInterval = 0 }},
		{name: "empty addr", mutate: func(c *Config) { c.HTTP.Addr = "" }},
		{name: "redis without addr", mutate: func(c *Config) {
			c.StoreBackend = BackendRedis
			c.Redis.Addr = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	prod := base
	prod.Env = "prod"
	prod.Auth.Secret = "s3cret"
	assert.NoError(t, prod.Validate())
}
