package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"example.com/sketch-mvp/internal/config"
	"example.com/sketch-mvp/internal/httpapi"
	"example.com/sketch-mvp/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Env = "dev"
	cfg.StoreBackend = config.BackendMemory
	cfg.Log.Format = "text"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeout = time.Second
	cfg.Auth.Secret = "test"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Auth.UserCacheSize = 16
	cfg.Game.TickInterval = time.Second
	cfg.Game.ChatRate = 10
	cfg.Game.ChatBurst = 10
	cfg.Archive.File = filepath.Join(t.TempDir(), "games.db")
	return cfg
}

func call(t *testing.T, h http.Handler, method, path, token, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func guest(t *testing.T, h http.Handler, name string) string {
	t.Helper()
	var resp httpapi.LoginResponse
	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/auth/guest", "", `{"displayName":"`+name+`"}`, &resp))
	return resp.AccessToken
}

// Полная игра через HTTP: в конце партия попадает в архив.
func TestApp_GameIsArchived(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx) })
	h := a.Handler()

	alice, bob := guest(t, h, "Alice"), guest(t, h, "Bob")

	var r room.Room
	require.Equal(t, http.StatusCreated, call(t, h, http.MethodPost, "/api/rooms", alice, `{"totalRounds":1}`, &r))
	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/rooms/"+r.ID+"/join", bob, "", nil))
	require.Equal(t, http.StatusNoContent, call(t, h, http.MethodPost, "/api/rooms/"+r.ID+"/start", alice, "", nil))

	// рисующий не выбирает слово, часы идут сами
	for i := 0; i < 1000; i++ {
		require.NoError(t, a.coord.Tick(ctx, r.ID))
		var cur room.Room
		call(t, h, http.MethodGet, "/api/rooms/"+r.ID, alice, "", &cur)
		if cur.Phase == room.PhaseGameEnd {
			break
		}
	}

	var recent []map[string]any
	require.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/api/games/recent", "", "", &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, r.ID, recent[0]["roomId"])
}

func TestApp_HealthAndAccountsDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Archive.File = ""
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx) })

	assert.Equal(t, http.StatusOK, call(t, a.Handler(), http.MethodGet, "/healthz", "", "", nil))
	assert.Equal(t, http.StatusServiceUnavailable,
		call(t, a.Handler(), http.MethodPost, "/api/auth/login", "", `{"email":"a@b.c","password":"x"}`, nil))

	var recent []any
	require.Equal(t, http.StatusOK, call(t, a.Handler(), http.MethodGet, "/api/games/recent", "", "", &recent))
	assert.Empty(t, recent)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
