package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	server *http.Server
	ts     *httptest.Server
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st *sqlite.SQLiteStore) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig, nil, nil)
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(t, st)
	disabledLogger := zerolog.Nop()

	cfg := config.Default()
	cfg.JWTSecret = testSecret
	cfg.Relay.GroupPageSize = 2

	server := NewServer(authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{store: st, auth: authService, server: server, ts: ts}
}

// register creates a user and returns its id and token.
func (e *testEnv) register(t *testing.T, username string) (int64, string) {
	t.Helper()

	token, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	user, err := e.store.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("load %s: %v", username, err)
	}
	return user.ID, token
}

func (e *testEnv) wsURL(path string) string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + path
}

func (e *testEnv) dial(ctx context.Context, t *testing.T, path, token string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.Dial(ctx, e.wsURL(path), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}
