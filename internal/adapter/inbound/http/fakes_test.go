package http

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitrina-app/vitrina/internal/adapter/outbound/memory"
	"github.com/vitrina-app/vitrina/internal/domain/guard"
	"github.com/vitrina-app/vitrina/internal/domain/session"
	"github.com/vitrina-app/vitrina/internal/service"
)

// discardLogger returns a logger that discards all output (for tests)
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// marketBackend accepts password "secret" for every user and issues
// "tok-<user>". Users listed in modelos resolve as models.
type marketBackend struct {
	mu      sync.Mutex
	modelos map[string]bool
	revoked map[string]bool
}

func newMarketBackend(modelos ...string) *marketBackend {
	b := &marketBackend{modelos: map[string]bool{}, revoked: map[string]bool{}}
	for _, u := range modelos {
		b.modelos[u] = true
	}
	return b
}

func (b *marketBackend) ObtainToken(_ context.Context, username, password string) (session.Session, error) {
	if password != "secret" {
		return session.Session{}, &session.AuthError{Status: 401, Message: "No active account found with the given credentials"}
	}
	return session.Session{AccessToken: "tok-" + username, RefreshToken: "ref-" + username}, nil
}

func (b *marketBackend) Register(_ context.Context, reg session.Registration) error {
	if reg.Username == "taken" {
		return &session.ValidationError{Status: 400, Fields: map[string][]string{
			"username": {"A user with that username already exists."},
		}}
	}
	return nil
}

func (b *marketBackend) Identity(_ context.Context, token string) (session.Claims, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked[token] || len(token) < 5 {
		return session.Claims{}, session.ErrUnauthorized
	}
	return session.Claims{Authenticated: true, IsModelo: b.modelos[token[4:]]}, nil
}

func (b *marketBackend) Logout(_ context.Context, sess session.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[sess.AccessToken] = true
	return nil
}

type testEnv struct {
	store   *session.Store
	storage *memory.SessionStorage
	metrics *Metrics
	server  *Server
}

// newTestEnv builds a hydrated store over memory storage, optionally holding
// a persisted session for user, and a server in front of it.
func newTestEnv(t *testing.T, backend session.Backend, user string, opts ...Option) *testEnv {
	t.Helper()

	storage := memory.NewSessionStorage("")
	if user != "" {
		if err := storage.Save(context.Background(), session.Session{AccessToken: "tok-" + user}); err != nil {
			t.Fatal(err)
		}
	}

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	store := session.NewStore(backend,
		session.WithStorage(storage),
		session.WithLogger(discardLogger()),
		session.WithObserver(metrics),
	)
	store.Hydrate(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = store.Close(ctx)
	})

	routes := guard.DefaultRoutes()
	flows := service.NewAuthService(store, routes, discardLogger())
	opts = append([]Option{
		WithRoutes(routes),
		WithMetrics(reg, metrics),
		WithGuardWait(time.Second),
		WithLogger(discardLogger()),
		WithVersion("test-version"),
	}, opts...)

	return &testEnv{
		store:   store,
		storage: storage,
		metrics: metrics,
		server:  NewServer(store, flows, opts...),
	}
}
