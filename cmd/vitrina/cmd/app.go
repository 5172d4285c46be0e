package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/vitrina-app/vitrina/internal/adapter/inbound/http"
	"github.com/vitrina-app/vitrina/internal/adapter/outbound/backend"
	"github.com/vitrina-app/vitrina/internal/adapter/outbound/memory"
	"github.com/vitrina-app/vitrina/internal/adapter/outbound/sqlite"
	"github.com/vitrina-app/vitrina/internal/adapter/outbound/state"
	"github.com/vitrina-app/vitrina/internal/config"
	"github.com/vitrina-app/vitrina/internal/domain/session"
	"github.com/vitrina-app/vitrina/internal/service"
	"github.com/vitrina-app/vitrina/internal/telemetry"
)

// app is the wiring shared by every command: one session store per process,
// passed by reference to whatever needs it.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *backend.Client
	store    *session.Store
	auth     *service.AuthService
	registry *prometheus.Registry
	metrics  *httpadapter.Metrics

	closers []func(context.Context) error
}

// newApp loads the configuration and builds the store, hydrated from the
// configured storage.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	level := parseLogLevel(cfg.Server.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", level.String())
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Debug("loaded config", "file", configFile)
	}

	a := &app{cfg: cfg, logger: logger}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Enabled, cfg.Telemetry.ServiceName, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	a.registry = httpadapter.NewRegistry()
	a.metrics = httpadapter.NewMetrics(a.registry)

	// The client reads the token from the store at send time; the store is
	// assigned below, before any request can be made. AccessToken is safe
	// on a nil store.
	a.client = backend.NewClient(cfg.Backend.BaseURL,
		backend.WithEndpoints(backend.Endpoints{
			Token:    cfg.Backend.TokenPath,
			Register: cfg.Backend.RegisterPath,
			Identity: cfg.Backend.IdentityPath,
			Logout:   cfg.Backend.LogoutPath,
		}),
		backend.WithTimeout(cfg.BackendTimeout()),
		backend.WithTokenSource(backend.TokenSourceFunc(func() string { return a.store.AccessToken() })),
		backend.WithLogger(logger),
	)

	storage, closeStorage, err := openStorage(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	if closeStorage != nil {
		a.closers = append(a.closers, func(context.Context) error { return closeStorage.Close() })
	}

	a.store = session.NewStore(a.client,
		session.WithLogger(logger),
		session.WithObserver(a.metrics),
		session.WithLogoutTimeout(cfg.LogoutTimeout()),
	)
	a.closers = append(a.closers, a.store.Close)
	if storage != nil {
		a.store.AttachStorage(storage)
	}
	a.store.Hydrate(ctx)

	a.auth = service.NewAuthService(a.store, cfg.GuardRoutes(), logger)
	return a, nil
}

// openStorage returns the configured session storage, or nil for "none".
func openStorage(cfg *config.Config, logger *slog.Logger) (session.Storage, io.Closer, error) {
	switch cfg.Storage.Driver {
	case config.StorageFile:
		return state.NewFileStore(cfg.Storage.Path, cfg.Storage.Key, logger), nil, nil
	case config.StorageSQLite:
		db, err := sqlite.Open(cfg.Storage.Path, cfg.Storage.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session database: %w", err)
		}
		return db, db, nil
	case config.StorageMemory:
		return memory.NewSessionStorage(cfg.Storage.Key), nil, nil
	default:
		return nil, nil, nil
	}
}

// close runs the closers in reverse order: pending background logouts are
// drained before the storage closes.
func (a *app) close() {
	timeout := a.cfg.LogoutTimeout()
	if timeout <= 0 {
		timeout = session.DefaultLogoutTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Debug("shutdown incomplete", "error", err)
	}
}

// describeError adds a hint when the backend could not be reached.
func (a *app) describeError(err error) error {
	if backend.IsConnectionError(err) {
		return fmt.Errorf("backend unreachable at %s: %w", a.client.BaseURL(), err)
	}
	return err
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
