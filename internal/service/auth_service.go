package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/vitrina-app/vitrina/internal/ctxkey"
	"github.com/vitrina-app/vitrina/internal/domain/guard"
	"github.com/vitrina-app/vitrina/internal/domain/session"
)

const instrumentationName = "github.com/vitrina-app/vitrina/internal/service"

var tracer = otel.Tracer(instrumentationName)

// SessionStore is the part of session.Store the login flows drive.
type SessionStore interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, email, password string) error
	Resolve(ctx context.Context) error
	Logout()
	Snapshot() session.State
}

// AuthService coordinates the login, register and logout flows. The
// post-login destination is chosen only after the identity check has
// completed, so the role flag it reads belongs to the new session.
type AuthService struct {
	store  SessionStore
	routes guard.Routes
	logger *slog.Logger
	flows  metric.Int64Counter
}

// NewAuthService creates a new AuthService.
func NewAuthService(store SessionStore, routes guard.Routes, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	flows, err := otel.Meter(instrumentationName).Int64Counter("vitrina.auth.flows",
		metric.WithDescription("Login and register flows by outcome"))
	if err != nil {
		logger.Warn("auth flow counter unavailable", "error", err)
		flows = noop.Int64Counter{}
	}
	return &AuthService{
		store:  store,
		routes: routes,
		logger: logger,
		flows:  flows,
	}
}

// Login authenticates, resolves the identity, and returns where the user
// should land: next when it is a safe relative path, otherwise the home of
// the resolved role.
func (s *AuthService) Login(ctx context.Context, username, password, next string) (string, error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	if err := s.store.Login(ctx, username, password); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login rejected")
		s.count(ctx, "login", "rejected")
		return "", err
	}

	// Must complete before the role is read below.
	if err := s.resolve(ctx); err != nil {
		s.log(ctx).Warn("identity check after login failed, continuing", "error", err)
	}

	dest := s.Destination(next)
	span.SetAttributes(
		attribute.Bool("vitrina.is_modelo", s.store.Snapshot().Identity.IsModelo),
		attribute.String("vitrina.destination", dest),
	)
	s.count(ctx, "login", "ok")
	return dest, nil
}

// Register creates the account and then logs in with the same credentials.
func (s *AuthService) Register(ctx context.Context, username, email, password, next string) (string, error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer span.End()

	if err := s.store.Register(ctx, username, email, password); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration rejected")
		s.count(ctx, "register", "rejected")
		return "", err
	}
	s.count(ctx, "register", "ok")
	return s.Login(ctx, username, password, next)
}

// Logout clears the session and returns the login page.
func (s *AuthService) Logout() string {
	s.store.Logout()
	return s.routes.Login
}

// Destination returns next when it may be honored, otherwise the home of
// the role currently in the store.
func (s *AuthService) Destination(next string) string {
	if p, ok := guard.SafeNext(next); ok {
		return p
	}
	return s.routes.Home(s.store.Snapshot().Identity.IsModelo)
}

// resolve runs the identity check. A panic in it is turned into an error so
// the login that already succeeded still completes.
func (s *AuthService) resolve(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("identity check panicked: %v", r)
		}
	}()
	return s.store.Resolve(ctx)
}

func (s *AuthService) count(ctx context.Context, flow, result string) {
	s.flows.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("result", result),
	))
}

// log returns the request logger carried by ctx, if any.
func (s *AuthService) log(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return s.logger
}
