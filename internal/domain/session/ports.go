package session

import (
	"context"
	"time"
)

// Storage is the durable client storage holding one Session record.
// Implementations: JSON state file, SQLite, in-memory (test).
type Storage interface {
	// Load returns the stored session. found is false when no record exists.
	Load(ctx context.Context) (sess Session, found bool, err error)

	// Save replaces the stored record.
	Save(ctx context.Context, sess Session) error

	// Clear removes the stored record. Clearing a missing record is not an error.
	Clear(ctx context.Context) error
}

// Backend is the REST API the store talks to.
type Backend interface {
	// ObtainToken exchanges credentials for a token pair. A rejected login
	// returns *AuthError. A response without a usable access token returns
	// a Session with an empty AccessToken.
	ObtainToken(ctx context.Context, username, password string) (Session, error)

	// Register creates an account without authenticating it.
	Register(ctx context.Context, reg Registration) error

	// Identity asks the backend who owns accessToken.
	Identity(ctx context.Context, accessToken string) (Claims, error)

	// Logout invalidates the session server-side.
	Logout(ctx context.Context, sess Session) error
}

// Observer receives store events for metrics. It must not block.
type Observer interface {
	ObserveOperation(op, result string, d time.Duration)
	ObserveState(st State)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration) {}
func (nopObserver) ObserveState(State)                             {}
