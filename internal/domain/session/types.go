// Package session holds the client-side credential store of the vitrina
// front end: the persisted token pair, its hydration lifecycle, and the
// identity snapshot resolved from the backend.
package session

// StorageKey is the fixed name of the durable record holding the token pair.
const StorageKey = "auth-storage"

// Lifecycle tracks whether the persisted session has been restored yet.
// No authorization decision may be taken before the store is Ready.
type Lifecycle int

const (
	// Uninitialized is the state before any restoration attempt, and the
	// permanent state when no durable storage is available.
	Uninitialized Lifecycle = iota
	// Hydrating means storage is being read.
	Hydrating
	// Ready is entered exactly once, when restoration finished with or
	// without a stored session.
	Ready
)

// String returns the lowercase lifecycle name.
func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Hydrating:
		return "hydrating"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Session is the access/refresh credential pair. An empty string stands for
// an absent token. Only this pair is ever persisted.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IsZero reports whether neither token is present.
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// HasAccess reports whether an access token is present.
func (s Session) HasAccess() bool {
	return s.AccessToken != ""
}

// Identity is the role snapshot resolved from the backend identity endpoint.
// It is never persisted and starts unresolved after every reload and login.
type Identity struct {
	IsAuthenticated bool
	IsModelo        bool
	// IsCheckingAuth is true while at least one identity check is in flight.
	IsCheckingAuth bool
	// Resolved distinguishes "resolved as not authenticated" from
	// "not resolved yet".
	Resolved bool
}

// Claims is what the backend identity endpoint reports about a token.
type Claims struct {
	Authenticated bool
	IsModelo      bool
}

// State is an immutable snapshot of the store delivered to subscribers.
type State struct {
	// Version increases with every mutation. Subscribers may receive
	// snapshots concurrently and should drop versions older than the last
	// one they applied.
	Version   uint64
	Lifecycle Lifecycle
	Session   Session
	Identity  Identity
}

// HasHydrated reports whether storage restoration has completed.
func (s State) HasHydrated() bool {
	return s.Lifecycle == Ready
}

// Registration is the input of the registration endpoint.
type Registration struct {
	Username string
	Email    string
	Password string
}
