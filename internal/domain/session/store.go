package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLogoutTimeout bounds the fire-and-forget backend logout call.
const DefaultLogoutTimeout = 10 * time.Second

// Option configures a Store.
type Option func(*Store)

// WithStorage sets the durable storage. Without it the store behaves as in a
// context with no client storage: it never hydrates.
func WithStorage(storage Storage) Option {
	return func(s *Store) {
		s.storage = storage
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogoutTimeout bounds the backend logout call.
func WithLogoutTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.logoutTimeout = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the single source of truth for credentials, hydration status and
// the resolved identity. It is created once per process and passed by
// reference to guards and to the request authorizer.
//
// Mutations are serialized by mu and never hold it across a network or
// storage call. Subscribers are notified after the lock is released.
type Store struct {
	backend       Backend
	logger        *slog.Logger
	observer      Observer
	logoutTimeout time.Duration
	now           func() time.Time

	mu             sync.Mutex
	storage        Storage
	state          State
	hydrateStarted bool
	// epoch changes whenever the access token changes; identity results
	// computed under an older epoch are discarded.
	epoch     uint64
	checks    int
	listeners map[uint64]func(State)
	nextID    uint64

	// persistMu serializes storage writes so the latest session always wins.
	persistMu sync.Mutex
	delivered atomic.Uint64
	inflight  sync.WaitGroup

	// observeMu orders observer calls; observed is the last version it saw.
	observeMu sync.Mutex
	observed  uint64
}

// NewStore creates a Store in the Uninitialized lifecycle.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:       backend,
		logger:        slog.Default(),
		observer:      nopObserver{},
		logoutTimeout: DefaultLogoutTimeout,
		now:           time.Now,
		listeners:     make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccessToken returns the current access token, read at call time.
// It is safe to call on a nil Store and then returns "".
func (s *Store) AccessToken() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Session.AccessToken
}

// Subscribe registers fn to receive every new state. The returned function
// removes the subscription. fn runs outside the store lock and must not
// block for long.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// AttachStorage provides durable storage to a store created without one,
// i.e. once execution reaches a client context. It has no effect if a
// storage is already set.
func (s *Store) AttachStorage(storage Storage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storage == nil {
		s.storage = storage
	}
}

// Hydrate restores a persisted session. Restoration is attempted exactly
// once; the store becomes Ready when it completes, whether a session was
// found, missing, or unreadable. Without storage it does nothing.
// It reports whether the store is Ready on return.
func (s *Store) Hydrate(ctx context.Context) bool {
	s.mu.Lock()
	if s.storage == nil || s.hydrateStarted {
		ready := s.state.Lifecycle == Ready
		s.mu.Unlock()
		return ready
	}
	s.hydrateStarted = true
	storage := s.storage
	epoch := s.epoch
	st, ls := s.commitLocked(func(st *State) {
		st.Lifecycle = Hydrating
	})
	s.mu.Unlock()
	s.publish(st, ls)

	start := s.now()
	sess, found, err := storage.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to restore session, starting logged out", "error", err)
		sess, found = Session{}, false
	}

	s.mu.Lock()
	// A login or logout that completed while storage was being read wins
	// over the stored pair.
	restore := found && s.epoch == epoch
	st, ls = s.commitLocked(func(st *State) {
		if restore {
			st.Session = sess
			st.Identity = Identity{}
		}
		st.Lifecycle = Ready
	})
	s.mu.Unlock()
	s.publish(st, ls)

	result := "empty"
	switch {
	case err != nil:
		result = "error"
	case restore:
		result = "restored"
	}
	s.observer.ObserveOperation("hydrate", result, s.now().Sub(start))
	s.logger.Debug("session hydrated", "result", result, "token", Fingerprint(sess.AccessToken))
	return true
}

// Login exchanges credentials for a token pair and stores it. On any
// failure the current session is left unchanged. The identity snapshot is
// reset to unresolved; callers that need the role must run CheckAuth.
func (s *Store) Login(ctx context.Context, username, password string) error {
	start := s.now()
	sess, err := s.backend.ObtainToken(ctx, username, password)
	if err == nil && !sess.HasAccess() {
		err = &AuthError{Message: MsgNoValidToken}
	}
	if err != nil {
		s.observer.ObserveOperation("login", resultOf(err), s.now().Sub(start))
		return err
	}

	s.mu.Lock()
	s.epoch++
	st, ls := s.commitLocked(func(st *State) {
		st.Session = sess
		st.Identity = Identity{IsCheckingAuth: s.checks > 0}
	})
	s.mu.Unlock()
	s.publish(st, ls)
	s.persist(context.WithoutCancel(ctx))

	s.observer.ObserveOperation("login", "ok", s.now().Sub(start))
	s.logger.Info("logged in", "user", username, "token", Fingerprint(sess.AccessToken))
	return nil
}

// Register creates an account. It never authenticates; field errors are
// returned as *ValidationError.
func (s *Store) Register(ctx context.Context, username, email, password string) error {
	start := s.now()
	err := s.backend.Register(ctx, Registration{
		Username: username,
		Email:    email,
		Password: password,
	})
	s.observer.ObserveOperation("register", resultOf(err), s.now().Sub(start))
	if err != nil {
		return err
	}
	s.logger.Info("registered account", "user", username)
	return nil
}

// CheckAuth resolves the identity of the current access token. Failures are
// logged and resolved as "not authenticated"; nothing is returned so that
// dependent views degrade to logged out instead of failing.
func (s *Store) CheckAuth(ctx context.Context) {
	if err := s.Resolve(ctx); err != nil {
		if errors.Is(err, ErrTransientIdentity) {
			s.logger.Warn("identity check failed, treating session as logged out", "error", err)
			return
		}
		s.logger.Info("session not authenticated", "reason", err)
	}
}

// Resolve is CheckAuth returning the failure it recovered from, for callers
// that want to log it in their own context. The store state is updated the
// same way in both cases.
func (s *Store) Resolve(ctx context.Context) error {
	start := s.now()

	s.mu.Lock()
	token := s.state.Session.AccessToken
	epoch := s.epoch
	if token == "" {
		st, ls := s.commitLocked(func(st *State) {
			st.Identity = Identity{Resolved: true, IsCheckingAuth: s.checks > 0}
		})
		s.mu.Unlock()
		s.publish(st, ls)
		s.observer.ObserveOperation("check_auth", "anonymous", s.now().Sub(start))
		return nil
	}
	s.checks++
	st, ls := s.commitLocked(func(st *State) {
		st.Identity.IsCheckingAuth = true
	})
	s.mu.Unlock()
	s.publish(st, ls)

	var claims Claims
	var err error
	if exp, ok := AccessTokenExpiry(token); ok && !exp.After(s.now()) {
		err = ErrTokenExpired
	} else {
		claims, err = s.backend.Identity(ctx, token)
	}

	s.mu.Lock()
	s.checks--
	stale := s.epoch != epoch
	st, ls = s.commitLocked(func(st *State) {
		st.Identity.IsCheckingAuth = s.checks > 0
		if stale {
			return
		}
		st.Identity.Resolved = true
		if err != nil {
			st.Identity.IsAuthenticated = false
			st.Identity.IsModelo = false
			return
		}
		st.Identity.IsAuthenticated = claims.Authenticated
		st.Identity.IsModelo = claims.Authenticated && claims.IsModelo
	})
	s.mu.Unlock()
	s.publish(st, ls)

	result := "ok"
	switch {
	case stale:
		result = "stale"
	case err != nil:
		result = resultOf(err)
	}
	s.observer.ObserveOperation("check_auth", result, s.now().Sub(start))
	if stale {
		s.logger.Debug("discarded identity result for a replaced token", "token", Fingerprint(token))
		return nil
	}
	return err
}

// Logout clears the session from memory and storage before returning, then
// invalidates it server-side in the background. Calling it without a
// session is a no-op apart from clearing storage.
func (s *Store) Logout() {
	s.mu.Lock()
	prev := s.state.Session
	s.epoch++
	st, ls := s.commitLocked(func(st *State) {
		st.Session = Session{}
		st.Identity = Identity{Resolved: true, IsCheckingAuth: s.checks > 0}
	})
	s.mu.Unlock()
	s.publish(st, ls)
	s.persist(context.Background())

	if prev.IsZero() {
		return
	}
	s.observer.ObserveOperation("logout", "ok", 0)
	s.logger.Info("logged out", "token", Fingerprint(prev.AccessToken))

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.logoutTimeout)
		defer cancel()
		if err := s.backend.Logout(ctx, prev); err != nil {
			s.logger.Debug("backend logout failed", "error", err)
		}
	}()
}

// Close waits for background logout calls to finish or ctx to end.
func (s *Store) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commitLocked applies fn to the state, bumps its version, and returns the
// new state with the listeners to notify. Caller must hold mu.
func (s *Store) commitLocked(fn func(st *State)) (State, []func(State)) {
	fn(&s.state)
	s.state.Version++
	ls := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	return s.state, ls
}

// publish delivers st unless a newer state was already delivered.
func (s *Store) publish(st State, ls []func(State)) {
	for {
		last := s.delivered.Load()
		if st.Version <= last {
			return
		}
		if s.delivered.CompareAndSwap(last, st.Version) {
			break
		}
	}
	s.observe(st)
	for _, l := range ls {
		l(st)
	}
}

// observe hands st to the observer unless a newer state already reached it.
// Concurrent publishes can arrive here out of order.
func (s *Store) observe(st State) {
	s.observeMu.Lock()
	defer s.observeMu.Unlock()
	if st.Version <= s.observed {
		return
	}
	s.observed = st.Version
	s.observer.ObserveState(st)
}

// persist writes the current session to storage, or clears storage when
// there is none. Storage failures are logged; the in-memory session stays
// authoritative.
func (s *Store) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	storage := s.storage
	sess := s.state.Session
	s.mu.Unlock()
	if storage == nil {
		return
	}

	var err error
	if sess.IsZero() {
		err = storage.Clear(ctx)
	} else {
		err = storage.Save(ctx, sess)
	}
	if err != nil {
		s.logger.Warn("failed to persist session", "error", err)
	}
}

func resultOf(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.Is(err, ErrAuth):
		return "rejected"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenExpired):
		return "unauthorized"
	default:
		return "error"
	}
}
