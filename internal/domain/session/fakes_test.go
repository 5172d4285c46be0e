package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeBackend answers from fixed tables and records calls.
type fakeBackend struct {
	mu sync.Mutex

	tokens     map[string]Session // username -> pair
	claims     map[string]Claims  // access token -> claims
	identErr   error
	registerFn func(Registration) error
	// gate, when set, blocks Identity until closed.
	gate chan struct{}

	identityCalls int
	logoutCalls   []Session
	logoutDone    chan Session
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tokens: make(map[string]Session),
		claims: make(map[string]Claims),
	}
}

func (b *fakeBackend) ObtainToken(_ context.Context, username, password string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.tokens[username]
	if !ok || password != "secret" {
		return Session{}, &AuthError{Status: 401, Message: "No active account found with the given credentials"}
	}
	return sess, nil
}

func (b *fakeBackend) Register(_ context.Context, r Registration) error {
	if b.registerFn != nil {
		return b.registerFn(r)
	}
	return nil
}

func (b *fakeBackend) Identity(ctx context.Context, token string) (Claims, error) {
	b.mu.Lock()
	b.identityCalls++
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Claims{}, &TransientIdentityError{Cause: ctx.Err()}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.identErr != nil {
		return Claims{}, b.identErr
	}
	c, ok := b.claims[token]
	if !ok {
		return Claims{}, ErrUnauthorized
	}
	return c, nil
}

func (b *fakeBackend) Logout(_ context.Context, sess Session) error {
	b.mu.Lock()
	b.logoutCalls = append(b.logoutCalls, sess)
	done := b.logoutDone
	b.mu.Unlock()
	if done != nil {
		done <- sess
	}
	return errors.New("logout endpoint unavailable")
}

func (b *fakeBackend) identityCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identityCalls
}

// fakeStorage is an in-memory Storage with an optional load gate.
type fakeStorage struct {
	mu      sync.Mutex
	sess    Session
	found   bool
	loadErr error
	saves   int
	clears  int
	// loadGate, when set, blocks Load until closed.
	loadGate chan struct{}
}

func (f *fakeStorage) Load(context.Context) (Session, bool, error) {
	if f.loadGate != nil {
		<-f.loadGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return Session{}, false, f.loadErr
	}
	return f.sess, f.found, nil
}

func (f *fakeStorage) Save(_ context.Context, sess Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess, f.found = sess, true
	f.saves++
	return nil
}

func (f *fakeStorage) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess, f.found = Session{}, false
	f.clears++
	return nil
}

func (f *fakeStorage) stored() (Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess, f.found
}

// recorder collects every delivered state.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

// stateObserver records the versions handed to ObserveState.
type stateObserver struct {
	mu       sync.Mutex
	versions []uint64
}

func (o *stateObserver) ObserveOperation(string, string, time.Duration) {}

func (o *stateObserver) ObserveState(st State) {
	o.mu.Lock()
	o.versions = append(o.versions, st.Version)
	o.mu.Unlock()
}

func (o *stateObserver) seen() []uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]uint64(nil), o.versions...)
}
