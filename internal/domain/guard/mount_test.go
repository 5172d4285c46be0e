package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// stubBackend resolves every token through a fixed claims table.
type stubBackend struct {
	mu     sync.Mutex
	claims map[string]session.Claims
	gate   chan struct{}
	calls  int
}

func (b *stubBackend) ObtainToken(context.Context, string, string) (session.Session, error) {
	return session.Session{AccessToken: "fresh"}, nil
}

func (b *stubBackend) Register(context.Context, session.Registration) error { return nil }

func (b *stubBackend) Identity(_ context.Context, token string) (session.Claims, error) {
	b.mu.Lock()
	b.calls++
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.claims[token]
	if !ok {
		return session.Claims{}, session.ErrUnauthorized
	}
	return c, nil
}

func (b *stubBackend) Logout(context.Context, session.Session) error { return nil }

// memStorage is a Storage whose Load can be held back.
type memStorage struct {
	mu   sync.Mutex
	sess session.Session
	gate chan struct{}
}

func (m *memStorage) Load(context.Context) (session.Session, bool, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, !m.sess.IsZero(), nil
}

func (m *memStorage) Save(_ context.Context, s session.Session) error {
	m.mu.Lock()
	m.sess = s
	m.mu.Unlock()
	return nil
}

func (m *memStorage) Clear(context.Context) error {
	m.mu.Lock()
	m.sess = session.Session{}
	m.mu.Unlock()
	return nil
}

func mountAt(t *testing.T, store *session.Store, location string) *Mount {
	t.Helper()
	routes := DefaultRoutes()
	opts, ok := routes.OptionsFor(location)
	if !ok {
		t.Fatalf("%q is not a guarded page", location)
	}
	m := NewMount(context.Background(), store, location, opts, routes, nil)
	t.Cleanup(m.Unmount)
	return m
}

func waitDecision(t *testing.T, m *Mount) Decision {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := m.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v (decision %v)", err, d)
	}
	return d
}

// No persisted session: a model page redirects to login, carrying the
// visited path as next.
func TestMount_NoSessionRedirectsToLogin(t *testing.T) {
	b := &stubBackend{}
	store := session.NewStore(b, session.WithStorage(&memStorage{}))
	store.Hydrate(context.Background())

	m := mountAt(t, store, "/panel/dashboard")
	d := waitDecision(t, m)

	want := Decision{Kind: RedirectToLogin, Target: "/login?next=%2Fpanel%2Fdashboard"}
	if d != want {
		t.Errorf("decision = %v, want %v", d, want)
	}
	if b.calls != 0 {
		t.Errorf("identity calls = %d, want 0", b.calls)
	}
}

// A persisted client session visiting the model dashboard is sent to the
// client panel once its identity resolves.
func TestMount_PersistedClientOnModelPage(t *testing.T) {
	b := &stubBackend{claims: map[string]session.Claims{"c1": {Authenticated: true}}}
	storage := &memStorage{sess: session.Session{AccessToken: "c1", RefreshToken: "r1"}}
	store := session.NewStore(b, session.WithStorage(storage))
	store.Hydrate(context.Background())

	m := mountAt(t, store, "/panel/dashboard")
	d := waitDecision(t, m)

	want := Decision{Kind: RedirectToRole, Target: "/panel/cliente"}
	if d != want {
		t.Errorf("decision = %v, want %v", d, want)
	}
}

func TestMount_ClientRedirectIgnoresNext(t *testing.T) {
	b := &stubBackend{claims: map[string]session.Claims{"c1": {Authenticated: true}}}
	storage := &memStorage{sess: session.Session{AccessToken: "c1"}}
	store := session.NewStore(b, session.WithStorage(storage))
	store.Hydrate(context.Background())

	m := mountAt(t, store, "/panel/dashboard?next=%2Fpanel%2Fdashboard")
	if d := waitDecision(t, m); d.Target != "/panel/cliente" {
		t.Errorf("decision = %v, want redirect to /panel/cliente", d)
	}
}

// Mounted before hydration, the guard stays pending through it and only
// allows once the identity check it started has returned.
func TestMount_PendingUntilHydratedAndResolved(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := &stubBackend{
		claims: map[string]session.Claims{"m1": {Authenticated: true, IsModelo: true}},
		gate:   make(chan struct{}),
	}
	storage := &memStorage{sess: session.Session{AccessToken: "m1"}, gate: make(chan struct{})}
	store := session.NewStore(b, session.WithStorage(storage))

	routes := DefaultRoutes()
	opts, _ := routes.OptionsFor("/panel/dashboard")
	m := NewMount(context.Background(), store, "/panel/dashboard", opts, routes, nil)
	defer m.Unmount()

	var seen []Decision
	var mu sync.Mutex
	record := func(session.State) {
		mu.Lock()
		seen = append(seen, m.Decision())
		mu.Unlock()
	}
	defer store.Subscribe(record)()

	hydrated := make(chan struct{})
	go func() {
		defer close(hydrated)
		store.Hydrate(context.Background())
	}()

	if d := m.Decision(); d.Kind != Pending {
		t.Fatalf("decision before hydration = %v, want pending", d)
	}
	close(storage.gate)
	<-hydrated

	if d := m.Decision(); d.Kind != Pending {
		t.Errorf("decision with identity check in flight = %v, want pending", d)
	}
	close(b.gate)

	if d := waitDecision(t, m); d.Kind != Allow {
		t.Errorf("decision = %v, want allow", d)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, d := range seen {
		if d.IsRedirect() {
			t.Errorf("observed redirect %v on the way to allow", d)
		}
	}
}

func TestMount_OneCheckPerMount(t *testing.T) {
	b := &stubBackend{claims: map[string]session.Claims{"m1": {Authenticated: true, IsModelo: true}}}
	storage := &memStorage{sess: session.Session{AccessToken: "m1"}}
	store := session.NewStore(b, session.WithStorage(storage))
	store.Hydrate(context.Background())

	for i := 1; i <= 3; i++ {
		m := mountAt(t, store, "/panel/dashboard")
		if d := waitDecision(t, m); d.Kind != Allow {
			t.Fatalf("mount %d decision = %v, want allow", i, d)
		}
		b.mu.Lock()
		calls := b.calls
		b.mu.Unlock()
		if calls != i {
			t.Errorf("identity calls after mount %d = %d, want %d", i, calls, i)
		}
	}
}

func TestMount_LogoutAfterAllowRedirects(t *testing.T) {
	b := &stubBackend{claims: map[string]session.Claims{"m1": {Authenticated: true, IsModelo: true}}}
	storage := &memStorage{sess: session.Session{AccessToken: "m1"}}
	store := session.NewStore(b, session.WithStorage(storage))
	store.Hydrate(context.Background())

	m := mountAt(t, store, "/panel/fotos")
	if d := waitDecision(t, m); d.Kind != Allow {
		t.Fatalf("decision = %v, want allow", d)
	}

	store.Logout()
	defer func() { _ = store.Close(context.Background()) }()

	want := Decision{Kind: RedirectToLogin, Target: "/login?next=%2Fpanel%2Ffotos"}
	if d := m.Decision(); d != want {
		t.Errorf("decision after logout = %v, want %v", d, want)
	}
}

func TestMount_WaitHonorsContext(t *testing.T) {
	store := session.NewStore(&stubBackend{})
	m := mountAt(t, store, "/panel/dashboard")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d, err := m.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() error = nil without storage, want deadline exceeded")
	}
	if d.Kind != Pending {
		t.Errorf("decision = %v, want pending", d)
	}
}

func TestMount_UnmountReleasesWaiters(t *testing.T) {
	store := session.NewStore(&stubBackend{})
	m := NewMount(context.Background(), store, "/panel", DefaultOptions(), DefaultRoutes(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Wait(context.Background())
	}()
	m.Unmount()
	m.Unmount()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after Unmount")
	}
}

// An identity check still in flight at unmount completes in the store but
// leaves the unmounted page where it was.
func TestMount_UnmountIgnoresLateCheck(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := &stubBackend{
		claims: map[string]session.Claims{"m1": {Authenticated: true, IsModelo: true}},
		gate:   make(chan struct{}),
	}
	store := session.NewStore(b, session.WithStorage(&memStorage{sess: session.Session{AccessToken: "m1"}}))
	store.Hydrate(context.Background())

	m := mountAt(t, store, "/panel/dashboard")
	deadline := time.Now().Add(2 * time.Second)
	for !store.Snapshot().Identity.IsCheckingAuth {
		if time.Now().After(deadline) {
			t.Fatal("identity check never started")
		}
		time.Sleep(time.Millisecond)
	}

	m.Unmount()
	close(b.gate)

	for !store.Snapshot().Identity.Resolved {
		if time.Now().After(deadline) {
			t.Fatal("store never resolved the identity")
		}
		time.Sleep(time.Millisecond)
	}
	if !store.Snapshot().Identity.IsAuthenticated {
		t.Fatalf("store identity = %+v, want authenticated", store.Snapshot().Identity)
	}
	if d := m.Decision(); d.Kind != Pending {
		t.Errorf("decision after unmount = %v, want pending", d)
	}
}
