package guard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// StateSource is the part of the session store a guard consumes.
type StateSource interface {
	Snapshot() session.State
	Subscribe(fn func(session.State)) (unsubscribe func())
	CheckAuth(ctx context.Context)
}

// Mount is one guarded page instance. It follows the store, runs one
// identity check per mount once the store is ready, and re-evaluates on
// every state change until a redirect fires; redirects are terminal.
// A new page visit needs a new Mount.
type Mount struct {
	src    StateSource
	in     Input
	ctx    context.Context
	logger *slog.Logger

	mu          sync.Mutex
	decision    Decision
	lastVersion uint64
	triggered   bool
	// awaiting holds the decision at Pending until the identity check this
	// mount started has returned.
	awaiting  bool
	unmounted bool
	changed   chan struct{}

	unsubscribe func()
}

// NewMount starts guarding location. ctx carries values for the identity
// check; its cancellation does not abort a check that already started,
// since the result is shared store state.
func NewMount(ctx context.Context, src StateSource, location string, opts Options, routes Routes, logger *slog.Logger) *Mount {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mount{
		src: src,
		in: Input{
			Location: location,
			Options:  opts,
			Routes:   routes,
		},
		ctx:     context.WithoutCancel(ctx),
		logger:  logger,
		changed: make(chan struct{}),
	}
	m.unsubscribe = src.Subscribe(m.onState)
	m.onState(src.Snapshot())
	return m
}

// Decision returns the current decision.
func (m *Mount) Decision() Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decision
}

// Wait blocks until the decision is no longer Pending or ctx ends, and
// returns the decision at that point.
func (m *Mount) Wait(ctx context.Context) (Decision, error) {
	for {
		m.mu.Lock()
		d, ch, gone := m.decision, m.changed, m.unmounted
		m.mu.Unlock()
		if d.Kind != Pending || gone {
			return d, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return d, ctx.Err()
		}
	}
}

// Unmount stops following the store. An identity check still in flight
// completes in the store but no longer changes this mount.
func (m *Mount) Unmount() {
	m.mu.Lock()
	if m.unmounted {
		m.mu.Unlock()
		return
	}
	m.unmounted = true
	close(m.changed)
	m.mu.Unlock()
	m.unsubscribe()
}

func (m *Mount) onState(st session.State) {
	m.mu.Lock()
	if m.unmounted || st.Version < m.lastVersion {
		m.mu.Unlock()
		return
	}
	m.lastVersion = st.Version
	m.in.State = st

	trigger := false
	if st.HasHydrated() && !m.triggered {
		m.triggered = true
		if st.Session.HasAccess() {
			trigger = true
			m.awaiting = true
		}
	}
	m.evaluateLocked()
	m.mu.Unlock()

	if trigger {
		go m.checkAuth()
	}
}

func (m *Mount) checkAuth() {
	m.src.CheckAuth(m.ctx)

	st := m.src.Snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted {
		return
	}
	m.awaiting = false
	if st.Version >= m.lastVersion {
		m.lastVersion = st.Version
		m.in.State = st
	}
	m.evaluateLocked()
}

// evaluateLocked recomputes the decision. Caller must hold mu.
func (m *Mount) evaluateLocked() {
	if m.decision.IsRedirect() {
		return
	}
	d := Decision{Kind: Pending}
	if !m.awaiting {
		d = Evaluate(m.in)
	}
	if d == m.decision {
		return
	}
	m.decision = d
	m.logger.Debug("guard decision", "location", m.in.Location, "decision", d.String())
	close(m.changed)
	m.changed = make(chan struct{})
}
