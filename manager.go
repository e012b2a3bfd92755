package session

import (
	"context"
	"sync"
	"time"
)

// State is the session context's current belief about the user.
type State string

const (
	// StateInitializing means the persisted credential is still being
	// resolved; dependent UI should render a pending indicator.
	StateInitializing State = "initializing"
	// StateAnonymous means no authenticated user.
	StateAnonymous State = "anonymous"
	// StateAuthenticated means a confirmed User is present and a credential
	// exists in the TokenStore.
	StateAuthenticated State = "authenticated"
)

// Manager is the process-wide session context. Exactly one of
// {Initializing, Anonymous, Authenticated(user)} holds at any time, and
// every mutating operation runs under a generation counter: a response from
// a superseded operation is discarded rather than applied.
type Manager struct {
	mu         sync.Mutex
	state      State
	user       *User
	loading    bool
	generation uint64

	svc         SessionService
	store       TokenStore
	logger      Logger
	sink        ActivitySink
	now         func() time.Time
	transitions map[State]map[State]struct{}
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithManagerLogger overrides the default logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithManagerActivitySink sets the sink receiving state-change events.
func WithManagerActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// NewManager returns a Manager in StateInitializing with loading set; call
// Initialize once at startup to resolve any persisted credential.
func NewManager(svc SessionService, store TokenStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		state:   StateInitializing,
		loading: true,
		svc:     svc,
		store:   store,
		logger:  defLogger{},
		sink:    noopActivitySink{},
		now:     time.Now,
		transitions: map[State]map[State]struct{}{
			StateInitializing: {
				StateAnonymous:     {},
				StateAuthenticated: {},
			},
			StateAnonymous: {
				StateAnonymous:     {},
				StateAuthenticated: {},
			},
			StateAuthenticated: {
				StateAnonymous:     {},
				StateAuthenticated: {},
			},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loading reports whether a session transition is in flight. It is true
// during startup resolution and during explicit login/logout transitions,
// and reaches false exactly once per transition on both paths.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// CurrentUser returns the authenticated user, if any.
func (m *Manager) CurrentUser() (*User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return nil, false
	}
	return m.user, true
}

// Initialize resolves any persisted credential into a user. No credential
// lands in Anonymous immediately; a present credential is resolved against
// the backend. A stale resolution (superseded by login or logout in the
// meantime) is discarded. Resolution failures are silent: the user simply
// lands on Anonymous, as if never logged in.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	m.loading = true
	gen := m.bumpGenerationLocked()

	if _, ok := m.store.Load(); !ok {
		m.applyLocked(gen, StateAnonymous, nil)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	user, err := m.svc.CurrentUser(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if IsResolutionFailure(err) {
			// Dead credential. Clear only when still current; a superseded
			// resolution must not wipe a token a newer login just stored.
			if gen == m.generation {
				if cerr := m.store.Clear(); cerr != nil {
					m.logger.Error("credential clear after failed resolution", "error", cerr)
				}
			}
		}
		m.applyLocked(gen, StateAnonymous, nil)
		return
	}

	m.applyLocked(gen, StateAuthenticated, user)
}

// Login authenticates and resolves the fresh credential into a user. On any
// failure the state returns to Anonymous and the error is surfaced so the
// UI can render it inline.
func (m *Manager) Login(ctx context.Context, username, password string) (*User, error) {
	m.mu.Lock()
	m.loading = true
	gen := m.bumpGenerationLocked()
	m.mu.Unlock()

	if err := m.svc.Login(ctx, username, password); err != nil {
		m.mu.Lock()
		m.applyLocked(gen, StateAnonymous, nil)
		m.mu.Unlock()
		return nil, err
	}

	user, err := m.svc.CurrentUser(ctx)
	if err != nil {
		m.mu.Lock()
		if gen == m.generation {
			if cerr := m.store.Clear(); cerr != nil {
				m.logger.Error("credential clear after failed post-login resolution", "error", cerr)
			}
		}
		m.applyLocked(gen, StateAnonymous, nil)
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	applied := m.applyLocked(gen, StateAuthenticated, user)
	m.mu.Unlock()

	if !applied {
		// Superseded by a later logout or login; report the race, not a
		// phantom success.
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "login superseded by a newer session operation",
		})
	}

	return user, nil
}

// Logout clears the credential and lands in Anonymous immediately; no
// network round-trip. A resolution already in flight cannot resurrect the
// session afterwards because the generation has moved on.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loading = true
	gen := m.bumpGenerationLocked()
	m.svc.Logout()
	m.applyLocked(gen, StateAnonymous, nil)
}

// Invalidate runs the forced-logout path for a 401 discovered outside the
// core, on an authenticated call made after the session was established.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated {
		return
	}

	m.loading = true
	gen := m.bumpGenerationLocked()
	m.svc.Logout()
	m.applyLocked(gen, StateAnonymous, nil)
}

// SetUser refreshes the Authenticated state with a freshly fetched User,
// the Update transition after a profile edit. It never creates a session:
// pushing a user while Anonymous or Initializing is an invalid transition.
func (m *Manager) SetUser(user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   string(m.state),
			"reason": "profile refresh requires an authenticated session",
		})
	}

	if user == nil {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "user is nil",
		})
	}

	m.user = user
	return nil
}

// bumpGenerationLocked invalidates every in-flight operation. Callers must
// hold the lock.
func (m *Manager) bumpGenerationLocked() uint64 {
	m.generation++
	return m.generation
}

// applyLocked commits a transition if gen is still current, and reports
// whether it was applied. The loading flag drops regardless when the
// generation matches, so dependent UI never hangs.
func (m *Manager) applyLocked(gen uint64, to State, user *User) bool {
	if gen != m.generation {
		m.logger.Debug("stale session transition discarded", "to", string(to), "generation", gen)
		return false
	}

	m.loading = false

	if _, ok := m.transitions[m.state][to]; !ok {
		m.logger.Error("transition not allowed", "from", string(m.state), "to", string(to))
		return false
	}

	from := m.state
	m.state = to
	if to == StateAuthenticated {
		m.user = user
	} else {
		m.user = nil
	}

	if from != to || to == StateAuthenticated {
		m.logger.Debug("session transition", "from", string(from), "to", string(to))
	}

	switch {
	case to == StateAuthenticated:
		m.emitLocked(ActivityEventSessionEstablished, m.user.Username)
	case from == StateAuthenticated && to == StateAnonymous:
		m.emitLocked(ActivityEventSessionCleared, "")
	}

	return true
}

func (m *Manager) emitLocked(eventType ActivityEventType, username string) {
	sink := normalizeActivitySink(m.sink)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{Type: "user"},
		Username:   username,
		OccurredAt: m.now(),
	}

	if err := sink.Record(context.Background(), event); err != nil {
		m.logger.Debug("activity sink record error: %v", err)
	}
}
