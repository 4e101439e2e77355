package session

import (
	"context"
	"errors"
	"sync"

	"attendkiosk/internal/backend"
)

// ErrNoToken is returned by Login when the token is missing.
var ErrNoToken = errors.New("token required")

// Manager is the process-wide current session. It is safe for concurrent use
// and every component reads through it rather than holding its own copy.
type Manager struct {
	mu    sync.RWMutex
	store Store
	cur   Session
}

// NewManager wraps a durable store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Init loads the persisted session synchronously. It must complete before
// any route decision so a restarted agent never reports a logged-in user as
// absent.
func (m *Manager) Init(ctx context.Context) error {
	s, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()
	return nil
}

// Login persists token and user together, then swaps them in. A prior
// session is replaced silently.
func (m *Manager) Login(ctx context.Context, token string, user backend.User) error {
	if token == "" {
		return ErrNoToken
	}
	s := Session{Token: token, User: &user}
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()
	return nil
}

// Logout clears durable storage and in-memory state together.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.cur = Session{}
	m.mu.Unlock()
	return nil
}

// Current returns a copy of the session; mutating it does not touch the
// managed state.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.cur
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Token returns the bearer token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.Token
}
