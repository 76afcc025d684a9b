package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a robot.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Entry is a live robot session.
type Entry struct {
	ID      string
	Session *runtime.Session
	Created time.Time
}

// Manager holds live sessions and makes sure only one caller drives a robot
// at a time. Unused locks are garbage collected by reference counting.
type Manager struct {
	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active per-session locks

	smu      sync.RWMutex
	sessions map[string]*Entry

	locker  ports.DistributedLocker // optional, for replicas sharing robots
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates an empty session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*Entry),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, then call release after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Add registers a session under id.
func (m *Manager) Add(id string, s *runtime.Session) (*Entry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty session id", domain.ErrInvalidArgument)
	}
	m.smu.Lock()
	defer m.smu.Unlock()
	if _, dup := m.sessions[id]; dup {
		return nil, fmt.Errorf("%w: session %q already exists", domain.ErrInvalidArgument, id)
	}
	e := &Entry{ID: id, Session: s, Created: time.Now()}
	m.sessions[id] = e
	m.logger.Debug("session added", "session_id", id)
	return e, nil
}

// Get returns the session registered under id.
func (m *Manager) Get(id string) (*Entry, error) {
	m.smu.RLock()
	defer m.smu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrSessionNotFound, id)
	}
	return e, nil
}

// List returns the IDs of every live session, sorted.
func (m *Manager) List() []string {
	m.smu.RLock()
	defer m.smu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove forgets a session once nobody is driving it.
func (m *Manager) Remove(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		m.smu.Lock()
		defer m.smu.Unlock()
		if _, ok := m.sessions[id]; !ok {
			return fmt.Errorf("%w: %q", domain.ErrSessionNotFound, id)
		}
		delete(m.sessions, id)
		m.logger.Debug("session removed", "session_id", id)
		return nil
	})
}

// Do runs fn with exclusive access to the session.
func (m *Manager) Do(ctx context.Context, id string, fn func(context.Context, *runtime.Session) error) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		e, err := m.Get(id)
		if err != nil {
			return err
		}
		return fn(ctx, e.Session)
	})
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
