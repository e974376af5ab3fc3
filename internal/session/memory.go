package session

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/honeypot/internal/domain"
)

type entry struct {
	mu      sync.Mutex
	session *domain.Session
}

// MemoryStore is an in-process Store. Each session carries its own mutex;
// the index map is guarded separately so lookups never wait on a busy
// session.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*entry
	order []string
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*entry),
		now:   time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now()
}

// Create allocates a RUNNING session identified by a UUIDv7.
func (m *MemoryStore) Create(analysis *domain.Analysis) *domain.Session {
	s := domain.NewSession(uuid.Must(uuid.NewV7()).String(), analysis, m.clock())

	m.mu.Lock()
	m.items[s.ID] = &entry{session: s}
	m.order = append(m.order, s.ID)
	m.mu.Unlock()

	return s.Clone()
}

func (m *MemoryStore) lookup(id string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[id]
}

// Get returns a deep copy of the session.
func (m *MemoryStore) Get(id string) (*domain.Session, error) {
	e := m.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// End marks the session ENDED with reason, once.
func (m *MemoryStore) End(id string, reason domain.StopReason) {
	_ = m.Update(id, func(s *domain.Session) error {
		s.End(reason)
		return nil
	})
}

// AppendMessage adds a transcript entry stamped with the current time.
func (m *MemoryStore) AppendMessage(id string, role domain.Role, text string) {
	now := m.clock()
	_ = m.Update(id, func(s *domain.Session) error {
		s.Append(role, text, now)
		return nil
	})
}

// TouchLastContact stamps the latest actor contact time.
func (m *MemoryStore) TouchLastContact(id string) {
	now := m.clock()
	_ = m.Update(id, func(s *domain.Session) error {
		s.LastContactAt = now
		return nil
	})
}

// Update runs fn while holding the session's lock.
func (m *MemoryStore) Update(id string, fn func(s *domain.Session) error) error {
	e := m.lookup(id)
	if e == nil {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// List returns snapshots in creation order.
func (m *MemoryStore) List() []*domain.Session {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.order))
	for _, id := range m.order {
		entries = append(entries, m.items[id])
	}
	m.mu.RUnlock()

	out := make([]*domain.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.session.Clone())
		e.mu.Unlock()
	}
	return out
}

// Remove drops the session from the store.
func (m *MemoryStore) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return true
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
