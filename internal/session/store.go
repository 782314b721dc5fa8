package session

import (
	"sort"
	"time"
)

// Store holds sessions by conversation id. Implementations are used from a
// single goroutine and need no locking.
type Store interface {
	Get(id string) (*ChatSession, bool)
	Put(s *ChatSession) error
	Delete(id string) error
	Range(fn func(*ChatSession) bool)
}

// GetOrCreate returns the stored session for id or a new English one.
func GetOrCreate(st Store, id string) *ChatSession {
	if s, ok := st.Get(id); ok {
		return s
	}
	return New(id)
}

// SweepExpired clears every pending confirmation whose deadline passed and
// returns the cleared entries.
func SweepExpired(st Store, now time.Time) ([]PendingConfirmation, error) {
	var (
		stale   []*ChatSession
		cleared []PendingConfirmation
	)
	st.Range(func(s *ChatSession) bool {
		if s.Pending != nil && s.Pending.Expired(now) {
			stale = append(stale, s)
		}
		return true
	})
	for _, s := range stale {
		p := *s.Pending
		if !s.ClearExpired(p.ID, now) {
			continue
		}
		if err := st.Put(s); err != nil {
			return cleared, err
		}
		cleared = append(cleared, p)
	}
	return cleared, nil
}

// MemoryStore keeps sessions for the lifetime of the process.
type MemoryStore struct {
	sessions map[string]*ChatSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*ChatSession{}}
}

func (m *MemoryStore) Get(id string) (*ChatSession, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

func (m *MemoryStore) Put(s *ChatSession) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	delete(m.sessions, id)
	return nil
}

// Range visits sessions in id order.
func (m *MemoryStore) Range(fn func(*ChatSession) bool) {
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !fn(m.sessions[id]) {
			return
		}
	}
}
