package storage

import (
	"fmt"
	"sort"

	"nare/internal/chat"
	"nare/internal/session"
)

// SessionStore implements session.Store over a Store. Sessions are cached
// in memory and written through on every Put; pending confirmations live
// only in the cache, so they do not survive a restart.
type SessionStore struct {
	db    Store
	cache map[string]*session.ChatSession
}

// NewSessionStore loads every persisted session into the cache.
func NewSessionStore(db Store) (*SessionStore, error) {
	recs, err := db.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	st := &SessionStore{db: db, cache: make(map[string]*session.ChatSession, len(recs))}
	for _, rec := range recs {
		st.cache[rec.ID] = fromRecord(rec)
	}
	return st, nil
}

func (st *SessionStore) Get(id string) (*session.ChatSession, bool) {
	s, ok := st.cache[id]
	return s, ok
}

func (st *SessionStore) Put(s *session.ChatSession) error {
	st.cache[s.ID] = s
	if err := st.db.SaveSession(toRecord(s)); err != nil {
		return fmt.Errorf("persist session %s: %w", s.ID, err)
	}
	return nil
}

func (st *SessionStore) Delete(id string) error {
	delete(st.cache, id)
	return st.db.DeleteSession(id)
}

func (st *SessionStore) Range(fn func(*session.ChatSession) bool) {
	ids := make([]string, 0, len(st.cache))
	for id := range st.cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !fn(st.cache[id]) {
			return
		}
	}
}

func toRecord(s *session.ChatSession) SessionRecord {
	return SessionRecord{
		ID:       s.ID,
		Language: string(s.Language),
		History:  append([]chat.Message(nil), s.History...),
	}
}

func fromRecord(rec SessionRecord) *session.ChatSession {
	s := session.New(rec.ID)
	if lang, ok := session.ParseLanguage(rec.Language); ok {
		s.Language = lang
	}
	s.History = rec.History
	return s
}
