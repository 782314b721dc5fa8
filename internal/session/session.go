package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"nare/internal/chat"
)

const (
	DefaultHistoryLimit = 20
	DefaultConfirmTTL   = 60 * time.Second
)

// Language is a reply language selected by the user.
type Language string

const (
	English Language = "en"
	Korean  Language = "ko"
	Swedish Language = "sv"
)

// Languages lists the selectable languages in picker order.
func Languages() []Language {
	return []Language{English, Korean, Swedish}
}

func ParseLanguage(code string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(code))) {
	case English:
		return English, true
	case Korean:
		return Korean, true
	case Swedish:
		return Swedish, true
	default:
		return "", false
	}
}

// DisplayName is the language's own name.
func (l Language) DisplayName() string {
	switch l {
	case Korean:
		return "한국어"
	case Swedish:
		return "Svenska"
	default:
		return "English"
	}
}

// PendingConfirmation 等待用户确认的 /run 命令
// PendingConfirmation is a /run command waiting for a yes/no answer
type PendingConfirmation struct {
	ID        string
	Command   string
	Label     string
	ExpiresAt time.Time
}

func (p *PendingConfirmation) Expired(now time.Time) bool {
	return p == nil || !now.Before(p.ExpiresAt)
}

// ChatSession is the per-conversation state: language, bounded history and
// at most one pending confirmation.
type ChatSession struct {
	ID       string
	Language Language
	History  []chat.Message
	Pending  *PendingConfirmation
}

func New(id string) *ChatSession {
	return &ChatSession{ID: id, Language: English}
}

// Append adds msg and evicts the oldest entries beyond limit.
func (s *ChatSession) Append(msg chat.Message, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.History = append(s.History, msg)
	if over := len(s.History) - limit; over > 0 {
		s.History = append([]chat.Message(nil), s.History[over:]...)
	}
}

// SetPending replaces any pending confirmation with a fresh one.
func (s *ChatSession) SetPending(command, label string, now time.Time, ttl time.Duration) *PendingConfirmation {
	if ttl <= 0 {
		ttl = DefaultConfirmTTL
	}
	s.Pending = &PendingConfirmation{
		ID:        uuid.NewString(),
		Command:   command,
		Label:     label,
		ExpiresAt: now.Add(ttl),
	}
	return s.Pending
}

// TakePending clears the slot and returns its entry if it is still live.
// An expired entry is cleared as well but reported as absent.
func (s *ChatSession) TakePending(now time.Time) (*PendingConfirmation, bool) {
	p := s.Pending
	s.Pending = nil
	if p == nil || p.Expired(now) {
		return nil, false
	}
	return p, true
}

// ClearExpired drops the pending entry only if it is the one with id and it
// has expired. It reports whether anything was cleared.
func (s *ChatSession) ClearExpired(id string, now time.Time) bool {
	if s.Pending == nil || s.Pending.ID != id || !s.Pending.Expired(now) {
		return false
	}
	s.Pending = nil
	return true
}
