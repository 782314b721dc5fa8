package storage

import "nare/internal/chat"

// SessionRecord 持久化的会话（不含待确认命令）
// SessionRecord is a persisted chat session; pending confirmations are never stored
type SessionRecord struct {
	ID        string         `json:"id"`
	Language  string         `json:"language"`
	History   []chat.Message `json:"history"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// Audit sources.
const (
	SourceDirective = "directive"
	SourceRun       = "run"
)

// AuditEntry 命令审计日志条目
// AuditEntry records how one candidate command was resolved
type AuditEntry struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	Source    string `json:"source"`
	Command   string `json:"command"`
	Verdict   string `json:"verdict"`
	Detail    string `json:"detail"`
	Executed  bool   `json:"executed"`
	ExitCode  int    `json:"exit_code"`
	CreatedAt string `json:"created_at"`
}
