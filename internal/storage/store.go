package storage

import "context"

// Store 持久化接口 / Store is the persistence interface
type Store interface {
	// Session 操作 / Session operations
	SaveSession(rec SessionRecord) error
	LoadSession(id string) (SessionRecord, error)
	ListSessions() ([]SessionRecord, error)
	DeleteSession(id string) error

	// 审计日志 / Audit log
	Record(ctx context.Context, entry AuditEntry) error
	ListAudit(limit int) ([]AuditEntry, error)

	// 生命周期 / Lifecycle
	Close() error
}
