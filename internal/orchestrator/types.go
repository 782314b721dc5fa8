package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"nare/internal/permission"
	"nare/internal/shell"
	"nare/internal/storage"
)

// PermissionSource 每次判定前都重新读取（不缓存）
// PermissionSource is read fresh before every decision
type PermissionSource interface {
	Load() permission.Set
}

// Executor runs one already-approved shell command.
type Executor interface {
	Run(ctx context.Context, command string) shell.Outcome
}

// Auditor 记录每一次命令判定（可选）
// Auditor records every command resolution (optional)
type Auditor interface {
	Record(ctx context.Context, entry storage.AuditEntry) error
}

type Options struct {
	MaxRounds    int
	HistoryLimit int
	Auditor      Auditor
	Logger       *zap.Logger
}

// Confirmation asks the channel to show a yes/no prompt for Command.
type Confirmation struct {
	Command string
	Label   string
}

// Result 一次用户回合的结果：要么是回复文本，要么是待确认请求
// Result is the outcome of one user turn: reply text, or a request for
// confirmation that the channel turns into an interactive prompt.
type Result struct {
	Text    string
	Confirm *Confirmation
}
