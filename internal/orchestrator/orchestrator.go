package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"nare/internal/i18n"
	"nare/internal/provider"
	"nare/internal/security"
	"nare/internal/session"
	"nare/internal/storage"
)

const defaultMaxRounds = 3

type Orchestrator struct {
	provider     provider.Provider
	perms        PermissionSource
	exec         Executor
	auditor      Auditor
	maxRounds    int
	historyLimit int
	log          *zap.Logger
}

func New(p provider.Provider, perms PermissionSource, exec Executor, opts Options) *Orchestrator {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = session.DefaultHistoryLimit
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		provider:     p,
		perms:        perms,
		exec:         exec,
		auditor:      opts.Auditor,
		maxRounds:    maxRounds,
		historyLimit: historyLimit,
		log:          log,
	}
}

// ProviderName reports the active backend for /status.
func (o *Orchestrator) ProviderName() string {
	if o.provider == nil {
		return ""
	}
	return o.provider.Name()
}

// Respond 处理一条用户文本：/run 直接判定，其余进入有界的多轮 AI 对话
// Respond handles one user message. A run command is classified directly and
// never reaches the AI; anything else enters the bounded multi-round dialogue.
// The only error returned is context cancellation; provider faults become a
// localized reply.
func (o *Orchestrator) Respond(ctx context.Context, sess *session.ChatSession, text string) (Result, error) {
	if cmd, ok := ParseRun(text); ok {
		return o.handleRun(ctx, sess, cmd), nil
	}
	reply, err := o.runTurn(ctx, sess, text)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: reply}, nil
}

// ParseRun 识别 "/run <cmd>"（也接受 "/run@botname <cmd>"）
// ParseRun reports whether text is a run command and returns its argument,
// which is empty when the user typed the bare command.
func ParseRun(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/run") {
		return "", false
	}
	rest := trimmed[len("/run"):]
	if strings.HasPrefix(rest, "@") {
		end := strings.IndexFunc(rest, isSpaceRune)
		if end < 0 {
			return "", true
		}
		rest = rest[end:]
	}
	if rest != "" && !isSpaceRune(rune(rest[0])) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func (o *Orchestrator) handleRun(ctx context.Context, sess *session.ChatSession, cmd string) Result {
	tr := i18n.For(string(sess.Language))
	if cmd == "" {
		return Result{Text: tr.T("run.usage")}
	}

	v := security.ClassifyRun(cmd, o.perms.Load())
	log := o.log.With(zap.String("chat_id", sess.ID), zap.String("command", cmd), zap.String("verdict", v.String()))
	switch v.Kind {
	case security.VerdictBlocked:
		log.Info("run command blocked")
		o.audit(ctx, storage.AuditEntry{ChatID: sess.ID, Source: storage.SourceRun, Command: cmd, Verdict: v.String(), Detail: v.Reason})
		return Result{Text: tr.T("run.blocked", inlineCommand(cmd), v.Reason)}
	case security.VerdictRequiresConfirmation:
		log.Info("run command needs confirmation", zap.String("label", v.Label))
		o.audit(ctx, storage.AuditEntry{ChatID: sess.ID, Source: storage.SourceRun, Command: cmd, Verdict: v.String(), Detail: "awaiting confirmation"})
		return Result{Confirm: &Confirmation{Command: cmd, Label: v.Label}}
	default:
		out := o.exec.Run(ctx, cmd)
		log.Info("run command executed", zap.Int("exit_code", out.ExitCode), zap.Duration("duration", out.Duration))
		o.audit(ctx, storage.AuditEntry{ChatID: sess.ID, Source: storage.SourceRun, Command: cmd, Verdict: v.String(), Executed: true, ExitCode: out.ExitCode})
		return Result{Text: out.Format()}
	}
}

// RunConfirmed 用户批准后执行：按当前权限重新判定，已变为 Blocked 则拒绝
// RunConfirmed executes a command the user approved. The command is
// re-classified against the current permissions first and refused if it has
// become blocked in the meantime. It runs at most once per call.
func (o *Orchestrator) RunConfirmed(ctx context.Context, sess *session.ChatSession, cmd string) string {
	tr := i18n.For(string(sess.Language))
	v := security.ClassifyRun(cmd, o.perms.Load())
	log := o.log.With(zap.String("chat_id", sess.ID), zap.String("command", cmd), zap.String("verdict", v.String()))
	if v.Kind == security.VerdictBlocked {
		log.Warn("approved command is now blocked")
		o.audit(ctx, storage.AuditEntry{ChatID: sess.ID, Source: storage.SourceRun, Command: cmd, Verdict: v.String(), Detail: "approved but blocked"})
		return tr.T("confirm.approved_blocked", inlineCommand(cmd), v.Reason)
	}
	out := o.exec.Run(ctx, cmd)
	log.Info("confirmed command executed", zap.Int("exit_code", out.ExitCode), zap.Duration("duration", out.Duration))
	o.audit(ctx, storage.AuditEntry{ChatID: sess.ID, Source: storage.SourceRun, Command: cmd, Verdict: v.String(), Detail: "confirmed", Executed: true, ExitCode: out.ExitCode})
	return out.Format()
}

func (o *Orchestrator) audit(ctx context.Context, entry storage.AuditEntry) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.Record(ctx, entry); err != nil {
		o.log.Warn("audit record failed", zap.String("command", entry.Command), zap.Error(err))
	}
}
