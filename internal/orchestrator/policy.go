package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"nare/internal/i18n"
	"nare/internal/security"
	"nare/internal/session"
	"nare/internal/storage"
)

var (
	directivePattern = regexp.MustCompile(`(?s)<run>(.*?)</run>`)
	markerPattern    = regexp.MustCompile(`</?run>`)
)

// resolveDirectives 从左到右逐个判定 <run> 指令并原位替换
// resolveDirectives classifies every directive left to right against a fresh
// permission snapshot and substitutes it with the command output or a notice.
// It reports whether any command actually ran.
func (o *Orchestrator) resolveDirectives(ctx context.Context, sess *session.ChatSession, reply string) (string, bool) {
	matches := directivePattern.FindAllStringSubmatchIndex(reply, -1)
	if len(matches) == 0 {
		return reply, false
	}
	tr := i18n.For(string(sess.Language))

	var b strings.Builder
	executed := false
	last := 0
	for _, m := range matches {
		b.WriteString(reply[last:m[0]])
		last = m[1]

		cmd := strings.TrimSpace(reply[m[2]:m[3]])
		v := security.Classify(cmd)
		perms := o.perms.Load()
		log := o.log.With(zap.String("chat_id", sess.ID), zap.String("command", cmd), zap.String("verdict", v.String()))
		entry := storage.AuditEntry{ChatID: sess.ID, Source: storage.SourceDirective, Command: cmd, Verdict: v.String()}

		switch {
		case v.Kind == security.VerdictBlocked:
			log.Info("directive blocked")
			entry.Detail = v.Reason
			b.WriteString(tr.T("run.blocked", inlineCommand(cmd), v.Reason))
		case v.Executable(perms):
			out := o.exec.Run(ctx, cmd)
			executed = true
			log.Info("directive executed", zap.Int("exit_code", out.ExitCode), zap.Duration("duration", out.Duration))
			entry.Executed = true
			entry.ExitCode = out.ExitCode
			b.WriteString(out.Format())
		default:
			log.Info("directive denied", zap.String("category", string(v.Category)))
			entry.Detail = "permission denied"
			b.WriteString(tr.T("run.denied", inlineCommand(cmd), v.Category, v.Category.Describe(), v.Category))
		}
		o.audit(ctx, entry)
	}
	b.WriteString(reply[last:])
	return b.String(), executed
}

// stripDirectives removes whole directives, command text included.
func stripDirectives(s string) string {
	return directivePattern.ReplaceAllString(s, "")
}

// stripMarkers removes dangling opening or closing tags.
func stripMarkers(s string) string {
	return markerPattern.ReplaceAllString(s, "")
}
