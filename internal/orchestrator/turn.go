package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"nare/internal/chat"
	"nare/internal/i18n"
	"nare/internal/session"
)

// runTurn 一个用户回合：最多 maxRounds 次 provider 调用
// runTurn drives one user turn. Each round is one provider call plus one
// directive resolution pass. A follow-up round happens only when a directive
// actually ran. When the bound is reached through follow-ups, the last reply's
// directives are stripped instead of run.
func (o *Orchestrator) runTurn(ctx context.Context, sess *session.ChatSession, text string) (string, error) {
	tr := i18n.For(string(sess.Language))
	sess.Append(chat.User(text), o.historyLimit)

	var parts []string
	for round := 1; round <= o.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		log := o.log.With(zap.String("chat_id", sess.ID), zap.Int("round", round), zap.String("provider", o.ProviderName()))

		prompt := BuildSystemPrompt(o.perms.Load(), sess.Language)
		reply, err := o.provider.Request(ctx, sess.History, prompt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			log.Warn("provider request failed", zap.Error(err))
			parts = append(parts, providerNotice(tr, err))
			break
		}
		log.Debug("provider replied", zap.Int("chars", len(reply)))

		final := round == o.maxRounds && round > 1
		var executed bool
		if final {
			reply = stripDirectives(reply)
		} else {
			reply, executed = o.resolveDirectives(ctx, sess, reply)
		}
		reply = strings.TrimSpace(stripMarkers(reply))

		if reply != "" {
			sess.Append(chat.Assistant(reply), o.historyLimit)
			parts = append(parts, reply)
		}
		if !executed {
			break
		}
	}

	if len(parts) == 0 {
		return tr.T("reply.empty"), nil
	}
	return strings.Join(parts, "\n\n"), nil
}
