package channel

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"nare/internal/i18n"
	"nare/internal/permission"
	"nare/internal/session"
)

// handleSlash 处理 /start /help /status /lang；/run 交给引擎
// handleSlash answers the local slash commands and reports whether text was
// one of them. The run command is left to the engine.
func (a *Adapter) handleSlash(ctx context.Context, log *zap.Logger, sess *session.ChatSession, text string) bool {
	name := slashName(text)
	if name == "" {
		return false
	}
	tr := i18n.For(string(sess.Language))
	switch name {
	case "start":
		log.Info("chat connected")
		a.send(ctx, log, Outgoing{ChatID: sess.ID, Text: tr.T("start.connected")})
	case "help":
		a.send(ctx, log, Outgoing{ChatID: sess.ID, Text: tr.T("help.body")})
	case "status":
		a.send(ctx, log, Outgoing{ChatID: sess.ID, Text: tr.T("status.body", a.engine.ProviderName(), sess.Language.DisplayName(), permissionLines(a.permissionSet()))})
	case "lang":
		row := make([]Button, 0, len(session.Languages()))
		for _, l := range session.Languages() {
			row = append(row, Button{Text: l.DisplayName(), Data: langPrefix + string(l)})
		}
		a.send(ctx, log, Outgoing{ChatID: sess.ID, Text: tr.T("lang.prompt"), Buttons: [][]Button{row}})
	default:
		return false
	}
	return true
}

// slashName returns the lowercased command name of "/name@bot args", or "".
func slashName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	word := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	return strings.ToLower(word)
}

func permissionLines(set permission.Set) string {
	var b strings.Builder
	for i, c := range permission.Categories() {
		if i > 0 {
			b.WriteByte('\n')
		}
		state := "off"
		if set.Allowed(c) {
			state = "on"
		}
		b.WriteString("• ")
		b.WriteString(string(c))
		b.WriteString(": ")
		b.WriteString(state)
	}
	return b.String()
}
