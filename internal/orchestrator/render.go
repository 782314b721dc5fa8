package orchestrator

import (
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"nare/internal/i18n"
	"nare/internal/provider"
)

// providerNotice 将 provider 错误渲染为本地化聊天消息
// providerNotice renders a provider fault as a localized chat message.
func providerNotice(tr *i18n.I18n, err error) string {
	switch {
	case errors.Is(err, provider.ErrTimeout):
		return tr.T("provider.timeout")
	case errors.Is(err, provider.ErrBinaryNotFound):
		return tr.T("provider.not_found")
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return tr.T("provider.error", apiErr.Message)
	}
	var exitErr *provider.ExitError
	if errors.As(err, &exitErr) {
		return tr.T("provider.error", exitErr.Error())
	}
	return tr.T("provider.error", summarize(err.Error(), 300))
}

// inlineCommand keeps a command printable inside a single backtick span.
func inlineCommand(cmd string) string {
	return strings.ReplaceAll(strings.TrimSpace(cmd), "`", "'")
}

func summarize(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
