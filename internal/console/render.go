package console

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	prompt lipgloss.Style
	button lipgloss.Style
	muted  lipgloss.Style
}

func colorStyles() styles {
	return styles{
		prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true),
		button: lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
}

func plainStyles() styles {
	return styles{prompt: lipgloss.NewStyle(), button: lipgloss.NewStyle(), muted: lipgloss.NewStyle()}
}

// renderMarkdown 使用 Glamour 渲染 markdown 文本
// renderMarkdown renders markdown text using Glamour
func renderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.Trim(rendered, "\n")
}
