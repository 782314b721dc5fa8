package shell

import (
	"fmt"
	"strings"
)

// Format renders the outcome for a chat reply. Successful output is cut to
// 3000 characters. A failure shows stdout and stderr, each cut to 2000.
func (o Outcome) Format() string {
	var b strings.Builder
	if o.OK() {
		fmt.Fprintf(&b, "✅ `%s`\n", inlineCode(o.Command))
		body := strings.TrimRight(o.Stdout, "\n")
		if strings.TrimSpace(body) == "" {
			body = strings.TrimRight(o.Stderr, "\n")
		}
		if strings.TrimSpace(body) == "" {
			body = "(no output)"
		}
		writeFence(&b, truncateRunes(body, successRuneLimit))
		return b.String()
	}

	switch {
	case o.TimedOut:
		fmt.Fprintf(&b, "❌ `%s` timed out\n", inlineCode(o.Command))
	case o.Err != nil:
		fmt.Fprintf(&b, "❌ `%s` could not start: %v\n", inlineCode(o.Command), o.Err)
	default:
		fmt.Fprintf(&b, "❌ `%s` failed (exit %d)\n", inlineCode(o.Command), o.ExitCode)
	}
	stdout := strings.TrimRight(o.Stdout, "\n")
	stderr := strings.TrimRight(o.Stderr, "\n")
	hasOut, hasErr := strings.TrimSpace(stdout) != "", strings.TrimSpace(stderr) != ""
	switch {
	case hasOut && hasErr:
		b.WriteString("stdout:\n")
		writeFence(&b, truncateRunes(stdout, failureRuneLimit))
		b.WriteString("\nstderr:\n")
		writeFence(&b, truncateRunes(stderr, failureRuneLimit))
	case hasErr:
		writeFence(&b, truncateRunes(stderr, failureRuneLimit))
	case hasOut:
		writeFence(&b, truncateRunes(stdout, failureRuneLimit))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeFence(b *strings.Builder, body string) {
	b.WriteString("```\n")
	b.WriteString(strings.ReplaceAll(body, "```", "'''"))
	b.WriteString("\n```")
}

func inlineCode(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "\n…(truncated)"
}
