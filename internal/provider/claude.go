package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"nare/internal/chat"
	"nare/internal/contextmgr"
)

// CommandFunc builds the subprocess for one CLI call. Tests swap it.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// ClaudeConfig configures the claude CLI backend.
type ClaudeConfig struct {
	Bin        string
	Timeout    time.Duration
	TokenLimit int
	Tokenizer  *contextmgr.Tokenizer
	Command    CommandFunc
}

// ClaudeCLI 通过 `claude -p` 子进程获取回复；认证由 CLI 自己管理
// ClaudeCLI asks the locally installed claude CLI for a reply. The CLI owns
// authentication; NARE only passes the composed prompt and reads stdout.
type ClaudeCLI struct {
	bin        string
	timeout    time.Duration
	tokenLimit int
	tok        *contextmgr.Tokenizer
	command    CommandFunc
}

func NewClaudeCLI(cfg ClaudeConfig) *ClaudeCLI {
	bin := strings.TrimSpace(cfg.Bin)
	if bin == "" {
		bin = "claude"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	tok := cfg.Tokenizer
	if tok == nil {
		tok = contextmgr.NewHeuristicTokenizer()
	}
	command := cfg.Command
	if command == nil {
		command = exec.CommandContext
	}
	return &ClaudeCLI{
		bin:        bin,
		timeout:    timeout,
		tokenLimit: cfg.TokenLimit,
		tok:        tok,
		command:    command,
	}
}

func (c *ClaudeCLI) Name() string { return string(KindClaude) }

func (c *ClaudeCLI) Request(ctx context.Context, history []chat.Message, systemPrompt string) (string, error) {
	fitted := contextmgr.Fit(c.tok, history, systemPrompt, c.tokenLimit)
	prompt := composePrompt(systemPrompt, fitted)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := c.command(callCtx, c.bin, "-p", prompt)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("claude after %s: %w", c.timeout, ErrTimeout)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, c.bin)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Code: exitErr.ExitCode(), Stderr: tail(strings.TrimSpace(stderr.String()), 500)}
		}
		return "", fmt.Errorf("run claude: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// composePrompt 把系统提示与历史拼接为单个文本提示
// composePrompt flattens the system prompt and transcript into the single
// text prompt the CLI accepts.
func composePrompt(systemPrompt string, history []chat.Message) string {
	var b strings.Builder
	if s := strings.TrimSpace(systemPrompt); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	b.WriteString("Conversation so far:\n")
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(strings.TrimSpace(msg.Content))
		b.WriteString("\n\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}

func tail(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return "…" + string(r[len(r)-max:])
}
