package provider

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"nare/internal/chat"
	"nare/internal/config"
	"nare/internal/contextmgr"
)

// Provider AI 后端接口：给定完整历史与系统提示，返回一段回复文本
// Provider is an AI backend: given the full history and a system prompt it
// returns one reply text
type Provider interface {
	Name() string
	Request(ctx context.Context, history []chat.Message, systemPrompt string) (string, error)
}

// Kind 后端类型（封闭集合）
// Kind names a backend variant
type Kind string

const (
	KindClaude   Kind = "claude"
	KindDeepSeek Kind = "deepseek"
)

var (
	// ErrTimeout is returned when the backend does not answer in time.
	ErrTimeout = errors.New("provider timed out")
	// ErrBinaryNotFound is returned when the claude executable cannot be spawned.
	ErrBinaryNotFound = errors.New("claude binary not found")
	// ErrNoBackend means neither an API key nor the claude CLI is available.
	ErrNoBackend = errors.New("no AI backend available")
)

// ExitError reports a non-zero exit of the claude CLI.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("claude exited with status %d", e.Code)
	}
	return fmt.Sprintf("claude exited with status %d: %s", e.Code, e.Stderr)
}

// StatusError reports a non-2xx HTTP response without a decodable error body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// Select 启动时一次性选择后端：显式配置优先，其次 API key，再次 PATH 上的 claude
// Select picks the backend once at startup. An explicit kind wins without
// probing; otherwise an API key selects DeepSeek, otherwise a claude binary
// on PATH selects Claude.
func Select(cfg config.ProviderConfig, lookPath func(string) (string, error)) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(cfg.Kind))) {
	case KindClaude:
		return KindClaude, nil
	case KindDeepSeek:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return "", fmt.Errorf("provider.kind is deepseek but no API key is set (provider.api_key or DEEPSEEK_API_KEY)")
		}
		return KindDeepSeek, nil
	case "":
	default:
		return "", fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}

	if strings.TrimSpace(cfg.APIKey) != "" {
		return KindDeepSeek, nil
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	bin := cfg.ClaudeBin
	if strings.TrimSpace(bin) == "" {
		bin = config.DefaultClaudeBin
	}
	if _, err := lookPath(bin); err == nil {
		return KindClaude, nil
	}
	return "", fmt.Errorf("%w: set DEEPSEEK_API_KEY or install the %q CLI and sign in", ErrNoBackend, bin)
}

// New builds the backend for kind.
func New(kind Kind, cfg config.ProviderConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultProviderTimeoutMS) * time.Millisecond
	}
	switch kind {
	case KindClaude:
		return NewClaudeCLI(ClaudeConfig{
			Bin:        cfg.ClaudeBin,
			Timeout:    timeout,
			TokenLimit: cfg.ContextTokenLimit,
			Tokenizer:  contextmgr.NewTokenizerForModel("claude"),
		}), nil
	case KindDeepSeek:
		return NewDeepSeek(DeepSeekConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    timeout,
			TokenLimit: cfg.ContextTokenLimit,
			Tokenizer:  contextmgr.NewTokenizerForModel(cfg.Model),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}
