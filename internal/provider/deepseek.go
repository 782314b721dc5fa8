package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"nare/internal/chat"
	"nare/internal/contextmgr"
)

// DeepSeekConfig configures the HTTP backend.
type DeepSeekConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	TokenLimit int
	Tokenizer  *contextmgr.Tokenizer
	HTTPClient *http.Client
}

// DeepSeekHTTP 对 OpenAI 兼容的 /chat/completions 发起单次非流式请求
// DeepSeekHTTP sends one non-streaming chat completion per request.
type DeepSeekHTTP struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	tokenLimit int
	tok        *contextmgr.Tokenizer
	httpClient *http.Client
}

// completionEnvelope covers both the success body and the error body.
type completionEnvelope struct {
	Choices []openai.ChatCompletionChoice `json:"choices"`
	Usage   openai.Usage                  `json:"usage"`
	Error   *openai.APIError              `json:"error,omitempty"`
}

func NewDeepSeek(cfg DeepSeekConfig) *DeepSeekHTTP {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "deepseek-chat"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	tok := cfg.Tokenizer
	if tok == nil {
		tok = contextmgr.NewHeuristicTokenizer()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &DeepSeekHTTP{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		timeout:    timeout,
		tokenLimit: cfg.TokenLimit,
		tok:        tok,
		httpClient: client,
	}
}

func (d *DeepSeekHTTP) Name() string { return string(KindDeepSeek) }

func (d *DeepSeekHTTP) Request(ctx context.Context, history []chat.Message, systemPrompt string) (string, error) {
	fitted := contextmgr.Fit(d.tok, history, systemPrompt, d.tokenLimit)
	payload := buildCompletionRequest(d.model, systemPrompt, fitted)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("deepseek after %s: %w", d.timeout, ErrTimeout)
		}
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("deepseek after %s: %w", d.timeout, ErrTimeout)
		}
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var env completionEnvelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && env.Error != nil {
			env.Error.HTTPStatusCode = resp.StatusCode
			return "", env.Error
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Body: tail(strings.TrimSpace(string(data)), 500)}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("parse chat response: %w", decodeErr)
	}
	if env.Error != nil {
		return "", env.Error
	}
	if len(env.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return strings.TrimSpace(env.Choices[0].Message.Content), nil
}

// buildCompletionRequest 系统消息在前，随后按角色标注的历史
// buildCompletionRequest puts the system message first, then the role-tagged turns.
func buildCompletionRequest(model, systemPrompt string, history []chat.Message) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
}
