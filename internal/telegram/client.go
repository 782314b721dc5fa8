package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client 包装 telegram-bot-api：只用同步调用，长轮询循环由 channel.Adapter 负责
// Client wraps the Bot API library with context-aware calls. Only the
// synchronous methods are used; the poll loop belongs to channel.Adapter.
type Client struct {
	bot   *tgbotapi.BotAPI
	http  tgbotapi.HTTPClient
	token string
}

// NewClient builds a client without contacting the API. pollTimeout sizes
// the HTTP timeout so a long poll is never cut short by the transport.
func NewClient(apiBase, token string, pollTimeout time.Duration) *Client {
	return newClient(apiBase, token, &http.Client{Timeout: pollTimeout + 15*time.Second})
}

func newClient(apiBase, token string, hc tgbotapi.HTTPClient) *Client {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	bot := &tgbotapi.BotAPI{Token: token, Client: hc, Buffer: 100}
	bot.SetAPIEndpoint(base + "/bot%s/%s")
	return &Client{bot: bot, http: hc, token: token}
}

// APIError is an ok=false reply from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// contextClient binds one call's context to the library's requests.
type contextClient struct {
	ctx  context.Context
	next tgbotapi.HTTPClient
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.next.Do(req.WithContext(c.ctx))
}

func (c *Client) api(ctx context.Context) *tgbotapi.BotAPI {
	bot := *c.bot
	bot.Client = contextClient{ctx: ctx, next: c.http}
	return &bot
}

// wrap maps library errors to APIError and hides the token, which
// url.Error text carries inside the request URL.
func (c *Client) wrap(method string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{Method: method, Code: apiErr.Code, Description: apiErr.Message, RetryAfter: apiErr.RetryAfter}
	}
	return fmt.Errorf("telegram %s: %w", method, redact(err, c.token))
}

// GetMe validates the token and returns the bot identity.
func (c *Client) GetMe(ctx context.Context) (tgbotapi.User, error) {
	u, err := c.api(ctx).GetMe()
	return u, c.wrap("getMe", err)
}

// GetUpdates long-polls for message and callback updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]tgbotapi.Update, error) {
	updates, err := c.api(ctx).GetUpdates(tgbotapi.UpdateConfig{
		Offset:         int(offset),
		Timeout:        timeoutSec,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		return nil, c.wrap("getUpdates", err)
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, msg tgbotapi.MessageConfig) error {
	_, err := c.api(ctx).Send(msg)
	return c.wrap("sendMessage", err)
}

func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	_, err := c.api(ctx).Request(tgbotapi.NewChatAction(chatID, action))
	return c.wrap("sendChatAction", err)
}

// AnswerCallbackQuery stops the button spinner; an empty text shows no toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id, text string) error {
	_, err := c.api(ctx).Request(tgbotapi.NewCallback(id, text))
	return c.wrap("answerCallbackQuery", err)
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), cause: err}
}
