package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nare/internal/channel"
)

// maxMessageRunes is the Bot API limit for one sendMessage text.
const maxMessageRunes = 4096

var _ channel.Transport = (*Channel)(nil)

// Channel adapts the Bot API to channel.Transport.
type Channel struct {
	client      *Client
	pollTimeout int
	log         *zap.Logger
}

func NewChannel(client *Client, pollTimeout time.Duration, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	secs := int(pollTimeout / time.Second)
	if secs <= 0 {
		secs = 25
	}
	return &Channel{client: client, pollTimeout: secs, log: log}
}

// GetUpdates 转换为通用 Update；无法处理的更新也返回（ChatID 为空），以便推进 offset
// GetUpdates converts Bot API updates. Updates NARE cannot handle are still
// returned with an empty ChatID so that the offset moves past them.
func (c *Channel) GetUpdates(ctx context.Context, offset int64) ([]channel.Update, error) {
	raw, err := c.client.GetUpdates(ctx, offset, c.pollTimeout)
	if err != nil {
		return nil, err
	}
	out := make([]channel.Update, 0, len(raw))
	for _, u := range raw {
		out = append(out, convertUpdate(u))
	}
	return out, nil
}

func convertUpdate(u tgbotapi.Update) channel.Update {
	out := channel.Update{ID: int64(u.UpdateID)}
	switch {
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		switch {
		case cb.Message != nil && cb.Message.Chat != nil:
			out.ChatID = channel.FormatChatID(cb.Message.Chat.ID)
		case cb.From != nil:
			out.ChatID = channel.FormatChatID(cb.From.ID)
		}
		out.Callback = &channel.Callback{ID: cb.ID, Data: cb.Data}
	case u.Message != nil && u.Message.Chat != nil && u.Message.Text != "":
		out.ChatID = channel.FormatChatID(u.Message.Chat.ID)
		out.Text = u.Message.Text
	}
	return out
}

// Send 超长文本按 4096 字符切分；Markdown 解析失败时回退为纯文本重发
// Send splits long texts at the Bot API limit. Buttons go on the last part.
// A Markdown part the API refuses to parse is resent as plain text.
func (c *Channel) Send(ctx context.Context, msg channel.Outgoing) error {
	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return err
	}
	parts := splitMessage(msg.Text, maxMessageRunes)
	for i, part := range parts {
		cfg := tgbotapi.NewMessage(chatID, part)
		if msg.Markdown {
			cfg.ParseMode = tgbotapi.ModeMarkdown
		}
		if i == len(parts)-1 && len(msg.Buttons) > 0 {
			cfg.ReplyMarkup = keyboard(msg.Buttons)
		}
		err := c.client.SendMessage(ctx, cfg)
		if err != nil && cfg.ParseMode != "" && isParseError(err) {
			c.log.Debug("markdown rejected, resending as plain text", zap.String("chat_id", msg.ChatID))
			cfg.ParseMode = ""
			err = c.client.SendMessage(ctx, cfg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) Typing(ctx context.Context, chatID string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	return c.client.SendChatAction(ctx, id, tgbotapi.ChatTyping)
}

func (c *Channel) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return c.client.AnswerCallbackQuery(ctx, callbackID, text)
}

func parseChatID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram chat id %q: %w", id, err)
	}
	return n, nil
}

func keyboard(rows [][]channel.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

func isParseError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Description), "parse")
}

// splitMessage cuts text into parts of at most limit runes, preferring line
// breaks in the second half of each part.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
