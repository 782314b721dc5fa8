package channel

import (
	"context"
	"errors"
)

// ErrClosed is returned by a Transport that will never deliver more updates.
var ErrClosed = errors.New("transport closed")

// Update 入站事件：文本消息或回调（二者之一）
// Update is one inbound event, either a text message or a button callback.
type Update struct {
	ID       int64
	ChatID   string
	Text     string
	Callback *Callback
}

// Callback carries the data of a pressed inline button.
type Callback struct {
	ID   string
	Data string
}

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Outgoing 出站消息；Buttons 按行组织
// Outgoing is one outbound message. Buttons are laid out in rows.
type Outgoing struct {
	ChatID   string
	Text     string
	Markdown bool
	Buttons  [][]Button
}

// Transport 聊天传输层（Telegram、本地控制台）
// Transport is the chat network seen by the adapter.
type Transport interface {
	// GetUpdates returns updates with ID >= offset, blocking up to the
	// transport's long-poll timeout.
	GetUpdates(ctx context.Context, offset int64) ([]Update, error)
	Send(ctx context.Context, msg Outgoing) error
	Typing(ctx context.Context, chatID string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Callback data values.
const (
	DataConfirmYes = "confirm:yes"
	DataConfirmNo  = "confirm:no"
	langPrefix     = "lang:"
)
