package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"nare/internal/channel"
)

// ChatID is the single conversation the console drives.
const ChatID = "console"

type Options struct {
	In          io.Reader
	Out         io.Writer
	HistoryPath string
	// Plain disables readline, Markdown rendering and colors.
	Plain bool
}

var _ channel.Transport = (*Console)(nil)

// Console 本地终端传输：一个会话，按行读取输入
// Console is a local terminal transport with one conversation. It lets the
// engine be driven without Telegram.
type Console struct {
	input   lineSource
	out     io.Writer
	styles  styles
	render  func(string) string
	mu      sync.Mutex
	buttons []channel.Button
	nextID  int64
	nextCB  int
}

func New(opts Options) (*Console, error) {
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	c := &Console{out: out, nextID: 1}
	tty := !opts.Plain && isTerminal(in) && isTerminal(out)
	if tty {
		rl, err := newEditorSource(opts.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("init line editor: %w", err)
		}
		c.input = rl
		c.styles = colorStyles()
		width := terminalWidth(out)
		c.render = func(s string) string { return renderMarkdown(s, width) }
	} else {
		c.input = newScannerSource(in)
		c.styles = plainStyles()
		c.render = func(s string) string { return s }
	}
	return c, nil
}

func (c *Console) Close() error {
	return c.input.Close()
}

// GetUpdates 阻塞读取一行；EOF 或 Ctrl-C 返回 channel.ErrClosed
// GetUpdates blocks for one line. EOF and interrupt close the transport.
func (c *Console) GetUpdates(ctx context.Context, offset int64) ([]channel.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	pending := c.buttons
	c.mu.Unlock()
	line, err := c.input.next(promptFor(c.styles.prompt.Render("nare"), pending), pending)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil, channel.ErrClosed
		}
		return nil, fmt.Errorf("read input: %w", err)
	}
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if offset > c.nextID {
		c.nextID = offset
	}
	u := channel.Update{ID: c.nextID, ChatID: ChatID}
	c.nextID++
	if data, ok := parseInput(line, c.buttons); ok {
		c.nextCB++
		u.Callback = &channel.Callback{ID: "console-" + strconv.Itoa(c.nextCB), Data: data}
		c.buttons = nil
	} else {
		u.Text = line
	}
	return []channel.Update{u}, nil
}

func (c *Console) Send(_ context.Context, msg channel.Outgoing) error {
	text := msg.Text
	if msg.Markdown {
		text = c.render(text)
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteByte('\n')

	var flat []channel.Button
	for _, row := range msg.Buttons {
		flat = append(flat, row...)
	}
	if len(flat) > 0 {
		labels := make([]string, 0, len(flat))
		for i, btn := range flat {
			labels = append(labels, c.styles.button.Render(fmt.Sprintf("[%d] %s", i+1, btn.Text)))
		}
		b.WriteString(strings.Join(labels, "  "))
		b.WriteByte('\n')
	}

	c.mu.Lock()
	if len(flat) > 0 {
		c.buttons = flat
	}
	c.mu.Unlock()

	_, err := io.WriteString(c.out, b.String())
	return err
}

func (c *Console) Typing(context.Context, string) error {
	_, err := fmt.Fprintln(c.out, c.styles.muted.Render("…"))
	return err
}

func (c *Console) AnswerCallback(_ context.Context, _ string, text string) error {
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintln(c.out, c.styles.muted.Render(text))
	return err
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(v any) int {
	f, ok := v.(*os.File)
	if !ok {
		return 80
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
