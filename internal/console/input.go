package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"nare/internal/channel"
)

const maxLineBytes = 1 << 20

var slashCommands = []string{"/run ", "/status", "/lang ", "/help", "/start"}

// lineSource 逐行读取输入；buttons 为当前待按的按钮
// lineSource yields typed lines. buttons are the ones the last message put on
// screen, so the terminal editor can complete their labels.
type lineSource interface {
	next(prompt string, buttons []channel.Button) (string, error)
	Close() error
}

// scannerSource reads piped or plain input. Nothing is echoed; the final
// line may lack a newline.
type scannerSource struct {
	sc *bufio.Scanner
}

func newScannerSource(in io.Reader) *scannerSource {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &scannerSource{sc: sc}
}

func (s *scannerSource) next(string, []channel.Button) (string, error) {
	if s.sc.Scan() {
		return strings.TrimRight(s.sc.Text(), "\r"), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scannerSource) Close() error { return nil }

type editorSource struct {
	rl      *readline.Instance
	replies *replyCompleter
}

func newEditorSource(historyPath string) (*editorSource, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	replies := &replyCompleter{}
	replies.set(nil)
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:       historyPath,
		HistorySearchFold: true,
		AutoComplete:      replies,
	})
	if err != nil {
		return nil, err
	}
	return &editorSource{rl: rl, replies: replies}, nil
}

func (e *editorSource) next(prompt string, buttons []channel.Button) (string, error) {
	e.replies.set(buttons)
	e.rl.SetPrompt(prompt)
	return e.rl.Readline()
}

func (e *editorSource) Close() error {
	if e == nil || e.rl == nil {
		return nil
	}
	return e.rl.Close()
}

// replyCompleter 补全斜杠命令与当前按钮
// replyCompleter completes slash commands and, while a prompt is pending,
// the pending button words plus y/n.
type replyCompleter struct {
	mu      sync.Mutex
	choices []string
}

func (r *replyCompleter) set(buttons []channel.Button) {
	choices := append([]string(nil), slashCommands...)
	for _, b := range buttons {
		choices = append(choices, labelWord(strings.TrimSpace(b.Text)))
	}
	if hasData(buttons, channel.DataConfirmYes) {
		choices = append(choices, "yes")
	}
	if hasData(buttons, channel.DataConfirmNo) {
		choices = append(choices, "no")
	}
	r.mu.Lock()
	r.choices = choices
	r.mu.Unlock()
}

// Do implements readline.AutoCompleter. Matching ignores case.
func (r *replyCompleter) Do(line []rune, pos int) ([][]rune, int) {
	typed := string(line[:pos])
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]rune
	for _, c := range r.choices {
		cr := []rune(c)
		if len(cr) > pos && strings.EqualFold(string(cr[:pos]), typed) {
			out = append(out, cr[pos:])
		}
	}
	return out, pos
}

// promptFor shows how many buttons can be pressed by number.
func promptFor(name string, buttons []channel.Button) string {
	if len(buttons) == 0 {
		return name + " > "
	}
	return fmt.Sprintf("%s [1-%d] > ", name, len(buttons))
}

// parseInput 将一行输入转换为消息或按钮回调
// parseInput turns one typed line into a text update or, when buttons are on
// screen, a button press. A button is pressed by its number, its label, or
// y/yes/n/no for confirmation prompts.
func parseInput(line string, buttons []channel.Button) (data string, pressed bool) {
	in := strings.TrimSpace(line)
	if in == "" || len(buttons) == 0 || strings.HasPrefix(in, "/") {
		return "", false
	}
	if n, err := strconv.Atoi(in); err == nil {
		if n >= 1 && n <= len(buttons) {
			return buttons[n-1].Data, true
		}
		return "", false
	}
	lower := strings.ToLower(in)
	for _, b := range buttons {
		if strings.EqualFold(strings.TrimSpace(b.Text), in) || strings.EqualFold(labelWord(b.Text), in) {
			return b.Data, true
		}
	}
	switch lower {
	case "y", "yes":
		if hasData(buttons, channel.DataConfirmYes) {
			return channel.DataConfirmYes, true
		}
	case "n", "no":
		if hasData(buttons, channel.DataConfirmNo) {
			return channel.DataConfirmNo, true
		}
	}
	return "", false
}

// labelWord drops a leading symbol such as "✅ " from a button label.
func labelWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return text
	}
	return strings.Join(fields[1:], " ")
}

func hasData(buttons []channel.Button, data string) bool {
	for _, b := range buttons {
		if b.Data == data {
			return true
		}
	}
	return false
}
