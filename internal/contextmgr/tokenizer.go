package contextmgr

import (
	"strings"
	"sync"

	"nare/internal/chat"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer 精确 token 计数器，支持 tiktoken 和启发式回退
// Tokenizer provides token counting with tiktoken and a heuristic fallback
type Tokenizer struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.Mutex
}

// NewTokenizer 创建 tokenizer，如果 tiktoken 初始化失败则回退到启发式
// NewTokenizer creates a tokenizer, falling back to the heuristic if the
// encoding cannot be loaded (offline hosts usually lack the BPE cache)
func NewTokenizer(encodingName string) *Tokenizer {
	t := &Tokenizer{encodingName: encodingName}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// NewHeuristicTokenizer never touches tiktoken.
func NewHeuristicTokenizer() *Tokenizer {
	return &Tokenizer{encodingName: "heuristic", fallback: true}
}

// NewTokenizerForModel 根据模型名自动选择编码
// NewTokenizerForModel picks the encoding for a backend model name
func NewTokenizerForModel(model string) *Tokenizer {
	return NewTokenizer(modelToEncoding(model))
}

// Count returns the total token count for a message list.
func (t *Tokenizer) Count(messages []chat.Message) int {
	total := 0
	for _, msg := range messages {
		total += t.CountMessage(msg)
	}
	return total
}

// CountMessage counts one turn including the per-message framing overhead.
func (t *Tokenizer) CountMessage(msg chat.Message) int {
	return 4 + t.CountText(msg.Role) + t.CountText(msg.Content)
}

// CountText counts tokens for a single string.
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.fallback {
		return heuristicTokenCount(text)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

func (t *Tokenizer) IsPrecise() bool {
	return t != nil && !t.fallback
}

// heuristicTokenCount 启发式 token 估算
// heuristicTokenCount estimates ~1.5 tokens per CJK/Hangul rune and ~4 ASCII chars per token
func heuristicTokenCount(text string) int {
	if text == "" {
		return 0
	}
	wide, narrow := 0, 0
	for _, r := range text {
		if isWide(r) {
			wide++
		} else {
			narrow++
		}
	}
	estimate := int(float64(wide)*1.5 + float64(narrow)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isWide(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols
		(r >= 0xFF00 && r <= 0xFFEF) || // Fullwidth Forms
		(r >= 0xAC00 && r <= 0xD7AF) || // Hangul syllables
		(r >= 0x1100 && r <= 0x11FF) // Hangul jamo
}

// modelToEncoding maps a backend model name to an encoding name.
func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return "o200k_base"
	default:
		// deepseek-chat, deepseek-reasoner and the claude CLI have no public
		// tiktoken encoding; cl100k_base is a close enough estimate
		return "cl100k_base"
	}
}
