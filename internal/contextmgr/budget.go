package contextmgr

import "nare/internal/chat"

const DefaultTokenLimit = 24000

// Fit 从最旧的消息开始丢弃，直到系统提示与历史总量不超过 limit；最后一条消息始终保留
// Fit drops the oldest turns until the system prompt plus history fits in
// limit tokens. The newest turn is always kept, even if it alone overflows.
// The input slice is not modified.
func Fit(tok *Tokenizer, history []chat.Message, systemPrompt string, limit int) []chat.Message {
	if limit <= 0 {
		limit = DefaultTokenLimit
	}
	if len(history) == 0 {
		return nil
	}

	budget := limit - tok.CountText(systemPrompt)
	costs := make([]int, len(history))
	total := 0
	for i, msg := range history {
		costs[i] = tok.CountMessage(msg)
		total += costs[i]
	}

	start := 0
	for start < len(history)-1 && total > budget {
		total -= costs[start]
		start++
	}
	return append([]chat.Message(nil), history[start:]...)
}
