// Package utils provides token counting for prompt budget management.
package utils

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Neither Cohere nor Amazon publish Go tokenizers, so counts are
// approximated with cl100k_base; the prompt budgets leave enough slack
// that the approximation is safe.
const approxEncoding = "cl100k_base"

// Per-message framing, also used as the reply priming overhead.
const msgOverheadTokens = 3

var sharedEncoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding(approxEncoding)
})

// TokenCounter counts tokens for one model. Counters are safe for
// concurrent use and share a single lazily built encoding.
type TokenCounter struct {
	enc   *tiktoken.Tiktoken
	model string
}

// Message is a single turn for token counting.
type Message struct {
	Role    string
	Content string
}

// NewTokenCounter creates a counter for a specific model.
func NewTokenCounter(model string) (*TokenCounter, error) {
	enc, err := sharedEncoding()
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", approxEncoding, err)
	}
	return &TokenCounter{enc: enc, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.enc.Encode(text, nil, nil))
}

// CountMessages counts a message list, including per-message framing
// and the reply priming.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	total := msgOverheadTokens
	for _, msg := range messages {
		total += msgOverheadTokens + tc.Count(msg.Role) + tc.Count(msg.Content)
	}
	return total
}

// FitWithinLimit returns the longest suffix of messages that stays
// within maxTokens, so the most recent turns win.
func (tc *TokenCounter) FitWithinLimit(messages []Message, maxTokens int) []Message {
	used := msgOverheadTokens
	keep := len(messages)
	for ; keep > 0; keep-- {
		msg := messages[keep-1]
		cost := msgOverheadTokens + tc.Count(msg.Role) + tc.Count(msg.Content)
		if used+cost > maxTokens {
			break
		}
		used += cost
	}
	return messages[keep:]
}

// GetModel returns the model name this counter was built for.
func (tc *TokenCounter) GetModel() string { return tc.model }

// EstimateTokens is a rough estimate (4 chars per token) for paths
// where constructing a counter is not worth it.
func EstimateTokens(text string) int {
	return len(text) / 4
}
