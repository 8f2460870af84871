package llms

import (
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
)

// Backend identifies a generation backend.
type Backend string

const (
	// BackendCommandA is Cohere Command-A, used for the languages it
	// officially supports.
	BackendCommandA Backend = "command_a"

	// BackendNova is Amazon Nova on Bedrock, used for every other
	// supported language.
	BackendNova Backend = "nova"
)

// ChatMessage is one message forwarded to a generation backend.
// Role is "user" or "assistant"; system text travels separately on
// the request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries one chat completion call. Zero Temperature and
// MaxTokens fall back to the provider's configured defaults.
type ChatRequest struct {
	System      string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int

	// ForceJSON asks the backend for a bare JSON object response.
	// Backends without a native JSON mode ignore it; the prompt is
	// expected to request JSON on its own.
	ForceJSON bool
}

// ChatResponse is the normalized result of a chat completion call.
type ChatResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// TurnsToMessages converts conversation history turns to chat messages.
func TurnsToMessages(turns []protocol.Turn) []ChatMessage {
	messages := make([]ChatMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, ChatMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return messages
}
