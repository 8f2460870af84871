// Package generation synthesizes grounded answers: it packs the final
// document set into a numbered context block, forwards the conversation
// history in English, and asks the routed backend for an answer in the
// user's language with [n] source markers. Citations are resolved from
// those markers back to the documents that produced them.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/languages"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/llms"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/utils"
)

const generatorSystemPrompt = `You are a climate information assistant. Answer the user's question using ONLY the numbered sources provided.

Rules:
- Ground every claim in the sources. If the sources do not cover the question, say so briefly instead of guessing.
- Mark the sources you used inline as [1], [2], ... matching the source numbers. Use at least one marker.
- Never invent URLs, numbers, or facts that are not in the sources.
- Write the entire answer in %s.
- Be concise and practical: short paragraphs, no preamble about being an AI.`

// Default answer budget; scaled down when the call deadline is tight.
const defaultAnswerTokens = 1024

// Token budget for prior turns in the prompt. Anything older is
// dropped, most recent first to survive.
const historyTokenBudget = 1500

// historyTranslationTimeout bounds the parallel history translation so
// a slow translator cannot eat the generation budget.
const historyTranslationTimeout = 5 * time.Second

// Request carries one generation call.
type Request struct {
	// Query is the self-contained English question.
	Query string

	// Documents is the final reranked set, in rank order. Citations
	// may only reference these.
	Documents []retrieval.Document

	// History is the prior conversation, oldest first.
	History []protocol.Turn

	// ExpectedLanguage is the ISO 639-1 code the answer must be
	// written in.
	ExpectedLanguage string

	// Provider is the backend the router selected for this language.
	Provider llms.Provider
}

// Answer is the generator's output before faithfulness scoring.
type Answer struct {
	Text      string
	Citations []protocol.Citation

	// DocsUsed is how many documents fit the context budget; citation
	// markers beyond it are ignored.
	DocsUsed int

	// Truncated reports that the backend stopped at the token budget.
	Truncated bool

	InputTokens  int
	OutputTokens int
}

// GenerationError wraps backend failures so the orchestrator can map
// them to its error taxonomy.
type GenerationError struct {
	Operation string
	Message   string
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("generation %s failed: %s", e.Operation, e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator builds grounded answers on whichever provider the router
// hands it per request.
type Generator struct {
	translator *llms.Translator
	cfg        *config.GenerationConfig
	recorder   observability.Recorder
	counter    *utils.TokenCounter
}

// NewGenerator builds a generator. The translator renders conversation
// history into English before forwarding; nil skips translation. A
// token counter failure downgrades budgeting to character estimation
// rather than failing construction.
func NewGenerator(translator *llms.Translator, cfg *config.GenerationConfig, recorder observability.Recorder) *Generator {
	if cfg == nil {
		cfg = &config.GenerationConfig{}
		cfg.SetDefaults()
	}
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}

	counter, err := utils.NewTokenCounter("")
	if err != nil {
		slog.Warn("Token counter unavailable, using character estimation", "error", err)
		counter = nil
	}

	return &Generator{
		translator: translator,
		cfg:        cfg,
		recorder:   recorder,
		counter:    counter,
	}
}

// Generate produces a grounded answer from the final document set. The
// configured timeout is applied here; when the remaining budget is
// tight the answer token budget shrinks so a short grounded answer
// comes back instead of a deadline error.
func (g *Generator) Generate(ctx context.Context, req *Request) (*Answer, error) {
	if req.Provider == nil {
		return nil, &GenerationError{Operation: "generate", Message: "no provider selected"}
	}
	if len(req.Documents) == 0 {
		return nil, &GenerationError{Operation: "generate", Message: "no documents to ground on"}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	contextBlock, docsUsed := g.buildContext(req.Documents)
	history := g.clipHistory(g.englishHistory(callCtx, req.History, req.ExpectedLanguage))

	messages := make([]llms.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llms.ChatMessage{
		Role:    "user",
		Content: fmt.Sprintf("Sources:\n%s\nQuestion: %s", contextBlock, req.Query),
	})

	start := time.Now()
	response, err := req.Provider.Generate(callCtx, llms.ChatRequest{
		System:    fmt.Sprintf(generatorSystemPrompt, answerLanguage(req.ExpectedLanguage)),
		Messages:  messages,
		MaxTokens: g.answerTokens(callCtx),
	})
	g.recorder.RecordDependencyCall(ctx, "llm", "generate", time.Since(start), err)
	if err != nil {
		return nil, &GenerationError{Operation: "generate", Message: "backend call failed", Err: err}
	}
	g.recorder.RecordLLMTokens(ctx, req.Provider.GetModelName(), response.InputTokens, response.OutputTokens)

	text := strings.TrimSpace(response.Text)
	if text == "" {
		return nil, &GenerationError{Operation: "generate", Message: "backend returned an empty answer"}
	}

	citations := extractCitations(text, req.Documents[:docsUsed])
	if len(citations) == 0 && config.BoolValue(g.cfg.CitationsRequired, true) {
		// No usable markers: fall back to citing everything that was
		// in the prompt, so the grounding stays auditable.
		citations = citeAll(req.Documents[:docsUsed])
	}

	return &Answer{
		Text:         text,
		Citations:    citations,
		DocsUsed:     docsUsed,
		Truncated:    isLengthStop(response.FinishReason),
		InputTokens:  response.InputTokens,
		OutputTokens: response.OutputTokens,
	}, nil
}

// englishHistory forwards the conversation as alternating user and
// assistant messages, translated to English in parallel when the
// conversation language is not English. A failed translation keeps
// the original text; both backends read the source languages well
// enough for context.
func (g *Generator) englishHistory(ctx context.Context, history []protocol.Turn, expectedLanguage string) []llms.ChatMessage {
	messages := llms.TurnsToMessages(history)
	if len(messages) == 0 || expectedLanguage == "" || expectedLanguage == "en" || g.translator == nil {
		return messages
	}

	translateCtx, cancel := context.WithTimeout(ctx, historyTranslationTimeout)
	defer cancel()

	group, groupCtx := errgroup.WithContext(translateCtx)
	translated := make([]string, len(messages))
	for i, msg := range messages {
		group.Go(func() error {
			out, err := g.translator.ToEnglish(groupCtx, msg.Content)
			if err != nil || out == "" {
				translated[i] = msg.Content
				return nil
			}
			translated[i] = out
			return nil
		})
	}
	if err := group.Wait(); err == nil {
		for i := range messages {
			messages[i].Content = translated[i]
		}
	}
	return messages
}

// clipHistory keeps the most recent turns that fit the history token
// budget, so a long conversation cannot starve the document context.
// Without a counter the history passes through unclipped; the stage
// timeout still bounds the damage.
func (g *Generator) clipHistory(history []llms.ChatMessage) []llms.ChatMessage {
	if g.counter == nil || len(history) == 0 {
		return history
	}
	msgs := make([]utils.Message, len(history))
	for i, m := range history {
		msgs[i] = utils.Message{Role: m.Role, Content: m.Content}
	}
	kept := g.counter.FitWithinLimit(msgs, historyTokenBudget)
	return history[len(history)-len(kept):]
}

// answerTokens scales the reply budget to the time actually left on
// the call context.
func (g *Generator) answerTokens(ctx context.Context) int {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultAnswerTokens
	}
	remaining := time.Until(deadline)
	switch {
	case remaining < 3*time.Second:
		return defaultAnswerTokens / 4
	case remaining < 8*time.Second:
		return defaultAnswerTokens / 2
	}
	return defaultAnswerTokens
}

func isLengthStop(reason string) bool {
	switch strings.ToLower(reason) {
	case "max_tokens", "length", "max_length":
		return true
	}
	return false
}

func answerLanguage(code string) string {
	if lang, ok := languages.Get(code); ok {
		return lang.Name
	}
	if code == "" {
		return "English"
	}
	return code
}
