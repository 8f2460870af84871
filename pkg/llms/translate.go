package llms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/languages"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
)

const translateSystemPrompt = `You are a translation engine. Translate the user's message into %s.
Reply with the translated text only: no quotes, no preamble, no commentary.
Keep URLs, numbers and proper names unchanged.`

// Translator performs single-shot translations through a generation
// backend. The classifier uses it to backfill English rewrites, the
// orchestrator to localize canned replies and answers.
type Translator struct {
	provider Provider
	recorder observability.Recorder
}

func NewTranslator(provider Provider, recorder observability.Recorder) *Translator {
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}
	return &Translator{provider: provider, recorder: recorder}
}

// Translate renders text in the language named by targetCode. The
// reply is the bare translation; a quote pair the model wraps around
// it is stripped.
func (t *Translator) Translate(ctx context.Context, text, targetCode string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if targetCode == "" {
		return text, nil
	}

	target := targetCode
	if lang, ok := languages.Get(targetCode); ok {
		target = fmt.Sprintf("%s (%s)", lang.Name, lang.Code)
	}

	start := time.Now()
	resp, err := t.provider.Generate(ctx, ChatRequest{
		System:   fmt.Sprintf(translateSystemPrompt, target),
		Messages: []ChatMessage{{Role: "user", Content: text}},
	})
	t.recorder.RecordDependencyCall(ctx, "llm", "translate", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("translation to %s failed: %w", targetCode, err)
	}
	t.recorder.RecordLLMTokens(ctx, t.provider.GetModelName(), resp.InputTokens, resp.OutputTokens)

	out := strings.TrimSpace(resp.Text)
	if len(out) >= 2 && out[0] == '"' && out[len(out)-1] == '"' {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	return out, nil
}

// ToEnglish translates text to English.
func (t *Translator) ToEnglish(ctx context.Context, text string) (string, error) {
	return t.Translate(ctx, text, "en")
}
