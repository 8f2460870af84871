package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/languages"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/llms"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
)

const classifierSystemPrompt = `You are the routing front-end of a multilingual climate-change question answering service. Analyze the user's current query in the context of the conversation and respond with a single JSON object and nothing else, matching this schema:

%s

Rules:
- "language": the ISO 639-1 code of the language the current query is written in, or null when you cannot tell.
- "expected_language": always %q, the language the user selected.
- "language_match": true when the query is written in %s, or when it is language-neutral (numbers, proper names, emoji). False otherwise.
- "classification", exactly one of:
  * "on-topic": questions about climate change, its causes and impacts, extreme weather (floods, heat, storms, wildfire smoke, air quality), emissions and energy, adaptation, resilience, home retrofits, preparedness, or local climate programs.
  * "off-topic": anything unrelated to climate.
  * "harmful": requests involving violence, weapons, illegal activity, hate, or self-harm, regardless of climate framing.
  * "greeting", "goodbye", "thanks": pure conversational pleasantries with no question attached.
  * "emergency": the user reports being in immediate danger right now.
  * "instruction": the user asks what this service is or how to use it.
- "rewrite_en": for on-topic queries only, rewrite the current query into one self-contained English question, resolving pronouns and references against the conversation. Null otherwise.
- "canned": for greeting, goodbye, thanks, emergency, and instruction set {"enabled": true, "type": "<classification>", "text": "<one or two sentence reply written in %s>"}. Otherwise {"enabled": false, "type": "", "text": null}.
- "ask_how_to_use": true only for instruction queries.
- "how_it_works": for instruction queries, one short paragraph in %s describing the service. Null otherwise.
- "error": null unless the message cannot be analyzed at all.`

// Classifier runs the combined language check, intent classification
// and English rewrite as a single model call.
type Classifier struct {
	provider   llms.Provider
	translator *llms.Translator
	cfg        *config.ClassifyConfig
	recorder   observability.Recorder
	schemaJSON string
}

// NewClassifier builds a classifier on the given provider. The
// translator localizes canned replies and backfills missing rewrites;
// it may be nil, in which case English fallbacks are used as-is.
func NewClassifier(provider llms.Provider, translator *llms.Translator, cfg *config.ClassifyConfig, recorder observability.Recorder) (*Classifier, error) {
	if provider == nil {
		return nil, fmt.Errorf("classifier requires a provider")
	}
	if cfg == nil {
		cfg = &config.ClassifyConfig{}
		cfg.SetDefaults()
	}
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}

	schemaJSON, err := responseSchemaJSON()
	if err != nil {
		return nil, err
	}

	return &Classifier{
		provider:   provider,
		translator: translator,
		cfg:        cfg,
		recorder:   recorder,
		schemaJSON: schemaJSON,
	}, nil
}

// Classify analyzes one query. It never returns an error for model
// failures: timeouts, transport errors and unparseable output all
// degrade to a keyword-heuristic default so the pipeline can keep
// going. Only an already-cancelled parent context is surfaced.
func (c *Classifier) Classify(ctx context.Context, query, expectedLanguage string, history []protocol.Turn) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(query)
	if !hasSubstance(trimmed) {
		return &Result{
			Reason:           "empty or punctuation-only query",
			ExpectedLanguage: expectedLanguage,
			LanguageMatch:    true,
			Classification:   ClassOffTopic,
		}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	response, err := c.provider.Generate(callCtx, llms.ChatRequest{
		System:    c.systemPrompt(expectedLanguage),
		Messages:  []llms.ChatMessage{{Role: "user", Content: c.userPrompt(trimmed, history)}},
		ForceJSON: true,
	})
	c.recorder.RecordDependencyCall(ctx, "classifier", "classify", time.Since(start), err)
	if err != nil {
		if parentErr := ctx.Err(); parentErr != nil {
			return nil, parentErr
		}
		slog.Warn("Classifier call failed, using keyword-heuristic default",
			"language", expectedLanguage,
			"error", err)
		return c.degradedResult(ctx, trimmed, expectedLanguage), nil
	}
	c.recorder.RecordLLMTokens(ctx, c.provider.GetModelName(), response.InputTokens, response.OutputTokens)

	result, err := parseResponse(response.Text, expectedLanguage)
	if err != nil {
		slog.Warn("Classifier output unparseable, using keyword-heuristic default",
			"language", expectedLanguage,
			"error", err)
		return c.degradedResult(ctx, trimmed, expectedLanguage), nil
	}

	c.reconcile(ctx, trimmed, result)
	c.ensureCanned(ctx, result)
	return result, nil
}

// reconcile applies the deterministic fixups the model cannot be
// trusted with: agreeing detected/expected languages imply a match,
// the multilingual keyword guard overrides off-topic verdicts, and
// on-topic non-English queries always leave with an English rewrite.
func (c *Classifier) reconcile(ctx context.Context, query string, result *Result) {
	if result.DetectedLanguage != "" && result.DetectedLanguage == result.ExpectedLanguage {
		result.LanguageMatch = true
	}

	if result.Classification == ClassOffTopic && c.guardHit(result.ExpectedLanguage, query, result.RewriteEN) {
		slog.Info("Climate keyword guard overrode off-topic verdict",
			"language", result.ExpectedLanguage)
		result.Classification = ClassOnTopic
		result.GuardApplied = true
		result.LanguageMatch = true
		if result.Reason != "" {
			result.Reason += "; overridden by climate keyword guard"
		} else {
			result.Reason = "climate keyword guard"
		}
	}

	if result.Classification == ClassOnTopic && result.RewriteEN == "" {
		result.RewriteEN = c.rewriteFallback(ctx, query, result.ExpectedLanguage)
	}
}

// guardHit checks both the raw query (against the expected language's
// keyword set) and any English rewrite the model produced anyway.
func (c *Classifier) guardHit(expectedLanguage, query, rewriteEN string) bool {
	if languages.HasClimateKeywords(expectedLanguage, query) {
		return true
	}
	return rewriteEN != "" && languages.HasClimateKeywords("en", rewriteEN)
}

// rewriteFallback produces a retrieval query when the model left
// rewrite_en empty. English queries pass through; anything else is
// machine-translated, and on failure the raw query is used so
// retrieval still has something to embed.
func (c *Classifier) rewriteFallback(ctx context.Context, query, expectedLanguage string) string {
	if expectedLanguage == "" || expectedLanguage == "en" || c.translator == nil {
		return query
	}
	translated, err := c.translator.ToEnglish(ctx, query)
	if err != nil || translated == "" {
		slog.Warn("Rewrite backfill translation failed, using raw query",
			"language", expectedLanguage,
			"error", err)
		return query
	}
	return translated
}

// degradedResult is the safe default when the model is unavailable:
// classify by keyword heuristic on the raw text and assume the
// language matches, so real climate questions survive an outage.
func (c *Classifier) degradedResult(ctx context.Context, query, expectedLanguage string) *Result {
	result := &Result{
		Reason:           "Rewriter timeout",
		ExpectedLanguage: expectedLanguage,
		LanguageMatch:    true,
		Classification:   ClassOffTopic,
		Degraded:         true,
	}
	if languages.HasClimateKeywords(expectedLanguage, query) {
		result.Classification = ClassOnTopic
		result.RewriteEN = c.rewriteFallback(ctx, query, expectedLanguage)
	}
	return result
}

func (c *Classifier) systemPrompt(expectedLanguage string) string {
	name := languageName(expectedLanguage)
	return fmt.Sprintf(classifierSystemPrompt, c.schemaJSON, expectedLanguage, name, name, name)
}

// userPrompt renders the trimmed conversation followed by the current
// query, each prior turn as one "Message N (role): content" line.
func (c *Classifier) userPrompt(query string, history []protocol.Turn) string {
	turns := trimHistory(history, c.cfg.MaxHistoryTurns)

	var b strings.Builder
	for i, turn := range turns {
		fmt.Fprintf(&b, "Message %d (%s): %s\n", i+1, turn.Role, sanitizeTurn(turn.Content))
	}
	fmt.Fprintf(&b, "Message (Current Query): %s", sanitizeTurn(query))
	return b.String()
}

// trimHistory keeps the most recent limit turns.
func trimHistory(history []protocol.Turn, limit int) []protocol.Turn {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// sanitizeTurn collapses newlines so one conversation turn stays one
// prompt line.
func sanitizeTurn(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// hasSubstance reports whether the query contains at least one letter
// or digit.
func hasSubstance(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func languageName(code string) string {
	if lang, ok := languages.Get(code); ok {
		return lang.Name
	}
	if code == "" {
		return "English"
	}
	return code
}
