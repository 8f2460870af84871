// Package faithfulness scores generated answers against the documents
// they were grounded on. A judge model applies a fixed rubric and the
// orchestrator enforces the policy: accept at or above the threshold,
// retry with web search context below the fallback floor, and surface
// a soft warning in between.
package faithfulness

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/llms"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
)

const judgeSystemPrompt = `You are a strict faithfulness judge. Score how well the ANSWER is supported by the CONTEXTS.

Rubric:
- 0.0: fabricated; the answer's claims do not appear in the contexts.
- 0.4: significant unsupported content mixed in with supported claims.
- 0.6: mostly accurate, minor unsupported details.
- 0.8: very accurate, all substantive claims supported.
- 1.0: fully supported, every claim traces back to the contexts.

Respond with the numeric score only.`

// maxContextWords caps each context passed to the judge; past that the
// extra text stops changing the verdict and only burns tokens.
const maxContextWords = 450

// Verdict is the outcome of one faithfulness check.
type Verdict struct {
	Score float64

	// Degraded reports that the judge was unavailable and the score is
	// a placeholder zero: the answer is served with a warning, and the
	// orchestrator skips both policy branches.
	Degraded bool
}

// Judge scores answers with a judge model.
type Judge struct {
	provider llms.Provider
	cfg      *config.FaithfulnessConfig
	recorder observability.Recorder
}

// NewJudge builds a judge on the given provider.
func NewJudge(provider llms.Provider, cfg *config.FaithfulnessConfig, recorder observability.Recorder) (*Judge, error) {
	if provider == nil {
		return nil, fmt.Errorf("faithfulness judge requires a provider")
	}
	if cfg == nil {
		cfg = &config.FaithfulnessConfig{}
		cfg.SetDefaults()
	}
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}
	return &Judge{provider: provider, cfg: cfg, recorder: recorder}, nil
}

// Enabled reports whether checks should run at all.
func (j *Judge) Enabled() bool { return j.cfg.IsEnabled() }

// Threshold returns the accept boundary.
func (j *Judge) Threshold() float64 { return j.cfg.Threshold }

// Accept reports whether a score clears the threshold.
func (j *Judge) Accept(score float64) bool { return score >= j.cfg.Threshold }

// ShouldFallback reports whether a score is so low the answer should
// be regenerated from web search context.
func (j *Judge) ShouldFallback(score float64) bool { return score < j.cfg.FallbackBelow }

// Check scores one answer. It never fails the request: judge errors,
// timeouts and unparseable output all return a degraded verdict the
// orchestrator serves with a warning.
func (j *Judge) Check(ctx context.Context, question, answer string, contexts []string) *Verdict {
	callCtx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	start := time.Now()
	response, err := j.provider.Generate(callCtx, llms.ChatRequest{
		System:   judgeSystemPrompt,
		Messages: []llms.ChatMessage{{Role: "user", Content: judgePrompt(question, answer, contexts)}},
	})
	j.recorder.RecordDependencyCall(ctx, "llm", "faithfulness", time.Since(start), err)
	if err != nil {
		slog.Warn("Faithfulness judge unavailable, serving unscored answer", "error", err)
		return &Verdict{Degraded: true}
	}
	j.recorder.RecordLLMTokens(ctx, j.provider.GetModelName(), response.InputTokens, response.OutputTokens)

	score, err := parseScore(response.Text)
	if err != nil {
		slog.Warn("Faithfulness judge output unparseable, serving unscored answer",
			"output", response.Text,
			"error", err)
		return &Verdict{Degraded: true}
	}
	return &Verdict{Score: score}
}

// judgePrompt renders the question, answer and word-capped contexts.
func judgePrompt(question, answer string, contexts []string) string {
	var b strings.Builder
	b.WriteString("QUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nANSWER:\n")
	b.WriteString(answer)
	b.WriteString("\n\nCONTEXTS:\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, truncateWords(c, maxContextWords))
	}
	return b.String()
}

// truncateWords keeps the first limit whitespace-separated words.
func truncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= limit {
		return strings.TrimSpace(s)
	}
	return strings.Join(words[:limit], " ")
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseScore extracts the first numeric value in [0,1] from the judge
// output. Values outside the range (years, percentages) are skipped.
func parseScore(text string) (float64, error) {
	for _, raw := range numberPattern.FindAllString(text, -1) {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if value >= 0 && value <= 1 {
			return value, nil
		}
	}
	return 0, fmt.Errorf("no score in [0,1] found in judge output")
}
