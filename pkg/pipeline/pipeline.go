// Package pipeline orchestrates one query end to end: cache lookup,
// the combined classify/rewrite call, backend routing, hybrid
// retrieval, reranking, finalization, grounded generation, the
// faithfulness check with its web-search fallback, and the cache
// write. Stages degrade individually (a failed rerank keeps retrieval
// order, a failed judge serves the answer unscored), so a request only
// fails outright on validation, classification refusals, an empty
// corpus, or a generation error.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/classify"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/embedders"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/faithfulness"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/generation"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/languages"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/llms"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/rerank"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/websearch"
)

// MaxQueryChars is the hard query length limit.
const MaxQueryChars = 1000

// Classifier is the combined language check, intent classification and
// English rewrite.
type Classifier interface {
	Classify(ctx context.Context, query, expectedLanguage string, history []protocol.Turn) (*classify.Result, error)
}

// Retriever produces the diversified candidate set and the widened
// second-pass pool.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (*retrieval.Result, error)
	Widen(ctx context.Context, query string, embedding *embedders.QueryEmbedding) ([]retrieval.Document, error)
}

// Generator synthesizes a grounded answer from the final document set.
type Generator interface {
	Generate(ctx context.Context, req *generation.Request) (*generation.Answer, error)
}

// Judge scores answers against their grounding and owns the accept and
// fallback policy knobs.
type Judge interface {
	Enabled() bool
	Check(ctx context.Context, question, answer string, contexts []string) *faithfulness.Verdict
	Accept(score float64) bool
	ShouldFallback(score float64) bool
}

// Cache is the response cache. Implementations never fail a request:
// lookup errors read as misses and writes are fire-and-forget.
type Cache interface {
	Get(ctx context.Context, languageCode, query string) (*protocol.Answer, bool)
	Set(ctx context.Context, languageCode, query string, answer *protocol.Answer)
}

// Request is one query to process. Language must be a supported ISO
// 639-1 code; transports normalize it before calling Process.
type Request struct {
	Query    string
	Language string
	History  []protocol.Turn
}

// Pipeline wires the stages together. Judge, web search and cache are
// optional; a nil value skips the corresponding stage.
type Pipeline struct {
	cfg        *config.Config
	classifier Classifier
	router     *llms.Router
	retriever  Retriever
	reranker   rerank.Reranker
	generator  Generator
	judge      Judge
	web        websearch.Provider
	cache      Cache
	translator *llms.Translator
	recorder   observability.Recorder
	tracer     trace.Tracer
}

// Deps carries the pipeline's collaborators.
type Deps struct {
	Classifier Classifier
	Router     *llms.Router
	Retriever  Retriever
	Reranker   rerank.Reranker
	Generator  Generator
	Judge      Judge
	WebSearch  websearch.Provider
	Cache      Cache
	Translator *llms.Translator
	Recorder   observability.Recorder
	Tracer     trace.Tracer
}

// New builds a pipeline from its collaborators.
func New(cfg *config.Config, deps Deps) *Pipeline {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.GetTracer("pipeline")
	}
	reranker := deps.Reranker
	if reranker == nil {
		reranker = rerank.NewNoopReranker()
	}

	return &Pipeline{
		cfg:        cfg,
		classifier: deps.Classifier,
		router:     deps.Router,
		retriever:  deps.Retriever,
		reranker:   reranker,
		generator:  deps.Generator,
		judge:      deps.Judge,
		web:        deps.WebSearch,
		cache:      deps.Cache,
		translator: deps.Translator,
		recorder:   recorder,
		tracer:     tracer,
	}
}

// Process runs one request through the pipeline. Failures with a
// taxonomy code come back as *Error; a context cancellation is
// returned as-is so transports can drop the connection silently.
func (p *Pipeline) Process(ctx context.Context, req *Request) (*protocol.Answer, error) {
	start := time.Now()

	requestID := protocol.RequestID(ctx)
	if requestID == "" {
		requestID = protocol.NewRequestID()
		ctx = protocol.WithRequestID(ctx, requestID)
	}

	ctx, span := p.tracer.Start(ctx, observability.SpanPipelineRun)
	defer span.End()

	answer, err := p.process(ctx, req, start, requestID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		p.recorder.RecordRequestOutcome(ctx, outcomeOf(err))
		return nil, err
	}
	p.recorder.RecordRequestOutcome(ctx, "success")
	return answer, nil
}

func (p *Pipeline) process(ctx context.Context, req *Request, start time.Time, requestID string) (*protocol.Answer, error) {
	state := &runState{
		steps:    make(map[string]int64),
		start:    start,
		id:       requestID,
		language: req.Language,
	}

	query := strings.TrimSpace(req.Query)
	if err := p.validate(ctx, query, req.Language, state); err != nil {
		return nil, err
	}

	// CACHE_LOOKUP
	if p.cache != nil {
		var hit *protocol.Answer
		p.stage(ctx, stageCacheLookup, observability.SpanStageCache, state, func(sctx context.Context) error {
			if cached, ok := p.cache.Get(sctx, state.language, query); ok {
				hit = cached
			}
			return nil
		})
		if hit != nil {
			return p.refreshCached(hit, state), nil
		}
	}

	// CLASSIFY
	var result *classify.Result
	err := p.stage(ctx, stageClassify, observability.SpanStageClassify, state, func(sctx context.Context) error {
		var cerr error
		result, cerr = p.classifier.Classify(sctx, query, state.language, req.History)
		return cerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(CodeInternal, "classification failed", err)
	}
	if result.Degraded {
		state.warn("classifier degraded; keyword heuristic applied")
	}

	// Refusal branches return before any retrieval or generation.
	if refusal := p.refuse(ctx, result, state); refusal != nil {
		return nil, refusal
	}
	if result.Canned.Enabled {
		return p.cannedAnswer(result, state), nil
	}

	// ROUTE
	route := p.router.Select(state.language, query, result.RewriteEN)
	state.steps[stageRoute] = 0

	// RETRIEVE … FINALIZE
	docs, err := p.retrieve(ctx, route.EnglishQuery, state)
	if err != nil {
		return nil, err
	}

	// GENERATE
	generated, err := p.generate(ctx, route, docs, req.History, state)
	if err != nil {
		return nil, err
	}

	// FAITHFULNESS → WEB_FALLBACK
	outcome := p.assess(ctx, route, generated, docs, req.History, state)

	answer := p.finishAnswer(outcome, route, state)

	// CACHE_WRITE: grounded, verified answers only, and never after
	// the client has gone away.
	if p.cache != nil && outcome.cacheable && ctx.Err() == nil {
		p.stage(ctx, stageCacheWrite, observability.SpanStageCache, state, func(sctx context.Context) error {
			p.cache.Set(sctx, state.language, query, answer)
			return nil
		})
		// The write happens after envelope fields are stamped, so the
		// stored copy carries its own step times.
	}

	return answer, nil
}

// validate enforces the query and language preconditions.
func (p *Pipeline) validate(ctx context.Context, query, language string, state *runState) error {
	if query == "" {
		return NewError(CodeEmptyQuery, refusalMessages[CodeEmptyQuery])
	}
	if len(query) > MaxQueryChars {
		return NewError(CodeTooLongQuery, refusalMessages[CodeTooLongQuery])
	}

	code, ok := languages.Normalize(language)
	if !ok {
		return NewError(CodeInternal, "unsupported language code")
	}
	state.language = code
	return nil
}

// refuse maps classification outcomes that stop the pipeline to
// taxonomy errors, localizing the user-facing message.
func (p *Pipeline) refuse(ctx context.Context, result *classify.Result, state *runState) *Error {
	var code ErrorCode
	switch {
	case !result.LanguageMatch:
		code = CodeLanguageMismatch
	case result.Classification == classify.ClassHarmful:
		code = CodeHarmfulQuery
	case result.Classification == classify.ClassOffTopic:
		code = CodeOffTopic
	default:
		return nil
	}
	return NewError(code, p.localize(ctx, refusalMessages[code], state.language))
}

// cannedAnswer emits the classifier's deterministic reply. Canned
// replies are trivially grounded, already localized, and cheap to
// recompute, so they are scored 1.0 and never cached.
func (p *Pipeline) cannedAnswer(result *classify.Result, state *runState) *protocol.Answer {
	return p.stamp(&protocol.Answer{
		Text:              result.Canned.Text,
		Citations:         []protocol.Citation{},
		FaithfulnessScore: 1.0,
		ModelUsed:         "canned",
		RetrievalSource:   protocol.SourceCanned,
	}, state)
}

// refreshCached re-stamps the envelope of a cached answer. Text,
// citations and score come back bit-identical; only the request ID and
// timings are this request's own.
func (p *Pipeline) refreshCached(answer *protocol.Answer, state *runState) *protocol.Answer {
	copied := *answer
	return p.stamp(&copied, state)
}

// stamp fills the per-request envelope fields.
func (p *Pipeline) stamp(answer *protocol.Answer, state *runState) *protocol.Answer {
	answer.LanguageUsed = state.language
	answer.RequestID = state.id
	answer.ProcessingTimeMS = time.Since(state.start).Milliseconds()
	answer.StepTimesMS = state.steps
	answer.Warnings = state.warnings
	return answer
}

// localize renders a refusal message in the request language, keeping
// English when no translator is wired or the call fails.
func (p *Pipeline) localize(ctx context.Context, message, language string) string {
	if language == "" || language == "en" || p.translator == nil {
		return message
	}
	tctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	translated, err := p.translator.Translate(tctx, message, language)
	if err != nil || translated == "" {
		return message
	}
	return translated
}

func outcomeOf(err error) string {
	if perr, ok := err.(*Error); ok {
		return string(perr.Code)
	}
	return string(CodeInternal)
}

// runState accumulates per-request bookkeeping across stages.
type runState struct {
	steps    map[string]int64
	warnings []string
	start    time.Time
	id       string
	language string
}

func (s *runState) warn(message string) {
	s.warnings = append(s.warnings, message)
}

// Step-time keys, one per state-machine stage actually executed.
const (
	stageCacheLookup  = "cache_lookup"
	stageClassify     = "classify"
	stageRoute        = "route"
	stageRetrieve     = "retrieve"
	stageRerank       = "rerank"
	stageGenerate     = "generate"
	stageFaithfulness = "faithfulness"
	stageWebFallback  = "web_fallback"
	stageCacheWrite   = "cache_write"
)

// stage runs fn under a span, recording duration into step times and
// the stage metric.
func (p *Pipeline) stage(ctx context.Context, name, spanName string, state *runState, fn func(context.Context) error) error {
	spanCtx, span := p.tracer.Start(ctx, spanName)
	defer span.End()

	start := time.Now()
	err := fn(spanCtx)
	elapsed := time.Since(start)

	state.steps[name] = elapsed.Milliseconds()
	p.recorder.RecordStage(ctx, name, elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
