package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/faithfulness"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/generation"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/llms"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/websearch"
)

// retrieve runs RETRIEVE through FINALIZE: hybrid retrieval with the
// gate and MMR, a full-set rerank, the floor-and-backfill cut, and the
// widened second pass when the final set comes up short of the quota.
func (p *Pipeline) retrieve(ctx context.Context, englishQuery string, state *runState) ([]retrieval.Document, error) {
	var result *retrieval.Result
	err := p.stage(ctx, stageRetrieve, observability.SpanStageRetrieve, state, func(sctx context.Context) error {
		rctx, cancel := context.WithTimeout(sctx, p.cfg.Retrieval.Timeout)
		defer cancel()
		var rerr error
		result, rerr = p.retriever.Retrieve(rctx, englishQuery)
		return rerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(CodeInternal, "retrieval failed", err)
	}
	if result.FilterFallback {
		state.warn("language filter matched nothing; retried unfiltered")
	}
	if len(result.Docs) == 0 {
		return nil, NewError(CodeRetrievalEmpty, refusalMessages[CodeRetrievalEmpty])
	}

	// RERANK over the full candidate set so the finalizer sees the
	// whole score distribution.
	reranked := p.rerank(ctx, englishQuery, result.Docs, state)

	final := retrieval.Finalize(reranked, &p.cfg.Retrieval.Finalize, p.cfg.Retrieval.TopK)
	if final.Softened {
		state.warn("relevance floor relaxed; results may be weaker than usual")
	}

	// Guaranteed-quota second pass: widen, merge, rerank again.
	if len(final.Docs) < p.cfg.Retrieval.TopK && p.cfg.Retrieval.Finalize.SecondPassEnabled() {
		if widened := p.widen(ctx, englishQuery, result, state); len(widened) > 0 {
			merged := retrieval.Merge(reranked, widened)
			reranked = p.rerank(ctx, englishQuery, merged, state)
			final = retrieval.Finalize(reranked, &p.cfg.Retrieval.Finalize, p.cfg.Retrieval.TopK)
		}
	}

	if len(final.Docs) == 0 {
		return nil, NewError(CodeRetrievalEmpty, refusalMessages[CodeRetrievalEmpty])
	}
	return final.Docs, nil
}

// rerank orders docs by cross-encoder relevance. The reranker already
// degrades to input order internally; an unexpected error here does
// the same so downstream stages always get a usable ordering.
func (p *Pipeline) rerank(ctx context.Context, query string, docs []retrieval.Document, state *runState) []retrieval.Document {
	var ranked []retrieval.Document
	err := p.stage(ctx, stageRerank, observability.SpanStageRerank, state, func(sctx context.Context) error {
		var rerr error
		ranked, rerr = p.reranker.Rerank(sctx, query, docs, len(docs))
		return rerr
	})
	if err != nil {
		slog.Warn("Rerank stage failed, keeping retrieval order", "error", err)
		state.warn("reranking unavailable; using retrieval order")
		return docs
	}
	return ranked
}

// widen fetches the second-pass pool. Failures are soft: the pipeline
// carries on with the short final set.
func (p *Pipeline) widen(ctx context.Context, query string, first *retrieval.Result, state *runState) []retrieval.Document {
	widened, err := p.retriever.Widen(ctx, query, first.Embedding)
	if err != nil {
		slog.Warn("Second-pass widen failed, keeping short set", "error", err)
		return nil
	}
	return widened
}

// generate runs the grounded generator on the routed backend.
func (p *Pipeline) generate(ctx context.Context, route llms.Route, docs []retrieval.Document, history []protocol.Turn, state *runState) (*generation.Answer, error) {
	var answer *generation.Answer
	err := p.stage(ctx, stageGenerate, observability.SpanStageGenerate, state, func(sctx context.Context) error {
		var gerr error
		answer, gerr = p.generator.Generate(sctx, &generation.Request{
			Query:            route.EnglishQuery,
			Documents:        docs,
			History:          history,
			ExpectedLanguage: state.language,
			Provider:         route.Provider,
		})
		return gerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(CodeGenerationFailed, "answer generation failed", err)
	}
	if answer.Truncated {
		state.warn("answer truncated to stay within the time budget")
	}
	return answer, nil
}

// assessment is the post-generation outcome: the answer that will be
// served, its score, its source, and whether it may be cached.
type assessment struct {
	answer    *generation.Answer
	score     float64
	source    protocol.RetrievalSource
	cacheable bool
}

// assess scores the answer and applies the faithfulness policy: accept
// at or above the threshold, regenerate from web results below the
// fallback floor (keeping whichever scores higher), and serve with a
// soft warning in between. A disabled or degraded judge serves the
// answer unscored.
func (p *Pipeline) assess(ctx context.Context, route llms.Route, generated *generation.Answer, docs []retrieval.Document, history []protocol.Turn, state *runState) assessment {
	outcome := assessment{
		answer:    generated,
		source:    protocol.SourceSearch,
		cacheable: true,
	}

	if p.judge == nil || !p.judge.Enabled() {
		return outcome
	}

	var verdict *faithfulness.Verdict
	p.stage(ctx, stageFaithfulness, observability.SpanStageGuard, state, func(sctx context.Context) error {
		verdict = p.judge.Check(sctx, route.EnglishQuery, generated.Text, contextsOf(docs))
		return nil
	})

	if verdict.Degraded {
		state.warn("faithfulness unverified; judge unavailable")
		outcome.score = 0
		outcome.cacheable = false
		return outcome
	}
	outcome.score = verdict.Score

	switch {
	case p.judge.ShouldFallback(verdict.Score):
		if better := p.webFallback(ctx, route, history, verdict.Score, state); better != nil {
			return *better
		}
		state.warn(fmt.Sprintf("low faithfulness score (%.2f); answer may be weakly supported", verdict.Score))
		outcome.cacheable = false
	case !p.judge.Accept(verdict.Score):
		state.warn(fmt.Sprintf("faithfulness score %.2f below target", verdict.Score))
	}

	return outcome
}

// webFallback regenerates the answer from web search results and keeps
// it only when it scores strictly higher than the indexed answer.
func (p *Pipeline) webFallback(ctx context.Context, route llms.Route, history []protocol.Turn, firstScore float64, state *runState) *assessment {
	if p.web == nil || !p.cfg.WebSearch.IsEnabled() {
		return nil
	}

	var outcome *assessment
	p.stage(ctx, stageWebFallback, observability.SpanStageGuard, state, func(sctx context.Context) error {
		wctx, cancel := context.WithTimeout(sctx, p.cfg.WebSearch.Timeout)
		defer cancel()

		results, err := p.web.Search(wctx, route.EnglishQuery, p.cfg.WebSearch.MaxResults)
		if err != nil || len(results) == 0 {
			slog.Warn("Web fallback search failed", "provider", p.web.Name(), "error", err)
			return nil
		}
		p.recorder.RecordFallback(sctx, "web_search")

		webDocs := webResultsToDocs(results)
		regenerated, err := p.generator.Generate(sctx, &generation.Request{
			Query:            route.EnglishQuery,
			Documents:        webDocs,
			History:          history,
			ExpectedLanguage: state.language,
			Provider:         route.Provider,
		})
		if err != nil {
			slog.Warn("Web fallback generation failed", "error", err)
			return nil
		}

		verdict := p.judge.Check(sctx, route.EnglishQuery, regenerated.Text, contextsOf(webDocs))
		if verdict.Degraded || verdict.Score <= firstScore {
			return nil
		}
		outcome = &assessment{
			answer:    regenerated,
			score:     verdict.Score,
			source:    protocol.SourceFallbackWeb,
			cacheable: true,
		}
		return nil
	})
	return outcome
}

// finishAnswer assembles the served Answer from the winning assessment.
func (p *Pipeline) finishAnswer(outcome assessment, route llms.Route, state *runState) *protocol.Answer {
	citations := outcome.answer.Citations
	if citations == nil {
		citations = []protocol.Citation{}
	}
	return p.stamp(&protocol.Answer{
		Text:              outcome.answer.Text,
		Citations:         citations,
		FaithfulnessScore: outcome.score,
		ModelUsed:         string(route.Backend),
		RetrievalSource:   outcome.source,
	}, state)
}

// webResultsToDocs adapts web search hits to the generator contract.
func webResultsToDocs(results []websearch.Result) []retrieval.Document {
	docs := make([]retrieval.Document, 0, len(results))
	for i, r := range results {
		docs = append(docs, retrieval.Document{
			ID:      fmt.Sprintf("web-%d", i+1),
			Title:   r.Title,
			Content: r.Content,
			URLs:    []string{r.URL},
			Score:   r.Score,
		})
	}
	return docs
}

func contextsOf(docs []retrieval.Document) []string {
	contexts := make([]string, len(docs))
	for i, d := range docs {
		contexts[i] = d.Content
	}
	return contexts
}
