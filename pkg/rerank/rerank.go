// Package rerank scores retrieval candidates for answer-worthiness with
// the Cohere rerank API. Reranking is advisory: any failure, malformed
// response, or timeout falls back to the retrieval order so a rerank
// outage degrades quality, never availability. Transient API errors get
// a single retry inside the stage deadline before the fallback engages.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/httpclient"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
)

// Reranker reorders candidates by relevance to the query and replaces
// their working scores with calibrated relevance scores in [0,1].
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []retrieval.Document, topN int) ([]retrieval.Document, error)
}

// CohereReranker implements Reranker on the Cohere rerank API.
type CohereReranker struct {
	client   *httpclient.Client
	apiKey   string
	baseURL  string
	model    string
	maxChars int
	timeout  time.Duration
	recorder observability.Recorder
}

// cohereRerankRequest is the rerank API request payload.
type cohereRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// cohereRerankResponse is the rerank API response payload.
type cohereRerankResponse struct {
	ID      string `json:"id"`
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

type cohereRerankError struct {
	Message string `json:"message"`
}

// NewCohereRerankerFromConfig wires the reranker from the models and
// rerank sections. The recorder may be nil.
func NewCohereRerankerFromConfig(cohere *config.CohereConfig, cfg *config.RerankConfig, recorder observability.Recorder) (*CohereReranker, error) {
	if cohere.APIKey == "" {
		return nil, fmt.Errorf("cohere reranker requires an api_key")
	}

	model := cohere.RerankModel
	if model == "" {
		model = "rerank-v3.5"
	}

	baseURL := cohere.BaseURL
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 1500
	}

	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}

	return &CohereReranker{
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(1),
			httpclient.WithBaseDelay(time.Second),
			httpclient.WithHeaderParser(httpclient.ParseCohereHeaders),
		),
		apiKey:   cohere.APIKey,
		baseURL:  baseURL,
		model:    model,
		maxChars: maxChars,
		timeout:  timeout,
		recorder: recorder,
	}, nil
}

// Rerank scores docs against query and returns up to topN documents in
// relevance order, Score replaced by the relevance score. On any
// failure the input order is returned truncated to topN with a nil
// error; the caller sees the degradation only through logs and the
// fallback metric.
func (r *CohereReranker) Rerank(ctx context.Context, query string, docs []retrieval.Document, topN int) ([]retrieval.Document, error) {
	if len(docs) == 0 || topN <= 0 {
		return []retrieval.Document{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	ranked, err := r.call(ctx, query, docs, topN)
	r.recorder.RecordDependencyCall(ctx, "cohere", "rerank", time.Since(start), err)
	if err != nil {
		slog.Warn("Reranking failed, preserving retrieval order",
			"status", "FALLBACK",
			"error", err,
			"docs", len(docs))
		r.recorder.RecordFallback(ctx, "rerank")
		return truncate(docs, topN), nil
	}

	return ranked, nil
}

func (r *CohereReranker) call(ctx context.Context, query string, docs []retrieval.Document, topN int) ([]retrieval.Document, error) {
	payload := cohereRerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: make([]string, len(docs)),
		TopN:      topN,
	}
	for i, d := range docs {
		payload.Documents[i] = clip(rerankText(d), r.maxChars)
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/v2/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if resp == nil {
			return nil, fmt.Errorf("failed to send request to Cohere: %w", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var errorResp cohereRerankError
		if json.Unmarshal(body, &errorResp) == nil && errorResp.Message != "" {
			return nil, fmt.Errorf("Cohere API error: %s", errorResp.Message)
		}
		return nil, fmt.Errorf("Cohere API returned status %d: %s", resp.StatusCode, string(body))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response cohereRerankResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("rerank response contained no results")
	}

	ranked := make([]retrieval.Document, 0, len(response.Results))
	for _, res := range response.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			return nil, fmt.Errorf("rerank result index %d out of range", res.Index)
		}
		doc := docs[res.Index]
		doc.Score = res.RelevanceScore
		ranked = append(ranked, doc)
	}
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	return ranked, nil
}

// rerankText is the text sent for scoring: the chunk content, falling
// back to the title for content-less entries.
func rerankText(d retrieval.Document) string {
	if d.Content != "" {
		return d.Content
	}
	return d.Title
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func truncate(docs []retrieval.Document, topN int) []retrieval.Document {
	if len(docs) > topN {
		docs = docs[:topN]
	}
	out := make([]retrieval.Document, len(docs))
	copy(out, docs)
	return out
}

// NoopReranker keeps the retrieval order, truncated to topN. Used when
// reranking is disabled.
type NoopReranker struct{}

func NewNoopReranker() *NoopReranker {
	return &NoopReranker{}
}

func (r *NoopReranker) Rerank(ctx context.Context, query string, docs []retrieval.Document, topN int) ([]retrieval.Document, error) {
	return truncate(docs, topN), nil
}

var (
	_ Reranker = (*CohereReranker)(nil)
	_ Reranker = (*NoopReranker)(nil)
)
