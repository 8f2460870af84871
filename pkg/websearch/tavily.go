package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/httpclient"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/observability"
)

// TavilyProvider implements Provider against the Tavily search API.
// Transient API errors are retried once; persistent failure surfaces to
// the caller, which keeps the index-only answer.
type TavilyProvider struct {
	client   *httpclient.Client
	apiKey   string
	baseURL  string
	recorder observability.Recorder
}

type tavilySearchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

type tavilyError struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

// NewTavilyProviderFromConfig builds the provider. The recorder may be
// nil.
func NewTavilyProviderFromConfig(cfg *config.WebSearchConfig, recorder observability.Recorder) (*TavilyProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tavily requires an api_key")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}

	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(1),
		httpclient.WithBaseDelay(time.Second),
		httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeaders),
	}
	if cfg.CACertFile != "" || cfg.InsecureSkipVerify {
		opts = append(opts, httpclient.WithTLS(&httpclient.TLSOptions{
			CAFile:             cfg.CACertFile,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}))
	}

	return &TavilyProvider{
		client:   httpclient.New(opts...),
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		recorder: recorder,
	}, nil
}

func (p *TavilyProvider) Name() string {
	return "tavily"
}

// Search returns up to maxResults web hits for query.
func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	start := time.Now()
	results, err := p.call(ctx, query, maxResults)
	p.recorder.RecordDependencyCall(ctx, "tavily", "search", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return normalizeResults(results, maxResults), nil
}

func (p *TavilyProvider) call(ctx context.Context, query string, maxResults int) ([]Result, error) {
	payload := tavilySearchRequest{
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  maxResults,
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if resp == nil {
			return nil, fmt.Errorf("failed to send request to Tavily: %w", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var errResp tavilyError
		if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Error != "" {
			return nil, fmt.Errorf("Tavily API error: %s", errResp.Detail.Error)
		}
		return nil, fmt.Errorf("Tavily API returned status %d: %s", resp.StatusCode, string(body))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response tavilySearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

var _ Provider = (*TavilyProvider)(nil)
