package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
)

func rerankDocs(n int) []retrieval.Document {
	docs := make([]retrieval.Document, n)
	for i := range docs {
		docs[i] = retrieval.Document{
			ID:         fmt.Sprintf("doc-%d", i),
			Title:      fmt.Sprintf("Title %d", i),
			Content:    fmt.Sprintf("Body of document %d", i),
			Score:      0.5,
			IndexScore: 0.5,
		}
	}
	return docs
}

func testReranker(t *testing.T, baseURL string, tweak func(*config.RerankConfig)) *CohereReranker {
	t.Helper()

	cohere := &config.CohereConfig{APIKey: "co-test-key", BaseURL: baseURL}
	cfg := &config.RerankConfig{}
	cfg.SetDefaults()
	if tweak != nil {
		tweak(cfg)
	}

	r, err := NewCohereRerankerFromConfig(cohere, cfg, nil)
	if err != nil {
		t.Fatalf("NewCohereRerankerFromConfig: %v", err)
	}
	return r
}

func TestNewCohereRerankerFromConfig_MissingAPIKey(t *testing.T) {
	cfg := &config.RerankConfig{}
	cfg.SetDefaults()

	if _, err := NewCohereRerankerFromConfig(&config.CohereConfig{}, cfg, nil); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestCohereReranker_Rerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/rerank" {
			t.Errorf("path = %s, want /v2/rerank", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer co-test-key" {
			t.Errorf("auth = %s, want bearer key", auth)
		}

		var req cohereRerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "rerank-v3.5" {
			t.Errorf("model = %s, want rerank-v3.5", req.Model)
		}
		if req.Query != "heat waves" {
			t.Errorf("query = %s", req.Query)
		}
		if len(req.Documents) != 3 || req.TopN != 2 {
			t.Errorf("documents/top_n = %d/%d, want 3/2", len(req.Documents), req.TopN)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"r-1","results":[
			{"index":2,"relevance_score":0.95},
			{"index":0,"relevance_score":0.7}
		]}`)
	}))
	defer server.Close()

	r := testReranker(t, server.URL, nil)
	out, err := r.Rerank(context.Background(), "heat waves", rerankDocs(3), 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("got %d docs, want 2", len(out))
	}
	if out[0].ID != "doc-2" || out[0].Score != 0.95 {
		t.Errorf("out[0] = %s/%g, want doc-2 with the relevance score", out[0].ID, out[0].Score)
	}
	if out[1].ID != "doc-0" || out[1].Score != 0.7 {
		t.Errorf("out[1] = %s/%g, want doc-0/0.7", out[1].ID, out[1].Score)
	}
	if out[0].IndexScore != 0.5 {
		t.Errorf("IndexScore = %g, reranking must not touch it", out[0].IndexScore)
	}
}

func TestCohereReranker_ClipsLongDocuments(t *testing.T) {
	var gotLen int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cohereRerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotLen = len(req.Documents[0])
		fmt.Fprint(w, `{"id":"r-1","results":[{"index":0,"relevance_score":0.9}]}`)
	}))
	defer server.Close()

	docs := []retrieval.Document{{ID: "long", Content: strings.Repeat("x", 4000)}}
	r := testReranker(t, server.URL, nil)

	if _, err := r.Rerank(context.Background(), "q", docs, 1); err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if gotLen != 1500 {
		t.Errorf("sent %d chars, want clipped to 1500", gotLen)
	}
}

func TestCohereReranker_FallbackOnServerError(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"message":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	docs := rerankDocs(4)
	r := testReranker(t, server.URL, nil)

	out, err := r.Rerank(context.Background(), "q", docs, 2)
	if err != nil {
		t.Fatalf("Rerank error = %v, want degraded nil", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want one retry before degrading", attempts)
	}
	if len(out) != 2 || out[0].ID != "doc-0" || out[1].ID != "doc-1" {
		t.Errorf("fallback = %v, want input order truncated", idsOf(out))
	}
	if out[0].Score != 0.5 {
		t.Errorf("fallback Score = %g, want original score kept", out[0].Score)
	}
}

func TestCohereReranker_RecoversAfterTransientError(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, `{"message":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"id":"r-1","results":[{"index":1,"relevance_score":0.9}]}`)
	}))
	defer server.Close()

	r := testReranker(t, server.URL, nil)
	out, err := r.Rerank(context.Background(), "q", rerankDocs(2), 1)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want retry after the transient error", attempts)
	}
	if len(out) != 1 || out[0].ID != "doc-1" || out[0].Score != 0.9 {
		t.Errorf("out = %v, want reranked result from the retried call", idsOf(out))
	}
}

func TestCohereReranker_FallbackOnTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, `{"id":"r-1","results":[{"index":0,"relevance_score":0.9}]}`)
	}))
	defer server.Close()
	defer close(release)

	r := testReranker(t, server.URL, func(cfg *config.RerankConfig) {
		cfg.Timeout = 50 * time.Millisecond
	})

	out, err := r.Rerank(context.Background(), "q", rerankDocs(2), 2)
	if err != nil {
		t.Fatalf("Rerank error = %v, want degraded nil", err)
	}
	if len(out) != 2 || out[0].ID != "doc-0" {
		t.Errorf("fallback = %v, want input order preserved", idsOf(out))
	}
}

func TestCohereReranker_FallbackOnMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"garbage", "not json"},
		{"no results", `{"id":"r-1","results":[]}`},
		{"index out of range", `{"id":"r-1","results":[{"index":9,"relevance_score":0.9}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			r := testReranker(t, server.URL, nil)
			out, err := r.Rerank(context.Background(), "q", rerankDocs(3), 2)
			if err != nil {
				t.Fatalf("Rerank error = %v, want degraded nil", err)
			}
			if len(out) != 2 || out[0].ID != "doc-0" || out[1].ID != "doc-1" {
				t.Errorf("fallback = %v, want input order truncated", idsOf(out))
			}
		})
	}
}

func TestCohereReranker_EmptyInput(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	r := testReranker(t, server.URL, nil)
	out, err := r.Rerank(context.Background(), "q", nil, 5)
	if err != nil || len(out) != 0 {
		t.Errorf("empty input: out=%v err=%v", out, err)
	}
	if called {
		t.Error("empty input should not hit the API")
	}
}

func TestNoopReranker(t *testing.T) {
	r := NewNoopReranker()
	out, err := r.Rerank(context.Background(), "q", rerankDocs(5), 3)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(out) != 3 || out[0].ID != "doc-0" {
		t.Errorf("noop = %v, want input order truncated to 3", idsOf(out))
	}
}

func idsOf(docs []retrieval.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
