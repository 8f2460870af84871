package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

func tavilyConfig(url string) *config.WebSearchConfig {
	return &config.WebSearchConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Timeout: 2 * time.Second,
	}
}

func TestTavilySearch(t *testing.T) {
	var gotAuth string
	var gotReq tavilySearchRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "Heat waves explained", "url": "https://example.org/heat", "content": "Urban heat islands...", "score": 0.92},
				{"title": "", "url": "https://example.org/missing-title", "content": "dropped", "score": 0.5},
				{"title": "Flood preparedness", "url": "https://example.org/flood", "content": "Sandbags and drains...", "score": 0.81},
			},
		})
	}))
	defer server.Close()

	provider, err := NewTavilyProviderFromConfig(tavilyConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("NewTavilyProviderFromConfig: %v", err)
	}

	results, err := provider.Search(context.Background(), "heat wave safety", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
	if gotReq.Query != "heat wave safety" {
		t.Errorf("query = %q", gotReq.Query)
	}
	if gotReq.MaxResults != 5 {
		t.Errorf("max_results = %d, want 5", gotReq.MaxResults)
	}

	// The title-less hit is dropped.
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Heat waves explained" || results[0].URL != "https://example.org/heat" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Score != 0.81 {
		t.Errorf("Score = %g, want 0.81", results[1].Score)
	}
}

func TestTavilySearchCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "a", "url": "https://a", "content": "", "score": 0.9},
				{"title": "b", "url": "https://b", "content": "", "score": 0.8},
				{"title": "c", "url": "https://c", "content": "", "score": 0.7},
			},
		})
	}))
	defer server.Close()

	provider, _ := NewTavilyProviderFromConfig(tavilyConfig(server.URL), nil)
	results, err := provider.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want cap of 2", len(results))
	}
}

func TestTavilySearchRetriesTransientError(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, `{"detail":{"error":"try again"}}`, http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "a", "url": "https://a", "content": "", "score": 0.9},
			},
		})
	}))
	defer server.Close()

	provider, _ := NewTavilyProviderFromConfig(tavilyConfig(server.URL), nil)
	results, err := provider.Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want retry after the transient error", attempts)
	}
	if len(results) != 1 || results[0].Title != "a" {
		t.Errorf("results = %+v, want the retried call's hit", results)
	}
}

func TestTavilySearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"error":"invalid api key"}}`))
	}))
	defer server.Close()

	provider, _ := NewTavilyProviderFromConfig(tavilyConfig(server.URL), nil)
	if _, err := provider.Search(context.Background(), "q", 3); err == nil {
		t.Fatal("expected error on 401 response")
	}
}

func TestTavilyRequiresAPIKey(t *testing.T) {
	if _, err := NewTavilyProviderFromConfig(&config.WebSearchConfig{}, nil); err == nil {
		t.Fatal("expected error without API key")
	}
}
