// Package websearch provides the web search fallback consulted when an
// answer fails the faithfulness check: fresh snippets from a search API
// replace the index documents as grounding context for one retry.
package websearch

import (
	"context"
	"strings"
)

// Result is a single search hit from any provider.
type Result struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Provider is the minimal search interface the pipeline needs.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
	Name() string
}

// normalizeResults trims fields and drops hits missing a title or URL,
// capping the list at limit.
func normalizeResults(raw []Result, limit int) []Result {
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		title := strings.TrimSpace(r.Title)
		url := strings.TrimSpace(r.URL)
		if title == "" || url == "" {
			continue
		}
		out = append(out, Result{
			Title:   title,
			URL:     url,
			Content: strings.TrimSpace(r.Content),
			Score:   r.Score,
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}
