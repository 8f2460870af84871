// Package retrieval implements the document side of the query pipeline:
// hybrid index search with filter fallback, score boosts, audience
// filtering, the adaptive similarity gate with refill, MMR
// diversification, and post-rerank finalization.
//
// Stages operate on the Document type, adapted from index matches at
// the boundary. Score carries the working score mutated by boosts and
// reranking; IndexScore preserves the raw index similarity the gate
// decides on.
package retrieval

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/databases"
)

// Document is one retrieved corpus chunk flowing through the pipeline.
type Document struct {
	ID           string
	Title        string
	Content      string
	SectionTitle string
	URLs         []string
	Keywords     []string

	// Score is the working score: index similarity at first, then
	// mutated by boosts, then replaced by the rerank relevance.
	Score float64

	// IndexScore is the raw similarity reported by the vector index.
	// The gate and refill stages decide on it; boosts never touch it.
	IndexScore float64

	// Values is the dense vector when the index returned it.
	Values []float32

	Metadata map[string]interface{}
}

// FromMatch adapts an index match into a Document. Metadata follows the
// ingestion layout: title, chunk_text, section_title, segment_id,
// doc_keywords, segment_keywords, url (list or string).
func FromMatch(m databases.Match) Document {
	doc := Document{
		ID:         m.ID,
		Score:      float64(m.Score),
		IndexScore: float64(m.Score),
		Values:     m.Values,
		Metadata:   m.Metadata,
	}

	doc.Title = strings.TrimSpace(metaString(m.Metadata, "title"))
	doc.Content = metaString(m.Metadata, "chunk_text")
	doc.SectionTitle = metaString(m.Metadata, "section_title")
	doc.URLs = metaStrings(m.Metadata, "url")
	doc.Keywords = append(metaStrings(m.Metadata, "doc_keywords"), metaStrings(m.Metadata, "segment_keywords")...)

	return doc
}

// FromMatches adapts a batch of matches, dropping entries with neither
// title nor content (ingestion artifacts).
func FromMatches(matches []databases.Match) []Document {
	docs := make([]Document, 0, len(matches))
	for _, m := range matches {
		doc := FromMatch(m)
		if doc.Title == "" && doc.Content == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// Key returns the stable cache key for the document's embedding: the
// index id when present, a content hash otherwise.
func (d *Document) Key() string {
	if d.ID != "" {
		return d.ID
	}
	sum := sha1.Sum([]byte(d.Content))
	return hex.EncodeToString(sum[:])
}

// URL returns the document's first URL, or an empty string.
func (d *Document) URL() string {
	if len(d.URLs) == 0 {
		return ""
	}
	return d.URLs[0]
}

// dedupKey identifies duplicates: same lowercased title and first URL.
func (d *Document) dedupKey() string {
	return strings.ToLower(d.Title) + "\x00" + strings.ToLower(d.URL())
}

// Dedup removes duplicate documents, keeping the first (highest-ranked)
// occurrence of each (title, first URL) pair.
func Dedup(docs []Document) []Document {
	seen := make(map[string]bool, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		key := d.dedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// Merge unions two document lists preserving the order of a then the
// unseen tail of b, deduplicated by (title, first URL).
func Merge(a, b []Document) []Document {
	return Dedup(append(append(make([]Document, 0, len(a)+len(b)), a...), b...))
}

// metaString reads a string metadata value.
func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}

// metaStrings reads a list metadata value, accepting a bare string, a
// []string, or a []interface{} of strings. Index providers disagree on
// which they return.
func metaStrings(meta map[string]interface{}, key string) []string {
	if meta == nil {
		return nil
	}
	switch v := meta[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
