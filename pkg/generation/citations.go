package generation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

const snippetLength = 200

// extractCitations resolves the [n] markers in the answer against the
// documents that were actually in the prompt. Markers outside the
// packed range are dropped; each document is cited once, in first-use
// order.
func extractCitations(text string, docs []retrieval.Document) []protocol.Citation {
	seen := make(map[int]bool)
	var citations []protocol.Citation

	for _, match := range citationMarker.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(docs) {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		citations = append(citations, toCitation(docs[n-1]))
	}

	return dedupeByURL(citations)
}

// citeAll cites every packed document, used when the model produced a
// grounded answer but no markers.
func citeAll(docs []retrieval.Document) []protocol.Citation {
	citations := make([]protocol.Citation, 0, len(docs))
	for _, doc := range docs {
		citations = append(citations, toCitation(doc))
	}
	return dedupeByURL(citations)
}

func toCitation(doc retrieval.Document) protocol.Citation {
	url := ""
	if len(doc.URLs) > 0 {
		url = doc.URLs[0]
	}
	return protocol.Citation{
		Title:   doc.Title,
		URL:     url,
		Snippet: snippet(doc.Content),
	}
}

// dedupeByURL keeps the first citation per URL. Citations without a
// URL are kept as-is; distinct chunks of one page collapse to one
// entry.
func dedupeByURL(citations []protocol.Citation) []protocol.Citation {
	seen := make(map[string]bool, len(citations))
	out := citations[:0]
	for _, c := range citations {
		if c.URL != "" {
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
		}
		out = append(out, c)
	}
	return out
}

func snippet(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= snippetLength {
		return content
	}
	cut := cutAtWord(content, snippetLength)
	return cut + "…"
}
