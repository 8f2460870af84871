package generation

import (
	"fmt"
	"strings"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/utils"
)

// buildContext renders documents as a numbered source block within the
// configured token budget. Documents are taken in rank order; the
// first one always makes it in, clipped to the budget if it alone
// exceeds it, so generation is never left without grounding.
func (g *Generator) buildContext(docs []retrieval.Document) (string, int) {
	budget := g.cfg.ContextTokenBudget

	var b strings.Builder
	used := 0
	spent := 0
	for i, doc := range docs {
		entry := renderDoc(i+1, doc)
		cost := g.countTokens(entry)

		if spent+cost > budget {
			if used > 0 {
				break
			}
			entry = renderDoc(1, g.clipDoc(doc, budget))
			cost = g.countTokens(entry)
		}

		b.WriteString(entry)
		b.WriteString("\n")
		spent += cost
		used++
	}

	return b.String(), used
}

func renderDoc(n int, doc retrieval.Document) string {
	title := doc.Title
	if doc.SectionTitle != "" && doc.SectionTitle != doc.Title {
		title = fmt.Sprintf("%s - %s", doc.Title, doc.SectionTitle)
	}
	return fmt.Sprintf("[%d] %s\n%s\n", n, title, strings.TrimSpace(doc.Content))
}

// clipDoc trims an oversized document's content down to roughly the
// token budget, cutting at a word boundary.
func (g *Generator) clipDoc(doc retrieval.Document, budget int) retrieval.Document {
	content := strings.TrimSpace(doc.Content)
	for g.countTokens(content) > budget && len(content) > 0 {
		// Cut proportionally, then re-measure. Converges in a few
		// rounds because tokens scale near-linearly with length.
		keep := len(content) * budget / (g.countTokens(content) + 1)
		if keep >= len(content) {
			keep = len(content) - 1
		}
		content = strings.TrimSpace(cutAtWord(content, keep))
	}
	doc.Content = content
	return doc
}

// cutAtWord shortens s to at most n bytes, backing up to the previous
// space so words stay whole.
func cutAtWord(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	cut := s[:n]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

func (g *Generator) countTokens(text string) int {
	if g.counter != nil {
		return g.counter.Count(text)
	}
	return utils.EstimateTokens(text)
}
