package retrieval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// audienceProbeLen bounds how much document content the audience
// patterns scan. The school-audience markers show up early or not at
// all.
const audienceProbeLen = 512

// AudienceFilter drops documents written for a blocked audience,
// detected by title/content patterns or by source host. The safety
// ordering matters: this runs before any document text can reach an
// LLM call.
type AudienceFilter struct {
	patterns       []*regexp.Regexp
	blockedDomains []string
}

// AudienceStats reports how many documents the filter removed and how
// many of those were caught by text patterns alone (no domain match).
type AudienceStats struct {
	Blocked         int
	BlockedTextOnly int
}

func NewAudienceFilter(cfg *config.FiltersConfig) (*AudienceFilter, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.AudienceBlockPatterns))
	for _, raw := range cfg.AudienceBlockPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid audience block pattern %q: %w", raw, err)
		}
		patterns = append(patterns, re)
	}

	blocked := make([]string, 0, len(cfg.BlockedDomains))
	for _, d := range cfg.BlockedDomains {
		d = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(d, "www.")))
		if d != "" {
			blocked = append(blocked, d)
		}
	}

	return &AudienceFilter{patterns: patterns, blockedDomains: blocked}, nil
}

// Apply returns the documents that survive the blocklist, with counts
// of what was removed.
func (f *AudienceFilter) Apply(docs []Document) ([]Document, AudienceStats) {
	var stats AudienceStats
	out := make([]Document, 0, len(docs))

	for _, doc := range docs {
		byDomain := f.matchesBlockedDomain(&doc)
		byText := f.matchesPattern(&doc)

		if byDomain || byText {
			stats.Blocked++
			if byText && !byDomain {
				stats.BlockedTextOnly++
			}
			continue
		}
		out = append(out, doc)
	}

	return out, stats
}

func (f *AudienceFilter) matchesPattern(doc *Document) bool {
	if len(f.patterns) == 0 {
		return false
	}

	probe := doc.Content
	if len(probe) > audienceProbeLen {
		probe = probe[:audienceProbeLen]
	}
	haystack := doc.Title + "\n" + probe

	for _, re := range f.patterns {
		if re.MatchString(haystack) {
			return true
		}
	}
	return false
}

func (f *AudienceFilter) matchesBlockedDomain(doc *Document) bool {
	if len(f.blockedDomains) == 0 {
		return false
	}
	for _, raw := range doc.URLs {
		host := hostOf(raw)
		if host == "" {
			continue
		}
		for _, blocked := range f.blockedDomains {
			if host == blocked || strings.HasSuffix(host, "."+blocked) {
				return true
			}
		}
	}
	return false
}
