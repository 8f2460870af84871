package languages

import (
	_ "embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed data/climate_keywords.json
var climateKeywordsJSON []byte

var (
	keywordsOnce sync.Once
	keywords     map[string][]string
)

func loadKeywords() {
	keywordsOnce.Do(func() {
		keywords = make(map[string][]string)
		// The file is embedded and validated by tests; a parse failure
		// leaves the guard empty rather than panicking.
		_ = json.Unmarshal(climateKeywordsJSON, &keywords)
	})
}

// HasClimateKeywords reports whether the query contains a known climate
// term in the given language or in English. The classifier consults it
// before rejecting a non-English query as off-topic: topic
// classification quality drops outside English, and a query that names
// the domain in its own words should never be bounced.
func HasClimateKeywords(code, query string) bool {
	loadKeywords()

	q := strings.ToLower(query)
	if q == "" {
		return false
	}

	for _, kw := range keywords[code] {
		if strings.Contains(q, kw) {
			return true
		}
	}

	// English terms leak into queries in every language.
	if code != "en" {
		for _, kw := range keywords["en"] {
			if strings.Contains(q, kw) {
				return true
			}
		}
	}

	return false
}

// GuardLanguages returns the language codes the keyword guard covers.
func GuardLanguages() []string {
	loadKeywords()
	out := make([]string, 0, len(keywords))
	for code := range keywords {
		out = append(out, code)
	}
	return out
}
