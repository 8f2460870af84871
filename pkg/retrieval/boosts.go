package retrieval

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// howToQuery matches queries asking for practical guidance. Such
// queries prefer instructional document types over narrative reports.
var howToQuery = regexp.MustCompile(`(?i)how to|tips|at home|safety|cost|guide|checklist|prepare|kit`)

// Booster applies additive score adjustments to retrieved documents:
// preferred-domain boosts, instructional-document boosts for how-to
// queries, and topic-cluster boosts. IndexScore is never touched.
type Booster struct {
	cfg *config.FiltersConfig
}

func NewBooster(cfg *config.FiltersConfig) *Booster {
	return &Booster{cfg: cfg}
}

// Apply boosts the documents in place for the given query.
func (b *Booster) Apply(query string, docs []Document) {
	isHowTo := IsHowToQuery(query)
	clusters := b.queryClusters(query)

	for i := range docs {
		doc := &docs[i]

		if b.matchesPreferredDomain(doc) {
			doc.Score += b.cfg.DomainBoost
		}
		if isHowTo && b.isInstructional(doc) {
			doc.Score += b.cfg.HowToBoost
		}
		if b.sharesCluster(doc, clusters) {
			doc.Score += b.cfg.TopicBoost
		}
	}
}

// IsHowToQuery reports whether the query asks for practical guidance.
func IsHowToQuery(query string) bool {
	return howToQuery.MatchString(query)
}

func (b *Booster) matchesPreferredDomain(doc *Document) bool {
	if len(b.cfg.PreferredDomains) == 0 {
		return false
	}
	for _, raw := range doc.URLs {
		host := hostOf(raw)
		if host == "" {
			continue
		}
		for _, domain := range b.cfg.PreferredDomains {
			if strings.Contains(host, strings.ToLower(strings.TrimSpace(domain))) {
				return true
			}
		}
	}
	return false
}

func (b *Booster) isInstructional(doc *Document) bool {
	haystack := strings.ToLower(doc.Title + " " + doc.URL())
	for _, docType := range b.cfg.HowToDocTypes {
		if strings.Contains(haystack, strings.ToLower(docType)) {
			return true
		}
	}
	return false
}

// queryClusters returns the names of topic clusters the query belongs
// to, by keyword containment.
func (b *Booster) queryClusters(query string) []string {
	q := strings.ToLower(query)
	var out []string
	for name, terms := range b.cfg.TopicClusters {
		for _, term := range terms {
			if strings.Contains(q, term) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func (b *Booster) sharesCluster(doc *Document, clusters []string) bool {
	if len(clusters) == 0 {
		return false
	}
	content := strings.ToLower(doc.Title + " " + doc.Content)
	for _, name := range clusters {
		for _, term := range b.cfg.TopicClusters[name] {
			if strings.Contains(content, term) {
				return true
			}
		}
	}
	return false
}

// hostOf extracts the lowercased host from a URL, stripping any leading
// www. Bare hosts without a scheme are accepted.
func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Bare "toronto.ca/page" style references.
		if i := strings.IndexAny(raw, "/?#"); i >= 0 {
			raw = raw[:i]
		}
		return strings.TrimPrefix(strings.ToLower(raw), "www.")
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
