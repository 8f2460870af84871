package config

import (
	"fmt"
	"regexp"
)

// FiltersConfig configures post-retrieval document shaping: the
// server-side language filter, trusted-domain boosts, intent and topic
// soft boosts, the audience blocklist, and deduplication. All boosts
// are additive score adjustments applied before the similarity gate.
//
// Example:
//
//	filters:
//	  lang: en
//	  preferred_domains:
//	    - toronto.ca
//	    - epa.gov
//	  domain_boost: 0.08
//	  howto_boost: 0.05
//	  topic_boost: 0.03
type FiltersConfig struct {
	// Lang is the metadata language filter sent with the index query.
	// When the filtered query matches nothing, retrieval retries once
	// without it. Empty disables server-side filtering. Default: en
	Lang string `yaml:"lang,omitempty"`

	// PreferredDomains lists source hosts whose documents get a score
	// boost. Matching is case-insensitive substring with any leading
	// www. stripped.
	PreferredDomains []string `yaml:"preferred_domains,omitempty"`

	// DomainBoost is the additive boost for preferred domains.
	// Default: 0.08
	DomainBoost float64 `yaml:"domain_boost,omitempty"`

	// HowToDocTypes marks instructional documents by title/URL
	// substring. Default: [factsheet, fact sheet, guideline, advisory,
	// toolkit, checklist]
	HowToDocTypes []string `yaml:"howto_doc_types,omitempty"`

	// HowToBoost is the additive boost applied to instructional
	// documents when the query reads like a how-to question.
	// Default: 0.05
	HowToBoost float64 `yaml:"howto_boost,omitempty"`

	// TopicClusters maps a cluster name to the keywords that assign a
	// query and a document to it. When empty, built-in clusters for
	// electric vehicles, home weatherization, and heat/air-quality are
	// used.
	TopicClusters map[string][]string `yaml:"topic_clusters,omitempty"`

	// TopicBoost is the additive boost applied when a document shares
	// a topic cluster with the query. Default: 0.03
	TopicBoost float64 `yaml:"topic_boost,omitempty"`

	// AudienceBlockPatterns are regular expressions matched against a
	// document's title and leading content; matching documents are
	// dropped. The defaults catch K-12 and classroom material, which
	// reads as condescending when served to adults.
	AudienceBlockPatterns []string `yaml:"audience_block_patterns,omitempty"`

	// BlockedDomains lists source hosts dropped outright.
	BlockedDomains []string `yaml:"blocked_domains,omitempty"`

	// Dedup controls duplicate removal by (title, first URL).
	// Default: true
	Dedup *bool `yaml:"dedup,omitempty"`
}

// defaultAudienceBlockPatterns match school-audience material: grade
// ranges, lesson plans, classroom resources.
var defaultAudienceBlockPatterns = []string{
	`(?i)\bgrades?\s*(k|[0-9]{1,2})\b`,
	`(?i)\blesson plans?\b`,
	`(?i)\bclassroom\b`,
	`(?i)\bcurriculum\b`,
	`(?i)\bk\s*[-–]?\s*12\b`,
	`(?i)\bkindergarten\b`,
	`(?i)\bfor (kids|children|young learners)\b`,
	`(?i)\bteacher'?s? guide\b`,
	`(?i)\bworksheets?\b`,
	`(?i)\bschool activit(y|ies)\b`,
}

// SetDefaults applies default values.
func (c *FiltersConfig) SetDefaults() {
	if c.Lang == "" {
		c.Lang = "en"
	}
	if c.DomainBoost == 0 {
		c.DomainBoost = 0.08
	}
	if c.HowToBoost == 0 {
		c.HowToBoost = 0.05
	}
	if c.TopicBoost == 0 {
		c.TopicBoost = 0.03
	}
	if len(c.HowToDocTypes) == 0 {
		c.HowToDocTypes = []string{
			"factsheet", "fact sheet", "guideline", "advisory", "toolkit", "checklist",
		}
	}
	if len(c.TopicClusters) == 0 {
		c.TopicClusters = map[string][]string{
			"ev": {
				"ev", "evs", "electric vehicle", "electric car", "charging", "charger", "evse",
			},
			"weatherize": {
				"weatherize", "weatherization", "weatherproof", "insulation", "heat pump",
				"drafty", "window sealing",
			},
			"heat_aqi": {
				"heat wave", "heatwave", "extreme heat", "aqi", "air quality", "smog",
				"wildfire smoke", "cooling centre", "cooling center",
			},
		}
	}
	if len(c.AudienceBlockPatterns) == 0 {
		c.AudienceBlockPatterns = append([]string(nil), defaultAudienceBlockPatterns...)
	}
	if c.Dedup == nil {
		c.Dedup = BoolPtr(true)
	}
}

// Validate checks the filters configuration.
func (c *FiltersConfig) Validate() error {
	for name, boost := range map[string]float64{
		"domain_boost": c.DomainBoost,
		"howto_boost":  c.HowToBoost,
		"topic_boost":  c.TopicBoost,
	} {
		if boost < 0 || boost > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %g", name, boost)
		}
	}
	for _, pattern := range c.AudienceBlockPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("audience_block_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// DedupEnabled returns whether deduplication is on.
func (c *FiltersConfig) DedupEnabled() bool {
	return BoolValue(c.Dedup, true)
}
