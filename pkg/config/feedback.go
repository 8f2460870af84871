package config

import "fmt"

// FeedbackConfig configures persistent storage for user feedback on
// answers (thumbs up/down plus optional categories and comment).
type FeedbackConfig struct {
	// Enabled turns the feedback endpoint on. Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Database is the SQLite file path.
	// Default: ./.climatechat/feedback.db
	Database string `yaml:"database,omitempty"`

	// MaxCommentLength caps free-text comments. Default: 2000
	MaxCommentLength int `yaml:"max_comment_length,omitempty"`
}

// SetDefaults applies default values.
func (c *FeedbackConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Database == "" {
		c.Database = "./.climatechat/feedback.db"
	}
	if c.MaxCommentLength == 0 {
		c.MaxCommentLength = 2000
	}
}

// Validate checks the feedback configuration.
func (c *FeedbackConfig) Validate() error {
	if c.MaxCommentLength < 0 {
		return fmt.Errorf("max_comment_length must be non-negative")
	}
	return nil
}

// IsEnabled returns whether feedback storage is on.
func (c *FeedbackConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, true)
}
