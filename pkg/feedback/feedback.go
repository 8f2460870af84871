// Package feedback persists user verdicts on answers: a thumbs up or
// down per request, optionally qualified with categories and a free
// text comment. Entries are keyed by the request ID so a rating can be
// joined back to the answer that earned it.
package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// Rating is the user's verdict on an answer.
type Rating string

const (
	RatingUp   Rating = "up"
	RatingDown Rating = "down"
)

// Categories users may attach to a down rating.
var knownCategories = map[string]bool{
	"inaccurate":     true,
	"off_topic":      true,
	"wrong_language": true,
	"incomplete":     true,
	"unclear":        true,
	"other":          true,
}

// Entry is one piece of feedback.
type Entry struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	Rating     Rating    `json:"rating"`
	Categories []string  `json:"categories,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Language   string    `json:"language,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists feedback entries.
type Store interface {
	Submit(ctx context.Context, entry *Entry) error
	Close() error
}

const createFeedbackSchemaSQL = `
CREATE TABLE IF NOT EXISTS feedback (
    id VARCHAR(64) PRIMARY KEY,
    request_id VARCHAR(64) NOT NULL,
    rating VARCHAR(8) NOT NULL,
    categories_json TEXT,
    comment TEXT,
    language VARCHAR(16),
    created_at TIMESTAMP NOT NULL
)`

const createFeedbackIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_feedback_request ON feedback(request_id)`

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	cfg *config.FeedbackConfig
}

// NewSQLiteStore opens (creating if needed) the feedback database and
// initializes the schema.
func NewSQLiteStore(cfg *config.FeedbackConfig) (*SQLiteStore, error) {
	if cfg == nil {
		cfg = &config.FeedbackConfig{}
		cfg.SetDefaults()
	}

	if dir := filepath.Dir(cfg.Database); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create feedback directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback database %q: %w", cfg.Database, err)
	}

	s := &SQLiteStore{db: db, cfg: cfg}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize feedback schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range []string{createFeedbackSchemaSQL, createFeedbackIndexSQL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Submit validates and stores one entry. The ID and timestamp are
// assigned here when absent; unknown categories are dropped and the
// comment is clipped to the configured limit.
func (s *SQLiteStore) Submit(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("feedback entry is required")
	}
	if entry.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if entry.Rating != RatingUp && entry.Rating != RatingDown {
		return fmt.Errorf("rating must be %q or %q", RatingUp, RatingDown)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Categories = normalizeCategories(entry.Categories)
	entry.Comment = clipComment(entry.Comment, s.cfg.MaxCommentLength)

	categoriesJSON := ""
	if len(entry.Categories) > 0 {
		data, err := json.Marshal(entry.Categories)
		if err != nil {
			return fmt.Errorf("failed to serialize categories: %w", err)
		}
		categoriesJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, request_id, rating, categories_json, comment, language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RequestID, string(entry.Rating), categoriesJSON,
		entry.Comment, entry.Language, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// normalizeCategories lowercases, dedupes and drops unknown values.
func normalizeCategories(categories []string) []string {
	var out []string
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if !knownCategories[c] || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// clipComment trims the comment to limit bytes at a rune boundary.
func clipComment(comment string, limit int) string {
	comment = strings.TrimSpace(comment)
	if limit <= 0 || len(comment) <= limit {
		return comment
	}
	runes := []rune(comment)
	for len(string(runes)) > limit {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimSpace(string(runes))
}
