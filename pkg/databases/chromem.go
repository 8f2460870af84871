package databases

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// ChromemIndex is an embedded, optionally file-backed index used for
// local development and hermetic tests. It serves dense-only cosine
// search; sparse values on a Query are ignored.
//
// The query pipeline never writes. Upsert exists for the seed command
// and for tests.
type ChromemIndex struct {
	db          *chromem.DB
	collection  *chromem.Collection
	persistPath string
	compress    bool
}

// NewChromemIndexFromConfig opens (or creates) the embedded index. When
// cfg.PersistPath is set and a snapshot exists there, it is loaded.
func NewChromemIndexFromConfig(cfg *config.ChromemConfig) (*ChromemIndex, error) {
	if cfg == nil {
		return nil, fmt.Errorf("chromem config is required")
	}

	db := chromem.NewDB()

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		path := snapshotPath(cfg.PersistPath, cfg.Compress)
		if _, err := os.Stat(path); err == nil {
			if err := db.ImportFromFile(path, ""); err != nil {
				slog.Warn("Failed to load vector index snapshot, starting empty",
					"path", path,
					"error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("Loaded vector index snapshot", "path", path)
			}
		} else {
			slog.Info("Created new vector index", "path", path)
		}
	} else {
		slog.Info("Created in-memory vector index (no persistence)")
	}

	// Vectors are pre-computed by the embedder; chromem must never be
	// asked to embed.
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", cfg.Collection, err)
	}

	return &ChromemIndex{
		db:          db,
		collection:  collection,
		persistPath: cfg.PersistPath,
		compress:    cfg.Compress,
	}, nil
}

// Query runs a dense cosine search. The metadata filter is matched by
// string equality in-process.
func (c *ChromemIndex) Query(ctx context.Context, query *Query) ([]Match, error) {
	if len(query.Dense) == 0 {
		return nil, fmt.Errorf("dense query vector is required")
	}

	var where map[string]string
	if len(query.Filter) > 0 {
		where = make(map[string]string, len(query.Filter))
		for k, v := range query.Filter {
			where[k] = fmt.Sprint(v)
		}
	}

	// chromem rejects nResults larger than the collection.
	topK := query.TopK
	if n := c.collection.Count(); topK > n {
		topK = n
	}
	if topK <= 0 {
		return []Match{}, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, query.Dense, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Match, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]interface{}, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		if r.Content != "" {
			metadata["chunk_text"] = r.Content
		}

		match := Match{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: metadata,
		}
		if query.IncludeValues {
			match.Values = r.Embedding
		}

		out = append(out, match)
	}

	return out, nil
}

// Upsert stores a document with its pre-computed embedding. Document
// text is taken from metadata["chunk_text"].
func (c *ChromemIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]interface{}) error {
	strMetadata := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMetadata[k] = fmt.Sprint(v)
	}

	content := ""
	if text, ok := metadata["chunk_text"].(string); ok {
		content = text
	}

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  strMetadata,
		Embedding: vector,
	}

	if err := c.collection.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	if err := c.persist(); err != nil {
		slog.Warn("Failed to persist after upsert", "error", err)
	}

	return nil
}

// Count returns the number of stored documents.
func (c *ChromemIndex) Count() int {
	return c.collection.Count()
}

// Ready always succeeds; the embedded index has no remote dependency.
func (c *ChromemIndex) Ready(ctx context.Context) error {
	return nil
}

// Name returns the provider name.
func (c *ChromemIndex) Name() string {
	return "chromem"
}

// Close persists the index if persistence is enabled.
func (c *ChromemIndex) Close() error {
	return c.persist()
}

func (c *ChromemIndex) persist() error {
	if c.persistPath == "" {
		return nil
	}
	path := snapshotPath(c.persistPath, c.compress)
	if err := c.db.ExportToFile(path, c.compress, ""); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}

func snapshotPath(dir string, compress bool) string {
	name := "vectors.gob"
	if compress {
		name += ".gz"
	}
	return filepath.Join(dir, name)
}

// Ensure ChromemIndex implements Index.
var _ Index = (*ChromemIndex)(nil)
