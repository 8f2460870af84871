package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/databases"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/embedders"
)

// seedDocument is one line of the seed file. The metadata keys written
// to the index mirror the production ingestion layout so retrieval
// reads seeded documents the same way it reads real ones.
type seedDocument struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Text         string   `json:"text"`
	SectionTitle string   `json:"section_title,omitempty"`
	URL          string   `json:"url,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// SeedCmd embeds a JSONL document file and upserts it into the
// embedded chromem index, giving local retrieval content without a
// Pinecone account.
type SeedCmd struct {
	File      string `arg:"" type:"existingfile" help:"JSONL file with one document per line."`
	BatchSize int    `name:"batch-size" default:"64" help:"Documents embedded per API call."`
}

func (c *SeedCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	if cfg.Index.Provider != "chromem" {
		return fmt.Errorf("seed writes to the embedded chromem index; set index.provider to chromem (got %q)", cfg.Index.Provider)
	}

	docs, err := readSeedFile(c.File)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found in %s", c.File)
	}

	embedder, err := embedders.NewQueryEmbedderFromConfig(&cfg.Models.Cohere, &cfg.Embedder)
	if err != nil {
		return fmt.Errorf("failed to build embedder: %w", err)
	}
	defer embedder.Close()

	index, err := databases.NewChromemIndexFromConfig(cfg.Index.Chromem)
	if err != nil {
		return fmt.Errorf("failed to open chromem index: %w", err)
	}
	defer index.Close()

	total := 0
	for start := 0; start < len(docs); start += c.BatchSize {
		end := min(start+c.BatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Text
		}

		vectors, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at document %d: %w", start+1, err)
		}

		for i, doc := range batch {
			if err := index.Upsert(ctx, doc.ID, vectors[i], doc.metadata()); err != nil {
				return fmt.Errorf("failed to upsert document %q: %w", doc.ID, err)
			}
			total++
		}
	}

	fmt.Printf("Seeded %d documents into collection %q\n", total, cfg.Index.Chromem.Collection)
	return nil
}

func (d *seedDocument) metadata() map[string]interface{} {
	metadata := map[string]interface{}{
		"title":      d.Title,
		"chunk_text": d.Text,
	}
	if d.SectionTitle != "" {
		metadata["section_title"] = d.SectionTitle
	}
	if d.URL != "" {
		metadata["url"] = d.URL
	}
	if len(d.Keywords) > 0 {
		metadata["doc_keywords"] = strings.Join(d.Keywords, ", ")
	}
	return metadata
}

func readSeedFile(path string) ([]seedDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	var docs []seedDocument
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var doc seedDocument
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("line %d: invalid document: %w", lineNo, err)
		}
		if strings.TrimSpace(doc.Text) == "" {
			return nil, fmt.Errorf("line %d: document has no text", lineNo)
		}
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("doc-%d", lineNo)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return docs, nil
}
