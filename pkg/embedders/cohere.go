package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// Cohere embed input types. Queries and documents land in the same
// vector space but get different prefixes server-side.
const (
	inputTypeQuery    = "search_query"
	inputTypeDocument = "search_document"
)

// CohereEmbedder implements Embedder on the Cohere embed API.
type CohereEmbedder struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	batchSize  int
	maxRetries int
}

// CohereEmbedRequest is the embed API payload.
type CohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model,omitempty"`
	InputType string   `json:"input_type,omitempty"`
	Truncate  string   `json:"truncate,omitempty"`
}

// CohereEmbedResponse is the embed API reply.
type CohereEmbedResponse struct {
	ID         string      `json:"id"`
	Texts      []string    `json:"texts"`
	Embeddings [][]float32 `json:"embeddings"`
	Meta       struct {
		APIVersion struct {
			Version string `json:"version"`
		} `json:"api_version"`
	} `json:"meta"`
}

// CohereEmbedError is the body the API sends on non-200s.
type CohereEmbedError struct {
	Message string `json:"message"`
}

func NewCohereEmbedderFromConfig(cohere *config.CohereConfig, cfg *config.EmbedderConfig) (*CohereEmbedder, error) {
	if cohere.APIKey == "" {
		return nil, fmt.Errorf("cohere embedder requires an api_key")
	}

	e := &CohereEmbedder{
		apiKey:     cohere.APIKey,
		baseURL:    cohere.BaseURL,
		model:      cohere.EmbedModel,
		dimension:  cfg.Dimension,
		batchSize:  cfg.BatchSize,
		maxRetries: cohere.MaxRetries,
	}
	if e.baseURL == "" {
		e.baseURL = "https://api.cohere.com"
	}
	if e.model == "" {
		e.model = "embed-multilingual-v3.0"
	}
	if e.dimension == 0 {
		e.dimension = 1024
	}
	if e.batchSize == 0 {
		e.batchSize = 64
	}
	if e.maxRetries == 0 {
		e.maxRetries = 3
	}

	timeout := cohere.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	e.client = &http.Client{Timeout: timeout}

	return e, nil
}

// EmbedQuery embeds a single query string.
func (e *CohereEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, inputTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("cohere returned no embedding")
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts in batches of the configured size.
func (e *CohereEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, e.batchSize) {
		part, err := e.embed(ctx, batch, inputTypeDocument)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, part...)
	}
	return vectors, nil
}

func (e *CohereEmbedder) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	payload, err := json.Marshal(CohereEmbedRequest{
		Texts:     texts,
		Model:     e.model,
		InputType: inputType,
		Truncate:  "END",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	body, err := e.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	var parsed CohereEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	return parsed.Embeddings, nil
}

// post sends the payload, retrying rate limits and server errors with
// a linear, context-aware backoff. Other 4xx responses fail fast.
func (e *CohereEmbedder) post(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embed", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create embed request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("cohere embed request failed: %w", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read embed response: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case retriableStatus(resp.StatusCode):
			lastErr = embedStatusError(resp.StatusCode, body)
		default:
			return nil, embedStatusError(resp.StatusCode, body)
		}
	}
	return nil, fmt.Errorf("cohere embed gave up after %d attempts: %w", e.maxRetries, lastErr)
}

// retriableStatus covers rate limits and server-side failures.
func retriableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func embedStatusError(status int, body []byte) error {
	var apiErr CohereEmbedError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("cohere embed: %s", apiErr.Message)
	}
	return fmt.Errorf("cohere embed returned HTTP %d: %s", status, body)
}

func (e *CohereEmbedder) GetDimension() int {
	return e.dimension
}

func (e *CohereEmbedder) GetModelName() string {
	return e.model
}

func (e *CohereEmbedder) Close() error {
	return nil
}
