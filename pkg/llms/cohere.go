package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/httpclient"
)

// CohereProvider implements Provider on the Cohere v2 chat API.
type CohereProvider struct {
	config     *config.CohereConfig
	httpClient *httpclient.Client
}

type CohereChatRequest struct {
	Model          string                `json:"model"`
	Messages       []CohereChatMessage   `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature,omitempty"`
	ResponseFormat *CohereResponseFormat `json:"response_format,omitempty"`
	Stream         bool                  `json:"stream"`
}

type CohereChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CohereResponseFormat struct {
	Type string `json:"type"`
}

type CohereChatResponse struct {
	ID           string `json:"id"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string             `json:"role"`
		Content []CohereContentOut `json:"content"`
	} `json:"message"`
	Usage CohereUsage `json:"usage"`
}

type CohereContentOut struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type CohereUsage struct {
	BilledUnits struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"billed_units"`
	Tokens struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"tokens"`
}

type CohereAPIError struct {
	Message string `json:"message"`
}

func NewCohereProvider(apiKey string, model string) *CohereProvider {
	cfg := &config.CohereConfig{
		APIKey:    apiKey,
		ChatModel: model,
	}
	cfg.SetDefaults()

	provider, _ := NewCohereProviderFromConfig(cfg)
	return provider
}

func NewCohereProviderFromConfig(cfg *config.CohereConfig) (*CohereProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere requires an api_key")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}

	return &CohereProvider{
		config: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: cfg.Timeout,
			}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(time.Second),
			httpclient.WithHeaderParser(httpclient.ParseCohereHeaders),
		),
	}, nil
}

func (p *CohereProvider) GetModelName() string {
	return p.config.ChatModel
}

func (p *CohereProvider) Close() error {
	return nil
}

func (p *CohereProvider) Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	request := p.buildRequest(req)

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	var text string
	for _, content := range response.Message.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	return &ChatResponse{
		Text:         text,
		InputTokens:  response.Usage.Tokens.InputTokens,
		OutputTokens: response.Usage.Tokens.OutputTokens,
		FinishReason: response.FinishReason,
	}, nil
}

func (p *CohereProvider) buildRequest(req ChatRequest) CohereChatRequest {
	messages := make([]CohereChatMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		messages = append(messages, CohereChatMessage{
			Role:    "system",
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		messages = append(messages, CohereChatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	request := CohereChatRequest{
		Model:       p.config.ChatModel,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Stream:      false,
	}

	if req.MaxTokens > 0 {
		request.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		request.Temperature = req.Temperature
	}
	if req.ForceJSON {
		request.ResponseFormat = &CohereResponseFormat{Type: "json_object"}
	}

	return request
}

func (p *CohereProvider) makeRequest(ctx context.Context, request CohereChatRequest) (*CohereChatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+"/v2/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var apiErr CohereAPIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("cohere API error (status %d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response CohereChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
