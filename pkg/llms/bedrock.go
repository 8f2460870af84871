package llms

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
)

// ConverseAPI is the subset of the Bedrock runtime client used by the
// provider. It matches *bedrockruntime.Client so tests can substitute
// a fake.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// NovaProvider implements Provider on Amazon Nova via the Bedrock
// Converse API. Credentials come from the standard AWS chain.
type NovaProvider struct {
	config  *config.BedrockConfig
	runtime ConverseAPI
}

// NewNovaProvider wraps an existing runtime client. Used by tests and
// callers that manage their own AWS configuration.
func NewNovaProvider(runtime ConverseAPI, cfg *config.BedrockConfig) *NovaProvider {
	return &NovaProvider{config: cfg, runtime: runtime}
}

func NewNovaProviderFromConfig(ctx context.Context, cfg *config.BedrockConfig) (*NovaProvider, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("model ID is required for Bedrock")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &NovaProvider{
		config:  cfg,
		runtime: bedrockruntime.NewFromConfig(awsCfg),
	}, nil
}

func (p *NovaProvider) GetModelName() string {
	return p.config.ModelID
}

func (p *NovaProvider) Close() error {
	return nil
}

func (p *NovaProvider) Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	input, err := p.buildInput(req)
	if err != nil {
		return nil, err
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	output, err := p.runtime.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	return translateConverseOutput(output)
}

func (p *NovaProvider) buildInput(req ChatRequest) (*bedrockruntime.ConverseInput, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Content == "" {
			continue
		}
		role := brtypes.ConversationRoleUser
		if msg.Role == "assistant" {
			role = brtypes.ConversationRoleAssistant
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: msg.Content}},
		})
	}
	if len(messages) == 0 {
		return nil, errors.New("bedrock: at least one non-empty message is required")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(p.config.ModelID),
		Messages: messages,
	}

	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.System},
		}
	}

	if cfg := p.inferenceConfig(req.MaxTokens, req.Temperature); cfg != nil {
		input.InferenceConfig = cfg
	}

	return input, nil
}

func (p *NovaProvider) inferenceConfig(maxTokens int, temp float64) *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration
	tokens := maxTokens
	if tokens <= 0 {
		tokens = p.config.MaxTokens
	}
	if tokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(tokens))
	}
	temperature := temp
	if temperature <= 0 {
		temperature = p.config.Temperature
	}
	if temperature > 0 {
		cfg.Temperature = aws.Float32(float32(temperature))
	}
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}
	return &cfg
}

func translateConverseOutput(output *bedrockruntime.ConverseOutput) (*ChatResponse, error) {
	if output == nil {
		return nil, errors.New("bedrock: response is nil")
	}

	resp := &ChatResponse{FinishReason: string(output.StopReason)}

	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("bedrock: response has no message output")
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			resp.Text += text.Value
		}
	}

	if usage := output.Usage; usage != nil {
		resp.InputTokens = int(int32Value(usage.InputTokens))
		resp.OutputTokens = int(int32Value(usage.OutputTokens))
	}

	return resp, nil
}

func int32Value(ptr *int32) int32 {
	if ptr == nil {
		return 0
	}
	return *ptr
}
