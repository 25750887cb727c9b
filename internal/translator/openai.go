package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
)

// OpenAIConfig configures any OpenAI-compatible chat endpoint, such as a
// self-hosted Qwen2.5-7B-Instruct behind vLLM.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAIBackend calls an OpenAI-compatible endpoint through eino
type OpenAIBackend struct {
	chatModel *openai.ChatModel
	model     string
}

// NewOpenAIBackend creates the eino chat model
func NewOpenAIBackend(ctx context.Context, cfg OpenAIConfig) (*OpenAIBackend, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// local servers accept any key
		apiKey = "EMPTY"
	}

	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	chatModelConfig := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      apiKey,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &OpenAIBackend{chatModel: chatModel, model: cfg.Model}, nil
}

func (o *OpenAIBackend) Name() string { return "openai" }

// Complete sends a system and a user message and returns the reply text
func (o *OpenAIBackend) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%s: empty response", o.model)
	}
	return resp.Content, nil
}

func (o *OpenAIBackend) Close() error { return nil }
