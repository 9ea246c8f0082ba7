package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avolkov/patclaim/internal/model"
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat APIs (including DashScope/Qwen and other compatible endpoints via
// BaseURL).
type OpenAIProvider struct {
	client *openai.Client
	config model.LLMConfig
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config model.LLMConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Analyze sends one batch prompt through the Chat Completions API.
func (p *OpenAIProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	model := p.config.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	maxTokens := p.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4000
	}

	timeout := p.config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3, // Lower temperature for focused, structured output
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("empty choice list")}
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("empty response")}
	}

	return content, nil
}
