package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/patclaim/internal/model"
)

// AnthropicProvider implements the Provider interface for Anthropic models
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     model.LLMConfig
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config model.LLMConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &AnthropicProvider{
		apiKey:  config.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is properly configured
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	req := anthropicRequest{
		Model:     "claude-3-5-haiku-20241022",
		MaxTokens: 10,
		Messages: []anthropicMessage{
			{Role: "user", Content: "Hi"},
		},
	}
	_, err := p.makeRequest(ctx, req)
	return err == nil
}

// Analyze sends one batch prompt through the Messages API.
func (p *AnthropicProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	model := p.config.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	maxTokens := p.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4000
	}

	req := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      SystemPrompt,
		Temperature: 0.3,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	resp, err := p.makeRequest(ctx, req)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: err}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	content := strings.TrimSpace(text.String())
	if content == "" {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("empty response")}
	}

	return content, nil
}

func (p *AnthropicProvider) makeRequest(ctx context.Context, reqBody anthropicRequest) (*anthropicResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &apiResp, nil
}
