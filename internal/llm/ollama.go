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

// OllamaProvider implements the Provider interface for Ollama local models
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     model.LLMConfig
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config model.LLMConfig) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second // Local models can be slow
	}

	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks if Ollama is running and reachable
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Analyze sends one batch prompt through the generate API.
func (p *OllamaProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	model := p.config.Model
	if model == "" {
		model = "llama3.1"
	}

	reqBody := ollamaRequest{
		Model:  model,
		Prompt: prompt,
		System: SystemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: 0.3,
			NumPredict:  p.config.MaxTokens,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error)}
		}
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("API error (%d)", resp.StatusCode)}
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	content := strings.TrimSpace(apiResp.Response)
	if content == "" {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("empty response")}
	}

	return content, nil
}
