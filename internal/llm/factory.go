package llm

import (
	"fmt"
	"strings"

	"github.com/avolkov/patclaim/internal/model"
)

// NewProvider creates a reasoning provider from configuration.
func NewProvider(config model.LLMConfig) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai", "qwen", "dashscope":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}
