package llm

import (
	"context"
	"fmt"
)

// SystemPrompt frames every analysis call. The provider is treated as an
// opaque text-in/text-out service; this is the only instruction it gets
// beyond the per-batch prompt.
const SystemPrompt = `You are a patent analysis expert specializing in biological sequence protection rules.

Your task is to analyze patent claims and extract the concrete protection rules they establish:
1. Identify the wild-type reference sequence each rule anchors to.
2. Classify the protection scope (identical / identity_threshold / conditional).
3. Express mutation patterns in standard notation (e.g. Y178A) and combine them
   with the logical operators &, |, ! and parentheses.
4. Express sequence identity constraints as "seq_identity >= X%".

Always answer with a JSON document; keep the structure clean and the content precise.`

// Provider is the external reasoning capability. It offers no guarantee of
// latency, determinism, or well-formed output.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Analyze sends one prompt and returns the raw response text.
	Analyze(ctx context.Context, prompt string) (string, error)

	// IsAvailable checks if the provider is properly configured and reachable
	IsAvailable(ctx context.Context) bool
}

// CallError wraps a failed or timed-out provider call.
type CallError struct {
	Provider string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
