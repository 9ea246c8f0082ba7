package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avolkov/patclaim/internal/model"
)

func TestAnthropicAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("version header missing")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System == "" {
			t.Error("system prompt missing")
		}

		resp := anthropicResponse{ID: "msg_1", Type: "message", Model: req.Model}
		resp.Content = []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{
			{Type: "text", Text: "part one "},
			{Type: "text", Text: "part two"},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(model.LLMConfig{
		Provider: "anthropic",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}

	got, err := p.Analyze(context.Background(), "analyze these claims")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "part one part two" {
		t.Errorf("Analyze = %q", got)
	}
}

func TestAnthropicAnalyzeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		var apiErr anthropicError
		apiErr.Error.Type = "rate_limit_error"
		apiErr.Error.Message = "rate limited"
		_ = json.NewEncoder(w).Encode(apiErr)
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(model.LLMConfig{
		Provider: "anthropic",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}

	_, err = p.Analyze(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected an error from the failing API")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error does not surface the API message: %v", err)
	}
}
