package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avolkov/patclaim/internal/model"
)

func TestOllamaAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("streaming should be disabled")
		}
		if req.System == "" {
			t.Error("system prompt missing")
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:    req.Model,
			Response: `{"rules": [{"wild_type": "SEQ_ID_NO_1", "rule": "identical"}]}`,
			Done:     true,
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(model.LLMConfig{Provider: "ollama", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllamaProvider: %v", err)
	}

	got, err := p.Analyze(context.Background(), "analyze these claims")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got == "" {
		t.Error("empty response text")
	}
}

func TestOllamaAnalyzeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ollamaError{Error: "model not found"})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(model.LLMConfig{Provider: "ollama", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllamaProvider: %v", err)
	}

	if _, err := p.Analyze(context.Background(), "prompt"); err == nil {
		t.Fatal("expected an error from the failing API")
	}
}

func TestOllamaIsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(model.LLMConfig{Provider: "ollama", BaseURL: server.URL})
	if !p.IsAvailable(context.Background()) {
		t.Error("provider should be available")
	}

	server.Close()
	if p.IsAvailable(context.Background()) {
		t.Error("provider should be unavailable after the server stops")
	}
}
