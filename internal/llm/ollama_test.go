package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glossalab/lobench/internal/config"
)

func TestOllamaInvoke(t *testing.T) {
	t.Parallel()

	var gotReq ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    gotReq.Model,
			Response: "the answer is B",
			Done:     true,
		})
	}))
	defer srv.Close()

	inv := NewOllamaInvoker(srv.URL, WithOllamaOptions(Options{
		Temperature: 0,
		TopP:        0.9,
		NumCtx:      2048,
		Seed:        7,
	}))

	got, err := inv.Invoke(context.Background(), "llama3:8b", "solve this")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "the answer is B" {
		t.Fatalf("response = %q", got)
	}

	if gotReq.Model != "llama3:8b" || gotReq.Prompt != "solve this" || gotReq.Stream {
		t.Fatalf("request = %+v", gotReq)
	}
	if gotReq.Options["top_p"] != 0.9 || gotReq.Options["num_ctx"] != float64(2048) {
		t.Fatalf("options = %+v", gotReq.Options)
	}
}

func TestOllamaInvokeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	inv := NewOllamaInvoker(srv.URL)
	_, err := inv.Invoke(context.Background(), "nope", "x")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error = %v", err)
	}
}

func TestOllamaInvokeAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Error: "out of memory"})
	}))
	defer srv.Close()

	inv := NewOllamaInvoker(srv.URL)
	_, err := inv.Invoke(context.Background(), "llama3", "x")
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("error = %v", err)
	}
}

func TestOllamaInvokeEmptyModel(t *testing.T) {
	t.Parallel()

	inv := NewOllamaInvoker("")
	if _, err := inv.Invoke(context.Background(), "  ", "x"); err == nil {
		t.Fatalf("expected error for empty model")
	}
}

func TestOllamaBaseURLTrimmed(t *testing.T) {
	t.Parallel()

	inv := NewOllamaInvoker("http://host:11434/")
	if inv.baseURL != "http://host:11434" {
		t.Fatalf("baseURL = %q", inv.baseURL)
	}
	if def := NewOllamaInvoker(""); def.baseURL != defaultOllamaBaseURL {
		t.Fatalf("default baseURL = %q", def.baseURL)
	}
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	inv, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, ok := inv.(*OllamaInvoker); !ok {
		t.Fatalf("got %T, want *OllamaInvoker", inv)
	}

	cfg.LLM.Provider = "claude"
	cfg.LLM.Providers["claude"] = config.ProviderConfig{APIKey: "sk-test"}
	inv, err = FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig claude: %v", err)
	}
	if _, ok := inv.(*ClaudeInvoker); !ok {
		t.Fatalf("got %T, want *ClaudeInvoker", inv)
	}

	cfg.LLM.Provider = "openai"
	inv, err = FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig openai: %v", err)
	}
	if _, ok := inv.(*OpenAIInvoker); !ok {
		t.Fatalf("got %T, want *OpenAIInvoker", inv)
	}

	cfg.LLM.Provider = "bard"
	if _, err := FromConfig(cfg); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
