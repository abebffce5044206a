package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicClient_Complete(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("anthropic-version header missing")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "reply text"},
			},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: server.URL,
	})

	history := []Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	got, err := client.Complete(context.Background(), "system prompt", history, "test")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "reply text" {
		t.Errorf("reply = %q, want %q", got, "reply text")
	}

	if captured.Model != "test-model" {
		t.Errorf("model = %q, want test-model", captured.Model)
	}
	if captured.System != "system prompt" {
		t.Errorf("system = %q", captured.System)
	}
	if len(captured.Messages) != 3 {
		t.Fatalf("messages = %d, want history + user message", len(captured.Messages))
	}
	last := captured.Messages[len(captured.Messages)-1]
	if last.Role != "user" || last.Content != "test" {
		t.Errorf("final message = %+v, want the new user turn", last)
	}
}

func TestAnthropicClient_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{APIKey: "k", Model: "m", BaseURL: server.URL})

	_, err := client.Complete(context.Background(), "", nil, "hi")
	if err == nil {
		t.Fatal("expected error for non-success status")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should carry the status, got %v", err)
	}
}

func TestHealthSystemPrompt_EmbedsData(t *testing.T) {
	prompt := HealthSystemPrompt(HealthContext{
		Sleep: []map[string]any{{"day": "2025-08-01", "score": 88}},
	})

	if !strings.Contains(prompt, "2025-08-01") {
		t.Error("prompt should embed the health data JSON")
	}
	if !strings.Contains(prompt, "vega-lite") {
		t.Error("prompt should instruct the model about chart fencing")
	}
}
