package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAITextClient_Complete(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}

			resp := map[string]any{
				"id":    "test-id",
				"model": "gpt-4o",
				"choices": []map[string]any{
					{
						"message":       map[string]any{"role": "assistant", "content": "Once upon a time"},
						"finish_reason": "stop",
					},
				},
				"usage": map[string]int{
					"prompt_tokens":     12,
					"completion_tokens": 4,
					"total_tokens":      16,
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenAITextClient(OpenAITextConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Complete(context.Background(), &TextRequest{Prompt: "tell a story"})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if result.Content != "Once upon a time" {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 16 {
			t.Errorf("TotalTokens = %d, want 16", result.TotalTokens)
		}
	})

	t.Run("system and vision parts sent", func(t *testing.T) {
		var got chatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(map[string]any{
				"model":   "gpt-4o",
				"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
			})
		}))
		defer server.Close()

		client := NewOpenAITextClient(OpenAITextConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), &TextRequest{
			System: "you are an art critic",
			Prompt: "describe the style",
			Images: [][]byte{{0xff, 0xd8, 0xff}},
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if len(got.Messages) != 2 {
			t.Fatalf("sent %d messages, want 2", len(got.Messages))
		}
		if got.Messages[0].Role != "system" {
			t.Errorf("first message role = %q, want system", got.Messages[0].Role)
		}
		parts, ok := got.Messages[1].Content.([]any)
		if !ok || len(parts) != 2 {
			t.Fatalf("user content = %#v, want 2 multipart entries", got.Messages[1].Content)
		}
	})

	t.Run("json schema sent inside named wrapper", func(t *testing.T) {
		var raw map[string]json.RawMessage
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&raw)
			json.NewEncoder(w).Encode(map[string]any{
				"model":   "gpt-4o",
				"choices": []map[string]any{{"message": map[string]any{"content": "{}"}}},
			})
		}))
		defer server.Close()

		schema := json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"}}}`)
		client := NewOpenAITextClient(OpenAITextConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), &TextRequest{Prompt: "hi", JSONSchema: schema})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}

		var rf struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name   string          `json:"name"`
				Schema json.RawMessage `json:"schema"`
				Strict bool            `json:"strict"`
			} `json:"json_schema"`
		}
		if err := json.Unmarshal(raw["response_format"], &rf); err != nil {
			t.Fatalf("response_format missing or malformed: %v", err)
		}
		if rf.Type != "json_schema" {
			t.Errorf("type = %q, want json_schema", rf.Type)
		}
		if rf.JSONSchema.Name == "" {
			t.Error("json_schema.name is empty; the API rejects unnamed schemas")
		}
		if !rf.JSONSchema.Strict {
			t.Error("json_schema.strict not set")
		}
		if string(rf.JSONSchema.Schema) != string(schema) {
			t.Errorf("schema = %s, want %s", rf.JSONSchema.Schema, schema)
		}
	})

	t.Run("server error is a retryable ProviderError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewOpenAITextClient(OpenAITextConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), &TextRequest{Prompt: "hi"})
		if err == nil {
			t.Fatal("expected error")
		}
		if !IsRetryable(err) {
			t.Errorf("expected retryable error, got %T: %v", err, err)
		}
	})

	t.Run("client error is not retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewOpenAITextClient(OpenAITextConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), &TextRequest{Prompt: "hi"})
		if err == nil {
			t.Fatal("expected error")
		}
		if IsRetryable(err) {
			t.Errorf("400 should not be retryable: %v", err)
		}
	})

	t.Run("empty choices is a ValidationError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"model": "gpt-4o", "choices": []any{}})
		}))
		defer server.Close()

		client := NewOpenAITextClient(OpenAITextConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), &TextRequest{Prompt: "hi"})
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %T: %v", err, err)
		}
	})
}
