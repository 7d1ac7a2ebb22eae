package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"QueryMind/internal/llm"
	"QueryMind/internal/memory"
	"QueryMind/internal/pipeline"
	"QueryMind/internal/prompts"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, llm.ErrAPIKeyNotFound) {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestCallSuccess(t *testing.T) {
	var captured struct {
		Authorization string
		Body          map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Authorization = r.Header.Get("Authorization")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": "```python\nresult = 42\n```",
					},
				},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	mem := memory.New(memory.WithAgentDescription("QueryMind test assistant"))
	mem.AddUser("previous question")
	mem.AddAssistant("previous answer")

	got, err := client.Call(context.Background(), prompts.Text("how many rows?"), pipeline.New(mem))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "result = 42") {
		t.Fatalf("unexpected response: %q", got)
	}

	if !strings.HasPrefix(captured.Authorization, "Bearer ") {
		t.Fatalf("authorization header missing: %q", captured.Authorization)
	}

	messages, ok := captured.Body["messages"].([]any)
	if !ok || len(messages) != 4 {
		t.Fatalf("expected system + 2 history + instruction messages, got %v", captured.Body["messages"])
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Fatalf("expected leading system message, got %v", first)
	}
	last, _ := messages[len(messages)-1].(map[string]any)
	if last["role"] != "user" || last["content"] != "how many rows?" {
		t.Fatalf("unexpected trailing message: %v", last)
	}
}

func TestCallHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	ctx := pipeline.New(memory.New())
	if _, err := client.Call(context.Background(), prompts.Text("q"), ctx); err == nil {
		t.Fatalf("expected error when http status is not success")
	}
}
