package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"model": "vision-demo",
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": content},
				},
			},
			"usage": map[string]any{"prompt_tokens": 900, "completion_tokens": 40},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestCompleteSendsImageAndSystemPrompts(t *testing.T) {
	var captured map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, `{"commentary":"Curry pulls up from deep!"}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "gsk", BaseURL: server.URL, Model: "llama-vision", Temperature: 0, MaxTokens: 256})
	completion, err := client.Complete(context.Background(), Request{
		System:   []string{"You are a commentator.", "Read the scoreboard."},
		Text:     "What's happening?",
		ImageURL: "data:image/jpeg;base64,/9j/AA==",
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if completion.Content != `{"commentary":"Curry pulls up from deep!"}` {
		t.Fatalf("unexpected content %q", completion.Content)
	}
	if completion.Model != "vision-demo" || completion.Usage() != 940 {
		t.Fatalf("unexpected metadata %+v", completion)
	}
	if auth != "Bearer gsk" {
		t.Fatalf("unexpected auth header %q", auth)
	}

	messages, _ := captured["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("expected 2 system + 1 user message, got %d", len(messages))
	}
	user, _ := messages[2].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", user["content"])
	}
	image, _ := parts[1].(map[string]any)
	if image["type"] != "image_url" {
		t.Fatalf("expected image part, got %v", image)
	}
	if captured["max_tokens"] != float64(256) {
		t.Fatalf("expected max_tokens 256, got %v", captured["max_tokens"])
	}
	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", captured["response_format"])
	}
}

func TestCompleteOmitsAuthWithoutKey(t *testing.T) {
	var sawAuth atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		completionHandler(t, "ok")(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "llama3.2-vision:11b"})
	if _, err := client.Complete(context.Background(), Request{System: []string{"sys"}, Text: "hi"}); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if sawAuth.Load() {
		t.Fatal("expected no Authorization header for keyless vendors")
	}
}

func TestCompleteRequiresPrompts(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Complete(context.Background(), Request{Text: "hi"}); err == nil {
		t.Fatal("expected error without system prompt")
	}
	if _, err := client.Complete(context.Background(), Request{System: []string{"sys"}}); err == nil {
		t.Fatal("expected error without text or image")
	}
}

func TestCompleteRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		completionHandler(t, "second time lucky")(w, r)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	completion, err := client.Complete(context.Background(), Request{System: []string{"sys"}, Text: "hi"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if completion.Content != "second time lucky" {
		t.Fatalf("unexpected content %q", completion.Content)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected one Retry-After sleep of 2s, got %v", slept)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), Request{System: []string{"sys"}, Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "http 401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestCompleteRetriesEmptyContent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		completionHandler(t, "")(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL},
		WithRetryMaxAttempts(2), WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), Request{System: []string{"sys"}, Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "failed after 2 attempts") {
		t.Fatalf("expected exhausted retries, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "```json\n{\"ok\":true}\n```"))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestDecodeJSONExtractsObject(t *testing.T) {
	var payload struct {
		Commentary string `json:"commentary"`
	}
	content := "Sure! Here you go:\n{\"commentary\":\"LeBron with the block!\"}\nEnjoy."
	if err := DecodeJSON(content, &payload); err != nil {
		t.Fatalf("DecodeJSON returned error: %v", err)
	}
	if payload.Commentary != "LeBron with the block!" {
		t.Fatalf("unexpected commentary %q", payload.Commentary)
	}
	if err := DecodeJSON("no json here", &payload); err == nil {
		t.Fatal("expected error for prose-only payload")
	}
}

func TestBackoffDelayCaps(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	if got := client.backoffDelay(1); got != time.Second {
		t.Fatalf("attempt 1: got %s", got)
	}
	if got := client.backoffDelay(2); got != 2*time.Second {
		t.Fatalf("attempt 2: got %s", got)
	}
	if got := client.backoffDelay(5); got != 5*time.Second {
		t.Fatalf("attempt 5: got %s", got)
	}
}
