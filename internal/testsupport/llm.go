package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// LLMServer fakes an OpenAI-compatible vendor: chat completions reply with
// scripted content and embeddings return a fixed vector.
type LLMServer struct {
	*httptest.Server

	mu        sync.Mutex
	replies   []string
	chatCalls int
	embedText []string
	Vector    []float32
}

// NewLLMServer starts a fake vendor that answers chat completions with
// replies in order, repeating the last one once exhausted.
func NewLLMServer(t testing.TB, replies ...string) *LLMServer {
	t.Helper()

	s := &LLMServer{replies: replies, Vector: []float32{0.6, 0.8, 0}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// ChatURL is the full endpoint for clients that post to a fixed URL.
func (s *LLMServer) ChatURL() string {
	return s.URL + "/chat/completions"
}

// ChatCalls reports how many completions were served.
func (s *LLMServer) ChatCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatCalls
}

// EmbeddedTexts returns every input sent to the embeddings endpoint.
func (s *LLMServer) EmbeddedTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.embedText...)
}

func (s *LLMServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		s.mu.Lock()
		s.chatCalls++
		content := `{"commentary":"What a play!","homeScore":0,"awayScore":0}`
		if len(s.replies) > 0 {
			content = s.replies[0]
			if len(s.replies) > 1 {
				s.replies = s.replies[1:]
			}
		}
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1466380800,
			"model":   "vision-test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
		})
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		var body struct {
			Input string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.embedText = append(s.embedText, body.Input)
		vector := s.Vector
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-ada-002",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vector}},
			"usage":  map[string]any{"prompt_tokens": 5, "total_tokens": 5},
		})
	default:
		http.NotFound(w, r)
	}
}
