// Package backendtest provides a fake chat-completion service that speaks
// enough of the OpenAI wire format for the backend client.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Message is one role-tagged message received by the fake.
type Message struct {
	Role    string
	Content string
}

// Request is the decoded body of a chat completion request.
type Request struct {
	Model     string
	MaxTokens int64
	Messages  []Message
	APIKey    string
}

type reply struct {
	status  int
	content string
	message string
}

// Server is a fake upstream. The zero reply is a 200 completion with content "{}".
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	reply    reply
	requests []Request
	delay    time.Duration
}

// New starts a fake upstream that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{reply: reply{status: http.StatusOK, content: "{}"}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the base URL to configure the client with.
func (s *Server) URL() string { return s.srv.URL + "/v1/" }

// RespondWithContent makes subsequent completions carry content as the assistant message.
func (s *Server) RespondWithContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = reply{status: http.StatusOK, content: content}
}

// RespondWithError makes subsequent completions fail with an OpenAI style error body.
func (s *Server) RespondWithError(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = reply{status: status, message: message}
}

// Delay holds every response for d before answering.
func (s *Server) Delay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns how many completion requests were received.
func (s *Server) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// LastRequest returns the most recent completion request.
func (s *Server) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

type wireRequest struct {
	Model     string `json:"model"`
	MaxTokens int64  `json:"max_tokens"`
	Messages  []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

// content accepts both the plain string and the array-of-parts encodings.
func content(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(raw, &parts)
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}

	var in wireRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := Request{
		Model:     in.Model,
		MaxTokens: in.MaxTokens,
		APIKey:    strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
	}
	for _, m := range in.Messages {
		req.Messages = append(req.Messages, Message{Role: m.Role, Content: content(m.Content)})
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	rep := s.reply
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if rep.status != http.StatusOK {
		w.WriteHeader(rep.status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": rep.message,
				"type":    "invalid_request_error",
				"param":   nil,
				"code":    nil,
			},
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   in.Model,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"logprobs":      nil,
			"message": map[string]any{
				"role":    "assistant",
				"content": rep.content,
				"refusal": nil,
			},
		}},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 5,
			"total_tokens":      15,
		},
	})
}
