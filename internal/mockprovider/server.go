// Package mockprovider implements an Ollama-compatible mock server for local
// development and integration tests. It answers the chat, generate, and tags
// endpoints with canned descriptions, records every call, and can be scripted
// to fail a number of requests first so retry and fallback paths can be
// exercised without a real model server.
package mockprovider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	Model  string
}

// Server implements a minimal Ollama-like API surface.
type Server struct {
	description string
	completion  string

	mu    sync.Mutex
	calls []Call

	// failures holds scripted responses served before any successful one.
	failures []failure
}

type failure struct {
	status  int
	message string
}

// New constructs a mock server with fixed reply texts.
func New(description, completion string) *Server {
	if description == "" {
		description = "a placeholder description from the mock provider"
	}
	if completion == "" {
		completion = "a placeholder completion from the mock provider"
	}
	return &Server{description: description, completion: completion}
}

// FailNext scripts the next n chat/generate requests to fail with the given
// HTTP status. Calls after the scripted failures succeed normally.
func (s *Server) FailNext(n, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures = append(s.failures, failure{status: status, message: message})
	}
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/tags", s.handleTags)
	return mux
}

func (s *Server) recordCall(r *http.Request, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Model: model})
}

// nextFailure pops one scripted failure, if any remain.
func (s *Server) nextFailure() (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return failure{}, false
	}
	f := s.failures[0]
	s.failures = s.failures[1:]
	return f, true
}

func (s *Server) serveScriptedFailure(w http.ResponseWriter) bool {
	f, ok := s.nextFailure()
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": f.message})
	return true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string   `json:"role"`
			Content string   `json:"content"`
			Images  []string `json:"images"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}
	s.recordCall(r, req.Model)

	if strings.TrimSpace(req.Model) == "" {
		http.Error(w, `{"error": "model is required"}`, http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 || len(req.Messages[0].Images) == 0 {
		http.Error(w, `{"error": "chat request carries no image"}`, http.StatusBadRequest)
		return
	}
	if s.serveScriptedFailure(w) {
		return
	}

	writeJSON(w, map[string]any{
		"model": req.Model,
		"message": map[string]string{
			"role":    "assistant",
			"content": s.description,
		},
		"done": true,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}
	s.recordCall(r, req.Model)

	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, `{"error": "prompt is required"}`, http.StatusBadRequest)
		return
	}
	if s.serveScriptedFailure(w) {
		return
	}

	writeJSON(w, map[string]any{
		"model":    req.Model,
		"response": s.completion,
		"done":     true,
	})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.recordCall(r, "")

	writeJSON(w, map[string]any{
		"models": []map[string]string{
			{"name": "llama3.2-vision"},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
