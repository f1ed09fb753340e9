// Package server exposes an Agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smallnest/threadgraph/agent"
	"github.com/smallnest/threadgraph/checkpoint"
	"github.com/smallnest/threadgraph/graph"
	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/state"
)

// Agent is the subset of *agent.Agent the handlers use.
type Agent interface {
	Run(ctx context.Context, threadID, userText string, timeout time.Duration) (*agent.RunResult, error)
	History(ctx context.Context, threadID string) ([]state.Message, error)
	Clear(ctx context.Context, threadID string) error
	Threads(ctx context.Context) ([]string, error)
	Graph() *graph.Runnable[state.ConversationState]
}

var _ Agent = (*agent.Agent)(nil)

// MaxRunTimeout is the largest timeout_ms a client may request.
const MaxRunTimeout = time.Hour

// RunRequest is the body of POST /threads/{threadID}/messages.
type RunRequest struct {
	Content   string `json:"content"`
	TimeoutMS int64  `json:"timeout_ms,omitempty"`
}

// RunResponse is returned for a successful run.
type RunResponse struct {
	ThreadID     string          `json:"thread_id"`
	RunID        string          `json:"run_id"`
	Message      state.Message   `json:"message"`
	MessageCount int             `json:"message_count"`
	Appended     []state.Message `json:"appended"`
	Steps        int             `json:"steps"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Outcome string `json:"outcome,omitempty"`
}

type Server struct {
	agent   Agent
	metrics http.Handler
	logger  log.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHandler creates the HTTP handler for a.
func NewHandler(a Agent, opts ...Option) http.Handler {
	s := &Server{agent: a, logger: log.GetDefaultLogger()}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/threads", s.ListThreads)
	r.Route("/threads/{threadID}", func(r chi.Router) {
		r.Post("/messages", s.PostMessage)
		r.Get("/messages", s.GetMessages)
		r.Delete("/", s.DeleteThread)
	})
	r.Get("/graph", s.GetGraph)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

// PostMessage handles POST /threads/{threadID}/messages.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	threadID, ok := s.threadID(w, r)
	if !ok {
		return
	}

	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}
	if body.TimeoutMS < 0 {
		writeError(w, http.StatusBadRequest, "timeout_ms must not be negative", "")
		return
	}
	if body.TimeoutMS > MaxRunTimeout.Milliseconds() {
		writeError(w, http.StatusBadRequest, "timeout_ms must not exceed "+MaxRunTimeout.String(), "")
		return
	}

	res, err := s.agent.Run(r.Context(), threadID, body.Content, time.Duration(body.TimeoutMS)*time.Millisecond)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("run on thread %s failed: %v", threadID, err)
		}
		writeError(w, status, err.Error(), agent.Outcome(err))
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		ThreadID:     res.ThreadID,
		RunID:        res.RunID,
		Message:      res.Message,
		MessageCount: res.MessageCount,
		Appended:     res.Appended,
		Steps:        res.Steps,
	})
}

// GetMessages handles GET /threads/{threadID}/messages.
func (s *Server) GetMessages(w http.ResponseWriter, r *http.Request) {
	threadID, ok := s.threadID(w, r)
	if !ok {
		return
	}
	msgs, err := s.agent.History(r.Context(), threadID)
	if err != nil {
		s.logger.Error("history of thread %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "messages": msgs})
}

// DeleteThread handles DELETE /threads/{threadID}.
func (s *Server) DeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID, ok := s.threadID(w, r)
	if !ok {
		return
	}
	if err := s.agent.Clear(r.Context(), threadID); err != nil {
		s.logger.Error("clear thread %s: %v", threadID, err)
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListThreads handles GET /threads.
func (s *Server) ListThreads(w http.ResponseWriter, r *http.Request) {
	ids, err := s.agent.Threads(r.Context())
	if err != nil {
		s.logger.Error("list threads: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": ids})
}

// GetGraph handles GET /graph and returns the Mermaid diagram.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.agent.Graph().DrawMermaid()))
}

// threadID reads the path parameter; IDs containing "/" arrive escaped.
func (s *Server) threadID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "threadID"))
	if err != nil || id == "" {
		writeError(w, http.StatusBadRequest, "invalid thread id", "")
		return "", false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, agent.ErrRunTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, graph.ErrNotConverged):
		return http.StatusUnprocessableEntity
	case errors.Is(err, agent.ErrModelCall):
		return http.StatusBadGateway
	case errors.Is(err, checkpoint.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, outcome string) {
	writeJSON(w, status, errorResponse{Error: msg, Outcome: outcome})
}
