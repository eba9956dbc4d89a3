// Package stub is an in-process platform for tests and local development.
// It implements the pipeline REST API against in-memory state, with a
// configurable execution outcome and latency.
package stub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/auth"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/pipeline"
)

// Options tune the stub's behaviour.
type Options struct {
	// Outcome is the terminal status every execution reaches.
	// Default: succeeded.
	Outcome pipeline.Status

	// Latency is how long an execution stays running before turning
	// terminal. Default: 0 (immediately terminal).
	Latency time.Duration

	// Token, when set, is the only accepted bearer token.
	Token string

	// Validator, when set, validates bearer tokens as JWTs instead of
	// comparing against Token.
	Validator *auth.JWTValidator

	// Output overrides the execution output document. Default: a small
	// document echoing the pipeline and input.
	Output map[string]any

	// Logs overrides the execution log text.
	Logs string
}

// Server is the stub platform.
type Server struct {
	opts   Options
	router chi.Router

	mu         sync.RWMutex
	pipelines  map[string]*pipeline.Pipeline
	executions map[string]*execution
}

type execution struct {
	pipeline.Execution
	terminalAt time.Time
	outcome    pipeline.Status
}

// NewServer creates a stub platform with the given options.
func NewServer(opts Options) *Server {
	if opts.Outcome == "" {
		opts.Outcome = pipeline.StatusSucceeded
	}

	s := &Server{
		opts:       opts,
		pipelines:  make(map[string]*pipeline.Pipeline),
		executions: make(map[string]*execution),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.authMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/pipelines", func(r chi.Router) {
			r.Get("/", s.listPipelines)
			r.Post("/", s.createPipeline)
			r.Route("/{pipelineID}", func(r chi.Router) {
				r.Get("/", s.getPipeline)
				r.Delete("/", s.deletePipeline)
				r.Post("/run", s.runPipeline)
			})
		})
		r.Route("/executions/{executionID}", func(r chi.Router) {
			r.Get("/", s.getExecution)
			r.Get("/logs", s.getExecutionLogs)
		})
	})

	s.router = r
	return s
}

// Handler returns the stub's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// PipelineCount reports how many pipelines currently exist.
func (s *Server) PipelineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pipelines)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token == "" && s.opts.Validator == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := auth.BearerToken(r)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		if s.opts.Validator != nil {
			claims, err := s.opts.Validator.ValidateToken(r.Context(), token)
			if err != nil {
				s.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			r = r.WithContext(auth.ContextWithClaims(r.Context(), claims))
		} else if token != s.opts.Token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) createPipeline(w http.ResponseWriter, r *http.Request) {
	var p pipeline.Pipeline
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid pipeline body")
		return
	}
	if p.Name == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "validation_error", "pipeline name is required")
		return
	}

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.mu.Lock()
	s.pipelines[p.ID] = &p
	s.mu.Unlock()

	slog.Debug("Stub created pipeline", "pipeline", p.ID, "name", p.Name)
	s.writeJSON(w, http.StatusCreated, &p)
}

func (s *Server) listPipelines(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	pipelines := make([]*pipeline.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		pipelines = append(pipelines, p)
	}
	s.mu.RUnlock()

	sort.Slice(pipelines, func(i, j int) bool {
		return pipelines[i].CreatedAt.Before(pipelines[j].CreatedAt)
	})

	s.writeJSON(w, http.StatusOK, map[string]any{"pipelines": pipelines})
}

func (s *Server) getPipeline(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	p, ok := s.pipelines[chi.URLParam(r, "pipelineID")]
	s.mu.RUnlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "pipeline not found")
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "pipelineID")

	s.mu.Lock()
	_, ok := s.pipelines[id]
	delete(s.pipelines, id)
	for execID, exec := range s.executions {
		if exec.PipelineID == id {
			delete(s.executions, execID)
		}
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "pipeline not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "pipelineID")

	var body struct {
		Input map[string]any `json:"input"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipelines[id]
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "pipeline not found")
		return
	}

	now := time.Now().UTC()
	exec := &execution{
		Execution: pipeline.Execution{
			ID:         uuid.NewString(),
			PipelineID: p.ID,
			Status:     pipeline.StatusRunning,
			Input:      body.Input,
			StartedAt:  now,
		},
		terminalAt: now.Add(s.opts.Latency),
		outcome:    s.opts.Outcome,
	}
	s.executions[exec.ID] = exec

	slog.Debug("Stub started execution", "execution", exec.ID, "pipeline", p.ID)
	s.writeJSON(w, http.StatusAccepted, map[string]any{"execution_id": exec.ID})
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	exec, ok := s.executions[chi.URLParam(r, "executionID")]
	if ok {
		s.advance(exec)
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "execution not found")
		return
	}
	s.writeJSON(w, http.StatusOK, &exec.Execution)
}

func (s *Server) getExecutionLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	exec, ok := s.executions[chi.URLParam(r, "executionID")]
	var logs string
	if ok {
		s.advance(exec)
		logs = s.logsFor(exec)
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "execution not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// advance flips a running execution to its configured outcome once its
// latency has elapsed. Callers hold the write lock.
func (s *Server) advance(exec *execution) {
	if exec.Status.IsTerminal() || time.Now().Before(exec.terminalAt) {
		return
	}

	exec.Status = exec.outcome
	exec.FinishedAt = exec.terminalAt

	if exec.outcome == pipeline.StatusSucceeded {
		exec.Output = s.outputFor(exec)
	} else {
		exec.Error = fmt.Sprintf("execution %s", exec.outcome)
	}
}

func (s *Server) outputFor(exec *execution) map[string]any {
	if s.opts.Output != nil {
		return s.opts.Output
	}

	p := s.pipelines[exec.PipelineID]
	name := ""
	if p != nil {
		name = p.Name
	}
	return map[string]any{
		"status":   "ok",
		"pipeline": name,
		"input":    exec.Input,
		"result": map[string]any{
			"steps_completed": stepCount(p),
		},
	}
}

func (s *Server) logsFor(exec *execution) string {
	if s.opts.Logs != "" {
		return s.opts.Logs
	}

	var b strings.Builder
	fmt.Fprintf(&b, "execution %s started\n", exec.ID)
	fmt.Fprintf(&b, "pipeline %s running\n", exec.PipelineID)
	if exec.Status.IsTerminal() {
		fmt.Fprintf(&b, "execution %s finished: %s\n", exec.ID, exec.Status)
	}
	return b.String()
}

func stepCount(p *pipeline.Pipeline) int {
	if p == nil {
		return 0
	}
	if steps, ok := p.Definition["steps"].([]any); ok {
		return len(steps)
	}
	return 0
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}
