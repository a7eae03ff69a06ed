// Package server exposes one agent over HTTP: the message endpoint with
// optional SSE streaming, task queries, the agent card, and health.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/parley-agents/parley/internal/directory"
	"github.com/parley-agents/parley/internal/negotiation"
	"github.com/parley-agents/parley/internal/relay"
	"github.com/parley-agents/parley/pkg/api"
)

// Options carries everything the server needs; all fields are required
// except Version and Logger.
type Options struct {
	AgentName   string
	DisplayName string
	Description string
	BaseURL     string
	Version     string
	Driver      *negotiation.Driver
	Relay       *relay.Relay
	Directory   *directory.Directory
	Logger      *slog.Logger
}

type Server struct {
	opts   Options
	logger *slog.Logger
	router *mux.Router
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		opts:   opts,
		logger: opts.Logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/messages", s.handleMessage).Methods(http.MethodPost)
	s.router.HandleFunc("/tasks/{id}", s.handleGetTask).Methods(http.MethodGet)
	s.router.HandleFunc("/tasks/{id}/cancel", s.handleCancelTask).Methods(http.MethodPost)
	s.router.HandleFunc("/.well-known/agent.json", s.handleAgentCard).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("agent listening", "agent", s.opts.AgentName, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req api.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	sender := req.Sender
	if sender == "" {
		sender = "user"
	}

	ctx := r.Context()
	task, err := s.opts.Relay.StartTask(ctx, req.Message, sender)
	if err != nil {
		s.logger.Error("failed to start task", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start task")
		return
	}

	// The run outlives the request context when the client disconnects
	// mid-stream; the task still runs to a terminal state.
	run := s.opts.Driver.Start(context.WithoutCancel(ctx), req.Message, sender)

	if wantsStream(r) {
		s.streamTask(w, r, task, run)
		return
	}

	s.opts.Relay.Track(context.WithoutCancel(ctx), task, run)

	status := http.StatusOK
	if task.State == api.TaskStateFailed {
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, task)
}

func wantsStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// streamTask writes the task's status updates as server-sent events until
// the terminal update goes out.
func (s *Server) streamTask(w http.ResponseWriter, r *http.Request, task *api.Task, run *negotiation.Run) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, unsubscribe := s.opts.Relay.Subscribe(task.TaskID)
	defer unsubscribe()

	go s.opts.Relay.Track(context.WithoutCancel(r.Context()), task, run)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case update, open := <-sub:
			if !open {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.logger.Error("failed to marshal update", "error", err)
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				s.logger.Warn("client disconnected mid-stream", "task_id", task.TaskID)
				return
			}
			flusher.Flush()
			if update.Final {
				return
			}
		case <-r.Context().Done():
			s.logger.Warn("client disconnected mid-stream", "task_id", task.TaskID)
			return
		}
	}
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	task, err := s.opts.Relay.GetTask(r.Context(), taskID)
	if err == relay.ErrTaskNotFound {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load task", "task_id", taskID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	// Negotiations are short-lived and cancellation would leave the peer
	// mid-conversation, so the operation is rejected outright.
	s.writeError(w, http.StatusNotImplemented, "task cancellation is not supported")
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	card := api.AgentCard{
		Name:        s.opts.AgentName,
		Description: s.opts.Description,
		URL:         s.opts.BaseURL,
		Version:     s.opts.Version,
		Capabilities: api.AgentCapabilities{
			Streaming: true,
		},
		Skills: []api.AgentSkill{
			{
				ID:          "scheduling",
				Name:        "Meeting scheduling",
				Description: "Checks availability, proposes times, and books meetings on " + s.displayName() + "'s calendar.",
				Tags:        []string{"calendar", "scheduling"},
				Examples:    []string{"Are you free Tuesday at 10:00?", "Set up a 30 minute sync this week."},
			},
		},
	}
	if s.opts.Directory.Len() > 0 {
		card.Skills = append(card.Skills, api.AgentSkill{
			ID:          "negotiation",
			Name:        "Meeting negotiation",
			Description: "Contacts other people's agents to find a time that works for everyone.",
			Tags:        []string{"negotiation", "multi-agent"},
		})
	}
	s.writeJSON(w, http.StatusOK, card)
}

func (s *Server) displayName() string {
	if s.opts.DisplayName != "" {
		return s.opts.DisplayName
	}
	return s.opts.AgentName
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": s.opts.AgentName})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: msg})
}
