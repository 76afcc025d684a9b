package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/aliquot"
	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/registry"
	"github.com/aretw0/aliquot/pkg/runner"
	"github.com/aretw0/aliquot/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// SessionFactory builds a fresh robot session. The hooks must be installed
// on the session so its events reach the event stream.
type SessionFactory func(ctx context.Context, hooks domain.LifecycleHooks) (*runtime.Session, error)

// Server exposes robot sessions over HTTP.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager

	factory SessionFactory
	metrics http.Handler
	runner  []runner.Option
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithRunnerOptions configures the runner used for command batches.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(s *Server) {
		s.runner = append(s.runner, opts...)
	}
}

// NewServer creates a server over the given session manager.
func NewServer(sessions *session.Manager, factory SessionFactory, opts ...Option) *Server {
	s := &Server{
		Sessions: sessions,
		Streams:  NewStreamManager(),
		factory:  factory,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates the HTTP handler for a robot server.
func NewHandler(sessions *session.Manager, factory SessionFactory, opts ...Option) http.Handler {
	return NewServer(sessions, factory, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/commands", s.RunCommands)
			r.Post("/home", s.HomeSession)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSessionRequest optionally loads a protocol deck into the new session.
type CreateSessionRequest struct {
	Protocol *domain.Protocol `json:"protocol,omitempty"`
}

// SessionView is the public state of a session.
type SessionView struct {
	ID          string                      `json:"id"`
	Created     time.Time                   `json:"created"`
	Labware     []string                    `json:"labware"`
	Instruments []domain.InstrumentSnapshot `json:"instruments"`
	Modules     []string                    `json:"modules,omitempty"`
}

// CommandsRequest is a batch of commands to run in order.
type CommandsRequest struct {
	Commands []domain.CommandSpec `json:"commands"`
}

// CommandsResponse reports a batch run. Error is set when a step failed.
type CommandsResponse struct {
	Report *runner.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err))
		return
	}

	id := uuid.NewString()
	robot, err := s.factory(r.Context(), s.Streams.Hooks(id))
	if err != nil {
		s.fail(w, err)
		return
	}
	if body.Protocol != nil {
		if err := runner.Load(r.Context(), robot, body.Protocol); err != nil {
			s.fail(w, err)
			return
		}
	}
	entry, err := s.Sessions.Add(id, robot)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("session created", "session_id", id)
	writeJSON(w, http.StatusCreated, view(entry))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.Sessions.List()})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var out SessionView
	err := s.Sessions.WithLock(r.Context(), id, func(context.Context) error {
		entry, err := s.Sessions.Get(id)
		if err != nil {
			return err
		}
		out = view(entry)
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Remove(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	s.Streams.Close(id)
	s.logger.Info("session removed", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// RunCommands handles POST /sessions/{id}/commands.
func (s *Server) RunCommands(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body CommandsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err))
		return
	}
	for i, cmd := range body.Commands {
		if strings.TrimSpace(cmd.Command) == "" {
			s.fail(w, fmt.Errorf("%w: command %d has no name", domain.ErrInvalidArgument, i+1))
			return
		}
	}

	opts := append([]runner.Option{runner.WithLogger(s.logger.With("session_id", id))}, s.runner...)
	run := runner.NewRunner(opts...)

	var report *runner.Report
	err := s.Sessions.Do(r.Context(), id, func(ctx context.Context, robot *runtime.Session) error {
		var err error
		report, err = run.Execute(ctx, robot, body.Commands)
		return err
	})
	if err != nil {
		if report == nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, statusFor(err), CommandsResponse{Report: report, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, CommandsResponse{Report: report})
}

// HomeSession handles POST /sessions/{id}/home.
func (s *Server) HomeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.Sessions.Do(r.Context(), id, func(ctx context.Context, robot *runtime.Session) error {
		return robot.Home(ctx)
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "aliquot-http",
		"version": strings.TrimSpace(aliquot.Version),
	})
}

func view(e *session.Entry) SessionView {
	v := SessionView{
		ID:          e.ID,
		Created:     e.Created,
		Labware:     e.Session.LabwareIDs(),
		Instruments: []domain.InstrumentSnapshot{},
	}
	for _, inst := range e.Session.Instruments() {
		v.Instruments = append(v.Instruments, inst.Snapshot())
	}
	for _, m := range e.Session.Modules() {
		v.Modules = append(v.Modules, m.ID())
	}
	return v
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrLabwareNotFound),
		errors.Is(err, domain.ErrInstrumentNotFound),
		errors.Is(err, domain.ErrModuleNotFound),
		errors.Is(err, registry.ErrCommandNotFound),
		errors.Is(err, runner.ErrDenied):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoTipAttached),
		errors.Is(err, domain.ErrOutOfTips),
		errors.Is(err, domain.ErrTipUnavailable),
		errors.Is(err, domain.ErrTipReturn),
		errors.Is(err, domain.ErrUnresolvedLocation):
		return http.StatusConflict
	case errors.Is(err, domain.ErrHardwareFault):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	} else {
		s.logger.Warn("request rejected", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
