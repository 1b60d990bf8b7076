// Package http exposes a Workspace over a JSON API with a Server-Sent Events stream.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/history"
	"github.com/aretw0/strata/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves one Workspace. Every call into the workspace holds mu, since the
// workspace itself is single-threaded.
type Server struct {
	mu       sync.Mutex
	ws       *strata.Workspace
	sessions *session.Manager
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	Streams *StreamManager
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer exposes the gathered metrics on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithSessions sets the manager used for checkpoint routes.
// By default one is built over the workspace's checkpoint store, if it has one.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// NewServer creates a Server and subscribes its event stream to the workspace.
func NewServer(ws *strata.Workspace, opts ...Option) *Server {
	s := &Server{
		ws:     ws,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil && ws.Checkpoints() != nil {
		s.sessions = session.NewManager(ws.Checkpoints(), session.WithLogger(s.logger))
	}
	s.Streams = NewStreamManager(s.logger)
	ws.Subscribe(s.Streams)
	return s
}

// NewHandler creates a new HTTP handler for the workspace.
func NewHandler(ws *strata.Workspace, opts ...Option) http.Handler {
	return NewServer(ws, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Get("/state", s.GetState)
	r.Get("/state/{slice}", s.GetSlice)
	r.Get("/schema", s.GetSchema)

	r.Get("/history", s.GetHistory)
	r.Delete("/history", s.ClearHistory)
	r.Put("/history/settings", s.Configure)
	r.Post("/undo", s.Undo)
	r.Post("/redo", s.Redo)

	r.Get("/commands", s.ListCommands)
	r.Post("/commands/{name}", s.Execute)

	r.Route("/checkpoints", func(r chi.Router) {
		r.Get("/", s.ListCheckpoints)
		r.Get("/{id}", s.GetCheckpoint)
		r.Post("/{id}", s.SaveCheckpoint)
		r.Delete("/{id}", s.DeleteCheckpoint)
		r.Post("/{id}/restore", s.RestoreCheckpoint)
	})

	r.Get("/events", s.SubscribeEvents)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Version uint64      `json:"version"`
	State   domain.Tree `json:"state"`
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Pointer        int                `json:"pointer"`
	Length         int                `json:"length"`
	CanUndo        bool               `json:"can_undo"`
	CanRedo        bool               `json:"can_redo"`
	Capacity       int                `json:"capacity"`
	CoalesceWindow string             `json:"coalesce_window"`
	Entries        []domain.EntryInfo `json:"entries"`
}

// ResultResponse is the body of execute, undo and redo.
type ResultResponse struct {
	Result  any    `json:"result,omitempty"`
	Version uint64 `json:"version"`
	Pointer int    `json:"pointer"`
	Length  int    `json:"length"`
}

// ExecuteRequest is the body of POST /commands/{name}.
type ExecuteRequest struct {
	Payload        any            `json:"payload"`
	Label          string         `json:"label,omitempty"`
	Coalesce       *bool          `json:"coalesce,omitempty"`
	CoalesceKey    string         `json:"coalesce_key,omitempty"`
	CoalesceWindow string         `json:"coalesce_window,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
}

// SettingsRequest is the body of PUT /history/settings.
type SettingsRequest struct {
	Capacity       *int    `json:"capacity,omitempty"`
	CoalesceWindow *string `json:"coalesce_window,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":       "strata-http",
		"version":   strings.TrimSpace(strata.Version),
		"workspace": s.ws.Name,
	})
}

// GetState handles the GET /state request.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StateResponse{Version: s.ws.Store().Version(), State: s.ws.Store().GetSnapshot()}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, resp)
}

// GetSlice handles the GET /state/{slice} request.
func (s *Server) GetSlice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "slice")

	s.mu.Lock()
	v, ok := s.ws.State().Slice(name)
	v = domain.Clone(v)
	s.mu.Unlock()

	if !ok {
		s.writeError(w, &domain.LookupError{Kind: domain.LookupSlice, Name: name})
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// GetSchema handles the GET /schema request: declared slice types by name.
func (s *Server) GetSchema(w http.ResponseWriter, r *http.Request) {
	sch := s.ws.Schema()
	if sch == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	s.writeJSON(w, http.StatusOK, sch)
}

// GetHistory handles the GET /history request.
// With ?format=mermaid the history is returned as a Mermaid flowchart.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.ws.History()
	settings := h.Settings()
	resp := HistoryResponse{
		Pointer:        h.Pointer(),
		Length:         h.Len(),
		CanUndo:        h.CanUndo(),
		CanRedo:        h.CanRedo(),
		Capacity:       settings.Capacity,
		CoalesceWindow: settings.CoalesceWindow.String(),
		Entries:        h.Entries(),
	}
	s.mu.Unlock()

	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, graph.GenerateMermaid(&domain.Checkpoint{History: resp.Entries, Pointer: resp.Pointer}))
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ClearHistory handles the DELETE /history request.
func (s *Server) ClearHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.ws.History().Clear(domain.Meta{"source": "http"})
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// Configure handles the PUT /history/settings request.
func (s *Server) Configure(w http.ResponseWriter, r *http.Request) {
	var body SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	var settings []history.Setting
	if body.Capacity != nil {
		settings = append(settings, history.SetCapacity(*body.Capacity))
	}
	if body.CoalesceWindow != nil {
		d, err := time.ParseDuration(*body.CoalesceWindow)
		if err != nil {
			s.writeError(w, domain.NewValidationError("coalesce_window", err.Error(), *body.CoalesceWindow))
			return
		}
		settings = append(settings, history.SetCoalesceWindow(d))
	}

	s.mu.Lock()
	err := s.ws.History().Configure(settings...)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.GetHistory(w, r)
}

// ListCommands handles the GET /commands request.
func (s *Server) ListCommands(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	names := s.ws.Registry().Names()
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, names)
}

// Execute handles the POST /commands/{name} request.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	opts, err := body.options()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	result, err := s.ws.Execute(name, body.Payload, opts...)
	resp := s.result(result)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("execute failed", "command", name, "err", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (b ExecuteRequest) options() ([]history.ExecOption, error) {
	var opts []history.ExecOption
	if b.Label != "" {
		opts = append(opts, history.WithLabel(b.Label))
	}
	if b.Coalesce != nil {
		opts = append(opts, history.WithCoalesce(*b.Coalesce))
	}
	if b.CoalesceKey != "" {
		opts = append(opts, history.WithCoalesceKey(b.CoalesceKey))
	}
	if b.CoalesceWindow != "" {
		d, err := time.ParseDuration(b.CoalesceWindow)
		if err != nil {
			return nil, domain.NewValidationError("coalesce_window", err.Error(), b.CoalesceWindow)
		}
		opts = append(opts, history.WithEntryWindow(d))
	}
	if len(b.Meta) > 0 {
		opts = append(opts, history.WithMeta(domain.Meta(b.Meta)))
	}
	return opts, nil
}

// Undo handles the POST /undo request.
func (s *Server) Undo(w http.ResponseWriter, r *http.Request) {
	s.step(w, "undo", s.ws.Undo)
}

// Redo handles the POST /redo request.
func (s *Server) Redo(w http.ResponseWriter, r *http.Request) {
	s.step(w, "redo", s.ws.Redo)
}

func (s *Server) step(w http.ResponseWriter, op string, fn func() (any, error)) {
	s.mu.Lock()
	result, err := fn()
	resp := s.result(result)
	s.mu.Unlock()

	if err != nil {
		// The pointer has moved even though the command failed.
		s.logger.Warn(op+" failed", "pointer", resp.Pointer, "err", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// result must be called with mu held.
func (s *Server) result(v any) ResultResponse {
	h := s.ws.History()
	return ResultResponse{
		Result:  v,
		Version: s.ws.Store().Version(),
		Pointer: h.Pointer(),
		Length:  h.Len(),
	}
}

// ListCheckpoints handles the GET /checkpoints request.
func (s *Server) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetCheckpoint handles the GET /checkpoints/{id} request.
func (s *Server) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	cp, err := s.sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cp)
}

// SaveCheckpoint handles the POST /checkpoints/{id} request.
func (s *Server) SaveCheckpoint(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	cp := s.ws.Snapshot(id)
	s.mu.Unlock()

	if err := s.sessions.Save(r.Context(), id, cp); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("checkpoint saved", "checkpoint_id", id, "version", cp.Version)
	s.writeJSON(w, http.StatusCreated, cp)
}

// RestoreCheckpoint handles the POST /checkpoints/{id}/restore request.
func (s *Server) RestoreCheckpoint(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	cp, err := s.sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	err = s.ws.Apply(cp)
	resp := StateResponse{Version: s.ws.Store().Version(), State: s.ws.Store().GetSnapshot()}
	s.mu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// DeleteCheckpoint handles the DELETE /checkpoints/{id} request.
func (s *Server) DeleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireSessions(w http.ResponseWriter) bool {
	if s.sessions == nil {
		s.writeError(w, strata.ErrNoCheckpointStore)
		return false
	}
	return true
}

// SubscribeEvents handles the GET /events request (SSE).
// ?kinds=store:change,history:undo restricts the stream to those event kinds.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	var filter map[string]bool
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		filter = make(map[string]bool)
		for _, k := range strings.Split(raw, ",") {
			filter[strings.TrimSpace(k)] = true
		}
	}

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE client connected", "kinds", r.URL.Query().Get("kinds"))

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if filter != nil && !filter[msg.Kind] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Kind, msg.Data)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, StatusFor(err), map[string]string{"error": err.Error()})
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLookup), errors.Is(err, domain.ErrCheckpointNotFound):
		return http.StatusNotFound
	case errors.Is(err, strata.ErrNoCheckpointStore):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
