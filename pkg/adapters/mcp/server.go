// Package mcp exposes a Workspace as Model Context Protocol tools and resources.
package mcp

import (
	"context"
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
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StateResponse is the structured result of get_state.
type StateResponse struct {
	Version uint64 `json:"version" jsonschema_description:"Store version, incremented on every commit"`
	State   any    `json:"state" jsonschema_description:"The whole state tree, or one slice when requested"`
}

// HistoryResponse is the structured result of list_history.
type HistoryResponse struct {
	Pointer int                `json:"pointer" jsonschema_description:"Index of the last applied entry, -1 when nothing is undoable"`
	Length  int                `json:"length" jsonschema_description:"Number of entries on the stack"`
	CanUndo bool               `json:"can_undo"`
	CanRedo bool               `json:"can_redo"`
	Entries []domain.EntryInfo `json:"entries"`
}

// StepResponse is the structured result of execute_command, undo and redo.
type StepResponse struct {
	Result  any    `json:"result,omitempty" jsonschema_description:"Value returned by the command"`
	Version uint64 `json:"version"`
	Pointer int    `json:"pointer"`
	Length  int    `json:"length"`
}

// Server wraps a Workspace and exposes it as an MCP Server.
// Tool calls may arrive concurrently, so every call into the workspace holds mu.
type Server struct {
	mu        sync.Mutex
	ws        *strata.Workspace
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for tool failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(ws *strata.Workspace, opts ...Option) *Server {
	s := &Server{
		ws:        ws,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("strata-mcp", strings.TrimSpace(strata.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the current state tree, or a single slice of it."),
		mcp.WithString("slice", mcp.Description("Name of the slice to return (optional)")),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	s.mcpServer.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List the undo history entries and the current pointer."),
		mcp.WithOutputSchema[HistoryResponse](),
	), mcp.NewStructuredToolHandler(s.handleListHistory))

	s.mcpServer.AddTool(mcp.NewTool("list_commands",
		mcp.WithDescription("List the registered command names."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.mu.Lock()
		names := s.ws.Registry().Names()
		s.mu.Unlock()
		return mcp.NewToolResultText(strings.Join(names, "\n")), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("execute_command",
		mcp.WithDescription("Execute a registered command and record it in the undo history."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Registered command name, e.g. set, merge, unset")),
		mcp.WithString("payload", mcp.Description("JSON payload handed to the command factory")),
		mcp.WithString("label", mcp.Description("History label for the entry")),
		mcp.WithString("coalesce_key", mcp.Description("Merge with the previous entry when it has the same key")),
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleExecute))

	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the most recent applied history entry."),
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleUndo))

	s.mcpServer.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Re-apply the most recently undone history entry."),
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleRedo))

	s.mcpServer.AddTool(mcp.NewTool("clear_history",
		mcp.WithDescription("Drop every history entry. The state is left as it is."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.mu.Lock()
		s.ws.History().Clear(domain.Meta{"source": "mcp"})
		s.mu.Unlock()
		return mcp.NewToolResultText("history cleared"), nil
	})
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StateResponse{Version: s.ws.Store().Version()}
	name, _ := args["slice"].(string)
	if name == "" {
		resp.State = s.ws.Store().GetSnapshot()
		return resp, nil
	}
	v, ok := s.ws.State().Slice(name)
	if !ok {
		return StateResponse{}, &domain.LookupError{Kind: domain.LookupSlice, Name: name}
	}
	resp.State = domain.Clone(v)
	return resp, nil
}

func (s *Server) handleListHistory(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.ws.History()
	return HistoryResponse{
		Pointer: h.Pointer(),
		Length:  h.Len(),
		CanUndo: h.CanUndo(),
		CanRedo: h.CanRedo(),
		Entries: h.Entries(),
	}, nil
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StepResponse, error) {
	name, _ := args["name"].(string)

	var payload any
	if raw, ok := args["payload"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return StepResponse{}, domain.NewValidationError("payload", "must be valid JSON", raw)
		}
	} else if obj, ok := args["payload"].(map[string]any); ok {
		payload = obj
	}

	var opts []history.ExecOption
	if label, _ := args["label"].(string); label != "" {
		opts = append(opts, history.WithLabel(label))
	}
	if key, _ := args["coalesce_key"].(string); key != "" {
		opts = append(opts, history.WithCoalesce(true), history.WithCoalesceKey(key))
	}
	opts = append(opts, history.WithMeta(domain.Meta{"source": "mcp"}))

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.ws.Execute(name, payload, opts...)
	if err != nil {
		s.logger.Warn("MCP execute failed", "command", name, "err", err)
		return StepResponse{}, fmt.Errorf("execute %s failed: %w", name, err)
	}
	return s.step(result), nil
}

func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StepResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.ws.Undo()
	if err != nil {
		s.logger.Warn("MCP undo failed", "pointer", s.ws.History().Pointer(), "err", err)
		return StepResponse{}, fmt.Errorf("undo failed: %w", err)
	}
	return s.step(result), nil
}

func (s *Server) handleRedo(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StepResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.ws.Redo()
	if err != nil {
		s.logger.Warn("MCP redo failed", "pointer", s.ws.History().Pointer(), "err", err)
		return StepResponse{}, fmt.Errorf("redo failed: %w", err)
	}
	return s.step(result), nil
}

// step must be called with mu held.
func (s *Server) step(result any) StepResponse {
	h := s.ws.History()
	return StepResponse{
		Result:  result,
		Version: s.ws.Store().Version(),
		Pointer: h.Pointer(),
		Length:  h.Len(),
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("strata://state", "Current State Tree",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		s.mu.Lock()
		snapshot := s.ws.Store().GetSnapshot()
		s.mu.Unlock()

		data, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to encode state: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "strata://state",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("strata://schema", "Declared Slice Types",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text := "{}"
		if sch := s.ws.Schema(); sch != nil {
			data, err := json.Marshal(sch)
			if err != nil {
				return nil, fmt.Errorf("failed to encode schema: %w", err)
			}
			text = string(data)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "strata://schema",
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("strata://history/graph", "History Timeline (Mermaid)",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		s.mu.Lock()
		cp := s.ws.Snapshot(s.ws.Name)
		s.mu.Unlock()

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "strata://history/graph",
				MIMEType: "text/plain",
				Text:     graph.GenerateMermaid(cp),
			},
		}, nil
	})
}
