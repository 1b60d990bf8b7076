package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpadapter "github.com/aretw0/strata/pkg/adapters/http"
	"github.com/aretw0/strata/pkg/adapters/mcp"
)

// ShutdownTimeout bounds the graceful shutdown of the servers.
const ShutdownTimeout = 5 * time.Second

// Serve exposes the stack's workspace over HTTP on addr until ctx is cancelled.
func Serve(ctx context.Context, stack *Stack, addr string) error {
	if addr == "" {
		addr = stack.Config.HTTP.Addr
	}
	handler := httpadapter.NewHandler(stack.Workspace,
		httpadapter.WithLogger(stack.Logger),
		httpadapter.WithGatherer(stack.Metrics),
		httpadapter.WithSessions(stack.Sessions),
	)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		stack.Logger.Info("Starting Strata Server", "address", addr, "workspace", stack.Workspace.Name)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		stack.Logger.Info("Start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			stack.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		stack.Logger.Info("Strata Server stopped gracefully")
		return nil
	}
}

// ServeMCP exposes the stack's workspace as an MCP server.
// transport is "stdio" or "sse"; addr is only used by sse.
func ServeMCP(ctx context.Context, stack *Stack, transport, addr string) error {
	srv := mcp.NewServer(stack.Workspace, mcp.WithLogger(stack.Logger))

	switch transport {
	case "", "stdio":
		stack.Logger.Info("Starting Strata MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		if addr == "" {
			addr = stack.Config.HTTP.Addr
		}
		return srv.ServeSSE(ctx, addr)
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}
