package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/domain"
)

// SessionOptions configures an interactive session.
type SessionOptions struct {
	Dir        string
	ConfigPath string
	// ID names the checkpoint the session resumes from and saves to on exit.
	// Empty runs an unsaved session.
	ID       string
	Fresh    bool
	Headless bool
	Debug    bool

	Input  io.Reader
	Output io.Writer
}

// RunSession runs the line REPL over a workspace built from the project config.
func RunSession(opts SessionOptions) error {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	cfg, err := LoadConfig(opts.Dir, opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.ID != "" && cfg.Name == "" {
		cfg.Name = opts.ID
	}
	logger := CreateLogger(cfg.LogLevel, opts.Debug)

	stack, err := NewStack(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	if !opts.Headless {
		tui.PrintBanner(opts.Output, strata.Version)
	}

	if err := resume(sigCtx, stack, opts); err != nil {
		return fmt.Errorf("failed to init session: %w", err)
	}

	r := strata.NewRunner()
	r.Input = NewInterruptibleReader(opts.Input, sigCtx.Done())
	r.Output = opts.Output
	r.Headless = opts.Headless
	if !opts.Headless {
		if f, ok := opts.Output.(*os.File); ok && tui.IsTerminal(f) {
			r.Renderer = tui.NewRenderer()
		}
	}

	runErr := r.Run(stack.Workspace)
	if sigCtx.Err() != nil && runErr == nil {
		runErr = sigCtx.Err()
	}

	if opts.ID != "" {
		// Saved even when interrupted; the signal context is already cancelled.
		saveCtx := context.WithoutCancel(sigCtx)
		cp := stack.Workspace.Snapshot(opts.ID)
		if err := stack.Sessions.Save(saveCtx, opts.ID, cp); err != nil {
			return fmt.Errorf("failed to save session %q: %w", opts.ID, err)
		}
		logger.Info("Session saved", "session_id", opts.ID, "version", cp.Version)
	}

	logCompletion(opts.Output, opts.ID, runErr, opts.Headless, sigCtx.Signal())
	return handleExecutionError(runErr)
}

// resume restores the session checkpoint, or drops it when Fresh is set.
func resume(ctx context.Context, stack *Stack, opts SessionOptions) error {
	if opts.ID == "" {
		return nil
	}
	if opts.Fresh {
		if err := stack.Sessions.Delete(ctx, opts.ID); err != nil && !errors.Is(err, domain.ErrCheckpointNotFound) {
			return err
		}
		stack.Logger.Info("Session Reset", "session_id", opts.ID)
		return nil
	}

	cp, err := stack.Sessions.Load(ctx, opts.ID)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		stack.Logger.Info("Session Created", "session_id", opts.ID)
		if !opts.Headless {
			printSystemMessage(opts.Output, "Session '%s' active.", opts.ID)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if err := stack.Workspace.Apply(cp); err != nil {
		return err
	}
	stack.Logger.Info("Session Resumed", "session_id", opts.ID, "version", cp.Version)
	if !opts.Headless {
		printSystemMessage(opts.Output, "Resuming '%s' at version %d.", opts.ID, cp.Version)
	}
	return nil
}
