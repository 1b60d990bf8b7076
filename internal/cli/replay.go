package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/internal/script"
)

// ReplayOptions configures the replay command.
type ReplayOptions struct {
	Path string
	// JSON prints the step results and the final checkpoint as JSON.
	JSON bool
	// Mermaid prints the final history as a Mermaid flowchart.
	Mermaid bool
	// Checkpoint saves the final state under this ID in the configured store.
	Checkpoint string

	Dir        string
	ConfigPath string
	Debug      bool

	Output io.Writer
}

// Replay runs a script and prints its outcome.
// The outcome is printed even when a step fails; the step error is returned afterwards.
func Replay(ctx context.Context, opts ReplayOptions) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	logger := CreateLogger("warn", opts.Debug)

	s, err := script.Load(opts.Path)
	if err != nil {
		return err
	}

	res, runErr := script.NewRunner(script.WithLogger(logger)).Run(s)
	if res == nil {
		return runErr
	}

	if err := writeReplay(opts, res); err != nil {
		return err
	}

	if opts.Checkpoint != "" && runErr == nil {
		cfg, err := LoadConfig(opts.Dir, opts.ConfigPath)
		if err != nil {
			return err
		}
		stack, err := NewStack(cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		cp := res.Final.Clone()
		cp.ID = opts.Checkpoint
		if err := stack.Sessions.Save(ctx, opts.Checkpoint, cp); err != nil {
			return fmt.Errorf("failed to save checkpoint %q: %w", opts.Checkpoint, err)
		}
		logger.Info("checkpoint saved", "checkpoint_id", opts.Checkpoint, "version", cp.Version)
	}
	return runErr
}

func writeReplay(opts ReplayOptions, res *script.Result) error {
	switch {
	case opts.JSON:
		enc := json.NewEncoder(opts.Output)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case opts.Mermaid:
		_, err := fmt.Fprint(opts.Output, graph.GenerateMermaid(res.Final))
		return err
	}

	report := strata.RenderReport(res.Final)
	if f, ok := opts.Output.(*os.File); ok && tui.IsTerminal(f) {
		if rendered, err := tui.NewRenderer()(report); err == nil {
			report = rendered
		}
	}
	_, err := fmt.Fprintln(opts.Output, report)
	return err
}
