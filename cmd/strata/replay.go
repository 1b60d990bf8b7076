package main

import (
	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script>",
	Short: "Replay a scripted edit session",
	Long: `Replays a YAML or JSON script of execute, undo, redo, clear, configure and batch
steps on a fresh workspace with a stepped clock, so coalescing is deterministic.

The outcome is printed as a Markdown report, as JSON (--json) or as a Mermaid
history graph (--mermaid).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, configPath, debug := projectFlags(cmd)
		jsonMode, _ := cmd.Flags().GetBool("json")
		mermaid, _ := cmd.Flags().GetBool("mermaid")
		checkpoint, _ := cmd.Flags().GetString("checkpoint")
		watch, _ := cmd.Flags().GetBool("watch")

		opts := cli.ReplayOptions{
			Path:       args[0],
			JSON:       jsonMode,
			Mermaid:    mermaid,
			Checkpoint: checkpoint,
			Dir:        dir,
			ConfigPath: configPath,
			Debug:      debug,
			Output:     cmd.OutOrStdout(),
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		if watch {
			return cli.WatchReplay(sigCtx, opts, cli.DefaultWatchDebounce)
		}
		return cli.Replay(sigCtx, opts)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Bool("json", false, "Print the step results and final checkpoint as JSON")
	replayCmd.Flags().Bool("mermaid", false, "Print the final history as a Mermaid graph")
	replayCmd.Flags().String("checkpoint", "", "Save the final state under this checkpoint ID")
	replayCmd.Flags().BoolP("watch", "w", false, "Replay again whenever the script changes")
	replayCmd.MarkFlagsMutuallyExclusive("json", "mermaid")
}
