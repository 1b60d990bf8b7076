package main

import (
	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [session-id]",
	Short: "Start an interactive editing session",
	Long: `Starts a line-oriented session over a workspace built from strata.yaml.

Each line is a registered command followed by an optional JSON payload, e.g.

  set {"slice": "canvas", "value": {"color": "red"}}

or one of undo, redo, clear, state, report, help and exit. With a session ID the
workspace resumes from that checkpoint and is saved back on exit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, configPath, debug := projectFlags(cmd)
		headless, _ := cmd.Flags().GetBool("headless")
		fresh, _ := cmd.Flags().GetBool("fresh")

		var id string
		if len(args) > 0 {
			id = args[0]
		}

		return cli.RunSession(cli.SessionOptions{
			Dir:        dir,
			ConfigPath: configPath,
			ID:         id,
			Fresh:      fresh,
			Headless:   headless,
			Debug:      debug,
			Input:      cmd.InOrStdin(),
			Output:     cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "Run in headless mode (no banner, prompts or status lines)")
	runCmd.Flags().Bool("fresh", false, "Discard the saved session before starting")
}
