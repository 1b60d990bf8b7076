package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/cli"
	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:     "checkpoint",
	Aliases: []string{"cp"},
	Short:   "Manage saved checkpoints",
	Long:    `List, inspect and remove the checkpoints of the configured store.`,
}

var checkpointLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		ids, err := stack.Sessions.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing checkpoints: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No checkpoints found.")
			return nil
		}
		fmt.Fprintln(out, "Checkpoints:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var checkpointInspectCmd = &cobra.Command{
	Use:   "inspect <checkpoint-id>",
	Short: "Inspect the state and history of a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		stack, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		cp, err := stack.Sessions.Load(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("error loading checkpoint '%s': %w", id, err)
		}

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			data, err := json.MarshalIndent(cp, "", "  ")
			if err != nil {
				return fmt.Errorf("error marshaling checkpoint: %w", err)
			}
			fmt.Fprintln(out, string(data))
		case "mermaid":
			fmt.Fprint(out, graph.GenerateMermaid(cp))
		case "report":
			report := strata.RenderReport(cp)
			if f, ok := out.(*os.File); ok && tui.IsTerminal(f) {
				if rendered, err := tui.NewRenderer()(report); err == nil {
					report = rendered
				}
			}
			fmt.Fprintln(out, report)
		default:
			return fmt.Errorf("unknown format %q (json, mermaid, report)", format)
		}
		return nil
	},
}

var checkpointRmCmd = &cobra.Command{
	Use:   "rm <checkpoint-id>...",
	Short: "Remove one or more checkpoints",
	Args: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		if all, _ := cmd.Flags().GetBool("all"); all {
			args, err = stack.Sessions.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing checkpoints: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, id := range args {
			if err := stack.Sessions.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(out, "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "Removed checkpoint '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d checkpoint(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointLsCmd)
	checkpointCmd.AddCommand(checkpointInspectCmd)
	checkpointCmd.AddCommand(checkpointRmCmd)

	checkpointInspectCmd.Flags().StringP("format", "f", "json", "Output format: json, mermaid or report")
	checkpointRmCmd.Flags().Bool("all", false, "Remove every checkpoint")
}

// openStack builds the workspace stack from the project flags.
func openStack(cmd *cobra.Command) (*cli.Stack, error) {
	dir, configPath, debug := projectFlags(cmd)
	cfg, err := cli.LoadConfig(dir, configPath)
	if err != nil {
		return nil, err
	}
	return cli.NewStack(cfg, cli.CreateLogger(cfg.LogLevel, debug))
}
