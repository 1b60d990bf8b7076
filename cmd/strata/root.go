package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata is an application-state store with undo/redo history",
	Long: `Strata keeps an application's state in a single tree of named slices and records
every change as a command on a bounded undo/redo history.

The CLI drives a workspace interactively, replays scripted edit sessions and serves a
workspace over HTTP or the Model Context Protocol.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Project directory holding strata.yaml and .strata/")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default <dir>/strata.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}

// projectFlags returns the persistent flags shared by every command.
func projectFlags(cmd *cobra.Command) (dir, configPath string, debug bool) {
	dir, _ = cmd.Flags().GetString("dir")
	configPath, _ = cmd.Flags().GetString("config")
	debug, _ = cmd.Flags().GetBool("debug")
	return dir, configPath, debug
}
