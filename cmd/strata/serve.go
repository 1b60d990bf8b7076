package main

import (
	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [checkpoint-id]",
	Short: "Start the HTTP server",
	Long: `Serves a workspace as a JSON API with a Server-Sent Events stream of store and
history events and Prometheus metrics on /metrics.

With a checkpoint ID the workspace is restored from it before serving.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		stack, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		if len(args) > 0 {
			if _, err := stack.Workspace.Restore(sigCtx, args[0]); err != nil {
				return err
			}
		}
		return cli.Serve(sigCtx, stack, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from config, :8080)")
}
