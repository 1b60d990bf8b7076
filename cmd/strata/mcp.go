package main

import (
	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp [checkpoint-id]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts a workspace as an MCP Server.
This allows AI agents to read the state and execute, undo and redo commands as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
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
		return cli.ServeMCP(sigCtx, stack, transport, addr)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", "", "Address to listen on (only for SSE)")
}
