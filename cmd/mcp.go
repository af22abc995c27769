package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/shamescroll/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

The tools proxy to the running daemon, so start it first with
'shamescroll serve start'. Configure your MCP client with:

  {
    "mcpServers": {
      "shamescroll": { "command": "shamescroll", "args": ["mcp"] }
    }
  }

Available tools: shamescroll_status, shamescroll_start_focus,
shamescroll_stop_focus, shamescroll_streak, shamescroll_report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.NewServer(daemonClient(), buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
