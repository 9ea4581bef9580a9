package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kazuph/tab-transfer/internal/logger"
	"github.com/kazuph/tab-transfer/internal/mcp"
)

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long: `Start the Model Context Protocol server that provides tab transfer
functionality to AI assistants over stdio.

The server exposes tools for:
- copy_tabs: Copy tabs from an Android or iOS device
- reopen_tabs: Reopen saved tabs on a device
- check_environment: Verify system dependencies

and the tabs://current resource holding the last copied tabs.

Configure in Claude Desktop's claude_desktop_config.json:
{
  "mcpServers": {
    "tab-transfer": {
      "command": "/path/to/tab-transfer",
      "args": ["mcp"]
    }
  }
}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol; nothing else may write to it.
			log := logger.WithComponent("cmd")
			log.Info().Msg("starting MCP server for tab transfer")

			if err := mcp.NewTabTransferServer(a.driverOpts...).Start(); err != nil {
				return fmt.Errorf("MCP server stopped: %w", err)
			}

			return nil
		},
	}
}
