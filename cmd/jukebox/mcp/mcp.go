package mcpcmder

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/jukebox/cmd/jukebox/settings"
	"github.com/papercomputeco/jukebox/pkg/client"
)

const mcpLongDesc string = `Serve jukebox tools to an MCP client over stdio.

Each tool call is forwarded to the jukebox daemon over one connection.
Register the command with an MCP-capable assistant to let it search the
library and control playback.

Examples:
  jukebox mcp
  jukebox mcp --addr 127.0.0.1:4000`

const mcpShortDesc string = "Serve jukebox tools over MCP stdio"

type mcpCommander struct{}

func NewMCPCmd() *cobra.Command {
	cmder := &mcpCommander{}

	return &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := settings.Addr(cmd)
			if err != nil {
				return err
			}
			return cmder.run(cmd, addr)
		},
	}
}

func (c *mcpCommander) run(cmd *cobra.Command, addr string) error {
	conn, err := client.NewRedialer(cmd.Context(), addr)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	defer conn.Close()

	return NewServer(conn, settings.Version).Run(cmd.Context(), &mcp.StdioTransport{})
}
