package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rfp/internal/mcpserver"
)

func newMCPCmd(rt *runtime) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server exposing the
search_past_rfp_responses tool and the rfp://stats resource.

By default the server speaks JSON-RPC over stdio. Use --port to serve the
streamable HTTP transport instead.

  rfp mcp
  rfp mcp --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			server, err := mcpserver.NewServer(c.tool, c.index)
			if err != nil {
				return err
			}
			if port > 0 {
				addr := fmt.Sprintf(":%d", port)
				fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
				return server.RunHTTP(cmd.Context(), addr)
			}
			return server.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (0 = use stdio)")
	return cmd
}
