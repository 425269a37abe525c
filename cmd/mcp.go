package cmd

import (
	"github.com/huangsam/codegrade/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the CodeGrade MCP server",
	Long: `Launch an MCP server over stdio that lets AI agents analyze repositories,
query scores and render badges via standard tools.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()
		return mcp.StartMCPServer(rootCtx, a.repos, a.badges, version)
	},
}
