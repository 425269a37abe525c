package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd prints build details of the binary.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of codegrade.",
	Long: `Display the release version, commit, build time and Go runtime.

The same version is reported by GET /api/health and the MCP server.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("codegrade %s\n", version)
		cmd.Printf("  Commit:   %s\n", commit)
		cmd.Printf("  Built:    %s\n", date)
		cmd.Printf("  Runtime:  %s\n", runtime.Version())
		cmd.Printf("  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
