package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// badgeCmd renders a badge without the HTTP server.
var badgeCmd = &cobra.Command{
	Use:   "badge <owner>/<repo>",
	Short: "Render the SVG badge of a repository",
	Long: `Render a status badge for a tracked repository.

Variants: quality (default), security, coverage, complexity.
Styles: flat (default), plastic.
Repositories without data render the grey "unknown" badge.

Examples:
  # Quality badge to stdout
  codegrade badge spf13/cobra

  # Coverage badge to a file for a README
  codegrade badge spf13/cobra --variant coverage --output-file coverage.svg`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		owner, repo, ok := strings.Cut(args[0], "/")
		if !ok || owner == "" || repo == "" {
			contract.LogFatal("Invalid repository", fmt.Errorf("expected owner/repo, got %q", args[0]))
		}
		variant := schema.BadgeVariant(viper.GetString("variant"))
		if _, ok := schema.ValidBadgeVariants[variant]; !ok {
			contract.LogFatal("Invalid badge variant", fmt.Errorf("unknown variant %q", variant))
		}

		a, err := newApp(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to start", err)
		}
		defer a.Close()

		svg := a.badges.Badge(rootCtx, owner, repo, variant, viper.GetString("style"))
		file, err := contract.SelectOutputFile(cfg.OutputFile)
		if err != nil {
			contract.LogFatal("Failed to open output", err)
		}
		if file != os.Stdout {
			defer func() { _ = file.Close() }()
		}
		if _, err := fmt.Fprintln(file, svg); err != nil {
			contract.LogFatal("Failed to write badge", err)
		}
	},
}
