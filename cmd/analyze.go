package cmd

import (
	"os/user"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/internal/outwriter"
	"github.com/huangsam/codegrade/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// analyzeCmd analyzes one repository from the command line.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <repo-url>",
	Short: "Analyze a GitHub repository and print its quality report",
	Long: `Analyze a GitHub repository, tracking it in the store if it is new.

A recent analysis is reused unless --force is given. The report shows the
quality score with its components, trends against the previous analysis
and the top recommendations.

Examples:
  # Analyze a public repository
  codegrade analyze https://github.com/spf13/cobra

  # Bypass the reuse window and write JSON
  codegrade analyze https://github.com/spf13/cobra --force --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		a, err := newApp(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to start", err)
		}
		defer a.Close()

		out, _, err := a.repos.AnalyzeURL(rootCtx, args[0], currentUser(), viper.GetBool("force"))
		if err != nil {
			contract.LogFatal("Analysis failed", err)
		}
		ow := outwriter.NewOutWriter(cfg.Output, cfg.OutputFile)
		if err := ow.WriteAnalysis(out.Repository, out.Analysis, !out.Fresh); err != nil {
			contract.LogFatal("Failed to write analysis", err)
		}
	},
}

// listCmd prints tracked repositories.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked repositories with their latest scores",
	Long: `List the repositories tracked in the store, one page at a time.

Examples:
  # Best scored Go repositories first
  codegrade list --language Go --sort-by lastQualityScore --sort-order desc

  # Second page as JSON
  codegrade list --page 2 --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		a, err := newApp(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to start", err)
		}
		defer a.Close()

		page, err := a.repos.List(rootCtx, schema.RepositoryQuery{
			Search:    viper.GetString("search"),
			Language:  viper.GetString("language"),
			SortBy:    viper.GetString("sort-by"),
			SortOrder: viper.GetString("sort-order"),
			Page:      viper.GetInt("page"),
			Limit:     viper.GetInt("limit"),
		})
		if err != nil {
			contract.LogFatal("Failed to list repositories", err)
		}
		ow := outwriter.NewOutWriter(cfg.Output, cfg.OutputFile)
		if err := ow.WriteRepositories(page); err != nil {
			contract.LogFatal("Failed to write repositories", err)
		}
	},
}

// currentUser names who added a repository from the CLI.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}
