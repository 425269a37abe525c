// Package cmd defines the command-line interface for codegrade.
package cmd

import (
	"github.com/huangsam/codegrade/core/badge"
	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(badgeCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the store subcommands to the parent store command
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeExportCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("addr", contract.DefaultAddr, "HTTP listen address")
	rootCmd.PersistentFlags().String("env", contract.DefaultEnv, "Environment name; production hides internal error details")
	rootCmd.PersistentFlags().String("public-url", "", "Absolute base URL used in badge links (e.g., https://grade.example.com)")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL for the shared cache and rate limit counters (e.g., redis://localhost:6379/0)")
	rootCmd.PersistentFlags().String("github-token", "", "GitHub token for the GraphQL API (prefer CODEGRADE_GITHUB_TOKEN)")
	rootCmd.PersistentFlags().Int("github-rate-budget", contract.DefaultGitHubRateBudget, "Outbound GitHub requests allowed per hour")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("schedule", contract.DefaultSchedule, "Cron spec for scheduled analysis; empty disables it")
	rootCmd.PersistentFlags().String("analysis-timeout", contract.DefaultAnalysisTimeout.String(), "Upper bound of a single analysis")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.DefaultLogFormat, "Log format: text or json")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of analyzeCmd to Viper
	analyzeCmd.Flags().Bool("force", false, "Analyze even when a recent analysis exists")
	if err := viper.BindPFlags(analyzeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding analyze flags", err)
	}

	// Bind all flags of listCmd to Viper
	listCmd.Flags().String("search", "", "Match repository name, owner or description")
	listCmd.Flags().String("language", "", "Only repositories in this language")
	listCmd.Flags().String("sort-by", "updatedAt", "Sort field: createdAt, updatedAt, lastAnalyzedAt, lastQualityScore, stars, forks, name or fullName")
	listCmd.Flags().String("sort-order", "desc", "Sort order: asc or desc")
	listCmd.Flags().Int("page", 1, "Page number")
	listCmd.Flags().Int("limit", 10, "Repositories per page (max 100)")
	if err := viper.BindPFlags(listCmd.Flags()); err != nil {
		contract.LogFatal("Error binding list flags", err)
	}

	// Bind all flags of badgeCmd to Viper
	badgeCmd.Flags().String("variant", string(schema.BadgeQuality), "Badge variant: quality or security or coverage or complexity")
	badgeCmd.Flags().String("style", badge.StyleFlat, "Badge style: flat or plastic")
	if err := viper.BindPFlags(badgeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding badge flags", err)
	}

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
