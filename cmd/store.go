package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/internal/iocache"
	"github.com/huangsam/codegrade/internal/outwriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configSetupWrapper validates config without opening the store, so that
// clear and migrate work on a fresh or broken database.
func configSetupWrapper(_ *cobra.Command, _ []string) error {
	return configSetup()
}

// storeCmd focused on durable store management.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the repository and analysis store",
	Long: `Manage the durable store that tracks repositories and their analysis history.

Supported backends: SQLite (default), MySQL, PostgreSQL

Subcommands:
  status  - Show row counts, schema version and connection info
  export  - Export repositories and analyses to Parquet
  clear   - Remove all stored data
  migrate - Run database schema migrations

Examples:
  # Check store status
  codegrade store status

  # Export for analysis in pandas/DuckDB
  codegrade store export --output-file codegrade`,
}

// storeStatusCmd shows store status.
var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display store statistics and connection details",
	Long: `Show the backend, schema version, repository and analysis counts,
the time of the last analysis and per-table sizes.

Examples:
  codegrade store status
  codegrade store status --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetStore().Status(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
		ow := outwriter.NewOutWriter(cfg.Output, cfg.OutputFile)
		if err := ow.WriteStatus(status, func(w io.Writer) { iocache.PrintStoreStatus(w, status) }); err != nil {
			contract.LogFatal("Failed to write store status", err)
		}
	},
}

// storeExportCmd exports the store to Parquet files.
var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export repositories and analyses to Parquet",
	Long: `Export all stored repositories and analyses to Parquet for analytics tools.

Writes two files next to the given prefix:
  <prefix>.repositories.parquet
  <prefix>.analyses.parquet

Requires: --output-file parameter

Examples:
  codegrade store export --output-file codegrade
  duckdb -c "SELECT full_name, quality_score FROM read_parquet('codegrade.analyses.parquet')"`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if _, err := iocache.ExecuteExport(rootCtx, iocache.Manager.GetStore(), cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export store", err)
		}
	},
}

// storeClearCmd clears the store.
var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all tracked repositories and analyses",
	Long: `Delete all stored repositories and analysis history.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the store tables

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  codegrade store export --output-file backup
  codegrade store clear`,
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearStore(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
			contract.LogFatal("Failed to clear store", err)
		}
		fmt.Println("Store cleared successfully.")
	},
}

// storeMigrateCmd runs database migrations for the store.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions of the store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  codegrade store migrate

  # Rollback to the initial state
  codegrade store migrate --target-version 0`,
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		result, err := iocache.MigrateStore(cfg.StoreBackend, cfg.StoreDBConnect, viper.GetInt("target-version"))
		if err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		if !result.Changed {
			fmt.Printf("Store already at version %d.\n", result.To)
			return
		}
		fmt.Printf("Migrated store from version %d to %d.\n", result.From, result.To)
	},
}
