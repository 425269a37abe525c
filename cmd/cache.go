package cmd

import (
	"fmt"
	"io"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/internal/iocache"
	"github.com/huangsam/codegrade/internal/outwriter"
	"github.com/spf13/cobra"
)

// cacheCmd focused on cache management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and flush the analysis and badge cache",
	Long: `Manage the two-tier cache in front of the store.

The local tier lives inside each process. The remote tier is Redis, shared by
all replicas, and is only used when --redis-url is set.

Subcommands:
  status - Show tier state, key counts and memory
  clear  - Flush both tiers

Examples:
  # Check the shared cache
  CODEGRADE_REDIS_URL=redis://localhost:6379/0 codegrade cache status

  # Drop cached badges and analyses after a scoring change
  codegrade cache clear`,
}

// cacheClearCmd flushes the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Flush all cached analyses, listings and badges",
	Long: `Remove every cached entry from the Redis tier. Stored repositories and
analyses are not touched; they are re-cached on the next read.

Examples:
  codegrade cache clear`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		a, err := newApp(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to open cache", err)
		}
		defer a.Close()
		a.cache.Flush(rootCtx)
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache tier state and statistics",
	Long: `Show whether the remote tier is reachable and how many keys each tier holds.

Examples:
  codegrade cache status --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		a, err := newApp(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to open cache", err)
		}
		defer a.Close()
		status := a.cache.Status(rootCtx)
		ow := outwriter.NewOutWriter(cfg.Output, cfg.OutputFile)
		if err := ow.WriteStatus(status, func(w io.Writer) { iocache.PrintCacheStatus(w, status) }); err != nil {
			contract.LogFatal("Failed to write cache status", err)
		}
	},
}
