package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huangsam/codegrade/core"
	"github.com/huangsam/codegrade/internal/api/handlers"
	"github.com/huangsam/codegrade/internal/api/respond"
	"github.com/huangsam/codegrade/internal/api/router"
	"github.com/huangsam/codegrade/internal/contract"
	"github.com/spf13/cobra"
)

// HTTP server limits.
const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Minute // analyses run inside the request
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 15 * time.Second
)

// serveCmd runs the HTTP API with the background scheduler.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the auto-analysis scheduler",
	Long: `Start the CodeGrade HTTP server.

Serves the repository, analysis and badge endpoints under /api, and runs
scheduled re-analysis of tracked repositories on the configured cron spec.
The server drains in-flight requests on SIGINT or SIGTERM.

Examples:
  # Serve on the default address with a local SQLite store
  codegrade serve

  # Shared cache and limiter counters across replicas
  CODEGRADE_REDIS_URL=redis://localhost:6379/0 codegrade serve --env production

  # Disable scheduled analysis
  codegrade serve --schedule ""`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := runServer(rootCtx); err != nil {
			contract.LogFatal("Server failed", err)
		}
	},
}

func runServer(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.cache.Start(ctx)

	scheduler := core.NewScheduler(a.store, a.orch, cfg.Schedule, a.janitor, a.logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	errs := respond.Errors{Production: cfg.Production}
	h := router.Handlers{
		Repositories: handlers.NewRepositoryHandler(a.repos, errs),
		Analysis:     handlers.NewAnalysisHandler(a.repos, errs),
		Badges:       handlers.NewBadgeHandler(a.badges, errs, cfg.PublicURL),
		Health:       handlers.NewHealthHandler(a.cache, a.store, version),
	}
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router.NewRouter(h, router.DefaultLimits(a.limits), errs, a.logger),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to serve on %s: %w", cfg.Addr, err)
		}
		return nil
	case sig := <-quit:
		a.logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}
