package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/huangsam/codegrade/core"
	"github.com/huangsam/codegrade/core/algo"
	"github.com/huangsam/codegrade/internal/cache"
	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/internal/github"
	"github.com/huangsam/codegrade/internal/iocache"
	"github.com/huangsam/codegrade/internal/ratelimit"
)

// app is the wired service graph shared by serve, analyze, badge and mcp.
type app struct {
	store   contract.Store
	cache   *cache.Cache
	limits  ratelimit.Store
	janitor *ratelimit.Janitor
	orch    *core.Orchestrator
	repos   *core.RepositoryService
	badges  *core.BadgeService
	logger  *slog.Logger
}

// newApp wires the services from the validated config. sharedSetup must have run.
func newApp(ctx context.Context) (*app, error) {
	logger := slog.Default()
	store := iocache.Manager.GetStore()
	if store == nil {
		return nil, fmt.Errorf("store is not initialized")
	}

	// --- 1. Cache and limiter storage ---
	cacheOpts := []cache.Option{cache.WithLogger(logger)}
	var limits ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RedisURL != "" {
		tier, err := cache.NewRedisTier(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		cacheOpts = append(cacheOpts, cache.WithRemote(tier))
		redisLimits, err := ratelimit.NewRedisStore(ctx, tier.Client())
		if err != nil {
			// Counters stay per-process until redis is back
			contract.LogWarn("Using in-memory rate limit counters", err)
		} else {
			limits = redisLimits
		}
	}
	c := cache.New(ctx, cacheOpts...)

	// --- 2. GitHub and the analysis pipeline ---
	gh := github.NewClient(ctx, cfg.GitHubToken,
		github.WithBudget(ratelimit.GitHubAPI(limits, cfg.GitHubRateBudget).Policy),
		github.WithLogger(logger),
	)
	orch := core.NewOrchestrator(store, c, algo.NewAnalyzer(gh),
		core.WithTimeout(cfg.AnalysisTimeout),
		core.WithLogger(logger),
	)

	return &app{
		store:   store,
		cache:   c,
		limits:  limits,
		janitor: ratelimit.NewJanitor(limits, ratelimit.DefaultMaxAge, logger),
		orch:    orch,
		repos:   core.NewRepositoryService(store, gh, orch, c, logger),
		badges:  core.NewBadgeService(store, orch, c, logger),
		logger:  logger,
	}, nil
}

// Close releases the cache tiers. The store is closed by Execute.
func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		contract.LogWarn("Failed to close cache", err)
	}
}
