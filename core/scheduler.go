package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/internal/ratelimit"
	"github.com/huangsam/codegrade/schema"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Scheduler defaults.
const (
	DefaultSchedulerWorkers = 2
	LimiterGCSchedule       = "@hourly"
)

// ScheduleReport summarizes one pass of the auto-analysis scheduler.
type ScheduleReport struct {
	Checked  int
	Analyzed int
	Failed   int
}

// Scheduler re-analyzes repositories whose analysis frequency has elapsed and
// garbage-collects the rate limiter store.
type Scheduler struct {
	store   contract.Store
	orch    *Orchestrator
	janitor *ratelimit.Janitor
	spec    string
	workers int
	now     func() time.Time
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewScheduler creates a scheduler running on a cron spec. An empty spec disables
// auto-analysis; a nil janitor disables limiter GC.
func NewScheduler(store contract.Store, orch *Orchestrator, spec string, janitor *ratelimit.Janitor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		orch:    orch,
		janitor: janitor,
		spec:    spec,
		workers: DefaultSchedulerWorkers,
		now:     time.Now,
		logger:  logger,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers the jobs and starts the cron runner. Jobs stop when ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec != "" {
		if _, err := s.cron.AddFunc(s.spec, func() { _, _ = s.RunOnce(ctx) }); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
		}
	}
	if s.janitor != nil {
		if err := s.janitor.Register(ctx, s.cron, LimiterGCSchedule); err != nil {
			return fmt.Errorf("failed to schedule rate limiter gc: %w", err)
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "jobs", len(s.cron.Entries()))
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce analyzes every auto-analyze repository that is due, a few at a time.
// Individual failures are logged and counted, not returned.
func (s *Scheduler) RunOnce(ctx context.Context) (ScheduleReport, error) {
	repos, err := s.store.ListAutoAnalyze(ctx)
	if err != nil {
		return ScheduleReport{}, fmt.Errorf("failed to list auto-analyze repositories: %w", err)
	}

	now := s.now()
	var analyzed, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, repo := range repos {
		if !schema.NeedsAnalysis(repo, now) {
			continue
		}
		g.Go(func() error {
			_, err := s.orch.Analyze(gctx, repo.Owner, repo.Name, AnalyzeOptions{
				Force:       true,
				TriggeredBy: schema.TriggerScheduled,
			})
			if err != nil {
				failed.Add(1)
				s.logger.Warn("scheduled analysis failed", "repository", repo.FullName, "error", err)
				return nil
			}
			analyzed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := ScheduleReport{Checked: len(repos), Analyzed: int(analyzed.Load()), Failed: int(failed.Load())}
	s.logger.Info("scheduled analysis pass complete", "checked", report.Checked,
		"analyzed", report.Analyzed, "failed", report.Failed)
	return report, ctx.Err()
}
