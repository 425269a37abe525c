package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/codegrade/core/badge"
	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/cache"
	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"golang.org/x/sync/singleflight"
)

// Cache lifetimes.
const (
	AnalysisCacheTTL = time.Hour
	BadgeCacheTTL    = time.Hour
	StatsCacheTTL    = 30 * time.Minute
)

// StatsCacheKey holds the cached repository statistics.
const StatsCacheKey = "repository-stats"

// Write retry policy for the analysis record and the repository pointer.
const (
	writeAttempts = 3
	writeBackoff  = 100 * time.Millisecond
)

// AnalysisCacheKey is the cache key of the latest analysis of a repository.
func AnalysisCacheKey(owner, name string) string {
	return fmt.Sprintf("analysis:%s:%s", schema.NormalizeName(owner), schema.NormalizeName(name))
}

// AnalyzeOptions controls one analysis request.
type AnalyzeOptions struct {
	AutoAnalyze bool // run the producer when no analysis exists yet
	Force       bool // run the producer even when an analysis exists
	TriggeredBy schema.TriggeredBy
}

// AnalysisOutcome is the result of an analysis request.
type AnalysisOutcome struct {
	Repository schema.Repository
	Analysis   *schema.Analysis
	Fresh      bool // the producer ran for this request
}

// Orchestrator runs at most one analysis per repository at a time and keeps the
// repository's latest-analysis pointer consistent with the stored records.
type Orchestrator struct {
	store    contract.Store
	cache    contract.Cache
	producer contract.AnalysisProducer
	timeout  time.Duration
	now      func() time.Time
	newID    func() string
	backoff  time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithTimeout bounds each producer run.
func WithTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithRequestIDs sets the generator of analysis idempotency keys.
func WithRequestIDs(newID func() string) OrchestratorOption {
	return func(o *Orchestrator) { o.newID = newID }
}

// WithBackoff sets the delay between write retries.
func WithBackoff(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.backoff = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(store contract.Store, c contract.Cache, producer contract.AnalysisProducer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		cache:    c,
		producer: producer,
		timeout:  contract.DefaultAnalysisTimeout,
		now:      time.Now,
		newID:    uuid.NewString,
		backoff:  writeBackoff,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze returns the latest analysis of a tracked repository, running the producer
// when needed. Concurrent calls for one repository with the same options share a
// single run, which keeps going when the caller gives up.
func (o *Orchestrator) Analyze(ctx context.Context, owner, name string, opts AnalyzeOptions) (AnalysisOutcome, error) {
	owner, name = schema.NormalizeName(owner), schema.NormalizeName(name)
	if owner == "" || name == "" {
		return AnalysisOutcome{}, apperrors.Validation("owner and repository name are required")
	}
	if opts.TriggeredBy == "" {
		opts.TriggeredBy = schema.TriggerAPI
	}

	ch := o.group.DoChan(flightKey(owner, name, opts), func() (any, error) {
		return o.analyze(context.WithoutCancel(ctx), owner, name, opts)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return AnalysisOutcome{}, res.Err
		}
		return res.Val.(AnalysisOutcome), nil
	case <-ctx.Done():
		return AnalysisOutcome{}, ctx.Err()
	}
}

// flightKey groups concurrent calls that would produce the same outcome. A forced
// run never hands its result to a plain read, and a read that may not run the
// producer never answers a caller that may.
func flightKey(owner, name string, opts AnalyzeOptions) string {
	mode := "read"
	switch {
	case opts.Force:
		mode = "force"
	case opts.AutoAnalyze:
		mode = "auto"
	}
	return schema.FullName(owner, name) + "#" + mode
}

func (o *Orchestrator) analyze(ctx context.Context, owner, name string, opts AnalyzeOptions) (AnalysisOutcome, error) {
	// --- 1. Resolve the repository ---
	repo, err := o.store.GetRepositoryByName(ctx, owner, name)
	if errors.Is(err, contract.ErrNotFound) {
		return AnalysisOutcome{}, apperrors.NotFound("Repository %s/%s is not tracked", owner, name)
	}
	if err != nil {
		return AnalysisOutcome{}, apperrors.Internal(err)
	}

	// --- 2. Short-circuit on an existing analysis ---
	if !opts.Force {
		if latest, err := o.latest(ctx, repo); err != nil {
			return AnalysisOutcome{}, err
		} else if latest != nil {
			if repo.LatestAnalysisID == nil || *repo.LatestAnalysisID != latest.ID {
				if repaired, err := o.store.GetRepository(ctx, repo.ID); err == nil {
					repo = repaired
				}
			}
			return AnalysisOutcome{Repository: repo, Analysis: latest}, nil
		}
		if !opts.AutoAnalyze {
			return AnalysisOutcome{Repository: repo}, apperrors.NotFound("Repository %s/%s has not been analyzed yet", owner, name)
		}
	}

	// --- 3. Run the producer ---
	start := o.now()
	pctx, cancel := context.WithTimeout(ctx, o.timeout)
	result, err := o.producer.PerformFullAnalysis(pctx, owner, name)
	cancel()
	elapsed := o.now().Sub(start)
	if err != nil {
		o.recordFailure(ctx, repo, opts, err, elapsed)
		return AnalysisOutcome{Repository: repo}, o.producerError(err)
	}

	// --- 4. Persist the record with trends against the prior one ---
	prior, err := o.store.LatestCompletedAnalysis(ctx, repo.ID)
	if err != nil {
		return AnalysisOutcome{}, apperrors.Internal(fmt.Errorf("failed to load prior analysis: %w", err))
	}
	a := newAnalysis(repo, result, opts.TriggeredBy, o.newID(), start, elapsed)
	a.Trends = schema.ComputeTrends(prior, result)
	if err := o.retry(ctx, "save analysis", func() error { return o.store.SaveAnalysis(ctx, a) }); err != nil {
		return AnalysisOutcome{}, apperrors.Internal(err)
	}

	// --- 5. Point the repository at it ---
	if err := o.setLatest(ctx, repo.ID, a); err != nil {
		return AnalysisOutcome{}, apperrors.Internal(err)
	}

	// --- 6. Refresh caches ---
	if err := cache.SetJSON(ctx, o.cache, AnalysisCacheKey(owner, name), *a, AnalysisCacheTTL); err != nil {
		o.logger.Warn("failed to cache analysis", "repository", repo.FullName, "error", err)
	}
	o.invalidateDerived(ctx, owner, name)

	updated, err := o.store.GetRepository(ctx, repo.ID)
	if err != nil {
		return AnalysisOutcome{}, apperrors.Internal(err)
	}
	o.logger.Info("analysis completed", "repository", repo.FullName, "score", a.QualityScore,
		"duration_ms", a.AnalysisDuration, "triggered_by", a.TriggeredBy)
	return AnalysisOutcome{Repository: updated, Analysis: a, Fresh: true}, nil
}

// latest returns the newest completed analysis of repo, or nil when there is none.
// A pointer that lags behind the stored records is moved forward.
func (o *Orchestrator) latest(ctx context.Context, repo schema.Repository) (*schema.Analysis, error) {
	if repo.LatestAnalysisID != nil {
		a, err := cache.WrapJSON(ctx, o.cache, AnalysisCacheKey(repo.Owner, repo.Name), AnalysisCacheTTL,
			func(ctx context.Context) (schema.Analysis, error) {
				return o.resolveLatest(ctx, repo)
			})
		if err == nil {
			return &a, nil
		}
		if !errors.Is(err, contract.ErrNotFound) {
			return nil, apperrors.Internal(err)
		}
	}
	a, err := o.resolveLatest(ctx, repo)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &a, nil
}

// resolveLatest reads the newest completed analysis and repairs the pointer when it lags.
func (o *Orchestrator) resolveLatest(ctx context.Context, repo schema.Repository) (schema.Analysis, error) {
	newest, err := o.store.LatestCompletedAnalysis(ctx, repo.ID)
	if err != nil {
		return schema.Analysis{}, err
	}
	if newest == nil {
		return schema.Analysis{}, contract.ErrNotFound
	}
	if repo.LatestAnalysisID == nil || *repo.LatestAnalysisID != newest.ID {
		o.logger.Info("repairing latest analysis pointer", "repository", repo.FullName, "analysis_id", newest.ID)
		if err := o.setLatest(ctx, repo.ID, newest); err != nil {
			return schema.Analysis{}, err
		}
	}
	return *newest, nil
}

func (o *Orchestrator) setLatest(ctx context.Context, repoID int64, a *schema.Analysis) error {
	return o.retry(ctx, "update latest analysis", func() error {
		return o.store.SetLatestAnalysis(ctx, repoID, a.ID, a.QualityScore, a.CreatedAt)
	})
}

// recordFailure keeps a failed record for history. The repository is left untouched.
func (o *Orchestrator) recordFailure(ctx context.Context, repo schema.Repository, opts AnalyzeOptions, cause error, elapsed time.Duration) {
	o.logger.Warn("analysis failed", "repository", repo.FullName, "error", cause)
	failed := &schema.Analysis{
		RepositoryID:     repo.ID,
		RequestID:        o.newID(),
		Status:           schema.StatusFailed,
		ErrorMessage:     cause.Error(),
		TriggeredBy:      opts.TriggeredBy,
		AnalyzedBranch:   repo.DefaultBranch,
		AnalysisDuration: elapsed.Milliseconds(),
		CreatedAt:        o.now().UTC(),
	}
	if err := o.store.SaveAnalysis(ctx, failed); err != nil {
		o.logger.Warn("failed to record analysis failure", "repository", repo.FullName, "error", err)
	}
}

func (o *Orchestrator) producerError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Upstream(apperrors.ErrUpstream, fmt.Errorf("analysis timed out after %s: %w", o.timeout, err))
	}
	if appErr := apperrors.As(err); appErr.IsUpstream() {
		return appErr
	}
	return apperrors.Upstream(apperrors.ErrUpstream, err)
}

// retry runs fn up to writeAttempts times with linear backoff.
func (o *Orchestrator) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		o.logger.Warn("write failed", "op", op, "attempt", attempt, "error", err)
		if attempt == writeAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * o.backoff):
		case <-ctx.Done():
			return fmt.Errorf("failed to %s: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("failed to %s after %d attempts: %w", op, writeAttempts, err)
}

// Invalidate drops every cached value derived from a repository.
func (o *Orchestrator) Invalidate(ctx context.Context, owner, name string) {
	o.cache.Delete(ctx, AnalysisCacheKey(owner, name))
	o.invalidateDerived(ctx, owner, name)
}

// invalidateDerived drops cached badges and statistics of a repository.
func (o *Orchestrator) invalidateDerived(ctx context.Context, owner, name string) {
	keys := o.cache.Keys(ctx, badge.CachePattern(owner, name))
	keys = append(keys, StatsCacheKey)
	o.cache.Delete(ctx, keys...)
}

func newAnalysis(repo schema.Repository, r schema.AnalysisResult, by schema.TriggeredBy, requestID string, start time.Time, elapsed time.Duration) *schema.Analysis {
	branch := r.Branch
	if branch == "" {
		branch = repo.DefaultBranch
	}
	issues, recs := r.Issues, r.Recommendations
	if issues == nil {
		issues = []schema.Issue{}
	}
	if recs == nil {
		recs = []schema.Recommendation{}
	}
	return &schema.Analysis{
		RepositoryID:     repo.ID,
		RequestID:        requestID,
		QualityScore:     r.QualityScore,
		CodeMetrics:      r.CodeMetrics,
		Security:         r.Security,
		Complexity:       r.Complexity,
		Issues:           issues,
		Recommendations:  recs,
		Status:           schema.StatusCompleted,
		TriggeredBy:      by,
		AnalysisVersion:  schema.AnalysisVersion,
		AnalyzedBranch:   branch,
		AnalysisDuration: elapsed.Milliseconds(),
		CreatedAt:        start.UTC(),
	}
}
