package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/cache"
	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
)

// Paging and validation limits.
const (
	DefaultPageSize    = 10
	MaxPageSize        = 100
	MaxDescriptionLen  = 500
	MaxTagLen          = 50
	DetailHistorySize  = 10
	ByNameHistorySize  = 5
	DefaultHistorySize = 10
)

// AddRequest describes a repository to start tracking.
type AddRequest struct {
	URL     string
	Analyze bool   // analyze right after adding
	AddedBy string // user id from the auth layer, if any
}

// AddResult is the outcome of Add. Analysis is nil when no analysis ran or it failed.
type AddResult struct {
	Repository schema.Repository
	Analysis   *schema.Analysis
}

// RepositoryDetail is a repository with its recent analyses, newest first.
type RepositoryDetail struct {
	Repository     schema.Repository
	LatestAnalysis *schema.Analysis
	Analyses       []schema.Analysis
}

// RepositoryService manages tracked repositories.
type RepositoryService struct {
	store  contract.Store
	github contract.GitHubClient
	orch   *Orchestrator
	cache  contract.Cache
	now    func() time.Time
	logger *slog.Logger
}

// NewRepositoryService creates a repository service.
func NewRepositoryService(store contract.Store, gh contract.GitHubClient, orch *Orchestrator, c contract.Cache, logger *slog.Logger) *RepositoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepositoryService{store: store, github: gh, orch: orch, cache: c, now: time.Now, logger: logger}
}

// Add starts tracking the repository at a GitHub URL.
func (s *RepositoryService) Add(ctx context.Context, req AddRequest) (AddResult, error) {
	repo, err := s.create(ctx, req.URL, req.AddedBy)
	if err != nil {
		return AddResult{}, err
	}
	result := AddResult{Repository: repo}
	if !req.Analyze {
		return result, nil
	}

	out, err := s.orch.Analyze(ctx, repo.Owner, repo.Name, AnalyzeOptions{AutoAnalyze: true, TriggeredBy: schema.TriggerAPI})
	if err != nil {
		s.logger.Warn("initial analysis failed", "repository", repo.FullName, "error", err)
		return result, nil
	}
	return AddResult{Repository: out.Repository, Analysis: out.Analysis}, nil
}

// AnalyzeURL analyzes the repository at a GitHub URL, tracking it first when needed.
// The boolean reports whether the repository was newly added.
func (s *RepositoryService) AnalyzeURL(ctx context.Context, rawURL, addedBy string, force bool) (AnalysisOutcome, bool, error) {
	owner, name, err := schema.ParseRepoURL(rawURL)
	if err != nil {
		return AnalysisOutcome{}, false, apperrors.Validation("Please provide a valid GitHub repository URL")
	}

	added := false
	_, err = s.store.GetRepositoryByName(ctx, owner, name)
	switch {
	case errors.Is(err, contract.ErrNotFound):
		if _, err := s.create(ctx, rawURL, addedBy); err != nil && !apperrors.HasCode(err, apperrors.ErrConflict) {
			return AnalysisOutcome{}, false, err
		}
		added = true
	case err != nil:
		return AnalysisOutcome{}, false, apperrors.Internal(err)
	}

	out, err := s.orch.Analyze(ctx, owner, name, AnalyzeOptions{AutoAnalyze: true, Force: force, TriggeredBy: schema.TriggerAPI})
	return out, added, err
}

// Reanalyze runs a forced analysis of a tracked repository.
func (s *RepositoryService) Reanalyze(ctx context.Context, id int64) (AnalysisOutcome, error) {
	repo, err := s.get(ctx, id)
	if err != nil {
		return AnalysisOutcome{}, err
	}
	return s.orch.Analyze(ctx, repo.Owner, repo.Name, AnalyzeOptions{Force: true, TriggeredBy: schema.TriggerManual})
}

func (s *RepositoryService) create(ctx context.Context, rawURL, addedBy string) (schema.Repository, error) {
	owner, name, err := schema.ParseRepoURL(rawURL)
	if err != nil {
		return schema.Repository{}, apperrors.Validation("Please provide a valid GitHub repository URL")
	}

	existing, err := s.store.GetRepositoryByName(ctx, owner, name)
	if err == nil {
		return schema.Repository{}, apperrors.Conflict(existing, "This repository is already being tracked")
	}
	if !errors.Is(err, contract.ErrNotFound) {
		return schema.Repository{}, apperrors.Internal(err)
	}

	meta, err := s.github.GetRepository(ctx, owner, name)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrUpstreamNotFound) {
			return schema.Repository{}, apperrors.NotFound("Repository not found on GitHub or not accessible")
		}
		return schema.Repository{}, err
	}

	repo := newRepository(meta, addedBy)
	if err := s.store.CreateRepository(ctx, &repo); err != nil {
		if errors.Is(err, contract.ErrConflict) {
			// Lost a race with a concurrent add.
			existing, getErr := s.store.GetRepositoryByName(ctx, owner, name)
			if getErr != nil {
				existing = repo
			}
			return schema.Repository{}, apperrors.Conflict(existing, "This repository is already being tracked")
		}
		return schema.Repository{}, apperrors.Internal(err)
	}
	s.cache.Delete(ctx, StatsCacheKey)

	addedByLog := addedBy
	if addedByLog == "" {
		addedByLog = "anonymous"
	}
	s.logger.Info("repository added", "repository", repo.FullName, "added_by", addedByLog)
	return repo, nil
}

func newRepository(meta schema.GitHubRepository, addedBy string) schema.Repository {
	createdAt, updatedAt := meta.CreatedAt, meta.UpdatedAt
	repo := schema.Repository{
		GitHubID:          meta.ID,
		Owner:             schema.NormalizeName(meta.Owner),
		Name:              schema.NormalizeName(meta.Name),
		FullName:          meta.Owner + "/" + meta.Name,
		Description:       meta.Description,
		Language:          schema.CapitalizeFirst(meta.Language),
		URL:               meta.URL,
		CloneURL:          meta.CloneURL,
		DefaultBranch:     meta.DefaultBranch,
		Stars:             meta.Stars,
		Forks:             meta.Forks,
		OpenIssues:        meta.OpenIssues,
		Size:              meta.Size,
		IsPrivate:         meta.IsPrivate,
		Tags:              []string{},
		AutoAnalyze:       true,
		AnalysisFrequency: schema.FrequencyWeekly,
		AddedBy:           addedBy,
	}
	if !createdAt.IsZero() {
		repo.GitHubCreatedAt = &createdAt
	}
	if !updatedAt.IsZero() {
		repo.GitHubUpdatedAt = &updatedAt
	}
	return repo
}

// List returns one page of tracked repositories.
func (s *RepositoryService) List(ctx context.Context, q schema.RepositoryQuery) (schema.RepositoryPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	q.Limit = min(q.Limit, MaxPageSize)
	if q.SortOrder != "asc" {
		q.SortOrder = "desc"
	}
	if q.MinScore != nil && q.MaxScore != nil && *q.MinScore > *q.MaxScore {
		return schema.RepositoryPage{}, apperrors.Validation("minScore must not exceed maxScore")
	}

	repos, total, err := s.store.ListRepositories(ctx, q)
	if err != nil {
		return schema.RepositoryPage{}, apperrors.Internal(err)
	}
	if repos == nil {
		repos = []schema.Repository{}
	}
	return schema.RepositoryPage{Repositories: repos, Pagination: paginate(q.Page, q.Limit, total)}, nil
}

func paginate(page, limit, total int) schema.Pagination {
	pages := (total + limit - 1) / limit
	return schema.Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalItems:  total,
		HasNext:     page < pages,
		HasPrev:     page > 1,
	}
}

// Get returns a repository with its latest analyses.
func (s *RepositoryService) Get(ctx context.Context, id int64) (RepositoryDetail, error) {
	repo, err := s.get(ctx, id)
	if err != nil {
		return RepositoryDetail{}, err
	}
	return s.detail(ctx, repo, DetailHistorySize)
}

// GetByName returns a repository by owner and name with its latest analyses.
func (s *RepositoryService) GetByName(ctx context.Context, owner, name string) (RepositoryDetail, error) {
	repo, err := s.store.GetRepositoryByName(ctx, owner, name)
	if errors.Is(err, contract.ErrNotFound) {
		return RepositoryDetail{}, apperrors.NotFound("Repository %s is not being tracked", schema.FullName(owner, name))
	}
	if err != nil {
		return RepositoryDetail{}, apperrors.Internal(err)
	}
	return s.detail(ctx, repo, ByNameHistorySize)
}

func (s *RepositoryService) detail(ctx context.Context, repo schema.Repository, limit int) (RepositoryDetail, error) {
	analyses, err := s.store.ListAnalyses(ctx, repo.ID, limit)
	if err != nil {
		return RepositoryDetail{}, apperrors.Internal(err)
	}
	d := RepositoryDetail{Repository: repo, Analyses: analyses}
	if repo.LatestAnalysisID != nil {
		for i := range analyses {
			if analyses[i].ID == *repo.LatestAnalysisID {
				d.LatestAnalysis = &analyses[i]
				break
			}
		}
		if d.LatestAnalysis == nil {
			if a, err := s.store.GetAnalysis(ctx, *repo.LatestAnalysisID); err == nil {
				d.LatestAnalysis = &a
			}
		}
	}
	return d, nil
}

func (s *RepositoryService) get(ctx context.Context, id int64) (schema.Repository, error) {
	repo, err := s.store.GetRepository(ctx, id)
	if errors.Is(err, contract.ErrNotFound) {
		return repo, apperrors.NotFound("No repository found with the provided ID")
	}
	if err != nil {
		return repo, apperrors.Internal(err)
	}
	return repo, nil
}

// ValidateUpdate checks the mutable fields of a repository update.
func ValidateUpdate(upd schema.RepositoryUpdate) error {
	var problems []string
	if upd.Description != nil && len([]rune(*upd.Description)) > MaxDescriptionLen {
		problems = append(problems, fmt.Sprintf("description must be at most %d characters", MaxDescriptionLen))
	}
	for _, tag := range upd.Tags {
		if n := len([]rune(strings.TrimSpace(tag))); n < 1 || n > MaxTagLen {
			problems = append(problems, fmt.Sprintf("tags must be between 1 and %d characters", MaxTagLen))
			break
		}
	}
	if upd.AnalysisFrequency != nil {
		if _, ok := schema.ValidFrequencies[*upd.AnalysisFrequency]; !ok {
			problems = append(problems, fmt.Sprintf("analysisFrequency %q is not one of manual, daily, weekly, monthly", *upd.AnalysisFrequency))
		}
	}
	if len(problems) > 0 {
		return apperrors.Validation("%s", strings.Join(problems, "; "))
	}
	return nil
}

// Update changes the mutable fields of a repository.
func (s *RepositoryService) Update(ctx context.Context, id int64, upd schema.RepositoryUpdate) (schema.Repository, error) {
	if err := ValidateUpdate(upd); err != nil {
		return schema.Repository{}, err
	}
	for i, tag := range upd.Tags {
		upd.Tags[i] = strings.TrimSpace(tag)
	}
	repo, err := s.store.UpdateRepository(ctx, id, upd)
	if errors.Is(err, contract.ErrNotFound) {
		return repo, apperrors.NotFound("No repository found with the provided ID")
	}
	if err != nil {
		return repo, apperrors.Internal(err)
	}
	s.logger.Info("repository updated", "repository", repo.FullName)
	return repo, nil
}

// Delete stops tracking a repository and drops its analyses and cached values.
func (s *RepositoryService) Delete(ctx context.Context, id int64) error {
	repo, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	removed, err := s.store.DeleteRepository(ctx, id)
	if errors.Is(err, contract.ErrNotFound) {
		return apperrors.NotFound("No repository found with the provided ID")
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	s.orch.Invalidate(ctx, repo.Owner, repo.Name)
	s.logger.Info("repository deleted", "repository", repo.FullName, "analyses", removed)
	return nil
}

// Sync refreshes a repository's GitHub metadata.
func (s *RepositoryService) Sync(ctx context.Context, id int64) (schema.Repository, error) {
	repo, err := s.get(ctx, id)
	if err != nil {
		return repo, err
	}
	meta, err := s.github.GetRepository(ctx, repo.Owner, repo.Name)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrUpstreamNotFound) {
			return repo, apperrors.NotFound("Repository may have been deleted or made private")
		}
		return repo, err
	}
	meta.Language = schema.CapitalizeFirst(meta.Language)
	updated, err := s.store.SyncRepository(ctx, id, meta, s.now().UTC())
	if err != nil {
		return repo, apperrors.Internal(err)
	}
	s.cache.Delete(ctx, StatsCacheKey)
	s.logger.Info("repository synced", "repository", updated.FullName)
	return updated, nil
}

// Stats returns aggregate statistics over all tracked repositories.
func (s *RepositoryService) Stats(ctx context.Context) (schema.RepositoryStats, error) {
	stats, err := cache.WrapJSON(ctx, s.cache, StatsCacheKey, StatsCacheTTL, s.store.Stats)
	if err != nil {
		return stats, apperrors.Internal(err)
	}
	return stats, nil
}

// History returns the latest analyses of a repository, newest first.
func (s *RepositoryService) History(ctx context.Context, repoID int64, limit int) ([]schema.Analysis, error) {
	if _, err := s.get(ctx, repoID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = DefaultHistorySize
	}
	analyses, err := s.store.ListAnalyses(ctx, repoID, min(limit, MaxPageSize))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return analyses, nil
}

// GetAnalysis returns one analysis by id.
func (s *RepositoryService) GetAnalysis(ctx context.Context, id int64) (schema.Analysis, error) {
	a, err := s.store.GetAnalysis(ctx, id)
	if errors.Is(err, contract.ErrNotFound) {
		return a, apperrors.NotFound("No analysis found with the provided ID")
	}
	if err != nil {
		return a, apperrors.Internal(err)
	}
	return a, nil
}

// Compare returns the differences from one analysis to another.
func (s *RepositoryService) Compare(ctx context.Context, baseID, targetID int64) (schema.AnalysisComparison, error) {
	base, err := s.GetAnalysis(ctx, baseID)
	if err != nil {
		return schema.AnalysisComparison{}, err
	}
	target, err := s.GetAnalysis(ctx, targetID)
	if err != nil {
		return schema.AnalysisComparison{}, err
	}
	return schema.CompareAnalyses(base, target), nil
}
