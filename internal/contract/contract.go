// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"errors"
	"time"

	"github.com/huangsam/codegrade/schema"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Store defines the durable storage of repositories and their analyses.
// This allows the orchestration logic to be tested without a database.
type Store interface {
	// --- Repositories ---

	// CreateRepository inserts a repository and sets its ID.
	// It returns ErrConflict when (owner, name) or githubId is already tracked.
	CreateRepository(ctx context.Context, repo *schema.Repository) error

	GetRepository(ctx context.Context, id int64) (schema.Repository, error)
	GetRepositoryByName(ctx context.Context, owner, name string) (schema.Repository, error)

	// ListRepositories returns one page of repositories and the total match count.
	ListRepositories(ctx context.Context, q schema.RepositoryQuery) ([]schema.Repository, int, error)

	// ListAutoAnalyze returns every repository with auto-analysis enabled.
	ListAutoAnalyze(ctx context.Context) ([]schema.Repository, error)

	UpdateRepository(ctx context.Context, id int64, upd schema.RepositoryUpdate) (schema.Repository, error)

	// SyncRepository refreshes GitHub metadata and lastSyncedAt.
	SyncRepository(ctx context.Context, id int64, meta schema.GitHubRepository, at time.Time) (schema.Repository, error)

	// DeleteRepository removes a repository and all of its analyses in one transaction.
	// It returns the number of analyses removed.
	DeleteRepository(ctx context.Context, id int64) (int64, error)

	// --- Analyses ---

	// SaveAnalysis inserts an analysis and sets its ID. Saving a RequestID that
	// already exists loads the stored record instead of writing a duplicate.
	SaveAnalysis(ctx context.Context, a *schema.Analysis) error

	GetAnalysis(ctx context.Context, id int64) (schema.Analysis, error)

	// LatestCompletedAnalysis returns the newest completed analysis, or nil when there is none.
	LatestCompletedAnalysis(ctx context.Context, repoID int64) (*schema.Analysis, error)

	// ListAnalyses returns the newest analyses first.
	ListAnalyses(ctx context.Context, repoID int64, limit int) ([]schema.Analysis, error)

	// SetLatestAnalysis points the repository at an analysis and denormalizes its score.
	SetLatestAnalysis(ctx context.Context, repoID, analysisID int64, score float64, at time.Time) error

	// --- Aggregates and maintenance ---

	Stats(ctx context.Context) (schema.RepositoryStats, error)
	AllRepositories(ctx context.Context) ([]schema.Repository, error)
	AllAnalyses(ctx context.Context) ([]schema.Analysis, error)
	Status(ctx context.Context) (schema.StoreStatus, error)
	Close() error
}

// GitHubClient fetches repository metadata from GitHub.
type GitHubClient interface {
	GetRepository(ctx context.Context, owner, name string) (schema.GitHubRepository, error)
	GetSnapshot(ctx context.Context, owner, name string) (schema.RepositorySnapshot, error)
}

// AnalysisProducer computes the quality metrics of a repository.
type AnalysisProducer interface {
	PerformFullAnalysis(ctx context.Context, owner, name string) (schema.AnalysisResult, error)
}

// Cache is the key-value cache used by the analysis and badge flows.
// Implementations absorb their own backend errors.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	Exists(ctx context.Context, key string) bool
	Keys(ctx context.Context, pattern string) []string

	// Wrap returns the cached value for key, or runs fn once, stores and returns its result.
	Wrap(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error)
}
