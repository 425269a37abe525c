package iocache

import (
	"context"
	"time"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store for testing.
type MockStore struct {
	mock.Mock
}

var _ contract.Store = &MockStore{} // Compile-time check

// CreateRepository implements the Store interface.
func (m *MockStore) CreateRepository(ctx context.Context, repo *schema.Repository) error {
	args := m.Called(ctx, repo)
	return args.Error(0)
}

// GetRepository implements the Store interface.
func (m *MockStore) GetRepository(ctx context.Context, id int64) (schema.Repository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schema.Repository), args.Error(1)
}

// GetRepositoryByName implements the Store interface.
func (m *MockStore) GetRepositoryByName(ctx context.Context, owner, name string) (schema.Repository, error) {
	args := m.Called(ctx, owner, name)
	return args.Get(0).(schema.Repository), args.Error(1)
}

// ListRepositories implements the Store interface.
func (m *MockStore) ListRepositories(ctx context.Context, q schema.RepositoryQuery) ([]schema.Repository, int, error) {
	args := m.Called(ctx, q)
	repos, _ := args.Get(0).([]schema.Repository)
	return repos, args.Int(1), args.Error(2)
}

// ListAutoAnalyze implements the Store interface.
func (m *MockStore) ListAutoAnalyze(ctx context.Context) ([]schema.Repository, error) {
	args := m.Called(ctx)
	repos, _ := args.Get(0).([]schema.Repository)
	return repos, args.Error(1)
}

// UpdateRepository implements the Store interface.
func (m *MockStore) UpdateRepository(ctx context.Context, id int64, upd schema.RepositoryUpdate) (schema.Repository, error) {
	args := m.Called(ctx, id, upd)
	return args.Get(0).(schema.Repository), args.Error(1)
}

// SyncRepository implements the Store interface.
func (m *MockStore) SyncRepository(ctx context.Context, id int64, meta schema.GitHubRepository, at time.Time) (schema.Repository, error) {
	args := m.Called(ctx, id, meta, at)
	return args.Get(0).(schema.Repository), args.Error(1)
}

// DeleteRepository implements the Store interface.
func (m *MockStore) DeleteRepository(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

// SaveAnalysis implements the Store interface.
func (m *MockStore) SaveAnalysis(ctx context.Context, a *schema.Analysis) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

// GetAnalysis implements the Store interface.
func (m *MockStore) GetAnalysis(ctx context.Context, id int64) (schema.Analysis, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schema.Analysis), args.Error(1)
}

// LatestCompletedAnalysis implements the Store interface.
func (m *MockStore) LatestCompletedAnalysis(ctx context.Context, repoID int64) (*schema.Analysis, error) {
	args := m.Called(ctx, repoID)
	a, _ := args.Get(0).(*schema.Analysis)
	return a, args.Error(1)
}

// ListAnalyses implements the Store interface.
func (m *MockStore) ListAnalyses(ctx context.Context, repoID int64, limit int) ([]schema.Analysis, error) {
	args := m.Called(ctx, repoID, limit)
	analyses, _ := args.Get(0).([]schema.Analysis)
	return analyses, args.Error(1)
}

// SetLatestAnalysis implements the Store interface.
func (m *MockStore) SetLatestAnalysis(ctx context.Context, repoID, analysisID int64, score float64, at time.Time) error {
	args := m.Called(ctx, repoID, analysisID, score, at)
	return args.Error(0)
}

// Stats implements the Store interface.
func (m *MockStore) Stats(ctx context.Context) (schema.RepositoryStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.RepositoryStats), args.Error(1)
}

// AllRepositories implements the Store interface.
func (m *MockStore) AllRepositories(ctx context.Context) ([]schema.Repository, error) {
	args := m.Called(ctx)
	repos, _ := args.Get(0).([]schema.Repository)
	return repos, args.Error(1)
}

// AllAnalyses implements the Store interface.
func (m *MockStore) AllAnalyses(ctx context.Context) ([]schema.Analysis, error) {
	args := m.Called(ctx)
	analyses, _ := args.Get(0).([]schema.Analysis)
	return analyses, args.Error(1)
}

// Status implements the Store interface.
func (m *MockStore) Status(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Close implements the Store interface.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
