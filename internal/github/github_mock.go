package github

import (
	"context"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of GitHubClient for testing.
type MockClient struct {
	mock.Mock
}

var _ contract.GitHubClient = &MockClient{} // Compile-time check

// GetRepository implements the GitHubClient interface.
func (m *MockClient) GetRepository(ctx context.Context, owner, name string) (schema.GitHubRepository, error) {
	args := m.Called(ctx, owner, name)
	return args.Get(0).(schema.GitHubRepository), args.Error(1)
}

// GetSnapshot implements the GitHubClient interface.
func (m *MockClient) GetSnapshot(ctx context.Context, owner, name string) (schema.RepositorySnapshot, error) {
	args := m.Called(ctx, owner, name)
	return args.Get(0).(schema.RepositorySnapshot), args.Error(1)
}
