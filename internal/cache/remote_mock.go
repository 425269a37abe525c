package cache

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockRemoteTier is a mock implementation of RemoteTier for testing.
type MockRemoteTier struct {
	mock.Mock
}

var _ RemoteTier = &MockRemoteTier{} // Compile-time check

// Get implements the RemoteTier interface.
func (m *MockRemoteTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Bool(1), args.Error(2)
}

// Set implements the RemoteTier interface.
func (m *MockRemoteTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

// Delete implements the RemoteTier interface.
func (m *MockRemoteTier) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

// Exists implements the RemoteTier interface.
func (m *MockRemoteTier) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// Keys implements the RemoteTier interface.
func (m *MockRemoteTier) Keys(ctx context.Context, pattern string) ([]string, error) {
	args := m.Called(ctx, pattern)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

// TTL implements the RemoteTier interface.
func (m *MockRemoteTier) TTL(ctx context.Context, key string) (time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(time.Duration), args.Error(1)
}

// Flush implements the RemoteTier interface.
func (m *MockRemoteTier) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Size implements the RemoteTier interface.
func (m *MockRemoteTier) Size(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MemoryUsed implements the RemoteTier interface.
func (m *MockRemoteTier) MemoryUsed(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Ping implements the RemoteTier interface.
func (m *MockRemoteTier) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Close implements the RemoteTier interface.
func (m *MockRemoteTier) Close() error {
	return m.Called().Error(0)
}
