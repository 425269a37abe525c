package algo

import (
	"context"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/mock"
)

// MockAnalyzer is a mock implementation of AnalysisProducer for testing.
type MockAnalyzer struct {
	mock.Mock
}

var _ contract.AnalysisProducer = &MockAnalyzer{} // Compile-time check

// PerformFullAnalysis implements the AnalysisProducer interface.
func (m *MockAnalyzer) PerformFullAnalysis(ctx context.Context, owner, name string) (schema.AnalysisResult, error) {
	args := m.Called(ctx, owner, name)
	return args.Get(0).(schema.AnalysisResult), args.Error(1)
}
