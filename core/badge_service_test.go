package core

import (
	"context"
	"errors"
	"testing"

	"github.com/huangsam/codegrade/core/badge"
	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/iocache"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBadgeService_Badge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "hello-world").Return(sampleResult(92), nil).Once()
	svc := NewBadgeService(h.store, h.orch, h.cache, nil)

	// The tracked repository has autoAnalyze enabled, so the first badge analyzes it.
	svg := svc.Badge(ctx, "OctoCat", "Hello-World", schema.BadgeQuality, "")
	assert.Contains(t, svg, ">92/100</text>")
	assert.Contains(t, svg, badge.ColorBrightGreen)
	assert.True(t, h.cache.Exists(ctx, "badge:octocat:hello-world:flat"))

	assert.Equal(t, svg, svc.Badge(ctx, "octocat", "hello-world", schema.BadgeQuality, "flat"))
	h.producer.AssertNumberOfCalls(t, "PerformFullAnalysis", 1)

	security := svc.Badge(ctx, "octocat", "hello-world", schema.BadgeSecurity, "plastic")
	assert.Contains(t, security, ">90/100</text>")
	assert.Contains(t, security, `rx="3"`)
	assert.True(t, h.cache.Exists(ctx, "badge:octocat:hello-world:plastic:security"))

	assert.Contains(t, svc.Badge(ctx, "octocat", "hello-world", schema.BadgeCoverage, ""), ">60%</text>")
	assert.Contains(t, svc.Badge(ctx, "octocat", "hello-world", schema.BadgeComplexity, ""), ">A</text>")
}

func TestBadgeService_UnknownBadges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	svc := NewBadgeService(h.store, h.orch, h.cache, nil)

	assert.Equal(t, badge.Unknown(schema.BadgeQuality), svc.Badge(ctx, "octocat", "untracked", schema.BadgeQuality, ""))
	assert.Equal(t, badge.Unknown(schema.BadgeSecurity), svc.Badge(ctx, "octocat", "untracked", schema.BadgeSecurity, "plastic"))
	assert.Equal(t, badge.Unknown(schema.BadgeQuality), svc.Badge(ctx, "octocat", "untracked", "bogus", ""))
	h.producer.AssertNotCalled(t, "PerformFullAnalysis", mock.Anything, mock.Anything, mock.Anything)
}

func TestBadgeService_NoAutoAnalyzeRendersUnknown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	off := false
	_, err := h.store.UpdateRepository(ctx, h.repo.ID, schema.RepositoryUpdate{AutoAnalyze: &off})
	require.NoError(t, err)
	svc := NewBadgeService(h.store, h.orch, h.cache, nil)

	assert.Equal(t, badge.Unknown(schema.BadgeQuality), svc.Badge(ctx, "octocat", "hello-world", schema.BadgeQuality, ""))
	h.producer.AssertNotCalled(t, "PerformFullAnalysis", mock.Anything, mock.Anything, mock.Anything)
}

func TestBadgeService_TransientErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	store := &iocache.MockStore{}
	store.On("GetRepositoryByName", mock.Anything, "octocat", "hello-world").
		Return(schema.Repository{}, errors.New("connection refused"))
	svc := NewBadgeService(store, h.orch, h.cache, nil)

	assert.Equal(t, badge.Unknown(schema.BadgeCoverage), svc.Badge(ctx, "octocat", "hello-world", schema.BadgeCoverage, ""))
	assert.False(t, h.cache.Exists(ctx, "badge:octocat:hello-world:flat:coverage"))
}

func TestBadgeService_AnalysisRefreshInvalidatesBadges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "hello-world").Return(sampleResult(55), nil).Once()
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "hello-world").Return(sampleResult(85), nil).Once()
	svc := NewBadgeService(h.store, h.orch, h.cache, nil)

	assert.Contains(t, svc.Badge(ctx, "octocat", "hello-world", schema.BadgeQuality, ""), ">55/100</text>")
	_, err := h.orch.Analyze(ctx, "octocat", "hello-world", AnalyzeOptions{Force: true})
	require.NoError(t, err)
	assert.Contains(t, svc.Badge(ctx, "octocat", "hello-world", schema.BadgeQuality, ""), ">85/100</text>")
}

func TestBadgeService_Variants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	svc := NewBadgeService(h.store, h.orch, h.cache, nil)

	_, err := svc.Variants(ctx, "octocat", "hello-world", "http://localhost:3001")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	assert.Equal(t, "Repository not found or not analyzed yet", apperrors.As(err).Message)

	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "hello-world").Return(sampleResult(77), nil).Once()
	_, err = h.orch.Analyze(ctx, "octocat", "hello-world", AnalyzeOptions{AutoAnalyze: true})
	require.NoError(t, err)

	v, err := svc.Variants(ctx, "OctoCat", "hello-world", "http://localhost:3001/")
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", v.Repository)
	assert.Len(t, v.Badges, 4)
	assert.Equal(t, "/api/analysis/badge/octocat/hello-world?style=flat", v.Badges[schema.BadgeQuality].URL)
	assert.Equal(t, "/api/analysis/badge/octocat/hello-world/security?style=flat", v.Badges[schema.BadgeSecurity].URL)
	assert.Equal(t, "![Test Coverage](http://localhost:3001/api/analysis/badge/octocat/hello-world/coverage)",
		v.Badges[schema.BadgeCoverage].Markdown)
	assert.Equal(t, 77.0, v.Scores[schema.BadgeQuality])
	assert.Equal(t, 90.0, v.Scores[schema.BadgeSecurity])
	assert.Equal(t, schema.GradeA, v.Scores[schema.BadgeComplexity])
}

func TestBadgePath(t *testing.T) {
	assert.Equal(t, "/api/analysis/badge/a/b", BadgePath("a", "b", schema.BadgeQuality))
	assert.Equal(t, "/api/analysis/badge/a/b/complexity", BadgePath("a", "b", schema.BadgeComplexity))
}
