package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/github"
	"github.com/huangsam/codegrade/internal/iocache"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func spoonKnife() schema.GitHubRepository {
	return schema.GitHubRepository{
		ID:            1300192,
		Owner:         "octocat",
		Name:          "Spoon-Knife",
		Description:   "This repo is for demonstration purposes only.",
		Language:      "html",
		URL:           "https://github.com/octocat/Spoon-Knife",
		CloneURL:      "https://github.com/octocat/Spoon-Knife.git",
		DefaultBranch: "main",
		Stars:         12000,
		Forks:         140000,
		CreatedAt:     time.Date(2011, 1, 27, 0, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newService(t *testing.T) (*harness, *github.MockClient, *RepositoryService) {
	t.Helper()
	h := newHarness(t)
	gh := &github.MockClient{}
	return h, gh, NewRepositoryService(h.store, gh, h.orch, h.cache, nil)
}

func TestRepositoryService_Add(t *testing.T) {
	ctx := context.Background()
	h, gh, svc := newService(t)
	gh.On("GetRepository", mock.Anything, "octocat", "spoon-knife").Return(spoonKnife(), nil)
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "spoon-knife").Return(sampleResult(81), nil)

	res, err := svc.Add(ctx, AddRequest{URL: "https://github.com/octocat/Spoon-Knife.git", Analyze: true, AddedBy: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "octocat", res.Repository.Owner)
	assert.Equal(t, "spoon-knife", res.Repository.Name)
	assert.Equal(t, "Html", res.Repository.Language)
	assert.Equal(t, "u1", res.Repository.AddedBy)
	assert.True(t, res.Repository.AutoAnalyze)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, 81.0, res.Analysis.QualityScore)
	require.NotNil(t, res.Repository.LatestAnalysisID)
	assert.Equal(t, res.Analysis.ID, *res.Repository.LatestAnalysisID)

	_, err = svc.Add(ctx, AddRequest{URL: "https://github.com/OctoCat/spoon-knife"})
	require.Error(t, err)
	appErr := apperrors.As(err)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
	assert.Equal(t, "This repository is already being tracked", appErr.Message)
	existing, ok := appErr.Data.(schema.Repository)
	require.True(t, ok)
	assert.Equal(t, res.Repository.ID, existing.ID)
	gh.AssertNumberOfCalls(t, "GetRepository", 1)
}

func TestRepositoryService_AddFailures(t *testing.T) {
	ctx := context.Background()
	h, gh, svc := newService(t)

	_, err := svc.Add(ctx, AddRequest{URL: "https://gitlab.com/octocat/spoon-knife"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	gh.On("GetRepository", mock.Anything, "octocat", "gone").
		Return(schema.GitHubRepository{}, apperrors.Upstream(apperrors.ErrUpstreamNotFound, errors.New("Could not resolve")))
	_, err = svc.Add(ctx, AddRequest{URL: "https://github.com/octocat/gone"})
	require.Error(t, err)
	assert.Equal(t, "Repository not found on GitHub or not accessible", apperrors.As(err).Message)
	assert.Equal(t, 404, apperrors.As(err).HTTPStatus())

	gh.On("GetRepository", mock.Anything, "octocat", "limited").
		Return(schema.GitHubRepository{}, apperrors.Upstream(apperrors.ErrUpstreamLimited, errors.New("rate limit")))
	_, err = svc.Add(ctx, AddRequest{URL: "https://github.com/octocat/limited"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUpstreamLimited))

	// An analysis failure still adds the repository.
	gh.On("GetRepository", mock.Anything, "octocat", "spoon-knife").Return(spoonKnife(), nil)
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "spoon-knife").
		Return(schema.AnalysisResult{}, errors.New("boom"))
	res, err := svc.Add(ctx, AddRequest{URL: "https://github.com/octocat/spoon-knife", Analyze: true})
	require.NoError(t, err)
	assert.Nil(t, res.Analysis)
	assert.NotZero(t, res.Repository.ID)
}

func TestRepositoryService_AnalyzeURL(t *testing.T) {
	ctx := context.Background()
	h, gh, svc := newService(t)
	gh.On("GetRepository", mock.Anything, "octocat", "spoon-knife").Return(spoonKnife(), nil)
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "spoon-knife").Return(sampleResult(81), nil)
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "hello-world").Return(sampleResult(60), nil)

	out, added, err := svc.AnalyzeURL(ctx, "https://github.com/octocat/spoon-knife", "", false)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, out.Fresh)

	out, added, err = svc.AnalyzeURL(ctx, "https://github.com/octocat/hello-world", "", false)
	require.NoError(t, err)
	assert.False(t, added, "already tracked")
	assert.Equal(t, 60.0, out.Analysis.QualityScore)

	_, _, err = svc.AnalyzeURL(ctx, "not a url", "", false)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}

func TestRepositoryService_List(t *testing.T) {
	ctx := context.Background()
	h, _, svc := newService(t)
	for i, name := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, h.store.CreateRepository(ctx, &schema.Repository{
			GitHubID: int64(100 + i), Owner: "acme", Name: name, AnalysisFrequency: schema.FrequencyWeekly,
		}))
	}

	page, err := svc.List(ctx, schema.RepositoryQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Repositories, 2)
	assert.Equal(t, schema.Pagination{CurrentPage: 1, TotalPages: 2, TotalItems: 4, HasNext: true}, page.Pagination)

	page, err = svc.List(ctx, schema.RepositoryQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, schema.Pagination{CurrentPage: 2, TotalPages: 2, TotalItems: 4, HasPrev: true}, page.Pagination)

	page, err = svc.List(ctx, schema.RepositoryQuery{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Repositories)
	assert.NotNil(t, page.Repositories)

	lo, hi := 80.0, 20.0
	_, err = svc.List(ctx, schema.RepositoryQuery{MinScore: &lo, MaxScore: &hi})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}

func TestPaginate(t *testing.T) {
	assert.Equal(t, schema.Pagination{CurrentPage: 1}, paginate(1, 10, 0))
	assert.Equal(t, schema.Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 10}, paginate(1, 10, 10))
	assert.Equal(t, schema.Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 21, HasNext: true, HasPrev: true}, paginate(2, 10, 21))
}

func TestRepositoryService_GetWithHistory(t *testing.T) {
	ctx := context.Background()
	h, _, svc := newService(t)
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "hello-world").Return(sampleResult(70), nil)
	for range 3 {
		_, err := h.orch.Analyze(ctx, "octocat", "hello-world", AnalyzeOptions{Force: true})
		require.NoError(t, err)
	}

	d, err := svc.Get(ctx, h.repo.ID)
	require.NoError(t, err)
	assert.Len(t, d.Analyses, 3)
	require.NotNil(t, d.LatestAnalysis)
	assert.Equal(t, d.Analyses[0].ID, d.LatestAnalysis.ID)

	d, err = svc.GetByName(ctx, "OctoCat", "Hello-World")
	require.NoError(t, err)
	assert.Equal(t, h.repo.ID, d.Repository.ID)

	_, err = svc.Get(ctx, 9999)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	_, err = svc.GetByName(ctx, "octocat", "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	history, err := svc.History(ctx, h.repo.ID, 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	cmp, err := svc.Compare(ctx, history[1].ID, history[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cmp.QualityScoreDiff)
	assert.Equal(t, history[0].ID, cmp.Target.ID)

	_, err = svc.Compare(ctx, history[0].ID, 9999)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	_, err = svc.History(ctx, 9999, 10)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestValidateUpdate(t *testing.T) {
	long := string(make([]rune, MaxDescriptionLen+1))
	ok := "fine"
	bad := schema.Frequency("hourly")
	daily := schema.FrequencyDaily

	tests := []struct {
		name    string
		upd     schema.RepositoryUpdate
		wantErr bool
	}{
		{"empty", schema.RepositoryUpdate{}, false},
		{"description", schema.RepositoryUpdate{Description: &ok}, false},
		{"description too long", schema.RepositoryUpdate{Description: &long}, true},
		{"tags", schema.RepositoryUpdate{Tags: []string{"go", "backend"}}, false},
		{"blank tag", schema.RepositoryUpdate{Tags: []string{"go", "  "}}, true},
		{"long tag", schema.RepositoryUpdate{Tags: []string{string(make([]byte, 51))}}, true},
		{"frequency", schema.RepositoryUpdate{AnalysisFrequency: &daily}, false},
		{"bad frequency", schema.RepositoryUpdate{AnalysisFrequency: &bad}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpdate(tt.upd)
			if tt.wantErr {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRepositoryService_Update(t *testing.T) {
	ctx := context.Background()
	h, _, svc := newService(t)
	desc := "Updated"
	off := false

	repo, err := svc.Update(ctx, h.repo.ID, schema.RepositoryUpdate{Description: &desc, Tags: []string{" go "}, AutoAnalyze: &off})
	require.NoError(t, err)
	assert.Equal(t, "Updated", repo.Description)
	assert.Equal(t, []string{"go"}, repo.Tags)
	assert.False(t, repo.AutoAnalyze)

	_, err = svc.Update(ctx, 9999, schema.RepositoryUpdate{Description: &desc})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestRepositoryService_Delete(t *testing.T) {
	ctx := context.Background()
	h, _, svc := newService(t)
	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "hello-world").Return(sampleResult(70), nil)
	_, err := h.orch.Analyze(ctx, "octocat", "hello-world", AnalyzeOptions{AutoAnalyze: true})
	require.NoError(t, err)
	h.cache.Set(ctx, "badge:octocat:hello-world:flat", []byte("<svg/>"), time.Hour)

	require.NoError(t, svc.Delete(ctx, h.repo.ID))
	assert.False(t, h.cache.Exists(ctx, AnalysisCacheKey("octocat", "hello-world")))
	assert.False(t, h.cache.Exists(ctx, "badge:octocat:hello-world:flat"))

	_, err = svc.Get(ctx, h.repo.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	all, err := h.store.AllAnalyses(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.True(t, apperrors.HasCode(svc.Delete(ctx, h.repo.ID), apperrors.ErrNotFound))
}

func TestRepositoryService_Sync(t *testing.T) {
	ctx := context.Background()
	h, gh, svc := newService(t)
	meta := schema.GitHubRepository{
		ID: 1296269, Owner: "octocat", Name: "Hello-World", Description: "fresh", Language: "rust",
		Stars: 3000, DefaultBranch: "main", UpdatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	gh.On("GetRepository", mock.Anything, "octocat", "hello-world").Return(meta, nil).Once()
	gh.On("GetRepository", mock.Anything, "octocat", "hello-world").
		Return(schema.GitHubRepository{}, apperrors.Upstream(apperrors.ErrUpstreamNotFound, errors.New("gone"))).Once()

	repo, err := svc.Sync(ctx, h.repo.ID)
	require.NoError(t, err)
	assert.Equal(t, 3000, repo.Stars)
	assert.Equal(t, "fresh", repo.Description)
	assert.Equal(t, "Rust", repo.Language)
	assert.NotNil(t, repo.LastSyncedAt)

	_, err = svc.Sync(ctx, h.repo.ID)
	require.Error(t, err)
	assert.Equal(t, "Repository may have been deleted or made private", apperrors.As(err).Message)
}

func TestRepositoryService_StatsAreCached(t *testing.T) {
	ctx := context.Background()
	store := &iocache.MockStore{}
	h := newHarness(t)
	svc := NewRepositoryService(store, &github.MockClient{}, h.orch, h.cache, nil)

	store.On("Stats", mock.Anything).Return(schema.RepositoryStats{TotalRepositories: 3, AverageQualityScore: 72}, nil).Once()

	for range 3 {
		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalRepositories)
	}
	store.AssertNumberOfCalls(t, "Stats", 1)
	assert.True(t, h.cache.Exists(ctx, StatsCacheKey))
}
