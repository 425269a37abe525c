package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/codegrade/internal/ratelimit"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// hello-world has never been analyzed, so it is due.
	stale := &schema.Repository{GitHubID: 2, Owner: "acme", Name: "stale", AutoAnalyze: true, AnalysisFrequency: schema.FrequencyDaily}
	fresh := &schema.Repository{GitHubID: 3, Owner: "acme", Name: "fresh", AutoAnalyze: true, AnalysisFrequency: schema.FrequencyWeekly}
	manual := &schema.Repository{GitHubID: 4, Owner: "acme", Name: "manual", AutoAnalyze: false, AnalysisFrequency: schema.FrequencyDaily}
	for _, r := range []*schema.Repository{stale, fresh, manual} {
		require.NoError(t, h.store.CreateRepository(ctx, r))
	}
	now := time.Now().UTC()
	for _, seed := range []struct {
		repo *schema.Repository
		at   time.Time
	}{{stale, now.Add(-48 * time.Hour)}, {fresh, now.Add(-24 * time.Hour)}} {
		a := &schema.Analysis{RepositoryID: seed.repo.ID, RequestID: seed.repo.Name, QualityScore: 50,
			Status: schema.StatusCompleted, TriggeredBy: schema.TriggerScheduled, CreatedAt: seed.at}
		require.NoError(t, h.store.SaveAnalysis(ctx, a))
		require.NoError(t, h.store.SetLatestAnalysis(ctx, seed.repo.ID, a.ID, a.QualityScore, seed.at))
	}

	h.producer.On("PerformFullAnalysis", mock.Anything, "octocat", "hello-world").Return(sampleResult(70), nil).Once()
	h.producer.On("PerformFullAnalysis", mock.Anything, "acme", "stale").Return(schema.AnalysisResult{}, errors.New("boom")).Once()

	s := NewScheduler(h.store, h.orch, "@hourly", nil, nil)
	report, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScheduleReport{Checked: 3, Analyzed: 1, Failed: 1}, report)
	h.producer.AssertExpectations(t)

	history, err := h.store.ListAnalyses(ctx, h.repo.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, schema.TriggerScheduled, history[0].TriggeredBy)
}

func TestScheduler_Start(t *testing.T) {
	h := newHarness(t)
	janitor := ratelimit.NewJanitor(ratelimit.NewMemoryStore(), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewScheduler(h.store, h.orch, "@every 1h", janitor, nil)
	require.NoError(t, s.Start(ctx))
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()

	bad := NewScheduler(h.store, h.orch, "not a schedule", nil, nil)
	assert.Error(t, bad.Start(ctx))
}

func TestScheduler_Disabled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(h.store, h.orch, "", nil, nil)
	require.NoError(t, s.Start(ctx))
	assert.Empty(t, s.cron.Entries())
	s.Stop()
}
