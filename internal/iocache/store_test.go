package iocache

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *StoreImpl {
	t.Helper()
	store, err := NewStore(schema.SQLiteBackend, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRepository(owner, name string, githubID int64) *schema.Repository {
	return &schema.Repository{
		GitHubID:          githubID,
		Owner:             owner,
		Name:              name,
		Description:       "A sample repository",
		Language:          "Go",
		URL:               "https://github.com/" + owner + "/" + name,
		DefaultBranch:     "main",
		Stars:             10,
		AutoAnalyze:       true,
		AnalysisFrequency: schema.FrequencyWeekly,
	}
}

func completedAnalysis(repoID int64, requestID string, score float64, at time.Time) *schema.Analysis {
	return &schema.Analysis{
		RepositoryID: repoID,
		RequestID:    requestID,
		QualityScore: score,
		CodeMetrics:  schema.CodeMetrics{LinesOfCode: 1000, TestCoverage: 55},
		Security:     schema.Security{SecurityScore: 80, Vulnerabilities: []schema.Vulnerability{}},
		Complexity:   schema.Complexity{AverageComplexity: 3.5, ComplexityGrade: schema.GradeA},
		Issues:       []schema.Issue{{Category: schema.CategoryStyle, Severity: schema.SeverityLow, Message: "long line"}},
		Trends:       schema.Trends{QualityScoreDelta: 1.5},
		Status:       schema.StatusCompleted,
		TriggeredBy:  schema.TriggerAPI,
		CreatedAt:    at,
	}
}

func TestStore_RepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	repo := sampleRepository("OctoCat", "Hello-World", 1296269)
	require.NoError(t, store.CreateRepository(ctx, repo))
	assert.Positive(t, repo.ID)
	assert.Equal(t, "octocat/hello-world", repo.FullName)

	got, err := store.GetRepositoryByName(ctx, "octocat", "HELLO-WORLD")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, got.ID)
	assert.Equal(t, []string{}, got.Tags)
	assert.Nil(t, got.LastQualityScore)
	assert.Nil(t, got.LatestAnalysisID)
	assert.True(t, got.AutoAnalyze)

	dup := sampleRepository("octocat", "hello-world", 99)
	assert.ErrorIs(t, store.CreateRepository(ctx, dup), contract.ErrConflict)

	desc := "updated"
	freq := schema.FrequencyDaily
	updated, err := store.UpdateRepository(ctx, repo.ID, schema.RepositoryUpdate{
		Description:       &desc,
		Tags:              []string{"go", "demo"},
		AnalysisFrequency: &freq,
	})
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Description)
	assert.Equal(t, []string{"go", "demo"}, updated.Tags)
	assert.Equal(t, schema.FrequencyDaily, updated.AnalysisFrequency)

	syncedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	synced, err := store.SyncRepository(ctx, repo.ID, schema.GitHubRepository{Stars: 500, Language: "Rust", URL: repo.URL}, syncedAt)
	require.NoError(t, err)
	assert.Equal(t, 500, synced.Stars)
	require.NotNil(t, synced.LastSyncedAt)
	assert.True(t, synced.LastSyncedAt.Equal(syncedAt))

	_, err = store.UpdateRepository(ctx, 9999, schema.RepositoryUpdate{Description: &desc})
	assert.ErrorIs(t, err, contract.ErrNotFound)
	_, err = store.GetRepository(ctx, 9999)
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestStore_SaveAnalysisIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := sampleRepository("octocat", "hello-world", 1)
	require.NoError(t, store.CreateRepository(ctx, repo))

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	first := completedAnalysis(repo.ID, "req-1", 80, at)
	require.NoError(t, store.SaveAnalysis(ctx, first))
	require.Positive(t, first.ID)

	retry := completedAnalysis(repo.ID, "req-1", 80, at)
	require.NoError(t, store.SaveAnalysis(ctx, retry))
	assert.Equal(t, first.ID, retry.ID, "a retried save returns the stored record")

	all, err := store.ListAnalyses(ctx, repo.ID, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got, err := store.GetAnalysis(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.QualityScore)
	assert.Equal(t, 1.5, got.Trends.QualityScoreDelta)
	assert.Equal(t, schema.GradeA, got.Complexity.ComplexityGrade)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "long line", got.Issues[0].Message)
	assert.True(t, got.CreatedAt.Equal(at))
}

func TestStore_LatestAnalysisPointer(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := sampleRepository("octocat", "hello-world", 1)
	require.NoError(t, store.CreateRepository(ctx, repo))

	latest, err := store.LatestCompletedAnalysis(ctx, repo.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	older := completedAnalysis(repo.ID, "req-a", 70, base)
	newer := completedAnalysis(repo.ID, "req-b", 75, base.Add(time.Hour))
	failed := &schema.Analysis{RepositoryID: repo.ID, RequestID: "req-c", Status: schema.StatusFailed, CreatedAt: base.Add(2 * time.Hour)}
	for _, a := range []*schema.Analysis{older, newer, failed} {
		require.NoError(t, store.SaveAnalysis(ctx, a))
	}

	latest, err = store.LatestCompletedAnalysis(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ID, latest.ID, "failed analyses never become the latest")

	require.NoError(t, store.SetLatestAnalysis(ctx, repo.ID, newer.ID, 75, newer.CreatedAt))
	require.NoError(t, store.SetLatestAnalysis(ctx, repo.ID, newer.ID, 75, newer.CreatedAt))

	got, err := store.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LatestAnalysisID)
	assert.Equal(t, newer.ID, *got.LatestAnalysisID)
	require.NotNil(t, got.LastQualityScore)
	assert.Equal(t, 75.0, *got.LastQualityScore)
	assert.Equal(t, 2, got.AnalysisCount, "count reflects completed analyses, not update calls")

	listed, err := store.ListAnalyses(ctx, repo.ID, 2)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, failed.ID, listed[0].ID, "newest first")

	assert.ErrorIs(t, store.SetLatestAnalysis(ctx, 9999, newer.ID, 75, base), contract.ErrNotFound)
}

func TestStore_DeleteRepositoryCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := sampleRepository("octocat", "hello-world", 1)
	other := sampleRepository("octocat", "spoon-knife", 2)
	require.NoError(t, store.CreateRepository(ctx, repo))
	require.NoError(t, store.CreateRepository(ctx, other))

	now := time.Now().UTC()
	require.NoError(t, store.SaveAnalysis(ctx, completedAnalysis(repo.ID, "r1", 60, now)))
	require.NoError(t, store.SaveAnalysis(ctx, completedAnalysis(repo.ID, "r2", 61, now)))
	require.NoError(t, store.SaveAnalysis(ctx, completedAnalysis(other.ID, "o1", 90, now)))

	removed, err := store.DeleteRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = store.GetRepository(ctx, repo.ID)
	assert.ErrorIs(t, err, contract.ErrNotFound)
	remaining, err := store.AllAnalyses(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].RepositoryID)

	_, err = store.DeleteRepository(ctx, repo.ID)
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestStore_ListRepositories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	scores := map[string]float64{"alpha": 95, "beta": 40, "gamma": 72}
	for i, name := range []string{"alpha", "beta", "gamma", "delta"} {
		repo := sampleRepository("acme", name, int64(i+1))
		if name == "delta" {
			repo.Language = "Python"
			repo.Description = "machine learning toolkit"
		}
		require.NoError(t, store.CreateRepository(ctx, repo))
		if score, ok := scores[name]; ok {
			a := completedAnalysis(repo.ID, "req-"+name, score, time.Now().UTC())
			require.NoError(t, store.SaveAnalysis(ctx, a))
			require.NoError(t, store.SetLatestAnalysis(ctx, repo.ID, a.ID, score, a.CreatedAt))
		}
	}

	repos, total, err := store.ListRepositories(ctx, schema.RepositoryQuery{Page: 1, Limit: 2, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, repos, 2)
	assert.Equal(t, "alpha", repos[0].Name)
	assert.Equal(t, "beta", repos[1].Name)

	repos, _, err = store.ListRepositories(ctx, schema.RepositoryQuery{Page: 2, Limit: 2, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "delta", repos[0].Name)

	minScore := 70.0
	repos, total, err = store.ListRepositories(ctx, schema.RepositoryQuery{MinScore: &minScore, SortBy: "lastQualityScore"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "alpha", repos[0].Name)

	repos, total, err = store.ListRepositories(ctx, schema.RepositoryQuery{Search: "LEARNING"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "delta", repos[0].Name)

	repos, total, err = store.ListRepositories(ctx, schema.RepositoryQuery{Language: "Python", SortBy: "DROP TABLE"})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "unknown sort keys fall back to the default order")
	assert.Len(t, repos, 1)

	auto, err := store.ListAutoAnalyze(ctx)
	require.NoError(t, err)
	assert.Len(t, auto, 4)
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, score := range []float64{100, 85, 30} {
		repo := sampleRepository("acme", string(rune('a'+i)), int64(i+1))
		require.NoError(t, store.CreateRepository(ctx, repo))
		a := completedAnalysis(repo.ID, repo.Name, score, time.Now().UTC().Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.SaveAnalysis(ctx, a))
		require.NoError(t, store.SetLatestAnalysis(ctx, repo.ID, a.ID, score, a.CreatedAt))
	}
	unanalyzed := sampleRepository("acme", "z", 100)
	unanalyzed.Language = "Rust"
	require.NoError(t, store.CreateRepository(ctx, unanalyzed))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRepositories)
	assert.Equal(t, 3, stats.AnalyzedRepositories)
	assert.Equal(t, 72, stats.AverageQualityScore)
	assert.Equal(t, []schema.LanguageCount{{Language: "Go", Count: 3}, {Language: "Rust", Count: 1}}, stats.LanguageDistribution)
	assert.Equal(t, []schema.ScoreBucket{
		{Range: "20-40", Count: 1},
		{Range: "80-100", Count: 2},
		{Range: "Unknown", Count: 1},
	}, stats.QualityScoreDistribution)
	require.Len(t, stats.RecentlyAnalyzed, 3)
	assert.Equal(t, "c", stats.RecentlyAnalyzed[0].Name)
}

func TestStore_StatusAndExport(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	status, err := store.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, LatestSchemaVersion, status.SchemaVersion)
	assert.Equal(t, int64(0), status.TotalRepos)

	var out bytes.Buffer
	_, err = ExecuteExport(ctx, store, filepath.Join(t.TempDir(), "out"), &out)
	assert.Error(t, err, "nothing to export")

	repo := sampleRepository("octocat", "hello-world", 1)
	require.NoError(t, store.CreateRepository(ctx, repo))
	require.NoError(t, store.SaveAnalysis(ctx, completedAnalysis(repo.ID, "r1", 50, time.Now().UTC())))

	result, err := ExecuteExport(ctx, store, filepath.Join(t.TempDir(), "out"), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Repositories)
	assert.Equal(t, 1, result.Analyses)
	assert.FileExists(t, result.RepositoriesFile)
	assert.FileExists(t, result.AnalysesFile)

	status, err = store.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.TotalAnalyses)
	assert.False(t, status.LastAnalysisTime.IsZero())

	out.Reset()
	PrintStoreStatus(&out, status)
	assert.Contains(t, out.String(), "Store Backend: sqlite")
	assert.Contains(t, out.String(), "codegrade_analyses: 1 rows")
}

func TestMigrateStore_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")

	result, err := MigrateStore(schema.SQLiteBackend, dbPath, -1)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, LatestSchemaVersion, result.To)

	result, err = MigrateStore(schema.SQLiteBackend, dbPath, -1)
	require.NoError(t, err)
	assert.False(t, result.Changed, "already at the latest version")

	result, err = MigrateStore(schema.SQLiteBackend, dbPath, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), result.To)

	_, err = MigrateStore(schema.SQLiteBackend, dbPath, 0)
	require.NoError(t, err)

	result, err = MigrateStore(schema.SQLiteBackend, dbPath, -1)
	require.NoError(t, err)
	assert.Equal(t, LatestSchemaVersion, result.To)
}

func TestMigrateStore_UnsupportedBackend(t *testing.T) {
	_, err := MigrateStore(schema.DatabaseBackend("oracle"), "", -1)
	assert.Error(t, err)
}

func TestInitStore(t *testing.T) {
	initOnce = sync.Once{}  // Reset for test
	closeOnce = sync.Once{} // Reset for test
	dbPath := filepath.Join(t.TempDir(), "global.db")

	require.NoError(t, InitStore(schema.SQLiteBackend, dbPath))
	require.NoError(t, InitStore(schema.SQLiteBackend, "ignored"))
	assert.NotNil(t, Manager.GetStore())
	CloseStore()
	CloseStore()

	require.NoError(t, ClearStore(schema.SQLiteBackend, dbPath))
	assert.NoFileExists(t, dbPath)
	assert.NoError(t, ClearStore(schema.SQLiteBackend, dbPath), "clearing a missing file is fine")
}

func TestSQLHelpers(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", rebind("SELECT * FROM t WHERE a = ? AND b = ?", schema.PostgreSQLBackend))
	assert.Equal(t, "a = ?", rebind("a = ?", schema.MySQLBackend))

	assert.Equal(t, "`codegrade_repositories`", quoteTableName(repositoriesTable, schema.MySQLBackend))
	assert.Equal(t, `"codegrade_repositories"`, quoteTableName(repositoriesTable, schema.PostgreSQLBackend))
	assert.NoError(t, validateTableName("codegrade_analyses"))
	assert.Error(t, validateTableName("analyses; DROP TABLE x"))
	assert.Error(t, validateTableName(""))

	var ts dbTime
	require.NoError(t, ts.Scan("2024-06-01 12:30:00.5"))
	assert.Equal(t, 500*time.Millisecond, time.Duration(ts.Time.Nanosecond()))
	require.NoError(t, ts.Scan([]byte("2024-06-01T12:30:00.000000000Z")))
	assert.True(t, ts.Valid)
	require.NoError(t, ts.Scan(nil))
	assert.Nil(t, ts.Ptr())
	assert.Error(t, ts.Scan(42))

	early := formatTime(time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC), schema.SQLiteBackend).(string)
	later := formatTime(time.Date(2024, 1, 1, 0, 0, 5, 500, time.UTC), schema.SQLiteBackend).(string)
	assert.Less(t, early, later, "sqlite timestamps sort lexically")
}
