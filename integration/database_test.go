//go:build database

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/codegrade/internal/cache"
	"github.com/huangsam/codegrade/internal/iocache"
	"github.com/huangsam/codegrade/internal/ratelimit"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startContainer starts a container and returns host:port of its first exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, req.ExposedPorts[0])
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

// TestCodegradeWithMySQL tests the store commands and the store itself on MySQL.
func TestCodegradeWithMySQL(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "codegrade",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	})
	connStr := fmt.Sprintf("root:secret123@tcp(%s)/codegrade?parseTime=true", addr)

	verifyStoreCommands(t, schema.MySQLBackend, connStr)
	verifyStoreRoundTrip(t, schema.MySQLBackend, connStr)
}

// TestCodegradeWithPostgres tests the store commands and the store itself on PostgreSQL.
func TestCodegradeWithPostgres(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	})
	connStr := fmt.Sprintf("postgres://postgres@%s/postgres?sslmode=disable", addr)

	verifyStoreCommands(t, schema.PostgreSQLBackend, connStr)
	verifyStoreRoundTrip(t, schema.PostgreSQLBackend, connStr)
}

func verifyStoreCommands(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	env := map[string]string{
		"CODEGRADE_STORE_BACKEND":    string(backend),
		"CODEGRADE_STORE_DB_CONNECT": connStr,
	}

	_, err := runCommand(t, env, "store", "clear")
	require.NoError(t, err)

	_, err = runCommand(t, env, "store", "migrate")
	require.NoError(t, err)

	out, err := runCommand(t, env, "store", "status", "--output", "json")
	require.NoError(t, err)
	var status schema.StoreStatus
	require.NoError(t, json.Unmarshal(out, &status))
	assert.True(t, status.Connected)
	assert.Equal(t, string(backend), status.Backend)
	assert.Positive(t, status.SchemaVersion)
	assert.Zero(t, status.TotalRepos)

	// Nothing to export yet
	_, err = runCommand(t, env, "store", "export", "--output-file", filepath.Join(t.TempDir(), "empty"))
	assert.Error(t, err)

	_, err = runCommand(t, env, "cache", "status")
	require.NoError(t, err)
}

func verifyStoreRoundTrip(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	ctx := context.Background()
	store, err := iocache.NewStore(backend, connStr)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	repo := &schema.Repository{
		GitHubID: 23096959, Owner: "golang", Name: "go", Language: "Go",
		URL: "https://github.com/golang/go", DefaultBranch: "master",
		AutoAnalyze: true, AnalysisFrequency: schema.FrequencyWeekly,
	}
	require.NoError(t, store.CreateRepository(ctx, repo))

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a := &schema.Analysis{
		RepositoryID: repo.ID,
		RequestID:    "integration-1",
		QualityScore: 87.5,
		CodeMetrics:  schema.CodeMetrics{LinesOfCode: 2500000, TestCoverage: 70},
		Security:     schema.Security{SecurityScore: 95, Vulnerabilities: []schema.Vulnerability{}},
		Complexity:   schema.Complexity{AverageComplexity: 4, ComplexityGrade: schema.GradeB},
		Status:       schema.StatusCompleted,
		TriggeredBy:  schema.TriggerScheduled,
		CreatedAt:    at,
	}
	require.NoError(t, store.SaveAnalysis(ctx, a))
	require.NoError(t, store.SetLatestAnalysis(ctx, repo.ID, a.ID, a.QualityScore, at))

	page, total, err := store.ListRepositories(ctx, schema.RepositoryQuery{
		Language: "go", SortBy: "lastQualityScore", SortOrder: "desc", Page: 1, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	require.NotNil(t, page[0].LastQualityScore)
	assert.Equal(t, 87.5, *page[0].LastQualityScore)

	latest, err := store.LatestCompletedAnalysis(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, a.ID, latest.ID)
	assert.True(t, latest.CreatedAt.Equal(at))

	prefix := filepath.Join(t.TempDir(), "export")
	result, err := iocache.ExecuteExport(ctx, store, prefix, os.Stderr)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Repositories)
	assert.Equal(t, 1, result.Analyses)
	assert.FileExists(t, result.AnalysesFile)

	removed, err := store.DeleteRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

// TestCodegradeWithRedis tests the remote cache tier and the shared limiter counters.
func TestCodegradeWithRedis(t *testing.T) {
	ctx := context.Background()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})
	redisURL := "redis://" + addr + "/0"

	tier, err := cache.NewRedisTier(redisURL)
	require.NoError(t, err)
	c := cache.New(ctx, cache.WithRemote(tier))
	defer func() { _ = c.Close() }()
	require.Equal(t, cache.Available, c.State())

	c.Set(ctx, "analysis:latest:golang/go", []byte(`{"qualityScore":87.5}`), time.Minute)
	got, ok := c.Get(ctx, "analysis:latest:golang/go")
	require.True(t, ok)
	assert.JSONEq(t, `{"qualityScore":87.5}`, string(got))
	assert.Contains(t, c.Keys(ctx, "analysis:*"), "analysis:latest:golang/go")

	// Two limiters over one redis share their counters
	limits, err := ratelimit.NewRedisStore(ctx, tier.Client())
	require.NoError(t, err)
	first := ratelimit.Sliding(limits, 2, time.Minute)
	second := ratelimit.Sliding(limits, 2, time.Minute)
	for range 2 {
		d, err := first.Policy.Allow(ctx, "ip:203.0.113.9")
		require.NoError(t, err)
		assert.True(t, d.Allow)
	}
	d, err := second.Policy.Allow(ctx, "ip:203.0.113.9")
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Positive(t, d.RetryAfter)

	remaining, err := ratelimit.NewJanitor(limits, time.Nanosecond, nil).Collect(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	out, err := runCommand(t, map[string]string{
		"CODEGRADE_REDIS_URL":        redisURL,
		"CODEGRADE_STORE_DB_CONNECT": filepath.Join(t.TempDir(), "redis.db"),
	}, "cache", "status", "--output", "json")
	require.NoError(t, err)
	var status schema.CacheStatus
	require.NoError(t, json.Unmarshal(out, &status))
	assert.Equal(t, "redis", status.Type)
	assert.True(t, status.Connected)
}
