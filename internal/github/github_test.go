package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/ratelimit"
	"github.com/huangsam/codegrade/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repositoryResponse = `{"data":{"repository":{
	"databaseId":1296269,"name":"Hello-World","description":"My first repository",
	"url":"https://github.com/octocat/Hello-World","isPrivate":false,"owner":{"login":"octocat"},
	"stargazerCount":2500,"forkCount":1800,"diskUsage":108,
	"createdAt":"2011-01-26T19:01:12Z","updatedAt":"2024-05-01T10:00:00Z","pushedAt":"2024-04-30T10:00:00Z",
	"primaryLanguage":{"name":"go"},"defaultBranchRef":{"name":"master"},"issues":{"totalCount":12}}}}`

const contentsResponse = `{"data":{"repository":{
	"languages":{"edges":[{"size":9000,"node":{"name":"Go"}},{"size":1000,"node":{"name":"Shell"}}]},
	"mentionableUsers":{"totalCount":7},
	"object":{"entries":[{"name":"README.md","type":"blob"},{"name":"go.sum","type":"blob"},{"name":".github","type":"tree"}]},
	"defaultBranchRef":{"target":{"history":{"totalCount":42}}}}}}`

const alertsResponse = `{"data":{"repository":{"vulnerabilityAlerts":{"nodes":[{"securityVulnerability":{
	"severity":"MODERATE","package":{"name":"golang.org/x/net"},"vulnerableVersionRange":"< 0.17.0",
	"firstPatchedVersion":{"identifier":"0.17.0"},
	"advisory":{"summary":"HTTP/2 rapid reset","description":"DoS","identifiers":[{"type":"GHSA","value":"GHSA-x"},{"type":"CVE","value":"CVE-2023-44487"}]}}}]}}}}`

// newGraphQLServer answers each query kind with a canned response.
func newGraphQLServer(t *testing.T, handle func(query string) (int, string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		status, resp := handle(req.Query)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func defaultHandler(query string) (int, string) {
	switch {
	case strings.Contains(query, "vulnerabilityAlerts"):
		return http.StatusOK, alertsResponse
	case strings.Contains(query, "languages"):
		return http.StatusOK, contentsResponse
	default:
		return http.StatusOK, repositoryResponse
	}
}

func TestGetRepository(t *testing.T) {
	srv, _ := newGraphQLServer(t, defaultHandler)
	client := NewEnterpriseClient(srv.URL, srv.Client())

	repo, err := client.GetRepository(context.Background(), "octocat", "hello-world")
	require.NoError(t, err)
	assert.Equal(t, int64(1296269), repo.ID)
	assert.Equal(t, "octocat", repo.Owner)
	assert.Equal(t, "Go", repo.Language, "languages are capitalized")
	assert.Equal(t, "master", repo.DefaultBranch)
	assert.Equal(t, "https://github.com/octocat/Hello-World.git", repo.CloneURL)
	assert.Equal(t, 2500, repo.Stars)
	assert.Equal(t, 12, repo.OpenIssues)
	assert.Equal(t, 2024, repo.PushedAt.Year())
}

func TestGetSnapshot(t *testing.T) {
	srv, calls := newGraphQLServer(t, defaultHandler)
	client := NewEnterpriseClient(srv.URL, srv.Client(), WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	}))

	snap, err := client.GetSnapshot(context.Background(), "octocat", "hello-world")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, map[string]int{"Go": 9000, "Shell": 1000}, snap.Languages)
	assert.Equal(t, []string{"README.md", "go.sum", ".github"}, snap.RootEntries)
	assert.Equal(t, 42, snap.RecentCommits)
	assert.Equal(t, 7, snap.Contributors)
	require.Len(t, snap.Vulnerabilities, 1)
	v := snap.Vulnerabilities[0]
	assert.Equal(t, schema.SeverityMedium, v.Severity)
	assert.Equal(t, "CVE-2023-44487", v.CVE)
	assert.Equal(t, "0.17.0", v.FixedIn)
}

func TestGetSnapshot_AlertsAreBestEffort(t *testing.T) {
	srv, _ := newGraphQLServer(t, func(query string) (int, string) {
		if strings.Contains(query, "vulnerabilityAlerts") {
			return http.StatusOK, `{"data":null,"errors":[{"message":"Resource not accessible by integration"}]}`
		}
		return defaultHandler(query)
	})
	client := NewEnterpriseClient(srv.URL, srv.Client())

	snap, err := client.GetSnapshot(context.Background(), "octocat", "hello-world")
	require.NoError(t, err)
	assert.Empty(t, snap.Vulnerabilities)
	assert.Equal(t, 42, snap.RecentCommits)
}

func TestGetRepository_NotFound(t *testing.T) {
	srv, _ := newGraphQLServer(t, func(string) (int, string) {
		return http.StatusOK, `{"data":{"repository":null},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a Repository with the name 'octocat/nope'."}]}`
	})
	client := NewEnterpriseClient(srv.URL, srv.Client())

	_, err := client.GetRepository(context.Background(), "octocat", "nope")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUpstreamNotFound))
	assert.Equal(t, http.StatusNotFound, apperrors.As(err).HTTPStatus())
}

func TestGetRepository_Unauthorized(t *testing.T) {
	srv, _ := newGraphQLServer(t, func(string) (int, string) {
		return http.StatusUnauthorized, `{"message":"Bad credentials"}`
	})
	client := NewEnterpriseClient(srv.URL, srv.Client())

	_, err := client.GetRepository(context.Background(), "octocat", "hello-world")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUpstreamDenied))
}

func TestBudgetExhaustion(t *testing.T) {
	srv, calls := newGraphQLServer(t, defaultHandler)
	rule := ratelimit.GitHubAPI(ratelimit.NewMemoryStore(), 2)
	client := NewEnterpriseClient(srv.URL, srv.Client(), WithBudget(rule.Policy))
	ctx := context.Background()

	for range 2 {
		_, err := client.GetRepository(ctx, "octocat", "hello-world")
		require.NoError(t, err)
	}
	_, err := client.GetRepository(ctx, "octocat", "hello-world")
	require.Error(t, err)
	appErr := apperrors.As(err)
	assert.Equal(t, apperrors.ErrUpstreamLimited, appErr.Code)
	assert.Equal(t, apperrors.UpstreamRetryAfter, appErr.RetryAfter)
	assert.Equal(t, int32(2), calls.Load(), "a denied request never reaches GitHub")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg      string
		expected apperrors.Code
	}{
		{"Could not resolve to a Repository with the name 'a/b'.", apperrors.ErrUpstreamNotFound},
		{"non-200 OK status code: 404 Not Found body: \"\"", apperrors.ErrUpstreamNotFound},
		{"API rate limit exceeded for user ID 1.", apperrors.ErrUpstreamLimited},
		{"non-200 OK status code: 403 Forbidden body: \"\"", apperrors.ErrUpstreamLimited},
		{"non-200 OK status code: 401 Unauthorized body: \"\"", apperrors.ErrUpstreamDenied},
		{"Resource not accessible by integration", apperrors.ErrUpstreamDenied},
		{"connection reset by peer", apperrors.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.True(t, apperrors.HasCode(Classify(errors.New(tt.msg)), tt.expected))
		})
	}
	assert.NoError(t, Classify(nil))

	already := apperrors.NotFound("x")
	assert.Same(t, already, Classify(already))
}
