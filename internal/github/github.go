// Package github fetches repository metadata through the GitHub GraphQL API.
// Every request first draws from a shared outbound budget so the service stays
// below the GitHub rate limit for all callers combined.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/internal/ratelimit"
	"github.com/huangsam/codegrade/schema"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// activityWindow bounds the commit history counted as recent activity.
const activityWindow = 90 * 24 * time.Hour

// querier is the part of githubv4.Client used here.
type querier interface {
	Query(ctx context.Context, q any, variables map[string]any) error
}

// Client implements contract.GitHubClient.
type Client struct {
	gql    querier
	budget ratelimit.Policy // nil disables the outbound budget
	now    func() time.Time
	logger *slog.Logger
}

var _ contract.GitHubClient = &Client{} // Compile-time check

// Option configures a Client.
type Option func(*Client)

// WithBudget draws one unit from policy before every request.
func WithBudget(policy ratelimit.Policy) Option {
	return func(c *Client) { c.budget = policy }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for api.github.com. An empty token sends unauthenticated
// requests, which the GraphQL API answers with an access error.
func NewClient(ctx context.Context, token string, opts ...Option) *Client {
	httpClient := http.DefaultClient
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return newClient(githubv4.NewClient(httpClient), opts)
}

// NewEnterpriseClient creates a client for a custom GraphQL endpoint.
func NewEnterpriseClient(url string, httpClient *http.Client, opts ...Option) *Client {
	return newClient(githubv4.NewEnterpriseClient(url, httpClient), opts)
}

func newClient(gql querier, opts []Option) *Client {
	c := &Client{gql: gql, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// repositoryFields is the metadata selected for a repository.
type repositoryFields struct {
	DatabaseID  int64
	Name        string
	Description string
	URL         string
	IsPrivate   bool
	Owner       struct {
		Login string
	}
	StargazerCount  int
	ForkCount       int
	DiskUsage       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PushedAt        *time.Time
	PrimaryLanguage *struct {
		Name string
	}
	DefaultBranchRef *struct {
		Name string
	}
	Issues struct {
		TotalCount int
	} `graphql:"issues(states: OPEN)"`
}

type repositoryQuery struct {
	Repository repositoryFields `graphql:"repository(owner: $owner, name: $name)"`
}

type contentsQuery struct {
	Repository struct {
		Languages struct {
			Edges []struct {
				Size int
				Node struct {
					Name string
				}
			}
		} `graphql:"languages(first: 20, orderBy: {field: SIZE, direction: DESC})"`
		MentionableUsers struct {
			TotalCount int
		}
		Object *struct {
			Tree struct {
				Entries []struct {
					Name string
					Type string
				}
			} `graphql:"... on Tree"`
		} `graphql:"object(expression: \"HEAD:\")"`
		DefaultBranchRef *struct {
			Target struct {
				Commit struct {
					History struct {
						TotalCount int
					} `graphql:"history(since: $since)"`
				} `graphql:"... on Commit"`
			}
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type alertsQuery struct {
	Repository struct {
		VulnerabilityAlerts struct {
			Nodes []struct {
				SecurityVulnerability struct {
					Severity string
					Package  struct {
						Name string
					}
					VulnerableVersionRange string
					FirstPatchedVersion    *struct {
						Identifier string
					}
					Advisory struct {
						Summary     string
						Description string
						Identifiers []struct {
							Type  string
							Value string
						}
					}
				}
			}
		} `graphql:"vulnerabilityAlerts(first: 50, states: OPEN)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func repoVariables(owner, name string) map[string]any {
	return map[string]any{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}
}

// query draws from the budget, runs q and classifies any failure.
func (c *Client) query(ctx context.Context, q any, variables map[string]any) error {
	if c.budget != nil {
		d, err := c.budget.Allow(ctx, ratelimit.GitHubAPIKey)
		switch {
		case err != nil:
			c.logger.Warn("github budget check failed, allowing request", "error", err)
		case !d.Allow:
			return apperrors.Upstream(apperrors.ErrUpstreamLimited,
				fmt.Errorf("outbound GitHub budget of %d per %s exhausted", d.Limit, d.Window))
		}
	}
	if err := c.gql.Query(ctx, q, variables); err != nil {
		return Classify(err)
	}
	return nil
}

// GetRepository implements the contract.GitHubClient interface.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (schema.GitHubRepository, error) {
	var q repositoryQuery
	if err := c.query(ctx, &q, repoVariables(owner, name)); err != nil {
		return schema.GitHubRepository{}, err
	}
	if q.Repository.DatabaseID == 0 {
		return schema.GitHubRepository{}, apperrors.Upstream(apperrors.ErrUpstreamNotFound,
			fmt.Errorf("repository %s/%s not found", owner, name))
	}
	return convertRepository(q.Repository), nil
}

// GetSnapshot implements the contract.GitHubClient interface.
// Vulnerability alerts need admin access, so failing to read them is not an error.
func (c *Client) GetSnapshot(ctx context.Context, owner, name string) (schema.RepositorySnapshot, error) {
	meta, err := c.GetRepository(ctx, owner, name)
	if err != nil {
		return schema.RepositorySnapshot{}, err
	}
	snap := schema.RepositorySnapshot{Repository: meta, Languages: make(map[string]int)}

	var contents contentsQuery
	vars := repoVariables(owner, name)
	vars["since"] = githubv4.GitTimestamp{Time: c.now().Add(-activityWindow)}
	if err := c.query(ctx, &contents, vars); err != nil {
		return schema.RepositorySnapshot{}, err
	}
	for _, edge := range contents.Repository.Languages.Edges {
		snap.Languages[edge.Node.Name] = edge.Size
	}
	if obj := contents.Repository.Object; obj != nil {
		for _, entry := range obj.Tree.Entries {
			snap.RootEntries = append(snap.RootEntries, entry.Name)
		}
	}
	if ref := contents.Repository.DefaultBranchRef; ref != nil {
		snap.RecentCommits = ref.Target.Commit.History.TotalCount
	}
	snap.Contributors = contents.Repository.MentionableUsers.TotalCount

	var alerts alertsQuery
	if err := c.query(ctx, &alerts, repoVariables(owner, name)); err != nil {
		c.logger.Debug("vulnerability alerts unavailable", "repository", owner+"/"+name, "error", err)
		return snap, nil
	}
	for _, node := range alerts.Repository.VulnerabilityAlerts.Nodes {
		v := node.SecurityVulnerability
		vuln := schema.Vulnerability{
			Package:     v.Package.Name,
			Version:     v.VulnerableVersionRange,
			Severity:    convertSeverity(v.Severity),
			Title:       v.Advisory.Summary,
			Description: v.Advisory.Description,
		}
		if v.FirstPatchedVersion != nil {
			vuln.FixedIn = v.FirstPatchedVersion.Identifier
		}
		for _, id := range v.Advisory.Identifiers {
			if id.Type == "CVE" {
				vuln.CVE = id.Value
				break
			}
		}
		snap.Vulnerabilities = append(snap.Vulnerabilities, vuln)
	}
	return snap, nil
}

func convertRepository(r repositoryFields) schema.GitHubRepository {
	out := schema.GitHubRepository{
		ID:          r.DatabaseID,
		Owner:       r.Owner.Login,
		Name:        r.Name,
		Description: r.Description,
		URL:         r.URL,
		CloneURL:    r.URL + ".git",
		Stars:       r.StargazerCount,
		Forks:       r.ForkCount,
		OpenIssues:  r.Issues.TotalCount,
		Size:        r.DiskUsage,
		IsPrivate:   r.IsPrivate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.PrimaryLanguage != nil {
		out.Language = schema.CapitalizeFirst(r.PrimaryLanguage.Name)
	}
	out.DefaultBranch = "main"
	if r.DefaultBranchRef != nil && r.DefaultBranchRef.Name != "" {
		out.DefaultBranch = r.DefaultBranchRef.Name
	}
	if r.PushedAt != nil {
		out.PushedAt = *r.PushedAt
	}
	return out
}

func convertSeverity(s string) schema.Severity {
	switch strings.ToUpper(s) {
	case "CRITICAL":
		return schema.SeverityCritical
	case "HIGH":
		return schema.SeverityHigh
	case "MODERATE", "MEDIUM":
		return schema.SeverityMedium
	default:
		return schema.SeverityLow
	}
}

// Classify maps a GitHub API error onto the upstream error codes.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "could not resolve to a repository"),
		strings.Contains(msg, "404 not found"):
		return apperrors.Upstream(apperrors.ErrUpstreamNotFound, err)
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "429 too many requests"),
		strings.Contains(msg, "403 forbidden"):
		return apperrors.Upstream(apperrors.ErrUpstreamLimited, err)
	case strings.Contains(msg, "401 unauthorized"),
		strings.Contains(msg, "bad credentials"),
		strings.Contains(msg, "access"),
		strings.Contains(msg, "permission"):
		return apperrors.Upstream(apperrors.ErrUpstreamDenied, err)
	default:
		return apperrors.Upstream(apperrors.ErrUpstream, err)
	}
}
