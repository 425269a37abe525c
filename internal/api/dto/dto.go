// Package dto defines the JSON bodies of the HTTP API.
package dto

import (
	"time"

	"github.com/huangsam/codegrade/schema"
)

// SuccessResponse wraps every successful JSON response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every failed JSON response.
type ErrorResponse struct {
	Success    bool      `json:"success"`
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	Code       string    `json:"code"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"requestId,omitempty"`
	RetryAfter *int      `json:"retryAfter,omitempty"` // seconds
	Data       any       `json:"data,omitempty"`

	// Set on limiter rejections.
	Window          string `json:"window,omitempty"`
	CurrentRequests *int   `json:"currentRequests,omitempty"`
	MaxRequests     *int   `json:"maxRequests,omitempty"`
	Hint            string `json:"hint,omitempty"`
}

// AddRepositoryRequest is the body of POST /api/repositories.
type AddRepositoryRequest struct {
	RepoURL     string `json:"repoUrl"`
	AutoAnalyze *bool  `json:"autoAnalyze,omitempty"` // analyze right away, default true
}

// AnalyzeRequest is the body of POST /api/analysis.
type AnalyzeRequest struct {
	RepoURL string `json:"repoUrl"`
	Force   bool   `json:"force,omitempty"`
}

// Repository is a tracked repository with its derived fields.
type Repository struct {
	schema.Repository
	QualityGrade          schema.Grade `json:"qualityGrade"`
	DaysSinceLastAnalysis *int         `json:"daysSinceLastAnalysis"`
	NeedsAnalysis         bool         `json:"needsAnalysis"`
}

// Analysis is an analysis record with its derived summaries.
type Analysis struct {
	schema.Analysis
	IssuesSummary                schema.SeverityCounts `json:"issuesSummary"`
	VulnerabilityBreakdown       schema.SeverityCounts `json:"vulnerabilityBreakdown"`
	CriticalRecommendationsCount int                   `json:"criticalRecommendationsCount"`
}

// RepositoryDetail is a repository with its recent analyses.
type RepositoryDetail struct {
	Repository     Repository `json:"repository"`
	LatestAnalysis *Analysis  `json:"latestAnalysis"`
	Analyses       []Analysis `json:"analyses"`
}

// RepositoryPage is one page of repositories.
type RepositoryPage struct {
	Repositories []Repository      `json:"repositories"`
	Pagination   schema.Pagination `json:"pagination"`
}

// ScoreSummary is the short analysis summary returned when adding a repository.
type ScoreSummary struct {
	QualityScore float64 `json:"qualityScore"`
}

// AddRepositoryResponse is the data of a successful add.
type AddRepositoryResponse struct {
	Repository Repository    `json:"repository"`
	Analysis   *ScoreSummary `json:"analysis"`
}

// AnalysisResponse is the data of an analysis request.
type AnalysisResponse struct {
	Repository Repository `json:"repository"`
	Analysis   *Analysis  `json:"analysis"`
	Cached     bool       `json:"cached"`
}

// Health is the data of GET /api/health.
type Health struct {
	Status    string             `json:"status"`
	Version   string             `json:"version"`
	Uptime    string             `json:"uptime"`
	Timestamp time.Time          `json:"timestamp"`
	Cache     schema.CacheStatus `json:"cache"`
	Store     *StoreHealth       `json:"store,omitempty"`
}

// StoreHealth is the store part of the health report.
type StoreHealth struct {
	Backend   string `json:"backend"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}
