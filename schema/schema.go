// Package schema has the models, enums and pure derivations shared by all parts of codegrade.
package schema

import "time"

// Repository is a tracked GitHub repository.
// Owner and Name are stored lower-cased and FullName is always "owner/name".
type Repository struct {
	ID                int64      `json:"id"`
	GitHubID          int64      `json:"githubId"`
	Owner             string     `json:"owner"`
	Name              string     `json:"name"`
	FullName          string     `json:"fullName"`
	Description       string     `json:"description"`
	Language          string     `json:"language"`
	URL               string     `json:"url"`
	CloneURL          string     `json:"cloneUrl"`
	DefaultBranch     string     `json:"defaultBranch"`
	Stars             int        `json:"stars"`
	Forks             int        `json:"forks"`
	OpenIssues        int        `json:"openIssues"`
	Size              int        `json:"size"`
	IsPrivate         bool       `json:"isPrivate"`
	Tags              []string   `json:"tags"`
	LatestAnalysisID  *int64     `json:"latestAnalysis"`   // Back-reference, not ownership
	LastQualityScore  *float64   `json:"lastQualityScore"` // Denormalized for listing and sorting
	LastAnalyzedAt    *time.Time `json:"lastAnalyzedAt"`
	LastSyncedAt      *time.Time `json:"lastSyncedAt"`
	AnalysisCount     int        `json:"analysisCount"`
	AutoAnalyze       bool       `json:"autoAnalyze"`
	AnalysisFrequency Frequency  `json:"analysisFrequency"`
	AddedBy           string     `json:"addedBy,omitempty"`
	GitHubCreatedAt   *time.Time `json:"githubCreatedAt"`
	GitHubUpdatedAt   *time.Time `json:"githubUpdatedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// GitHubRepository is the metadata returned by the GitHub fetcher.
type GitHubRepository struct {
	ID            int64
	Owner         string
	Name          string
	Description   string
	Language      string
	URL           string
	CloneURL      string
	DefaultBranch string
	Stars         int
	Forks         int
	OpenIssues    int
	Size          int // kilobytes
	IsPrivate     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PushedAt      time.Time
}

// RepositorySnapshot is everything the analysis producer reads about a repository.
type RepositorySnapshot struct {
	Repository      GitHubRepository
	Languages       map[string]int // language name to bytes
	RootEntries     []string       // file and directory names at the default branch root
	RecentCommits   int            // commits on the default branch in the last 90 days
	Contributors    int
	Vulnerabilities []Vulnerability
}

// RepositoryUpdate carries the user-editable fields of a repository.
// Nil fields are left unchanged.
type RepositoryUpdate struct {
	Description       *string    `json:"description,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	AutoAnalyze       *bool      `json:"autoAnalyze,omitempty"`
	AnalysisFrequency *Frequency `json:"analysisFrequency,omitempty"`
}

// RepositoryQuery filters, sorts and pages a repository listing.
type RepositoryQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string // asc or desc
	Search    string
	Language  string
	MinScore  *float64
	MaxScore  *float64
}

// Pagination describes a page within a listing.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// RepositoryPage is one page of a repository listing.
type RepositoryPage struct {
	Repositories []Repository `json:"repositories"`
	Pagination   Pagination   `json:"pagination"`
}

// LanguageCount is one entry of the language distribution.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// ScoreBucket is one entry of the quality score histogram.
type ScoreBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// RepositoryStats aggregates the tracked repositories.
type RepositoryStats struct {
	TotalRepositories        int             `json:"totalRepositories"`
	AnalyzedRepositories     int             `json:"analyzedRepositories"`
	AverageQualityScore      int             `json:"averageQualityScore"`
	LanguageDistribution     []LanguageCount `json:"languageDistribution"`
	QualityScoreDistribution []ScoreBucket   `json:"qualityScoreDistribution"`
	RecentlyAnalyzed         []Repository    `json:"recentlyAnalyzed"`
}
