package dto

import (
	"time"

	"github.com/huangsam/codegrade/core"
	"github.com/huangsam/codegrade/schema"
)

// FromRepository adds the derived fields to a repository.
func FromRepository(r schema.Repository, now time.Time) Repository {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return Repository{
		Repository:            r,
		QualityGrade:          schema.QualityGrade(r.LastQualityScore),
		DaysSinceLastAnalysis: schema.DaysSinceLastAnalysis(r, now),
		NeedsAnalysis:         schema.NeedsAnalysis(r, now),
	}
}

// FromRepositories maps a slice of repositories.
func FromRepositories(repos []schema.Repository, now time.Time) []Repository {
	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, FromRepository(r, now))
	}
	return out
}

// FromAnalysis adds the derived summaries to an analysis.
func FromAnalysis(a schema.Analysis) Analysis {
	return Analysis{
		Analysis:                     a,
		IssuesSummary:                schema.CountIssues(a.Issues),
		VulnerabilityBreakdown:       schema.CountVulnerabilities(a.Security.Vulnerabilities),
		CriticalRecommendationsCount: schema.CriticalRecommendations(a.Recommendations),
	}
}

// FromAnalysisPtr maps an optional analysis.
func FromAnalysisPtr(a *schema.Analysis) *Analysis {
	if a == nil {
		return nil
	}
	out := FromAnalysis(*a)
	return &out
}

// FromAnalyses maps a slice of analyses.
func FromAnalyses(analyses []schema.Analysis) []Analysis {
	out := make([]Analysis, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, FromAnalysis(a))
	}
	return out
}

// FromDetail maps a repository with its history.
func FromDetail(d core.RepositoryDetail, now time.Time) RepositoryDetail {
	return RepositoryDetail{
		Repository:     FromRepository(d.Repository, now),
		LatestAnalysis: FromAnalysisPtr(d.LatestAnalysis),
		Analyses:       FromAnalyses(d.Analyses),
	}
}

// FromPage maps a page of repositories.
func FromPage(p schema.RepositoryPage, now time.Time) RepositoryPage {
	return RepositoryPage{Repositories: FromRepositories(p.Repositories, now), Pagination: p.Pagination}
}

// FromAddResult maps the outcome of adding a repository.
func FromAddResult(res core.AddResult, now time.Time) AddRepositoryResponse {
	out := AddRepositoryResponse{Repository: FromRepository(res.Repository, now)}
	if res.Analysis != nil {
		out.Analysis = &ScoreSummary{QualityScore: res.Analysis.QualityScore}
	}
	return out
}

// FromOutcome maps the outcome of an analysis request.
func FromOutcome(o core.AnalysisOutcome, now time.Time) AnalysisResponse {
	return AnalysisResponse{
		Repository: FromRepository(o.Repository, now),
		Analysis:   FromAnalysisPtr(o.Analysis),
		Cached:     !o.Fresh,
	}
}
