package schema

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// repoURLPattern matches the repository URLs accepted for tracking.
var repoURLPattern = regexp.MustCompile(`^https://github\.com/[\w.-]+/[\w.-]+/?$`)

// ParseRepoURL validates a GitHub repository URL and returns its normalized owner and name.
func ParseRepoURL(raw string) (owner, name string, err error) {
	raw = strings.TrimSpace(raw)
	if !repoURLPattern.MatchString(raw) {
		return "", "", fmt.Errorf("invalid GitHub repository URL %q", raw)
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(raw, "https://github.com/"), "/"), "/")
	owner = NormalizeName(parts[0])
	name = NormalizeName(strings.TrimSuffix(parts[1], ".git"))
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid GitHub repository URL %q", raw)
	}
	return owner, name, nil
}

// NormalizeName case-folds an owner or repository name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FullName returns the canonical "owner/name" form.
func FullName(owner, name string) string {
	return NormalizeName(owner) + "/" + NormalizeName(name)
}

// CapitalizeFirst upper-cases the first letter, as done for stored language names.
func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// QualityGrade maps a quality score to a letter grade.
func QualityGrade(score *float64) Grade {
	if score == nil {
		return GradeUnknown
	}
	switch s := *score; {
	case s >= 90:
		return GradeA
	case s >= 80:
		return GradeB
	case s >= 70:
		return GradeC
	case s >= 60:
		return GradeD
	default:
		return GradeF
	}
}

// DaysSinceLastAnalysis returns the whole days elapsed since the last analysis,
// or nil when the repository was never analyzed.
func DaysSinceLastAnalysis(repo Repository, now time.Time) *int {
	if repo.LastAnalyzedAt == nil {
		return nil
	}
	days := int(now.Sub(*repo.LastAnalyzedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// NeedsAnalysis reports whether the repository is due for another automatic analysis.
func NeedsAnalysis(repo Repository, now time.Time) bool {
	days := DaysSinceLastAnalysis(repo, now)
	if days == nil {
		return true
	}
	switch repo.AnalysisFrequency {
	case FrequencyDaily:
		return *days >= 1
	case FrequencyWeekly:
		return *days >= 7
	case FrequencyMonthly:
		return *days >= 30
	default:
		return false
	}
}

// CountIssues tallies issues by severity.
func CountIssues(issues []Issue) SeverityCounts {
	var c SeverityCounts
	for _, issue := range issues {
		c.add(issue.Severity)
	}
	return c
}

// CountVulnerabilities tallies vulnerabilities by severity.
func CountVulnerabilities(vulns []Vulnerability) SeverityCounts {
	var c SeverityCounts
	for _, v := range vulns {
		c.add(v.Severity)
	}
	return c
}

func (c *SeverityCounts) add(s Severity) {
	c.Total++
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
}

// CriticalRecommendations counts recommendations with critical priority.
func CriticalRecommendations(recs []Recommendation) int {
	n := 0
	for _, r := range recs {
		if r.Priority == SeverityCritical {
			n++
		}
	}
	return n
}

// ComputeTrends returns the deltas of cur against the prior completed analysis.
// All deltas are zero when there is no prior analysis.
func ComputeTrends(prior *Analysis, cur AnalysisResult) Trends {
	if prior == nil {
		return Trends{}
	}
	return Trends{
		QualityScoreDelta:  round2(cur.QualityScore - prior.QualityScore),
		TestCoverageDelta:  round2(cur.CodeMetrics.TestCoverage - prior.CodeMetrics.TestCoverage),
		SecurityScoreDelta: round2(cur.Security.SecurityScore - prior.Security.SecurityScore),
		ComplexityDelta:    round2(cur.Complexity.AverageComplexity - prior.Complexity.AverageComplexity),
	}
}

// CompareAnalyses returns target minus base for the headline metrics.
func CompareAnalyses(base, target Analysis) AnalysisComparison {
	return AnalysisComparison{
		Base:              base,
		Target:            target,
		QualityScoreDiff:  round2(target.QualityScore - base.QualityScore),
		TestCoverageDiff:  round2(target.CodeMetrics.TestCoverage - base.CodeMetrics.TestCoverage),
		SecurityScoreDiff: round2(target.Security.SecurityScore - base.Security.SecurityScore),
		ComplexityDiff:    round2(target.Complexity.AverageComplexity - base.Complexity.AverageComplexity),
		IssuesDiff:        len(target.Issues) - len(base.Issues),
	}
}

// ScoreBucketLabel returns the histogram bucket for a quality score.
// A perfect score falls in the top bucket.
func ScoreBucketLabel(score *float64) string {
	if score == nil {
		return "Unknown"
	}
	switch s := *score; {
	case s < 20:
		return "0-20"
	case s < 40:
		return "20-40"
	case s < 60:
		return "40-60"
	case s < 80:
		return "60-80"
	default:
		return "80-100"
	}
}

// ScoreBucketLabels lists histogram buckets in order.
var ScoreBucketLabels = []string{"0-20", "20-40", "40-60", "60-80", "80-100", "Unknown"}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
