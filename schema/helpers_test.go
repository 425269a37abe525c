package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{"plain", "https://github.com/octocat/Hello-World", "octocat", "hello-world", false},
		{"trailing slash", "https://github.com/octocat/hello-world/", "octocat", "hello-world", false},
		{"git suffix", "https://github.com/Foo/bar.git", "foo", "bar", false},
		{"dots and underscores", "https://github.com/a_b/c.d-e", "a_b", "c.d-e", false},
		{"http rejected", "http://github.com/octocat/hello-world", "", "", true},
		{"other host", "https://gitlab.com/octocat/hello-world", "", "", true},
		{"missing name", "https://github.com/octocat", "", "", true},
		{"nested path", "https://github.com/octocat/hello-world/tree/main", "", "", true},
		{"empty", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, name, err := ParseRepoURL(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestQualityGrade(t *testing.T) {
	assert.Equal(t, GradeUnknown, QualityGrade(nil))
	assert.Equal(t, GradeA, QualityGrade(ptr(100.0)))
	assert.Equal(t, GradeA, QualityGrade(ptr(90.0)))
	assert.Equal(t, GradeB, QualityGrade(ptr(89.9)))
	assert.Equal(t, GradeB, QualityGrade(ptr(80.0)))
	assert.Equal(t, GradeC, QualityGrade(ptr(70.0)))
	assert.Equal(t, GradeD, QualityGrade(ptr(60.0)))
	assert.Equal(t, GradeF, QualityGrade(ptr(59.0)))
	assert.Equal(t, GradeF, QualityGrade(ptr(0.0)))
}

func TestNeedsAnalysis(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	never := Repository{AnalysisFrequency: FrequencyManual}
	assert.True(t, NeedsAnalysis(never, now), "never analyzed repos always need analysis")
	assert.Nil(t, DaysSinceLastAnalysis(never, now))

	tests := []struct {
		freq Frequency
		ago  time.Duration
		want bool
	}{
		{FrequencyDaily, 2 * time.Hour, false},
		{FrequencyDaily, 25 * time.Hour, true},
		{FrequencyWeekly, 6 * 24 * time.Hour, false},
		{FrequencyWeekly, 7 * 24 * time.Hour, true},
		{FrequencyMonthly, 29 * 24 * time.Hour, false},
		{FrequencyMonthly, 31 * 24 * time.Hour, true},
		{FrequencyManual, 365 * 24 * time.Hour, false},
	}
	for _, tt := range tests {
		at := now.Add(-tt.ago)
		repo := Repository{AnalysisFrequency: tt.freq, LastAnalyzedAt: &at}
		assert.Equal(t, tt.want, NeedsAnalysis(repo, now), "%s after %s", tt.freq, tt.ago)
	}

	at := now.Add(-50 * time.Hour)
	days := DaysSinceLastAnalysis(Repository{LastAnalyzedAt: &at}, now)
	require.NotNil(t, days)
	assert.Equal(t, 2, *days)
}

func TestComputeTrends(t *testing.T) {
	cur := AnalysisResult{
		QualityScore: 82,
		CodeMetrics:  CodeMetrics{TestCoverage: 55.5},
		Security:     Security{SecurityScore: 90},
		Complexity:   Complexity{AverageComplexity: 4.2},
	}
	assert.Equal(t, Trends{}, ComputeTrends(nil, cur))

	prior := &Analysis{
		QualityScore: 75,
		CodeMetrics:  CodeMetrics{TestCoverage: 50},
		Security:     Security{SecurityScore: 95},
		Complexity:   Complexity{AverageComplexity: 5.1},
	}
	trends := ComputeTrends(prior, cur)
	assert.Equal(t, 7.0, trends.QualityScoreDelta)
	assert.Equal(t, 5.5, trends.TestCoverageDelta)
	assert.Equal(t, -5.0, trends.SecurityScoreDelta)
	assert.Equal(t, -0.9, trends.ComplexityDelta)
}

func TestSeverityCounts(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityCritical}, {Severity: SeverityHigh}, {Severity: SeverityHigh}, {Severity: SeverityLow},
	}
	assert.Equal(t, SeverityCounts{Total: 4, Critical: 1, High: 2, Low: 1}, CountIssues(issues))

	vulns := []Vulnerability{{Severity: SeverityMedium}, {Severity: SeverityMedium}}
	assert.Equal(t, SeverityCounts{Total: 2, Medium: 2}, CountVulnerabilities(vulns))

	recs := []Recommendation{{Priority: SeverityCritical}, {Priority: SeverityHigh}, {Priority: SeverityCritical}}
	assert.Equal(t, 2, CriticalRecommendations(recs))
}

func TestScoreBucketLabel(t *testing.T) {
	assert.Equal(t, "Unknown", ScoreBucketLabel(nil))
	assert.Equal(t, "0-20", ScoreBucketLabel(ptr(0.0)))
	assert.Equal(t, "20-40", ScoreBucketLabel(ptr(20.0)))
	assert.Equal(t, "60-80", ScoreBucketLabel(ptr(79.9)))
	assert.Equal(t, "80-100", ScoreBucketLabel(ptr(80.0)))
	assert.Equal(t, "80-100", ScoreBucketLabel(ptr(100.0)))
}

func TestCompareAnalyses(t *testing.T) {
	base := Analysis{QualityScore: 60, Issues: []Issue{{}, {}}}
	target := Analysis{QualityScore: 72.5, Issues: []Issue{{}}}
	cmp := CompareAnalyses(base, target)
	assert.Equal(t, 12.5, cmp.QualityScoreDiff)
	assert.Equal(t, -1, cmp.IssuesDiff)
}

func TestCapitalizeFirst(t *testing.T) {
	assert.Equal(t, "Go", CapitalizeFirst("go"))
	assert.Equal(t, "", CapitalizeFirst(""))
	assert.Equal(t, "TypeScript", CapitalizeFirst("TypeScript"))
}
