// Package algo derives quality metrics from repository metadata.
// The heuristics are deterministic: one snapshot always yields the same result.
package algo

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
)

// Heuristic constants.
const (
	bytesPerLine    = 40
	linesPerFile    = 150
	duplicatePct    = 3
	maxActivityGain = 10.0
)

// Weights of the blended quality score.
const (
	weightCoverage        = 0.30
	weightMaintainability = 0.30
	weightSecurity        = 0.25
	weightComplexity      = 0.15
)

var (
	testEntries    = []string{"test", "tests", "__tests__", "spec", "specs", "testing", "e2e"}
	ciEntries      = []string{".github", ".circleci", ".travis.yml", ".gitlab-ci.yml", "jenkinsfile", "azure-pipelines.yml"}
	lockFiles      = []string{"go.sum", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "cargo.lock", "poetry.lock", "pipfile.lock", "gemfile.lock", "composer.lock", "uv.lock"}
	readmeEntries  = []string{"readme.md", "readme", "readme.rst", "readme.txt"}
	licenseEntries = []string{"license", "license.md", "license.txt", "copying"}
	docEntries     = []string{"docs", "doc", "contributing.md"}
)

// languageComplexity is the baseline cyclomatic complexity per function by language.
var languageComplexity = map[string]float64{
	"Go":         3.0,
	"Python":     3.5,
	"Ruby":       3.5,
	"TypeScript": 3.8,
	"JavaScript": 4.0,
	"Rust":       4.0,
	"Java":       4.5,
	"C#":         4.5,
	"C":          5.0,
	"C++":        5.5,
}

const defaultComplexity = 4.0

// vulnerabilityPenalty is the security score deducted per open alert.
var vulnerabilityPenalty = map[schema.Severity]float64{
	schema.SeverityCritical: 25,
	schema.SeverityHigh:     15,
	schema.SeverityMedium:   8,
	schema.SeverityLow:      3,
}

// Analyzer implements contract.AnalysisProducer over GitHub snapshots.
type Analyzer struct {
	github contract.GitHubClient
}

var _ contract.AnalysisProducer = &Analyzer{} // Compile-time check

// NewAnalyzer creates an analyzer reading from gh.
func NewAnalyzer(gh contract.GitHubClient) *Analyzer {
	return &Analyzer{github: gh}
}

// PerformFullAnalysis implements the contract.AnalysisProducer interface.
func (a *Analyzer) PerformFullAnalysis(ctx context.Context, owner, name string) (schema.AnalysisResult, error) {
	snap, err := a.github.GetSnapshot(ctx, owner, name)
	if err != nil {
		return schema.AnalysisResult{}, fmt.Errorf("failed to read %s/%s: %w", owner, name, err)
	}
	return Analyze(snap), nil
}

// layout summarizes what the root of the default branch contains.
type layout struct {
	tests, ci, lockFile, readme, license, docs bool
}

func scanLayout(entries []string) layout {
	var l layout
	for _, entry := range entries {
		e := strings.ToLower(entry)
		l.tests = l.tests || slices.Contains(testEntries, e)
		l.ci = l.ci || slices.Contains(ciEntries, e)
		l.lockFile = l.lockFile || slices.Contains(lockFiles, e)
		l.readme = l.readme || slices.Contains(readmeEntries, e)
		l.license = l.license || slices.Contains(licenseEntries, e)
		l.docs = l.docs || slices.Contains(docEntries, e)
	}
	return l
}

// Analyze computes the full analysis of a snapshot.
func Analyze(snap schema.RepositorySnapshot) schema.AnalysisResult {
	l := scanLayout(snap.RootEntries)
	metrics := codeMetrics(snap, l)
	security := securityReport(snap, l)
	complexity := complexityReport(snap, metrics.LinesOfCode)

	result := schema.AnalysisResult{
		CodeMetrics: metrics,
		Security:    security,
		Complexity:  complexity,
		Branch:      snap.Repository.DefaultBranch,
	}
	result.Issues = issues(snap, l, security)
	result.Recommendations = recommendations(metrics, security, complexity, l)
	result.QualityScore = QualityScore(metrics, security, complexity)
	return result
}

// QualityScore blends the component scores into a whole number in [0,100].
func QualityScore(m schema.CodeMetrics, s schema.Security, c schema.Complexity) float64 {
	complexityScore := clamp(100-c.AverageComplexity*5, 0, 100)
	score := weightCoverage*m.TestCoverage +
		weightMaintainability*m.MaintainabilityIndex +
		weightSecurity*s.SecurityScore +
		weightComplexity*complexityScore
	return math.Round(clamp(score, 0, 100))
}

func codeMetrics(snap schema.RepositorySnapshot, l layout) schema.CodeMetrics {
	totalBytes := 0
	for _, size := range snap.Languages {
		totalBytes += size
	}
	if totalBytes == 0 {
		totalBytes = snap.Repository.Size * 1024
	}
	loc := totalBytes / bytesPerLine
	files := max(1, loc/linesPerFile)
	activity := math.Min(float64(snap.RecentCommits)/10, maxActivityGain)

	coverage := 10.0
	switch {
	case l.tests && l.ci:
		coverage = 70
	case l.tests:
		coverage = 55
	case l.ci:
		coverage = 25
	}
	coverage = round1(clamp(coverage+activity, 0, 100))

	maintainability := 50.0
	for _, bonus := range []struct {
		ok     bool
		points float64
	}{
		{l.readme, 10},
		{l.license, 5},
		{l.docs, 5},
		{l.ci, 10},
		{l.tests, 5},
		{snap.RecentCommits > 0, 5},
		{snap.Contributors > 1, 5},
	} {
		if bonus.ok {
			maintainability += bonus.points
		}
	}
	maintainability = round1(clamp(maintainability, 0, 100))

	return schema.CodeMetrics{
		LinesOfCode:          loc,
		FileCount:            files,
		TestCoverage:         coverage,
		MaintainabilityIndex: maintainability,
		TechnicalDebt:        round1(float64(loc) / 1000 * (100 - maintainability) / 10),
		DuplicateLines:       loc * duplicatePct / 100,
	}
}

func securityReport(snap schema.RepositorySnapshot, l layout) schema.Security {
	score := 100.0
	packages := make(map[string]struct{})
	outdated := 0
	for _, v := range snap.Vulnerabilities {
		score -= vulnerabilityPenalty[v.Severity]
		packages[v.Package] = struct{}{}
		if v.FixedIn != "" {
			outdated++
		}
	}
	if !l.lockFile {
		score -= 10
	}
	vulns := snap.Vulnerabilities
	if vulns == nil {
		vulns = []schema.Vulnerability{}
	}
	return schema.Security{
		TotalDependencies:    len(packages),
		Vulnerabilities:      vulns,
		OutdatedDependencies: outdated,
		HasLockFile:          l.lockFile,
		SecurityScore:        clamp(score, 0, 100),
	}
}

func complexityReport(snap schema.RepositorySnapshot, loc int) schema.Complexity {
	base := defaultComplexity
	if c, ok := languageComplexity[snap.Repository.Language]; ok {
		base = c
	}
	avg := round1(base + math.Log10(float64(loc)+1)*0.8)
	return schema.Complexity{
		AverageComplexity:   avg,
		MaxComplexity:       round1(avg * 3),
		ComplexityGrade:     ComplexityGrade(avg),
		HighComplexityFiles: []schema.ComplexFile{},
	}
}

// ComplexityGrade maps an average cyclomatic complexity to a letter grade.
func ComplexityGrade(avg float64) schema.Grade {
	switch {
	case avg <= 5:
		return schema.GradeA
	case avg <= 10:
		return schema.GradeB
	case avg <= 20:
		return schema.GradeC
	case avg <= 30:
		return schema.GradeD
	default:
		return schema.GradeF
	}
}

func issues(snap schema.RepositorySnapshot, l layout, sec schema.Security) []schema.Issue {
	out := []schema.Issue{}
	for _, v := range sec.Vulnerabilities {
		out = append(out, schema.Issue{
			Category: schema.CategorySecurity,
			Severity: v.Severity,
			Message:  fmt.Sprintf("Vulnerable dependency %s %s", v.Package, v.Version),
			Rule:     v.CVE,
		})
	}
	if !l.lockFile {
		out = append(out, schema.Issue{Category: schema.CategorySecurity, Severity: schema.SeverityMedium,
			Message: "No dependency lock file found", Rule: "lock-file"})
	}
	if !l.tests {
		out = append(out, schema.Issue{Category: schema.CategoryReliability, Severity: schema.SeverityMedium,
			Message: "No test directory found at the repository root", Rule: "tests"})
	}
	if !l.ci {
		out = append(out, schema.Issue{Category: schema.CategoryReliability, Severity: schema.SeverityLow,
			Message: "No continuous integration configuration found", Rule: "ci"})
	}
	if !l.readme {
		out = append(out, schema.Issue{Category: schema.CategoryMaintainability, Severity: schema.SeverityLow,
			File: "README.md", Message: "Missing README", Rule: "readme"})
	}
	if !l.license {
		out = append(out, schema.Issue{Category: schema.CategoryMaintainability, Severity: schema.SeverityLow,
			File: "LICENSE", Message: "Missing license file", Rule: "license"})
	}
	if snap.RecentCommits == 0 {
		out = append(out, schema.Issue{Category: schema.CategoryMaintainability, Severity: schema.SeverityLow,
			Message: "No commits on the default branch in the last 90 days", Rule: "activity"})
	}
	return out
}

func recommendations(m schema.CodeMetrics, sec schema.Security, c schema.Complexity, l layout) []schema.Recommendation {
	out := []schema.Recommendation{}
	if counts := schema.CountVulnerabilities(sec.Vulnerabilities); counts.Total > 0 {
		priority := schema.SeverityMedium
		if counts.Critical > 0 {
			priority = schema.SeverityCritical
		} else if counts.High > 0 {
			priority = schema.SeverityHigh
		}
		out = append(out, schema.Recommendation{
			Priority:    priority,
			Category:    schema.CategoryDependencies,
			Title:       "Update vulnerable dependencies",
			Description: fmt.Sprintf("%d open vulnerability alerts affect this repository.", counts.Total),
			Action:      "Upgrade the affected packages to their patched versions",
			Effort:      schema.LevelMedium,
			Impact:      schema.LevelHigh,
		})
	}
	if m.TestCoverage < 60 {
		out = append(out, schema.Recommendation{
			Priority:    schema.SeverityHigh,
			Category:    schema.CategoryTesting,
			Title:       "Increase test coverage",
			Description: fmt.Sprintf("Estimated coverage is %.1f%%.", m.TestCoverage),
			Action:      "Add a test suite and run it in continuous integration",
			Effort:      schema.LevelHigh,
			Impact:      schema.LevelHigh,
		})
	}
	if c.ComplexityGrade != schema.GradeA && c.ComplexityGrade != schema.GradeB {
		out = append(out, schema.Recommendation{
			Priority:    schema.SeverityMedium,
			Category:    schema.CategoryCodeQuality,
			Title:       "Reduce code complexity",
			Description: fmt.Sprintf("Average complexity is %.1f.", c.AverageComplexity),
			Action:      "Split large functions and simplify branching",
			Effort:      schema.LevelMedium,
			Impact:      schema.LevelMedium,
		})
	}
	if !l.readme || !l.docs {
		out = append(out, schema.Recommendation{
			Priority:    schema.SeverityLow,
			Category:    schema.CategoryDocumentation,
			Title:       "Improve documentation",
			Description: "Project documentation is incomplete.",
			Action:      "Add a README and contributor documentation",
			Effort:      schema.LevelLow,
			Impact:      schema.LevelMedium,
		})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
