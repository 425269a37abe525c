package schema

import "time"

// Analysis is one analysis run of a repository.
// Completed records are immutable; trends are computed once when the record is saved.
type Analysis struct {
	ID               int64            `json:"id"`
	RepositoryID     int64            `json:"repository"`
	RequestID        string           `json:"requestId"` // Idempotency key for saves
	QualityScore     float64          `json:"qualityScore"`
	CodeMetrics      CodeMetrics      `json:"codeMetrics"`
	Security         Security         `json:"security"`
	Complexity       Complexity       `json:"complexity"`
	Issues           []Issue          `json:"issues"`
	Recommendations  []Recommendation `json:"recommendations"`
	Trends           Trends           `json:"trends"`
	Status           AnalysisStatus   `json:"status"`
	ErrorMessage     string           `json:"errorMessage,omitempty"`
	TriggeredBy      TriggeredBy      `json:"triggeredBy"`
	AnalysisVersion  string           `json:"analysisVersion"`
	AnalyzedBranch   string           `json:"analyzedBranch"`
	AnalysisDuration int64            `json:"analysisDuration"` // milliseconds
	CreatedAt        time.Time        `json:"createdAt"`
}

// AnalysisResult is what the analysis producer returns.
type AnalysisResult struct {
	QualityScore    float64
	CodeMetrics     CodeMetrics
	Security        Security
	Complexity      Complexity
	Issues          []Issue
	Recommendations []Recommendation
	Branch          string
}

// CodeMetrics holds size and health estimates of the code base.
type CodeMetrics struct {
	LinesOfCode          int     `json:"linesOfCode"`
	FileCount            int     `json:"fileCount"`
	TestCoverage         float64 `json:"testCoverage"`         // 0-100
	MaintainabilityIndex float64 `json:"maintainabilityIndex"` // 0-100
	TechnicalDebt        float64 `json:"technicalDebt"`        // hours
	DuplicateLines       int     `json:"duplicateLines"`
}

// Security holds dependency and vulnerability findings.
type Security struct {
	TotalDependencies    int             `json:"totalDependencies"`
	Vulnerabilities      []Vulnerability `json:"vulnerabilities"`
	OutdatedDependencies int             `json:"outdatedDependencies"`
	HasLockFile          bool            `json:"hasLockFile"`
	SecurityScore        float64         `json:"securityScore"` // 0-100
}

// Vulnerability is one known vulnerable dependency.
type Vulnerability struct {
	Package     string   `json:"package"`
	Version     string   `json:"version,omitempty"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	CVE         string   `json:"cve,omitempty"`
	FixedIn     string   `json:"fixedIn,omitempty"`
}

// Complexity holds cyclomatic complexity estimates.
type Complexity struct {
	AverageComplexity   float64       `json:"averageComplexity"`
	MaxComplexity       float64       `json:"maxComplexity"`
	ComplexityGrade     Grade         `json:"complexityGrade"`
	HighComplexityFiles []ComplexFile `json:"highComplexityFiles"`
}

// ComplexFile is a file whose complexity stands out.
type ComplexFile struct {
	File       string  `json:"file"`
	Complexity float64 `json:"complexity"`
	Functions  int     `json:"functions"`
}

// Issue is a single finding in the code base.
type Issue struct {
	Category string   `json:"type"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Message  string   `json:"message"`
	Rule     string   `json:"rule,omitempty"`
}

// Recommendation is a suggested improvement.
type Recommendation struct {
	Priority    Severity `json:"priority"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Action      string   `json:"action,omitempty"`
	Effort      Level    `json:"effort"`
	Impact      Level    `json:"impact"`
}

// Trends are deltas against the prior completed analysis of the same repository.
type Trends struct {
	QualityScoreDelta  float64 `json:"qualityScoreDelta"`
	TestCoverageDelta  float64 `json:"testCoverageDelta"`
	SecurityScoreDelta float64 `json:"securityScoreDelta"`
	ComplexityDelta    float64 `json:"complexityDelta"`
}

// SeverityCounts counts items by severity.
type SeverityCounts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// AnalysisComparison is the difference between two analyses.
type AnalysisComparison struct {
	Base              Analysis `json:"analysis1"`
	Target            Analysis `json:"analysis2"`
	QualityScoreDiff  float64  `json:"qualityScoreDiff"`
	TestCoverageDiff  float64  `json:"testCoverageDiff"`
	SecurityScoreDiff float64  `json:"securityScoreDiff"`
	ComplexityDiff    float64  `json:"complexityDiff"`
	IssuesDiff        int      `json:"issuesDiff"`
}
