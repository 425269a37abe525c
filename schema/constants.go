package schema

// Custom string types for type safety.
type (
	// AnalysisStatus represents the lifecycle state of an analysis record.
	AnalysisStatus string

	// Frequency represents how often a repository is re-analyzed automatically.
	Frequency string

	// Severity represents the severity of a vulnerability, issue or recommendation.
	Severity string

	// Grade represents a letter grade.
	Grade string

	// Level represents a coarse low/medium/high estimate.
	Level string

	// TriggeredBy records what started an analysis.
	TriggeredBy string

	// BadgeVariant selects which metric a badge shows.
	BadgeVariant string

	// DatabaseBackend represents the database backend for durable storage.
	DatabaseBackend string

	// OutputMode represents the format of CLI output.
	OutputMode string
)

// All analysis states supported.
const (
	StatusPending   AnalysisStatus = "pending"
	StatusRunning   AnalysisStatus = "running"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
	StatusCancelled AnalysisStatus = "cancelled"
)

// All analysis frequencies supported.
const (
	FrequencyManual  Frequency = "manual"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly" // default
	FrequencyMonthly Frequency = "monthly"
)

// All severities supported, from least to most severe.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// All grades supported.
const (
	GradeA       Grade = "A"
	GradeB       Grade = "B"
	GradeC       Grade = "C"
	GradeD       Grade = "D"
	GradeF       Grade = "F"
	GradeUnknown Grade = "N/A"
)

// All effort and impact levels supported.
const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// All analysis triggers supported.
const (
	TriggerManual    TriggeredBy = "manual"
	TriggerScheduled TriggeredBy = "scheduled"
	TriggerWebhook   TriggeredBy = "webhook"
	TriggerAPI       TriggeredBy = "api"
)

// All badge variants supported.
const (
	BadgeQuality    BadgeVariant = "quality" // default
	BadgeSecurity   BadgeVariant = "security"
	BadgeCoverage   BadgeVariant = "coverage"
	BadgeComplexity BadgeVariant = "complexity"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
)

// All output modes supported.
const (
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// Issue categories.
const (
	CategorySecurity        = "security"
	CategoryPerformance     = "performance"
	CategoryMaintainability = "maintainability"
	CategoryReliability     = "reliability"
	CategoryStyle           = "style"
)

// Recommendation categories.
const (
	CategoryTesting       = "testing"
	CategoryCodeQuality   = "code-quality"
	CategoryDependencies  = "dependencies"
	CategoryDocumentation = "documentation"
)

// AnalysisVersion is stamped on every analysis record.
const AnalysisVersion = "1.0.0"

// AllBadgeVariants lists badge variants in display order.
var AllBadgeVariants = []BadgeVariant{BadgeQuality, BadgeSecurity, BadgeCoverage, BadgeComplexity}

// ValidFrequencies lists all valid analysis frequencies.
var ValidFrequencies = map[Frequency]struct{}{
	FrequencyManual:  {},
	FrequencyDaily:   {},
	FrequencyWeekly:  {},
	FrequencyMonthly: {},
}

// ValidBadgeVariants lists all valid badge variants.
var ValidBadgeVariants = map[BadgeVariant]struct{}{
	BadgeQuality:    {},
	BadgeSecurity:   {},
	BadgeCoverage:   {},
	BadgeComplexity: {},
}

// ValidDatabaseBackends lists all valid durable store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut: {},
	JSONOut: {},
}
