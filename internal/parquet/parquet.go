// Package parquet provides data structures and functions for exporting tracked
// repositories and their analyses to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/huangsam/codegrade/schema"
	"github.com/parquet-go/parquet-go"
)

// Repository is one tracked repository.
// This struct maps to the codegrade_repositories database table.
type Repository struct {
	ID       int64  `parquet:"id,snappy"`
	GitHubID int64  `parquet:"github_id,snappy"`
	FullName string `parquet:"full_name,snappy"`
	Language string `parquet:"language,snappy"`
	Stars    int32  `parquet:"stars,snappy"`
	Forks    int32  `parquet:"forks,snappy"`

	// LatestAnalysisID references the analysis backing the denormalized score (nullable)
	LatestAnalysisID *int64 `parquet:"latest_analysis_id,optional,snappy"`

	// LastQualityScore is absent until the first completed analysis
	LastQualityScore *float64   `parquet:"last_quality_score,optional,snappy"`
	LastAnalyzedAt   *time.Time `parquet:"last_analyzed_at,optional,snappy"`

	AnalysisCount     int32     `parquet:"analysis_count,snappy"`
	AutoAnalyze       bool      `parquet:"auto_analyze,snappy"`
	AnalysisFrequency string    `parquet:"analysis_frequency,snappy"`
	Tags              []string  `parquet:"tags,list"`
	CreatedAt         time.Time `parquet:"created_at,snappy"`
}

// Analysis is one analysis run flattened to its headline metrics.
// This struct maps to the codegrade_analyses database table.
type Analysis struct {
	ID           int64   `parquet:"id,snappy"`
	RepositoryID int64   `parquet:"repository_id,snappy"`
	RequestID    string  `parquet:"request_id,snappy"`
	Status       string  `parquet:"status,snappy"`
	QualityScore float64 `parquet:"quality_score,snappy"`

	LinesOfCode          int32   `parquet:"lines_of_code,snappy"`
	TestCoverage         float64 `parquet:"test_coverage,snappy"`
	MaintainabilityIndex float64 `parquet:"maintainability_index,snappy"`
	SecurityScore        float64 `parquet:"security_score,snappy"`
	Vulnerabilities      int32   `parquet:"vulnerabilities,snappy"`
	AverageComplexity    float64 `parquet:"average_complexity,snappy"`
	ComplexityGrade      string  `parquet:"complexity_grade,snappy"`
	IssueCount           int32   `parquet:"issue_count,snappy"`
	QualityScoreDelta    float64 `parquet:"quality_score_delta,snappy"`

	// Details holds the full JSON-encoded record for lossless downstream use
	Details string `parquet:"details,snappy"`

	TriggeredBy      string    `parquet:"triggered_by,snappy"`
	AnalysisDuration int64     `parquet:"analysis_duration_ms,snappy"`
	CreatedAt        time.Time `parquet:"created_at,snappy"`
}

// writeParquet writes rows to a Parquet file using struct schema inference.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to flush parquet file: %w", err)
	}
	return nil
}

// WriteRepositoriesParquet writes repositories to a Parquet file.
func WriteRepositoriesParquet(data []Repository, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteAnalysesParquet writes analyses to a Parquet file.
func WriteAnalysesParquet(data []Analysis, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ConvertRepositories converts schema.Repository records for Parquet export.
func ConvertRepositories(records []schema.Repository) []Repository {
	result := make([]Repository, len(records))
	for i, r := range records {
		result[i] = Repository{
			ID:                r.ID,
			GitHubID:          r.GitHubID,
			FullName:          r.FullName,
			Language:          r.Language,
			Stars:             int32(r.Stars),
			Forks:             int32(r.Forks),
			LatestAnalysisID:  r.LatestAnalysisID,
			LastQualityScore:  r.LastQualityScore,
			LastAnalyzedAt:    r.LastAnalyzedAt,
			AnalysisCount:     int32(r.AnalysisCount),
			AutoAnalyze:       r.AutoAnalyze,
			AnalysisFrequency: string(r.AnalysisFrequency),
			Tags:              r.Tags,
			CreatedAt:         r.CreatedAt,
		}
	}
	return result
}

// ConvertAnalyses converts schema.Analysis records for Parquet export.
func ConvertAnalyses(records []schema.Analysis) ([]Analysis, error) {
	result := make([]Analysis, len(records))
	for i, a := range records {
		details, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode analysis %d: %w", a.ID, err)
		}
		result[i] = Analysis{
			ID:                   a.ID,
			RepositoryID:         a.RepositoryID,
			RequestID:            a.RequestID,
			Status:               string(a.Status),
			QualityScore:         a.QualityScore,
			LinesOfCode:          int32(a.CodeMetrics.LinesOfCode),
			TestCoverage:         a.CodeMetrics.TestCoverage,
			MaintainabilityIndex: a.CodeMetrics.MaintainabilityIndex,
			SecurityScore:        a.Security.SecurityScore,
			Vulnerabilities:      int32(len(a.Security.Vulnerabilities)),
			AverageComplexity:    a.Complexity.AverageComplexity,
			ComplexityGrade:      string(a.Complexity.ComplexityGrade),
			IssueCount:           int32(len(a.Issues)),
			QualityScoreDelta:    a.Trends.QualityScoreDelta,
			Details:              string(details),
			TriggeredBy:          string(a.TriggeredBy),
			AnalysisDuration:     a.AnalysisDuration,
			CreatedAt:            a.CreatedAt,
		}
	}
	return result, nil
}
