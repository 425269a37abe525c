package iocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
)

// analysisColumns is the select list matching scanAnalysis.
const analysisColumns = `id, repository_id, request_id, quality_score, code_metrics, security, complexity,
	issues, recommendations, trends, status, error_message, triggered_by, analysis_version,
	analyzed_branch, analysis_duration_ms, created_at`

func scanAnalysis(row rowScanner) (schema.Analysis, error) {
	var (
		a                             schema.Analysis
		metrics, security, complexity string
		issues, recommendations       string
		trends                        sql.NullString
		status, triggeredBy           string
		createdAt                     dbTime
	)
	err := row.Scan(&a.ID, &a.RepositoryID, &a.RequestID, &a.QualityScore, &metrics, &security, &complexity,
		&issues, &recommendations, &trends, &status, &a.ErrorMessage, &triggeredBy, &a.AnalysisVersion,
		&a.AnalyzedBranch, &a.AnalysisDuration, &createdAt)
	if err != nil {
		return a, err
	}
	for _, col := range []struct {
		raw string
		dst any
	}{
		{metrics, &a.CodeMetrics},
		{security, &a.Security},
		{complexity, &a.Complexity},
		{issues, &a.Issues},
		{recommendations, &a.Recommendations},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return a, fmt.Errorf("failed to decode analysis %d: %w", a.ID, err)
		}
	}
	if trends.Valid {
		if err := decodeJSON(trends.String, &a.Trends); err != nil {
			return a, fmt.Errorf("failed to decode trends of analysis %d: %w", a.ID, err)
		}
	}
	a.Status = schema.AnalysisStatus(status)
	a.TriggeredBy = schema.TriggeredBy(triggeredBy)
	a.CreatedAt = createdAt.Time
	return a, nil
}

func (s *StoreImpl) queryAnalyses(ctx context.Context, query string, args ...any) ([]schema.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	analyses := []schema.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}
	return analyses, nil
}

func (s *StoreImpl) getAnalysis(ctx context.Context, where string, args ...any) (schema.Analysis, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", analysisColumns, s.table(analysesTable), where)
	a, err := scanAnalysis(s.db.QueryRowContext(ctx, s.q(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return a, contract.ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// SaveAnalysis implements the Store interface.
func (s *StoreImpl) SaveAnalysis(ctx context.Context, a *schema.Analysis) error {
	if a.RequestID == "" {
		return fmt.Errorf("analysis of repository %d has no request id", a.RepositoryID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if a.AnalysisVersion == "" {
		a.AnalysisVersion = schema.AnalysisVersion
	}

	encoded := make([]string, 0, 6)
	for _, v := range []any{a.CodeMetrics, a.Security, a.Complexity, nonNil(a.Issues), nonNil(a.Recommendations), a.Trends} {
		text, err := encodeJSON(v)
		if err != nil {
			return fmt.Errorf("failed to encode analysis: %w", err)
		}
		encoded = append(encoded, text)
	}
	query := fmt.Sprintf(`INSERT INTO %s (repository_id, request_id, quality_score, code_metrics, security,
		complexity, issues, recommendations, trends, status, error_message, triggered_by, analysis_version,
		analyzed_branch, analysis_duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table(analysesTable))
	id, err := s.insertReturningID(ctx, query, a.RepositoryID, a.RequestID, a.QualityScore,
		encoded[0], encoded[1], encoded[2], encoded[3], encoded[4], encoded[5], string(a.Status), a.ErrorMessage,
		string(a.TriggeredBy), a.AnalysisVersion, a.AnalyzedBranch, a.AnalysisDuration,
		formatTime(a.CreatedAt, s.backend))
	if isUniqueViolation(err) {
		// A retry of a write that already landed.
		stored, getErr := s.getAnalysis(ctx, "request_id = ?", a.RequestID)
		if getErr != nil {
			return fmt.Errorf("failed to load analysis for request %s: %w", a.RequestID, getErr)
		}
		*a = stored
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert analysis for repository %d: %w", a.RepositoryID, err)
	}
	a.ID = id
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// GetAnalysis implements the Store interface.
func (s *StoreImpl) GetAnalysis(ctx context.Context, id int64) (schema.Analysis, error) {
	return s.getAnalysis(ctx, "id = ?", id)
}

// LatestCompletedAnalysis implements the Store interface.
func (s *StoreImpl) LatestCompletedAnalysis(ctx context.Context, repoID int64) (*schema.Analysis, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE repository_id = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT 1",
		analysisColumns, s.table(analysesTable))
	a, err := scanAnalysis(s.db.QueryRowContext(ctx, s.q(query), repoID, string(schema.StatusCompleted)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest analysis of repository %d: %w", repoID, err)
	}
	return &a, nil
}

// ListAnalyses implements the Store interface.
func (s *StoreImpl) ListAnalyses(ctx context.Context, repoID int64, limit int) ([]schema.Analysis, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE repository_id = ? ORDER BY created_at DESC, id DESC LIMIT %d",
		analysisColumns, s.table(analysesTable), limit)
	return s.queryAnalyses(ctx, query, repoID)
}

// AllAnalyses implements the Store interface.
func (s *StoreImpl) AllAnalyses(ctx context.Context) ([]schema.Analysis, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", analysisColumns, s.table(analysesTable))
	return s.queryAnalyses(ctx, query)
}

// SetLatestAnalysis implements the Store interface. The analysis count is
// recomputed rather than incremented so that a repeated update is harmless.
func (s *StoreImpl) SetLatestAnalysis(ctx context.Context, repoID, analysisID int64, score float64, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET latest_analysis_id = ?, last_quality_score = ?, last_analyzed_at = ?,
		analysis_count = (SELECT COUNT(*) FROM %s WHERE repository_id = ? AND status = ?), updated_at = ?
		WHERE id = ?`, s.table(repositoriesTable), s.table(analysesTable))
	return s.execOne(ctx, query, analysisID, score, formatTime(at, s.backend), repoID,
		string(schema.StatusCompleted), formatTime(s.now(), s.backend), repoID)
}
