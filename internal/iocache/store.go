package iocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
)

// StoreImpl implements contract.Store on SQLite, MySQL or PostgreSQL.
type StoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
	now     func() time.Time
}

var _ contract.Store = &StoreImpl{} // Compile-time check

// NewStore opens the store and migrates its schema to the latest version.
func NewStore(backend schema.DatabaseBackend, connStr string) (*StoreImpl, error) {
	for _, table := range []string{repositoriesTable, analysesTable} {
		if err := validateTableName(table); err != nil {
			return nil, err
		}
	}
	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}
	if _, err := migrateDB(db, backend, -1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create store tables: %w", err)
	}
	return &StoreImpl{db: db, backend: backend, connStr: connStr, now: time.Now}, nil
}

// repositoryColumns is the select list matching scanRepository.
const repositoryColumns = `id, github_id, owner, name, full_name, description, language, url, clone_url,
	default_branch, stars, forks, open_issues, size, is_private, tags, latest_analysis_id,
	last_quality_score, last_analyzed_at, last_synced_at, analysis_count, auto_analyze,
	analysis_frequency, added_by, github_created_at, github_updated_at, created_at, updated_at`

// repositorySortColumns whitelists the sortable listing fields.
var repositorySortColumns = map[string]string{
	"createdAt":        "created_at",
	"updatedAt":        "updated_at",
	"lastAnalyzedAt":   "last_analyzed_at",
	"lastQualityScore": "last_quality_score",
	"stars":            "stars",
	"forks":            "forks",
	"name":             "name",
	"fullName":         "full_name",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *StoreImpl) table(name string) string {
	return quoteTableName(name, s.backend)
}

func (s *StoreImpl) q(query string) string {
	return rebind(query, s.backend)
}

func scanRepository(row rowScanner) (schema.Repository, error) {
	var (
		repo                     schema.Repository
		tags                     string
		latestID                 sql.NullInt64
		lastScore                sql.NullFloat64
		lastAnalyzed, lastSynced dbTime
		ghCreated, ghUpdated     dbTime
		createdAt, updatedAt     dbTime
		frequency                string
	)
	err := row.Scan(&repo.ID, &repo.GitHubID, &repo.Owner, &repo.Name, &repo.FullName, &repo.Description,
		&repo.Language, &repo.URL, &repo.CloneURL, &repo.DefaultBranch, &repo.Stars, &repo.Forks,
		&repo.OpenIssues, &repo.Size, &repo.IsPrivate, &tags, &latestID, &lastScore, &lastAnalyzed,
		&lastSynced, &repo.AnalysisCount, &repo.AutoAnalyze, &frequency, &repo.AddedBy, &ghCreated,
		&ghUpdated, &createdAt, &updatedAt)
	if err != nil {
		return repo, err
	}
	if err := decodeJSON(tags, &repo.Tags); err != nil {
		return repo, fmt.Errorf("failed to decode tags of repository %d: %w", repo.ID, err)
	}
	if repo.Tags == nil {
		repo.Tags = []string{}
	}
	if latestID.Valid {
		repo.LatestAnalysisID = &latestID.Int64
	}
	if lastScore.Valid {
		repo.LastQualityScore = &lastScore.Float64
	}
	repo.AnalysisFrequency = schema.Frequency(frequency)
	repo.LastAnalyzedAt = lastAnalyzed.Ptr()
	repo.LastSyncedAt = lastSynced.Ptr()
	repo.GitHubCreatedAt = ghCreated.Ptr()
	repo.GitHubUpdatedAt = ghUpdated.Ptr()
	repo.CreatedAt = createdAt.Time
	repo.UpdatedAt = updatedAt.Time
	return repo, nil
}

func (s *StoreImpl) queryRepositories(ctx context.Context, query string, args ...any) ([]schema.Repository, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	repos := []schema.Repository{}
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repositories: %w", err)
	}
	return repos, nil
}

func (s *StoreImpl) getRepository(ctx context.Context, where string, args ...any) (schema.Repository, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", repositoryColumns, s.table(repositoriesTable), where)
	repo, err := scanRepository(s.db.QueryRowContext(ctx, s.q(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return repo, contract.ErrNotFound
	}
	if err != nil {
		return repo, fmt.Errorf("failed to get repository: %w", err)
	}
	return repo, nil
}

// insertReturningID runs an INSERT and returns the generated id.
func (s *StoreImpl) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if s.backend == schema.PostgreSQLBackend {
		var id int64
		err := s.db.QueryRowContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// CreateRepository implements the Store interface.
func (s *StoreImpl) CreateRepository(ctx context.Context, repo *schema.Repository) error {
	now := s.now().UTC()
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.UpdatedAt = now
	repo.Owner, repo.Name = schema.NormalizeName(repo.Owner), schema.NormalizeName(repo.Name)
	repo.FullName = schema.FullName(repo.Owner, repo.Name)
	if repo.Tags == nil {
		repo.Tags = []string{}
	}
	if repo.AnalysisFrequency == "" {
		repo.AnalysisFrequency = schema.FrequencyWeekly
	}
	tags, err := encodeJSON(repo.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (github_id, owner, name, full_name, description, language, url,
		clone_url, default_branch, stars, forks, open_issues, size, is_private, tags, analysis_count,
		auto_analyze, analysis_frequency, added_by, github_created_at, github_updated_at, last_synced_at,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table(repositoriesTable))
	id, err := s.insertReturningID(ctx, query,
		repo.GitHubID, repo.Owner, repo.Name, repo.FullName, repo.Description, repo.Language, repo.URL,
		repo.CloneURL, repo.DefaultBranch, repo.Stars, repo.Forks, repo.OpenIssues, repo.Size, repo.IsPrivate,
		tags, repo.AnalysisCount, repo.AutoAnalyze, string(repo.AnalysisFrequency), repo.AddedBy,
		formatNullTime(repo.GitHubCreatedAt, s.backend), formatNullTime(repo.GitHubUpdatedAt, s.backend),
		formatNullTime(repo.LastSyncedAt, s.backend),
		formatTime(repo.CreatedAt, s.backend), formatTime(repo.UpdatedAt, s.backend))
	if isUniqueViolation(err) {
		return fmt.Errorf("repository %s: %w", repo.FullName, contract.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert repository %s: %w", repo.FullName, err)
	}
	repo.ID = id
	return nil
}

// GetRepository implements the Store interface.
func (s *StoreImpl) GetRepository(ctx context.Context, id int64) (schema.Repository, error) {
	return s.getRepository(ctx, "id = ?", id)
}

// GetRepositoryByName implements the Store interface.
func (s *StoreImpl) GetRepositoryByName(ctx context.Context, owner, name string) (schema.Repository, error) {
	return s.getRepository(ctx, "owner = ? AND name = ?", schema.NormalizeName(owner), schema.NormalizeName(name))
}

// ListRepositories implements the Store interface.
func (s *StoreImpl) ListRepositories(ctx context.Context, q schema.RepositoryQuery) ([]schema.Repository, int, error) {
	var (
		conds []string
		args  []any
	)
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(owner) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, like, like, like)
	}
	if q.Language != "" {
		conds = append(conds, "language = ?")
		args = append(args, q.Language)
	}
	if q.MinScore != nil {
		conds = append(conds, "last_quality_score >= ?")
		args = append(args, *q.MinScore)
	}
	if q.MaxScore != nil {
		conds = append(conds, "last_quality_score <= ?")
		args = append(args, *q.MaxScore)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.table(repositoriesTable), where)
	if err := s.db.QueryRowContext(ctx, s.q(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count repositories: %w", err)
	}

	column, ok := repositorySortColumns[q.SortBy]
	if !ok {
		column = "updated_at"
	}
	order := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		order = "ASC"
	}
	limit, page := q.Limit, q.Page
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s, id %s LIMIT %d OFFSET %d",
		repositoryColumns, s.table(repositoriesTable), where, column, order, order, limit, (page-1)*limit)
	repos, err := s.queryRepositories(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return repos, total, nil
}

// ListAutoAnalyze implements the Store interface.
func (s *StoreImpl) ListAutoAnalyze(ctx context.Context) ([]schema.Repository, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE auto_analyze = ? ORDER BY id", repositoryColumns, s.table(repositoriesTable))
	return s.queryRepositories(ctx, query, true)
}

// AllRepositories implements the Store interface.
func (s *StoreImpl) AllRepositories(ctx context.Context) ([]schema.Repository, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", repositoryColumns, s.table(repositoriesTable))
	return s.queryRepositories(ctx, query)
}

// UpdateRepository implements the Store interface.
func (s *StoreImpl) UpdateRepository(ctx context.Context, id int64, upd schema.RepositoryUpdate) (schema.Repository, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.now(), s.backend)}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Tags != nil {
		tags, err := encodeJSON(upd.Tags)
		if err != nil {
			return schema.Repository{}, fmt.Errorf("failed to encode tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	if upd.AutoAnalyze != nil {
		sets = append(sets, "auto_analyze = ?")
		args = append(args, *upd.AutoAnalyze)
	}
	if upd.AnalysisFrequency != nil {
		sets = append(sets, "analysis_frequency = ?")
		args = append(args, string(*upd.AnalysisFrequency))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", s.table(repositoriesTable), strings.Join(sets, ", "))
	if err := s.execOne(ctx, query, args...); err != nil {
		return schema.Repository{}, err
	}
	return s.GetRepository(ctx, id)
}

// SyncRepository implements the Store interface.
func (s *StoreImpl) SyncRepository(ctx context.Context, id int64, meta schema.GitHubRepository, at time.Time) (schema.Repository, error) {
	query := fmt.Sprintf(`UPDATE %s SET description = ?, language = ?, url = ?, clone_url = ?, default_branch = ?,
		stars = ?, forks = ?, open_issues = ?, size = ?, is_private = ?, github_updated_at = ?, last_synced_at = ?,
		updated_at = ? WHERE id = ?`, s.table(repositoriesTable))
	updated := meta.UpdatedAt
	err := s.execOne(ctx, query, meta.Description, meta.Language, meta.URL, meta.CloneURL, meta.DefaultBranch,
		meta.Stars, meta.Forks, meta.OpenIssues, meta.Size, meta.IsPrivate, formatNullTime(&updated, s.backend),
		formatTime(at, s.backend), formatTime(at, s.backend), id)
	if err != nil {
		return schema.Repository{}, err
	}
	return s.GetRepository(ctx, id)
}

// execOne runs an UPDATE that must match a row.
func (s *StoreImpl) execOne(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update repository: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		// MySQL reports zero for a matched row whose values did not change.
		if s.backend == schema.MySQLBackend {
			return s.ensureRepository(ctx, args[len(args)-1])
		}
		return contract.ErrNotFound
	}
	return nil
}

func (s *StoreImpl) ensureRepository(ctx context.Context, id any) error {
	var exists int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", s.table(repositoriesTable))
	if err := s.db.QueryRowContext(ctx, s.q(query), id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check repository: %w", err)
	}
	if exists == 0 {
		return contract.ErrNotFound
	}
	return nil
}

// DeleteRepository implements the Store interface.
func (s *StoreImpl) DeleteRepository(ctx context.Context, id int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, s.q(fmt.Sprintf("DELETE FROM %s WHERE repository_id = ?", s.table(analysesTable))), id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete analyses of repository %d: %w", id, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	result, err = tx.ExecContext(ctx, s.q(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table(repositoriesTable))), id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete repository %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	} else if n == 0 {
		return 0, contract.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete of repository %d: %w", id, err)
	}
	return removed, nil
}

// Close closes the underlying connection.
func (s *StoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
