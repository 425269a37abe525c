package iocache

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/codegrade/schema"
)

// Stats implements the Store interface.
func (s *StoreImpl) Stats(ctx context.Context) (schema.RepositoryStats, error) {
	stats := schema.RepositoryStats{
		LanguageDistribution:     []schema.LanguageCount{},
		QualityScoreDistribution: []schema.ScoreBucket{},
		RecentlyAnalyzed:         []schema.Repository{},
	}
	repos := s.table(repositoriesTable)

	var avg sql.NullFloat64
	query := fmt.Sprintf("SELECT COUNT(*), COUNT(last_quality_score), AVG(last_quality_score) FROM %s", repos)
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.TotalRepositories, &stats.AnalyzedRepositories, &avg); err != nil {
		return stats, fmt.Errorf("failed to aggregate repositories: %w", err)
	}
	if avg.Valid {
		stats.AverageQualityScore = int(math.Round(avg.Float64))
	}

	langQuery := fmt.Sprintf(`SELECT language, COUNT(*) AS n FROM %s WHERE language <> ''
		GROUP BY language ORDER BY n DESC, language ASC LIMIT 10`, repos)
	rows, err := s.db.QueryContext(ctx, langQuery)
	if err != nil {
		return stats, fmt.Errorf("failed to query language distribution: %w", err)
	}
	for rows.Next() {
		var lc schema.LanguageCount
		if err := rows.Scan(&lc.Language, &lc.Count); err != nil {
			_ = rows.Close()
			return stats, fmt.Errorf("failed to scan language count: %w", err)
		}
		stats.LanguageDistribution = append(stats.LanguageDistribution, lc)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating language distribution: %w", err)
	}

	// Bucketing happens here so the boundaries stay identical across backends.
	rows, err = s.db.QueryContext(ctx, fmt.Sprintf("SELECT last_quality_score FROM %s", repos))
	if err != nil {
		return stats, fmt.Errorf("failed to query quality scores: %w", err)
	}
	counts := make(map[string]int, len(schema.ScoreBucketLabels))
	for rows.Next() {
		var score sql.NullFloat64
		if err := rows.Scan(&score); err != nil {
			_ = rows.Close()
			return stats, fmt.Errorf("failed to scan quality score: %w", err)
		}
		var p *float64
		if score.Valid {
			p = &score.Float64
		}
		counts[schema.ScoreBucketLabel(p)]++
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating quality scores: %w", err)
	}
	for _, label := range schema.ScoreBucketLabels {
		if n := counts[label]; n > 0 {
			stats.QualityScoreDistribution = append(stats.QualityScoreDistribution, schema.ScoreBucket{Range: label, Count: n})
		}
	}

	recentQuery := fmt.Sprintf("SELECT %s FROM %s WHERE last_analyzed_at IS NOT NULL ORDER BY last_analyzed_at DESC LIMIT 5",
		repositoryColumns, repos)
	stats.RecentlyAnalyzed, err = s.queryRepositories(ctx, recentQuery)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Status implements the Store interface.
func (s *StoreImpl) Status(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.db == nil {
		return status, nil
	}
	if err := s.db.PingContext(ctx); err != nil {
		status.Connected = false
		return status, nil
	}

	version, err := schemaVersion(s.db, s.backend)
	if err != nil {
		return status, fmt.Errorf("failed to get schema version: %w", err)
	}
	status.SchemaVersion = version

	for _, table := range []string{repositoriesTable, analysesTable} {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table(table))
		if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalRepos = status.TableSizes[repositoriesTable]
	status.TotalAnalyses = status.TableSizes[analysesTable]

	if status.TotalAnalyses > 0 {
		var last dbTime
		query := fmt.Sprintf("SELECT MAX(created_at) FROM %s", s.table(analysesTable))
		if err := s.db.QueryRowContext(ctx, query).Scan(&last); err != nil {
			return status, fmt.Errorf("failed to get last analysis time: %w", err)
		}
		status.LastAnalysisTime = last.Time
	}

	if size, ok := s.databaseSize(ctx); ok {
		status.TableSizes["bytes"] = size
	}
	return status, nil
}

// databaseSize estimates the on-disk size of the store.
func (s *StoreImpl) databaseSize(ctx context.Context) (int64, bool) {
	var size int64
	switch s.backend {
	case schema.SQLiteBackend:
		query := "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()"
		if err := s.db.QueryRowContext(ctx, query).Scan(&size); err != nil {
			return 0, false
		}
	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(s.connStr)
		if err != nil || cfg.DBName == "" {
			return 0, false
		}
		query := `SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables
			WHERE table_schema = ? AND table_name IN (?, ?)`
		if err := s.db.QueryRowContext(ctx, query, cfg.DBName, repositoriesTable, analysesTable).Scan(&size); err != nil {
			return 0, false
		}
	case schema.PostgreSQLBackend:
		query := "SELECT pg_total_relation_size($1) + pg_total_relation_size($2)"
		if err := s.db.QueryRowContext(ctx, query, repositoriesTable, analysesTable).Scan(&size); err != nil {
			return 0, false
		}
	}
	return size, true
}
