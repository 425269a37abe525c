package iocache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/internal/parquet"
)

// ExportResult names the files written by an export.
type ExportResult struct {
	RepositoriesFile string
	AnalysesFile     string
	Repositories     int
	Analyses         int
}

// ExecuteExport writes all repositories and analyses of store to Parquet files
// named after outputFile.
func ExecuteExport(ctx context.Context, store contract.Store, outputFile string, w io.Writer) (ExportResult, error) {
	var result ExportResult
	if outputFile == "" {
		return result, errors.New("--output-file is required for export command")
	}

	status, err := store.Status(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get store status: %w", err)
	}
	if status.TotalRepos == 0 {
		return result, errors.New("no repositories found to export")
	}
	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)

	repos, err := store.AllRepositories(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to retrieve repositories: %w", err)
	}
	analyses, err := store.AllAnalyses(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to retrieve analyses: %w", err)
	}
	parquetAnalyses, err := parquet.ConvertAnalyses(analyses)
	if err != nil {
		return result, err
	}

	result.RepositoriesFile = outputFile + ".repositories.parquet"
	if err := parquet.WriteRepositoriesParquet(parquet.ConvertRepositories(repos), result.RepositoriesFile); err != nil {
		return result, fmt.Errorf("failed to write repositories: %w", err)
	}
	result.Repositories = len(repos)
	_, _ = fmt.Fprintf(w, "Exported %d repositories to: %s\n", len(repos), result.RepositoriesFile)

	result.AnalysesFile = outputFile + ".analyses.parquet"
	if err := parquet.WriteAnalysesParquet(parquetAnalyses, result.AnalysesFile); err != nil {
		return result, fmt.Errorf("failed to write analyses: %w", err)
	}
	result.Analyses = len(analyses)
	_, _ = fmt.Fprintf(w, "Exported %d analyses to: %s\n", len(analyses), result.AnalysesFile)
	return result, nil
}
