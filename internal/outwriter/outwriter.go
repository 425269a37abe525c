// Package outwriter has output and writer logic.
package outwriter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// OutWriter provides a unified interface for CLI output.
// Text renders tables, JSON renders the raw records.
type OutWriter struct {
	Output     schema.OutputMode
	OutputFile string
	now        func() time.Time
}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter(output schema.OutputMode, outputFile string) *OutWriter {
	return &OutWriter{Output: output, OutputFile: outputFile, now: time.Now}
}

// analysisReport is the JSON shape of a single analysis.
type analysisReport struct {
	Repository schema.Repository `json:"repository"`
	Analysis   *schema.Analysis  `json:"analysis"`
	Cached     bool              `json:"cached"`
}

// WriteAnalysis prints a repository with its analysis.
func (ow *OutWriter) WriteAnalysis(repo schema.Repository, a *schema.Analysis, cached bool) error {
	if ow.Output == schema.JSONOut {
		return writeWithFile(ow.OutputFile, func(w io.Writer) error {
			return writeJSON(w, analysisReport{Repository: repo, Analysis: a, Cached: cached})
		}, "Wrote JSON")
	}
	return writeWithFile(ow.OutputFile, func(w io.Writer) error {
		return writeAnalysisTable(w, repo, a, cached)
	}, "Wrote table")
}

func writeAnalysisTable(w io.Writer, repo schema.Repository, a *schema.Analysis, cached bool) error {
	if _, err := fmt.Fprintf(w, "📦 %s/%s (%s, ★ %d)\n", repo.Owner, repo.Name, repo.Language, repo.Stars); err != nil {
		return err
	}
	if a == nil {
		_, err := fmt.Fprintln(w, "No analysis available")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Value", "Grade", "Trend"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 1. Scores ---
	score := a.QualityScore
	data := [][]string{
		{"Quality", formatScore(score), contract.GetColorGrade(schema.QualityGrade(&score)), formatDelta(a.Trends.QualityScoreDelta)},
		{"Test coverage", formatScore(a.CodeMetrics.TestCoverage) + "%", "", formatDelta(a.Trends.TestCoverageDelta)},
		{"Security", formatScore(a.Security.SecurityScore), "", formatDelta(a.Trends.SecurityScoreDelta)},
		{"Maintainability", formatScore(a.CodeMetrics.MaintainabilityIndex), "", ""},
		{"Complexity", formatScore(a.Complexity.AverageComplexity), contract.GetColorGrade(a.Complexity.ComplexityGrade), formatDelta(a.Trends.ComplexityDelta)},
	}

	// --- 2. Counts ---
	data = append(data,
		[]string{"Lines of code", strconv.Itoa(a.CodeMetrics.LinesOfCode), "", ""},
		[]string{"Vulnerabilities", strconv.Itoa(len(a.Security.Vulnerabilities)), "", ""},
		[]string{"Issues", strconv.Itoa(len(a.Issues)), "", ""},
	)
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(a.Recommendations) > 0 {
		if err := writeRecommendations(w, a.Recommendations); err != nil {
			return err
		}
	}

	source := "fresh"
	if cached {
		source = "cached"
	}
	_, err := fmt.Fprintf(w, "Analysis #%d on %s (%s, %dms, %s)\n",
		a.ID, a.AnalyzedBranch, a.CreatedAt.Format(contract.DateTimeFormat), a.AnalysisDuration, source)
	return err
}

func writeRecommendations(w io.Writer, recs []schema.Recommendation) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Priority", "Category", "Recommendation"})
	width := textWidth(35)
	var data [][]string
	for _, r := range recs {
		data = append(data, []string{string(r.Priority), r.Category, truncate(r.Title, width)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// WriteRepositories prints one page of tracked repositories.
func (ow *OutWriter) WriteRepositories(page schema.RepositoryPage) error {
	if ow.Output == schema.JSONOut {
		return writeWithFile(ow.OutputFile, func(w io.Writer) error {
			return writeJSON(w, page)
		}, "Wrote JSON")
	}
	return writeWithFile(ow.OutputFile, func(w io.Writer) error {
		return ow.writeRepositoryTable(w, page)
	}, "Wrote table")
}

func (ow *OutWriter) writeRepositoryTable(w io.Writer, page schema.RepositoryPage) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Repository", "Language", "Score", "Grade", "Analyzed", "Schedule"})

	now := ow.now()
	width := textWidth(60)
	var data [][]string
	for _, r := range page.Repositories {
		score, analyzed := "-", "never"
		if r.LastQualityScore != nil {
			score = formatScore(*r.LastQualityScore)
		}
		if days := schema.DaysSinceLastAnalysis(r, now); days != nil {
			analyzed = fmt.Sprintf("%dd ago", *days)
		}
		data = append(data, []string{
			strconv.FormatInt(r.ID, 10),
			truncate(r.Owner+"/"+r.Name, width),
			r.Language,
			score,
			contract.GetColorGrade(schema.QualityGrade(r.LastQualityScore)),
			analyzed,
			string(r.AnalysisFrequency),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	p := page.Pagination
	_, err := fmt.Fprintf(w, "Page %d of %d (%d repositories)\n", p.CurrentPage, p.TotalPages, p.TotalItems)
	return err
}

// WriteStatus prints a status report, as JSON or through the given text printer.
func (ow *OutWriter) WriteStatus(status any, printText func(io.Writer)) error {
	return writeWithFile(ow.OutputFile, func(w io.Writer) error {
		if ow.Output == schema.JSONOut {
			return writeJSON(w, status)
		}
		printText(w)
		return nil
	}, "Wrote status")
}
