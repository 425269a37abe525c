// Package main benchmarks the codegrade CLI against live GitHub repositories.
// Each repository is analyzed with --force a few times to time the full
// pipeline, then without it to time the reuse path: the first run is cold,
// the rest are warm and must report a cached analysis. Badge rendering is
// timed the same way. Results are written to a timestamped CSV file.
//
// Prerequisites:
// - codegrade binary installed and available in PATH
// - CODEGRADE_GITHUB_TOKEN exported
//
// Usage: go run benchmark/main.go [repo-url...]
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the timings of one command against one repository.
type BenchmarkResult struct {
	Repository string
	Command    string
	ForcedTime string
	ColdTime   string
	WarmTime   string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Timeout    time.Duration
	ForcedRuns int
	ReuseRuns  int
	Repos      []string
	StorePath  string
}

var defaultRepos = []string{
	"https://github.com/spf13/cobra",
	"https://github.com/redis/go-redis",
	"https://github.com/kubernetes/kubernetes",
}

func main() {
	repos := defaultRepos
	if len(os.Args) > 1 {
		repos = os.Args[1:]
	}

	dir, err := os.MkdirTemp("", "codegrade-bench")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	config := BenchmarkConfig{
		Timeout:    5 * time.Minute,
		ForcedRuns: 2,
		ReuseRuns:  4,
		Repos:      repos,
		StorePath:  filepath.Join(dir, "bench.db"),
	}

	if err := checkPrerequisites(); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the binary and a token are available.
func checkPrerequisites() error {
	if _, err := exec.LookPath("codegrade"); err != nil {
		return fmt.Errorf("codegrade binary not found in PATH")
	}
	if os.Getenv("CODEGRADE_GITHUB_TOKEN") == "" {
		return fmt.Errorf("CODEGRADE_GITHUB_TOKEN is not set")
	}
	return nil
}

// runBenchmarks executes the analyze and badge suites for every repository.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d repos, %v timeout, forced: %d runs, reuse: %d runs\n",
		len(config.Repos), config.Timeout, config.ForcedRuns, config.ReuseRuns)

	for _, repo := range config.Repos {
		fmt.Printf("Benchmarking %s\n", repo)
		results = append(results, runAnalyzeSuite(config, repo))
		if fullName := strings.TrimPrefix(repo, "https://github.com/"); fullName != repo {
			results = append(results, runBadgeSuite(config, fullName))
		}
	}
	return results
}

// runAnalyzeSuite times forced analyses first, then the reuse path.
func runAnalyzeSuite(config BenchmarkConfig, repo string) BenchmarkResult {
	forced := timeRuns(config, config.ForcedRuns, isFresh, "analyze", repo, "--force", "--output", "json")
	reuse := timeRuns(config, config.ReuseRuns, isAnalysis, "analyze", repo, "--output", "json")

	result := BenchmarkResult{Repository: repo, Command: "analyze", ForcedTime: average(forced)}
	result.ColdTime, result.WarmTime = coldWarm(reuse)
	fmt.Printf("  Forced average: %s, Cold time: %s, Warm average: %s\n", result.ForcedTime, result.ColdTime, result.WarmTime)
	return result
}

// runBadgeSuite times badge rendering of an analyzed repository.
func runBadgeSuite(config BenchmarkConfig, fullName string) BenchmarkResult {
	runs := timeRuns(config, config.ReuseRuns, isBadge, "badge", fullName)
	result := BenchmarkResult{Repository: fullName, Command: "badge", ForcedTime: "-"}
	result.ColdTime, result.WarmTime = coldWarm(runs)
	fmt.Printf("  Badge cold time: %s, warm average: %s\n", result.ColdTime, result.WarmTime)
	return result
}

// timeRuns runs codegrade numRuns times and returns the durations of successful runs.
func timeRuns(config BenchmarkConfig, numRuns int, ok func([]byte) bool, args ...string) []float64 {
	args = append(args, "--store-db-connect", config.StorePath, "--log-level", "error", "--schedule", "")

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()
		cmd := exec.Command("codegrade", args...)

		done := make(chan struct{})
		var output []byte
		var cmdErr error
		go func() {
			output, cmdErr = cmd.Output()
			close(done)
		}()

		select {
		case <-done:
			if cmdErr == nil && ok(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
			<-done
		}
	}
	return times
}

// analyzeOutput is the part of the analyze JSON report the checks read.
type analyzeOutput struct {
	Cached   bool            `json:"cached"`
	Analysis json.RawMessage `json:"analysis"`
}

func decodeAnalyze(output []byte) (analyzeOutput, bool) {
	var out analyzeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return out, false
	}
	return out, len(out.Analysis) > 0 && string(out.Analysis) != "null"
}

func isFresh(output []byte) bool {
	out, ok := decodeAnalyze(output)
	return ok && !out.Cached
}

func isAnalysis(output []byte) bool {
	_, ok := decodeAnalyze(output)
	return ok
}

func isBadge(output []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(output)), "<svg")
}

func average(times []float64) string {
	if len(times) == 0 {
		return "TIMEOUT"
	}
	var sum float64
	for _, t := range times {
		sum += t
	}
	return fmt.Sprintf("%.3fs", sum/float64(len(times)))
}

func coldWarm(times []float64) (cold, warm string) {
	if len(times) == 0 {
		return "TIMEOUT", "TIMEOUT"
	}
	return fmt.Sprintf("%.3fs", times[0]), average(times[1:])
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("codegrade_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"repo", "cmd", "forced_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{r.Repository, r.Command, r.ForcedTime, r.ColdTime, r.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, command := range []string{"analyze", "badge"} {
		fmt.Printf("%s:\n", command)
		for _, r := range results {
			if r.Command == command {
				fmt.Printf("  %-45s: Forced: %s, Cold: %s, Warm: %s\n", r.Repository, r.ForcedTime, r.ColdTime, r.WarmTime)
			}
		}
	}
}
