package contract

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/huangsam/codegrade/schema"
)

// Color variables for console output.
var (
	GoodColor    = color.New(color.FgGreen, color.Bold)
	FairColor    = color.New(color.FgYellow)
	PoorColor    = color.New(color.FgRed, color.Bold)
	UnknownColor = color.New(color.FgHiBlack)
)

// GetColorGrade returns a colored letter grade for console output (table).
func GetColorGrade(grade schema.Grade) string {
	text := string(grade)
	switch grade {
	case schema.GradeA, schema.GradeB:
		return GoodColor.Sprint(text)
	case schema.GradeC, schema.GradeD:
		return FairColor.Sprint(text)
	case schema.GradeF:
		return PoorColor.Sprint(text)
	default:
		return UnknownColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output.
// An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// NewLogger builds the process logger in the configured format.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LogFatal logs an error and exits.
func LogFatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

// LogWarn logs a warning with its cause.
func LogWarn(msg string, err error) {
	slog.Warn(msg, "error", err)
}

// GetStoreDBFilePath returns the default path of the SQLite store.
func GetStoreDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".codegrade.db"
	}
	return filepath.Join(homeDir, ".codegrade.db")
}
