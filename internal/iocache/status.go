package iocache

import (
	"fmt"
	"io"
	"slices"

	"github.com/huangsam/codegrade/schema"
)

// PrintStoreStatus prints store status information.
func PrintStoreStatus(w io.Writer, status schema.StoreStatus) {
	_, _ = fmt.Fprintf(w, "Store Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Schema Version: %d\n", status.SchemaVersion)
	_, _ = fmt.Fprintf(w, "Repositories: %d\n", status.TotalRepos)
	_, _ = fmt.Fprintf(w, "Analyses: %d\n", status.TotalAnalyses)
	if status.TotalAnalyses > 0 {
		_, _ = fmt.Fprintf(w, "Last Analysis: %s\n", status.LastAnalysisTime.Format("2006-01-02 15:04:05"))
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	names := make([]string, 0, len(status.TableSizes))
	for name := range status.TableSizes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		unit := "rows"
		if name == "bytes" {
			unit = "total"
		}
		_, _ = fmt.Fprintf(w, "  %s: %d %s\n", name, status.TableSizes[name], unit)
	}
}

// PrintCacheStatus prints cache status information.
func PrintCacheStatus(w io.Writer, status schema.CacheStatus) {
	_, _ = fmt.Fprintf(w, "Cache Type: %s\n", status.Type)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	_, _ = fmt.Fprintf(w, "State: %s\n", status.State)
	if status.Connected {
		_, _ = fmt.Fprintf(w, "Remote Keys: %d\n", status.KeyCount)
		_, _ = fmt.Fprintf(w, "Remote Memory: %s\n", status.MemoryUsed)
	}
	_, _ = fmt.Fprintf(w, "Local Keys: %d\n", status.LocalKeys)
	_, _ = fmt.Fprintf(w, "Local Size: %d bytes\n", status.EstimatedSize)
}
