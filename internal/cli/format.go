package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fpang/photo-enhance/internal/filehandler"
	"github.com/fpang/photo-enhance/internal/filter"
	"github.com/fpang/photo-enhance/internal/pipeline"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// PrintResult writes a human-readable summary of a pipeline run.
func PrintResult(w io.Writer, res pipeline.Result) {
	fmt.Fprintf(w, "Saved %s (%s) in %s\n", res.Output, filehandler.DescribeSize(res.Bytes), FormatDurationShort(res.Elapsed))
	fmt.Fprintf(w, "  steps:  %s\n", strings.Join(res.Steps, " → "))
	fmt.Fprintf(w, "  filter: %s\n", res.Filter)
	if res.Metadata != "" {
		fmt.Fprintf(w, "  photo:  %s\n", res.Metadata)
	}
}

// PrintFilters writes the filter catalog, one filter per line.
func PrintFilters(w io.Writer) {
	for _, spec := range filter.Catalog() {
		fmt.Fprintf(w, "%-10s %-10s %s\n", spec.ID, spec.Name, spec.CSS())
	}
}
