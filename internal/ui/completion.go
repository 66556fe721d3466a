package ui

import (
	"fmt"

	"github.com/bamsammich/ward/internal/report"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  sealed 48,917  already 120  skipped 3  time 3m 17s  errors 0
func CompletionSummary(snap report.Snapshot, verb string) string {
	icon := "✓"
	if snap.Failed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  %s %s  already %s  skipped %s  time %s",
		icon,
		verb, FormatCount(snap.Toggled),
		FormatCount(snap.Already),
		FormatCount(snap.Skipped),
		FormatDuration(snap.Elapsed),
	)

	if snap.Dirs > 0 {
		base += fmt.Sprintf("  dirs %s", FormatCount(snap.Dirs))
	}

	base += fmt.Sprintf("  errors %d", snap.Failed)

	return base
}
