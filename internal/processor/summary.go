package processor

import (
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummary formats the pass report as a table for the run log and the
// CLI. Reason buckets render beneath the totals.
func RenderSummary(report *Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Sport", "Linked", "Skipped", "Failed", "Ignored"})

	sportIDs := make([]string, 0, len(report.PerSport))
	for sportID := range report.PerSport {
		sportIDs = append(sportIDs, sportID)
	}
	sort.Strings(sportIDs)
	for _, sportID := range sportIDs {
		counters := report.PerSport[sportID]
		t.AppendRow(table.Row{sportID, counters.Linked, counters.Skipped, counters.Failed, counters.Ignored})
	}
	t.AppendFooter(table.Row{"total", report.Linked, report.Skipped, report.Failed, report.Ignored})

	out := t.Render()

	if len(report.SkipReasons) > 0 || len(report.FailReasons) > 0 {
		reasons := table.NewWriter()
		reasons.SetStyle(table.StyleLight)
		reasons.AppendHeader(table.Row{"Reason", "Kind", "Count"})
		for _, reason := range sortedKeys(report.SkipReasons) {
			reasons.AppendRow(table.Row{reason, "skipped", report.SkipReasons[reason]})
		}
		for _, reason := range sortedKeys(report.FailReasons) {
			reasons.AppendRow(table.Row{reason, "failed", report.FailReasons[reason]})
		}
		out += "\n" + reasons.Render()
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// summaryDuration rounds for display.
func summaryDuration(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
