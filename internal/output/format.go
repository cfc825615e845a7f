// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"chaintodo/internal/engine"
	"chaintodo/internal/journal"
	"chaintodo/internal/ledger"
)

const (
	// ListSeparator is the separator line under the header.
	ListSeparator = "------------"

	// AccountWidth is how many address characters the header keeps.
	AccountWidth = 12
)

// FormatHeader prints the connected account and the task counters.
func FormatHeader(w io.Writer, snap engine.Snapshot) {
	fmt.Fprintf(w, "Connected: %s\n", SmartTrim(snap.Account, AccountWidth))
	fmt.Fprintf(w, "Total: %d  Completed: %d  Done: %d%%\n",
		snap.Stats.Total, snap.Stats.Completed, snap.Stats.PercentDone)
	fmt.Fprintln(w, ListSeparator)
}

// FormatTask formats a task line.
// Format: "{N:>4}  [ ] {DESCRIPTION}\n", with [x] for completed tasks.
func FormatTask(w io.Writer, num int, task ledger.Task) {
	mark := " "
	if task.Completed {
		mark = "x"
	}
	fmt.Fprintf(w, "%4d  [%s] %s\n", num, mark, normalizeDescription(task.Description))
}

// FormatHistoryEntry formats one journal entry.
// Format: "{TIME}  {KIND:<8}  {STATE:<21}  {SUBJECT}[  {TX}][  error: {ERR}]\n"
func FormatHistoryEntry(w io.Writer, e journal.Entry) {
	subject := normalizeDescription(e.Description)
	if e.Target != nil {
		subject = fmt.Sprintf("#%d", *e.Target)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-8s  %-21s  %s",
		e.UpdatedAt.UTC().Format(time.DateTime), e.Kind, e.State, subject)
	if e.TxHash != "" {
		fmt.Fprintf(&b, "  %s", SmartTrim(e.TxHash, AccountWidth))
	}
	if e.Error != "" {
		fmt.Fprintf(&b, "  error: %s", e.Error)
	}
	fmt.Fprintln(w, b.String())
}

// SmartTrim shortens s to maxLen characters by cutting out its middle and
// putting "..." in its place.
func SmartTrim(s string, maxLen int) string {
	if s == "" || maxLen < 1 || len(s) <= maxLen {
		return s
	}
	if maxLen == 1 {
		return s[:1] + "..."
	}

	mid := (len(s) + 1) / 2
	remove := len(s) - maxLen
	left := (remove + 1) / 2
	right := remove - left
	return s[:mid-left] + "..." + s[mid+right:]
}

// normalizeDescription normalizes a task description for display.
// - Empty or whitespace-only descriptions become "(untitled)"
// - Newlines are replaced with spaces
func normalizeDescription(desc string) string {
	desc = strings.ReplaceAll(desc, "\r", " ")
	desc = strings.ReplaceAll(desc, "\n", " ")

	if strings.TrimSpace(desc) == "" {
		return "(untitled)"
	}
	return desc
}
