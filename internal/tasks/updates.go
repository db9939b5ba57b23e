package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchEntries Phase = iota
	FetchDetails
	SyncChapters
	ExportEntry
)

func (p Phase) String() string {
	switch p {
	case FetchEntries:
		return "fetch_entries"
	case FetchDetails:
		return "fetch_details"
	case SyncChapters:
		return "sync_chapters"
	case ExportEntry:
		return "export_entry"
	default:
		return ""
	}
}

func fetchEntriesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchEntries,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d library entries...", total),
	}
}

func refreshingEntryUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDetails,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Refreshing: %s...", step, total, title),
	}
}

func syncedChaptersUpdate(step, total int, title string, added, removed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncChapters,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (+%d, -%d chapters)", step, total, title, added, removed),
	}
}

func refreshFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncChapters,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}

func exportingEntryUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportEntry,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, title),
	}
}

func exportCompletedUpdate(step, total int, title string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportEntry,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, title, filesCount),
	}
}

func exportFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportEntry,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}
