package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/watariapp/watari/internal/formatter"
	"github.com/watariapp/watari/internal/migrate"
	"github.com/watariapp/watari/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgEntriesFetched MsgKind = iota
	MsgProgressUpdate
	MsgBatchComplete
	MsgBatchApplied
)

// entriesFetchedMsg is the constructor for [MsgEntriesFetched]
func entriesFetchedMsg(entries []models.LibraryEntry, err error) Msg {
	return Msg{
		kind: MsgEntriesFetched,
		data: struct {
			entries []models.LibraryEntry
			err     error
		}{entries, err},
	}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update migrate.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// batchCompleteMsg is the constructor for [MsgBatchComplete]
func batchCompleteMsg(report *formatter.Report, err error) Msg {
	return Msg{
		kind: MsgBatchComplete,
		data: struct {
			report *formatter.Report
			err    error
		}{report, err},
	}
}

// batchAppliedMsg is the constructor for [MsgBatchApplied]
func batchAppliedMsg(report *formatter.Report, err error) Msg {
	return Msg{
		kind: MsgBatchApplied,
		data: struct {
			report *formatter.Report
			err    error
		}{report, err},
	}
}
