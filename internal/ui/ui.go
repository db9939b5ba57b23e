package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/watariapp/watari/internal/apply"
	"github.com/watariapp/watari/internal/formatter"
	"github.com/watariapp/watari/internal/migrate"
	"github.com/watariapp/watari/internal/models"
)

// Engine is the migration surface the TUI drives. The CLI runner implements
// it over the orchestrator, applier and library store.
type Engine interface {
	// ListEntries returns the library entries eligible for migration.
	ListEntries(ctx context.Context) ([]models.LibraryEntry, error)

	// StartBatch begins a candidate search for the given entries and returns
	// the session plus its outcome stream.
	StartBatch(ctx context.Context, entries []models.LibraryEntry) (*migrate.Session, <-chan migrate.Outcome, error)

	// ApplyBatch applies every found unit of a finished session.
	ApplyBatch(ctx context.Context, session *migrate.Session) map[string]apply.Outcome
}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	EntryListView ViewState = iota
	ConfirmView
	MigrateView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	engine Engine
	view   ViewState
	width  int
	height int

	entryList list.Model
	entries   []models.LibraryEntry
	selected  map[int64]bool

	session      *migrate.Session
	progressChan <-chan migrate.ProgressUpdate
	cancelSub    func()
	done         chan *formatter.Report

	report  *formatter.Report
	applied bool
	err     error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine Engine) *Model {
	return &Model{
		ctx:      ctx,
		engine:   engine,
		view:     EntryListView,
		selected: make(map[int64]bool),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching the library entries.
func (m *Model) Init() tea.Cmd {
	return m.fetchEntries()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.entryList.Width() == 0 {
			m.entryList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case EntryListView:
			return m.handleEntryListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case MigrateView:
			return m.handleMigrateKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgEntriesFetched:
		data := msg.data.(struct {
			entries []models.LibraryEntry
			err     error
		})
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		m.entries = data.entries
		items := make([]list.Item, len(data.entries))
		for i, e := range data.entries {
			items[i] = entryItem{entry: e}
		}
		m.entryList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.entryList.Title = "Library"
		m.entryList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgProgressUpdate:
		return m, m.waitForProgress()

	case MsgBatchComplete:
		data := msg.data.(struct {
			report *formatter.Report
			err    error
		})
		m.report = data.report
		m.err = data.err
		m.view = ResultView
		if m.cancelSub != nil {
			m.cancelSub()
			m.cancelSub = nil
		}
		return m, nil

	case MsgBatchApplied:
		data := msg.data.(struct {
			report *formatter.Report
			err    error
		})
		m.report = data.report
		m.err = data.err
		m.applied = true
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case EntryListView:
		return m.renderEntryList()
	case ConfirmView:
		return m.renderConfirm()
	case MigrateView:
		return m.renderMigrate()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleEntryListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		if item, ok := m.entryList.SelectedItem().(entryItem); ok {
			m.selected[item.entry.EntryID] = !m.selected[item.entry.EntryID]
			item.selected = m.selected[item.entry.EntryID]
			m.entryList.SetItem(m.entryList.Index(), item)
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if len(m.selectedEntries()) == 0 {
			// Nothing toggled; migrate the highlighted entry alone.
			if item, ok := m.entryList.SelectedItem().(entryItem); ok {
				m.selected[item.entry.EntryID] = true
			}
		}
		if len(m.selectedEntries()) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.entryList, cmd = m.entryList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = EntryListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = MigrateView
		return m, m.startMigration()
	}
	return m, nil
}

func (m *Model) handleMigrateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		if m.session != nil {
			m.session.Close()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.apply):
		if m.session != nil && !m.applied {
			return m, m.applyBatch()
		}
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == EntryListView {
		m.entryList, cmd = m.entryList.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedEntries() []models.LibraryEntry {
	var out []models.LibraryEntry
	for _, e := range m.entries {
		if m.selected[e.EntryID] {
			out = append(out, e)
		}
	}
	return out
}

func (m *Model) fetchEntries() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.engine.ListEntries(m.ctx)
		return entriesFetchedMsg(entries, err)
	}
}

func (m *Model) startMigration() tea.Cmd {
	session, outcomes, err := m.engine.StartBatch(m.ctx, m.selectedEntries())
	if err != nil {
		return func() tea.Msg { return batchCompleteMsg(nil, err) }
	}

	m.session = session
	m.progressChan, m.cancelSub = session.Progress().Subscribe(50)

	m.done = make(chan *formatter.Report, 1)
	go func() {
		for range outcomes {
		}
		m.done <- formatter.BuildReport(session, nil)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		select {
		case update, ok := <-m.progressChan:
			if !ok {
				return batchCompleteMsg(<-m.done, nil)
			}
			return progressUpdateMsg(update)
		case report := <-m.done:
			return batchCompleteMsg(report, nil)
		}
	}
}

func (m *Model) applyBatch() tea.Cmd {
	return func() tea.Msg {
		outcomes := m.engine.ApplyBatch(m.ctx, m.session)
		return batchAppliedMsg(formatter.BuildReport(m.session, outcomes), nil)
	}
}

func (m *Model) renderEntryList() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.entryList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	entries := m.selectedEntries()
	title := styles.title.Render(fmt.Sprintf("Migrate %d entries?", len(entries)))

	info := ""
	for _, e := range entries {
		info += fmt.Sprintf("\n  • %s", e.Title)
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s\n\n%s", title, info, helpView)
}

func (m *Model) renderMigrate() string {
	title := styles.title.Render("Searching catalogues")

	lines := ""
	if m.session != nil {
		for _, update := range m.session.Progress().Snapshot() {
			lines += "\n" + m.renderProgressLine(update)
		}
	}

	return fmt.Sprintf("%s%s\n\n%s", title, lines, styles.help.Render("q to cancel"))
}

func (m *Model) renderProgressLine(update migrate.ProgressUpdate) string {
	switch update.Status {
	case migrate.StatusFound:
		return styles.ok.Render(fmt.Sprintf("  ✓ %s", update.Title))
	case migrate.StatusNotFound, migrate.StatusCancelled:
		return styles.warn.Render(fmt.Sprintf("  - %s: %s", update.Title, update.Status))
	case migrate.StatusFailed:
		return styles.err.Render(fmt.Sprintf("  ✗ %s", update.Title))
	default:
		return fmt.Sprintf("  %s [%d/%d]", update.Title, update.Processed, update.Total)
	}
}

func (m *Model) renderResult() string {
	if m.report == nil {
		return styles.err.Render(fmt.Sprintf("Batch failed: %v\n\nPress q to quit", m.err))
	}

	heading := "Search complete"
	if m.applied {
		heading = "✓ Batch applied"
	}
	title := styles.ok.Render(heading)

	info := fmt.Sprintf("\nEntries: %d\nFound: %d\nSkipped: %d\nFailed: %d\n",
		m.report.Total, m.report.Found, m.report.Skipped, m.report.Failed)

	rows := ""
	for _, row := range m.report.Rows {
		line := fmt.Sprintf("\n  %s - %s", row.Title, row.Status)
		if row.Applied != "" {
			line += fmt.Sprintf(" [%s]", row.Applied)
		}
		if row.Reason != "" {
			line += fmt.Sprintf(": %s", row.Reason)
		}
		rows += line
	}

	helpKeys := []key.Binding{m.keys.quit}
	if !m.applied {
		helpKeys = append([]key.Binding{m.keys.apply}, helpKeys...)
	}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, rows, helpView)
}
