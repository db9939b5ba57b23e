// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for library migration:
//  1. [EntryListView] : Browse the library and pick entries to migrate
//  2. [ConfirmView] : Confirm the batch before searching
//  3. [MigrateView] : Monitor per-entry progress as candidate searches run
//  4. [ResultView] : Review the batch report and optionally apply it
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow from the engine's broadcaster, providing non-blocking status reporting during searches.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, a, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
