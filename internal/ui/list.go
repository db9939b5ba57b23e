package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/watariapp/watari/internal/models"
)

var (
	_ list.Item = entryItem{}
)

// entryItem wraps [models.LibraryEntry] to implement [list.Item].
type entryItem struct {
	entry    models.LibraryEntry
	selected bool
}

func (i entryItem) FilterValue() string { return i.entry.Title }

func (i entryItem) Title() string {
	marker := "[ ]"
	if i.selected {
		marker = "[x]"
	}
	return fmt.Sprintf("%s %s", marker, i.entry.Title)
}

func (i entryItem) Description() string {
	desc := i.entry.SourceID
	if i.entry.Author != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.entry.Author)
	}
	return desc
}
