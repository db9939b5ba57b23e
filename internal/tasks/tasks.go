// package tasks implements long-running library maintenance operations.
//
// The core abstraction is LibraryEngine, which runs bulk entry exports and
// catalogue refreshes over the library database. Operations emit progress
// updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/recon"
	"github.com/watariapp/watari/internal/search"
	"github.com/watariapp/watari/internal/sources"
)

// Store is the slice of the library database the maintenance tasks need.
type Store interface {
	EntriesByIDs(ctx context.Context, ids []int64) ([]models.LibraryEntry, error)
	FavoriteEntries(ctx context.Context) ([]models.LibraryEntry, error)
	ChaptersByEntry(ctx context.Context, entryID int64) ([]models.ChapterRecord, error)
	UpdateEntryMetadata(ctx context.Context, entry *models.LibraryEntry) error
	ApplyChapterDiff(ctx context.Context, entryID int64, diff *recon.Diff) error
}

// LibraryEngine orchestrates maintenance operations against the library
// database and its configured catalogue sources.
type LibraryEngine struct {
	store    Store
	registry *sources.Registry
	searcher *search.Searcher
	logger   *log.Logger
}

// NewLibraryEngine creates an engine over the given store and sources.
func NewLibraryEngine(store Store, registry *sources.Registry, searcher *search.Searcher, logger *log.Logger) *LibraryEngine {
	return &LibraryEngine{
		store:    store,
		registry: registry,
		searcher: searcher,
		logger:   logger,
	}
}

// sendProgress sends a progress update without blocking. Updates are dropped
// if the channel is full or nil.
func (e *LibraryEngine) sendProgress(prog chan<- ProgressUpdate, update ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- update:
	default:
	}
}

// resolveEntries loads the entries for a task: the given IDs, or every
// favorite when ids is empty.
func (e *LibraryEngine) resolveEntries(ctx context.Context, ids []int64) ([]models.LibraryEntry, error) {
	if len(ids) == 0 {
		return e.store.FavoriteEntries(ctx)
	}
	return e.store.EntriesByIDs(ctx, ids)
}
