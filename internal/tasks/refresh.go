package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/recon"
	"github.com/watariapp/watari/internal/shared"
	"github.com/watariapp/watari/internal/sources"
)

// RefreshOpts contains configuration for catalogue refreshes.
type RefreshOpts struct {
	NumWorkers int // Concurrent workers (default: 3)
}

// EntryRefreshResult records the outcome of refreshing one entry.
type EntryRefreshResult struct {
	EntryID         int64  `json:"entry_id"`
	Title           string `json:"title"`
	Success         bool   `json:"success"`
	AddedChapters   int    `json:"added_chapters"`
	RemovedChapters int    `json:"removed_chapters"`
	Error           error  `json:"-"`
}

// RefreshResult summarizes a catalogue refresh run.
type RefreshResult struct {
	TotalEntries    int                  `json:"total_entries"`
	Updated         int                  `json:"updated"`
	Failed          int                  `json:"failed"`
	AddedChapters   int                  `json:"added_chapters"`
	RemovedChapters int                  `json:"removed_chapters"`
	Results         []EntryRefreshResult `json:"results"`
}

// Refresh re-fetches metadata and chapter lists for library entries from
// their own catalogue sources, reconciling stored chapters against the fresh
// list. Read state is preserved across catalogue renumbering.
//
// Entries whose source is not registered fail individually; the run itself
// keeps going. Provider rate limits are enforced by the sources themselves.
func (e *LibraryEngine) Refresh(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ids []int64,
	opts RefreshOpts,
) (*RefreshResult, error) {
	entries, err := e.resolveEntries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries to refresh", shared.ErrInvalidInput)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}

	result := &RefreshResult{
		TotalEntries: len(entries),
		Results:      make([]EntryRefreshResult, 0, len(entries)),
	}

	jobs := make(chan models.LibraryEntry, len(entries))
	results := make(chan EntryRefreshResult, len(entries))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.refreshWorker(ctx, &wg, jobs, results)
	}

	e.sendProgress(prog, fetchEntriesUpdate(len(entries)))
	for i, entry := range entries {
		e.sendProgress(prog, refreshingEntryUpdate(i+1, len(entries), entry.Title))
		jobs <- entry
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.Updated++
			result.AddedChapters += res.AddedChapters
			result.RemovedChapters += res.RemovedChapters
			e.sendProgress(prog, syncedChaptersUpdate(
				completed, len(entries), res.Title, res.AddedChapters, res.RemovedChapters))
		} else {
			result.Failed++
			e.sendProgress(prog, refreshFailedUpdate(completed, len(entries), res.Title, res.Error))
		}
	}
	return result, nil
}

func (e *LibraryEngine) refreshWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan models.LibraryEntry,
	results chan<- EntryRefreshResult,
) {
	defer wg.Done()

	for entry := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- e.refreshEntry(ctx, entry)
	}
}

// refreshEntry syncs one entry against its own catalogue source. Metadata
// refresh is best effort; a failed chapter sync fails the entry.
func (e *LibraryEngine) refreshEntry(ctx context.Context, entry models.LibraryEntry) EntryRefreshResult {
	result := EntryRefreshResult{
		EntryID: entry.EntryID,
		Title:   entry.Title,
	}

	src, err := e.registry.Get(entry.SourceID)
	if err != nil {
		result.Error = err
		return result
	}

	candidate := sources.Candidate{
		SourceID: entry.SourceID,
		URL:      entry.URL,
		Title:    entry.Title,
	}

	if meta, err := src.FetchDetails(ctx, candidate); err != nil {
		e.logger.Warn("metadata refresh failed", "entry", entry.EntryID, "source", entry.SourceID, "err", err)
	} else if meta != nil {
		entry.Author = meta.Author
		entry.Description = meta.Description
		entry.ThumbnailURL = meta.ThumbnailURL
		entry.Status = meta.Status
		if err := e.store.UpdateEntryMetadata(ctx, &entry); err != nil {
			e.logger.Warn("metadata update failed", "entry", entry.EntryID, "err", err)
		}
	}

	incoming, err := e.searcher.FetchChapters(ctx, src, candidate)
	if err != nil {
		result.Error = fmt.Errorf("failed to fetch chapters: %w", err)
		return result
	}

	existing, err := e.store.ChaptersByEntry(ctx, entry.EntryID)
	if err != nil {
		result.Error = fmt.Errorf("failed to load stored chapters: %w", err)
		return result
	}

	diff, err := recon.Reconcile(entry.Title, existing, incoming, time.Now())
	if err != nil {
		result.Error = err
		return result
	}

	if !diff.Unchanged() || len(diff.ToUpdate) > 0 {
		if err := e.store.ApplyChapterDiff(ctx, entry.EntryID, diff); err != nil {
			result.Error = fmt.Errorf("%w: %v", shared.ErrReconcileConflict, err)
			return result
		}
	}

	result.Success = true
	result.AddedChapters = len(diff.NewChapters)
	result.RemovedChapters = len(diff.RemovedChapters)
	return result
}
