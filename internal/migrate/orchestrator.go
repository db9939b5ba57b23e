package migrate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/recon"
	"github.com/watariapp/watari/internal/search"
	"github.com/watariapp/watari/internal/shared"
	"github.com/watariapp/watari/internal/sources"
	"golang.org/x/sync/semaphore"
)

// Store is the persistence surface the orchestrator needs to land a found
// candidate: entry lookup/insert and the atomic chapter sync.
type Store interface {
	// EntryBySourceURL returns the entry for a source/URL pair, or nil when
	// the catalogue work is not in the library database yet.
	EntryBySourceURL(ctx context.Context, sourceID, url string) (*models.LibraryEntry, error)

	// InsertEntry inserts a new entry and returns its assigned ID.
	InsertEntry(ctx context.Context, entry *models.LibraryEntry) (int64, error)

	// UpdateEntryMetadata refreshes author, description, thumbnail and status.
	UpdateEntryMetadata(ctx context.Context, entry *models.LibraryEntry) error

	// ChaptersByEntry returns the stored chapters of an entry.
	ChaptersByEntry(ctx context.Context, entryID int64) ([]models.ChapterRecord, error)

	// ApplyChapterDiff applies a reconciliation diff as a single transaction;
	// partial application must not be observable.
	ApplyChapterDiff(ctx context.Context, entryID int64, diff *recon.Diff) error
}

// Outcome is the terminal report for one unit of a batch.
type Outcome struct {
	UnitID          string
	EntryID         int64 // source entry
	Status          Status
	NewEntryID      int64 // set when Status is StatusFound
	NewChapters     int
	RemovedChapters int
	Err             error
}

// Orchestrator runs migration batches: it schedules candidate searches per
// unit with bounded concurrency across catalogue sources, lands found
// candidates in the store, and publishes progress.
type Orchestrator struct {
	registry *sources.Registry
	searcher *search.Searcher
	store    Store
	logger   *log.Logger

	mu          sync.Mutex
	batchCancel context.CancelFunc
}

// NewOrchestrator creates an orchestrator with its collaborators injected.
func NewOrchestrator(registry *sources.Registry, searcher *search.Searcher, store Store, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Orchestrator{
		registry: registry,
		searcher: searcher,
		store:    store,
		logger:   logger,
	}
}

// Run executes every pending unit of the session under the given
// configuration and streams per-unit outcomes as they settle. Outcomes are
// delivered in completion order, not submission order; the channel closes
// once every unit is terminal.
//
// The whole batch can be cancelled via CancelAll or the passed context;
// individual units via [Unit.Cancel]. Cancelling one unit does not affect
// the others.
func (o *Orchestrator) Run(ctx context.Context, session *Session, cfg BatchConfig) (<-chan Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	srcs := o.registry.Resolve(cfg.TargetSourceIDs)
	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w: none of the configured target sources are registered", shared.ErrSourceUnknown)
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	batchCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.batchCancel = cancel
	o.mu.Unlock()

	units := session.Units()
	outcomes := make(chan Outcome, len(units))
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	var wg sync.WaitGroup
	for _, unit := range units {
		wg.Add(1)
		go func(u *Unit) {
			defer wg.Done()
			outcomes <- o.runUnit(batchCtx, u, srcs, sem, cfg, session.Progress())
		}(unit)
	}

	go func() {
		wg.Wait()
		cancel()
		close(outcomes)
	}()

	return outcomes, nil
}

// CancelAll cancels the in-flight batch; every running unit's provider calls
// are cancelled and no orphaned work remains.
func (o *Orchestrator) CancelAll(session *Session) {
	o.mu.Lock()
	cancel := o.batchCancel
	o.mu.Unlock()

	for _, u := range session.Units() {
		u.Cancel()
	}
	if cancel != nil {
		cancel()
	}
}

// ManualOverride bypasses search entirely: the user has picked a candidate,
// so only the chapter fetch and reconciliation run before the unit settles
// FOUND. The unit must still be pending.
func (o *Orchestrator) ManualOverride(ctx context.Context, unit *Unit, candidate sources.Candidate) (Outcome, error) {
	src, err := o.registry.Get(candidate.SourceID)
	if err != nil {
		return Outcome{}, err
	}

	uctx, ok := unit.claim(ctx)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: unit %s is %s", shared.ErrBatchClosed, unit.ID(), unit.Status())
	}
	defer unit.release()

	chapters, err := o.searcher.FetchChapters(uctx, src, candidate)
	if err != nil {
		unit.fail(err)
		return o.outcome(unit), err
	}

	o.resolveCandidate(uctx, unit, src, candidate, chapters)
	return o.outcome(unit), unit.Err()
}

// attempt is one source's successful search+fetch under policy A.
type attempt struct {
	order     int // position in configured source order, the tie-break
	source    sources.Source
	candidate sources.Candidate
	chapters  []models.ChapterRecord
}

func (o *Orchestrator) runUnit(ctx context.Context, unit *Unit, srcs []sources.Source, sem *semaphore.Weighted, cfg BatchConfig, progress *Broadcaster) Outcome {
	uctx, ok := unit.claim(ctx)
	if !ok {
		// Cancelled before the orchestrator reached it.
		return o.outcome(unit)
	}
	defer unit.release()

	var winner *attempt
	if cfg.PreferMostChapters {
		winner = o.searchAll(uctx, unit, srcs, sem, cfg, progress)
	} else {
		winner = o.searchFirst(uctx, unit, srcs, sem, cfg, progress)
	}

	switch {
	case uctx.Err() != nil:
		unit.Cancel()
	case winner == nil:
		unit.settleNotFound()
	default:
		o.resolveCandidate(uctx, unit, winner.source, winner.candidate, winner.chapters)
	}

	progress.Publish(terminalUpdate(unit, len(srcs)))
	return o.outcome(unit)
}

// searchAll races every candidate source under the shared semaphore and picks
// the candidate with the strictly greatest chapter count; ties go to the
// earliest source in configured order.
func (o *Orchestrator) searchAll(ctx context.Context, unit *Unit, srcs []sources.Source, sem *semaphore.Weighted, cfg BatchConfig, progress *Broadcaster) *attempt {
	var processed atomic.Int64
	results := make(chan *attempt, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(order int, src sources.Source) {
			defer wg.Done()
			defer func() {
				progress.Publish(searchingUpdate(unit, int(processed.Add(1)), len(srcs), src.Name()))
			}()

			results <- o.trySource(ctx, sem, src, unit.Entry().Title, cfg.RankedSearch, order)
		}(i, src)
	}
	wg.Wait()
	close(results)

	var best *attempt
	for a := range results {
		if a == nil {
			continue
		}
		if best == nil ||
			len(a.chapters) > len(best.chapters) ||
			(len(a.chapters) == len(best.chapters) && a.order < best.order) {
			best = a
		}
	}
	return best
}

// searchFirst tries sources strictly in configured order and short-circuits
// on the first usable candidate.
func (o *Orchestrator) searchFirst(ctx context.Context, unit *Unit, srcs []sources.Source, sem *semaphore.Weighted, cfg BatchConfig, progress *Broadcaster) *attempt {
	for i, src := range srcs {
		a := o.trySource(ctx, sem, src, unit.Entry().Title, cfg.RankedSearch, i)
		progress.Publish(searchingUpdate(unit, i+1, len(srcs), src.Name()))
		if a != nil {
			return a
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// trySource performs one bounded search+fetch attempt. Any failure, including
// an empty chapter list, yields nil; per-source failures never abort a unit.
func (o *Orchestrator) trySource(ctx context.Context, sem *semaphore.Weighted, src sources.Source, title string, ranked bool, order int) *attempt {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer sem.Release(1)

	candidate, err := o.searcher.Search(ctx, src, title, ranked)
	if err != nil || candidate == nil {
		return nil
	}

	chapters, err := o.searcher.FetchChapters(ctx, src, *candidate)
	if err != nil {
		o.logger.Debug("candidate rejected", "source", src.ID(), "title", title, "err", err)
		return nil
	}

	return &attempt{order: order, source: src, candidate: *candidate, chapters: chapters}
}

// resolveCandidate lands a winning candidate: ensures the entry exists in the
// library database, refetches thin metadata best-effort, reconciles the
// fetched chapter list against whatever is stored, and settles the unit.
//
// The store writes run detached from cancellation; once landing starts it
// completes or fails atomically.
func (o *Orchestrator) resolveCandidate(ctx context.Context, unit *Unit, src sources.Source, candidate sources.Candidate, chapters []models.ChapterRecord) {
	storeCtx := context.WithoutCancel(ctx)

	entry, err := o.store.EntryBySourceURL(storeCtx, src.ID(), candidate.URL)
	if err != nil {
		unit.fail(fmt.Errorf("%w: %v", shared.ErrReconcileConflict, err))
		return
	}

	if entry == nil {
		entry = &models.LibraryEntry{
			SourceID:     src.ID(),
			URL:          candidate.URL,
			Title:        candidate.Title,
			ThumbnailURL: candidate.ThumbnailURL,
			AddedAt:      time.Now(),
		}
	}

	// Search results are often thin; try the candidate's own catalogue for
	// full details. A metadata failure never fails the unit.
	if !entry.HasMetadata() {
		if meta, err := src.FetchDetails(ctx, candidate); err != nil {
			o.logger.Warn("metadata refetch failed", "source", src.ID(), "url", candidate.URL, "err", err)
		} else {
			entry.Author = meta.Author
			entry.Description = meta.Description
			entry.Status = meta.Status
			if meta.ThumbnailURL != "" {
				entry.ThumbnailURL = meta.ThumbnailURL
			}
			if entry.EntryID != 0 {
				if err := o.store.UpdateEntryMetadata(storeCtx, entry); err != nil {
					o.logger.Warn("metadata update failed", "entry", entry.EntryID, "err", err)
				}
			}
		}
	}

	if entry.EntryID == 0 {
		id, err := o.store.InsertEntry(storeCtx, entry)
		if err != nil {
			unit.fail(fmt.Errorf("%w: %v", shared.ErrReconcileConflict, err))
			return
		}
		entry.EntryID = id
	}

	existing, err := o.store.ChaptersByEntry(storeCtx, entry.EntryID)
	if err != nil {
		unit.fail(fmt.Errorf("%w: %v", shared.ErrReconcileConflict, err))
		return
	}

	diff, err := recon.Reconcile(entry.Title, existing, chapters, time.Now())
	if err != nil {
		unit.fail(err)
		return
	}

	if !diff.Unchanged() {
		if err := o.store.ApplyChapterDiff(storeCtx, entry.EntryID, diff); err != nil {
			unit.fail(fmt.Errorf("%w: %v", shared.ErrReconcileConflict, err))
			return
		}
	}

	unit.settleFound(entry.EntryID, diff)
}

func (o *Orchestrator) outcome(unit *Unit) Outcome {
	out := Outcome{
		UnitID:  unit.ID(),
		EntryID: unit.Entry().EntryID,
		Status:  unit.Status(),
		Err:     unit.Err(),
	}
	if id, ok := unit.SearchResult().Found(); ok {
		out.NewEntryID = id
	}
	if diff := unit.Diff(); diff != nil {
		out.NewChapters = len(diff.NewChapters)
		out.RemovedChapters = len(diff.RemovedChapters)
	}
	return out
}
