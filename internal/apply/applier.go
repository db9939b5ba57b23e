// package apply carries user state over to accepted migration candidates.
//
// The Applier is the only writer of migration results: for each unit in state
// found it runs one store transaction that marks the new entry as a library
// favorite, carries the read-progress watermark onto the new chapter list,
// copies category memberships, and re-points tracking bindings. A failure
// partway leaves the store unchanged for that unit; other units are
// independent.
package apply

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/watariapp/watari/internal/migrate"
	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/shared"
)

// Store is the transactional persistence surface the applier writes through.
type Store interface {
	// ChaptersByEntry returns the stored chapters of an entry.
	ChaptersByEntry(ctx context.Context, entryID int64) ([]models.ChapterRecord, error)

	// ApplyMigration runs every carry-forward step for one unit inside a
	// single transaction. Partial application must not be observable.
	ApplyMigration(ctx context.Context, params Params) error
}

// Params describes one unit's apply transaction.
type Params struct {
	OldEntryID int64
	NewEntryID int64

	// MarkReadUpTo marks every new-entry chapter with a recognized number at
	// or below the watermark as read. Negative disables the step.
	MarkReadUpTo float64

	CopyCategories bool
	MoveTracking   bool

	// Replace unmarks the old entry as favorite. Its data is never deleted.
	Replace bool
}

// OutcomeKind classifies the result of applying one unit.
type OutcomeKind int

const (
	Applied OutcomeKind = iota
	Skipped
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports how one unit's apply resolved. Failed carries the reason
// and is surfaced distinctly from Skipped so the user can retry.
type Outcome struct {
	Kind        OutcomeKind
	NewEntryID  int64
	ReplacedOld bool
	Reason      error
}

// Applier applies accepted migration candidates to the library database.
type Applier struct {
	store  Store
	logger *log.Logger
}

// NewApplier creates an applier writing through the given store.
func NewApplier(store Store, logger *log.Logger) *Applier {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Applier{store: store, logger: logger}
}

// Apply carries the unit's user state onto its found candidate.
//
// Units not in state found are Skipped. Once the transaction starts it runs
// to completion or rollback regardless of external cancellation; only the
// time before the transaction observes ctx.
func (a *Applier) Apply(ctx context.Context, unit *migrate.Unit, flags migrate.CarryFlags, replace bool) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: Skipped}
	}

	newEntryID, ok := unit.SearchResult().Found()
	if !ok || unit.Status() != migrate.StatusFound {
		return Outcome{Kind: Skipped}
	}

	oldEntry := unit.Entry()

	params := Params{
		OldEntryID:     oldEntry.EntryID,
		NewEntryID:     newEntryID,
		MarkReadUpTo:   -1,
		CopyCategories: flags.Has(migrate.CarryCategories),
		MoveTracking:   flags.Has(migrate.CarryTracking),
		Replace:        replace,
	}

	// The transaction is uninterruptible once started.
	txCtx := context.WithoutCancel(ctx)

	if flags.Has(migrate.CarryChapters) {
		watermark, err := a.readWatermark(txCtx, oldEntry.EntryID)
		if err != nil {
			return Outcome{Kind: Failed, Reason: fmt.Errorf("%w: %v", shared.ErrApplyFailed, err)}
		}
		params.MarkReadUpTo = watermark
	}

	if err := a.store.ApplyMigration(txCtx, params); err != nil {
		a.logger.Error("apply transaction failed", "old", params.OldEntryID, "new", params.NewEntryID, "err", err)
		return Outcome{Kind: Failed, Reason: fmt.Errorf("%w: %v", shared.ErrApplyFailed, err)}
	}

	return Outcome{Kind: Applied, NewEntryID: newEntryID, ReplacedOld: replace}
}

// ApplyAll applies every unit of the session independently and returns
// outcomes keyed by unit ID. A failed unit never aborts its siblings.
func (a *Applier) ApplyAll(ctx context.Context, session *migrate.Session, flags migrate.CarryFlags, replace bool) map[string]Outcome {
	outcomes := make(map[string]Outcome)
	for _, unit := range session.Units() {
		outcomes[unit.ID()] = a.Apply(ctx, unit, flags, replace)
	}
	return outcomes
}

// readWatermark computes the highest recognized chapter number the user has
// read on the old entry. Chapters without a recognized number cannot move the
// watermark.
func (a *Applier) readWatermark(ctx context.Context, entryID int64) (float64, error) {
	chapters, err := a.store.ChaptersByEntry(ctx, entryID)
	if err != nil {
		return -1, err
	}

	watermark := -1.0
	for _, c := range chapters {
		if c.Read && c.HasNumber() && c.Number > watermark {
			watermark = c.Number
		}
	}
	return watermark, nil
}
