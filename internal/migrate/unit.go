package migrate

import (
	"context"
	"sync"

	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/recon"
	"github.com/watariapp/watari/internal/shared"
)

// Status is the lifecycle state of a migration unit.
//
// Transitions are monotonic: Pending -> Running -> {Found, NotFound, Failed},
// with Cancelled terminal from Pending or Running. A re-run constructs a
// fresh unit; settled units never transition backwards.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusFound
	StatusNotFound
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusFound, StatusNotFound, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Result is the three-valued settled search result of a unit: not yet
// searched, searched and absent, or searched and found with the new entry's
// ID. Collapsing this to a nullable would lose the "not yet searched" state.
type Result struct {
	state   resultState
	entryID int64
}

type resultState int

const (
	resultPending resultState = iota
	resultAbsent
	resultFound
)

// Settled reports whether the search has concluded either way.
func (r Result) Settled() bool { return r.state != resultPending }

// Absent reports whether the search concluded with no usable candidate.
func (r Result) Absent() bool { return r.state == resultAbsent }

// Found returns the new entry ID if the search found one.
func (r Result) Found() (int64, bool) {
	return r.entryID, r.state == resultFound
}

// Unit is the per-entry migration task: a cancellable search scope, the
// eventually-settled result, and the reconciliation diff for the chosen
// candidate.
type Unit struct {
	unitID string
	entry  models.LibraryEntry // snapshot of the source entry

	mu     sync.Mutex
	status Status
	result Result
	diff   *recon.Diff
	err    error
	cancel context.CancelFunc
}

// NewUnit creates a pending unit for the given source entry.
func NewUnit(entry models.LibraryEntry) *Unit {
	return &Unit{unitID: shared.GenerateID(), entry: entry}
}

// ID returns the unit's identifier within its session.
func (u *Unit) ID() string { return u.unitID }

// Entry returns the snapshot of the library entry being migrated.
func (u *Unit) Entry() models.LibraryEntry { return u.entry }

// Status returns the unit's current lifecycle state.
func (u *Unit) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// SearchResult returns the three-valued settled result.
func (u *Unit) SearchResult() Result {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.result
}

// Diff returns the reconciliation outcome for the found candidate, if any.
func (u *Unit) Diff() *recon.Diff {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.diff
}

// Err returns the failure reason when the unit is in StatusFailed.
func (u *Unit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// claim transitions Pending -> Running exactly once and returns a context
// nested under parent that cancels this unit alone. A unit that is no longer
// pending (already claimed, or cancelled before the orchestrator reached it)
// cannot be claimed.
func (u *Unit) claim(parent context.Context) (context.Context, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != StatusPending {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	u.status = StatusRunning
	u.cancel = cancel
	return ctx, true
}

// Cancel drives the unit to StatusCancelled from Pending or Running. It is
// safe to call mid-search and on terminal units, where it is a no-op.
func (u *Unit) Cancel() {
	u.mu.Lock()
	cancel := u.cancel
	if u.status == StatusPending || u.status == StatusRunning {
		u.status = StatusCancelled
		if !u.result.Settled() {
			u.result = Result{state: resultAbsent}
		}
	}
	u.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// settleFound records the found candidate and its reconciliation diff.
// Settling loses against an earlier cancellation.
func (u *Unit) settleFound(entryID int64, diff *recon.Diff) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != StatusRunning {
		return
	}
	u.status = StatusFound
	u.result = Result{state: resultFound, entryID: entryID}
	u.diff = diff
}

// settleNotFound records that every candidate source came up empty.
func (u *Unit) settleNotFound() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != StatusRunning {
		return
	}
	u.status = StatusNotFound
	u.result = Result{state: resultAbsent}
}

// fail records a store-side failure after a candidate was found. Cancellation
// is never reported as failure.
func (u *Unit) fail(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != StatusRunning {
		return
	}
	u.status = StatusFailed
	u.result = Result{state: resultAbsent}
	u.err = err
}

// release drops the cancel handle once the unit's scope has finished.
func (u *Unit) release() {
	u.mu.Lock()
	cancel := u.cancel
	u.cancel = nil
	u.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
