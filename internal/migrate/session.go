package migrate

import (
	"sync"

	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/shared"
)

// Session is the façade over one migration batch: the ordered list of units
// and the progress broadcaster their updates flow through.
type Session struct {
	batchID  string
	progress *Broadcaster

	mu    sync.Mutex
	units []*Unit
}

// NewSession creates a session with one pending unit per entry, preserving
// order.
func NewSession(entries []models.LibraryEntry) *Session {
	s := &Session{
		batchID:  shared.GenerateID(),
		progress: NewBroadcaster(),
	}
	for _, e := range entries {
		s.units = append(s.units, NewUnit(e))
	}
	return s
}

// ID returns the batch identifier.
func (s *Session) ID() string { return s.batchID }

// Progress returns the broadcaster carrying this batch's updates.
func (s *Session) Progress() *Broadcaster { return s.progress }

// Units returns the ordered unit list as a snapshot copy.
func (s *Session) Units() []*Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Unit, len(s.units))
	copy(out, s.units)
	return out
}

// Unit returns the unit with the given ID.
func (s *Session) Unit(unitID string) (*Unit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		if u.ID() == unitID {
			return u, true
		}
	}
	return nil, false
}

// Remove cancels a unit and drops it from the list. Safe to call while the
// unit is mid-search; the orchestrator observes the cancellation and skips
// settling it.
func (s *Session) Remove(unitID string) bool {
	s.mu.Lock()
	var removed *Unit
	for i, u := range s.units {
		if u.ID() == unitID {
			removed = u
			s.units = append(s.units[:i], s.units[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if removed == nil {
		return false
	}
	removed.Cancel()
	return true
}

// AllTerminal reports whether every unit has reached a terminal state.
func (s *Session) AllTerminal() bool {
	for _, u := range s.Units() {
		if !u.Status().Terminal() {
			return false
		}
	}
	return true
}

// RemainingCount returns the number of units not yet in a terminal state.
func (s *Session) RemainingCount() int {
	n := 0
	for _, u := range s.Units() {
		if !u.Status().Terminal() {
			n++
		}
	}
	return n
}

// SkippedCount returns the number of units that resolved without a candidate
// (not found or cancelled).
func (s *Session) SkippedCount() int {
	n := 0
	for _, u := range s.Units() {
		switch u.Status() {
		case StatusNotFound, StatusCancelled:
			n++
		}
	}
	return n
}

// StatusCounts returns per-status unit counts for batch-level summaries.
func (s *Session) StatusCounts() map[Status]int {
	counts := make(map[Status]int)
	for _, u := range s.Units() {
		counts[u.Status()]++
	}
	return counts
}

// Close shuts the progress stream down once the batch is finished.
func (s *Session) Close() {
	for _, u := range s.Units() {
		u.Cancel()
	}
	s.progress.Close()
}
