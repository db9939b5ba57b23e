package migrate

import (
	"fmt"
	"sync"
)

// ProgressUpdate represents a progress event during a migration run.
//
// Processed/Total count candidate source attempts for one unit; every attempt
// publishes an update regardless of outcome. Consumers must tolerate missed
// intermediate values; the newest update per unit is always retained for
// replay.
type ProgressUpdate struct {
	UnitID    string
	EntryID   int64
	Title     string
	Status    Status
	Processed int    // candidate sources attempted so far
	Total     int    // total candidate sources for this unit
	Message   string // human-readable message for display
}

func searchingUpdate(u *Unit, processed, total int, sourceName string) ProgressUpdate {
	return ProgressUpdate{
		UnitID:    u.ID(),
		EntryID:   u.Entry().EntryID,
		Title:     u.Entry().Title,
		Status:    StatusRunning,
		Processed: processed,
		Total:     total,
		Message:   fmt.Sprintf("[%d/%d] %s: searching %s", processed, total, u.Entry().Title, sourceName),
	}
}

func terminalUpdate(u *Unit, total int) ProgressUpdate {
	status := u.Status()
	return ProgressUpdate{
		UnitID:    u.ID(),
		EntryID:   u.Entry().EntryID,
		Title:     u.Entry().Title,
		Status:    status,
		Processed: total,
		Total:     total,
		Message:   fmt.Sprintf("%s: %s", u.Entry().Title, status),
	}
}

// Broadcaster fans progress updates out to any number of subscribers.
//
// Sends never block the engine: when a subscriber's buffer is full the oldest
// queued update is dropped in favor of the newest, so a slow consumer loses
// intermediate values but never the final terminal notification. Late
// subscribers are replayed the last retained update per unit.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan ProgressUpdate
	nextID int
	last   map[string]ProgressUpdate // newest update per unit, in arrival order
	order  []string
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]chan ProgressUpdate),
		last: make(map[string]ProgressUpdate),
	}
}

// Subscribe registers a consumer and replays the newest retained update for
// every unit seen so far. The returned cancel function releases the
// subscription; the channel is closed when the broadcaster closes.
func (b *Broadcaster) Subscribe(buffer int) (<-chan ProgressUpdate, func()) {
	if buffer < 1 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ProgressUpdate, buffer)
	for _, unitID := range b.order {
		deliver(ch, b.last[unitID])
	}

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish broadcasts an update to all subscribers without blocking.
func (b *Broadcaster) Publish(update ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if _, seen := b.last[update.UnitID]; !seen {
		b.order = append(b.order, update.UnitID)
	}
	b.last[update.UnitID] = update

	for _, ch := range b.subs {
		deliver(ch, update)
	}
}

// Close ends the stream; subscriber channels are closed after any queued
// updates are drained.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Snapshot returns the newest retained update per unit in first-seen order.
func (b *Broadcaster) Snapshot() []ProgressUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ProgressUpdate, 0, len(b.order))
	for _, unitID := range b.order {
		out = append(out, b.last[unitID])
	}
	return out
}

// deliver pushes an update onto a subscriber channel, evicting the oldest
// queued update instead of blocking when the buffer is full.
func deliver(ch chan ProgressUpdate, update ProgressUpdate) {
	for {
		select {
		case ch <- update:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
