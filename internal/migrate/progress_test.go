package migrate

import "testing"

func update(unitID string, status Status, processed int) ProgressUpdate {
	return ProgressUpdate{UnitID: unitID, Status: status, Processed: processed, Total: 3}
}

func drain(ch <-chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestBroadcaster(t *testing.T) {
	t.Run("FanOut", func(t *testing.T) {
		b := NewBroadcaster()
		defer b.Close()

		ch1, cancel1 := b.Subscribe(4)
		ch2, cancel2 := b.Subscribe(4)
		defer cancel1()
		defer cancel2()

		b.Publish(update("u1", StatusRunning, 1))

		for i, ch := range []<-chan ProgressUpdate{ch1, ch2} {
			got := drain(ch)
			if len(got) != 1 || got[0].UnitID != "u1" {
				t.Errorf("subscriber %d: expected one update for u1, got %v", i, got)
			}
		}
	})

	t.Run("LateSubscriberReplay", func(t *testing.T) {
		b := NewBroadcaster()
		defer b.Close()

		b.Publish(update("u1", StatusRunning, 1))
		b.Publish(update("u1", StatusFound, 3))
		b.Publish(update("u2", StatusRunning, 2))

		ch, cancel := b.Subscribe(8)
		defer cancel()

		got := drain(ch)
		if len(got) != 2 {
			t.Fatalf("expected newest update per unit, got %d updates", len(got))
		}
		if got[0].UnitID != "u1" || got[0].Status != StatusFound {
			t.Errorf("u1 replay should be its newest update: %+v", got[0])
		}
		if got[1].UnitID != "u2" || got[1].Processed != 2 {
			t.Errorf("u2 replay wrong: %+v", got[1])
		}
	})

	t.Run("SlowConsumerKeepsNewest", func(t *testing.T) {
		b := NewBroadcaster()
		defer b.Close()

		ch, cancel := b.Subscribe(2)
		defer cancel()

		// Never read while publishing; the buffer overflows and the oldest
		// updates are evicted.
		for i := 1; i <= 5; i++ {
			b.Publish(update("u1", StatusRunning, i))
		}
		b.Publish(update("u1", StatusFound, 3))

		got := drain(ch)
		if len(got) != 2 {
			t.Fatalf("expected exactly the buffer's worth, got %d", len(got))
		}
		last := got[len(got)-1]
		if last.Status != StatusFound {
			t.Errorf("terminal update must never be dropped, got %+v", last)
		}
	})

	t.Run("PublishNeverBlocks", func(t *testing.T) {
		b := NewBroadcaster()
		defer b.Close()

		_, cancel := b.Subscribe(1)
		defer cancel()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				b.Publish(update("u1", StatusRunning, i))
			}
			close(done)
		}()

		<-done
	})

	t.Run("Snapshot", func(t *testing.T) {
		b := NewBroadcaster()
		defer b.Close()

		b.Publish(update("u2", StatusRunning, 1))
		b.Publish(update("u1", StatusRunning, 1))
		b.Publish(update("u2", StatusNotFound, 3))

		snap := b.Snapshot()
		if len(snap) != 2 {
			t.Fatalf("expected 2 units in snapshot, got %d", len(snap))
		}
		if snap[0].UnitID != "u2" || snap[0].Status != StatusNotFound {
			t.Errorf("snapshot should keep first-seen order with newest values: %+v", snap)
		}
	})

	t.Run("CloseEndsStream", func(t *testing.T) {
		b := NewBroadcaster()
		ch, _ := b.Subscribe(4)

		b.Publish(update("u1", StatusFound, 3))
		b.Close()
		b.Publish(update("u2", StatusRunning, 1)) // ignored

		var got []ProgressUpdate
		for u := range ch {
			got = append(got, u)
		}
		if len(got) != 1 || got[0].UnitID != "u1" {
			t.Errorf("queued updates should drain before close, got %v", got)
		}

		ch2, _ := b.Subscribe(4)
		got2 := drain(ch2)
		if len(got2) != 1 {
			t.Errorf("post-close subscriber still gets the retained replay, got %v", got2)
		}
		if _, ok := <-ch2; ok {
			t.Error("post-close subscriber channel should be closed after replay")
		}
	})
}
