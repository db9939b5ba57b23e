package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/recon"
	"github.com/watariapp/watari/internal/search"
	"github.com/watariapp/watari/internal/shared"
	"github.com/watariapp/watari/internal/sources"
)

// fakeSource is a scriptable in-memory catalogue provider.
type fakeSource struct {
	id         string
	results    map[string][]sources.Candidate    // by query title
	chapters   map[string][]models.ChapterRecord // by candidate URL
	meta       map[string]*sources.Metadata      // by candidate URL
	fail       bool
	blockQuery string                            // Search for this query blocks until the context is cancelled

	searchDelay time.Duration
	searches    atomic.Int64
	inFlight    *concurrencyGauge
}

// concurrencyGauge tracks the high-water mark of concurrent calls.
type concurrencyGauge struct {
	mu      sync.Mutex
	current int
	max     int
}

func (g *concurrencyGauge) enter() {
	g.mu.Lock()
	g.current++
	if g.current > g.max {
		g.max = g.current
	}
	g.mu.Unlock()
}

func (g *concurrencyGauge) exit() {
	g.mu.Lock()
	g.current--
	g.mu.Unlock()
}

func (g *concurrencyGauge) highWater() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}

func (f *fakeSource) ID() string   { return f.id }
func (f *fakeSource) Name() string { return f.id }

func (f *fakeSource) Search(ctx context.Context, query string) ([]sources.Candidate, error) {
	f.searches.Add(1)
	if f.inFlight != nil {
		f.inFlight.enter()
		defer f.inFlight.exit()
	}
	if f.blockQuery != "" && query == f.blockQuery {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.searchDelay > 0 {
		select {
		case <-time.After(f.searchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail {
		return nil, shared.ErrSourceUnavailable
	}
	return f.results[query], nil
}

func (f *fakeSource) FetchDetails(ctx context.Context, c sources.Candidate) (*sources.Metadata, error) {
	if meta, ok := f.meta[c.URL]; ok {
		return meta, nil
	}
	return nil, shared.ErrSourceUnavailable
}

func (f *fakeSource) FetchChapterList(ctx context.Context, c sources.Candidate) ([]models.ChapterRecord, error) {
	if f.fail {
		return nil, shared.ErrSourceUnavailable
	}
	return f.chapters[c.URL], nil
}

// newFakeSource builds a source that answers query with a single candidate
// carrying n chapters.
func newFakeSource(id, query string, n int) *fakeSource {
	url := "/" + id + "/hit"
	chapters := make([]models.ChapterRecord, 0, n)
	for i := n; i >= 1; i-- {
		chapters = append(chapters, models.ChapterRecord{
			URL:  fmt.Sprintf("%s/ch/%d", url, i),
			Name: fmt.Sprintf("Chapter %d", i),
		})
	}
	return &fakeSource{
		id: id,
		results: map[string][]sources.Candidate{
			query: {{SourceID: id, URL: url, Title: query}},
		},
		chapters: map[string][]models.ChapterRecord{url: chapters},
	}
}

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	entries  map[int64]*models.LibraryEntry
	chapters map[int64][]models.ChapterRecord
	diffErr  error
}

func newMemStore() *memStore {
	return &memStore{
		entries:  make(map[int64]*models.LibraryEntry),
		chapters: make(map[int64][]models.ChapterRecord),
	}
}

func (m *memStore) EntryBySourceURL(ctx context.Context, sourceID, url string) (*models.LibraryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.SourceID == sourceID && e.URL == url {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertEntry(ctx context.Context, entry *models.LibraryEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	copied := *entry
	copied.EntryID = m.nextID
	m.entries[m.nextID] = &copied
	return m.nextID, nil
}

func (m *memStore) UpdateEntryMetadata(ctx context.Context, entry *models.LibraryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.entries[entry.EntryID]; ok {
		stored.Author = entry.Author
		stored.Description = entry.Description
		stored.ThumbnailURL = entry.ThumbnailURL
		stored.Status = entry.Status
	}
	return nil
}

func (m *memStore) ChaptersByEntry(ctx context.Context, entryID int64) ([]models.ChapterRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChapterRecord(nil), m.chapters[entryID]...), nil
}

func (m *memStore) ApplyChapterDiff(ctx context.Context, entryID int64, diff *recon.Diff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.diffErr != nil {
		return m.diffErr
	}

	removed := make(map[string]struct{}, len(diff.ToRemove))
	for _, c := range diff.ToRemove {
		removed[c.URL] = struct{}{}
	}

	var kept []models.ChapterRecord
	for _, c := range m.chapters[entryID] {
		if _, gone := removed[c.URL]; !gone {
			kept = append(kept, c)
		}
	}
	m.chapters[entryID] = append(kept, diff.ToAdd...)
	return nil
}

func (m *memStore) entryBySource(sourceID string) *models.LibraryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.SourceID == sourceID {
			copied := *e
			return &copied
		}
	}
	return nil
}

func newTestOrchestrator(store Store, srcs ...sources.Source) (*Orchestrator, *sources.Registry) {
	registry := sources.NewRegistry()
	for _, s := range srcs {
		registry.Register(s)
	}
	searcher := search.NewSearcher(nil, nil)
	return NewOrchestrator(registry, searcher, store, nil), registry
}

func collect(t *testing.T, outcomes <-chan Outcome) map[string]Outcome {
	t.Helper()
	got := make(map[string]Outcome)
	for out := range outcomes {
		got[out.UnitID] = out
	}
	return got
}

func baseConfig(sourceIDs ...string) BatchConfig {
	return BatchConfig{
		EntryIDs:        []int64{1},
		TargetSourceIDs: sourceIDs,
		MaxConcurrent:   3,
	}
}

func TestOrchestratorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstMatchShortCircuits", func(t *testing.T) {
		a := &fakeSource{id: "a", fail: true}
		b := newFakeSource("b", "Berserk", 5)
		c := newFakeSource("c", "Berserk", 50)

		store := newMemStore()
		o, _ := newTestOrchestrator(store, a, b, c)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		outcomes, err := o.Run(ctx, session, baseConfig("a", "b", "c"))
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		got := collect(t, outcomes)

		out := got[session.Units()[0].ID()]
		if out.Status != StatusFound {
			t.Fatalf("expected found, got %s (err=%v)", out.Status, out.Err)
		}
		if entry := store.entryBySource("b"); entry == nil || entry.EntryID != out.NewEntryID {
			t.Error("first usable source in order should win under first-match")
		}
		if c.searches.Load() != 0 {
			t.Error("later sources must not be searched after a match")
		}
	})

	t.Run("BestOfNPicksMostChapters", func(t *testing.T) {
		a := newFakeSource("a", "Berserk", 5)
		b := newFakeSource("b", "Berserk", 50)
		c := &fakeSource{id: "c", fail: true}

		store := newMemStore()
		o, _ := newTestOrchestrator(store, a, b, c)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		cfg := baseConfig("a", "b", "c")
		cfg.PreferMostChapters = true

		outcomes, err := o.Run(ctx, session, cfg)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		got := collect(t, outcomes)

		out := got[session.Units()[0].ID()]
		if out.Status != StatusFound {
			t.Fatalf("expected found, got %s (err=%v)", out.Status, out.Err)
		}
		if entry := store.entryBySource("b"); entry == nil || entry.EntryID != out.NewEntryID {
			t.Error("source with the most chapters should win")
		}
		if out.NewChapters != 50 {
			t.Errorf("expected 50 new chapters, got %d", out.NewChapters)
		}
		if a.searches.Load() == 0 {
			t.Error("best-of-N should try every source")
		}
	})

	t.Run("BestOfNTieBreaksByOrder", func(t *testing.T) {
		a := newFakeSource("a", "Berserk", 10)
		b := newFakeSource("b", "Berserk", 10)

		store := newMemStore()
		o, _ := newTestOrchestrator(store, a, b)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		cfg := baseConfig("a", "b")
		cfg.PreferMostChapters = true

		outcomes, err := o.Run(ctx, session, cfg)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		collect(t, outcomes)

		if store.entryBySource("a") == nil {
			t.Error("equal chapter counts should pick the earliest configured source")
		}
		if store.entryBySource("b") != nil {
			t.Error("losing candidate must not be landed")
		}
	})

	t.Run("NotFoundWhenAllSourcesFail", func(t *testing.T) {
		a := &fakeSource{id: "a", fail: true}
		b := &fakeSource{id: "b"} // no results for the query

		store := newMemStore()
		o, _ := newTestOrchestrator(store, a, b)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		outcomes, err := o.Run(ctx, session, baseConfig("a", "b"))
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		got := collect(t, outcomes)

		out := got[session.Units()[0].ID()]
		if out.Status != StatusNotFound {
			t.Errorf("expected not_found, got %s", out.Status)
		}
		if out.Err != nil {
			t.Errorf("provider failure is not a unit failure: %v", out.Err)
		}
		unit := session.Units()[0]
		if r := unit.SearchResult(); !r.Settled() || !r.Absent() {
			t.Errorf("result should settle absent, got %+v", r)
		}
	})

	t.Run("UnknownSourcesRejected", func(t *testing.T) {
		store := newMemStore()
		o, _ := newTestOrchestrator(store, newFakeSource("a", "Berserk", 1))
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		_, err := o.Run(ctx, session, baseConfig("nope"))
		if !errors.Is(err, shared.ErrSourceUnknown) {
			t.Errorf("expected ErrSourceUnknown, got %v", err)
		}
	})

	t.Run("CancelOneUnitLeavesOthers", func(t *testing.T) {
		blocked := &fakeSource{id: "a", blockQuery: "Stuck"}
		quick := newFakeSource("b", "Quick", 3)

		store := newMemStore()
		o, _ := newTestOrchestrator(store, blocked, quick)
		session := NewSession([]models.LibraryEntry{
			stubEntry(1, "Stuck"),
			stubEntry(2, "Quick"),
		})

		cfg := baseConfig("a", "b")
		cfg.EntryIDs = []int64{1, 2}
		cfg.PreferMostChapters = true

		outcomes, err := o.Run(ctx, session, cfg)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		stuck := session.Units()[0]
		quickUnit := session.Units()[1]
		stuck.Cancel()

		got := collect(t, outcomes)
		if got[stuck.ID()].Status != StatusCancelled {
			t.Errorf("expected cancelled, got %s", got[stuck.ID()].Status)
		}
		if got[quickUnit.ID()].Status != StatusFound {
			t.Errorf("cancelling one unit must not affect another, got %s", got[quickUnit.ID()].Status)
		}
	})

	t.Run("BoundedConcurrency", func(t *testing.T) {
		gauge := &concurrencyGauge{}
		var srcs []sources.Source
		ids := make([]string, 0, 6)
		for i := 0; i < 6; i++ {
			s := newFakeSource(fmt.Sprintf("s%d", i), "Berserk", 1)
			s.searchDelay = 10 * time.Millisecond
			s.inFlight = gauge
			srcs = append(srcs, s)
			ids = append(ids, s.id)
		}

		store := newMemStore()
		o, _ := newTestOrchestrator(store, srcs...)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		cfg := baseConfig(ids...)
		cfg.PreferMostChapters = true
		cfg.MaxConcurrent = 2

		outcomes, err := o.Run(ctx, session, cfg)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		collect(t, outcomes)

		if hw := gauge.highWater(); hw > 2 {
			t.Errorf("provider calls exceeded the concurrency bound: %d", hw)
		}
	})

	t.Run("MetadataRefetch", func(t *testing.T) {
		src := newFakeSource("a", "Berserk", 3)
		src.meta = map[string]*sources.Metadata{
			"/a/hit": {Author: "Kentaro Miura", Description: "Dark fantasy.", Status: models.StatusOngoing},
		}

		store := newMemStore()
		o, _ := newTestOrchestrator(store, src)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		outcomes, err := o.Run(ctx, session, baseConfig("a"))
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		collect(t, outcomes)

		entry := store.entryBySource("a")
		if entry == nil {
			t.Fatal("entry not landed")
		}
		if entry.Author != "Kentaro Miura" || entry.Status != models.StatusOngoing {
			t.Errorf("metadata not refetched: %+v", entry)
		}
	})

	t.Run("MetadataFailureDoesNotFailUnit", func(t *testing.T) {
		src := newFakeSource("a", "Berserk", 3) // no meta scripted

		store := newMemStore()
		o, _ := newTestOrchestrator(store, src)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		outcomes, err := o.Run(ctx, session, baseConfig("a"))
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		got := collect(t, outcomes)

		if out := got[session.Units()[0].ID()]; out.Status != StatusFound {
			t.Errorf("metadata failure must not fail the unit, got %s", out.Status)
		}
	})

	t.Run("StoreFailureFailsUnit", func(t *testing.T) {
		src := newFakeSource("a", "Berserk", 3)
		store := newMemStore()
		store.diffErr = fmt.Errorf("disk full")

		o, _ := newTestOrchestrator(store, src)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		outcomes, err := o.Run(ctx, session, baseConfig("a"))
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		got := collect(t, outcomes)

		out := got[session.Units()[0].ID()]
		if out.Status != StatusFailed {
			t.Fatalf("expected failed, got %s", out.Status)
		}
		if !errors.Is(out.Err, shared.ErrReconcileConflict) {
			t.Errorf("store failure should surface as reconcile conflict, got %v", out.Err)
		}
	})

	t.Run("ExistingEntryReconciled", func(t *testing.T) {
		src := newFakeSource("a", "Berserk", 3)
		store := newMemStore()

		id, _ := store.InsertEntry(ctx, &models.LibraryEntry{
			SourceID: "a", URL: "/a/hit", Title: "Berserk", Author: "Kentaro Miura",
		})
		store.chapters[id] = []models.ChapterRecord{
			{ChapterID: 1, EntryID: id, URL: "/a/hit/ch/1", Name: "Chapter 1", Number: 1, Read: true},
		}

		o, _ := newTestOrchestrator(store, src)
		session := NewSession([]models.LibraryEntry{stubEntry(1, "Berserk")})

		outcomes, err := o.Run(ctx, session, baseConfig("a"))
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		got := collect(t, outcomes)

		out := got[session.Units()[0].ID()]
		if out.Status != StatusFound {
			t.Fatalf("expected found, got %s (err=%v)", out.Status, out.Err)
		}
		if out.NewEntryID != id {
			t.Errorf("existing entry should be reused, got %d want %d", out.NewEntryID, id)
		}
		if out.NewChapters != 2 {
			t.Errorf("expected 2 new chapters, got %d", out.NewChapters)
		}

		chapters, _ := store.ChaptersByEntry(ctx, id)
		if len(chapters) != 3 {
			t.Errorf("expected 3 chapters after sync, got %d", len(chapters))
		}
		for _, c := range chapters {
			if c.URL == "/a/hit/ch/1" && !c.Read {
				t.Error("read state lost on kept chapter")
			}
		}
	})
}

func TestManualOverride(t *testing.T) {
	ctx := context.Background()

	t.Run("BypassesSearch", func(t *testing.T) {
		src := newFakeSource("a", "Berserk", 3)
		store := newMemStore()
		o, _ := newTestOrchestrator(store, src)

		unit := NewUnit(stubEntry(1, "Totally Different Title"))
		out, err := o.ManualOverride(ctx, unit, sources.Candidate{
			SourceID: "a", URL: "/a/hit", Title: "Berserk",
		})
		if err != nil {
			t.Fatalf("override failed: %v", err)
		}
		if out.Status != StatusFound {
			t.Errorf("expected found, got %s", out.Status)
		}
		if src.searches.Load() != 0 {
			t.Error("manual override must not search")
		}
	})

	t.Run("RejectsSettledUnit", func(t *testing.T) {
		src := newFakeSource("a", "Berserk", 3)
		o, _ := newTestOrchestrator(newMemStore(), src)

		unit := NewUnit(stubEntry(1, "Berserk"))
		unit.Cancel()

		_, err := o.ManualOverride(ctx, unit, sources.Candidate{SourceID: "a", URL: "/a/hit"})
		if !errors.Is(err, shared.ErrBatchClosed) {
			t.Errorf("expected ErrBatchClosed, got %v", err)
		}
	})

	t.Run("EmptyChapterListFails", func(t *testing.T) {
		src := &fakeSource{id: "a", chapters: map[string][]models.ChapterRecord{}}
		o, _ := newTestOrchestrator(newMemStore(), src)

		unit := NewUnit(stubEntry(1, "Berserk"))
		_, err := o.ManualOverride(ctx, unit, sources.Candidate{SourceID: "a", URL: "/a/none"})
		if !errors.Is(err, shared.ErrNoChaptersFound) {
			t.Errorf("expected ErrNoChaptersFound, got %v", err)
		}
		if unit.Status() != StatusFailed {
			t.Errorf("expected failed, got %s", unit.Status())
		}
	})
}

func TestCancelAll(t *testing.T) {
	store := newMemStore()
	o, _ := newTestOrchestrator(store,
		&fakeSource{id: "a", blockQuery: "x"},
		&fakeSource{id: "b", blockQuery: "y"})
	session := NewSession([]models.LibraryEntry{stubEntry(1, "x"), stubEntry(2, "y")})

	cfg := baseConfig("a", "b")
	cfg.EntryIDs = []int64{1, 2}

	outcomes, err := o.Run(context.Background(), session, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	o.CancelAll(session)

	got := collect(t, outcomes)
	if len(got) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got))
	}
	for id, out := range got {
		if out.Status != StatusCancelled {
			t.Errorf("unit %s: expected cancelled, got %s", id, out.Status)
		}
	}
	if !session.AllTerminal() {
		t.Error("every unit should be terminal after batch cancel")
	}
}
