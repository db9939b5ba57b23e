package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/watariapp/watari/internal/apply"
	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/recon"
	"github.com/watariapp/watari/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// anilistServiceID is the tracker service used by the migration fixtures.
const anilistServiceID int64 = 2

func testEntry(sourceID, title, url string) *models.LibraryEntry {
	return &models.LibraryEntry{
		SourceID: sourceID,
		Title:    title,
		URL:      url,
		AddedAt:  time.Now(),
	}
}

func testChapter(url, name string, number float64, order int) models.ChapterRecord {
	return models.ChapterRecord{
		URL:         url,
		Name:        name,
		Number:      number,
		DateFetched: time.Now(),
		SourceOrder: order,
	}
}

func TestLibraryEntries(t *testing.T) {
	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		lib := NewLibrary(db)
		entry := testEntry("mangahub", "One Piece", "/series/one-piece")
		entry.Author = "Eiichiro Oda"
		entry.Status = models.StatusOngoing

		id, err := lib.InsertEntry(ctx, entry)
		if err != nil {
			t.Fatalf("failed to insert entry: %v", err)
		}
		if id == 0 {
			t.Error("entry ID should be assigned on insert")
		}

		got, err := lib.GetEntry(ctx, id)
		if err != nil {
			t.Fatalf("failed to get entry: %v", err)
		}
		if got.Title != "One Piece" || got.Author != "Eiichiro Oda" {
			t.Errorf("unexpected entry: %+v", got)
		}
		if got.Status != models.StatusOngoing {
			t.Errorf("expected ongoing status, got %v", got.Status)
		}
	})

	t.Run("EntryBySourceURL", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		lib := NewLibrary(db)
		id, err := lib.InsertEntry(ctx, testEntry("mangahub", "Berserk", "/series/berserk"))
		if err != nil {
			t.Fatalf("failed to insert entry: %v", err)
		}

		got, err := lib.EntryBySourceURL(ctx, "mangahub", "/series/berserk")
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if got == nil || got.EntryID != id {
			t.Errorf("expected entry %d, got %+v", id, got)
		}

		missing, err := lib.EntryBySourceURL(ctx, "comickaze", "/series/berserk")
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if missing != nil {
			t.Errorf("expected nil for unknown source/url pair, got %+v", missing)
		}
	})

	t.Run("UpdateEntryMetadata", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		lib := NewLibrary(db)
		entry := testEntry("mangahub", "Vagabond", "/series/vagabond")
		id, err := lib.InsertEntry(ctx, entry)
		if err != nil {
			t.Fatalf("failed to insert entry: %v", err)
		}

		entry.EntryID = id
		entry.Author = "Takehiko Inoue"
		entry.Description = "A ronin's journey."
		entry.Status = models.StatusCompleted

		if err := lib.UpdateEntryMetadata(ctx, entry); err != nil {
			t.Fatalf("failed to update metadata: %v", err)
		}

		got, err := lib.GetEntry(ctx, id)
		if err != nil {
			t.Fatalf("failed to get entry: %v", err)
		}
		if got.Author != "Takehiko Inoue" || got.Status != models.StatusCompleted {
			t.Errorf("metadata not updated: %+v", got)
		}
	})

	t.Run("FavoriteEntries", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		lib := NewLibrary(db)
		fav := testEntry("mangahub", "Favorited", "/series/fav")
		fav.Favorite = true
		if _, err := lib.InsertEntry(ctx, fav); err != nil {
			t.Fatalf("failed to insert entry: %v", err)
		}
		if _, err := lib.InsertEntry(ctx, testEntry("mangahub", "Candidate", "/series/cand")); err != nil {
			t.Fatalf("failed to insert entry: %v", err)
		}

		entries, err := lib.FavoriteEntries(ctx)
		if err != nil {
			t.Fatalf("failed to list favorites: %v", err)
		}
		if len(entries) != 1 || entries[0].Title != "Favorited" {
			t.Errorf("expected single favorite entry, got %+v", entries)
		}
	})
}

func TestLibraryChapterDiff(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, lib *Library) int64 {
		t.Helper()
		id, err := lib.InsertEntry(ctx, testEntry("mangahub", "Dorohedoro", "/series/dorohedoro"))
		if err != nil {
			t.Fatalf("failed to insert entry: %v", err)
		}
		chapters := []models.ChapterRecord{
			testChapter("/ch/1", "Chapter 1", 1, 0),
			testChapter("/ch/2", "Chapter 2", 2, 1),
		}
		if err := lib.InsertChapters(ctx, id, chapters); err != nil {
			t.Fatalf("failed to seed chapters: %v", err)
		}
		return id
	}

	t.Run("InsertDeleteUpdate", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		lib := NewLibrary(db)
		entryID := seed(t, lib)

		existing, err := lib.ChaptersByEntry(ctx, entryID)
		if err != nil {
			t.Fatalf("failed to load chapters: %v", err)
		}

		updated := existing[1]
		updated.Name = "Chapter 2: Renamed"
		updated.SourceOrder = 2

		diff := &recon.Diff{
			ToAdd:    []models.ChapterRecord{testChapter("/ch/3", "Chapter 3", 3, 0)},
			ToRemove: existing[:1],
			ToUpdate: []models.ChapterRecord{updated},
		}

		if err := lib.ApplyChapterDiff(ctx, entryID, diff); err != nil {
			t.Fatalf("failed to apply diff: %v", err)
		}

		chapters, err := lib.ChaptersByEntry(ctx, entryID)
		if err != nil {
			t.Fatalf("failed to load chapters: %v", err)
		}
		if len(chapters) != 2 {
			t.Fatalf("expected 2 chapters after diff, got %d", len(chapters))
		}
		if chapters[0].URL != "/ch/3" {
			t.Errorf("expected added chapter first by source order, got %s", chapters[0].URL)
		}
		if chapters[1].Name != "Chapter 2: Renamed" {
			t.Errorf("kept chapter not updated: %+v", chapters[1])
		}
		if chapters[1].ChapterID != updated.ChapterID {
			t.Errorf("kept chapter lost its identity: %d != %d", chapters[1].ChapterID, updated.ChapterID)
		}
	})

	t.Run("RollsBackOnFailure", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		lib := NewLibrary(db)
		entryID := seed(t, lib)

		// Second addition violates the (entry_id, url) uniqueness, so the
		// first addition and the removal must both be rolled back.
		diff := &recon.Diff{
			ToAdd: []models.ChapterRecord{
				testChapter("/ch/3", "Chapter 3", 3, 2),
				testChapter("/ch/1", "Duplicate", 1, 3),
			},
			ToRemove: nil,
		}

		if err := lib.ApplyChapterDiff(ctx, entryID, diff); err == nil {
			t.Fatal("expected constraint violation")
		}

		chapters, err := lib.ChaptersByEntry(ctx, entryID)
		if err != nil {
			t.Fatalf("failed to load chapters: %v", err)
		}
		if len(chapters) != 2 {
			t.Errorf("partial diff visible after rollback: %d chapters", len(chapters))
		}
	})
}

func TestLibraryApplyMigration(t *testing.T) {
	ctx := context.Background()

	type fixture struct {
		lib   *Library
		oldID int64
		newID int64
	}

	setup := func(t *testing.T, db *sql.DB) fixture {
		t.Helper()
		lib := NewLibrary(db)

		old := testEntry("mangahub", "Claymore", "/series/claymore")
		old.Favorite = true
		oldID, err := lib.InsertEntry(ctx, old)
		if err != nil {
			t.Fatalf("failed to insert old entry: %v", err)
		}

		newID, err := lib.InsertEntry(ctx, testEntry("comickaze", "Claymore", "/claymore"))
		if err != nil {
			t.Fatalf("failed to insert new entry: %v", err)
		}

		newChapters := []models.ChapterRecord{
			testChapter("/claymore/1", "Chapter 1", 1, 0),
			testChapter("/claymore/2", "Chapter 2", 2, 1),
			testChapter("/claymore/3", "Chapter 3", 3, 2),
			testChapter("/claymore/extra", "Omake", models.ChapterNumberUnknown, 3),
		}
		if err := lib.InsertChapters(ctx, newID, newChapters); err != nil {
			t.Fatalf("failed to seed chapters: %v", err)
		}

		return fixture{lib: lib, oldID: oldID, newID: newID}
	}

	t.Run("FullCarry", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		f := setup(t, db)

		catID, err := f.lib.InsertCategory(ctx, "Reading", 0)
		if err != nil {
			t.Fatalf("failed to insert category: %v", err)
		}
		if err := f.lib.AddToCategory(ctx, f.oldID, catID); err != nil {
			t.Fatalf("failed to categorize: %v", err)
		}
		if _, err := f.lib.InsertTrack(ctx, models.TrackRecord{
			EntryID: f.oldID, ServiceID: anilistServiceID, RemoteID: "1044", LastChapterRead: 2,
		}); err != nil {
			t.Fatalf("failed to insert track: %v", err)
		}

		err = f.lib.ApplyMigration(ctx, apply.Params{
			OldEntryID:     f.oldID,
			NewEntryID:     f.newID,
			MarkReadUpTo:   2,
			CopyCategories: true,
			MoveTracking:   true,
			Replace:        true,
		})
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}

		newEntry, err := f.lib.GetEntry(ctx, f.newID)
		if err != nil {
			t.Fatalf("failed to get new entry: %v", err)
		}
		if !newEntry.Favorite {
			t.Error("new entry should be in the library")
		}

		oldEntry, err := f.lib.GetEntry(ctx, f.oldID)
		if err != nil {
			t.Fatalf("old entry should still exist: %v", err)
		}
		if oldEntry.Favorite {
			t.Error("replaced old entry should no longer be a favorite")
		}

		chapters, err := f.lib.ChaptersByEntry(ctx, f.newID)
		if err != nil {
			t.Fatalf("failed to load chapters: %v", err)
		}
		for _, c := range chapters {
			wantRead := c.HasNumber() && c.Number <= 2
			if c.Read != wantRead {
				t.Errorf("chapter %s read=%v, want %v", c.URL, c.Read, wantRead)
			}
		}

		cats, err := f.lib.CategoriesOf(ctx, f.newID)
		if err != nil {
			t.Fatalf("failed to load categories: %v", err)
		}
		if len(cats) != 1 || cats[0] != catID {
			t.Errorf("categories not copied: %v", cats)
		}
		oldCats, _ := f.lib.CategoriesOf(ctx, f.oldID)
		if len(oldCats) != 1 {
			t.Errorf("old entry categories should be untouched: %v", oldCats)
		}

		tracks, err := f.lib.TracksByEntry(ctx, f.newID)
		if err != nil {
			t.Fatalf("failed to load tracks: %v", err)
		}
		if len(tracks) != 1 || tracks[0].ServiceID != anilistServiceID {
			t.Errorf("tracking not re-pointed: %+v", tracks)
		}
		oldTracks, _ := f.lib.TracksByEntry(ctx, f.oldID)
		if len(oldTracks) != 0 {
			t.Errorf("old entry should have no tracking bindings left: %+v", oldTracks)
		}
	})

	t.Run("WatermarkDisabled", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		f := setup(t, db)

		err := f.lib.ApplyMigration(ctx, apply.Params{
			OldEntryID:   f.oldID,
			NewEntryID:   f.newID,
			MarkReadUpTo: -1,
		})
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}

		chapters, err := f.lib.ChaptersByEntry(ctx, f.newID)
		if err != nil {
			t.Fatalf("failed to load chapters: %v", err)
		}
		for _, c := range chapters {
			if c.Read {
				t.Errorf("chapter %s should not be marked read", c.URL)
			}
		}
	})

	t.Run("KeepBothLeavesOldFavorite", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		f := setup(t, db)

		err := f.lib.ApplyMigration(ctx, apply.Params{
			OldEntryID:   f.oldID,
			NewEntryID:   f.newID,
			MarkReadUpTo: -1,
			Replace:      false,
		})
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}

		oldEntry, err := f.lib.GetEntry(ctx, f.oldID)
		if err != nil {
			t.Fatalf("failed to get old entry: %v", err)
		}
		if !oldEntry.Favorite {
			t.Error("old entry should stay in the library without replace")
		}
	})

	t.Run("RollsBackAsOneTransaction", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		f := setup(t, db)

		catID, err := f.lib.InsertCategory(ctx, "Reading", 0)
		if err != nil {
			t.Fatalf("failed to insert category: %v", err)
		}
		if err := f.lib.AddToCategory(ctx, f.oldID, catID); err != nil {
			t.Fatalf("failed to categorize: %v", err)
		}

		// Both entries already track the same service, so re-pointing
		// violates the (entry_id, service_id) uniqueness mid-transaction.
		for _, id := range []int64{f.oldID, f.newID} {
			if _, err := f.lib.InsertTrack(ctx, models.TrackRecord{
				EntryID: id, ServiceID: anilistServiceID, RemoteID: "1044",
			}); err != nil {
				t.Fatalf("failed to insert track: %v", err)
			}
		}

		err = f.lib.ApplyMigration(ctx, apply.Params{
			OldEntryID:     f.oldID,
			NewEntryID:     f.newID,
			MarkReadUpTo:   2,
			CopyCategories: true,
			MoveTracking:   true,
			Replace:        true,
		})
		if err == nil {
			t.Fatal("expected tracking conflict to fail the transaction")
		}

		newEntry, err := f.lib.GetEntry(ctx, f.newID)
		if err != nil {
			t.Fatalf("failed to get new entry: %v", err)
		}
		if newEntry.Favorite {
			t.Error("favorite flip should have been rolled back")
		}

		chapters, err := f.lib.ChaptersByEntry(ctx, f.newID)
		if err != nil {
			t.Fatalf("failed to load chapters: %v", err)
		}
		for _, c := range chapters {
			if c.Read {
				t.Errorf("read marks should have been rolled back: %s", c.URL)
			}
		}

		cats, err := f.lib.CategoriesOf(ctx, f.newID)
		if err != nil {
			t.Fatalf("failed to load categories: %v", err)
		}
		if len(cats) != 0 {
			t.Errorf("category copy should have been rolled back: %v", cats)
		}

		oldEntry, err := f.lib.GetEntry(ctx, f.oldID)
		if err != nil {
			t.Fatalf("failed to get old entry: %v", err)
		}
		if !oldEntry.Favorite {
			t.Error("old entry favorite should be untouched after rollback")
		}
	})
}

func TestBatchRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		batch := models.NewMigrationBatch(0, 5, true)

		if err := repo.Create(batch); err != nil {
			t.Fatalf("failed to create batch: %v", err)
		}
		if batch.ID() == "" {
			t.Error("batch ID should be set after creation")
		}
		if batch.Sequence() != 1 {
			t.Errorf("first batch should get sequence 1, got %d", batch.Sequence())
		}
	})

	t.Run("GetAndUpdate", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		batch := models.NewMigrationBatch(0, 5, false)
		if err := repo.Create(batch); err != nil {
			t.Fatalf("failed to create batch: %v", err)
		}

		batch.SetStatus(models.BatchStatusCompleted)
		batch.SetCounts(3, 1, 1)
		now := time.Now()
		batch.SetCompletedAt(&now)

		if err := repo.Update(batch); err != nil {
			t.Fatalf("failed to update batch: %v", err)
		}

		got, err := repo.Get(batch.ID())
		if err != nil {
			t.Fatalf("failed to get batch: %v", err)
		}
		if got.Status() != models.BatchStatusCompleted {
			t.Errorf("expected completed status, got %s", got.Status())
		}
		if got.Applied() != 3 || got.Skipped() != 1 || got.Failed() != 1 {
			t.Errorf("counts not persisted: %d/%d/%d", got.Applied(), got.Skipped(), got.Failed())
		}
		if got.CompletedAt() == nil {
			t.Error("completed timestamp not persisted")
		}
	})

	t.Run("SequenceIncrements", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		for want := 1; want <= 3; want++ {
			batch := models.NewMigrationBatch(0, 1, false)
			if err := repo.Create(batch); err != nil {
				t.Fatalf("failed to create batch: %v", err)
			}
			if batch.Sequence() != want {
				t.Errorf("expected sequence %d, got %d", want, batch.Sequence())
			}
		}
	})

	t.Run("ListFiltersAndOrders", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		for i := 0; i < 3; i++ {
			batch := models.NewMigrationBatch(0, 1, false)
			if i == 2 {
				batch.SetStatus(models.BatchStatusCancelled)
			}
			if err := repo.Create(batch); err != nil {
				t.Fatalf("failed to create batch: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list batches: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(all))
		}
		if all[0].Sequence() != 3 {
			t.Errorf("expected newest batch first, got sequence %d", all[0].Sequence())
		}

		cancelled, err := repo.List(map[string]any{"status": models.BatchStatusCancelled})
		if err != nil {
			t.Fatalf("failed to list batches: %v", err)
		}
		if len(cancelled) != 1 {
			t.Errorf("expected 1 cancelled batch, got %d", len(cancelled))
		}

		limited, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list batches: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 batches with limit, got %d", len(limited))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		batch := models.NewMigrationBatch(0, 1, false)
		if err := repo.Create(batch); err != nil {
			t.Fatalf("failed to create batch: %v", err)
		}

		if err := repo.Delete(batch.ID()); err != nil {
			t.Fatalf("failed to delete batch: %v", err)
		}
		if _, err := repo.Get(batch.ID()); err == nil {
			t.Error("soft-deleted batch should not be retrievable")
		}
		if err := repo.Delete(batch.ID()); err == nil {
			t.Error("double delete should fail")
		}
	})
}
