package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/watariapp/watari/internal/apply"
	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/recon"
)

// Library provides persistence for entries, chapters, categories and tracking
// bindings. It implements the store interfaces consumed by the orchestrator
// and the applier.
type Library struct {
	db *sql.DB
}

// NewLibrary creates a Library over the given database connection.
func NewLibrary(db *sql.DB) *Library {
	return &Library{db: db}
}

const entryColumns = `entry_id, source_id, title, url, author, description, thumbnail_url, status, favorite, added_at`

// GetEntry retrieves an entry by ID.
func (l *Library) GetEntry(ctx context.Context, entryID int64) (*models.LibraryEntry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE entry_id = ?`, entryID)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry not found: %d", entryID)
	}
	return entry, err
}

// EntryBySourceURL returns the entry for a source/URL pair, or nil when the
// catalogue work is not in the library database.
func (l *Library) EntryBySourceURL(ctx context.Context, sourceID, url string) (*models.LibraryEntry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE source_id = ? AND url = ?`, sourceID, url)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// EntriesByIDs retrieves entries preserving the order of the given IDs.
func (l *Library) EntriesByIDs(ctx context.Context, entryIDs []int64) ([]models.LibraryEntry, error) {
	out := make([]models.LibraryEntry, 0, len(entryIDs))
	for _, id := range entryIDs {
		entry, err := l.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

// FavoriteEntries returns all library-member entries, newest first.
func (l *Library) FavoriteEntries(ctx context.Context) ([]models.LibraryEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE favorite = 1 ORDER BY added_at DESC, entry_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LibraryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// InsertEntry inserts a new entry and returns its assigned ID.
func (l *Library) InsertEntry(ctx context.Context, entry *models.LibraryEntry) (int64, error) {
	result, err := l.db.ExecContext(ctx, `
		INSERT INTO entries (source_id, title, url, author, description, thumbnail_url, status, favorite, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SourceID, entry.Title, entry.URL, entry.Author, entry.Description,
		entry.ThumbnailURL, int(entry.Status), entry.Favorite, entry.AddedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}
	return result.LastInsertId()
}

// UpdateEntryMetadata refreshes the catalogue-controlled fields of an entry.
func (l *Library) UpdateEntryMetadata(ctx context.Context, entry *models.LibraryEntry) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE entries SET author = ?, description = ?, thumbnail_url = ?, status = ?
		WHERE entry_id = ?`,
		entry.Author, entry.Description, entry.ThumbnailURL, int(entry.Status), entry.EntryID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry metadata: %w", err)
	}
	return nil
}

// SetFavorite flips library membership for an entry.
func (l *Library) SetFavorite(ctx context.Context, entryID int64, favorite bool) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE entries SET favorite = ? WHERE entry_id = ?`, favorite, entryID)
	if err != nil {
		return fmt.Errorf("failed to update favorite: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("entry not found: %d", entryID)
	}
	return nil
}

const chapterColumns = `chapter_id, entry_id, url, name, scanlator, number, read, last_page_read, date_fetched, date_upload, source_order`

// ChaptersByEntry returns the stored chapters of an entry in source order.
func (l *Library) ChaptersByEntry(ctx context.Context, entryID int64) ([]models.ChapterRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE entry_id = ? ORDER BY source_order`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()

	var chapters []models.ChapterRecord
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// InsertChapters bulk-inserts chapter records for an entry.
func (l *Library) InsertChapters(ctx context.Context, entryID int64, chapters []models.ChapterRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertChaptersTx(tx, entryID, chapters); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyChapterDiff applies a reconciliation diff (inserts, deletions and
// reorders) as a single transaction. Partial application is never
// observable.
func (l *Library) ApplyChapterDiff(ctx context.Context, entryID int64, diff *recon.Diff) error {
	if diff.Unchanged() && len(diff.ToUpdate) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range diff.ToRemove {
		if _, err := tx.Exec(`DELETE FROM chapters WHERE chapter_id = ?`, c.ChapterID); err != nil {
			return fmt.Errorf("failed to delete chapter %d: %w", c.ChapterID, err)
		}
	}

	if err := insertChaptersTx(tx, entryID, diff.ToAdd); err != nil {
		return err
	}

	for _, c := range diff.ToUpdate {
		_, err := tx.Exec(`
			UPDATE chapters SET name = ?, scanlator = ?, number = ?, source_order = ?, date_upload = ?
			WHERE chapter_id = ?`,
			c.Name, c.Scanlator, c.Number, c.SourceOrder, nullableTime(c.DateUpload), c.ChapterID,
		)
		if err != nil {
			return fmt.Errorf("failed to update chapter %d: %w", c.ChapterID, err)
		}
	}

	return tx.Commit()
}

// CategoriesOf returns the category IDs an entry belongs to.
func (l *Library) CategoriesOf(ctx context.Context, entryID int64) ([]int64, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT category_id FROM entry_categories WHERE entry_id = ? ORDER BY category_id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertCategory creates a category and returns its ID.
func (l *Library) InsertCategory(ctx context.Context, name string, sortOrder int) (int64, error) {
	result, err := l.db.ExecContext(ctx,
		`INSERT INTO categories (name, sort_order) VALUES (?, ?)`, name, sortOrder)
	if err != nil {
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	return result.LastInsertId()
}

// AddToCategory adds an entry to a category; adding twice is a no-op.
func (l *Library) AddToCategory(ctx context.Context, entryID, categoryID int64) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entry_categories (entry_id, category_id) VALUES (?, ?)`, entryID, categoryID)
	if err != nil {
		return fmt.Errorf("failed to add entry to category: %w", err)
	}
	return nil
}

// TracksByEntry returns the tracking bindings of an entry.
func (l *Library) TracksByEntry(ctx context.Context, entryID int64) ([]models.TrackRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT track_id, entry_id, service_id, remote_id, last_chapter_read, score, status
		 FROM tracks WHERE entry_id = ? ORDER BY service_id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.TrackRecord
	for rows.Next() {
		var t models.TrackRecord
		if err := rows.Scan(&t.TrackID, &t.EntryID, &t.ServiceID, &t.RemoteID, &t.LastChapterRead, &t.Score, &t.Status); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// InsertTrack creates a tracking binding.
func (l *Library) InsertTrack(ctx context.Context, t models.TrackRecord) (int64, error) {
	result, err := l.db.ExecContext(ctx, `
		INSERT INTO tracks (entry_id, service_id, remote_id, last_chapter_read, score, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.EntryID, t.ServiceID, t.RemoteID, t.LastChapterRead, t.Score, t.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert track: %w", err)
	}
	return result.LastInsertId()
}

// ApplyMigration runs every carry-forward step for one migrated unit inside a
// single transaction: favorite the new entry, mark chapters read up to the
// watermark, copy category memberships, re-point tracking bindings, and
// optionally unfavorite the old entry. Any step failing rolls the whole unit
// back; other units' transactions are unaffected.
func (l *Library) ApplyMigration(ctx context.Context, params apply.Params) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE entries SET favorite = 1 WHERE entry_id = ?`, params.NewEntryID)
	if err != nil {
		return fmt.Errorf("failed to favorite new entry: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return err
	} else if rows == 0 {
		return fmt.Errorf("new entry not found: %d", params.NewEntryID)
	}

	if params.MarkReadUpTo >= 0 {
		_, err := tx.Exec(`
			UPDATE chapters SET read = 1
			WHERE entry_id = ? AND number >= 0 AND number <= ?`,
			params.NewEntryID, params.MarkReadUpTo)
		if err != nil {
			return fmt.Errorf("failed to carry read progress: %w", err)
		}
	}

	if params.CopyCategories {
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO entry_categories (entry_id, category_id)
			SELECT ?, category_id FROM entry_categories WHERE entry_id = ?`,
			params.NewEntryID, params.OldEntryID)
		if err != nil {
			return fmt.Errorf("failed to copy categories: %w", err)
		}
	}

	if params.MoveTracking {
		_, err := tx.Exec(`UPDATE tracks SET entry_id = ? WHERE entry_id = ?`,
			params.NewEntryID, params.OldEntryID)
		if err != nil {
			return fmt.Errorf("failed to re-point tracking bindings: %w", err)
		}
	}

	if params.Replace {
		if _, err := tx.Exec(`UPDATE entries SET favorite = 0 WHERE entry_id = ?`, params.OldEntryID); err != nil {
			return fmt.Errorf("failed to unfavorite old entry: %w", err)
		}
	}

	return tx.Commit()
}

func insertChaptersTx(tx *sql.Tx, entryID int64, chapters []models.ChapterRecord) error {
	if len(chapters) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chapters (entry_id, url, name, scanlator, number, read, last_page_read, date_fetched, date_upload, source_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chapter insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chapters {
		_, err := stmt.Exec(entryID, c.URL, c.Name, c.Scanlator, c.Number, c.Read,
			c.LastPageRead, c.DateFetched, nullableTime(c.DateUpload), c.SourceOrder)
		if err != nil {
			return fmt.Errorf("failed to insert chapter %s: %w", c.URL, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.LibraryEntry, error) {
	var (
		entry  models.LibraryEntry
		status int
	)
	err := row.Scan(&entry.EntryID, &entry.SourceID, &entry.Title, &entry.URL,
		&entry.Author, &entry.Description, &entry.ThumbnailURL, &status,
		&entry.Favorite, &entry.AddedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}
	entry.Status = models.PublicationStatus(status)
	return &entry, nil
}

func scanChapter(row scanner) (models.ChapterRecord, error) {
	var (
		c        models.ChapterRecord
		uploaded sql.NullTime
	)
	err := row.Scan(&c.ChapterID, &c.EntryID, &c.URL, &c.Name, &c.Scanlator,
		&c.Number, &c.Read, &c.LastPageRead, &c.DateFetched, &uploaded, &c.SourceOrder)
	if err != nil {
		return c, fmt.Errorf("failed to scan chapter: %w", err)
	}
	if uploaded.Valid {
		c.DateUpload = uploaded.Time
	}
	return c, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
