package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/shared"
)

// BatchRepository implements models.Repository[*models.MigrationBatch] for run history.
//
// Handles batch CRUD operations with soft delete support and status-based queries.
type BatchRepository struct {
	db *sql.DB
}

// NewBatchRepository creates a new BatchRepository with the given database connection
func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a new batch record into the database with generated ID and sequence
func (r *BatchRepository) Create(batch *models.MigrationBatch) error {
	sequence, err := NextSequence(r.db, "batches")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	batch.SetID(id)
	batch.SetSequence(sequence)

	if err := batch.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO batches (
			id, sequence, status, units_total, applied, skipped, failed,
			prefer_most_chapters, started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		batch.Status(),
		batch.UnitsTotal(),
		batch.Applied(),
		batch.Skipped(),
		batch.Failed(),
		batch.PreferMostChapters(),
		batch.StartedAt(),
		batch.CompletedAt(),
		batch.CreatedAt(),
		batch.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	return nil
}

// Get retrieves a batch by ID, excluding soft-deleted batches
func (r *BatchRepository) Get(id string) (*models.MigrationBatch, error) {
	query := `
		SELECT
			id, sequence, status, units_total, applied, skipped, failed,
			prefer_most_chapters, started_at, completed_at, created_at,
			updated_at, deleted_at
		FROM batches
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// Update modifies an existing batch record in the database
func (r *BatchRepository) Update(batch *models.MigrationBatch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	batch.SetUpdatedAt(now)

	query := `
		UPDATE batches
		SET status = ?, units_total = ?, applied = ?, skipped = ?, failed = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		batch.Status(),
		batch.UnitsTotal(),
		batch.Applied(),
		batch.Skipped(),
		batch.Failed(),
		batch.StartedAt(),
		batch.CompletedAt(),
		now,
		batch.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("batch not found or already deleted: %s", batch.ID())
	}

	return nil
}

// Delete soft-deletes a batch by ID
func (r *BatchRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE batches
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("batch not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all batches matching the given criteria, excluding soft-deleted batches
func (r *BatchRepository) List(criteria map[string]any) ([]*models.MigrationBatch, error) {
	query := `
		SELECT
			id, sequence, status, units_total, applied, skipped, failed,
			prefer_most_chapters, started_at, completed_at, created_at,
			updated_at, deleted_at
		FROM batches
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.MigrationBatch
	for rows.Next() {
		batch, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return batches, nil
}

// scanOne scans a single [sql.Row] into a [models.MigrationBatch]
func (r *BatchRepository) scanOne(row *sql.Row) (*models.MigrationBatch, error) {
	batch, err := scanBatch(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch not found")
	}
	return batch, err
}

// scanRow scans a [sql.Rows] row into a [models.MigrationBatch]
func (r *BatchRepository) scanRow(rows *sql.Rows) (*models.MigrationBatch, error) {
	return scanBatch(rows.Scan)
}

func scanBatch(scan func(dest ...any) error) (*models.MigrationBatch, error) {
	var (
		id                 string
		sequence           int
		status             string
		unitsTotal         int
		applied            int
		skipped            int
		failed             int
		preferMostChapters bool
		startedAt          sql.NullTime
		completedAt        sql.NullTime
		createdAt          time.Time
		updatedAt          time.Time
		deletedAt          sql.NullTime
	)

	err := scan(
		&id, &sequence, &status, &unitsTotal, &applied, &skipped, &failed,
		&preferMostChapters, &startedAt, &completedAt, &createdAt, &updatedAt,
		&deletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}

	batch := models.NewMigrationBatch(sequence, unitsTotal, preferMostChapters)
	batch.SetID(id)
	batch.SetStatus(status)
	batch.SetCounts(applied, skipped, failed)
	if startedAt.Valid {
		t := startedAt.Time
		batch.SetStartedAt(&t)
	}
	if completedAt.Valid {
		t := completedAt.Time
		batch.SetCompletedAt(&t)
	}
	batch.SetCreatedAt(createdAt)
	batch.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		t := deletedAt.Time
		batch.SetDeletedAt(&t)
	}

	return batch, nil
}
