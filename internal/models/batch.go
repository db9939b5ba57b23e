package models

import (
	"fmt"
	"time"
)

// Batch status values persisted with each migration run.
const (
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusCancelled = "cancelled"
)

// MigrationBatch records one migration run for history reporting: how many
// units it held and how they resolved. Implements [Model].
type MigrationBatch struct {
	id                 string
	sequence           int
	status             string
	unitsTotal         int
	applied            int
	skipped            int
	failed             int
	preferMostChapters bool
	startedAt          *time.Time
	completedAt        *time.Time
	createdAt          time.Time
	updatedAt          time.Time
	deletedAt          *time.Time
}

// NewMigrationBatch creates a running batch record with the given sequence and size.
func NewMigrationBatch(sequence, unitsTotal int, preferMostChapters bool) *MigrationBatch {
	now := time.Now()
	return &MigrationBatch{
		sequence:           sequence,
		status:             BatchStatusRunning,
		unitsTotal:         unitsTotal,
		preferMostChapters: preferMostChapters,
		createdAt:          now,
		updatedAt:          now,
	}
}

func (b *MigrationBatch) ID() string           { return b.id }
func (b *MigrationBatch) CreatedAt() time.Time { return b.createdAt }
func (b *MigrationBatch) UpdatedAt() time.Time { return b.updatedAt }

// Validate checks if the batch's data is valid.
func (b *MigrationBatch) Validate() error {
	if b.unitsTotal < 0 {
		return fmt.Errorf("units total must not be negative")
	}
	switch b.status {
	case BatchStatusRunning, BatchStatusCompleted, BatchStatusCancelled:
	default:
		return fmt.Errorf("invalid batch status: %q", b.status)
	}
	if b.applied+b.skipped+b.failed > b.unitsTotal {
		return fmt.Errorf("resolved unit counts exceed batch size")
	}
	return nil
}

func (b *MigrationBatch) Sequence() int            { return b.sequence }
func (b *MigrationBatch) Status() string           { return b.status }
func (b *MigrationBatch) UnitsTotal() int          { return b.unitsTotal }
func (b *MigrationBatch) Applied() int             { return b.applied }
func (b *MigrationBatch) Skipped() int             { return b.skipped }
func (b *MigrationBatch) Failed() int              { return b.failed }
func (b *MigrationBatch) PreferMostChapters() bool { return b.preferMostChapters }
func (b *MigrationBatch) StartedAt() *time.Time    { return b.startedAt }
func (b *MigrationBatch) CompletedAt() *time.Time  { return b.completedAt }
func (b *MigrationBatch) DeletedAt() *time.Time    { return b.deletedAt }

func (b *MigrationBatch) SetID(id string)    { b.id = id }
func (b *MigrationBatch) SetSequence(n int)  { b.sequence = n }
func (b *MigrationBatch) SetStatus(s string) { b.status = s }
func (b *MigrationBatch) SetCounts(applied, skipped, failed int) {
	b.applied = applied
	b.skipped = skipped
	b.failed = failed
}
func (b *MigrationBatch) SetStartedAt(t *time.Time)   { b.startedAt = t }
func (b *MigrationBatch) SetCreatedAt(t time.Time)    { b.createdAt = t }
func (b *MigrationBatch) SetCompletedAt(t *time.Time) { b.completedAt = t }
func (b *MigrationBatch) SetDeletedAt(t *time.Time)   { b.deletedAt = t }
func (b *MigrationBatch) SetUpdatedAt(t time.Time)    { b.updatedAt = t }
