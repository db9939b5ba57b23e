// Package repositories implements SQLite persistence for the migration engine.
//
// [Library] is the primary store: entries, chapters, category memberships and
// tracking bindings, with the two transactional operations the engine depends
// on: the atomic chapter sync and the per-unit apply transaction. Entries
// are independent rows, so concurrent apply transactions for different units
// never contend on a global lock.
//
// [BatchRepository] persists migration run history with soft deletes and
// atomic sequence generation for human-readable ordering. Sequence numbers
// (batch #42) are generated by [NextSequence] against a dedicated sequence
// table.
package repositories

import (
	"database/sql"
	"fmt"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers provide human-readable ordering for entities. They are NOT
// exposed in CLI output but used internally for sorting and debugging.
func NextSequence(db *sql.DB, table string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	_, err = tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
