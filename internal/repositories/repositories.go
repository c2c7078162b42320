package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// NextSequence increments and returns the next sequence number for table.
//
// Sequence numbers give rows a stable insertion order (node #4, snapshot #12) independent of their IDs.
// The counter lives in a one-row "<table>_sequence" table and is bumped with a single
// UPDATE ... RETURNING statement, so no transaction has to be held open.
func NextSequence(db *sql.DB, table string) (int, error) {
	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("sequence for %s is not initialized", table)
		}
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
