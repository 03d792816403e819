package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// MailCursor returns the stored Gmail history watermark, or "" when none has
// been recorded yet.
func (db *DB) MailCursor() (string, error) {
	var historyID string
	err := db.QueryRow(`SELECT history_id FROM mail_cursor WHERE id = 1`).Scan(&historyID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read mail cursor: %w", err)
	}
	return historyID, nil
}

// SetMailCursor stores the Gmail history watermark, replacing any prior value.
func (db *DB) SetMailCursor(historyID string) error {
	_, err := db.Exec(
		`INSERT INTO mail_cursor (id, history_id, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET history_id = excluded.history_id, updated_at = CURRENT_TIMESTAMP`,
		historyID,
	)
	if err != nil {
		return fmt.Errorf("failed to set mail cursor: %w", err)
	}
	return nil
}
