package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TranscriptMessage is one recorded message of a session transcript.
type TranscriptMessage struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// CreateSession records a new conversation session.
func (db *DB) CreateSession(sessionID, source string) error {
	_, err := db.Exec(
		`INSERT OR IGNORE INTO sessions (id, source) VALUES (?, ?)`,
		sessionID, source,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// RecordMessage appends a message to a session transcript. The session row is
// created on first write so callers never have to order the two; source says
// what drove the session ("repl" or "reactor").
func (db *DB) RecordMessage(sessionID, source, role, content string) error {
	if err := db.CreateSession(sessionID, source); err != nil {
		return err
	}
	_, err := db.Exec(
		`INSERT INTO messages (id, session_id, role, content) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), sessionID, role, content,
	)
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// SessionMessages returns a session's transcript in insertion order.
func (db *DB) SessionMessages(sessionID string) ([]TranscriptMessage, error) {
	rows, err := db.Query(
		`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []TranscriptMessage
	for rows.Next() {
		var m TranscriptMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}
