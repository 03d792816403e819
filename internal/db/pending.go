package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PendingEmail is an incoming email queued by the webhook receiver and
// awaiting processing by the reactor.
type PendingEmail struct {
	ID         string
	MessageID  string
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// EnqueueEmail appends an email to the pending queue.
func (db *DB) EnqueueEmail(messageID, sender, subject, body string) (*PendingEmail, error) {
	email := &PendingEmail{
		ID:        uuid.New().String(),
		MessageID: messageID,
		Sender:    sender,
		Subject:   subject,
		Body:      body,
	}

	_, err := db.Exec(
		`INSERT INTO pending_emails (id, message_id, sender, subject, body) VALUES (?, ?, ?, ?, ?)`,
		email.ID, email.MessageID, email.Sender, email.Subject, email.Body,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue email: %w", err)
	}
	return email, nil
}

// DrainEmails removes and returns all pending emails in arrival order, pinned
// by the insertion sequence rather than the second-granularity received_at.
// The read and the delete happen in one transaction so an email is either in
// the queue or in the returned batch, never both and never neither.
func (db *DB) DrainEmails() ([]PendingEmail, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, message_id, sender, subject, body, received_at FROM pending_emails ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending emails: %w", err)
	}

	var emails []PendingEmail
	for rows.Next() {
		var e PendingEmail
		if err := rows.Scan(&e.ID, &e.MessageID, &e.Sender, &e.Subject, &e.Body, &e.ReceivedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan pending email: %w", err)
		}
		emails = append(emails, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending emails: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM pending_emails`); err != nil {
		return nil, fmt.Errorf("failed to clear pending emails: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit drain: %w", err)
	}
	return emails, nil
}

// PendingEmailCount returns the number of queued emails.
func (db *DB) PendingEmailCount() (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pending_emails`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending emails: %w", err)
	}
	return count, nil
}
