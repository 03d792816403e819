package db

import (
	"fmt"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestPendingEmailQueue(t *testing.T) {
	t.Run("drain returns emails in arrival order", func(t *testing.T) {
		database := openTestDB(t)

		// All inserts land within the same second, so arrival order must
		// come from the insertion sequence, not the timestamp.
		const n = 30
		for i := 0; i < n; i++ {
			subject := fmt.Sprintf("email %02d", i)
			if _, err := database.EnqueueEmail(fmt.Sprintf("m%02d", i), "a@example.com", subject, fmt.Sprintf("body %02d", i)); err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
		}

		emails, err := database.DrainEmails()
		if err != nil {
			t.Fatalf("drain failed: %v", err)
		}
		if len(emails) != n {
			t.Fatalf("expected %d emails, got %d", n, len(emails))
		}
		for i, e := range emails {
			if want := fmt.Sprintf("email %02d", i); e.Subject != want {
				t.Errorf("position %d: got %q, want %q", i, e.Subject, want)
			}
		}
		if emails[0].Sender != "a@example.com" || emails[0].Body != "body 00" {
			t.Errorf("email content mangled: %+v", emails[0])
		}
	})

	t.Run("drain empties the queue", func(t *testing.T) {
		database := openTestDB(t)
		if _, err := database.EnqueueEmail("m1", "a@example.com", "s", "b"); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}

		if _, err := database.DrainEmails(); err != nil {
			t.Fatalf("drain failed: %v", err)
		}

		count, err := database.PendingEmailCount()
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected empty queue, got %d", count)
		}

		again, err := database.DrainEmails()
		if err != nil {
			t.Fatalf("second drain failed: %v", err)
		}
		if len(again) != 0 {
			t.Errorf("second drain returned %d emails", len(again))
		}
	})
}

func TestMailCursor(t *testing.T) {
	database := openTestDB(t)

	t.Run("empty cursor reads as blank", func(t *testing.T) {
		cursor, err := database.MailCursor()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cursor != "" {
			t.Errorf("expected empty cursor, got %q", cursor)
		}
	})

	t.Run("set and read back", func(t *testing.T) {
		if err := database.SetMailCursor("12345"); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		cursor, err := database.MailCursor()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if cursor != "12345" {
			t.Errorf("expected 12345, got %q", cursor)
		}
	})

	t.Run("set replaces prior value", func(t *testing.T) {
		if err := database.SetMailCursor("67890"); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		cursor, _ := database.MailCursor()
		if cursor != "67890" {
			t.Errorf("expected 67890, got %q", cursor)
		}
	})
}

func TestTranscripts(t *testing.T) {
	database := openTestDB(t)

	if err := database.RecordMessage("sess-1", "repl", "user", "hello"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := database.RecordMessage("sess-1", "repl", "assistant", "hi there"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := database.RecordMessage("sess-2", "reactor", "user", "other session"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	messages, err := database.SessionMessages("sess-1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", messages[0])
	}
	if messages[1].Role != "assistant" {
		t.Errorf("unexpected second message: %+v", messages[1])
	}

	var source string
	if err := database.QueryRow(`SELECT source FROM sessions WHERE id = ?`, "sess-2").Scan(&source); err != nil {
		t.Fatalf("read session failed: %v", err)
	}
	if source != "reactor" {
		t.Errorf("expected reactor session, got %q", source)
	}
}

func TestTranscriptOrderWithinOneSecond(t *testing.T) {
	database := openTestDB(t)

	const n = 20
	for i := 0; i < n; i++ {
		if err := database.RecordMessage("sess-1", "repl", "user", fmt.Sprintf("message %02d", i)); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	messages, err := database.SessionMessages("sess-1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(messages) != n {
		t.Fatalf("expected %d messages, got %d", n, len(messages))
	}
	for i, m := range messages {
		if want := fmt.Sprintf("message %02d", i); m.Content != want {
			t.Errorf("position %d: got %q, want %q", i, m.Content, want)
		}
	}
}
