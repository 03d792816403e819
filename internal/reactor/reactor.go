// Package reactor bridges incoming email into the conversation loop. It
// watches the mailbox (by polling or via the webhook queue), turns each new
// email into a synthetic user turn and runs it through the orchestrator with
// a silent confirmation gate.
package reactor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/davidh/jarvis/internal/db"
	"github.com/davidh/jarvis/internal/orchestrator"
	"github.com/davidh/jarvis/internal/toolbelt"
)

// Mailbox is the mail surface the reactor reads from.
type Mailbox interface {
	ListMessages(ctx context.Context, query string, maxResults int) ([]toolbelt.MessageRef, error)
	GetMessage(ctx context.Context, messageID string) (*toolbelt.Message, error)
	MarkMessageRead(ctx context.Context, messageID string) error
	GetProfile(ctx context.Context) (*toolbelt.Profile, error)
}

// Reactor polls for unread email and feeds it through the conversation loop.
type Reactor struct {
	mailbox      Mailbox
	orch         *orchestrator.Orchestrator
	store        *db.DB
	location     *time.Location
	interval     time.Duration
	now          func() time.Time
}

// New creates a Reactor. The store may be nil when webhook mode is disabled;
// the poller works without it.
func New(mailbox Mailbox, orch *orchestrator.Orchestrator, store *db.DB, location *time.Location, interval time.Duration) *Reactor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reactor{
		mailbox:      mailbox,
		orch:         orch,
		store:        store,
		location:     location,
		interval:     interval,
		now:          time.Now,
	}
}

// Run polls until the context is cancelled. Cycle errors are logged and the
// ticker keeps going; polling never terminates the process.
func (r *Reactor) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("email reactor started (interval %s)", r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("email reactor stopped")
			return
		case <-ticker.C:
			if err := r.pollOnce(ctx); err != nil {
				log.Printf("poll cycle failed: %v", err)
			}
			if r.store != nil {
				if err := r.drainQueue(ctx); err != nil {
					log.Printf("queue drain failed: %v", err)
				}
			}
		}
	}
}

// pollOnce fetches today's unread mail and processes each message. One
// email's failure does not block the rest of the batch.
func (r *Reactor) pollOnce(ctx context.Context) error {
	query := fmt.Sprintf("is:unread after:%s", r.now().In(r.location).Format("2006/01/02"))
	refs, err := r.mailbox.ListMessages(ctx, query, 25)
	if err != nil {
		return fmt.Errorf("failed to list unread mail: %w", err)
	}

	for _, ref := range refs {
		if err := r.processMessage(ctx, ref.ID); err != nil {
			log.Printf("failed to process message %s: %v", ref.ID, err)
		}
	}

	if r.store != nil {
		r.advanceCursor(ctx)
	}
	return nil
}

// processMessage resolves one message, marks it read so the next poll skips
// it, and runs the synthesized prompt through the loop.
func (r *Reactor) processMessage(ctx context.Context, messageID string) error {
	msg, err := r.mailbox.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to fetch message: %w", err)
	}

	if err := r.mailbox.MarkMessageRead(ctx, messageID); err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}

	return r.react(ctx, msg.From, msg.Subject, msg.Body)
}

// react runs one email through the conversation loop with a silent gate.
func (r *Reactor) react(ctx context.Context, from, subject, body string) error {
	prompt := SynthesizePrompt(from, subject, body)
	conv := orchestrator.NewConversation(orchestrator.SourceReactor)

	reply, err := r.orch.ProcessTurn(ctx, conv, prompt, orchestrator.SilentGate{})
	if err != nil {
		return fmt.Errorf("conversation turn failed: %w", err)
	}
	log.Printf("reacted to email from %s (%q): %s", from, subject, reply)
	return nil
}

// drainQueue processes every email the webhook receiver queued since the
// last cycle. The drain is atomic, so emails enqueued mid-drain wait for the
// next cycle instead of being lost.
func (r *Reactor) drainQueue(ctx context.Context) error {
	pending, err := r.store.DrainEmails()
	if err != nil {
		return fmt.Errorf("failed to drain pending emails: %w", err)
	}

	for _, email := range pending {
		if err := r.react(ctx, email.Sender, email.Subject, email.Body); err != nil {
			log.Printf("failed to process queued email %s: %v", email.ID, err)
		}
	}
	return nil
}

// advanceCursor persists the mailbox's current history ID so a restart knows
// where the last cycle left off. Best-effort.
func (r *Reactor) advanceCursor(ctx context.Context) {
	profile, err := r.mailbox.GetProfile(ctx)
	if err != nil {
		log.Printf("failed to read mailbox profile: %v", err)
		return
	}
	if err := r.store.SetMailCursor(profile.HistoryID); err != nil {
		log.Printf("failed to persist mail cursor: %v", err)
	}
}

// SynthesizePrompt renders an incoming email as a user turn. It names the
// intent categories the model must distinguish and pins the two standing
// rules: look up existing events before mutating, and never create a
// duplicate when a reschedule was intended.
func SynthesizePrompt(from, subject, body string) string {
	var sb strings.Builder
	sb.WriteString("A new email has arrived. Process it with the process_new_email tool and take any required actions.\n\n")
	fmt.Fprintf(&sb, "From: %s\nSubject: %s\nBody:\n%s\n\n", from, subject, body)
	sb.WriteString("Classify the email's intent as one of: reschedule request, new meeting request, cancellation, confirmation, or general inquiry.\n")
	sb.WriteString("Before changing anything, look up the matching calendar event with list_events.\n")
	sb.WriteString("If this is a reschedule, update the existing event with update_event. Never create a new event for a reschedule.\n")
	sb.WriteString("If no action is needed, say so.")
	return sb.String()
}
