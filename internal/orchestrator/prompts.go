package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/davidh/jarvis/internal/contacts"
)

// PromptConfig carries the static facts rendered into the system prompt.
type PromptConfig struct {
	AssistantName   string
	UserName        string
	Location        *time.Location
	DefaultDuration time.Duration
	Contacts        *contacts.Book
}

// SystemPrompt renders the assistant's standing instructions for a turn
// starting at now. The current date is restated on every turn so long-lived
// sessions never drift a day behind.
func SystemPrompt(cfg PromptConfig, now time.Time) string {
	local := now.In(cfg.Location)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a personal assistant for %s. ", cfg.AssistantName, cfg.UserName)
	sb.WriteString("You manage the calendar, email and task list on their behalf.\n\n")

	fmt.Fprintf(&sb, "Today's date is %s (%s).\n", local.Format("Monday, January 2, 2006"), local.Format(time.RFC3339))
	fmt.Fprintf(&sb, "All times use the %s UTC offset. ", local.Format("-07:00"))
	fmt.Fprintf(&sb, "Always pass timestamps in RFC3339 format with the explicit offset, e.g. '%s'.\n\n", local.Format("2006-01-02T15:04:05-07:00"))

	sb.WriteString("Scheduling rules:\n")
	sb.WriteString("- Always check availability with list_events before creating any event. Never create an event without checking first.\n")
	fmt.Fprintf(&sb, "- The default meeting duration is %d minutes when none is given.\n", int(cfg.DefaultDuration.Minutes()))
	sb.WriteString("- When the requested time is taken, find the next free slot and propose it instead of double-booking.\n")
	sb.WriteString("- When rescheduling an existing meeting, update the existing event with update_event. Never create a duplicate event for a reschedule.\n")
	sb.WriteString("- Look up the current calendar state before modifying it; never act on remembered event details.\n\n")

	if cfg.Contacts != nil && len(cfg.Contacts.All()) > 0 {
		sb.WriteString("Known contacts:\n")
		sb.WriteString(cfg.Contacts.PromptList())
		sb.WriteString("Resolve names to these addresses when adding guests or sending email. If a name is not listed, ask for the address instead of guessing.\n\n")
	}

	sb.WriteString("When given a new incoming email to handle, first call process_new_email with its sender, subject and body, then act on the outcome.\n")
	sb.WriteString("Keep replies brief and factual. Report what was done, including event times and who was notified.")

	return sb.String()
}
