package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/davidh/jarvis/internal/toolbelt"
)

// Backend is the calendar/mail/tasks surface the executor dispatches to.
// Satisfied by toolbelt.GoogleClient; tests substitute fakes.
type Backend interface {
	ListEvents(ctx context.Context, timeMin, timeMax string) ([]toolbelt.Event, error)
	GetEvent(ctx context.Context, eventID string) (*toolbelt.Event, error)
	CreateEvent(ctx context.Context, event *toolbelt.Event) (*toolbelt.Event, error)
	UpdateEvent(ctx context.Context, eventID string, event *toolbelt.Event) (*toolbelt.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error

	ListMessages(ctx context.Context, query string, maxResults int) ([]toolbelt.MessageRef, error)
	GetMessage(ctx context.Context, messageID string) (*toolbelt.Message, error)
	SendMessage(ctx context.Context, to, subject, body string) (string, error)
	MarkMessageRead(ctx context.Context, messageID string) error

	ListTasks(ctx context.Context, listID string) ([]toolbelt.Task, error)
	AddTask(ctx context.Context, title, listID string) (*toolbelt.Task, error)
	CompleteTask(ctx context.Context, taskID, listID string) (*toolbelt.Task, error)

	SenderName() string
}

type handlerFunc func(ctx context.Context, input map[string]any) Result

// Executor dispatches tool invocations from the model to the backend.
type Executor struct {
	backend  Backend
	set      *Set
	handlers map[string]handlerFunc
}

// NewExecutor builds an executor over the assistant tool catalog. It fails if
// the catalog and the handler table ever drift apart, so a tool can never be
// declared to the model without a matching implementation or vice versa.
func NewExecutor(backend Backend) (*Executor, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	e := &Executor{
		backend: backend,
		set:     AssistantTools(),
	}
	e.handlers = map[string]handlerFunc{
		"list_events":       e.listEvents,
		"create_event":      e.createEvent,
		"update_event":      e.updateEvent,
		"delete_event":      e.deleteEvent,
		"list_emails":       e.listEmails,
		"send_email":        e.sendEmail,
		"mark_email_read":   e.markEmailRead,
		"list_tasks":        e.listTasks,
		"add_task":          e.addTask,
		"complete_task":     e.completeTask,
		"process_new_email": e.processNewEmail,
	}

	for _, name := range e.set.Names() {
		if _, ok := e.handlers[name]; !ok {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
	}
	for name := range e.handlers {
		if !e.set.Has(name) {
			return nil, fmt.Errorf("handler %q has no tool definition", name)
		}
	}

	return e, nil
}

// Tools returns the catalog this executor serves.
func (e *Executor) Tools() *Set {
	return e.set
}

// Execute runs a named tool with the given input. Unknown tools and handler
// failures come back as error Results, never as Go errors, so one bad
// invocation in a batch does not abort the rest.
func (e *Executor) Execute(ctx context.Context, name string, input map[string]any) Result {
	handler, ok := e.handlers[name]
	if !ok {
		return ErrorResult("unknown tool: %s", name)
	}
	if input == nil {
		input = map[string]any{}
	}
	return handler(ctx, input)
}

// --- Input helpers ---

func stringArg(input map[string]any, key string) (string, bool) {
	v, ok := input[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func optionalString(input map[string]any, key string) string {
	s, _ := stringArg(input, key)
	return s
}

func intArg(input map[string]any, key string, def int) int {
	v, ok := input[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

func stringSliceArg(input map[string]any, key string) ([]string, bool) {
	v, ok := input[key]
	if !ok {
		return nil, false
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || s == "" {
			continue
		}
		out = append(out, s)
	}
	return out, true
}

func validateRFC3339(value string) error {
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return fmt.Errorf("invalid RFC3339 timestamp %q", value)
	}
	return nil
}

// --- Calendar handlers ---

type eventView struct {
	ID        string   `json:"id"`
	Summary   string   `json:"summary"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Attendees []string `json:"attendees,omitempty"`
}

func viewOf(ev toolbelt.Event) eventView {
	v := eventView{
		ID:      ev.ID,
		Summary: ev.Summary,
		Start:   ev.Start.Value(),
		End:     ev.End.Value(),
	}
	for _, a := range ev.Attendees {
		v.Attendees = append(v.Attendees, a.Email)
	}
	return v
}

func (e *Executor) listEvents(ctx context.Context, input map[string]any) Result {
	timeMin, ok := stringArg(input, "time_min")
	if !ok {
		return ErrorResult("time_min is required")
	}
	timeMax, ok := stringArg(input, "time_max")
	if !ok {
		return ErrorResult("time_max is required")
	}
	if err := validateRFC3339(timeMin); err != nil {
		return ErrorResult("time_min: %v", err)
	}
	if err := validateRFC3339(timeMax); err != nil {
		return ErrorResult("time_max: %v", err)
	}

	events, err := e.backend.ListEvents(ctx, timeMin, timeMax)
	if err != nil {
		return ErrorResult("failed to list events: %v", err)
	}

	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		views = append(views, viewOf(ev))
	}
	return JSONResult(map[string]any{"events": views})
}

func (e *Executor) createEvent(ctx context.Context, input map[string]any) Result {
	summary, ok := stringArg(input, "summary")
	if !ok {
		return ErrorResult("summary is required")
	}
	start, ok := stringArg(input, "start")
	if !ok {
		return ErrorResult("start is required")
	}
	end, ok := stringArg(input, "end")
	if !ok {
		return ErrorResult("end is required")
	}
	if err := validateRFC3339(start); err != nil {
		return ErrorResult("start: %v", err)
	}
	if err := validateRFC3339(end); err != nil {
		return ErrorResult("end: %v", err)
	}

	event := &toolbelt.Event{
		Summary: summary,
		Start:   toolbelt.EventTime{DateTime: start},
		End:     toolbelt.EventTime{DateTime: end},
	}
	guests, hasGuests := stringSliceArg(input, "guests")
	for _, g := range guests {
		event.Attendees = append(event.Attendees, toolbelt.Attendee{Email: g})
	}

	created, err := e.backend.CreateEvent(ctx, event)
	if err != nil {
		return ErrorResult("failed to create event: %v", err)
	}

	if hasGuests && len(guests) > 0 {
		e.notifyGuests(ctx, "Scheduled", created, guests)
	}
	return JSONResult(map[string]any{"status": "created", "event": viewOf(*created)})
}

func (e *Executor) updateEvent(ctx context.Context, input map[string]any) Result {
	eventID, ok := stringArg(input, "event_id")
	if !ok {
		return ErrorResult("event_id is required")
	}

	existing, err := e.backend.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, toolbelt.ErrEventNotFound) {
			return ErrorResult("event %s not found", eventID)
		}
		return ErrorResult("failed to fetch event: %v", err)
	}

	// Merge: only the fields present in the input change. Attendees in
	// particular survive a time-only update.
	merged := *existing
	if summary, ok := stringArg(input, "summary"); ok {
		merged.Summary = summary
	}
	if start, ok := stringArg(input, "start"); ok {
		if err := validateRFC3339(start); err != nil {
			return ErrorResult("start: %v", err)
		}
		merged.Start = toolbelt.EventTime{DateTime: start}
	}
	if end, ok := stringArg(input, "end"); ok {
		if err := validateRFC3339(end); err != nil {
			return ErrorResult("end: %v", err)
		}
		merged.End = toolbelt.EventTime{DateTime: end}
	}
	guests, hasGuests := stringSliceArg(input, "guests")
	if hasGuests {
		merged.Attendees = nil
		for _, g := range guests {
			merged.Attendees = append(merged.Attendees, toolbelt.Attendee{Email: g})
		}
	}

	updated, err := e.backend.UpdateEvent(ctx, eventID, &merged)
	if err != nil {
		if errors.Is(err, toolbelt.ErrEventNotFound) {
			return ErrorResult("event %s not found", eventID)
		}
		return ErrorResult("failed to update event: %v", err)
	}

	if hasGuests && len(guests) > 0 {
		e.notifyGuests(ctx, "Updated", updated, guests)
	}
	return JSONResult(map[string]any{"status": "updated", "event": viewOf(*updated)})
}

func (e *Executor) deleteEvent(ctx context.Context, input map[string]any) Result {
	eventID, ok := stringArg(input, "event_id")
	if !ok {
		return ErrorResult("event_id is required")
	}

	// Fetch first so guest notifications can carry the event details the
	// backend is about to discard.
	existing, err := e.backend.GetEvent(ctx, eventID)
	if err != nil && !errors.Is(err, toolbelt.ErrEventNotFound) {
		return ErrorResult("failed to fetch event: %v", err)
	}

	if err := e.backend.DeleteEvent(ctx, eventID); err != nil {
		if errors.Is(err, toolbelt.ErrEventNotFound) {
			return ErrorResult("event %s not found", eventID)
		}
		return ErrorResult("failed to delete event: %v", err)
	}

	if existing != nil && len(existing.Attendees) > 0 {
		guests := make([]string, 0, len(existing.Attendees))
		for _, a := range existing.Attendees {
			guests = append(guests, a.Email)
		}
		e.notifyGuests(ctx, "Deleted", existing, guests)
	}
	return JSONResult(map[string]any{"status": "deleted", "event_id": eventID})
}

// notifyGuests emails each guest about a calendar action. Sends are
// independent: one failure is logged and the rest still go out. Notification
// failures never roll back the calendar write they describe.
func (e *Executor) notifyGuests(ctx context.Context, action string, event *toolbelt.Event, guests []string) {
	subject := fmt.Sprintf("Meeting %s: %s", action, event.Summary)
	body := fmt.Sprintf(
		"Hi,\n\nYou have been invited to a meeting.\n\nSummary: %s\nStart: %s\nEnd: %s\n\nBest regards,\n%s",
		event.Summary, event.Start.Value(), event.End.Value(), e.backend.SenderName(),
	)

	for _, guest := range guests {
		if _, err := e.backend.SendMessage(ctx, guest, subject, body); err != nil {
			log.Printf("failed to notify guest %s about event %s: %v", guest, event.ID, err)
		}
	}
}

// --- Mail handlers ---

func (e *Executor) listEmails(ctx context.Context, input map[string]any) Result {
	query := optionalString(input, "query")
	maxResults := intArg(input, "max_results", 10)
	if maxResults > 50 {
		maxResults = 50
	}

	refs, err := e.backend.ListMessages(ctx, query, maxResults)
	if err != nil {
		return ErrorResult("failed to list emails: %v", err)
	}

	messages := make([]toolbelt.Message, 0, len(refs))
	for _, ref := range refs {
		msg, err := e.backend.GetMessage(ctx, ref.ID)
		if err != nil {
			log.Printf("failed to fetch message %s: %v", ref.ID, err)
			continue
		}
		messages = append(messages, *msg)
	}
	return JSONResult(map[string]any{"messages": messages})
}

func (e *Executor) sendEmail(ctx context.Context, input map[string]any) Result {
	to, ok := stringArg(input, "to")
	if !ok {
		return ErrorResult("to is required")
	}
	subject, ok := stringArg(input, "subject")
	if !ok {
		return ErrorResult("subject is required")
	}
	body, ok := stringArg(input, "body")
	if !ok {
		return ErrorResult("body is required")
	}

	id, err := e.backend.SendMessage(ctx, to, subject, body)
	if err != nil {
		return ErrorResult("failed to send email: %v", err)
	}
	return JSONResult(map[string]any{"status": "sent", "message_id": id})
}

func (e *Executor) markEmailRead(ctx context.Context, input map[string]any) Result {
	messageID, ok := stringArg(input, "message_id")
	if !ok {
		return ErrorResult("message_id is required")
	}

	if err := e.backend.MarkMessageRead(ctx, messageID); err != nil {
		return ErrorResult("failed to mark email read: %v", err)
	}
	return JSONResult(map[string]any{"status": "marked_read", "message_id": messageID})
}

// --- Tasks handlers ---

func (e *Executor) listTasks(ctx context.Context, input map[string]any) Result {
	listID := optionalString(input, "tasklist_id")

	items, err := e.backend.ListTasks(ctx, listID)
	if err != nil {
		return ErrorResult("failed to list tasks: %v", err)
	}
	return JSONResult(map[string]any{"tasks": items})
}

func (e *Executor) addTask(ctx context.Context, input map[string]any) Result {
	title, ok := stringArg(input, "title")
	if !ok {
		return ErrorResult("title is required")
	}
	listID := optionalString(input, "tasklist_id")

	created, err := e.backend.AddTask(ctx, title, listID)
	if err != nil {
		return ErrorResult("failed to add task: %v", err)
	}
	return JSONResult(map[string]any{"status": "created", "task": created})
}

func (e *Executor) completeTask(ctx context.Context, input map[string]any) Result {
	taskID, ok := stringArg(input, "task_id")
	if !ok {
		return ErrorResult("task_id is required")
	}
	listID := optionalString(input, "tasklist_id")

	updated, err := e.backend.CompleteTask(ctx, taskID, listID)
	if err != nil {
		return ErrorResult("failed to complete task: %v", err)
	}
	return JSONResult(map[string]any{"status": "completed", "task": updated})
}

// --- Email analysis handler ---

// processNewEmail does not touch the backend. It echoes the structured email
// back so the model grounds its follow-up tool calls on exactly the content
// the reactor observed, not on a paraphrase.
func (e *Executor) processNewEmail(_ context.Context, input map[string]any) Result {
	from, ok := stringArg(input, "from")
	if !ok {
		return ErrorResult("from is required")
	}
	subject, ok := stringArg(input, "subject")
	if !ok {
		return ErrorResult("subject is required")
	}
	body, ok := stringArg(input, "body")
	if !ok {
		return ErrorResult("body is required")
	}

	return JSONResult(map[string]any{
		"status":  "analyzed",
		"from":    from,
		"subject": subject,
		"body":    body,
	})
}
