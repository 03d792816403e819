package reactor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/davidh/jarvis/internal/orchestrator"
	"github.com/davidh/jarvis/internal/toolbelt"
	"github.com/davidh/jarvis/internal/tools"
)

var testLocation = time.FixedZone("UTC+03:00", 3*3600)

// fakeWorld is both the reactor's mailbox and the tool executor's backend, so
// a test can watch an email trigger calendar mutations end to end.
type fakeWorld struct {
	unread   []toolbelt.Message
	events   map[string]*toolbelt.Event
	calls    []string
	updated  map[string]toolbelt.Event
	created  []toolbelt.Event
	listErr  error
	profile  toolbelt.Profile
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		events:  map[string]*toolbelt.Event{},
		updated: map[string]toolbelt.Event{},
		profile: toolbelt.Profile{EmailAddress: "jarvis@example.com", HistoryID: "42"},
	}
}

// --- Mailbox ---

func (f *fakeWorld) ListMessages(_ context.Context, query string, _ int) ([]toolbelt.MessageRef, error) {
	f.calls = append(f.calls, "list:"+query)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var refs []toolbelt.MessageRef
	for _, m := range f.unread {
		refs = append(refs, toolbelt.MessageRef{ID: m.ID})
	}
	return refs, nil
}

func (f *fakeWorld) GetMessage(_ context.Context, messageID string) (*toolbelt.Message, error) {
	f.calls = append(f.calls, "get:"+messageID)
	for _, m := range f.unread {
		if m.ID == messageID {
			copied := m
			return &copied, nil
		}
	}
	return nil, errors.New("no such message")
}

func (f *fakeWorld) MarkMessageRead(_ context.Context, messageID string) error {
	f.calls = append(f.calls, "markread:"+messageID)
	return nil
}

func (f *fakeWorld) GetProfile(_ context.Context) (*toolbelt.Profile, error) {
	copied := f.profile
	return &copied, nil
}

// --- tools.Backend ---

func (f *fakeWorld) ListEvents(_ context.Context, _, _ string) ([]toolbelt.Event, error) {
	f.calls = append(f.calls, "list_events")
	var out []toolbelt.Event
	for _, ev := range f.events {
		out = append(out, *ev)
	}
	return out, nil
}

func (f *fakeWorld) GetEvent(_ context.Context, eventID string) (*toolbelt.Event, error) {
	ev, ok := f.events[eventID]
	if !ok {
		return nil, toolbelt.ErrEventNotFound
	}
	copied := *ev
	return &copied, nil
}

func (f *fakeWorld) CreateEvent(_ context.Context, event *toolbelt.Event) (*toolbelt.Event, error) {
	f.calls = append(f.calls, "create_event")
	created := *event
	created.ID = "created-1"
	f.created = append(f.created, created)
	return &created, nil
}

func (f *fakeWorld) UpdateEvent(_ context.Context, eventID string, event *toolbelt.Event) (*toolbelt.Event, error) {
	f.calls = append(f.calls, "update_event:"+eventID)
	updated := *event
	updated.ID = eventID
	f.updated[eventID] = updated
	f.events[eventID] = &updated
	return &updated, nil
}

func (f *fakeWorld) DeleteEvent(context.Context, string) error { return nil }

func (f *fakeWorld) SendMessage(context.Context, string, string, string) (string, error) {
	return "m-1", nil
}

func (f *fakeWorld) ListTasks(context.Context, string) ([]toolbelt.Task, error) { return nil, nil }
func (f *fakeWorld) AddTask(_ context.Context, title, _ string) (*toolbelt.Task, error) {
	return &toolbelt.Task{Title: title}, nil
}
func (f *fakeWorld) CompleteTask(context.Context, string, string) (*toolbelt.Task, error) {
	return &toolbelt.Task{}, nil
}
func (f *fakeWorld) SenderName() string { return "Jarvis" }

// scriptedModel returns canned responses in order.
type scriptedModel struct {
	responses []*toolbelt.AnthropicChatResponse
	calls     int
}

func (m *scriptedModel) Chat(_ context.Context, _ *toolbelt.AnthropicChatRequest) (*toolbelt.AnthropicChatResponse, error) {
	if m.calls >= len(m.responses) {
		return nil, errors.New("script exhausted")
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func textResponse(text string) *toolbelt.AnthropicChatResponse {
	return &toolbelt.AnthropicChatResponse{
		StopReason: "end_turn",
		Content:    []toolbelt.AnthropicContentBlock{{Type: "text", Text: text}},
	}
}

func toolUseResponse(id, name string, input map[string]any) *toolbelt.AnthropicChatResponse {
	return &toolbelt.AnthropicChatResponse{
		StopReason: "tool_use",
		Content: []toolbelt.AnthropicContentBlock{
			{Type: "tool_use", ID: id, Name: name, Input: input},
		},
	}
}

func newTestReactor(t *testing.T, world *fakeWorld, model orchestrator.Model) *Reactor {
	t.Helper()
	executor, err := tools.NewExecutor(world)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	orch, err := orchestrator.New(model, executor, orchestrator.PromptConfig{
		AssistantName:   "Jarvis",
		UserName:        "David",
		Location:        testLocation,
		DefaultDuration: time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return New(world, orch, nil, testLocation, time.Minute)
}

func TestSynthesizePrompt(t *testing.T) {
	prompt := SynthesizePrompt("mahmoud@example.com", "Reschedule", "Can we move to 3pm?")

	for _, want := range []string{
		"mahmoud@example.com",
		"Reschedule",
		"Can we move to 3pm?",
		"reschedule request",
		"new meeting request",
		"cancellation",
		"confirmation",
		"general inquiry",
		"look up the matching calendar event",
		"Never create a new event for a reschedule",
		"process_new_email",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestPollMarksReadBeforeProcessing(t *testing.T) {
	world := newFakeWorld()
	world.unread = []toolbelt.Message{
		{ID: "m1", From: "mahmoud@example.com", Subject: "hello", Body: "hi"},
	}
	model := &scriptedModel{responses: []*toolbelt.AnthropicChatResponse{
		toolUseResponse("tu-1", "list_events", map[string]any{
			"time_min": "2025-09-02T00:00:00+03:00",
			"time_max": "2025-09-03T00:00:00+03:00",
		}),
		textResponse("Nothing to do."),
	}}
	r := newTestReactor(t, world, model)

	if err := r.pollOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The message must be marked read before any model-driven tool runs, so
	// a crash mid-processing cannot loop on the same email.
	markIdx, toolIdx := -1, -1
	for i, call := range world.calls {
		if call == "markread:m1" && markIdx == -1 {
			markIdx = i
		}
		if call == "list_events" && toolIdx == -1 {
			toolIdx = i
		}
	}
	if markIdx == -1 {
		t.Fatal("message was never marked read")
	}
	if toolIdx != -1 && markIdx > toolIdx {
		t.Errorf("mark-read (%d) must precede tool execution (%d)", markIdx, toolIdx)
	}
}

func TestPollQueryUsesConfiguredOffset(t *testing.T) {
	world := newFakeWorld()
	model := &scriptedModel{}
	r := newTestReactor(t, world, model)
	// 2025-09-01 22:30 UTC is already 2025-09-02 in UTC+3.
	r.now = func() time.Time { return time.Date(2025, 9, 1, 22, 30, 0, 0, time.UTC) }

	if err := r.pollOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(world.calls) != 1 || world.calls[0] != "list:is:unread after:2025/09/02" {
		t.Errorf("unexpected query: %v", world.calls)
	}
}

func TestRescheduleUpdatesExistingEvent(t *testing.T) {
	world := newFakeWorld()
	world.events["ev-1"] = &toolbelt.Event{
		ID:        "ev-1",
		Summary:   "Sync with Mahmoud",
		Start:     toolbelt.EventTime{DateTime: "2025-09-02T14:00:00+03:00"},
		End:       toolbelt.EventTime{DateTime: "2025-09-02T15:00:00+03:00"},
		Attendees: []toolbelt.Attendee{{Email: "mahmoud@example.com"}},
	}
	world.unread = []toolbelt.Message{{
		ID:      "m1",
		From:    "mahmoud@example.com",
		Subject: "Reschedule our sync",
		Body:    "Something came up, can we do 16:00 instead?",
	}}

	// The model looks up the event, then moves it. No create_event anywhere.
	model := &scriptedModel{responses: []*toolbelt.AnthropicChatResponse{
		toolUseResponse("tu-1", "list_events", map[string]any{
			"time_min": "2025-09-02T00:00:00+03:00",
			"time_max": "2025-09-03T00:00:00+03:00",
		}),
		toolUseResponse("tu-2", "update_event", map[string]any{
			"event_id": "ev-1",
			"start":    "2025-09-02T16:00:00+03:00",
			"end":      "2025-09-02T17:00:00+03:00",
		}),
		textResponse("Moved the sync to 16:00."),
	}}
	r := newTestReactor(t, world, model)

	if err := r.pollOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(world.created) != 0 {
		t.Error("a reschedule must never create a new event")
	}
	updated, ok := world.updated["ev-1"]
	if !ok {
		t.Fatal("existing event was not updated")
	}
	if updated.Start.Value() != "2025-09-02T16:00:00+03:00" {
		t.Errorf("start not moved: %s", updated.Start.Value())
	}
	if len(updated.Attendees) != 1 || updated.Attendees[0].Email != "mahmoud@example.com" {
		t.Errorf("attendees lost in reschedule: %+v", updated.Attendees)
	}
}

func TestPollFailureIsolation(t *testing.T) {
	world := newFakeWorld()
	world.unread = []toolbelt.Message{
		{ID: "bad", From: "x@example.com", Subject: "s", Body: "b"},
		{ID: "good", From: "y@example.com", Subject: "s", Body: "b"},
	}
	// The script covers one turn. The first email consumes it; the second
	// turn fails at the model, and the batch must keep going regardless.
	model := &scriptedModel{responses: []*toolbelt.AnthropicChatResponse{
		textResponse("ok"),
	}}
	r := newTestReactor(t, world, model)

	if err := r.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll itself must not fail: %v", err)
	}

	var marked []string
	for _, call := range world.calls {
		if strings.HasPrefix(call, "markread:") {
			marked = append(marked, call)
		}
	}
	if len(marked) != 2 {
		t.Errorf("expected both messages marked read, got %v", marked)
	}
}
