// Package scheduler resolves calendar availability: computing meeting
// windows, checking them against the backend, and walking forward to the next
// free slot when the requested one is taken.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/davidh/jarvis/internal/toolbelt"
)

// ErrNoSlot is returned when no free window exists inside the search horizon.
// Distinct from a backend failure: the calendar is simply full.
var ErrNoSlot = errors.New("no free slot within horizon")

// EventLister is the single backend read the resolver needs.
type EventLister interface {
	ListEvents(ctx context.Context, timeMin, timeMax string) ([]toolbelt.Event, error)
}

// Notifier sends the confirmation and proposal mails ScheduleOrPropose
// produces.
type Notifier interface {
	SendMessage(ctx context.Context, to, subject, body string) (string, error)
}

// EventCreator inserts the event when the requested window is free.
type EventCreator interface {
	CreateEvent(ctx context.Context, event *toolbelt.Event) (*toolbelt.Event, error)
}

// Window is a half-open meeting window [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// ComputeEndTime adds a duration to an RFC3339 start time, preserving the
// start's UTC offset in the result.
func ComputeEndTime(start string, duration time.Duration) (string, error) {
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return "", fmt.Errorf("invalid start time %q: %w", start, err)
	}
	return t.Add(duration).Format(time.RFC3339), nil
}

// IsFree reports whether the backend has zero events overlapping the window.
func IsFree(ctx context.Context, lister EventLister, w Window) (bool, error) {
	events, err := lister.ListEvents(ctx, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	return len(events) == 0, nil
}

// FindNextFreeSlot walks forward from earliest looking for a free window of
// the given duration. When a candidate overlaps existing events, the cursor
// jumps to the latest end time among them, which keeps the walk correct when
// overlapping events have unequal lengths. Returns ErrNoSlot once the
// candidate's end would pass earliest+horizon.
func FindNextFreeSlot(ctx context.Context, lister EventLister, earliest time.Time, duration, horizon time.Duration) (Window, error) {
	deadline := earliest.Add(horizon)
	cursor := earliest

	for {
		candidate := Window{Start: cursor, End: cursor.Add(duration)}
		if candidate.End.After(deadline) {
			return Window{}, ErrNoSlot
		}

		events, err := lister.ListEvents(ctx, candidate.Start.Format(time.RFC3339), candidate.End.Format(time.RFC3339))
		if err != nil {
			return Window{}, err
		}
		if len(events) == 0 {
			return candidate, nil
		}

		next := cursor
		for _, ev := range events {
			end, err := time.Parse(time.RFC3339, ev.End.Value())
			if err != nil {
				return Window{}, fmt.Errorf("event %s has invalid end time %q: %w", ev.ID, ev.End.Value(), err)
			}
			if end.After(next) {
				next = end
			}
		}
		if !next.After(cursor) {
			// An event that ends at or before the cursor cannot block the
			// candidate; treat it as a backend anomaly rather than spin.
			return Window{}, fmt.Errorf("event list did not advance cursor past %s", cursor.Format(time.RFC3339))
		}
		cursor = next
	}
}

// Backend is the full surface ScheduleOrPropose needs.
type Backend interface {
	EventLister
	EventCreator
	Notifier
}

// Outcome describes what ScheduleOrPropose did.
type Outcome struct {
	Scheduled bool
	Window    Window
	Event     *toolbelt.Event
}

// ScheduleOrPropose books the requested window if it is free and mails the
// person a confirmation. If the window is taken it finds the next free slot
// and mails a reschedule proposal instead; the alternate slot is not booked
// until the person confirms. When no slot exists within the horizon it fails
// without contacting the person.
func ScheduleOrPropose(ctx context.Context, backend Backend, person, summary string, requested Window, horizon time.Duration) (*Outcome, error) {
	free, err := IsFree(ctx, backend, requested)
	if err != nil {
		return nil, fmt.Errorf("availability check failed: %w", err)
	}

	if free {
		event, err := backend.CreateEvent(ctx, &toolbelt.Event{
			Summary:   summary,
			Start:     toolbelt.EventTime{DateTime: requested.Start.Format(time.RFC3339)},
			End:       toolbelt.EventTime{DateTime: requested.End.Format(time.RFC3339)},
			Attendees: []toolbelt.Attendee{{Email: person}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create event: %w", err)
		}

		subject := fmt.Sprintf("Meeting Scheduled: %s", summary)
		body := fmt.Sprintf("Hi,\n\nYour meeting has been scheduled.\n\nSummary: %s\nStart: %s\nEnd: %s\n",
			summary, requested.Start.Format(time.RFC3339), requested.End.Format(time.RFC3339))
		if _, err := backend.SendMessage(ctx, person, subject, body); err != nil {
			log.Printf("failed to send confirmation to %s: %v", person, err)
		}
		return &Outcome{Scheduled: true, Window: requested, Event: event}, nil
	}

	slot, err := FindNextFreeSlot(ctx, backend, requested.Start, requested.End.Sub(requested.Start), horizon)
	if err != nil {
		return nil, err
	}

	subject := fmt.Sprintf("Reschedule Meeting: %s", summary)
	body := fmt.Sprintf("Hi,\n\nThe requested time is not available. The next free slot is:\n\nStart: %s\nEnd: %s\n\nPlease confirm and the meeting will be scheduled.\n",
		slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339))
	if _, err := backend.SendMessage(ctx, person, subject, body); err != nil {
		return nil, fmt.Errorf("failed to send reschedule proposal: %w", err)
	}
	return &Outcome{Scheduled: false, Window: slot}, nil
}
