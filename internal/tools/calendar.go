package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parley-agents/parley/internal/calendar"
)

// RegisterCalendarTools wires the agent's own calendar into its tool set.
func RegisterCalendarTools(r *Registry, store *calendar.Store) error {
	for _, tool := range []Tool{
		&checkAvailabilityTool{store},
		&freeSlotsTool{store},
		&scheduleTool{store},
		&bookMeetingTool{store},
		&cancelMeetingTool{store},
	} {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

type checkAvailabilityTool struct {
	store *calendar.Store
}

func (t *checkAvailabilityTool) Name() string { return "check_availability" }

func (t *checkAvailabilityTool) Description() string {
	return "Check if my person is free at a specific time."
}

func (t *checkAvailabilityTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date":       map[string]any{"type": "string", "description": "Date in YYYY-MM-DD format"},
			"start_time": map[string]any{"type": "string", "description": "Start time in HH:MM format"},
			"end_time":   map[string]any{"type": "string", "description": "End time in HH:MM format"},
		},
		"required": []string{"date", "start_time", "end_time"},
	}
}

func (t *checkAvailabilityTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	available, err := t.store.IsAvailable(ctx,
		GetString(args, "date", ""),
		GetString(args, "start_time", ""),
		GetString(args, "end_time", ""))
	if err != nil {
		return "", err
	}
	if available {
		return "Available", nil
	}
	return "Busy - conflict with existing event", nil
}

type freeSlotsTool struct {
	store *calendar.Store
}

func (t *freeSlotsTool) Name() string { return "get_free_slots" }

func (t *freeSlotsTool) Description() string {
	return "List my person's open time slots for a given date."
}

func (t *freeSlotsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date":             map[string]any{"type": "string", "description": "Date in YYYY-MM-DD format"},
			"duration_minutes": map[string]any{"type": "integer", "description": "How long the meeting needs to be"},
		},
		"required": []string{"date", "duration_minutes"},
	}
}

func (t *freeSlotsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	date := GetString(args, "date", "")
	slots, err := t.store.FreeSlots(ctx, date, GetInt(args, "duration_minutes", 0))
	if err != nil {
		return "", err
	}
	if len(slots) == 0 {
		return "No available slots on this date.", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Available slots on %s:", date)
	for _, s := range slots {
		fmt.Fprintf(&sb, "\n  %s-%s", s.Start, s.End)
	}
	return sb.String(), nil
}

type scheduleTool struct {
	store *calendar.Store
}

func (t *scheduleTool) Name() string { return "get_schedule" }

func (t *scheduleTool) Description() string {
	return "Get my person's full schedule for a date."
}

func (t *scheduleTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date": map[string]any{"type": "string", "description": "Date in YYYY-MM-DD format"},
		},
		"required": []string{"date"},
	}
}

func (t *scheduleTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	date := GetString(args, "date", "")
	events, err := t.store.Events(ctx, date)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return fmt.Sprintf("No events on %s.", date), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Schedule for %s:", date)
	for _, e := range events {
		fmt.Fprintf(&sb, "\n  %s-%s: %s", e.Start, e.End, e.Title)
	}
	return sb.String(), nil
}

type bookMeetingTool struct {
	store *calendar.Store
}

func (t *bookMeetingTool) Name() string { return "book_meeting" }

func (t *bookMeetingTool) Description() string {
	return "Book a meeting on my person's calendar."
}

func (t *bookMeetingTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":      map[string]any{"type": "string", "description": "Meeting title"},
			"date":       map[string]any{"type": "string", "description": "Date in YYYY-MM-DD format"},
			"start_time": map[string]any{"type": "string", "description": "Start time in HH:MM format"},
			"end_time":   map[string]any{"type": "string", "description": "End time in HH:MM format"},
			"attendees":  map[string]any{"type": "string", "description": "Semicolon-separated list of attendee names"},
			"location":   map[string]any{"type": "string", "description": "Meeting location"},
		},
		"required": []string{"title", "date", "start_time", "end_time"},
	}
}

func (t *bookMeetingTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var attendees []string
	if raw := GetString(args, "attendees", ""); raw != "" {
		attendees = strings.Split(raw, ";")
	}
	booking := calendar.Booking{
		Title:     GetString(args, "title", ""),
		Date:      GetString(args, "date", ""),
		Start:     GetString(args, "start_time", ""),
		End:       GetString(args, "end_time", ""),
		Location:  GetString(args, "location", ""),
		Attendees: attendees,
	}
	event, err := t.store.Book(ctx, booking)
	if errors.Is(err, calendar.ErrConflict) {
		return "Failed to book - time slot is no longer available.", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Booked: %s on %s %s-%s (id %s)",
		event.Title, event.Date, event.Start, event.End, event.ID), nil
}

type cancelMeetingTool struct {
	store *calendar.Store
}

func (t *cancelMeetingTool) Name() string { return "cancel_meeting" }

func (t *cancelMeetingTool) Description() string {
	return "Cancel a previously booked meeting by its event id."
}

func (t *cancelMeetingTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_id": map[string]any{"type": "string", "description": "The event id returned when the meeting was booked"},
		},
		"required": []string{"event_id"},
	}
}

func (t *cancelMeetingTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	eventID := GetString(args, "event_id", "")
	err := t.store.Cancel(ctx, eventID)
	if errors.Is(err, calendar.ErrNotFound) {
		return fmt.Sprintf("No event found with id %s.", eventID), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Cancelled event %s.", eventID), nil
}
