package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CalendarEvent is one appointment on the shared support calendar.
type CalendarEvent struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
	With  string
}

// CalendarClient abstracts the scheduling backend.
type CalendarClient interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]CalendarEvent, error)
	CreateEvent(ctx context.Context, title string, start, end time.Time, with string) (*CalendarEvent, error)
}

const calendarTimeLayout = "2006-01-02 15:04"

// ListEventsTool shows upcoming calendar events.
type ListEventsTool struct {
	client CalendarClient
}

func NewListEventsTool(client CalendarClient) *ListEventsTool {
	return &ListEventsTool{client: client}
}

func (t *ListEventsTool) Name() string { return "calendar_list_events" }

func (t *ListEventsTool) Description() string {
	return "List calendar events in a date range. Dates in YYYY-MM-DD format; defaults to the next 7 days."
}

func (t *ListEventsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"from": map[string]interface{}{
				"type":        "string",
				"description": "Range start, YYYY-MM-DD",
			},
			"to": map[string]interface{}{
				"type":        "string",
				"description": "Range end, YYYY-MM-DD",
			},
		},
	}
}

func (t *ListEventsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	now := time.Now()
	from := now
	to := now.AddDate(0, 0, 7)

	if s, _ := args["from"].(string); s != "" {
		parsed, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return ErrorResult(fmt.Sprintf("invalid from date %q: use YYYY-MM-DD", s))
		}
		from = parsed
	}
	if s, _ := args["to"].(string); s != "" {
		parsed, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return ErrorResult(fmt.Sprintf("invalid to date %q: use YYYY-MM-DD", s))
		}
		to = parsed.AddDate(0, 0, 1) // inclusive end day
	}

	events, err := t.client.ListEvents(ctx, from, to)
	if err != nil {
		return ErrorResult("failed to list events: " + err.Error()).WithError(err)
	}
	if len(events) == 0 {
		return NewResult("No events in that range.")
	}

	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "%s - %s: %s", ev.Start.Format(calendarTimeLayout), ev.End.Format("15:04"), ev.Title)
		if ev.With != "" {
			fmt.Fprintf(&b, " (with %s)", ev.With)
		}
		b.WriteByte('\n')
	}
	return NewResult(b.String())
}

// CreateEventTool books a new calendar event.
type CreateEventTool struct {
	client CalendarClient
}

func NewCreateEventTool(client CalendarClient) *CreateEventTool {
	return &CreateEventTool{client: client}
}

func (t *CreateEventTool) Name() string { return "calendar_create_event" }

func (t *CreateEventTool) Description() string {
	return "Book a calendar event. Times in 'YYYY-MM-DD HH:MM' local time; default duration 30 minutes."
}

func (t *CreateEventTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"type":        "string",
				"description": "Event title",
			},
			"start": map[string]interface{}{
				"type":        "string",
				"description": "Start time, YYYY-MM-DD HH:MM",
			},
			"end": map[string]interface{}{
				"type":        "string",
				"description": "End time, YYYY-MM-DD HH:MM",
			},
			"with": map[string]interface{}{
				"type":        "string",
				"description": "Who the event is with (customer name)",
			},
		},
		"required": []string{"title", "start"},
	}
}

func (t *CreateEventTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	title, _ := args["title"].(string)
	if strings.TrimSpace(title) == "" {
		return ErrorResult("title is required")
	}
	startStr, _ := args["start"].(string)
	start, err := time.ParseInLocation(calendarTimeLayout, startStr, time.Local)
	if err != nil {
		return ErrorResult(fmt.Sprintf("invalid start time %q: use YYYY-MM-DD HH:MM", startStr))
	}

	end := start.Add(30 * time.Minute)
	if endStr, _ := args["end"].(string); endStr != "" {
		end, err = time.ParseInLocation(calendarTimeLayout, endStr, time.Local)
		if err != nil {
			return ErrorResult(fmt.Sprintf("invalid end time %q: use YYYY-MM-DD HH:MM", endStr))
		}
		if !end.After(start) {
			return ErrorResult("end time must be after start time")
		}
	}
	with, _ := args["with"].(string)

	ev, err := t.client.CreateEvent(ctx, title, start, end, with)
	if err != nil {
		return ErrorResult("failed to create event: " + err.Error()).WithError(err)
	}
	return NewResult(fmt.Sprintf("Booked %q on %s (id %s).", ev.Title, ev.Start.Format(calendarTimeLayout), ev.ID))
}
