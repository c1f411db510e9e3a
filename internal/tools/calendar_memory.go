package tools

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCalendar is the built-in CalendarClient: an in-process event list.
// Deployments with a real scheduling backend swap in their own client.
type MemoryCalendar struct {
	mu     sync.Mutex
	events []CalendarEvent
}

func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{}
}

func (m *MemoryCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CalendarEvent
	for _, e := range m.events {
		if !e.Start.Before(from) && e.Start.Before(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryCalendar) CreateEvent(ctx context.Context, title string, start, end time.Time, with string) (*CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := CalendarEvent{
		ID:    uuid.NewString(),
		Title: title,
		Start: start,
		End:   end,
		With:  with,
	}
	m.events = append(m.events, e)
	return &e, nil
}
