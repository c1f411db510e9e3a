package tools

import (
	"context"
	"time"
)

// CurrentTimeTool reports the current time in the company timezone.
type CurrentTimeTool struct {
	loc *time.Location
	now func() time.Time
}

func NewCurrentTimeTool(tz string) *CurrentTimeTool {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.Local
	}
	return &CurrentTimeTool{loc: loc, now: time.Now}
}

func (t *CurrentTimeTool) Name() string { return "current_time" }

func (t *CurrentTimeTool) Description() string {
	return "Get the current date and time. Use whenever scheduling or relative dates are involved."
}

func (t *CurrentTimeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *CurrentTimeTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return NewResult(t.now().In(t.loc).Format("Monday, 2006-01-02 15:04:05 MST"))
}
