package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

var validPriorities = map[string]bool{
	store.TicketPriorityLow:    true,
	store.TicketPriorityMedium: true,
	store.TicketPriorityHigh:   true,
}

var validStatuses = map[string]bool{
	store.TicketStatusOpen:       true,
	store.TicketStatusInProgress: true,
	store.TicketStatusResolved:   true,
}

// CreateTicketTool files a new support ticket.
type CreateTicketTool struct {
	tickets store.TicketStore
}

func NewCreateTicketTool(tickets store.TicketStore) *CreateTicketTool {
	return &CreateTicketTool{tickets: tickets}
}

func (t *CreateTicketTool) Name() string { return "create_ticket" }

func (t *CreateTicketTool) Description() string {
	return "Create a support ticket for an issue the customer reported. Returns the ticket id."
}

func (t *CreateTicketTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"issue": map[string]interface{}{
				"type":        "string",
				"description": "Short description of the customer's issue",
			},
			"priority": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"low", "medium", "high"},
				"description": "Ticket priority, default medium",
			},
		},
		"required": []string{"issue"},
	}
}

func (t *CreateTicketTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	issue, _ := args["issue"].(string)
	if strings.TrimSpace(issue) == "" {
		return ErrorResult("issue is required")
	}
	priority, _ := args["priority"].(string)
	if priority == "" {
		priority = store.TicketPriorityMedium
	}
	if !validPriorities[priority] {
		return ErrorResult(fmt.Sprintf("invalid priority %q: use low, medium or high", priority))
	}

	ticket, err := t.tickets.CreateTicket(ctx, issue, priority)
	if err != nil {
		return ErrorResult("failed to create ticket: " + err.Error()).WithError(err)
	}
	return NewResult(fmt.Sprintf("Created ticket #%d (priority %s, status %s).", ticket.ID, ticket.Priority, ticket.Status))
}

// UpdateTicketTool changes fields on an existing ticket.
type UpdateTicketTool struct {
	tickets store.TicketStore
}

func NewUpdateTicketTool(tickets store.TicketStore) *UpdateTicketTool {
	return &UpdateTicketTool{tickets: tickets}
}

func (t *UpdateTicketTool) Name() string { return "update_ticket" }

func (t *UpdateTicketTool) Description() string {
	return "Update the status, priority, assignee or description of an existing ticket."
}

func (t *UpdateTicketTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticket_id": map[string]interface{}{
				"type":        "integer",
				"description": "The ticket id to update",
			},
			"status": map[string]interface{}{
				"type": "string",
				"enum": []string{"open", "in_progress", "resolved"},
			},
			"priority": map[string]interface{}{
				"type": "string",
				"enum": []string{"low", "medium", "high"},
			},
			"assigned_to": map[string]interface{}{
				"type":        "string",
				"description": "Name of the person the ticket is assigned to",
			},
			"issue": map[string]interface{}{
				"type":        "string",
				"description": "Replacement issue description",
			},
		},
		"required": []string{"ticket_id"},
	}
}

func (t *UpdateTicketTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id, ok := intArg(args, "ticket_id")
	if !ok {
		return ErrorResult("ticket_id is required")
	}

	var upd store.TicketUpdate
	if s, ok := args["status"].(string); ok && s != "" {
		if !validStatuses[s] {
			return ErrorResult(fmt.Sprintf("invalid status %q: use open, in_progress or resolved", s))
		}
		upd.Status = &s
	}
	if p, ok := args["priority"].(string); ok && p != "" {
		if !validPriorities[p] {
			return ErrorResult(fmt.Sprintf("invalid priority %q: use low, medium or high", p))
		}
		upd.Priority = &p
	}
	if a, ok := args["assigned_to"].(string); ok && a != "" {
		upd.AssignedTo = &a
	}
	if i, ok := args["issue"].(string); ok && i != "" {
		upd.Issue = &i
	}
	if upd == (store.TicketUpdate{}) {
		return ErrorResult("nothing to update: provide status, priority, assigned_to or issue")
	}

	if err := t.tickets.UpdateTicket(ctx, id, upd); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrorResult(fmt.Sprintf("ticket #%d not found", id))
		}
		return ErrorResult("failed to update ticket: " + err.Error()).WithError(err)
	}
	return NewResult(fmt.Sprintf("Updated ticket #%d.", id))
}

// ListTicketsTool lists tickets, optionally filtered by status.
type ListTicketsTool struct {
	tickets store.TicketStore
}

func NewListTicketsTool(tickets store.TicketStore) *ListTicketsTool {
	return &ListTicketsTool{tickets: tickets}
}

func (t *ListTicketsTool) Name() string { return "list_tickets" }

func (t *ListTicketsTool) Description() string {
	return "List support tickets, optionally filtered by status (open, in_progress, resolved)."
}

func (t *ListTicketsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"status": map[string]interface{}{
				"type": "string",
				"enum": []string{"open", "in_progress", "resolved"},
			},
		},
	}
}

func (t *ListTicketsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	status, _ := args["status"].(string)
	if status != "" && !validStatuses[status] {
		return ErrorResult(fmt.Sprintf("invalid status %q", status))
	}

	tickets, err := t.tickets.ListTickets(ctx, status)
	if err != nil {
		return ErrorResult("failed to list tickets: " + err.Error()).WithError(err)
	}
	if len(tickets) == 0 {
		return NewResult("No tickets found.")
	}

	var b strings.Builder
	for _, tk := range tickets {
		fmt.Fprintf(&b, "#%d [%s/%s] %s", tk.ID, tk.Status, tk.Priority, tk.Issue)
		if tk.AssignedTo != "" {
			fmt.Fprintf(&b, " (assigned: %s)", tk.AssignedTo)
		}
		b.WriteByte('\n')
	}
	return NewResult(b.String())
}

// intArg extracts an integer argument. JSON numbers decode as float64;
// some models send them as strings.
func intArg(args map[string]interface{}, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			return id, true
		}
	}
	return 0, false
}
