package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

const maxWebhookBody = 1 << 20 // Telegram updates are far below 1 MiB

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook enqueues the raw update body. Validation is the worker's
// job; the webhook only guards the secret and body size.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" {
		if r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != s.webhookSecret {
			writeError(w, http.StatusUnauthorized, "bad secret token")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	id, err := s.stores.Messages.Enqueue(r.Context(), string(body))
	if err != nil {
		slog.Error("webhook enqueue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	slog.Debug("webhook update enqueued", "message", id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

type invokeRequest struct {
	Instruction string `json:"instruction"`
	ChatID      string `json:"chat_id,omitempty"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	loop, err := s.orchestrator.Agent(name, req.ChatID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	start := time.Now()
	answer, err := loop.Invoke(r.Context(), req.Instruction, req.ChatID)
	if err != nil {
		slog.Error("direct invoke failed", "agent", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent":       name,
		"answer":      answer,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	status := store.MessageStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = store.StatusFailed
	}
	switch status {
	case store.StatusNew, store.StatusProcessing, store.StatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "invalid status: use new, processing or failed")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	msgs, err := s.stores.Messages.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]any{
			"id":         m.ID,
			"status":     m.Status,
			"payload":    m.Payload,
			"created_at": m.CreatedAt,
			"updated_at": m.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	if err := s.stores.Messages.Requeue(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	slog.Info("message requeued", "message", id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": store.StatusNew})
}

func customerJSON(c *store.Customer) map[string]any {
	return map[string]any{
		"id":                   c.ID,
		"chat_id":              c.ChatID,
		"name":                 c.Name,
		"conversation_summary": c.ConversationSummary,
		"history_chars":        len(c.ConversationHistory),
		"created_at":           c.CreatedAt,
		"updated_at":           c.UpdatedAt,
	}
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.stores.Customers.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(customers))
	for i := range customers {
		out = append(out, customerJSON(&customers[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": out})
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.stores.Customers.GetByChatID(r.Context(), r.PathValue("chat_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := customerJSON(customer)
	resp["conversation_history"] = customer.ConversationHistory
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.stores.Tickets.ListTickets(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": ticketListJSON(tickets)})
}

type createTicketRequest struct {
	Issue    string `json:"issue"`
	Priority string `json:"priority,omitempty"`
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Issue) == "" {
		writeError(w, http.StatusBadRequest, "issue is required")
		return
	}
	if req.Priority == "" {
		req.Priority = store.TicketPriorityMedium
	}

	ticket, err := s.stores.Tickets.CreateTicket(r.Context(), req.Issue, req.Priority)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticketJSON(ticket))
}

func ticketJSON(t *store.Ticket) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"issue":       t.Issue,
		"priority":    t.Priority,
		"status":      t.Status,
		"assigned_to": t.AssignedTo,
		"created_at":  t.CreatedAt,
		"updated_at":  t.UpdatedAt,
	}
}

func ticketListJSON(tickets []store.Ticket) []map[string]any {
	out := make([]map[string]any, 0, len(tickets))
	for i := range tickets {
		out = append(out, ticketJSON(&tickets[i]))
	}
	return out
}
