// Package digest runs the scheduled daily digest agent.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/kakak/internal/agent"
	"github.com/nextlevelbuilder/kakak/internal/store"
)

// Scheduler fires the daily digest agent on a cron schedule, once per
// customer per due tick.
type Scheduler struct {
	expr         string
	customers    store.CustomerStore
	tickets      store.TicketStore
	orchestrator *agent.Orchestrator
	gron         *gronx.Gronx
	now          func() time.Time
}

func NewScheduler(expr string, customers store.CustomerStore, tickets store.TicketStore, orchestrator *agent.Orchestrator) (*Scheduler, error) {
	g := gronx.New()
	if !g.IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return &Scheduler{
		expr:         expr,
		customers:    customers,
		tickets:      tickets,
		orchestrator: orchestrator,
		gron:         g,
		now:          time.Now,
	}, nil
}

// Run checks the schedule once a minute until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("digest scheduler started", "cron", s.expr)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("digest scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			due, err := s.gron.IsDue(s.expr, s.now())
			if err != nil {
				slog.Error("cron evaluation failed", "cron", s.expr, "error", err)
				continue
			}
			if due {
				s.RunOnce(ctx)
			}
		}
	}
}

// RunOnce sends a digest to every customer with open tickets. Failures are
// logged per customer; one bad run never stops the rest.
func (s *Scheduler) RunOnce(ctx context.Context) {
	open, err := s.tickets.ListTickets(ctx, store.TicketStatusOpen)
	if err != nil {
		slog.Error("digest ticket list failed", "error", err)
		return
	}
	if len(open) == 0 {
		slog.Info("digest skipped, no open tickets")
		return
	}

	customers, err := s.customers.List(ctx)
	if err != nil {
		slog.Error("digest customer list failed", "error", err)
		return
	}

	instruction := buildDigestInstruction(open)
	for _, c := range customers {
		loop, err := s.orchestrator.Agent(agent.AgentDailyDigest, c.ChatID)
		if err != nil {
			slog.Error("digest agent build failed", "error", err)
			return
		}
		if _, err := loop.Invoke(ctx, instruction, c.ChatID); err != nil {
			slog.Error("digest failed", "customer", c.ID, "chat", c.ChatID, "error", err)
			continue
		}
		slog.Info("digest sent", "customer", c.ID, "chat", c.ChatID)
	}
}

func buildDigestInstruction(open []store.Ticket) string {
	instruction := fmt.Sprintf("There are %d open tickets this morning:\n", len(open))
	for _, t := range open {
		instruction += fmt.Sprintf("- #%d [%s] %s\n", t.ID, t.Priority, t.Issue)
	}
	return instruction + "\nSend the customer their daily digest."
}
