package digest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/agent"
	"github.com/nextlevelbuilder/kakak/internal/config"
	"github.com/nextlevelbuilder/kakak/internal/providers"
	"github.com/nextlevelbuilder/kakak/internal/store/sqlite"
)

type digestProvider struct {
	instructions []string
}

func (p *digestProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	for _, m := range req.Messages {
		if m.Role == "user" {
			p.instructions = append(p.instructions, m.Content)
		}
	}
	return &providers.ChatResponse{Content: "no open items", FinishReason: "stop"}, nil
}
func (p *digestProvider) DefaultModel() string { return "digest" }
func (p *digestProvider) Name() string         { return "digest" }

func TestNewSchedulerValidatesCron(t *testing.T) {
	if _, err := NewScheduler("not a cron", nil, nil, nil); err == nil {
		t.Fatal("invalid cron accepted")
	}
	if _, err := NewScheduler("0 9 * * *", nil, nil, nil); err != nil {
		t.Fatalf("valid cron rejected: %v", err)
	}
}

func TestRunOncePerCustomerWithOpenTickets(t *testing.T) {
	stores, err := sqlite.Open(filepath.Join(t.TempDir(), "digest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()

	stores.Customers.GetOrCreate(ctx, "1", "Ann")
	stores.Customers.GetOrCreate(ctx, "2", "Bo")
	stores.Tickets.CreateTicket(ctx, "vpn down", "high")

	provider := &digestProvider{}
	orch := agent.NewOrchestrator(agent.Deps{
		Provider: provider,
		Tickets:  stores.Tickets,
		Sender:   noopSender{},
		Company:  config.CompanyConfig{Name: "Acme"},
	})

	sched, err := NewScheduler("0 9 * * *", stores.Customers, stores.Tickets, orch)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.RunOnce(ctx)

	// One digest invocation per customer, each naming the open ticket.
	if len(provider.instructions) != 2 {
		t.Fatalf("invocations = %d, want 2", len(provider.instructions))
	}
	for _, in := range provider.instructions {
		if !strings.Contains(in, "vpn down") {
			t.Errorf("instruction missing ticket:\n%s", in)
		}
	}
}

func TestRunOnceSkipsWithoutOpenTickets(t *testing.T) {
	stores, err := sqlite.Open(filepath.Join(t.TempDir(), "digest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	stores.Customers.GetOrCreate(ctx, "1", "Ann")

	provider := &digestProvider{}
	orch := agent.NewOrchestrator(agent.Deps{Provider: provider, Tickets: stores.Tickets, Sender: noopSender{}})

	sched, _ := NewScheduler("* * * * *", stores.Customers, stores.Tickets, orch)
	sched.RunOnce(ctx)

	if len(provider.instructions) != 0 {
		t.Errorf("digest ran with no open tickets")
	}
}

func TestIsDueMatchesSchedule(t *testing.T) {
	sched, _ := NewScheduler("0 9 * * *", nil, nil, nil)

	due, err := sched.gron.IsDue(sched.expr, time.Date(2026, 8, 31, 9, 0, 30, 0, time.UTC))
	if err != nil || !due {
		t.Errorf("09:00 not due: due=%v err=%v", due, err)
	}
	due, _ = sched.gron.IsDue(sched.expr, time.Date(2026, 8, 31, 9, 1, 0, 0, time.UTC))
	if due {
		t.Errorf("09:01 reported due")
	}
}

type noopSender struct{}

func (noopSender) Send(ctx context.Context, chatID, text string) error { return nil }
