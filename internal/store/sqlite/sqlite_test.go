package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

func openTestStores(t *testing.T) *store.Stores {
	t.Helper()
	stores, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open stores: %v", err)
	}
	return stores
}

func TestEnqueueAndClaimFIFO(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	var ids []int64
	for _, payload := range []string{"first", "second", "third"} {
		id, err := stores.Messages.Enqueue(ctx, payload)
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, id)
	}

	for i, want := range []string{"first", "second", "third"} {
		msg, err := stores.Messages.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if msg.Payload != want {
			t.Errorf("claim %d: payload = %q, want %q", i, msg.Payload, want)
		}
		if msg.ID != ids[i] {
			t.Errorf("claim %d: id = %d, want %d", i, msg.ID, ids[i])
		}
		if msg.Status != store.StatusProcessing {
			t.Errorf("claim %d: status = %q, want processing", i, msg.Status)
		}
	}

	if _, err := stores.Messages.ClaimNext(ctx); !errors.Is(err, store.ErrNoMessages) {
		t.Errorf("empty queue: err = %v, want ErrNoMessages", err)
	}
}

func TestClaimNextAtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	if _, err := stores.Messages.Enqueue(ctx, "only one"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	claims := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := stores.Messages.ClaimNext(ctx)
			if err == nil {
				claims <- msg.ID
			} else if !errors.Is(err, store.ErrNoMessages) {
				t.Errorf("claim: %v", err)
			}
		}()
	}
	wg.Wait()
	close(claims)

	var won int
	for range claims {
		won++
	}
	if won != 1 {
		t.Errorf("%d workers claimed the message, want exactly 1", won)
	}
}

func TestDeletedMessageNeverReclaimed(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	id, _ := stores.Messages.Enqueue(ctx, "payload")
	msg, err := stores.Messages.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := stores.Messages.Delete(ctx, msg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := stores.Messages.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
	if _, err := stores.Messages.ClaimNext(ctx); !errors.Is(err, store.ErrNoMessages) {
		t.Errorf("claim after delete: err = %v, want ErrNoMessages", err)
	}
}

func TestFailedMessagesNotAutoReclaimed(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	stores.Messages.Enqueue(ctx, "doomed")
	msg, _ := stores.Messages.ClaimNext(ctx)
	if err := stores.Messages.MarkFailed(ctx, msg.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// Failed rows stay out of the claim path.
	if _, err := stores.Messages.ClaimNext(ctx); !errors.Is(err, store.ErrNoMessages) {
		t.Errorf("claim: err = %v, want ErrNoMessages", err)
	}

	failed, err := stores.Messages.ListByStatus(ctx, store.StatusFailed, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != msg.ID {
		t.Errorf("failed list = %+v, want the one failed message", failed)
	}

	// Manual requeue makes it claimable again.
	if err := stores.Messages.Requeue(ctx, msg.ID); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	reclaimed, err := stores.Messages.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim after requeue: %v", err)
	}
	if reclaimed.ID != msg.ID {
		t.Errorf("reclaimed id = %d, want %d", reclaimed.ID, msg.ID)
	}
}

func TestRequeueOnlyAppliesToFailed(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	id, _ := stores.Messages.Enqueue(ctx, "payload")
	if err := stores.Messages.Requeue(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("requeue of new message: err = %v, want ErrNotFound", err)
	}
}

func TestGetOrCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	first, err := stores.Customers.GetOrCreate(ctx, "X", "A")
	if err != nil {
		t.Fatalf("get_or_create: %v", err)
	}
	second, err := stores.Customers.GetOrCreate(ctx, "X", "B")
	if err != nil {
		t.Fatalf("get_or_create again: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}
	if second.Name != "A" {
		t.Errorf("name = %q, want first-contact name A", second.Name)
	}

	all, _ := stores.Customers.List(ctx)
	if len(all) != 1 {
		t.Errorf("customer count = %d, want 1", len(all))
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	const callers = 8
	var wg sync.WaitGroup
	ids := make(chan int64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := stores.Customers.GetOrCreate(ctx, "42", "Ann")
			if err != nil {
				t.Errorf("get_or_create: %v", err)
				return
			}
			ids <- c.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Errorf("distinct ids = %d, want 1", len(seen))
	}
}

func TestAppendHistoryGrowsInOrder(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	c, _ := stores.Customers.GetOrCreate(ctx, "42", "Ann")
	lines := []string{"[Ann at t1]: hello\n", "[Ann at t2]: again\n", "[Ann at t3]: bye\n"}
	for _, line := range lines {
		if err := stores.Customers.AppendHistory(ctx, c.ID, line); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, _ := stores.Customers.Get(ctx, c.ID)
	want := lines[0] + lines[1] + lines[2]
	if got.ConversationHistory != want {
		t.Errorf("history = %q, want %q", got.ConversationHistory, want)
	}
}

func TestReplaceSummaryClearsHistory(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	c, _ := stores.Customers.GetOrCreate(ctx, "42", "Ann")
	stores.Customers.AppendHistory(ctx, c.ID, "[Ann at t1]: hello\n")

	if err := stores.Customers.ReplaceSummary(ctx, c.ID, "Ann said hello."); err != nil {
		t.Fatalf("replace summary: %v", err)
	}

	got, _ := stores.Customers.Get(ctx, c.ID)
	if got.ConversationSummary != "Ann said hello." {
		t.Errorf("summary = %q", got.ConversationSummary)
	}
	if got.ConversationHistory != "" {
		t.Errorf("history = %q, want empty", got.ConversationHistory)
	}
}

func TestTicketLifecycle(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)

	tk, err := stores.Tickets.CreateTicket(ctx, "cannot log in", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tk.Priority != store.TicketPriorityMedium || tk.Status != store.TicketStatusOpen {
		t.Errorf("defaults: priority=%q status=%q", tk.Priority, tk.Status)
	}

	status := store.TicketStatusResolved
	assignee := "alice"
	if err := stores.Tickets.UpdateTicket(ctx, tk.ID, store.TicketUpdate{Status: &status, AssignedTo: &assignee}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := stores.Tickets.GetTicket(ctx, tk.ID)
	if got.Status != store.TicketStatusResolved || got.AssignedTo != "alice" {
		t.Errorf("after update: %+v", got)
	}

	open, _ := stores.Tickets.ListTickets(ctx, store.TicketStatusOpen)
	if len(open) != 0 {
		t.Errorf("open tickets = %d, want 0", len(open))
	}
}
