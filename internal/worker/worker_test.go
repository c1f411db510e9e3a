package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

// memQueue is an in-memory MessageStore for worker tests.
type memQueue struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*store.IncomingMessage
}

func newMemQueue() *memQueue {
	return &memQueue{nextID: 1, rows: make(map[int64]*store.IncomingMessage)}
}

func (q *memQueue) Enqueue(ctx context.Context, payload string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.rows[id] = &store.IncomingMessage{ID: id, Payload: payload, Status: store.StatusNew}
	return id, nil
}

func (q *memQueue) ClaimNext(ctx context.Context) (*store.IncomingMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var oldest *store.IncomingMessage
	for id := int64(1); id < q.nextID; id++ {
		m, ok := q.rows[id]
		if ok && m.Status == store.StatusNew {
			oldest = m
			break
		}
	}
	if oldest == nil {
		return nil, store.ErrNoMessages
	}
	oldest.Status = store.StatusProcessing
	cp := *oldest
	return &cp, nil
}

func (q *memQueue) Get(ctx context.Context, id int64) (*store.IncomingMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (q *memQueue) Delete(ctx context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(q.rows, id)
	return nil
}

func (q *memQueue) MarkFailed(ctx context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Status = store.StatusFailed
	return nil
}

func (q *memQueue) Requeue(ctx context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.rows[id]
	if !ok || m.Status != store.StatusFailed {
		return store.ErrNotFound
	}
	m.Status = store.StatusNew
	return nil
}

func (q *memQueue) ListByStatus(ctx context.Context, status store.MessageStatus, limit int) ([]store.IncomingMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []store.IncomingMessage
	for id := int64(1); id < q.nextID && len(out) < limit; id++ {
		if m, ok := q.rows[id]; ok && m.Status == status {
			out = append(out, *m)
		}
	}
	return out, nil
}

// memCustomers is an in-memory CustomerStore.
type memCustomers struct {
	mu     sync.Mutex
	nextID int64
	byChat map[string]*store.Customer
}

func newMemCustomers() *memCustomers {
	return &memCustomers{nextID: 1, byChat: make(map[string]*store.Customer)}
}

func (c *memCustomers) GetOrCreate(ctx context.Context, chatID, name string) (*store.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cust, ok := c.byChat[chatID]; ok {
		cp := *cust
		return &cp, nil
	}
	cust := &store.Customer{ID: c.nextID, ChatID: chatID, Name: name}
	c.nextID++
	c.byChat[chatID] = cust
	cp := *cust
	return &cp, nil
}

func (c *memCustomers) Get(ctx context.Context, id int64) (*store.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cust := range c.byChat {
		if cust.ID == id {
			cp := *cust
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (c *memCustomers) GetByChatID(ctx context.Context, chatID string) (*store.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cust, ok := c.byChat[chatID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *cust
	return &cp, nil
}

func (c *memCustomers) AppendHistory(ctx context.Context, id int64, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cust := range c.byChat {
		if cust.ID == id {
			cust.ConversationHistory += line
			return nil
		}
	}
	return store.ErrNotFound
}

func (c *memCustomers) ReplaceSummary(ctx context.Context, id int64, summary string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cust := range c.byChat {
		if cust.ID == id {
			cust.ConversationSummary = summary
			cust.ConversationHistory = ""
			return nil
		}
	}
	return store.ErrNotFound
}

func (c *memCustomers) List(ctx context.Context) ([]store.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []store.Customer
	for _, cust := range c.byChat {
		out = append(out, *cust)
	}
	return out, nil
}

// scriptedInvoker records instructions and replies from a script.
type scriptedInvoker struct {
	mu           sync.Mutex
	instructions []string
	userIDs      []string
	answer       string
	err          error
	block        bool // wait for ctx cancellation instead of answering
}

func (s *scriptedInvoker) Invoke(ctx context.Context, instruction, userID string) (string, error) {
	s.mu.Lock()
	s.instructions = append(s.instructions, instruction)
	s.userIDs = append(s.userIDs, userID)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.answer, s.err
}

func (s *scriptedInvoker) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instructions)
}

type countingSummarizer struct {
	mu    sync.Mutex
	calls []int64
	err   error
	apply func(customerID int64)
}

func (c *countingSummarizer) Summarize(ctx context.Context, customerID int64) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, customerID)
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if c.apply != nil {
		c.apply(customerID)
	}
	return "summary", nil
}

const annPayload = `{"message":{"chat":{"id":12345},"from":{"first_name":"Ann"},"text":"Hi","date":1767225600}}`

func newTestWorker(q *memQueue, c *memCustomers, inv *scriptedInvoker, sum Summarizer) *Worker {
	return New(q, c, inv, sum, Config{
		PollInterval:     time.Millisecond,
		InvokeTimeout:    time.Second,
		HistoryThreshold: 4000,
	})
}

func TestProcessOneHappyPath(t *testing.T) {
	q := newMemQueue()
	c := newMemCustomers()
	inv := &scriptedInvoker{answer: "greeted the customer"}
	w := newTestWorker(q, c, inv, nil)

	id, _ := q.Enqueue(context.Background(), annPayload)
	if err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	// Customer created from the payload.
	cust, err := c.GetByChatID(context.Background(), "12345")
	if err != nil {
		t.Fatalf("customer not created: %v", err)
	}
	if cust.Name != "Ann" {
		t.Errorf("name = %q", cust.Name)
	}

	// Both the user turn and the agent note are in the history.
	if !strings.Contains(cust.ConversationHistory, "]: Hi\n") {
		t.Errorf("user turn missing from history: %q", cust.ConversationHistory)
	}
	if !strings.Contains(cust.ConversationHistory, "greeted the customer") {
		t.Errorf("agent turn missing from history: %q", cust.ConversationHistory)
	}

	// Invoker saw the message and the chat id.
	if inv.calls() != 1 {
		t.Fatalf("invoker calls = %d", inv.calls())
	}
	if !strings.Contains(inv.instructions[0], "Hi") || !strings.Contains(inv.instructions[0], "12345") {
		t.Errorf("instruction missing context:\n%s", inv.instructions[0])
	}
	if inv.userIDs[0] != "12345" {
		t.Errorf("userID = %q", inv.userIDs[0])
	}

	// Success path deletes the row.
	if _, err := q.Get(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("message not deleted: %v", err)
	}
}

func TestProcessOneMalformedPayload(t *testing.T) {
	q := newMemQueue()
	c := newMemCustomers()
	inv := &scriptedInvoker{}
	w := newTestWorker(q, c, inv, nil)

	id, _ := q.Enqueue(context.Background(), `{"message":{"chat":{"id":5}}}`)
	if err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if _, err := q.Get(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("malformed message not deleted: %v", err)
	}
	if inv.calls() != 0 {
		t.Errorf("invoker called for malformed payload")
	}
	if custs, _ := c.List(context.Background()); len(custs) != 0 {
		t.Errorf("customer created for malformed payload: %+v", custs)
	}
}

func TestProcessOneInvokeFailure(t *testing.T) {
	q := newMemQueue()
	c := newMemCustomers()
	inv := &scriptedInvoker{err: errors.New("llm down")}
	w := newTestWorker(q, c, inv, nil)

	id, _ := q.Enqueue(context.Background(), annPayload)
	if err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	m, err := q.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed message deleted: %v", err)
	}
	if m.Status != store.StatusFailed {
		t.Errorf("status = %q, want failed", m.Status)
	}

	// Failed rows are not claimable again without a requeue.
	if err := w.ProcessOne(context.Background()); !errors.Is(err, store.ErrNoMessages) {
		t.Errorf("failed row reclaimed: %v", err)
	}

	if err := q.Requeue(context.Background(), id); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	inv.err = nil
	inv.answer = "ok now"
	if err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne after requeue: %v", err)
	}
	if _, err := q.Get(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("requeued message not resolved: %v", err)
	}
}

func TestProcessOneInvokeTimeout(t *testing.T) {
	q := newMemQueue()
	c := newMemCustomers()
	inv := &scriptedInvoker{block: true}
	w := New(q, c, inv, nil, Config{
		PollInterval:     time.Millisecond,
		InvokeTimeout:    20 * time.Millisecond,
		HistoryThreshold: 4000,
	})

	id, _ := q.Enqueue(context.Background(), annPayload)
	if err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	m, err := q.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.Status != store.StatusFailed {
		t.Errorf("status = %q, want failed after timeout", m.Status)
	}
}

func TestSummarizeThreshold(t *testing.T) {
	q := newMemQueue()
	c := newMemCustomers()
	inv := &scriptedInvoker{answer: strings.Repeat("x", 120)}
	sum := &countingSummarizer{}
	sum.apply = func(customerID int64) {
		c.ReplaceSummary(context.Background(), customerID, "summary")
	}
	w := New(q, c, inv, sum, Config{
		PollInterval:     time.Millisecond,
		InvokeTimeout:    time.Second,
		HistoryThreshold: 200,
	})

	// First message: history stays under the threshold, no summarization.
	q.Enqueue(context.Background(), annPayload)
	inv.answer = "ok"
	if err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(sum.calls) != 0 {
		t.Fatalf("summarizer called below threshold")
	}

	// Long answer pushes history past the threshold.
	inv.answer = strings.Repeat("y", 300)
	q.Enqueue(context.Background(), annPayload)
	if err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(sum.calls) != 1 {
		t.Fatalf("summarizer calls = %d, want 1", len(sum.calls))
	}

	cust, _ := c.GetByChatID(context.Background(), "12345")
	if cust.ConversationHistory != "" || cust.ConversationSummary != "summary" {
		t.Errorf("summary not applied: history=%q summary=%q", cust.ConversationHistory, cust.ConversationSummary)
	}
}

func TestSummarizeFailureDoesNotFailMessage(t *testing.T) {
	q := newMemQueue()
	c := newMemCustomers()
	inv := &scriptedInvoker{answer: strings.Repeat("y", 300)}
	sum := &countingSummarizer{err: errors.New("llm down")}
	w := New(q, c, inv, sum, Config{
		PollInterval:     time.Millisecond,
		InvokeTimeout:    time.Second,
		HistoryThreshold: 100,
	})

	id, _ := q.Enqueue(context.Background(), annPayload)
	if err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(sum.calls) != 1 {
		t.Fatalf("summarizer not called")
	}
	// Message already resolved; a summarization failure never flips it back.
	if _, err := q.Get(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("message not deleted despite summarize failure: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := newMemQueue()
	c := newMemCustomers()
	inv := &scriptedInvoker{answer: "ok"}
	w := newTestWorker(q, c, inv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	q.Enqueue(context.Background(), annPayload)

	deadline := time.After(2 * time.Second)
	for inv.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never processed the message")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("chat-1")
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
	km.mu.Lock()
	if len(km.locks) != 0 {
		t.Errorf("lock map not drained: %d entries", len(km.locks))
	}
	km.mu.Unlock()
}
