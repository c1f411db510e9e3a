package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/kakak/internal/providers"
	"github.com/nextlevelbuilder/kakak/internal/store"
)

type fakeCustomers struct {
	customer      store.Customer
	replacedWith  string
	replaceCalled bool
	replaceErr    error
}

func (f *fakeCustomers) GetOrCreate(ctx context.Context, chatID, name string) (*store.Customer, error) {
	return &f.customer, nil
}

func (f *fakeCustomers) Get(ctx context.Context, id int64) (*store.Customer, error) {
	if id != f.customer.ID {
		return nil, store.ErrNotFound
	}
	c := f.customer
	return &c, nil
}

func (f *fakeCustomers) GetByChatID(ctx context.Context, chatID string) (*store.Customer, error) {
	return &f.customer, nil
}

func (f *fakeCustomers) AppendHistory(ctx context.Context, id int64, line string) error {
	f.customer.ConversationHistory += line
	return nil
}

func (f *fakeCustomers) ReplaceSummary(ctx context.Context, id int64, summary string) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaceCalled = true
	f.replacedWith = summary
	f.customer.ConversationSummary = summary
	f.customer.ConversationHistory = ""
	return nil
}

func (f *fakeCustomers) List(ctx context.Context) ([]store.Customer, error) {
	return []store.Customer{f.customer}, nil
}

type fixedProvider struct {
	content string
	err     error
	lastReq providers.ChatRequest
}

func (p *fixedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &providers.ChatResponse{Content: p.content, FinishReason: "stop"}, nil
}

func (p *fixedProvider) DefaultModel() string { return "fixed" }
func (p *fixedProvider) Name() string         { return "fixed" }

func TestSummarizeReplacesAndClears(t *testing.T) {
	customers := &fakeCustomers{customer: store.Customer{
		ID:                  1,
		Name:                "Ann",
		ConversationSummary: "Ann asked about refunds before.",
		ConversationHistory: "[Ann at 2026-08-30 10:00:00]: where is my parcel?\n",
	}}
	provider := &fixedProvider{content: "Ann is waiting on a parcel; refunds discussed earlier."}

	svc := NewService(customers, provider, "")
	summary, err := svc.Summarize(context.Background(), 1)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !customers.replaceCalled {
		t.Fatal("ReplaceSummary not called")
	}
	if summary != customers.replacedWith {
		t.Errorf("returned %q, stored %q", summary, customers.replacedWith)
	}
	if customers.customer.ConversationHistory != "" {
		t.Errorf("history not cleared")
	}

	// Prompt carries both the previous summary and the fresh history.
	prompt := provider.lastReq.Messages[1].Content
	if !strings.Contains(prompt, "refunds before") || !strings.Contains(prompt, "where is my parcel") {
		t.Errorf("prompt missing context:\n%s", prompt)
	}
}

func TestSummarizeEmptyHistoryNoop(t *testing.T) {
	customers := &fakeCustomers{customer: store.Customer{ID: 1, Name: "Ann", ConversationSummary: "old"}}
	provider := &fixedProvider{content: "should not be called"}

	svc := NewService(customers, provider, "")
	summary, err := svc.Summarize(context.Background(), 1)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "old" {
		t.Errorf("summary = %q, want previous summary", summary)
	}
	if customers.replaceCalled {
		t.Error("ReplaceSummary called for empty history")
	}
}

func TestSummarizeProviderError(t *testing.T) {
	customers := &fakeCustomers{customer: store.Customer{ID: 1, ConversationHistory: "x"}}
	provider := &fixedProvider{err: errors.New("llm down")}

	svc := NewService(customers, provider, "")
	if _, err := svc.Summarize(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
	if customers.replaceCalled {
		t.Error("summary stored despite provider error")
	}
}
