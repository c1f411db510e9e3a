// Package summarize condenses a customer's conversation history into a
// rolling summary once it outgrows the worker threshold.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/kakak/internal/providers"
	"github.com/nextlevelbuilder/kakak/internal/store"
)

const systemPrompt = `You condense customer support conversations. Produce a
compact summary that preserves the customer's name, open requests, promised
follow-ups, preferences and any ticket or booking references. Write plain
prose, no headers. Keep it under 300 words.`

// Service produces rolling conversation summaries.
type Service struct {
	customers store.CustomerStore
	provider  providers.Provider
	model     string
}

func NewService(customers store.CustomerStore, provider providers.Provider, model string) *Service {
	return &Service{customers: customers, provider: provider, model: model}
}

// Summarize condenses the customer's previous summary plus accumulated
// history into a new summary, stores it and clears the history buffer.
// Returns the new summary.
func (s *Service) Summarize(ctx context.Context, customerID int64) (string, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("load customer %d: %w", customerID, err)
	}
	if strings.TrimSpace(customer.ConversationHistory) == "" {
		return customer.ConversationSummary, nil
	}

	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(customer)},
		},
		Model: s.model,
	})
	if err != nil {
		return "", fmt.Errorf("summarize customer %d: %w", customerID, err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("summarize customer %d: model returned empty summary", customerID)
	}

	if err := s.customers.ReplaceSummary(ctx, customerID, summary); err != nil {
		return "", fmt.Errorf("store summary for customer %d: %w", customerID, err)
	}

	slog.Info("conversation summarized",
		"customer", customerID,
		"history_chars", len(customer.ConversationHistory),
		"summary_chars", len(summary))
	return summary, nil
}

func buildPrompt(c *store.Customer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer: %s\n", c.Name)
	if c.ConversationSummary != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(c.ConversationSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("Recent conversation:\n")
	b.WriteString(c.ConversationHistory)
	b.WriteString("\nWrite the updated summary.")
	return b.String()
}
