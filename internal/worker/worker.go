// Package worker implements the queue consumer: claim a message, run the
// agent, resolve the row.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/kakak/internal/agent"
	"github.com/nextlevelbuilder/kakak/internal/store"
)

// Summarizer condenses a customer's history once it grows past the
// threshold. Satisfied by summarize.Service.
type Summarizer interface {
	Summarize(ctx context.Context, customerID int64) (string, error)
}

// Config tunes one worker loop.
type Config struct {
	PollInterval     time.Duration // idle sleep between empty polls
	InvokeTimeout    time.Duration // upper bound on one agent run
	HistoryThreshold int           // history chars before summarization
}

// Worker drains the incoming message queue. Each message is claimed
// at most once: success deletes the row, any processing failure marks it
// failed and leaves remediation to the requeue endpoint.
type Worker struct {
	messages   store.MessageStore
	customers  store.CustomerStore
	invoker    agent.Invoker
	summarizer Summarizer
	cfg        Config

	locks *keyedMutex
	now   func() time.Time
}

func New(messages store.MessageStore, customers store.CustomerStore, invoker agent.Invoker, summarizer Summarizer, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = 2 * time.Minute
	}
	if cfg.HistoryThreshold <= 0 {
		cfg.HistoryThreshold = 4000
	}
	return &Worker{
		messages:   messages,
		customers:  customers,
		invoker:    invoker,
		summarizer: summarizer,
		cfg:        cfg,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// Run polls the queue until ctx is cancelled. Claim errors and processing
// failures are logged; the loop itself never exits on them.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("worker started",
		"poll_interval", w.cfg.PollInterval,
		"invoke_timeout", w.cfg.InvokeTimeout,
		"history_threshold", w.cfg.HistoryThreshold)

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("worker stopped")
			return err
		}

		msg, err := w.messages.ClaimNext(ctx)
		switch {
		case errors.Is(err, store.ErrNoMessages):
			if !w.sleep(ctx, w.cfg.PollInterval) {
				slog.Info("worker stopped")
				return ctx.Err()
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				slog.Info("worker stopped")
				return ctx.Err()
			}
			slog.Error("claim failed", "error", err)
			if !w.sleep(ctx, w.cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		w.process(ctx, msg)
	}
}

// ProcessOne claims and processes a single message. Returns
// store.ErrNoMessages when the queue is empty.
func (w *Worker) ProcessOne(ctx context.Context) error {
	msg, err := w.messages.ClaimNext(ctx)
	if err != nil {
		return err
	}
	w.process(ctx, msg)
	return nil
}

func (w *Worker) process(ctx context.Context, msg *store.IncomingMessage) {
	tracer := otel.Tracer("kakak/worker")
	ctx, span := tracer.Start(ctx, "worker.process",
		trace.WithAttributes(attribute.Int64("message.id", msg.ID)))
	defer span.End()

	start := w.now()
	slog.Info("message claimed", "message", msg.ID)

	inbound, err := parsePayload(msg.Payload, w.now)
	if err != nil {
		// Malformed payloads are dropped: no customer row, no agent call.
		slog.Warn("malformed payload dropped", "message", msg.ID, "error", err)
		span.SetAttributes(attribute.Bool("message.malformed", true))
		if delErr := w.messages.Delete(ctx, msg.ID); delErr != nil {
			slog.Error("delete malformed message failed", "message", msg.ID, "error", delErr)
		}
		return
	}
	span.SetAttributes(attribute.String("message.chat_id", inbound.ChatID))

	unlock := w.locks.Lock(inbound.ChatID)
	defer unlock()

	if err := w.handle(ctx, msg.ID, inbound); err != nil {
		slog.Error("message processing failed", "message", msg.ID, "chat", inbound.ChatID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if failErr := w.messages.MarkFailed(ctx, msg.ID); failErr != nil {
			slog.Error("mark failed errored", "message", msg.ID, "error", failErr)
		}
		return
	}

	if err := w.messages.Delete(ctx, msg.ID); err != nil {
		slog.Error("delete processed message failed", "message", msg.ID, "error", err)
	}
	slog.Info("message processed", "message", msg.ID, "chat", inbound.ChatID,
		"duration", w.now().Sub(start).Round(time.Millisecond))
}

// handle runs the customer upsert, history append, agent invocation and the
// summarization check. Any returned error sends the message to "failed".
func (w *Worker) handle(ctx context.Context, msgID int64, in *inboundMessage) error {
	customer, err := w.customers.GetOrCreate(ctx, in.ChatID, in.Name)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	if err := w.customers.AppendHistory(ctx, customer.ID, historyLine(in.Name, in.Timestamp, in.Text)); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	instruction := buildInstruction(customer, in)

	invokeCtx, cancel := context.WithTimeout(ctx, w.cfg.InvokeTimeout)
	answer, err := w.invoker.Invoke(invokeCtx, instruction, in.ChatID)
	cancel()
	if err != nil {
		return fmt.Errorf("agent invoke: %w", err)
	}

	if answer != "" {
		if err := w.customers.AppendHistory(ctx, customer.ID, historyLine("Agent", w.now(), answer)); err != nil {
			// The turn already succeeded from the customer's point of view.
			slog.Warn("append agent history failed", "message", msgID, "customer", customer.ID, "error", err)
		}
	}

	w.maybeSummarize(ctx, customer.ID)
	return nil
}

// maybeSummarize triggers summarization when the history buffer exceeds the
// threshold. Failures are logged only: the message is already resolved.
func (w *Worker) maybeSummarize(ctx context.Context, customerID int64) {
	if w.summarizer == nil {
		return
	}
	customer, err := w.customers.Get(ctx, customerID)
	if err != nil {
		slog.Warn("summarize check failed", "customer", customerID, "error", err)
		return
	}
	if len(customer.ConversationHistory) <= w.cfg.HistoryThreshold {
		return
	}
	if _, err := w.summarizer.Summarize(ctx, customerID); err != nil {
		slog.Warn("summarization failed", "customer", customerID, "error", err)
	}
}

// buildInstruction assembles the orchestrator instruction: who the customer
// is, what the conversation looked like so far and what they just said.
func buildInstruction(c *store.Customer, in *inboundMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer %s (chat id %s) sent a new message.\n\n", c.Name, c.ChatID)
	if c.ConversationSummary != "" {
		b.WriteString("Conversation summary so far:\n")
		b.WriteString(c.ConversationSummary)
		b.WriteString("\n\n")
	}
	if c.ConversationHistory != "" {
		b.WriteString("Recent conversation:\n")
		b.WriteString(c.ConversationHistory)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "New message:\n%s\n\nHandle this message.", in.Text)
	return b.String()
}

// sleep waits for d or until ctx is cancelled. Reports false on cancel.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
