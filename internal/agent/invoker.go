// Package agent implements the orchestrator and specialist agent loops.
package agent

import "context"

// Invoker runs one agent turn for a user. The queue worker depends only on
// this interface so tests can substitute a scripted implementation.
type Invoker interface {
	Invoke(ctx context.Context, instruction, userID string) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, instruction, userID string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, instruction, userID string) (string, error) {
	return f(ctx, instruction, userID)
}
