package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/kakak/internal/providers"
	"github.com/nextlevelbuilder/kakak/internal/tools"
)

const defaultMaxIterations = 10

// Loop is one agent execution loop. Think → Act → Observe cycle with tool
// execution until the model produces a final text answer.
type Loop struct {
	name          string
	provider      providers.Provider
	model         string
	systemPrompt  string
	registry      *tools.Registry
	maxIterations int
	options       map[string]any
}

// LoopConfig configures a new Loop.
type LoopConfig struct {
	Name          string
	Provider      providers.Provider
	Model         string
	SystemPrompt  string
	Tools         *tools.Registry
	MaxIterations int
	Options       map[string]any
}

func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		name:          cfg.Name,
		provider:      cfg.Provider,
		model:         cfg.Model,
		systemPrompt:  cfg.SystemPrompt,
		registry:      cfg.Tools,
		maxIterations: cfg.MaxIterations,
		options:       cfg.Options,
	}
	if l.registry == nil {
		l.registry = tools.NewRegistry()
	}
	if l.maxIterations <= 0 {
		l.maxIterations = defaultMaxIterations
	}
	return l
}

func (l *Loop) Name() string { return l.name }

// Invoke implements Invoker.
func (l *Loop) Invoke(ctx context.Context, instruction, userID string) (string, error) {
	runID := uuid.NewString()

	tracer := otel.Tracer("kakak/agent")
	ctx, span := tracer.Start(ctx, "agent.run")
	span.SetAttributes(
		attribute.String("agent.name", l.name),
		attribute.String("agent.run_id", runID),
		attribute.String("agent.user_id", userID),
	)
	defer span.End()

	result, err := l.run(ctx, runID, instruction, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return result, nil
}

func (l *Loop) run(ctx context.Context, runID, instruction, userID string) (string, error) {
	start := time.Now()
	slog.Info("agent run started", "agent", l.name, "run", runID, "user", userID, "instruction_len", len(instruction))

	messages := []providers.Message{
		{Role: "system", Content: l.systemPrompt},
		{Role: "user", Content: instruction},
	}
	defs := l.registry.Definitions()

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		llmCtx, llmSpan := otel.Tracer("kakak/agent").Start(ctx, "llm.chat")
		llmSpan.SetAttributes(
			attribute.String("llm.provider", l.provider.Name()),
			attribute.Int("llm.iteration", iteration),
		)
		resp, err := l.provider.Chat(llmCtx, providers.ChatRequest{
			Messages: messages,
			Tools:    defs,
			Model:    l.model,
			Options:  l.options,
		})
		if err != nil {
			llmSpan.RecordError(err)
			llmSpan.SetStatus(codes.Error, err.Error())
			llmSpan.End()
			return "", fmt.Errorf("agent %s: llm call failed: %w", l.name, err)
		}
		llmSpan.End()

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			slog.Info("agent run completed",
				"agent", l.name, "run", runID, "user", userID,
				"iterations", iteration, "duration", time.Since(start).Round(time.Millisecond))
			return resp.Content, nil
		}

		for _, tc := range resp.ToolCalls {
			slog.Info("tool call", "agent", l.name, "tool", tc.Name)
			result := l.registry.Execute(ctx, tc.Name, tc.Arguments)
			if result.IsError {
				errMsg := result.ForLLM
				if len(errMsg) > 200 {
					errMsg = errMsg[:200] + "..."
				}
				slog.Warn("tool error", "agent", l.name, "tool", tc.Name, "error", errMsg)
			}
			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    result.ForLLM,
				ToolCallID: tc.ID,
			})
		}
	}

	return "", fmt.Errorf("agent %s: no final answer after %d iterations", l.name, l.maxIterations)
}
