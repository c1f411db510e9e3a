package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/kakak/internal/config"
	"github.com/nextlevelbuilder/kakak/internal/providers"
	"github.com/nextlevelbuilder/kakak/internal/tools"
)

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	responses []*providers.ChatResponse
	requests  []providers.ChatRequest
}

func (p *scriptedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if len(p.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) DefaultModel() string { return "scripted" }
func (p *scriptedProvider) Name() string         { return "scripted" }

type echoTool struct{ calls []string }

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "echoes input" }
func (t *echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (t *echoTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	text, _ := args["text"].(string)
	t.calls = append(t.calls, text)
	return tools.NewResult("echo: " + text)
}

func TestLoopToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{
			FinishReason: "tool_calls",
			ToolCalls: []providers.ToolCall{
				{ID: "tc1", Name: "echo", Arguments: map[string]any{"text": "hi"}},
			},
		},
		{Content: "done", FinishReason: "stop"},
	}}

	echo := &echoTool{}
	reg := tools.NewRegistry()
	reg.Register(echo)

	loop := NewLoop(LoopConfig{Name: "test", Provider: provider, SystemPrompt: "sys", Tools: reg})
	answer, err := loop.Invoke(context.Background(), "say hi", "u1")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if answer != "done" {
		t.Errorf("answer = %q", answer)
	}
	if len(echo.calls) != 1 || echo.calls[0] != "hi" {
		t.Errorf("tool calls = %v", echo.calls)
	}

	// Second request carries the assistant tool call and the tool result.
	if len(provider.requests) != 2 {
		t.Fatalf("requests = %d", len(provider.requests))
	}
	msgs := provider.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != "tool" || last.ToolCallID != "tc1" || last.Content != "echo: hi" {
		t.Errorf("tool message = %+v", last)
	}
}

func TestLoopIterationBound(t *testing.T) {
	// Provider that always demands another tool call.
	endless := make([]*providers.ChatResponse, 5)
	for i := range endless {
		endless[i] = &providers.ChatResponse{
			FinishReason: "tool_calls",
			ToolCalls:    []providers.ToolCall{{ID: "x", Name: "echo", Arguments: map[string]any{}}},
		}
	}
	reg := tools.NewRegistry()
	reg.Register(&echoTool{})

	loop := NewLoop(LoopConfig{Name: "test", Provider: &scriptedProvider{responses: endless}, Tools: reg, MaxIterations: 3})
	_, err := loop.Invoke(context.Background(), "loop forever", "u1")
	if err == nil || !strings.Contains(err.Error(), "3 iterations") {
		t.Fatalf("err = %v, want iteration bound", err)
	}
}

func TestLoopContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop(LoopConfig{Name: "test", Provider: &scriptedProvider{}})
	_, err := loop.Invoke(ctx, "hello", "u1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestOrchestratorDelegatesToChat(t *testing.T) {
	// Orchestrator delegates to chat_agent; chat_agent sends the reply and
	// finishes; orchestrator summarizes. The scripted responses interleave
	// because the sub-loop shares the provider.
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{ // orchestrator: delegate
			FinishReason: "tool_calls",
			ToolCalls: []providers.ToolCall{
				{ID: "d1", Name: AgentChat, Arguments: map[string]any{"instruction": "greet Ann back"}},
			},
		},
		{ // chat agent: send the message
			FinishReason: "tool_calls",
			ToolCalls: []providers.ToolCall{
				{ID: "s1", Name: "send_message", Arguments: map[string]any{"text": "Hi Ann!"}},
			},
		},
		{Content: "replied to the customer", FinishReason: "stop"}, // chat agent final
		{Content: "handled greeting", FinishReason: "stop"},        // orchestrator final
	}}

	sender := &recordingSender{}
	orch := NewOrchestrator(Deps{
		Provider: provider,
		Sender:   sender,
		Company:  config.CompanyConfig{Name: "Acme"},
	})

	answer, err := orch.Invoke(context.Background(), "Customer Ann says: Hi", "555")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if answer != "handled greeting" {
		t.Errorf("answer = %q", answer)
	}
	if len(sender.sent) != 1 || sender.sent[0].chatID != "555" || sender.sent[0].text != "Hi Ann!" {
		t.Errorf("sent = %+v", sender.sent)
	}
}

func TestOrchestratorUnknownAgent(t *testing.T) {
	orch := NewOrchestrator(Deps{Provider: &scriptedProvider{}})
	if _, err := orch.Agent("nope", "1"); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

type sentMsg struct{ chatID, text string }

type recordingSender struct{ sent []sentMsg }

func (s *recordingSender) Send(ctx context.Context, chatID, text string) error {
	s.sent = append(s.sent, sentMsg{chatID, text})
	return nil
}
