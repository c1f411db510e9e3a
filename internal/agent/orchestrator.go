package agent

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/kakak/internal/config"
	"github.com/nextlevelbuilder/kakak/internal/providers"
	"github.com/nextlevelbuilder/kakak/internal/store"
	"github.com/nextlevelbuilder/kakak/internal/tools"
)

// Specialist agent names, also the routable names under /v1/agents/{name}.
const (
	AgentOrchestrator = "orchestrator"
	AgentChat         = "chat_agent"
	AgentScheduler    = "scheduler_agent"
	AgentTicketing    = "ticketing_agent"
	AgentWebSearch    = "web_search_agent"
	AgentDailyDigest  = "daily_digest_agent"
)

// Deps are the external capabilities the agent tree needs.
type Deps struct {
	Provider providers.Provider
	Tickets  store.TicketStore
	Sender   tools.Sender
	Calendar tools.CalendarClient
	KB       []tools.KBEntry
	Company  config.CompanyConfig
	Agents   config.AgentsConfig
}

// Orchestrator builds and runs the agent tree. It implements Invoker: the
// userID passed to Invoke is the customer's chat id, and outbound tools are
// bound to that chat for the duration of the call.
type Orchestrator struct {
	deps Deps
}

func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Invoke runs the full orchestrator tree for one customer turn.
func (o *Orchestrator) Invoke(ctx context.Context, instruction, userID string) (string, error) {
	loop, err := o.Agent(AgentOrchestrator, userID)
	if err != nil {
		return "", err
	}
	return loop.Invoke(ctx, instruction, userID)
}

// Agent builds the named agent bound to the given chat id. Used by Invoke
// and by the direct-invoke HTTP endpoint.
func (o *Orchestrator) Agent(name, chatID string) (*Loop, error) {
	switch name {
	case AgentOrchestrator:
		return o.orchestratorLoop(chatID), nil
	case AgentChat:
		return o.chatLoop(chatID), nil
	case AgentScheduler:
		return o.schedulerLoop(), nil
	case AgentTicketing:
		return o.ticketingLoop(), nil
	case AgentWebSearch:
		return o.webSearchLoop(), nil
	case AgentDailyDigest:
		return o.digestLoop(chatID), nil
	default:
		return nil, fmt.Errorf("unknown agent %q", name)
	}
}

// AgentNames returns the routable agent names.
func AgentNames() []string {
	return []string{AgentOrchestrator, AgentChat, AgentScheduler, AgentTicketing, AgentWebSearch, AgentDailyDigest}
}

func (o *Orchestrator) loop(name, prompt string, reg *tools.Registry) *Loop {
	return NewLoop(LoopConfig{
		Name:          name,
		Provider:      o.deps.Provider,
		Model:         o.deps.Agents.Model,
		SystemPrompt:  prompt,
		Tools:         reg,
		MaxIterations: o.deps.Agents.MaxToolIterations,
		Options:       o.options(),
	})
}

func (o *Orchestrator) options() map[string]any {
	opts := make(map[string]any)
	if o.deps.Agents.Temperature > 0 {
		opts["temperature"] = o.deps.Agents.Temperature
	}
	if o.deps.Agents.MaxTokens > 0 {
		opts["max_tokens"] = o.deps.Agents.MaxTokens
	}
	return opts
}

func (o *Orchestrator) orchestratorLoop(chatID string) *Loop {
	reg := tools.NewRegistry()
	reg.Register(tools.NewCurrentTimeTool(o.deps.Company.Timezone))
	reg.Register(newAgentTool(o.chatLoop(chatID),
		"Converse with the customer: answer questions, look up the knowledge base and send the reply."))
	reg.Register(newAgentTool(o.schedulerLoop(),
		"Book or look up calendar appointments for the customer."))
	reg.Register(newAgentTool(o.ticketingLoop(),
		"File or update support tickets for reported issues."))
	reg.Register(newAgentTool(o.webSearchLoop(),
		"Research current information on the web."))
	return o.loop(AgentOrchestrator, orchestratorPrompt(o.deps.Company), reg)
}

func (o *Orchestrator) chatLoop(chatID string) *Loop {
	reg := tools.NewRegistry()
	reg.Register(tools.NewSendMessageTool(o.deps.Sender, chatID))
	reg.Register(tools.NewKBSearchTool(o.deps.KB))
	return o.loop(AgentChat, chatAgentPrompt(o.deps.Company), reg)
}

func (o *Orchestrator) schedulerLoop() *Loop {
	reg := tools.NewRegistry()
	reg.Register(tools.NewCurrentTimeTool(o.deps.Company.Timezone))
	reg.Register(tools.NewListEventsTool(o.deps.Calendar))
	reg.Register(tools.NewCreateEventTool(o.deps.Calendar))
	return o.loop(AgentScheduler, schedulerAgentPrompt(o.deps.Company), reg)
}

func (o *Orchestrator) ticketingLoop() *Loop {
	reg := tools.NewRegistry()
	reg.Register(tools.NewCreateTicketTool(o.deps.Tickets))
	reg.Register(tools.NewUpdateTicketTool(o.deps.Tickets))
	reg.Register(tools.NewListTicketsTool(o.deps.Tickets))
	return o.loop(AgentTicketing, ticketingAgentPrompt(o.deps.Company), reg)
}

func (o *Orchestrator) webSearchLoop() *Loop {
	reg := tools.NewRegistry()
	reg.Register(tools.NewWebSearchTool())
	return o.loop(AgentWebSearch, webSearchAgentPrompt(o.deps.Company), reg)
}

func (o *Orchestrator) digestLoop(chatID string) *Loop {
	reg := tools.NewRegistry()
	reg.Register(tools.NewListTicketsTool(o.deps.Tickets))
	reg.Register(tools.NewSendMessageTool(o.deps.Sender, chatID))
	return o.loop(AgentDailyDigest, digestAgentPrompt(o.deps.Company), reg)
}
