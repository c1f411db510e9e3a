package agent

import (
	"context"
	"strings"

	"github.com/nextlevelbuilder/kakak/internal/tools"
)

// agentTool exposes a specialist Loop as a tool on the orchestrator's
// registry, mirroring an agents-as-tools delegation tree.
type agentTool struct {
	loop        *Loop
	description string
}

func newAgentTool(loop *Loop, description string) *agentTool {
	return &agentTool{loop: loop, description: description}
}

func (t *agentTool) Name() string        { return t.loop.Name() }
func (t *agentTool) Description() string { return t.description }

func (t *agentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"instruction": map[string]interface{}{
				"type":        "string",
				"description": "Task for the specialist, with all context it needs",
			},
		},
		"required": []string{"instruction"},
	}
}

func (t *agentTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	instruction, _ := args["instruction"].(string)
	if strings.TrimSpace(instruction) == "" {
		return tools.ErrorResult("instruction is required")
	}
	// userID propagation is not needed below the orchestrator; tools that
	// address the customer are bound to the chat at construction time.
	answer, err := t.loop.Invoke(ctx, instruction, "")
	if err != nil {
		return tools.ErrorResult("specialist failed: " + err.Error()).WithError(err)
	}
	return tools.NewResult(answer)
}
