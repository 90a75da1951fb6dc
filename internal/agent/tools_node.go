package agent

import (
	"context"

	"github.com/archrt/architect/internal/core"
	"github.com/archrt/architect/internal/execengine"
	"github.com/archrt/architect/internal/llm"
	"github.com/archrt/architect/internal/tool"
)

type toolCallItem struct {
	Step int
	Call llm.ToolCall
}

// ToolsNode executes every tool call from the latest Step, in emission
// order, via the shared ExecutionEngine. Node's own batch-exec loop already
// runs Prep items one at a time in order (see core.Node.Run), which is what
// gives us spec.md §5's "tool-calls within one step execute sequentially"
// guarantee for free.
type ToolsNode struct {
	Engine *execengine.Engine
}

// Prep returns one work item per tool call in the most recently appended
// Step, in the order the model emitted them.
func (n *ToolsNode) Prep(state *AgentState) []toolCallItem {
	if len(state.Steps) == 0 {
		return nil
	}
	last := state.Steps[len(state.Steps)-1]
	items := make([]toolCallItem, 0, len(last.Reply.ToolCalls))
	for _, call := range last.Reply.ToolCalls {
		items = append(items, toolCallItem{Step: state.CurrentStep, Call: call})
	}
	return items
}

// Exec runs one tool call through the engine. ExecutionEngine never returns
// a Go error for a tool-level failure — it is always encoded in the
// returned ToolResult — so the error return here is always nil in practice.
func (n *ToolsNode) Exec(ctx context.Context, item toolCallItem) (tool.ToolResult, error) {
	return n.Engine.Execute(ctx, item.Step, item.Call.Name, item.Call.Arguments), nil
}

// ExecFallback satisfies the BaseNode interface; Exec never actually errors.
func (n *ToolsNode) ExecFallback(err error) tool.ToolResult {
	return tool.ToolResult{Error: err.Error()}
}

// Post records each tool result against the current Step and appends one
// Role=tool message per call id, in order — preserving the assistant-tool-
// call/tool-result pairing invariant even for failed or refused calls, then
// routes back to the model for the next turn.
func (n *ToolsNode) Post(state *AgentState, prepRes []toolCallItem, execResults ...tool.ToolResult) core.Action {
	if len(prepRes) == 0 || len(state.Steps) == 0 {
		return core.ActionContinue
	}

	lastIdx := len(state.Steps) - 1
	for i, item := range prepRes {
		res := execResults[i]
		state.Steps[lastIdx].ToolResults[item.Call.ID] = res
		content := res.Output
		if res.Error != "" {
			content = res.Error
		}
		state.Messages = append(state.Messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    content,
			ToolCallID: item.Call.ID,
			Name:       item.Call.Name,
		})
	}
	return core.ActionContinue
}
