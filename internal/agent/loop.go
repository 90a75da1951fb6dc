package agent

import (
	"context"

	"github.com/archrt/architect/internal/core"
	"github.com/archrt/architect/internal/tool"
)

// Loop is spec.md §4.10's AgentLoop: a two-node Flow (ModelNode ⇄
// ToolsNode) that owns an AgentState exclusively for its lifetime.
type Loop struct {
	flow *core.Flow[AgentState]
}

// NewLoop wires modelNode and toolsNode into a Flow: ActionTool routes from
// the model to tools, ActionContinue routes from tools back to the model.
// Every other action the two nodes can return (success/failed/max_steps/
// budget_exceeded/timeout/interrupted) has no registered successor, so the
// Flow stops there — that absence of a next node *is* the termination
// mechanism, not a special case of it.
func NewLoop(modelNode *ModelNode, toolsNode *ToolsNode, maxFlowIterations int) *Loop {
	mn := core.NewNode[AgentState, modelPrepItem, modelExecResult](modelNode, 0)
	tn := core.NewNode[AgentState, toolCallItem, tool.ToolResult](toolsNode, 0)

	mn.AddSuccessor(tn, core.ActionTool)
	tn.AddSuccessor(mn, core.ActionContinue)

	flow := core.NewFlow[AgentState](mn)
	if maxFlowIterations > 0 {
		flow.WithMaxIterations(maxFlowIterations)
	}
	return &Loop{flow: flow}
}

// Run drives the loop to completion (or cancellation/timeout) and returns
// state's final Status. state is mutated in place; the caller retains
// ownership and should not share it with another Loop.
//
// When state.DryRun is set, the recorded plan is appended to FinalOutput so
// callers that only look at state (e.g. mixed.Runner's phases) still see it,
// not just callers that kept their own reference to the tracker.
func (l *Loop) Run(ctx context.Context, state *AgentState) Status {
	l.flow.Run(ctx, state)
	if state.DryRun != nil {
		if state.FinalOutput != "" {
			state.FinalOutput += "\n\n"
		}
		state.FinalOutput += state.DryRun.GetPlanSummary()
	}
	return state.Status
}
