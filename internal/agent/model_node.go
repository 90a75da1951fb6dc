package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/archrt/architect/internal/core"
	"github.com/archrt/architect/internal/cost"
	"github.com/archrt/architect/internal/llm"
	"github.com/archrt/architect/internal/tool"
)

// closeStepMargin is how many steps of headroom count as "approaching"
// max_steps for the purpose of close-instruction injection.
const closeStepMargin = 2

// CancelFunc reports whether the loop's cooperative cancellation signal has
// fired. Checked at every loop boundary per spec.md §5.
type CancelFunc func() bool

// defaultCloseTemplates are the per-reason system reminders appended when a
// soft limit is approached. Callers may override via ModelNode.CloseTemplates.
var defaultCloseTemplates = map[string]string{
	"steps":   "You are close to the step limit for this task. Wrap up: summarize what you've verified and provide your final answer within the next step or two.",
	"context": "The conversation is approaching the model's context window. Finish the current task concisely rather than continuing to explore.",
	"loop":    "You appear to be repeating the same action without making progress. Stop, reconsider your approach, and either try something different or report what's blocking you.",
}

type modelPrepItem struct {
	Messages []llm.Message
	Tools    []llm.ToolDefinition
}

type modelExecResult struct {
	Reply llm.Reply
	Err   error
}

// ModelNode is the Prep/Exec/Post node that drives one model turn: checks
// termination predicates, calls the ModelAdapter, records cost, and decides
// whether the loop continues into tool execution or terminates.
type ModelNode struct {
	Adapter      *ModelAdapter
	Registry     *tool.Registry
	Model        string // billed model name, passed to cost.CostTracker.Record
	ContextGuard *ContextGuard
	LoopDetector *LoopDetector
	Cancel       CancelFunc // nil = never cancelled

	CloseTemplates map[string]string // reason → message; falls back to defaultCloseTemplates
}

func (n *ModelNode) template(reason string) string {
	if m, ok := n.CloseTemplates[reason]; ok {
		return m
	}
	return defaultCloseTemplates[reason]
}

// Prep checks termination predicates in order (cancellation, max_steps,
// deadline) and, if none fire, injects at most one close-instruction
// reminder per soft-limit reason before returning the single work item for
// Exec. Returning an empty slice signals Post to finalize with whatever
// terminal Status Prep already set on state.
func (n *ModelNode) Prep(state *AgentState) []modelPrepItem {
	if n.Cancel != nil && n.Cancel() {
		state.Status = StatusInterrupted
		return nil
	}
	if state.MaxSteps > 0 && state.CurrentStep >= state.MaxSteps {
		state.Status = StatusMaxSteps
		return nil
	}
	if !state.Deadline.IsZero() && !time.Now().Before(state.Deadline) {
		state.Status = StatusTimeout
		return nil
	}

	n.maybeInjectCloseReminder(state)

	tools := schemasFor(n.Registry, state.AllowedTools)
	return []modelPrepItem{{Messages: append([]llm.Message{}, state.Messages...), Tools: tools}}
}

func (n *ModelNode) maybeInjectCloseReminder(state *AgentState) {
	if state.ReminderSent == nil {
		state.ReminderSent = make(map[string]bool)
	}

	if state.MaxSteps > 0 && !state.ReminderSent["steps"] {
		remaining := state.MaxSteps - state.CurrentStep
		if remaining > 0 && remaining <= closeStepMargin {
			state.Messages = append(state.Messages, llm.Message{Role: llm.RoleSystem, Content: n.template("steps")})
			state.ReminderSent["steps"] = true
		}
	}

	if n.ContextGuard != nil && !state.ReminderSent["context"] {
		tokens := estimateMessages(state.Messages)
		if n.ContextGuard.CheckTokens(tokens) >= ContextWarning {
			state.Messages = append(state.Messages, llm.Message{Role: llm.RoleSystem, Content: n.template("context")})
			state.ReminderSent["context"] = true
		}
	}

	if n.LoopDetector != nil && !state.ReminderSent["loop"] {
		if r := n.LoopDetector.Check(toolEventsFromSteps(state.Steps)); r.Detected {
			state.Messages = append(state.Messages, llm.Message{Role: llm.RoleSystem, Content: n.template("loop") + " (" + r.Description + ")"})
			state.ReminderSent["loop"] = true
		}
	}
}

// estimateMessages sums estimateTokens across every message's content, a
// cheap stand-in for a real tokenizer — sufficient for the threshold checks
// ContextGuard performs.
func estimateMessages(messages []llm.Message) int {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
	}
	return estimateTokens(sb.String())
}

// toolEventsFromSteps flattens every tool call issued so far, across all
// steps, into the ToolEvent history LoopDetector expects.
func toolEventsFromSteps(steps []Step) []ToolEvent {
	var events []ToolEvent
	for _, s := range steps {
		for _, call := range s.Reply.ToolCalls {
			res, ok := s.ToolResults[call.ID]
			events = append(events, ToolEvent{
				ToolName: call.Name,
				Input:    string(call.Arguments),
				IsError:  ok && res.Error != "",
			})
		}
	}
	return events
}

// Exec dispatches the single work item to the ModelAdapter. Retries are the
// adapter/backend's own responsibility (see DESIGN.md); ModelNode is
// constructed with maxRetries=0 so a returned error is terminal.
func (n *ModelNode) Exec(ctx context.Context, item modelPrepItem) (modelExecResult, error) {
	reply, err := n.Adapter.Complete(ctx, item.Messages, item.Tools)
	return modelExecResult{Reply: reply, Err: err}, err
}

// ExecFallback packages a terminal Exec error into a modelExecResult Post
// can recognize.
func (n *ModelNode) ExecFallback(err error) modelExecResult {
	return modelExecResult{Err: err}
}

// Post records cost, appends the assistant message and Step, and routes to
// ActionTool (more work to do), ActionSuccess (content-only reply), or one
// of the terminal actions Prep already decided.
func (n *ModelNode) Post(state *AgentState, prepRes []modelPrepItem, execResults ...modelExecResult) core.Action {
	if len(prepRes) == 0 {
		switch state.Status {
		case StatusInterrupted:
			return ActionInterrupted
		case StatusMaxSteps:
			return ActionMaxSteps
		case StatusTimeout:
			return ActionTimeout
		default:
			return core.ActionFailure
		}
	}

	result := execResults[0]
	if result.Err != nil {
		state.Status = StatusFailed
		return ActionFailed
	}

	reply := result.Reply
	state.CurrentStep++
	step := Step{Number: state.CurrentStep, Reply: reply, ToolResults: make(map[string]tool.ToolResult)}

	if state.Cost != nil {
		err := state.Cost.Record(state.CurrentStep, n.Model, reply.Usage, state.Source)
		if err != nil && errors.Is(err, cost.ErrBudgetExceeded) {
			state.Messages = append(state.Messages, llm.Message{Role: llm.RoleAssistant, Content: reply.Content, ToolCalls: reply.ToolCalls})
			state.Steps = append(state.Steps, step)
			state.Status = StatusBudgetExceeded
			return ActionBudgetExceeded
		}
	}

	state.Messages = append(state.Messages, llm.Message{Role: llm.RoleAssistant, Content: reply.Content, ToolCalls: reply.ToolCalls})
	state.Steps = append(state.Steps, step)

	if len(reply.ToolCalls) == 0 {
		state.FinalOutput = reply.Content
		state.Status = StatusSuccess
		return core.ActionSuccess
	}
	return core.ActionTool
}
