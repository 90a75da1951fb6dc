package agent

import (
	"time"

	"github.com/archrt/architect/internal/cost"
	"github.com/archrt/architect/internal/execengine"
	"github.com/archrt/architect/internal/llm"
	"github.com/archrt/architect/internal/tool"
)

// Status is one of AgentState's terminal or running values.
type Status string

const (
	StatusRunning        Status = "running"
	StatusSuccess        Status = "success"
	StatusFailed         Status = "failed"
	StatusInterrupted    Status = "interrupted"
	StatusBudgetExceeded Status = "budget_exceeded"
	StatusMaxSteps       Status = "max_steps"
	StatusTimeout        Status = "timeout"
)

// Step is one numbered turn of the loop: the model's reply (with the tool
// calls it issued and its token usage) and the tool results collected for
// those calls. ModelNode appends the Step; ToolsNode then fills its
// ToolResults in place.
type Step struct {
	Number      int
	Reply       llm.Reply
	ToolResults map[string]tool.ToolResult // keyed by ToolCall.ID
}

// AgentState is spec.md §3's AgentState: created once at loop start and
// mutated only by AgentLoop. Once Status leaves running the only further
// change is Loop.Run appending the dry-run plan summary to FinalOutput.
type AgentState struct {
	Status      Status
	CurrentStep int
	Steps       []Step
	Messages    []llm.Message
	FinalOutput string

	// Cost and DryRun are optional per spec; either may be nil.
	Cost   *cost.CostTracker
	DryRun *execengine.DryRunTracker

	// Config, fixed for the lifetime of the loop.
	MaxSteps     int
	Deadline     time.Time // zero value = no whole-loop deadline
	AllowedTools []string
	Source       string // billed-under label for CostTracker (profile name, "plan"/"build")

	// ReminderSent dedupes close-instruction injection per soft-limit
	// reason ("steps", "context", "loop") so a reminder is appended at most
	// once per loop run, not on every remaining step.
	ReminderSent map[string]bool
}

// NewAgentState creates a running AgentState seeded with the initial
// message list produced by ContextBuilder.
func NewAgentState(messages []llm.Message, maxSteps int, allowedTools []string, source string) *AgentState {
	return &AgentState{
		Status:       StatusRunning,
		Messages:     messages,
		MaxSteps:     maxSteps,
		AllowedTools: allowedTools,
		Source:       source,
	}
}

// Terminal reports whether the loop has left the running state.
func (s *AgentState) Terminal() bool { return s.Status != StatusRunning }

// Registry-scoped helper kept here (rather than in execengine) since it only
// makes sense once we have an AgentState's AllowedTools to hand it.
func schemasFor(reg *tool.Registry, allowed []string) []llm.ToolDefinition {
	if len(allowed) == 0 {
		return reg.GenerateToolDefinitions()
	}
	return reg.SchemasFor(allowed)
}
