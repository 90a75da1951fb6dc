package agent

import "github.com/archrt/architect/internal/core"

// Terminal routing actions for the agent loop's Flow, extending core.Action
// per core's own extension-point comment. Each corresponds to one of
// AgentState's non-running statuses.
const (
	ActionMaxSteps       core.Action = "max_steps"
	ActionBudgetExceeded core.Action = "budget_exceeded"
	ActionTimeout        core.Action = "timeout"
	ActionInterrupted    core.Action = "interrupted"
	ActionFailed         core.Action = "failed"
)
