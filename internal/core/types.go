package core

// Action represents the result of a node execution that determines flow control.
type Action string

// Common actions used throughout the framework.
const (
	ActionContinue Action = "continue"
	ActionEnd      Action = "end"
	ActionSuccess  Action = "success"
	ActionFailure  Action = "failure"
	ActionDefault  Action = "default"

	// Agent-loop routing actions. The agent package adds further terminal
	// actions (max_steps, budget_exceeded, timeout, interrupted) of this
	// same type — Action is deliberately just a string so callers can
	// extend the routing vocabulary without touching this package.
	ActionTool   Action = "tool"
	ActionAnswer Action = "answer"
)
