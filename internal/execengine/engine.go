// Package execengine implements ExecutionEngine: the single choke point
// through which every tool call passes, regardless of whether it came from
// a built-in tool or an MCP adapter. It owns confirmation-mode policy,
// dry-run interception, and per-call structured event emission.
package execengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/archrt/architect/internal/tool"
	"github.com/archrt/architect/internal/util"
	"github.com/archrt/architect/internal/workspace"
)

// summaryMaxRunes bounds how much of a call's raw arguments ends up in an
// Event's ArgsSumm, so a large write or patch body doesn't blow up a log
// line or dry-run plan entry.
const summaryMaxRunes = 200

// ConfirmMode controls when a tool call must be confirmed before running.
type ConfirmMode string

const (
	// ModeYOLO never prompts, including for sensitive tools and sensitive paths.
	ModeYOLO ConfirmMode = "yolo"
	// ModeConfirmSensitive prompts only for sensitive tools or sensitive-path writes.
	ModeConfirmSensitive ConfirmMode = "confirm-sensitive"
	// ModeConfirmAll prompts before every call.
	ModeConfirmAll ConfirmMode = "confirm-all"
)

// writeSet is the set of tool names DryRunTracker intercepts. The
// sensitive-path check is not limited to it: any call with a path argument
// is checked.
var writeSet = map[string]bool{
	"write_file":  true,
	"edit_file":   true,
	"apply_patch": true,
	"delete_file": true,
	"run_command": true,
}

// IsWriteTool reports whether name is in the WRITE set (write/edit/patch/
// delete/run_command) per spec — the set DryRunTracker records.
func IsWriteTool(name string) bool { return writeSet[name] }

// Confirmer asks for user confirmation before a sensitive or dry-run-exempt
// call proceeds. It returns ok=false if the call should be refused — either
// because the user declined, or because stdin is non-interactive.
type Confirmer interface {
	Confirm(ctx context.Context, toolName string, args json.RawMessage) (ok bool, err error)
	// Interactive reports whether this confirmer can actually prompt. A
	// non-interactive confirmer causes ExecutionEngine to refuse any call
	// that would otherwise need a prompt.
	Interactive() bool
}

// AutoApprove is a Confirmer that approves everything and reports itself as
// interactive. Useful for tests and for yolo mode (which never calls it).
type AutoApprove struct{}

func (AutoApprove) Confirm(context.Context, string, json.RawMessage) (bool, error) { return true, nil }
func (AutoApprove) Interactive() bool                                              { return true }

// EventFunc receives one structured event per executed tool call.
type EventFunc func(Event)

// Event is the structured record emitted after every call, regardless of
// outcome.
type Event struct {
	Step      int
	Tool      string
	ArgsSumm  string
	Success   bool
	Duration  time.Duration
}

// argPath pulls the filesystem path argument out of a tool call's
// arguments, for the sensitive-path check. Tools with no path argument (e.g.
// run_command) return ok=false and are judged purely on Tool.Sensitive().
func argPath(args json.RawMessage) (string, bool) {
	var probe struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &probe); err != nil || probe.Path == "" {
		return "", false
	}
	return probe.Path, true
}

// Engine is spec.md §4.5's ExecutionEngine.
type Engine struct {
	registry  *tool.Registry
	workspace *workspace.Workspace
	confirm   Confirmer
	mode      ConfirmMode
	dryRun    bool
	tracker   *DryRunTracker
	onEvent   EventFunc
}

// New creates an Engine. tracker may be nil when dryRun is false.
func New(registry *tool.Registry, ws *workspace.Workspace, confirm Confirmer, mode ConfirmMode, dryRun bool, tracker *DryRunTracker, onEvent EventFunc) *Engine {
	return &Engine{
		registry:  registry,
		workspace: ws,
		confirm:   confirm,
		mode:      mode,
		dryRun:    dryRun,
		tracker:   tracker,
		onEvent:   onEvent,
	}
}

// Execute runs one tool call through the pipeline: resolve, sensitive-path
// check, confirm, dry-run, invoke, emit. The engine does not check args
// against the tool's schema; each tool parses its own arguments in Execute.
//
// Tool-level errors never propagate out of Execute — every failure mode is
// represented as a ToolResult with success carried in Output/Error; Execute
// has no error return.
func (e *Engine) Execute(ctx context.Context, step int, toolName string, args json.RawMessage) tool.ToolResult {
	start := time.Now()
	result := e.execute(ctx, step, toolName, args)
	e.emit(step, toolName, args, result, time.Since(start))
	return result
}

func (e *Engine) execute(ctx context.Context, step int, toolName string, args json.RawMessage) tool.ToolResult {
	t, ok := e.registry.Get(toolName)
	if !ok {
		return tool.ToolResult{Error: fmt.Sprintf("UnknownTool: %q is not registered", toolName)}
	}

	sensitivePath := false
	if p, has := argPath(args); has {
		if resolved, err := e.workspace.Resolve(p); err == nil {
			sensitivePath = e.workspace.IsSensitive(resolved)
		}
	}

	needsPrompt := e.needsConfirmation(t, sensitivePath)

	// Hard refusal: a sensitive-path target is blocked in every mode except
	// yolo, independent of what the confirmer would answer.
	if sensitivePath && e.mode != ModeYOLO {
		return tool.ToolResult{Error: "SensitiveBlocked: target path matches a sensitive pattern and confirmation is required"}
	}

	if needsPrompt {
		if !e.confirm.Interactive() {
			return tool.ToolResult{Error: "ConfirmationRefused: confirmation required but stdin is non-interactive"}
		}
		ok, err := e.confirm.Confirm(ctx, toolName, args)
		if err != nil {
			return tool.ToolResult{Error: fmt.Sprintf("ConfirmationRefused: %v", err)}
		}
		if !ok {
			return tool.ToolResult{Error: "ConfirmationRefused: user declined"}
		}
	}

	if e.dryRun && IsWriteTool(toolName) {
		summary := summarizeCall(toolName, args)
		if e.tracker != nil {
			e.tracker.Record(step, toolName, summary)
		}
		return tool.ToolResult{Output: fmt.Sprintf("[dry-run] planned: %s", summary)}
	}

	res, err := t.Execute(ctx, args)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("ToolExecutionError: %v", err)}
	}
	return res
}

// needsConfirmation computes the effective confirmation requirement for one
// call, per spec.md §4.5 step 3: yolo never prompts; confirm-sensitive
// prompts only for a sensitive tool or a sensitive-path write; confirm-all
// always prompts.
func (e *Engine) needsConfirmation(t tool.Tool, sensitivePath bool) bool {
	switch e.mode {
	case ModeYOLO:
		return false
	case ModeConfirmAll:
		return true
	case ModeConfirmSensitive:
		return t.Sensitive() || sensitivePath
	default:
		return t.Sensitive() || sensitivePath
	}
}

func (e *Engine) emit(step int, toolName string, args json.RawMessage, result tool.ToolResult, d time.Duration) {
	success := result.Error == ""
	if e.onEvent != nil {
		e.onEvent(Event{
			Step:     step,
			Tool:     toolName,
			ArgsSumm: summarizeCall(toolName, args),
			Success:  success,
			Duration: d,
		})
		return
	}
	log.Printf("[ExecEngine] step=%d tool=%s success=%t duration=%s", step, toolName, success, d)
}

// summarizeCall renders a short human-readable summary of a call's
// arguments, used both for dry-run PlannedActions and for the structured
// event's argument summary.
func summarizeCall(toolName string, args json.RawMessage) string {
	var generic map[string]any
	if err := json.Unmarshal(args, &generic); err != nil || len(generic) == 0 {
		return toolName
	}
	if p, ok := generic["path"].(string); ok {
		return fmt.Sprintf("%s(%s)", toolName, p)
	}
	if c, ok := generic["command"].(string); ok {
		return fmt.Sprintf("%s(%s)", toolName, util.TruncateRunes(c, summaryMaxRunes))
	}
	b, _ := json.Marshal(generic)
	return fmt.Sprintf("%s(%s)", toolName, util.TruncateRunes(string(b), summaryMaxRunes))
}
