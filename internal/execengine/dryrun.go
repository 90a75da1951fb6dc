package execengine

import (
	"fmt"
	"strings"
	"sync"
)

// PlannedAction is one intercepted WRITE-set call, recorded instead of
// invoked while dry-run is enabled.
type PlannedAction struct {
	Step    int
	Tool    string
	Summary string
}

// DryRunTracker captures PlannedActions for WRITE-set tool calls only.
// READ-set tools (read_file, list_files, find_files, grep, search_code) are
// never recorded, even on failure — there is nothing to plan for them.
type DryRunTracker struct {
	mu      sync.Mutex
	actions []PlannedAction
}

// NewDryRunTracker creates an empty tracker.
func NewDryRunTracker() *DryRunTracker {
	return &DryRunTracker{}
}

// Record appends one PlannedAction. Called only by Engine.Execute for
// WRITE-set tools when dry-run is active; never called directly by tools.
func (d *DryRunTracker) Record(step int, toolName, summary string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, PlannedAction{Step: step, Tool: toolName, Summary: summary})
}

// Actions returns a copy of the recorded plan, in emission order.
func (d *DryRunTracker) Actions() []PlannedAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PlannedAction, len(d.actions))
	copy(out, d.actions)
	return out
}

// GetPlanSummary renders the recorded plan as a numbered markdown section,
// or the literal "No write actions" when nothing was recorded.
func (d *DryRunTracker) GetPlanSummary() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.actions) == 0 {
		return "No write actions"
	}
	var sb strings.Builder
	sb.WriteString("Planned actions:\n")
	for i, a := range d.actions {
		sb.WriteString(fmt.Sprintf("%d. [step %d] %s\n", i+1, a.Step, a.Summary))
	}
	return strings.TrimRight(sb.String(), "\n")
}
