// Package mixed implements the plan→build handoff: two AgentLoops run back
// to back, a read-only planning pass followed by a full-tool build pass
// seeded with the plan's output.
package mixed

import (
	"context"
	"fmt"

	"github.com/archrt/architect/internal/agent"
	"github.com/archrt/architect/internal/agentcfg"
	"github.com/archrt/architect/internal/contextbuilder"
	"github.com/archrt/architect/internal/cost"
	"github.com/archrt/architect/internal/execengine"
	"github.com/archrt/architect/internal/memory"
	"github.com/archrt/architect/internal/tool"
)

// PhaseConfig bundles one phase's profile with the ExecutionEngine and
// CostTracker built for it, so plan and build can carry independent confirm
// modes, tool sets, and budgets without Runner knowing construction details.
// Cost may be nil to run that phase with no cost accounting.
type PhaseConfig struct {
	Profile *agentcfg.Profile
	Engine  *execengine.Engine
	Cost    *cost.CostTracker
}

// Result is what Runner.Run returns: the build phase's AgentState plus the
// plan phase's output attached as metadata, per the plan→build handoff's
// "plan's final_output is attached as metadata" requirement — kept
// alongside rather than folded into AgentState, since the plan output isn't
// part of the build loop's own step history.
type Result struct {
	Build      *agent.AgentState
	PlanOutput string
}

// Runner drives one plan→build handoff. Adapter, Model, and Registry are
// shared by both phases; only the allowed-tool set, confirm mode, and step
// ceiling differ, via each phase's Profile.
type Runner struct {
	Builder  *contextbuilder.Builder
	Registry *tool.Registry
	Adapter  *agent.ModelAdapter
	Model    string
	Memory   *memory.Store // nil disables end-of-session correction mining
}

// Run executes the plan phase, then seeds the build phase with the
// original task plus the plan's output, and runs it to completion. date is
// the caller-supplied stamp (YYYY-MM-DD) for any mined memory entries — this
// package never calls time.Now() itself.
func (r *Runner) Run(ctx context.Context, task string, plan, build PhaseConfig, date string) (*Result, error) {
	planState := r.runPhase(ctx, task, plan, "plan")
	if planState.Status == agent.StatusBudgetExceeded {
		return &Result{Build: planState, PlanOutput: planState.FinalOutput}, nil
	}

	buildTask := seedBuildTask(task, planState.FinalOutput)
	buildState := r.runPhase(ctx, buildTask, build, "build")

	if r.Memory != nil {
		r.mineCorrections(planState, buildState, date)
	}

	return &Result{Build: buildState, PlanOutput: planState.FinalOutput}, nil
}

func (r *Runner) runPhase(ctx context.Context, task string, cfg PhaseConfig, source string) *agent.AgentState {
	messages := r.Builder.Build(cfg.Profile.SystemPrompt, task, nil)
	state := agent.NewAgentState(messages, cfg.Profile.MaxSteps, cfg.Profile.AllowedTools, source)
	state.Cost = cfg.Cost

	modelNode := &agent.ModelNode{
		Adapter:  r.Adapter,
		Registry: r.Registry,
		Model:    r.Model,
	}
	toolsNode := &agent.ToolsNode{Engine: cfg.Engine}

	loop := agent.NewLoop(modelNode, toolsNode, 0)
	loop.Run(ctx, state)
	return state
}

// seedBuildTask formats the original task and the plan's output into a
// single user-message prefix for the build phase.
func seedBuildTask(task, planOutput string) string {
	if planOutput == "" {
		return task
	}
	return fmt.Sprintf("# Task\n\n%s\n\n# Plan\n\n%s\n\nImplement the plan above.", task, planOutput)
}

// mineCorrections scans both phases' message histories for correction
// patterns and appends any new ones to Memory, stamped with date.
func (r *Runner) mineCorrections(planState, buildState *agent.AgentState, date string) {
	hits := memory.MineCorrections(planState.Messages)
	hits = append(hits, memory.MineCorrections(buildState.Messages)...)
	if len(hits) == 0 {
		return
	}
	entries := make([]memory.Entry, 0, len(hits))
	for _, content := range hits {
		entries = append(entries, memory.Entry{Date: date, Type: memory.TypeCorreccion, Content: content})
	}
	r.Memory.Append(entries...)
}
