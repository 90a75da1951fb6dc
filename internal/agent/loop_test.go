package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/archrt/architect/internal/execengine"
	"github.com/archrt/architect/internal/llm"
	"github.com/archrt/architect/internal/tool"
	"github.com/archrt/architect/internal/workspace"
)

// scriptedBackend returns one reply per call, in order, then repeats the
// last reply if called more times than scripted.
type scriptedBackend struct {
	replies []llm.Reply
	calls   int
}

func (b *scriptedBackend) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Reply, error) {
	idx := b.calls
	if idx >= len(b.replies) {
		idx = len(b.replies) - 1
	}
	b.calls++
	return b.replies[idx], nil
}
func (b *scriptedBackend) Name() string { return "scripted" }

func newTestEngine(tools ...*agentDummyTool) *execengine.Engine {
	reg := tool.NewRegistry()
	for _, t := range tools {
		reg.Register(t)
	}
	ws := workspace.New(".", false, nil)
	return execengine.New(reg, ws, execengine.AutoApprove{}, execengine.ModeYOLO, false, nil, nil)
}

func TestLoop_RunsToSuccessAfterOneToolCall(t *testing.T) {
	backend := &scriptedBackend{replies: []llm.Reply{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.txt"}`)}}},
		{Content: "the file says hello"},
	}}
	mn := &ModelNode{
		Adapter:  NewModelAdapter(backend, nil),
		Registry: tool.NewRegistry(),
		Model:    "gpt-4o",
	}
	tn := &ToolsNode{Engine: newTestEngine(&agentDummyTool{name: "read_file"})}
	loop := NewLoop(mn, tn, 20)

	state := NewAgentState(testMsgs(), 20, nil, "build")
	status := loop.Run(context.Background(), state)

	if status != StatusSuccess {
		t.Fatalf("expected StatusSuccess, got %v (state=%+v)", status, state)
	}
	if state.FinalOutput != "the file says hello" {
		t.Fatalf("expected final output from second reply, got %q", state.FinalOutput)
	}
	if len(state.Steps) != 2 {
		t.Fatalf("expected 2 steps (tool call + final), got %d", len(state.Steps))
	}
	if backend.calls != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", backend.calls)
	}
}

func TestLoop_StopsAtMaxSteps(t *testing.T) {
	backend := &scriptedBackend{replies: []llm.Reply{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{}`)}}},
	}}
	mn := &ModelNode{
		Adapter:  NewModelAdapter(backend, nil),
		Registry: tool.NewRegistry(),
		Model:    "gpt-4o",
	}
	tn := &ToolsNode{Engine: newTestEngine(&agentDummyTool{name: "read_file"})}
	loop := NewLoop(mn, tn, 50)

	state := NewAgentState(testMsgs(), 2, nil, "build")
	status := loop.Run(context.Background(), state)

	if status != StatusMaxSteps {
		t.Fatalf("expected StatusMaxSteps, got %v (steps=%d)", status, len(state.Steps))
	}
	if state.CurrentStep != 2 {
		t.Fatalf("expected loop to stop exactly at max steps, got CurrentStep=%d", state.CurrentStep)
	}
}

func TestLoop_ToolFailureStillAdvancesLoop(t *testing.T) {
	backend := &scriptedBackend{replies: []llm.Reply{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{}`)}}},
		{Content: "handled the error"},
	}}
	mn := &ModelNode{
		Adapter:  NewModelAdapter(backend, nil),
		Registry: tool.NewRegistry(),
		Model:    "gpt-4o",
	}
	tn := &ToolsNode{Engine: newTestEngine(&agentDummyTool{name: "read_file", fail: true})}
	loop := NewLoop(mn, tn, 20)

	state := NewAgentState(testMsgs(), 20, nil, "build")
	status := loop.Run(context.Background(), state)

	if status != StatusSuccess {
		t.Fatalf("expected loop to recover and finish, got %v", status)
	}
	if state.Steps[0].ToolResults["call_1"].Error != "boom" {
		t.Fatalf("expected failed tool result recorded, got %+v", state.Steps[0].ToolResults)
	}
}
