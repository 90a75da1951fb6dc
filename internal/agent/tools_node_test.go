package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/archrt/architect/internal/core"
	"github.com/archrt/architect/internal/execengine"
	"github.com/archrt/architect/internal/llm"
	"github.com/archrt/architect/internal/tool"
	"github.com/archrt/architect/internal/workspace"
)

type agentDummyTool struct {
	name string
	fail bool
}

func (d *agentDummyTool) Name() string                { return d.name }
func (d *agentDummyTool) Description() string         { return "dummy" }
func (d *agentDummyTool) InputSchema() json.RawMessage { return tool.BuildSchema() }
func (d *agentDummyTool) Init(context.Context) error   { return nil }
func (d *agentDummyTool) Close() error                 { return nil }
func (d *agentDummyTool) Sensitive() bool              { return false }
func (d *agentDummyTool) Execute(ctx context.Context, args json.RawMessage) (tool.ToolResult, error) {
	if d.fail {
		return tool.ToolResult{Error: "boom"}, nil
	}
	return tool.ToolResult{Output: "ok"}, nil
}

func newTestToolsNode(tools ...*agentDummyTool) *ToolsNode {
	reg := tool.NewRegistry()
	for _, t := range tools {
		reg.Register(t)
	}
	ws := workspace.New(".", false, nil)
	eng := execengine.New(reg, ws, execengine.AutoApprove{}, execengine.ModeYOLO, false, nil, nil)
	return &ToolsNode{Engine: eng}
}

func TestToolsNode_PrepEmptyWithNoSteps(t *testing.T) {
	n := newTestToolsNode()
	state := NewAgentState(testMsgs(), 10, nil, "build")
	if items := n.Prep(state); items != nil {
		t.Fatalf("expected nil items with no steps, got %+v", items)
	}
}

func TestToolsNode_PrepReturnsOneItemPerCall(t *testing.T) {
	n := newTestToolsNode()
	state := NewAgentState(testMsgs(), 10, nil, "build")
	state.CurrentStep = 1
	state.Steps = []Step{{
		Number: 1,
		Reply: llm.Reply{ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{}`)},
			{ID: "call_2", Name: "write_file", Arguments: json.RawMessage(`{}`)},
		}},
		ToolResults: make(map[string]tool.ToolResult),
	}}

	items := n.Prep(state)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Call.ID != "call_1" || items[1].Call.ID != "call_2" {
		t.Fatalf("expected items in emission order, got %+v", items)
	}
}

func TestToolsNode_ExecDelegatesToEngine(t *testing.T) {
	readTool := &agentDummyTool{name: "read_file"}
	n := newTestToolsNode(readTool)

	res, err := n.Exec(context.Background(), toolCallItem{
		Step: 1,
		Call: llm.ToolCall{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{}`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Output != "ok" {
		t.Fatalf("expected delegated execution, got %+v", res)
	}
}

func TestToolsNode_PostRecordsResultsAndAppendsMessages(t *testing.T) {
	n := newTestToolsNode()
	state := NewAgentState(testMsgs(), 10, nil, "build")
	state.CurrentStep = 1
	state.Steps = []Step{{
		Number:      1,
		Reply:       llm.Reply{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "read_file"}}},
		ToolResults: make(map[string]tool.ToolResult),
	}}
	prepRes := []toolCallItem{{Step: 1, Call: llm.ToolCall{ID: "call_1", Name: "read_file"}}}
	execRes := []tool.ToolResult{{Output: "contents"}}

	action := n.Post(state, prepRes, execRes...)
	if action != core.ActionContinue {
		t.Fatalf("expected ActionContinue, got %v", action)
	}
	if state.Steps[0].ToolResults["call_1"].Output != "contents" {
		t.Fatalf("expected tool result recorded on step, got %+v", state.Steps[0].ToolResults)
	}
	last := state.Messages[len(state.Messages)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call_1" || last.Content != "contents" {
		t.Fatalf("expected appended tool message, got %+v", last)
	}
}

func TestToolsNode_PostRecordsErrorAsMessageContent(t *testing.T) {
	n := newTestToolsNode()
	state := NewAgentState(testMsgs(), 10, nil, "build")
	state.CurrentStep = 1
	state.Steps = []Step{{
		Number:      1,
		Reply:       llm.Reply{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "read_file"}}},
		ToolResults: make(map[string]tool.ToolResult),
	}}
	prepRes := []toolCallItem{{Step: 1, Call: llm.ToolCall{ID: "call_1", Name: "read_file"}}}
	execRes := []tool.ToolResult{{Error: "file not found"}}

	n.Post(state, prepRes, execRes...)
	last := state.Messages[len(state.Messages)-1]
	if last.Content != "file not found" {
		t.Fatalf("expected error surfaced as tool message content, got %q", last.Content)
	}
}
