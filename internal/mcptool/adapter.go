package mcptool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/archrt/architect/internal/tool"
)

// Adapter bridges a remote MCP tool to the tool.Tool interface, making it
// indistinguishable from a built-in tool to the agent loop.
//
// Naming convention: mcp_<serverName>__<toolName> (double underscore
// separator, unambiguous since it cannot appear inside a single-underscore
// server or tool name).
type Adapter struct {
	serverName string
	info       ToolInfo
	client     *Client
}

// NewAdapter creates an adapter for a single remote tool.
func NewAdapter(serverName string, info ToolInfo, client *Client) *Adapter {
	return &Adapter{serverName: serverName, info: info, client: client}
}

// Name returns the fully-qualified tool name: mcp_<server>__<tool>.
func (a *Adapter) Name() string {
	return fmt.Sprintf("mcp_%s__%s", a.serverName, a.info.Name)
}

func (a *Adapter) Description() string {
	return a.info.Description
}

func (a *Adapter) InputSchema() json.RawMessage {
	if len(a.info.InputSchema) == 0 {
		return tool.BuildSchema()
	}
	return a.info.InputSchema
}

// Sensitive defaults to true per the remote-tool confirmation policy;
// a server may opt a specific tool out by reporting sensitive=false.
func (a *Adapter) Sensitive() bool {
	if a.info.Sensitive != nil {
		return *a.info.Sensitive
	}
	return true
}

// Execute deserializes args and dispatches tools/call on the shared client.
// Both infrastructure errors and server-reported tool errors come back as
// ToolResult.Error (nil Go error) so the agent loop can react without a
// special case for remote tools.
func (a *Adapter) Execute(ctx context.Context, args json.RawMessage) (tool.ToolResult, error) {
	var params map[string]any
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &params); err != nil {
			return tool.ToolResult{Error: fmt.Sprintf("mcptool: parse args for %q: %v", a.Name(), err)}, nil
		}
	}

	text, err := a.client.CallTool(ctx, a.info.Name, params)
	if err != nil {
		return tool.ToolResult{Error: err.Error()}, nil
	}
	return tool.ToolResult{Output: text}, nil
}

// Init is a no-op; the client's keep-alive connection is owned by Discovery.
func (a *Adapter) Init(_ context.Context) error { return nil }

// Close is a no-op; connection lifecycle is managed by Discovery.
func (a *Adapter) Close() error { return nil }
