package mcptool

import (
	"context"
	"encoding/json"

	"github.com/archrt/architect/internal/tool"
)

// ReloadTool implements tool.Tool and exposes the built-in "mcp_reload"
// command so the agent itself can request re-discovery after editing the
// MCP server config.
type ReloadTool struct {
	discovery *Discovery
	registry  *tool.Registry
}

// NewReloadTool wires a ReloadTool to the given discovery and registry.
func NewReloadTool(discovery *Discovery, registry *tool.Registry) *ReloadTool {
	return &ReloadTool{discovery: discovery, registry: registry}
}

func (t *ReloadTool) Name() string { return "mcp_reload" }

func (t *ReloadTool) Description() string {
	return "Reloads the MCP server configuration. Connects new servers, disconnects " +
		"removed servers, and leaves unchanged servers as they are. Returns a summary of changes made."
}

func (t *ReloadTool) Sensitive() bool { return true }

// InputSchema returns an empty schema — mcp_reload accepts no arguments.
func (t *ReloadTool) InputSchema() json.RawMessage {
	return tool.BuildSchema()
}

func (t *ReloadTool) Execute(ctx context.Context, _ json.RawMessage) (tool.ToolResult, error) {
	summary, err := t.discovery.Reload(ctx, t.registry)
	if err != nil {
		return tool.ToolResult{Error: err.Error()}, nil
	}
	return tool.ToolResult{Output: summary}, nil
}

func (t *ReloadTool) Init(_ context.Context) error { return nil }
func (t *ReloadTool) Close() error                 { return nil }
