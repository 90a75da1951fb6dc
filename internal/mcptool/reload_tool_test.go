package mcptool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/archrt/architect/internal/tool"
)

func TestReloadTool_Execute(t *testing.T) {
	server := newEchoServer(t)
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	if err := os.WriteFile(path, []byte(`{"mcpServers":{"echo":{"url":"`+server.URL+`"}}}`), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	d := NewDiscovery(path)
	registry := tool.NewRegistry()
	reloadTool := NewReloadTool(d, registry)

	result, err := reloadTool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected tool error: %s", result.Error)
	}
	if result.Output == "" {
		t.Error("expected a non-empty reload summary")
	}
	if _, ok := registry.Get("mcp_echo__ping"); !ok {
		t.Error("expected mcp_reload to have registered the discovered tool")
	}
}

func TestReloadTool_Name(t *testing.T) {
	rt := NewReloadTool(nil, nil)
	if rt.Name() != "mcp_reload" {
		t.Errorf("Name() = %q", rt.Name())
	}
	if !rt.Sensitive() {
		t.Error("mcp_reload should be sensitive")
	}
}
