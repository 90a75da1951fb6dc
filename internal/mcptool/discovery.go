package mcptool

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/archrt/architect/internal/tool"
)

// Discovery owns the lifecycle of remote MCP server connections and their
// registered tool adapters. It is the single source of truth for which
// servers are active and which adapters live in the tool.Registry.
//
// Concurrency model: state changes are guarded by mu; network I/O (the
// HTTP round trips in ListTools) is always performed outside the lock so a
// slow or unreachable server cannot block other Discovery operations.
type Discovery struct {
	configPath string

	mu          sync.Mutex
	configs     map[string]ServerConfig
	pool        *clientPool
	serverTools map[string][]string // server name -> registered adapter names
}

// NewDiscovery creates a Discovery for the given mcp.json path. No
// connections are established until ConnectAll is called.
func NewDiscovery(configPath string) *Discovery {
	return &Discovery{
		configPath:  configPath,
		configs:     make(map[string]ServerConfig),
		pool:        newClientPool(),
		serverTools: make(map[string][]string),
	}
}

// ConnectAll loads the config and probes each configured server with
// tools/list. Per-server failures are logged and do not prevent other
// servers from connecting; the returned count and error slice summarize
// the outcome.
func (d *Discovery) ConnectAll(ctx context.Context) (int, []error) {
	configs, err := LoadConfig(d.configPath)
	if err != nil {
		return 0, []error{fmt.Errorf("mcptool: load config: %w", err)}
	}

	type probeResult struct {
		name string
		cfg  ServerConfig
		err  error
	}
	results := make([]probeResult, 0, len(configs))
	for name, cfg := range configs {
		cli := NewClient(cfg)
		if _, err := cli.ListTools(ctx); err != nil {
			results = append(results, probeResult{name: name, err: err})
			log.Printf("[mcptool] probe failed: %s: %v", name, err)
			continue
		}
		results = append(results, probeResult{name: name, cfg: cfg})
		d.pool.set(name, cli)
		log.Printf("[mcptool] reachable: %s", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	connected := 0
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", r.name, r.err))
			continue
		}
		d.configs[r.name] = r.cfg
		connected++
	}
	return connected, errs
}

// RegisterTools lists tools from every connected server and registers an
// Adapter for each in registry. A single server's discovery failure is
// non-fatal: it is logged and the remaining servers still register.
func (d *Discovery) RegisterTools(ctx context.Context, registry *tool.Registry) {
	d.mu.Lock()
	names := make([]string, 0, len(d.configs))
	for name := range d.configs {
		names = append(names, name)
	}
	d.mu.Unlock()

	for _, name := range names {
		cli, ok := d.pool.get(name)
		if !ok {
			continue
		}
		tools, err := cli.ListTools(ctx)
		if err != nil {
			log.Printf("[mcptool] list tools failed for %q: %v", name, err)
			continue
		}
		var registered []string
		for _, ti := range tools {
			adapter := NewAdapter(name, ti, cli)
			if err := registry.Register(adapter); err != nil {
				log.Printf("[mcptool] skipping tool %q from %q: %v", adapter.Name(), name, err)
				continue
			}
			registered = append(registered, adapter.Name())
		}
		d.mu.Lock()
		d.serverTools[name] = registered
		d.mu.Unlock()
		log.Printf("[mcptool] registered %d tool(s) from %q", len(registered), name)
	}
}

// Reload re-reads mcp.json and applies a diff: added servers are probed and
// registered, removed servers have their tools unregistered and connection
// dropped, unchanged servers are left untouched. Returns a human-readable
// summary; per-server failures are folded into the summary rather than
// returned as an error.
func (d *Discovery) Reload(ctx context.Context, registry *tool.Registry) (string, error) {
	newConfigs, err := LoadConfig(d.configPath)
	if err != nil {
		return "", fmt.Errorf("mcptool reload: load config: %w", err)
	}

	d.mu.Lock()
	var toRemove []string
	var toAdd []ServerConfig
	unchanged := 0
	for name := range d.configs {
		if _, exists := newConfigs[name]; !exists {
			toRemove = append(toRemove, name)
		}
	}
	for name, cfg := range newConfigs {
		if _, exists := d.configs[name]; !exists {
			toAdd = append(toAdd, cfg)
		} else {
			unchanged++
		}
	}
	d.mu.Unlock()

	removed := 0
	for _, name := range toRemove {
		d.mu.Lock()
		toolNames := d.serverTools[name]
		delete(d.serverTools, name)
		delete(d.configs, name)
		d.mu.Unlock()
		for _, tn := range toolNames {
			registry.Unregister(tn)
		}
		d.pool.delete(name)
		removed++
		log.Printf("[mcptool] disconnected: %s", name)
	}

	added := 0
	var notices []string
	for _, cfg := range toAdd {
		cli := NewClient(cfg)
		tools, err := cli.ListTools(ctx)
		if err != nil {
			notices = append(notices, fmt.Sprintf("[WARNING] connect %q: %v", cfg.Name, err))
			log.Printf("[mcptool] connect failed: %s: %v", cfg.Name, err)
			continue
		}
		var registered []string
		for _, ti := range tools {
			adapter := NewAdapter(cfg.Name, ti, cli)
			if err := registry.Register(adapter); err != nil {
				log.Printf("[mcptool] skipping tool %q from %q: %v", adapter.Name(), cfg.Name, err)
				continue
			}
			registered = append(registered, adapter.Name())
		}
		d.mu.Lock()
		d.configs[cfg.Name] = cfg
		d.serverTools[cfg.Name] = registered
		d.mu.Unlock()
		d.pool.set(cfg.Name, cli)
		added++
		log.Printf("[mcptool] connected: %s, %d tool(s)", cfg.Name, len(tools))
	}

	summary := fmt.Sprintf("MCP reload: +%d connected, -%d removed, %d unchanged", added, removed, unchanged)
	if len(notices) > 0 {
		summary += "\n" + strings.Join(notices, "\n")
	}
	return summary, nil
}

// CloseAll drops all tracked server state. The JSON-RPC-over-HTTP
// transport holds no persistent sockets beyond the pooled http.Client, so
// this is a bookkeeping reset rather than an explicit disconnect.
func (d *Discovery) CloseAll() {
	d.mu.Lock()
	for name := range d.configs {
		d.pool.delete(name)
	}
	d.configs = make(map[string]ServerConfig)
	d.serverTools = make(map[string][]string)
	d.mu.Unlock()
	log.Printf("[mcptool] all server state cleared")
}
