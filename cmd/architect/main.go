package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/archrt/architect/internal/agent"
	"github.com/archrt/architect/internal/agentcfg"
	"github.com/archrt/architect/internal/cache"
	"github.com/archrt/architect/internal/contextbuilder"
	"github.com/archrt/architect/internal/cost"
	"github.com/archrt/architect/internal/execengine"
	"github.com/archrt/architect/internal/llm/openai"
	"github.com/archrt/architect/internal/mcptool"
	"github.com/archrt/architect/internal/memory"
	"github.com/archrt/architect/internal/mixed"
	"github.com/archrt/architect/internal/reviewer"
	"github.com/archrt/architect/internal/tool"
	"github.com/archrt/architect/internal/tool/builtin"
	"github.com/archrt/architect/internal/workspace"
	"github.com/archrt/architect/pkg/config"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	config.LoadEnv()

	workspaceDir := flag.String("workspace", "", "workspace root (defaults to WORKSPACE_DIR env var, then cwd)")
	profilePath := flag.String("profile", "", "agent profile TOML (defaults to .architect/profile.toml)")
	planProfilePath := flag.String("plan-profile", "", "plan-phase profile TOML; when set, runs plan→build via mixed.Runner")
	pricingPath := flag.String("pricing", "", "pricing table YAML (defaults to .architect/pricing.yaml)")
	dryRun := flag.Bool("dry-run", false, "intercept write-set tool calls instead of executing them")
	budget := flag.Float64("budget", 0, "USD budget for this run (0 = unlimited)")
	mineMemory := flag.Bool("mine-memory", false, "mine corrections from this session into .architect/memory.md")
	autoReview := flag.Bool("review", false, "run an AutoReviewer pass over `git diff HEAD` after the run completes")
	today := flag.String("date", "", "YYYY-MM-DD stamp for mined memory entries (required with -mine-memory)")
	flag.Parse()

	task := strings.Join(flag.Args(), " ")
	if task == "" {
		log.Fatal("architect: a task argument is required")
	}

	if *workspaceDir == "" {
		*workspaceDir = os.Getenv("WORKSPACE_DIR")
	}
	if *workspaceDir == "" {
		*workspaceDir, _ = os.Getwd()
	}
	if info, err := os.Stat(*workspaceDir); err != nil || !info.IsDir() {
		log.Fatalf("architect: workspace %q does not exist or is not a directory", *workspaceDir)
	}

	if *profilePath == "" {
		*profilePath = filepath.Join(*workspaceDir, ".architect", "profile.toml")
	}
	profile, err := loadProfileOrDefault(*profilePath, "build")
	if err != nil {
		log.Fatalf("architect: %v", err)
	}

	if *pricingPath == "" {
		*pricingPath = filepath.Join(*workspaceDir, ".architect", "pricing.yaml")
	}
	var book *cost.PriceBook
	if agentcfg.FileExists(*pricingPath) {
		book, err = agentcfg.LoadPriceBook(*pricingPath)
		if err != nil {
			log.Fatalf("architect: %v", err)
		}
	} else {
		book = cost.NewPriceBook(nil, cost.PricingEntry{})
	}

	llmClient, err := openai.NewClientFromEnv()
	if err != nil {
		log.Fatalf("architect: failed to initialize LLM client: %v", err)
	}
	model := os.Getenv("LLM_MODEL")

	registry := tool.NewRegistry()
	registerBuiltinTools(registry, *workspaceDir)
	if err := registry.InitAll(context.Background()); err != nil {
		log.Fatalf("architect: failed to initialize tools: %v", err)
	}
	defer registry.CloseAll()

	mcpConfigPath := filepath.Join(*workspaceDir, ".architect", "mcp.json")
	if agentcfg.FileExists(mcpConfigPath) {
		discovery := mcptool.NewDiscovery(mcpConfigPath)
		n, mcpErrs := discovery.ConnectAll(context.Background())
		for _, e := range mcpErrs {
			log.Printf("architect: MCP connect: %v", e)
		}
		if n > 0 {
			discovery.RegisterTools(context.Background(), registry)
			fmt.Printf("MCP: %d server(s) connected\n", n)
		}
		if err := registry.Register(mcptool.NewReloadTool(discovery, registry)); err != nil {
			log.Fatalf("architect: %v", err)
		}
		defer discovery.CloseAll()
	}

	var respCache *cache.ResponseCache
	cacheDir := os.Getenv("RESPONSE_CACHE_DIR")
	if cacheDir != "" {
		respCache, err = cache.New(cacheDir, cache.DefaultTTL)
		if err != nil {
			log.Printf("architect: response cache disabled: %v", err)
		} else {
			sweeper, err := cache.NewSweeper(respCache, "")
			if err != nil {
				log.Printf("architect: cache sweeper disabled: %v", err)
			} else {
				defer sweeper.Stop()
			}
		}
	}

	metrics := cost.NewMetrics(prometheus.DefaultRegisterer)
	var onWarning func(float64, float64)
	// Each loop (single build loop, or each phase of a plan→build run) owns
	// its own CostTracker rather than sharing one across loops, so a
	// budget_exceeded in one phase can't be masked by headroom left in
	// another. newPhaseTracker shares book/metrics but gives every caller a
	// fresh instance against the same -budget ceiling.
	newPhaseTracker := func() *cost.CostTracker {
		return cost.NewTracker(book, *budget, (*budget)*0.8, metrics, onWarning)
	}
	tracker := newPhaseTracker()

	// runID tags every structured event this run emits, so log lines from a
	// concurrent batch of architect invocations can be told apart.
	runID := uuid.NewString()
	onEvent := func(e execengine.Event) {
		log.Printf("[run=%s] step=%d tool=%s success=%t duration=%s", runID, e.Step, e.Tool, e.Success, e.Duration)
	}

	ws := workspace.New(*workspaceDir, false, nil)
	confirmer := newCLIConfirmer()
	var dryRunTracker *execengine.DryRunTracker
	if *dryRun {
		dryRunTracker = execengine.NewDryRunTracker()
	}
	engine := execengine.New(registry, ws, confirmer, profile.EffectiveConfirmMode(), *dryRun, dryRunTracker, onEvent)

	builder := contextbuilder.New(*workspaceDir)
	adapter := agent.NewModelAdapter(llmClient, respCache)

	var finalState *agent.AgentState
	var planOutput string
	var planTracker *cost.CostTracker

	if *planProfilePath != "" {
		planProfile, err := loadProfileOrDefault(*planProfilePath, "plan")
		if err != nil {
			log.Fatalf("architect: %v", err)
		}
		planWS := workspace.New(*workspaceDir, false, nil)
		planEngine := execengine.New(registry, planWS, confirmer, execengine.ModeConfirmAll, true, execengine.NewDryRunTracker(), onEvent)

		runner := &mixed.Runner{
			Builder:  builder,
			Registry: registry,
			Adapter:  adapter,
			Model:    model,
		}
		if *mineMemory {
			if *today == "" {
				log.Fatal("architect: -date is required with -mine-memory")
			}
			runner.Memory = memory.NewStore(*workspaceDir)
		}

		planTracker = newPhaseTracker()
		result, err := runner.Run(context.Background(), task,
			mixed.PhaseConfig{Profile: planProfile, Engine: planEngine, Cost: planTracker},
			mixed.PhaseConfig{Profile: profile, Engine: engine, Cost: tracker},
			*today,
		)
		if err != nil {
			log.Fatalf("architect: %v", err)
		}
		finalState = result.Build
		planOutput = result.PlanOutput
	} else {
		messages := builder.Build(profile.SystemPrompt, task, nil)
		state := agent.NewAgentState(messages, profile.MaxSteps, profile.AllowedTools, profile.Name)
		state.Cost = tracker
		state.DryRun = dryRunTracker

		modelNode := &agent.ModelNode{
			Adapter:      adapter,
			Registry:     registry,
			Model:        model,
			ContextGuard: agent.NewContextGuard(contextWindowFromEnv()),
			LoopDetector: &agent.LoopDetector{},
		}
		toolsNode := &agent.ToolsNode{Engine: engine}
		loop := agent.NewLoop(modelNode, toolsNode, 0)
		loop.Run(context.Background(), state)
		finalState = state

		if *mineMemory {
			if *today == "" {
				log.Fatal("architect: -date is required with -mine-memory")
			}
			store := memory.NewStore(*workspaceDir)
			hits := memory.MineCorrections(state.Messages)
			entries := make([]memory.Entry, 0, len(hits))
			for _, h := range hits {
				entries = append(entries, memory.Entry{Date: *today, Type: memory.TypeCorreccion, Content: h})
			}
			if added, err := store.Append(entries...); err != nil {
				log.Printf("architect: memory mining: %v", err)
			} else if added > 0 {
				fmt.Printf("Memory: %d correction(s) recorded\n", added)
			}
		}
	}

	var reviewResult *reviewer.ReviewResult
	if *autoReview {
		rv := &reviewer.AutoReviewer{Adapter: adapter, Model: model, Cost: newPhaseTracker()}
		result, err := rv.Review(context.Background(), task, *workspaceDir)
		if err != nil {
			log.Printf("architect: review: %v", err)
		} else {
			reviewResult = &result
		}
	}

	fmt.Println()
	fmt.Printf("Run: %s\n", runID)
	if planOutput != "" {
		fmt.Println("# Plan")
		fmt.Println(planOutput)
		fmt.Println()
	}
	fmt.Println("# Result")
	fmt.Printf("Status: %s\n", finalState.Status)
	fmt.Println(finalState.FinalOutput)
	fmt.Println()
	if planTracker != nil {
		fmt.Printf("plan:  %s\n", planTracker.FormatSummaryLine())
		fmt.Printf("build: %s\n", tracker.FormatSummaryLine())
	} else {
		fmt.Println(tracker.FormatSummaryLine())
	}
	if dryRunTracker != nil {
		fmt.Println()
		fmt.Println(dryRunTracker.GetPlanSummary())
	}
	if reviewResult != nil {
		fmt.Println()
		fmt.Println("# Review")
		fmt.Println(reviewer.FormatVerdict(*reviewResult))
	}
}

func registerBuiltinTools(registry *tool.Registry, workspaceDir string) {
	ws := workspace.New(workspaceDir, os.Getenv("WORKSPACE_ALLOW_DELETE") == "true", nil)

	builtins := []tool.Tool{
		builtin.NewReadFileTool(ws),
		builtin.NewEditFileTool(ws),
		builtin.NewApplyPatchTool(ws),
		builtin.NewWriteFileTool(ws),
		builtin.NewListFilesTool(ws),
		builtin.NewFindFilesTool(ws),
		builtin.NewGrepTool(ws),
		builtin.NewSearchCodeTool(ws),
		builtin.NewDeleteFileTool(ws),
	}

	shellEnabled := os.Getenv("TOOL_SHELL_ENABLED") != "false"
	builtins = append(builtins, builtin.NewRunCommandTool(workspaceDir, shellEnabled))

	if os.Getenv("TOOL_HTTP_ENABLED") != "false" {
		allowInternal := os.Getenv("TOOL_HTTP_ALLOW_INTERNAL") == "true"
		builtins = append(builtins, builtin.NewWebFetchTool(allowInternal))
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			log.Fatalf("architect: %v", err)
		}
	}
}

// contextWindowFromEnv reads CONTEXT_WINDOW_TOKENS, defaulting to a
// conservative 128k — the OpenAI backend has no standard API for reporting
// a model's context window, so this has to come from configuration.
func contextWindowFromEnv() int {
	if v := os.Getenv("CONTEXT_WINDOW_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 128000
}

// loadProfileOrDefault loads path if it exists, otherwise returns a
// permissive default profile under the given name (every registered tool
// allowed, confirm-sensitive, no step ceiling).
func loadProfileOrDefault(path, name string) (*agentcfg.Profile, error) {
	if agentcfg.FileExists(path) {
		return agentcfg.LoadProfile(path)
	}
	p := &agentcfg.Profile{Name: name, ConfirmMode: string(execengine.ModeConfirmSensitive)}
	return p, p.Validate()
}

// cliConfirmer prompts on stdin for sensitive tool calls. A read error
// (e.g. stdin closed or non-interactive) is treated as a refusal rather
// than blocking forever.
type cliConfirmer struct {
	reader *bufio.Reader
}

func newCLIConfirmer() *cliConfirmer {
	return &cliConfirmer{reader: bufio.NewReader(os.Stdin)}
}

func (c *cliConfirmer) Interactive() bool { return true }

func (c *cliConfirmer) Confirm(ctx context.Context, toolName string, args json.RawMessage) (bool, error) {
	fmt.Printf("Confirm %s %s [y/N]: ", toolName, string(args))
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
