package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/archrt/architect/internal/tool"
)

const (
	defaultCommandTimeout = 120 * time.Second
	maxOutputChars        = 8000
)

// dangerousPatterns are command substrings that are blocked outright.
// This is a best-effort blocklist, not a security boundary — a determined
// attacker can bypass it (base64-encoded payloads, find -delete). Its
// purpose is to stop accidental damage from LLM-generated commands, on top
// of (not instead of) the confirmation/dry-run gate in the execution engine.
var dangerousPatterns = []string{
	"rm -rf /",
	"rm -r -f /",
	"rm --recursive",
	"rm -rf ~",
	"rm -rf $home",
	"rm -rf ${home}",
	"rm -rf -- /",
	"rm -r -f -- /",
	"mkfs",
	"dd if=",
	"shutdown",
	"reboot",
	"halt",
	"init 0",
	"init 6",
	"systemctl poweroff",
	"systemctl halt",
	"pkill -9",
	"chmod -r 000 /",
	":(){:|:&};:",
	"format c:",
	"format d:",
	"del /s /q c:\\",
	"del /s /q d:\\",
	"rd /s /q c:\\",
	"rd /s /q d:\\",
	"remove-item -recurse c:",
	"remove-item -recurse d:",
}

// RunCommandTool executes shell commands in the workspace root with a
// wall-clock timeout and a filtered environment.
type RunCommandTool struct {
	workspaceDir string
	enabled      bool
}

// NewRunCommandTool creates the run_command tool. Set enabled=false to
// disable execution entirely (e.g. a read-only deployment).
func NewRunCommandTool(workspaceDir string, enabled bool) *RunCommandTool {
	return &RunCommandTool{workspaceDir: workspaceDir, enabled: enabled}
}

func (t *RunCommandTool) Name() string { return "run_command" }
func (t *RunCommandTool) Description() string {
	return "Run a shell command in the workspace root. Captures combined stdout/stderr; " +
		"a non-zero exit is reported as a failed result with the captured output retained."
}
func (t *RunCommandTool) Sensitive() bool { return true }

func (t *RunCommandTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "command", Type: "string", Description: "The command to run", Required: true},
		tool.SchemaParam{Name: "timeout", Type: "integer", Description: "Wall-clock timeout in seconds (default 120)", Required: false},
	)
}

func (t *RunCommandTool) Init(_ context.Context) error { return nil }
func (t *RunCommandTool) Close() error                 { return nil }

type runCommandArgs struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout"`
}

func (t *RunCommandTool) Execute(ctx context.Context, args json.RawMessage) (tool.ToolResult, error) {
	if !t.enabled {
		return tool.ToolResult{Error: "run_command is disabled for this agent"}, nil
	}

	var a runCommandArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}
	if a.Command == "" {
		return tool.ToolResult{Error: "command must not be empty"}, nil
	}

	cmdLower := strings.ToLower(a.Command)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(cmdLower, pattern) {
			return tool.ToolResult{Error: fmt.Sprintf("refusing to run: command contains blocked pattern %q", pattern)}, nil
		}
	}
	// "kill -9 1" needs a word-boundary guard so "kill -9 12345" isn't
	// blocked just because "kill -9 1" is a prefix of it. Scan all
	// occurrences so a compound command can't hide a true hit after one
	// that happens to be a false positive.
	const killInitPattern = "kill -9 1"
	for search := cmdLower; ; {
		idx := strings.Index(search, killInitPattern)
		if idx < 0 {
			break
		}
		end := idx + len(killInitPattern)
		if end >= len(search) || !isDigitOrAlpha(search[end]) {
			return tool.ToolResult{Error: fmt.Sprintf("refusing to run: command contains blocked pattern %q", killInitPattern)}, nil
		}
		search = search[idx+1:]
	}

	timeout := defaultCommandTimeout
	if a.Timeout > 0 {
		timeout = time.Duration(a.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := newShellCmd(ctx, a.Command)
	if t.workspaceDir != "" {
		cmd.Dir = t.workspaceDir
	}
	cmd.Env = filterEnv(os.Environ())

	output, err := cmd.CombinedOutput()
	outStr := safeRuneTruncate(string(output), maxOutputChars)
	outStr = strings.TrimSpace(outStr)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return tool.ToolResult{Output: outStr, Error: fmt.Sprintf("command timed out after %v", timeout)}, nil
		}
		if ctx.Err() == context.Canceled {
			return tool.ToolResult{Output: outStr, Error: "command was cancelled"}, nil
		}
		return tool.ToolResult{Output: outStr, Error: fmt.Sprintf("command exited with error: %v", err)}, nil
	}

	return tool.ToolResult{Output: outStr}, nil
}

func safeRuneTruncate(s string, maxRunes int) string {
	count := 0
	for i := range s {
		count++
		if count > maxRunes {
			totalRunes := maxRunes + utf8.RuneCountInString(s[i:])
			return s[:i] + fmt.Sprintf("\n... (output truncated, %d chars total)", totalRunes)
		}
	}
	return s
}

// sensitiveEnvSuffixes are environment variable name suffixes that indicate secrets.
var sensitiveEnvSuffixes = []string{
	"_KEY", "_SECRET", "_TOKEN", "_PASSWORD", "_PASSWD",
	"_PASSPHRASE", "_CREDENTIALS", "_AUTH", "_DSN",
}

// sensitiveEnvPrefixes are environment variable name prefixes that indicate secrets.
var sensitiveEnvPrefixes = []string{
	"DATABASE_URL", "REDIS_URL", "MONGO_URL",
}

// filterEnv returns a copy of env with sensitive variables removed.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) < 2 {
			continue
		}
		nameUpper := strings.ToUpper(parts[0])

		sensitive := false
		for _, suffix := range sensitiveEnvSuffixes {
			if strings.HasSuffix(nameUpper, suffix) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			for _, prefix := range sensitiveEnvPrefixes {
				if strings.HasPrefix(nameUpper, prefix) {
					sensitive = true
					break
				}
			}
		}
		if !sensitive {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func isDigitOrAlpha(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z')
}
