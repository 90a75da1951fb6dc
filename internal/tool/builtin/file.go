package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/archrt/architect/internal/tool"
	"github.com/archrt/architect/internal/workspace"
)

const (
	maxFileSize    = 1 << 20 // 1MB — read limit
	maxWriteSize   = 1 << 20 // 1MB — reject oversized content before filesystem access
	maxListItems   = 200
	maxFindResults = 100
)

// ── read_file ──

type ReadFileTool struct {
	ws *workspace.Workspace
}

func NewReadFileTool(ws *workspace.Workspace) *ReadFileTool { return &ReadFileTool{ws: ws} }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file." }
func (t *ReadFileTool) Sensitive() bool     { return false }

func (t *ReadFileTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "File path, relative to the workspace root", Required: true},
	)
}

func (t *ReadFileTool) Init(_ context.Context) error { return nil }
func (t *ReadFileTool) Close() error                 { return nil }

type pathArgs struct {
	Path string `json:"path"`
}

func (t *ReadFileTool) Execute(_ context.Context, args json.RawMessage) (tool.ToolResult, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	path, err := t.ws.Resolve(a.Path)
	if err != nil {
		return tool.ToolResult{Error: err.Error()}, nil
	}

	// Open first, then stat — avoids a TOCTOU race between a separate
	// os.Stat and os.ReadFile where the file could be replaced in between.
	f, err := os.Open(path)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("NotFound: %s does not exist", a.Path)}, nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("stat failed: %v", err)}, nil
	}
	if info.IsDir() {
		return tool.ToolResult{Error: fmt.Sprintf("%s is a directory, use list_files instead", a.Path)}, nil
	}
	if info.Size() > maxFileSize {
		return tool.ToolResult{Error: fmt.Sprintf("file too large (%d bytes), limit is %d bytes", info.Size(), maxFileSize)}, nil
	}

	data, err := io.ReadAll(io.LimitReader(f, maxFileSize))
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("read failed: %v", err)}, nil
	}

	return tool.ToolResult{Output: string(data)}, nil
}

// ── write_file ──

type WriteFileTool struct {
	ws *workspace.Workspace
}

func NewWriteFileTool(ws *workspace.Workspace) *WriteFileTool { return &WriteFileTool{ws: ws} }

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file. mode=overwrite replaces the file, mode=append adds to the end " +
		"(creating the file if absent), mode=create_new fails if the file already exists. " +
		"Prefer edit_file or apply_patch for targeted changes to existing files."
}
func (t *WriteFileTool) Sensitive() bool { return true }

func (t *WriteFileTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "File path, relative to the workspace root", Required: true},
		tool.SchemaParam{Name: "content", Type: "string", Description: "Content to write", Required: true},
		tool.SchemaParam{Name: "mode", Type: "string", Description: "overwrite (default), append, or create_new", Required: false, Enum: []string{"overwrite", "append", "create_new"}},
	)
}

func (t *WriteFileTool) Init(_ context.Context) error { return nil }
func (t *WriteFileTool) Close() error                 { return nil }

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Mode    string `json:"mode"`
}

func (t *WriteFileTool) Execute(_ context.Context, args json.RawMessage) (tool.ToolResult, error) {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}
	mode := a.Mode
	if mode == "" {
		mode = "overwrite"
	}
	if mode != "overwrite" && mode != "append" && mode != "create_new" {
		return tool.ToolResult{Error: fmt.Sprintf("invalid mode %q: must be overwrite, append, or create_new", mode)}, nil
	}

	if len(a.Content) > maxWriteSize {
		return tool.ToolResult{Error: fmt.Sprintf("content too large (%d bytes), limit is %d bytes", len(a.Content), maxWriteSize)}, nil
	}

	path, err := t.ws.Resolve(a.Path)
	if err != nil {
		return tool.ToolResult{Error: err.Error()}, nil
	}
	if msg := t.ws.CheckProtected(path); msg != "" {
		return tool.ToolResult{Error: msg}, nil
	}

	if mode == "create_new" {
		if _, err := os.Stat(path); err == nil {
			return tool.ToolResult{Error: fmt.Sprintf("%s already exists; mode=create_new refuses to overwrite it", a.Path)}, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("failed to create parent directory: %v", err)}, nil
	}

	var werr error
	switch mode {
	case "append":
		f, ferr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if ferr != nil {
			return tool.ToolResult{Error: fmt.Sprintf("write failed: %v", ferr)}, nil
		}
		_, werr = f.WriteString(a.Content)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
	default: // overwrite, create_new
		werr = os.WriteFile(path, []byte(a.Content), 0644)
	}
	if werr != nil {
		return tool.ToolResult{Error: fmt.Sprintf("write failed: %v", werr)}, nil
	}

	return tool.ToolResult{Output: fmt.Sprintf("wrote %s (%d bytes, mode=%s)", a.Path, len(a.Content), mode)}, nil
}

// ── list_files ──

type ListFilesTool struct {
	ws *workspace.Workspace
}

func NewListFilesTool(ws *workspace.Workspace) *ListFilesTool { return &ListFilesTool{ws: ws} }

func (t *ListFilesTool) Name() string        { return "list_files" }
func (t *ListFilesTool) Description() string { return "List the direct children of a directory, optionally filtered by a glob pattern." }
func (t *ListFilesTool) Sensitive() bool     { return false }

func (t *ListFilesTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "Directory path, relative to the workspace root", Required: true},
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "Optional glob filter (e.g. '*.go')", Required: false},
	)
}

func (t *ListFilesTool) Init(_ context.Context) error { return nil }
func (t *ListFilesTool) Close() error                 { return nil }

type listFilesArgs struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

func (t *ListFilesTool) Execute(_ context.Context, args json.RawMessage) (tool.ToolResult, error) {
	var a listFilesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	path, err := t.ws.Resolve(a.Path)
	if err != nil {
		return tool.ToolResult{Error: err.Error()}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("NotFound: directory %s does not exist", a.Path)}, nil
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	var sb strings.Builder
	count := 0
	for _, entry := range entries {
		if a.Pattern != "" {
			matched, _ := filepath.Match(a.Pattern, entry.Name())
			if !matched {
				continue
			}
		}
		if count >= maxListItems {
			sb.WriteString(fmt.Sprintf("... (%d entries total, showing first %d)\n", len(names), maxListItems))
			break
		}
		info, _ := entry.Info()
		kind := "file"
		sizeStr := ""
		if entry.IsDir() {
			kind = "dir"
		} else if info != nil {
			sizeStr = fmt.Sprintf(" (%d bytes)", info.Size())
		}
		sb.WriteString(fmt.Sprintf("[%s] %s%s\n", kind, entry.Name(), sizeStr))
		count++
	}

	if count == 0 {
		return tool.ToolResult{Output: "(empty directory)"}, nil
	}
	return tool.ToolResult{Output: sb.String()}, nil
}

// ── find_files ──

type FindFilesTool struct {
	ws *workspace.Workspace
}

func NewFindFilesTool(ws *workspace.Workspace) *FindFilesTool { return &FindFilesTool{ws: ws} }

func (t *FindFilesTool) Name() string { return "find_files" }
func (t *FindFilesTool) Description() string {
	return "Recursively search the workspace for files and directories matching a glob or substring pattern."
}
func (t *FindFilesTool) Sensitive() bool { return false }

func (t *FindFilesTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "Glob (e.g. '*.go') or substring to match against file/dir names", Required: true},
		tool.SchemaParam{Name: "path", Type: "string", Description: "Directory to search under (default: workspace root)", Required: false},
	)
}

func (t *FindFilesTool) Init(_ context.Context) error { return nil }
func (t *FindFilesTool) Close() error                 { return nil }

// skipDirs contains directory names to skip during recursive search.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, ".idea": true, ".vscode": true,
	"vendor": true, "__pycache__": true, ".cache": true,
}

func (t *FindFilesTool) Execute(ctx context.Context, args json.RawMessage) (tool.ToolResult, error) {
	var a struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	pattern := strings.TrimSpace(a.Pattern)
	if pattern == "" {
		return tool.ToolResult{Error: "pattern must not be empty"}, nil
	}

	root := t.ws.Root()
	if a.Path != "" {
		resolved, err := t.ws.Resolve(a.Path)
		if err != nil {
			return tool.ToolResult{Error: err.Error()}, nil
		}
		root = resolved
	}

	var results []string
	lowerPattern := strings.ToLower(pattern)
	isGlob := strings.ContainsAny(pattern, "*?[")

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if d.IsDir() && skipDirs[d.Name()] {
			return filepath.SkipDir
		}

		name := d.Name()
		var matched bool
		if isGlob {
			matched, _ = filepath.Match(lowerPattern, strings.ToLower(name))
		} else {
			matched = strings.Contains(strings.ToLower(name), lowerPattern)
		}
		if matched {
			rel, relErr := filepath.Rel(t.ws.Root(), path)
			if relErr != nil {
				rel = path
			}
			prefix := "file: "
			if d.IsDir() {
				prefix = "dir:  "
			}
			results = append(results, prefix+rel)
			if len(results) >= maxFindResults {
				return fmt.Errorf("limit reached")
			}
		}
		return nil
	})

	if len(results) == 0 {
		return tool.ToolResult{Output: fmt.Sprintf("no files or directories matched %q", pattern)}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d match(es):\n", len(results)))
	for _, r := range results {
		sb.WriteString(r + "\n")
	}
	if len(results) >= maxFindResults {
		sb.WriteString(fmt.Sprintf("(truncated at %d results)\n", maxFindResults))
	}
	return tool.ToolResult{Output: sb.String()}, nil
}

// relOrAbs returns path relative to root, falling back to the absolute path.
func relOrAbs(path, root string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
