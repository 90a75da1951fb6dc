package builtin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/archrt/architect/internal/tool"
	"github.com/archrt/architect/internal/workspace"
)

const maxEditFileSize = 5 << 20 // 5MB

// ── edit_file ──

type EditFileTool struct {
	ws *workspace.Workspace
}

func NewEditFileTool(ws *workspace.Workspace) *EditFileTool { return &EditFileTool{ws: ws} }

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Replace exactly one literal occurrence of old_str with new_str in a file. " +
		"Fails if old_str is empty, not found, or found more than once. Returns a unified " +
		"diff of the change on success. Preferred over apply_patch and write_file for " +
		"small, targeted edits."
}
func (t *EditFileTool) Sensitive() bool { return true }

func (t *EditFileTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "File path, relative to the workspace root", Required: true},
		tool.SchemaParam{Name: "old_str", Type: "string", Description: "Exact text to replace; must occur exactly once", Required: true},
		tool.SchemaParam{Name: "new_str", Type: "string", Description: "Replacement text", Required: true},
		tool.SchemaParam{Name: "expected_content", Type: "string", Description: "Optimistic-lock check: if supplied, the file's current full content must match this exactly, or the edit is refused as stale", Required: false},
	)
}

func (t *EditFileTool) Init(_ context.Context) error { return nil }
func (t *EditFileTool) Close() error                 { return nil }

type editFileArgs struct {
	Path            string `json:"path"`
	OldStr          string `json:"old_str"`
	NewStr          string `json:"new_str"`
	ExpectedContent string `json:"expected_content"`
}

func (t *EditFileTool) Execute(_ context.Context, args json.RawMessage) (tool.ToolResult, error) {
	var a editFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}
	if a.OldStr == "" {
		return tool.ToolResult{Error: "old_str must not be empty"}, nil
	}

	path, err := t.ws.Resolve(a.Path)
	if err != nil {
		return tool.ToolResult{Error: err.Error()}, nil
	}
	if msg := t.ws.CheckProtected(path); msg != "" {
		return tool.ToolResult{Error: msg}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("NotFound: %s does not exist", a.Path)}, nil
	}
	if info.IsDir() {
		return tool.ToolResult{Error: fmt.Sprintf("%s is a directory", a.Path)}, nil
	}
	if info.Size() > maxEditFileSize {
		return tool.ToolResult{Error: fmt.Sprintf("file too large (%d bytes), limit is %d bytes", info.Size(), maxEditFileSize)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("read failed: %v", err)}, nil
	}
	content := string(data)

	if a.ExpectedContent != "" && a.ExpectedContent != content {
		return tool.ToolResult{Error: "stale content: expected_content does not match the file's current contents; re-read the file before editing"}, nil
	}

	count := strings.Count(content, a.OldStr)
	if count == 0 {
		return tool.ToolResult{Error: "old_str was not found in the file"}, nil
	}
	if count > 1 {
		return tool.ToolResult{Error: fmt.Sprintf("old_str occurs %d times; it must occur exactly once", count)}, nil
	}

	newContent := strings.Replace(content, a.OldStr, a.NewStr, 1)
	if err := os.WriteFile(path, []byte(newContent), info.Mode()); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("write failed: %v", err)}, nil
	}

	diff := unifiedDiff(a.Path, content, newContent)
	return tool.ToolResult{Output: diff}, nil
}

// unifiedDiff produces a minimal unified diff between old and new content of
// the same file, using a naive common-prefix/suffix line diff — adequate for
// the single-substitution edits edit_file performs (no full LCS needed).
func unifiedDiff(path, oldContent, newContent string) string {
	oldLines := splitKeepLines(oldContent)
	newLines := splitKeepLines(newContent)

	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	oldChangeStart, oldChangeEnd := prefix, len(oldLines)-suffix
	newChangeStart, newChangeEnd := prefix, len(newLines)-suffix

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("--- a/%s\n", path))
	sb.WriteString(fmt.Sprintf("+++ b/%s\n", path))
	sb.WriteString(fmt.Sprintf("@@ -%d,%d +%d,%d @@\n",
		oldChangeStart+1, oldChangeEnd-oldChangeStart,
		newChangeStart+1, newChangeEnd-newChangeStart))
	for i := oldChangeStart; i < oldChangeEnd; i++ {
		sb.WriteString("-" + strings.TrimSuffix(oldLines[i], "\n") + "\n")
	}
	for i := newChangeStart; i < newChangeEnd; i++ {
		sb.WriteString("+" + strings.TrimSuffix(newLines[i], "\n") + "\n")
	}
	return sb.String()
}

func splitKeepLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// ── apply_patch ──

type ApplyPatchTool struct {
	ws *workspace.Workspace
}

func NewApplyPatchTool(ws *workspace.Workspace) *ApplyPatchTool { return &ApplyPatchTool{ws: ws} }

func (t *ApplyPatchTool) Name() string { return "apply_patch" }
func (t *ApplyPatchTool) Description() string {
	return "Apply a unified diff (one or more @@ -a,b +c,d @@ hunks) to a file. Every context " +
		"and removed line must match the file's current content exactly; on mismatch the patch " +
		"is rejected with the first offending line. Falls behind edit_file in the preference " +
		"order but ahead of write_file for multi-hunk changes."
}
func (t *ApplyPatchTool) Sensitive() bool { return true }

func (t *ApplyPatchTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "File path, relative to the workspace root", Required: true},
		tool.SchemaParam{Name: "patch", Type: "string", Description: "Unified diff hunks to apply", Required: true},
	)
}

func (t *ApplyPatchTool) Init(_ context.Context) error { return nil }
func (t *ApplyPatchTool) Close() error                 { return nil }

type applyPatchArgs struct {
	Path  string `json:"path"`
	Patch string `json:"patch"`
}

type hunk struct {
	origStart, origCount int
	newStart, newCount   int
	lines                []patchLine // context/add/remove, in order
}

type patchLine struct {
	kind byte // ' ', '+', '-'
	text string
}

func (t *ApplyPatchTool) Execute(_ context.Context, args json.RawMessage) (tool.ToolResult, error) {
	var a applyPatchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	path, err := t.ws.Resolve(a.Path)
	if err != nil {
		return tool.ToolResult{Error: err.Error()}, nil
	}
	if msg := t.ws.CheckProtected(path); msg != "" {
		return tool.ToolResult{Error: msg}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("NotFound: %s does not exist", a.Path)}, nil
	}
	if info.IsDir() {
		return tool.ToolResult{Error: fmt.Sprintf("%s is a directory", a.Path)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("read failed: %v", err)}, nil
	}
	lines := splitKeepLines(string(data))

	hunks, err := parseUnifiedDiff(a.Patch)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("PatchError: %v", err)}, nil
	}
	if len(hunks) == 0 {
		return tool.ToolResult{Error: "PatchError: no hunks found in patch"}, nil
	}

	newLines, err := applyHunks(lines, hunks)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("PatchError: %v", err)}, nil
	}

	if err := os.WriteFile(path, []byte(strings.Join(newLines, "")), info.Mode()); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("write failed: %v", err)}, nil
	}

	return tool.ToolResult{Output: fmt.Sprintf("applied %d hunk(s) to %s", len(hunks), a.Path)}, nil
}

// parseUnifiedDiff parses one or more @@ -a,b +c,d @@ hunks out of patch text,
// ignoring any "--- "/"+++ " file-header lines.
func parseUnifiedDiff(patch string) ([]hunk, error) {
	scanner := bufio.NewScanner(strings.NewReader(patch))
	scanner.Buffer(make([]byte, 1<<20), 1<<20)

	var hunks []hunk
	var cur *hunk

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "+++ "):
			continue
		case strings.HasPrefix(line, "@@"):
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			if cur != nil {
				hunks = append(hunks, *cur)
			}
			cur = &h
		case cur != nil && len(line) > 0:
			cur.lines = append(cur.lines, patchLine{kind: line[0], text: line[1:]})
		case cur != nil:
			// blank line inside a hunk is a context line with empty content
			cur.lines = append(cur.lines, patchLine{kind: ' ', text: ""})
		}
	}
	if cur != nil {
		hunks = append(hunks, *cur)
	}
	return hunks, scanner.Err()
}

// parseHunkHeader parses "@@ -a,b +c,d @@" (b/d default to 1 when omitted,
// and b=0 signals a pure insertion hunk with no original lines).
func parseHunkHeader(line string) (hunk, error) {
	parts := strings.SplitN(line, "@@", 3)
	if len(parts) < 2 {
		return hunk{}, fmt.Errorf("malformed hunk header: %q", line)
	}
	fields := strings.Fields(strings.TrimSpace(parts[1]))
	if len(fields) != 2 {
		return hunk{}, fmt.Errorf("malformed hunk header: %q", line)
	}

	origStart, origCount, err := parseRange(fields[0], "-")
	if err != nil {
		return hunk{}, err
	}
	newStart, newCount, err := parseRange(fields[1], "+")
	if err != nil {
		return hunk{}, err
	}
	return hunk{origStart: origStart, origCount: origCount, newStart: newStart, newCount: newCount}, nil
}

func parseRange(field, sign string) (start, count int, err error) {
	field = strings.TrimPrefix(field, sign)
	parts := strings.SplitN(field, ",", 2)
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q: %w", field, err)
	}
	count = 1
	if len(parts) == 2 {
		count, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range %q: %w", field, err)
		}
	}
	return start, count, nil
}

// applyHunks applies hunks, in order, to lines (each element retains its
// trailing newline). Hunks are applied sequentially against the running
// result so offsets shift correctly across multiple hunks.
func applyHunks(lines []string, hunks []hunk) ([]string, error) {
	result := lines
	offset := 0 // cumulative line-count delta from previously applied hunks

	for _, h := range hunks {
		start := h.origStart - 1 + offset
		if h.origCount == 0 {
			// Pure insertion: origStart points to the line AFTER which to insert
			// (or 0 to insert at the very top).
			start = h.origStart + offset
			if start < 0 || start > len(result) {
				return nil, fmt.Errorf("insertion point %d out of range", h.origStart)
			}
			var toInsert []string
			for _, pl := range h.lines {
				if pl.kind == '+' {
					toInsert = append(toInsert, pl.text+"\n")
				}
			}
			result = spliceLines(result, start, start, toInsert)
			offset += len(toInsert)
			continue
		}

		if start < 0 || start > len(result) {
			return nil, fmt.Errorf("hunk position %d out of range", h.origStart)
		}

		pos := start
		var replacement []string
		for _, pl := range h.lines {
			switch pl.kind {
			case ' ':
				if pos >= len(result) || stripNL(result[pos]) != pl.text {
					got := ""
					if pos < len(result) {
						got = stripNL(result[pos])
					}
					return nil, fmt.Errorf("context mismatch at line %d: expected %q, got %q", pos+1, pl.text, got)
				}
				replacement = append(replacement, result[pos])
				pos++
			case '-':
				if pos >= len(result) || stripNL(result[pos]) != pl.text {
					got := ""
					if pos < len(result) {
						got = stripNL(result[pos])
					}
					return nil, fmt.Errorf("context mismatch at line %d: expected %q, got %q", pos+1, pl.text, got)
				}
				pos++ // removed line consumed, not carried into replacement
			case '+':
				replacement = append(replacement, pl.text+"\n")
			}
		}

		result = spliceLines(result, start, pos, replacement)
		offset += len(replacement) - (pos - start)
	}

	return result, nil
}

func stripNL(s string) string { return strings.TrimSuffix(s, "\n") }

func spliceLines(lines []string, start, end int, replacement []string) []string {
	out := make([]string, 0, len(lines)-(end-start)+len(replacement))
	out = append(out, lines[:start]...)
	out = append(out, replacement...)
	out = append(out, lines[end:]...)
	return out
}

// ── delete_file ──

type DeleteFileTool struct {
	ws *workspace.Workspace
}

func NewDeleteFileTool(ws *workspace.Workspace) *DeleteFileTool { return &DeleteFileTool{ws: ws} }

func (t *DeleteFileTool) Name() string { return "delete_file" }
func (t *DeleteFileTool) Description() string {
	return "Delete a file or, with recursive=true, a directory tree. Refused unless the " +
		"workspace was configured with allow_delete."
}
func (t *DeleteFileTool) Sensitive() bool { return true }

func (t *DeleteFileTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "Path to delete, relative to the workspace root", Required: true},
		tool.SchemaParam{Name: "recursive", Type: "boolean", Description: "Recursively delete a non-empty directory (default false)", Required: false},
	)
}

func (t *DeleteFileTool) Init(_ context.Context) error { return nil }
func (t *DeleteFileTool) Close() error                 { return nil }

type deleteFileArgs struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

func (t *DeleteFileTool) Execute(_ context.Context, args json.RawMessage) (tool.ToolResult, error) {
	if !t.ws.AllowDelete() {
		return tool.ToolResult{Error: "delete_file is disabled for this workspace (allow_delete is false)"}, nil
	}

	var a deleteFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	path, err := t.ws.Resolve(a.Path)
	if err != nil {
		return tool.ToolResult{Error: err.Error()}, nil
	}
	if msg := t.ws.CheckProtected(path); msg != "" {
		return tool.ToolResult{Error: msg}, nil
	}
	if path == t.ws.Root() {
		return tool.ToolResult{Error: "refusing to delete the workspace root"}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("NotFound: %s does not exist", a.Path)}, nil
	}

	if info.IsDir() && !a.Recursive {
		entries, err := os.ReadDir(path)
		if err != nil {
			return tool.ToolResult{Error: fmt.Sprintf("failed to read directory: %v", err)}, nil
		}
		if len(entries) > 0 {
			return tool.ToolResult{Error: "directory is not empty; pass recursive=true to delete it anyway"}, nil
		}
	}

	if a.Recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("delete failed: %v", err)}, nil
	}

	return tool.ToolResult{Output: fmt.Sprintf("deleted %s", a.Path)}, nil
}
