package builtin

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/archrt/architect/internal/tool"
	"github.com/archrt/architect/internal/workspace"
)

const (
	grepTimeout         = 15 * time.Second
	grepDefaultMax      = 50
	grepHardMax         = 200
	grepMaxLineLen      = 200
	grepMaxContextLines = 3
)

// grepTool implements grep: literal text search when Text is supplied,
// regex search when Pattern is supplied.
type grepTool struct {
	ws          *workspace.Workspace
	toolName    string
	description string
}

func NewGrepTool(ws *workspace.Workspace) tool.Tool {
	return &grepTool{ws: ws, toolName: "grep", description: "Search file contents for a literal string or a regular expression. " +
		"Provide exactly one of text (literal) or pattern (regex)."}
}

// NewSearchCodeTool returns the same line-anchored matcher advertised as a
// semantic code search, per the distinct search_code tool name.
func NewSearchCodeTool(ws *workspace.Workspace) tool.Tool {
	return &grepTool{ws: ws, toolName: "search_code", description: "Search the codebase for a pattern (semantic code search). " +
		"Provide exactly one of text (literal) or pattern (regex)."}
}

func (t *grepTool) Name() string        { return t.toolName }
func (t *grepTool) Description() string { return t.description }
func (t *grepTool) Sensitive() bool     { return false }

func (t *grepTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "text", Type: "string", Description: "Literal text to search for", Required: false},
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "Regular expression to search for", Required: false},
		tool.SchemaParam{Name: "path", Type: "string", Description: "Directory or file to search (default: workspace root)", Required: false},
		tool.SchemaParam{Name: "case_sensitive", Type: "boolean", Description: "Case-sensitive match (default false)", Required: false},
		tool.SchemaParam{Name: "file_glob", Type: "string", Description: "Filename filter, e.g. *.go or *.{ts,tsx}", Required: false},
		tool.SchemaParam{Name: "context_lines", Type: "integer", Description: "Lines of context before/after each match (default 0, max 3)", Required: false},
		tool.SchemaParam{Name: "max_results", Type: "integer", Description: "Maximum matches returned (default 50, max 200)", Required: false},
	)
}

func (t *grepTool) Init(_ context.Context) error { return nil }
func (t *grepTool) Close() error                 { return nil }

type grepArgs struct {
	Text          string `json:"text"`
	Pattern       string `json:"pattern"`
	Path          string `json:"path"`
	CaseSensitive bool   `json:"case_sensitive"`
	FileGlob      string `json:"file_glob"`
	ContextLines  int    `json:"context_lines"`
	MaxResults    int    `json:"max_results"`
}

type grepMatch struct {
	File        string
	LineNum     int
	Line        string
	BeforeStart int
	Before      []string
	After       []string
}

func (t *grepTool) Execute(ctx context.Context, args json.RawMessage) (tool.ToolResult, error) {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	if (a.Text == "") == (a.Pattern == "") {
		return tool.ToolResult{Error: "exactly one of text or pattern must be provided"}, nil
	}

	contextLines := clamp(a.ContextLines, 0, grepMaxContextLines)
	maxResults := a.MaxResults
	if maxResults <= 0 {
		maxResults = grepDefaultMax
	}
	if maxResults > grepHardMax {
		maxResults = grepHardMax
	}

	var re *regexp.Regexp
	var err error
	if a.Pattern != "" {
		re, err = buildGrepRegexp(a.Pattern, a.CaseSensitive)
		if err != nil {
			return tool.ToolResult{Error: fmt.Sprintf("invalid regular expression: %v", err)}, nil
		}
	} else {
		re, err = buildGrepRegexp(regexp.QuoteMeta(a.Text), a.CaseSensitive)
		if err != nil {
			return tool.ToolResult{Error: fmt.Sprintf("internal error compiling literal match: %v", err)}, nil
		}
	}

	searchRoot := t.ws.Root()
	if a.Path != "" {
		resolved, err := t.ws.Resolve(a.Path)
		if err != nil {
			return tool.ToolResult{Error: err.Error()}, nil
		}
		searchRoot = resolved
	}

	walkCtx, cancel := context.WithTimeout(ctx, grepTimeout)
	defer cancel()

	if _, err := os.Stat(searchRoot); err != nil {
		return tool.ToolResult{Error: fmt.Sprintf("NotFound: %s does not exist", a.Path)}, nil
	}

	var matches []grepMatch
	limitReached := false

	_ = filepath.WalkDir(searchRoot, func(path string, d os.DirEntry, err error) error {
		select {
		case <-walkCtx.Done():
			return walkCtx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if a.FileGlob != "" {
			matched, _ := matchFileGlob(a.FileGlob, d.Name())
			if !matched {
				return nil
			}
		}
		fileMatches, ferr := searchInFile(walkCtx, path, re, contextLines)
		if ferr != nil {
			return nil
		}
		for _, m := range fileMatches {
			if len(matches) >= maxResults {
				limitReached = true
				return fmt.Errorf("limit reached")
			}
			matches = append(matches, m)
		}
		return nil
	})

	if len(matches) == 0 {
		return tool.ToolResult{Output: "no matches found"}, nil
	}

	return tool.ToolResult{Output: formatGrepResults(matches, t.ws.Root(), limitReached, maxResults)}, nil
}

func buildGrepRegexp(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	prefix := "(?i)"
	if caseSensitive {
		prefix = ""
	}
	return regexp.Compile(prefix + pattern)
}

func matchFileGlob(pattern, name string) (bool, error) {
	if strings.Contains(pattern, "{") && strings.Contains(pattern, "}") {
		start := strings.Index(pattern, "{")
		end := strings.Index(pattern, "}")
		if start < end {
			prefix := pattern[:start]
			suffix := pattern[end+1:]
			for _, alt := range strings.Split(pattern[start+1:end], ",") {
				m, err := filepath.Match(prefix+strings.TrimSpace(alt)+suffix, name)
				if err != nil {
					return false, err
				}
				if m {
					return true, nil
				}
			}
			return false, nil
		}
	}
	return filepath.Match(pattern, name)
}

func searchInFile(ctx context.Context, path string, re *regexp.Regexp, contextLines int) ([]grepMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > 10<<20 {
		return nil, nil
	}

	sample := make([]byte, 512)
	n, err := f.Read(sample)
	if err != nil && n == 0 {
		return nil, err
	}
	if isGrepBinary(sample[:n]) {
		return nil, nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var matches []grepMatch
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		m := grepMatch{File: path, LineNum: i + 1, Line: truncateLine(line, grepMaxLineLen)}
		if contextLines > 0 {
			beforeStart := i - contextLines
			if beforeStart < 0 {
				beforeStart = 0
			}
			m.BeforeStart = beforeStart + 1
			for j := beforeStart; j < i; j++ {
				m.Before = append(m.Before, truncateLine(lines[j], grepMaxLineLen))
			}
			end := i + contextLines + 1
			if end > len(lines) {
				end = len(lines)
			}
			for j := i + 1; j < end; j++ {
				m.After = append(m.After, truncateLine(lines[j], grepMaxLineLen))
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func isGrepBinary(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}
	if utf8.Valid(data) {
		return false
	}
	nonPrintable := 0
	for _, b := range data {
		if b < 0x08 || (b >= 0x0E && b < 0x20 && b != 0x1B) {
			nonPrintable++
		}
	}
	return len(data) > 0 && nonPrintable*10 > len(data)
}

func truncateLine(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func formatGrepResults(matches []grepMatch, root string, limitReached bool, maxResults int) string {
	var sb strings.Builder
	currentFile := ""
	fileCount := 0
	totalMatches := 0

	for _, m := range matches {
		relFile := relOrAbs(m.File, root)
		if relFile != currentFile {
			if currentFile != "" {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("file: %s\n", relFile))
			currentFile = relFile
			fileCount++
		}
		for i, line := range m.Before {
			sb.WriteString(fmt.Sprintf("  %d:   %s\n", m.BeforeStart+i, line))
		}
		sb.WriteString(fmt.Sprintf("  %d: > %s\n", m.LineNum, m.Line))
		for i, line := range m.After {
			sb.WriteString(fmt.Sprintf("  %d:   %s\n", m.LineNum+1+i, line))
		}
		totalMatches++
	}

	suffix := ""
	if limitReached {
		suffix = fmt.Sprintf(" (capped at %d)", maxResults)
	}
	sb.WriteString(fmt.Sprintf("---\n%d file(s), %d match(es)%s ('>' marks the matched line)", fileCount, totalMatches, suffix))
	return sb.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
