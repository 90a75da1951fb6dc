// Package workspace implements root-bound path resolution and the
// deletion/sensitivity policy shared by the built-in file and shell tools.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrPathEscape is returned (wrapped) when a resolved path would fall
// outside the workspace root, whether via "..", a symlink, or an absolute
// input outside root.
var ErrPathEscape = errors.New("PathEscape")

// Workspace binds tool filesystem access to a root directory.
type Workspace struct {
	root        string
	allowDelete bool
	sensitive   []string // glob patterns, e.g. "*.key", "*.env", "*password*"
}

// New creates a Workspace rooted at root. Patterns are sensitivity globs
// matched against the resolved path's base name and its path relative to
// root.
func New(root string, allowDelete bool, sensitivePatterns []string) *Workspace {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &Workspace{root: abs, allowDelete: allowDelete, sensitive: sensitivePatterns}
}

// Root returns the workspace's absolute root directory.
func (w *Workspace) Root() string { return w.root }

// AllowDelete reports whether delete_file is permitted in this workspace.
func (w *Workspace) AllowDelete() bool { return w.allowDelete }

// Resolve normalizes path (absolute or relative-to-root) and guarantees the
// resolved absolute path is root itself or lies within it. It resolves symlinks on
// both the root and the target so that a symlink inside the workspace that
// points outside it is caught, and a workspace root that is itself a
// symlink is still correctly bounded.
func (w *Workspace) Resolve(path string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else {
		resolved = filepath.Clean(filepath.Join(w.root, path))
	}

	if w.root == "" {
		return resolved, nil
	}

	realRoot, err := filepath.EvalSymlinks(w.root)
	if err != nil {
		realRoot = w.root
	}

	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolving target path: %w", err)
	}
	realResolved, _ := resolveExisting(absResolved)

	cmpRoot, cmpResolved := realRoot, realResolved
	if runtime.GOOS == "windows" {
		cmpRoot = strings.ToLower(cmpRoot)
		cmpResolved = strings.ToLower(cmpResolved)
	}

	if cmpResolved != cmpRoot && !strings.HasPrefix(cmpResolved, cmpRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path %q escapes workspace root %q", ErrPathEscape, path, w.root)
	}

	return resolved, nil
}

// resolveExisting resolves symlinks for an existing path, or for its parent
// directory if the path itself does not yet exist (e.g. a new file about to
// be written).
func resolveExisting(path string) (string, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real, nil
	}
	if real, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		return filepath.Join(real, filepath.Base(path)), nil
	}
	return path, nil
}

// IsSensitive matches resolved (an already-Resolve'd path) against the
// workspace's sensitive glob set: patterns are checked against both the
// base name and the path relative to root, case-insensitively.
func (w *Workspace) IsSensitive(resolvedPath string) bool {
	base := filepath.Base(resolvedPath)
	rel, err := filepath.Rel(w.root, resolvedPath)
	if err != nil {
		rel = resolvedPath
	}
	lowerBase := strings.ToLower(base)
	lowerRel := strings.ToLower(filepath.ToSlash(rel))

	for _, pat := range w.sensitive {
		lowerPat := strings.ToLower(pat)
		if ok, _ := filepath.Match(lowerPat, lowerBase); ok {
			return true
		}
		if ok, _ := filepath.Match(lowerPat, lowerRel); ok {
			return true
		}
		// substring-style globs like "*password*" — filepath.Match already
		// handles the leading/trailing "*", this branch is for patterns with
		// no glob metacharacters at all (plain substring match).
		if !strings.ContainsAny(pat, "*?[") && strings.Contains(lowerRel, lowerPat) {
			return true
		}
	}
	return false
}

// DefaultSensitivePatterns is the fallback glob set used when no
// configuration overrides it.
var DefaultSensitivePatterns = []string{
	"*.key", "*.pem", "*.env", "*password*", "*secret*", "*.p12", "*.pfx",
	"id_rsa", "id_ed25519", "*.credentials",
}

// protectedFiles maps workspace-relative filenames (at root only) to the
// tool that should be used instead of a generic file-mutating tool.
var protectedFiles = map[string]string{
	"mcp.json":    "mcp_reload (edit the file through the MCP discovery component)",
	"memory.md":   "the procedural-memory writer",
}

// CheckProtected returns a non-empty error message if resolvedPath points to
// a file that built-in write/patch/delete tools must refuse to touch.
func (w *Workspace) CheckProtected(resolvedPath string) string {
	dir := filepath.Dir(resolvedPath)
	base := filepath.Base(resolvedPath)
	root := w.root
	if runtime.GOOS == "windows" {
		dir = strings.ToLower(dir)
		root = strings.ToLower(root)
		base = strings.ToLower(base)
	}
	// memory.md is protected wherever it lives under .architect/, not just at root.
	if strings.Contains(filepath.ToSlash(resolvedPath), ".architect/memory.md") {
		return fmt.Sprintf("refusing to modify %s directly — it is maintained by the procedural-memory writer", resolvedPath)
	}
	if dir != root {
		return ""
	}
	if alt, ok := protectedFiles[base]; ok {
		return fmt.Sprintf("refusing to modify %s directly — use %s instead", base, alt)
	}
	return ""
}
