package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/archrt/architect/internal/workspace"
)

func TestResolve_WithinRoot(t *testing.T) {
	dir := t.TempDir()
	w := workspace.New(dir, false, nil)

	resolved, err := w.Resolve("sub/file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(dir, "sub", "file.txt")
	if resolved != want {
		t.Errorf("resolved = %q, want %q", resolved, want)
	}
}

func TestResolve_TraversalEscapes(t *testing.T) {
	dir := t.TempDir()
	w := workspace.New(dir, false, nil)

	_, err := w.Resolve("../etc/passwd")
	if err == nil {
		t.Fatal("expected PathEscape error")
	}
}

func TestResolve_PrefixCollisionDoesNotEscape(t *testing.T) {
	dir := t.TempDir()
	evil := dir + "-evil"
	w := workspace.New(dir, false, nil)

	_, err := w.Resolve(filepath.Join(evil, "attack.txt"))
	if err == nil {
		t.Fatal("expected PathEscape for sibling-directory prefix collision")
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	w := workspace.New(dir, false, nil)
	_, err := w.Resolve(filepath.Join("escape", "secret.txt"))
	if err == nil {
		t.Fatal("expected PathEscape through symlink")
	}
}

func TestIsSensitive_MatchesGlobs(t *testing.T) {
	dir := t.TempDir()
	w := workspace.New(dir, false, workspace.DefaultSensitivePatterns)

	resolved, _ := w.Resolve(".env")
	if !w.IsSensitive(resolved) {
		t.Error("expected .env to be sensitive")
	}

	resolved, _ = w.Resolve("readme.md")
	if w.IsSensitive(resolved) {
		t.Error("expected readme.md to not be sensitive")
	}
}

func TestCheckProtected_MemoryFile(t *testing.T) {
	dir := t.TempDir()
	w := workspace.New(dir, false, nil)

	resolved, _ := w.Resolve(filepath.Join(".architect", "memory.md"))
	if msg := w.CheckProtected(resolved); msg == "" {
		t.Error("expected memory.md to be protected")
	}
}

func TestAllowDelete(t *testing.T) {
	w := workspace.New(t.TempDir(), true, nil)
	if !w.AllowDelete() {
		t.Error("expected AllowDelete true")
	}
}
