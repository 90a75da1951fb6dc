package contextbuilder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archrt/architect/internal/llm"
	"github.com/archrt/architect/internal/memory"
)

func TestBuild_ProfileOnlyWhenNothingElsePresent(t *testing.T) {
	b := New(t.TempDir())
	msgs := b.Build("You are a helpful build agent.", "fix the bug", nil)

	if len(msgs) != 2 {
		t.Fatalf("expected exactly 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || msgs[0].Content != "You are a helpful build agent." {
		t.Fatalf("unexpected system message: %+v", msgs[0])
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != "fix the bug" {
		t.Fatalf("unexpected user message: %+v", msgs[1])
	}
}

func TestBuild_ComposesInstructionsFile(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("Run tests before committing."), 0644)

	b := New(root)
	msgs := b.Build("System prompt.", "task", nil)

	if !strings.Contains(msgs[0].Content, "Run tests before committing.") {
		t.Fatalf("expected instructions content in system prompt, got %q", msgs[0].Content)
	}
}

func TestBuild_PrefersArchitectMdOverOthers(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, ".architect.md"), []byte("from dotfile"), 0644)
	os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("from agents"), 0644)

	b := New(root)
	msgs := b.Build("", "task", nil)

	if !strings.Contains(msgs[0].Content, "from dotfile") || strings.Contains(msgs[0].Content, "from agents") {
		t.Fatalf("expected .architect.md to take priority, got %q", msgs[0].Content)
	}
}

func TestBuild_IncludesMatchedSkillsOnly(t *testing.T) {
	root := t.TempDir()
	skillDir := filepath.Join(root, ".architect/skills/go-style")
	os.MkdirAll(skillDir, 0755)
	os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("---\nname: go-style\nglobs:\n  - \"*.go\"\n---\nUse gofmt.\n"), 0644)

	dormantDir := filepath.Join(root, ".architect/skills/dormant")
	os.MkdirAll(dormantDir, 0755)
	os.WriteFile(filepath.Join(dormantDir, "SKILL.md"), []byte("---\nname: dormant\nglobs: []\n---\nNever shown.\n"), 0644)

	b := New(root)
	msgs := b.Build("", "task", []string{"main.go"})

	if !strings.Contains(msgs[0].Content, "Use gofmt.") {
		t.Fatalf("expected matched skill body included, got %q", msgs[0].Content)
	}
	if strings.Contains(msgs[0].Content, "Never shown.") {
		t.Fatalf("expected dormant skill excluded, got %q", msgs[0].Content)
	}
}

func TestBuild_IncludesNonEmptyMemory(t *testing.T) {
	root := t.TempDir()
	store := memory.NewStore(root)
	store.Append(memory.Entry{Date: "2026-07-31", Type: memory.TypePatron, Content: "prefer small commits"})

	b := New(root)
	msgs := b.Build("", "task", nil)

	if !strings.Contains(msgs[0].Content, "prefer small commits") {
		t.Fatalf("expected memory content included, got %q", msgs[0].Content)
	}
}

func TestBuild_OmitsMemorySectionWhenEmpty(t *testing.T) {
	b := New(t.TempDir())
	msgs := b.Build("profile only", "task", nil)

	if strings.Contains(msgs[0].Content, "Procedural Memory") {
		t.Fatalf("expected no memory section when memory file is absent, got %q", msgs[0].Content)
	}
}
