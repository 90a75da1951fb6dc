package skill

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, localSkillsDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, skillFile), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScanDir_NoSkillsDirReturnsEmpty(t *testing.T) {
	defs, errs := ScanDir(t.TempDir())
	if len(defs) != 0 || len(errs) != 0 {
		t.Fatalf("expected no defs/errs, got %+v / %+v", defs, errs)
	}
}

func TestScanDir_NoFrontMatterUsesDirName(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "go-testing", "Run tests with `go test ./...` before committing.\n")

	defs, errs := ScanDir(root)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 def, got %d", len(defs))
	}
	if defs[0].Name != "go-testing" {
		t.Fatalf("expected dir name as Name, got %q", defs[0].Name)
	}
	if defs[0].Globs != nil {
		t.Fatalf("expected nil Globs (always active), got %+v", defs[0].Globs)
	}
}

func TestScanDir_FrontMatterParsed(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "python-style", "---\nname: python-style\ndescription: PEP8 conventions\nglobs:\n  - \"*.py\"\n---\nUse 4-space indents.\n")

	defs, errs := ScanDir(root)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	def := defs[0]
	if def.Name != "python-style" || def.Description != "PEP8 conventions" {
		t.Fatalf("front matter not parsed correctly: %+v", def)
	}
	if len(def.Globs) != 1 || def.Globs[0] != "*.py" {
		t.Fatalf("expected globs [*.py], got %+v", def.Globs)
	}
	if def.Body != "Use 4-space indents." {
		t.Fatalf("unexpected body: %q", def.Body)
	}
}

func TestScanDir_EmptyGlobsListMeansNeverActivates(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "dormant", "---\nname: dormant\nglobs: []\n---\nThis never auto-activates.\n")

	defs, _ := ScanDir(root)
	def := defs[0]
	if def.Globs == nil {
		t.Fatal("expected non-nil empty Globs for explicit globs: []")
	}
	if len(def.Globs) != 0 {
		t.Fatalf("expected empty Globs, got %+v", def.Globs)
	}
	if def.Matches([]string{"anything.go"}) {
		t.Fatal("a skill with explicit empty globs must never match")
	}
}

func TestSkillDef_MatchesGlob(t *testing.T) {
	def := &SkillDef{Name: "py", Globs: []string{"*.py"}}
	if !def.Matches([]string{"src/main.py"}) {
		t.Fatal("expected match on basename glob")
	}
	if def.Matches([]string{"src/main.go"}) {
		t.Fatal("expected no match for unrelated extension")
	}
}

func TestScanDir_UnterminatedFrontMatterIsError(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "broken", "---\nname: broken\nno closing delimiter here\n")

	_, errs := ScanDir(root)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %+v", errs)
	}
}

func TestManager_ActiveFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "zeta-skill", "Always active, no front matter.\n")
	writeSkill(t, root, "alpha-skill", "---\nname: alpha-skill\nglobs:\n  - \"*.go\"\n---\nGo conventions.\n")
	writeSkill(t, root, "dormant", "---\nname: dormant\nglobs: []\n---\nNever shown.\n")

	m := NewManager(root)
	if n, errs := m.Load(); n != 3 || len(errs) != 0 {
		t.Fatalf("expected 3 loaded with no errors, got n=%d errs=%v", n, errs)
	}

	active := m.Active([]string{"main.go"})
	if len(active) != 2 {
		t.Fatalf("expected 2 active skills (zeta always-on + alpha by glob), got %d: %+v", len(active), active)
	}
	if active[0].Name != "alpha-skill" || active[1].Name != "zeta-skill" {
		t.Fatalf("expected sorted by name, got %+v", active)
	}
}

func TestManager_ReloadDetectsAddAndRemove(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "first", "Stays.\n")

	m := NewManager(root)
	m.Load()

	if err := os.RemoveAll(filepath.Join(root, localSkillsDir, "first")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeSkill(t, root, "second", "New.\n")

	summary := m.Reload()
	if summary == "" {
		t.Fatal("expected non-empty reload summary")
	}
	all := m.All()
	if len(all) != 1 || all[0].Name != "second" {
		t.Fatalf("expected only 'second' to remain, got %+v", all)
	}
}
