package skill

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Manager owns the set of skills discovered in a workspace and supports
// diff-based hot reload so a skill added or edited mid-session takes effect
// without restarting the loop.
//
// Concurrency: all state changes are guarded by mu.
type Manager struct {
	workspaceDir string
	mu           sync.Mutex
	skills       map[string]*SkillDef // name → SkillDef
}

// NewManager creates a Manager for the given workspace directory. No
// scanning is performed until Load or Reload is called.
func NewManager(workspaceDir string) *Manager {
	return &Manager{
		workspaceDir: workspaceDir,
		skills:       make(map[string]*SkillDef),
	}
}

// Load scans the workspace skill directories and replaces the current set.
// Returns the count loaded and any per-skill parse errors (non-fatal; other
// skills still load).
func (m *Manager) Load() (int, []error) {
	defs, errs := ScanDir(m.workspaceDir)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.skills = make(map[string]*SkillDef, len(defs))
	for _, def := range defs {
		m.skills[def.Name] = def
		log.Printf("[Skill] Loaded: %s", def.Name)
	}
	return len(m.skills), errs
}

// Reload re-scans the workspace skill directories and applies a diff,
// logging additions, removals, and updates. Returns a human-readable
// summary of what changed.
func (m *Manager) Reload() string {
	defs, scanErrs := ScanDir(m.workspaceDir)

	newSkills := make(map[string]*SkillDef, len(defs))
	for _, def := range defs {
		newSkills[def.Name] = def
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for name := range m.skills {
		if _, exists := newSkills[name]; !exists {
			removed++
			log.Printf("[Skill] Unloaded: %s", name)
		}
	}

	added := 0
	for name := range newSkills {
		if _, existed := m.skills[name]; !existed {
			added++
			log.Printf("[Skill] Loaded: %s", name)
		}
	}
	updated := len(newSkills) - added

	m.skills = newSkills

	var parts []string
	parts = append(parts, fmt.Sprintf("Skill reload: +%d added, -%d removed, %d reloaded", added, removed, updated))
	for _, e := range scanErrs {
		parts = append(parts, fmt.Sprintf("[WARNING] %v", e))
	}
	return strings.Join(parts, "\n")
}

// All returns every loaded skill, in no particular order.
func (m *Manager) All() []*SkillDef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*SkillDef, 0, len(m.skills))
	for _, def := range m.skills {
		out = append(out, def)
	}
	return out
}

// Active returns the skills whose globs match the given workspace-relative
// active-file set, in a stable order (sorted by name) so ContextBuilder's
// assembled system prompt is deterministic across otherwise-identical runs.
func (m *Manager) Active(activeFiles []string) []*SkillDef {
	all := m.All()
	var active []*SkillDef
	for _, def := range all {
		if def.Matches(activeFiles) {
			active = append(active, def)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })
	return active
}
