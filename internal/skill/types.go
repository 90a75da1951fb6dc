package skill

import "path/filepath"

// SkillDef is the parsed content of one SKILL.md file: a chunk of system
// prompt text that activates when the current active-file set matches one
// of its globs.
type SkillDef struct {
	Name        string
	Description string

	// Globs is nil when the SKILL.md has no front matter or omits the
	// globs key — such a skill always activates. A present-but-empty
	// "globs: []" is a distinct, non-nil empty slice and means the skill
	// never auto-activates.
	Globs []string
	Body  string

	// Dir is the absolute path to the skill's directory, set by the loader.
	Dir string
}

// Matches reports whether d should activate given the current workspace-
// relative active-file set. A nil Globs always matches; a non-nil, empty
// Globs never does.
func (d *SkillDef) Matches(activeFiles []string) bool {
	if d.Globs == nil {
		return true
	}
	for _, g := range d.Globs {
		for _, f := range activeFiles {
			if ok, _ := filepath.Match(g, f); ok {
				return true
			}
			if ok, _ := filepath.Match(g, filepath.Base(f)); ok {
				return true
			}
		}
	}
	return false
}
