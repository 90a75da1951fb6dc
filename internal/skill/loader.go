package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localSkillsDir     = ".architect/skills"
	installedSkillsDir = ".architect/installed-skills"
	skillFile          = "SKILL.md"

	frontMatterDelim = "---"
)

// frontMatter is the optional YAML block at the top of a SKILL.md file.
type frontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Globs       []string `yaml:"globs"`
}

// ScanDir scans <workspaceDir>/.architect/skills/ and
// <workspaceDir>/.architect/installed-skills/ and returns every valid
// SkillDef found. A subdirectory without a SKILL.md is silently skipped.
// Neither directory existing is not an error — an empty slice is returned.
func ScanDir(workspaceDir string) ([]*SkillDef, []error) {
	var defs []*SkillDef
	var errs []error

	for _, root := range []string{localSkillsDir, installedSkillsDir} {
		dir := filepath.Join(workspaceDir, root)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("skill: scan %q: %w", dir, err))
			continue
		}

		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			skillDir := filepath.Join(dir, e.Name())
			mdPath := filepath.Join(skillDir, skillFile)

			data, err := os.ReadFile(mdPath)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				errs = append(errs, fmt.Errorf("skill: read %q: %w", mdPath, err))
				continue
			}

			def, err := parseSkillMD(data, e.Name())
			if err != nil {
				errs = append(errs, fmt.Errorf("skill %q: %w", e.Name(), err))
				continue
			}
			def.Dir = skillDir
			defs = append(defs, def)
		}
	}

	return defs, errs
}

// parseSkillMD splits data into an optional YAML front-matter block and a
// body. A file with no front matter is still a valid skill: dirName becomes
// its Name and the whole file becomes its Body.
func parseSkillMD(data []byte, dirName string) (*SkillDef, error) {
	text := string(data)

	if !strings.HasPrefix(strings.TrimLeft(text, "\r\n"), frontMatterDelim) {
		return &SkillDef{Name: dirName, Body: strings.TrimSpace(text)}, nil
	}

	text = strings.TrimLeft(text, "\r\n")
	rest := strings.TrimPrefix(text, frontMatterDelim)
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	closeIdx := indexOfDelimLine(rest)
	if closeIdx == -1 {
		return nil, fmt.Errorf("unterminated front matter (missing closing %q)", frontMatterDelim)
	}

	fmBlock := rest[:closeIdx]
	body := rest[closeIdx:]
	body = strings.TrimPrefix(body, frontMatterDelim)
	body = strings.TrimLeft(body, "\r\n")

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(fmBlock), &fm); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}

	name := fm.Name
	if name == "" {
		name = dirName
	}

	return &SkillDef{
		Name:        name,
		Description: fm.Description,
		Globs:       fm.Globs,
		Body:        strings.TrimSpace(body),
	}, nil
}

// indexOfDelimLine finds the byte offset of the first line that is exactly
// "---" (the front matter's closing delimiter), or -1 if none exists.
func indexOfDelimLine(s string) int {
	lines := strings.SplitAfter(s, "\n")
	offset := 0
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == frontMatterDelim {
			return offset
		}
		offset += len(line)
	}
	return -1
}
