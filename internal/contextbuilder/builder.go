// Package contextbuilder assembles the initial message list an AgentLoop
// starts from: a composed system prompt (agent profile + project
// instructions + active skills + procedural memory) followed by the task as
// a user message. The assembled system prompt is stable for the duration of
// one loop — Build is called once, not recomputed between steps.
package contextbuilder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archrt/architect/internal/llm"
	"github.com/archrt/architect/internal/memory"
	"github.com/archrt/architect/internal/skill"
)

// instructionFilenames are tried in order; the first one that exists wins.
var instructionFilenames = []string{".architect.md", "AGENTS.md", "CLAUDE.md"}

// Builder composes system prompts for one workspace. Skills and the
// instructions file are read fresh on every Build call (not cached), since
// the loop only calls Build once at startup — there is no hot path to
// optimize here.
type Builder struct {
	WorkspaceRoot string
	Skills        *skill.Manager
	Memory        *memory.Store
}

// New creates a Builder rooted at workspaceRoot, with its own skill Manager
// and memory Store. Callers that already own a skill.Manager (e.g. to share
// it with a reload tool) should set Builder.Skills directly instead.
func New(workspaceRoot string) *Builder {
	return &Builder{
		WorkspaceRoot: workspaceRoot,
		Skills:        skill.NewManager(workspaceRoot),
		Memory:        memory.NewStore(workspaceRoot),
	}
}

// Build composes the system prompt from, in order: profileSystemPrompt, the
// project instructions file (if any), matched skill bodies (by
// activeFiles), and the procedural memory section (if non-empty) — then
// returns that system message followed by a user message carrying task.
func (b *Builder) Build(profileSystemPrompt, task string, activeFiles []string) []llm.Message {
	var sections []string

	if strings.TrimSpace(profileSystemPrompt) != "" {
		sections = append(sections, strings.TrimSpace(profileSystemPrompt))
	}

	if instructions := b.loadInstructions(); instructions != "" {
		sections = append(sections, "# Project Instructions\n\n"+instructions)
	}

	if skills := b.loadSkillSections(activeFiles); skills != "" {
		sections = append(sections, skills)
	}

	if mem := b.loadMemorySection(); mem != "" {
		sections = append(sections, mem)
	}

	system := strings.Join(sections, "\n\n")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: task},
	}
}

// loadInstructions returns the first existing instructions file's contents,
// or "" if none of instructionFilenames exist.
func (b *Builder) loadInstructions() string {
	for _, name := range instructionFilenames {
		data, err := os.ReadFile(filepath.Join(b.WorkspaceRoot, name))
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

// loadSkillSections scans and matches skills against activeFiles, returning
// a single labeled section concatenating every matched skill's body, or ""
// if none match.
func (b *Builder) loadSkillSections(activeFiles []string) string {
	if b.Skills == nil {
		return ""
	}
	b.Skills.Load()
	active := b.Skills.Active(activeFiles)
	if len(active) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("# Active Skills\n")
	for _, def := range active {
		sb.WriteString(fmt.Sprintf("\n## %s\n\n%s\n", def.Name, def.Body))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// loadMemorySection returns the procedural-memory section, or "" if the
// memory file is absent or empty.
func (b *Builder) loadMemorySection() string {
	if b.Memory == nil {
		return ""
	}
	raw, err := b.Memory.Raw()
	if err != nil || strings.TrimSpace(raw) == "" {
		return ""
	}
	return "# Procedural Memory\n\n" + strings.TrimSpace(raw)
}
