// Package agentcfg loads the two configuration documents an agent run needs
// beyond environment variables: an agent profile (TOML) describing system
// prompt, allowed tools, confirmation mode, and step ceiling; and a pricing
// table (YAML) for internal/cost.PriceBook.
package agentcfg

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/archrt/architect/internal/execengine"
)

// Profile is one agent persona: the system prompt ContextBuilder starts
// from, the subset of registered tools it may call, its confirmation
// policy, and its step ceiling.
type Profile struct {
	Name         string   `toml:"name"`
	SystemPrompt string   `toml:"system_prompt"`
	AllowedTools []string `toml:"allowed_tools"` // empty = every registered tool
	ConfirmMode  string   `toml:"confirm_mode"`  // "yolo" | "confirm-sensitive" | "confirm-all"
	MaxSteps     int      `toml:"max_steps"`
	DryRun       bool     `toml:"dry_run"`
}

// LoadProfile parses a TOML agent profile from path.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, fmt.Errorf("agentcfg: parse profile %q: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the profile's own invariants — confirm-mode validity,
// non-negative step ceiling. SystemPrompt may legitimately be empty.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("agentcfg: profile name is required")
	}
	switch execengine.ConfirmMode(p.ConfirmMode) {
	case execengine.ModeYOLO, execengine.ModeConfirmSensitive, execengine.ModeConfirmAll:
	case "":
		p.ConfirmMode = string(execengine.ModeConfirmSensitive)
	default:
		return fmt.Errorf("agentcfg: profile %q: confirm_mode must be yolo, confirm-sensitive, or confirm-all, got %q", p.Name, p.ConfirmMode)
	}
	if p.MaxSteps < 0 {
		return fmt.Errorf("agentcfg: profile %q: max_steps cannot be negative, got %d", p.Name, p.MaxSteps)
	}
	return nil
}

// EffectiveConfirmMode returns the validated confirm mode as the
// execengine.ConfirmMode type Engine expects.
func (p *Profile) EffectiveConfirmMode() execengine.ConfirmMode {
	return execengine.ConfirmMode(p.ConfirmMode)
}

// FileExists reports whether path names a regular, readable file. Used by
// callers deciding whether to fall back to a default profile.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
