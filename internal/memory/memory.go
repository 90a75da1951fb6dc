// Package memory implements the procedural-memory file ExternalInterfaces
// names: an append-only, human-readable log of corrections and patterns
// learned across sessions, persisted at .architect/memory.md.
package memory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/archrt/architect/internal/llm"
)

const (
	// RelPath is the workspace-relative location of the memory file.
	RelPath = ".architect/memory.md"

	header = "# Memoria del Proyecto"

	// TypeCorreccion records a user correction to the agent's behavior
	// ("no, use X instead"). TypePatron records an observed, reusable
	// pattern worth remembering. Labels are kept in Spanish per the
	// file's own header convention — this is the memory's vocabulary,
	// not a translatable UI string.
	TypeCorreccion = "Correccion"
	TypePatron     = "Patron"
)

// Entry is one line of the memory file.
type Entry struct {
	Date    string // YYYY-MM-DD
	Type    string
	Content string
}

var entryLine = regexp.MustCompile(`^- \[(\d{4}-\d{2}-\d{2})\] ([^:]+): (.*)$`)

// Store owns read/append access to one workspace's memory file. Safe for
// concurrent use; writes are serialized so a correction mined at the end of
// one session can't interleave with another.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a Store backed by <workspaceRoot>/.architect/memory.md.
func NewStore(workspaceRoot string) *Store {
	return &Store{path: filepath.Join(workspaceRoot, RelPath)}
}

// Raw returns the file's current contents, or "" if it doesn't exist yet.
func (s *Store) Raw() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("memory: read %q: %w", s.path, err)
	}
	return string(data), nil
}

// Entries parses the file's existing entries, skipping the header line and
// any line that doesn't match the "- [date] Type: content" format.
func (s *Store) Entries() ([]Entry, error) {
	raw, err := s.Raw()
	if err != nil {
		return nil, err
	}
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		m := entryLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		entries = append(entries, Entry{Date: m[1], Type: m[2], Content: m[3]})
	}
	return entries, nil
}

// Append writes new, deduplicated entries to the file, creating it (with
// header) if absent. Dedup is by Content only — an entry already present
// under any date/type is not re-added, so re-running the same correction
// miner across sessions never produces duplicate lines.
func (s *Store) Append(entries ...Entry) (added int, err error) {
	if len(entries) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.entriesLocked()
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e.Content] = true
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return 0, fmt.Errorf("memory: mkdir: %w", err)
	}

	needsHeader := len(existing) == 0
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("memory: open %q: %w", s.path, err)
	}
	defer f.Close()

	if needsHeader {
		if _, err := fmt.Fprintln(f, header); err != nil {
			return 0, fmt.Errorf("memory: write header: %w", err)
		}
	}

	for _, e := range entries {
		if seen[e.Content] {
			continue
		}
		if _, err := fmt.Fprintf(f, "- [%s] %s: %s\n", e.Date, e.Type, e.Content); err != nil {
			return added, fmt.Errorf("memory: write entry: %w", err)
		}
		seen[e.Content] = true
		added++
	}
	return added, nil
}

func (s *Store) entriesLocked() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memory: read %q: %w", s.path, err)
	}
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		m := entryLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		entries = append(entries, Entry{Date: m[1], Type: m[2], Content: m[3]})
	}
	return entries, nil
}

// MineCorrections scans the user-role messages of a completed session for
// text matching correction patterns — negations ("no, use X"),
// clarifications ("actually, ..."), and absolute rules ("always/never...")
// — and returns the matching lines as plain strings; the caller wraps them
// in dated Entries (this package never calls time.Now() itself).
func MineCorrections(messages []llm.Message) []string {
	var hits []string
	for _, m := range messages {
		if m.Role != llm.RoleUser {
			continue
		}
		for _, line := range strings.Split(m.Content, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if matchesCorrectionPattern(trimmed) {
				hits = append(hits, trimmed)
			}
		}
	}
	return hits
}

var correctionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^no,?\s`),
	regexp.MustCompile(`(?i)^actually,?\s`),
	regexp.MustCompile(`(?i)\balways\s`),
	regexp.MustCompile(`(?i)\bnever\s`),
	regexp.MustCompile(`(?i)\binstead of\b`),
	regexp.MustCompile(`(?i)\bdon't\s`),
	regexp.MustCompile(`(?i)\bstop\s+(doing|using)\b`),
}

func matchesCorrectionPattern(line string) bool {
	for _, p := range correctionPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
