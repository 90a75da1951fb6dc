package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archrt/architect/internal/llm"
)

func TestStore_RawIsEmptyWhenAbsent(t *testing.T) {
	s := NewStore(t.TempDir())
	raw, err := s.Raw()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != "" {
		t.Fatalf("expected empty string, got %q", raw)
	}
}

func TestStore_AppendWritesHeaderOnFirstWrite(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	added, err := s.Append(Entry{Date: "2026-07-31", Type: TypeCorreccion, Content: "use tabs not spaces"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 added, got %d", added)
	}

	raw, _ := s.Raw()
	if !strings.HasPrefix(raw, header+"\n") {
		t.Fatalf("expected header as first line, got %q", raw)
	}
	if !strings.Contains(raw, "- [2026-07-31] Correccion: use tabs not spaces") {
		t.Fatalf("expected formatted entry line, got %q", raw)
	}
}

func TestStore_AppendDedupesByContent(t *testing.T) {
	s := NewStore(t.TempDir())
	s.Append(Entry{Date: "2026-07-31", Type: TypePatron, Content: "always run gofmt before commit"})
	added, err := s.Append(Entry{Date: "2026-08-01", Type: TypePatron, Content: "always run gofmt before commit"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected duplicate content to be skipped, got added=%d", added)
	}

	entries, _ := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 entry on disk, got %d", len(entries))
	}
}

func TestStore_AppendNoHeaderOnSubsequentWrites(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	s.Append(Entry{Date: "2026-07-31", Type: TypeCorreccion, Content: "first"})
	s.Append(Entry{Date: "2026-07-31", Type: TypeCorreccion, Content: "second"})

	raw, _ := s.Raw()
	if strings.Count(raw, header) != 1 {
		t.Fatalf("expected header written exactly once, got content %q", raw)
	}
}

func TestStore_EntriesParsesExisting(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, RelPath)
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte(header+"\n- [2026-01-01] Patron: use context.Context everywhere\n- not a valid entry line\n"), 0644)

	s := NewStore(root)
	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 parsed entry (malformed line skipped), got %d: %+v", len(entries), entries)
	}
	if entries[0].Type != TypePatron || entries[0].Content != "use context.Context everywhere" {
		t.Fatalf("unexpected parsed entry: %+v", entries[0])
	}
}

func TestMineCorrections(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: "please add a new endpoint"},
		{Role: llm.RoleAssistant, Content: "done"},
		{Role: llm.RoleUser, Content: "no, use gorilla/mux instead of the stdlib router"},
		{Role: llm.RoleUser, Content: "always run the linter before you commit"},
		{Role: llm.RoleUser, Content: "thanks, looks good"},
	}
	hits := MineCorrections(messages)
	if len(hits) != 2 {
		t.Fatalf("expected 2 correction hits, got %d: %+v", len(hits), hits)
	}
}

func TestMineCorrections_NoFalsePositiveOnPlainRequest(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: "can you refactor this function"},
	}
	if hits := MineCorrections(messages); len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}
