package identity

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOrCreatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity.toml")
	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == "" || !strings.HasPrefix(first.Name, "Player") || len(first.Name) != len("Player")+6 {
		t.Fatalf("unexpected identity: %+v", first)
	}
	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if second != first {
		t.Fatalf("identity changed across loads: %+v vs %+v", first, second)
	}
}

func TestRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.toml")
	id, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Rename(path, id, "   "); err == nil {
		t.Fatalf("expected empty name error")
	}
	renamed, err := Rename(path, id, "  "+strings.Repeat("z", 40))
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if len([]rune(renamed.Name)) != MaxNameRunes || renamed.ID != id.ID {
		t.Fatalf("unexpected rename result: %+v", renamed)
	}
	loaded, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Name != renamed.Name {
		t.Fatalf("rename not persisted: %q", loaded.Name)
	}
}

func TestDefaultName(t *testing.T) {
	if got := DefaultName("ab12cd34-ef56"); got != "Playerab12cd" {
		t.Fatalf("unexpected default name %q", got)
	}
	if got := DefaultName("abc"); got != "Playerabc" {
		t.Fatalf("unexpected short default name %q", got)
	}
}
