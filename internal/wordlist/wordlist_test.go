package wordlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/typerace/internal/model"
)

func TestPoolsByLength(t *testing.T) {
	pools := NewPools([]string{"a", "house", "actually", "tree", "between"})
	for _, w := range pools.For(model.DifficultyEasy) {
		if len(w) > easyMaxLen {
			t.Fatalf("easy pool contains %q", w)
		}
	}
	for _, w := range pools.For(model.DifficultyHard) {
		if len(w) < hardMinLen {
			t.Fatalf("hard pool contains %q", w)
		}
	}
	if got := len(pools.For(model.DifficultyMedium)); got != 5 {
		t.Fatalf("expected full pool of 5, got %d", got)
	}
}

func TestPoolsFallBackWhenEmpty(t *testing.T) {
	pools := NewPools([]string{"a", "be", "cat"})
	hard := pools.For(model.DifficultyHard)
	if len(hard) != 3 {
		t.Fatalf("expected fallback to full pool, got %v", hard)
	}
}

func TestBuiltinHasAllPools(t *testing.T) {
	words := Builtin()
	if len(words) == 0 {
		t.Fatalf("expected built-in words")
	}
	pools := NewPools(words)
	if len(pools.For(model.DifficultyEasy)) == len(words) {
		t.Fatalf("expected easy pool to be a strict subset")
	}
	if len(pools.For(model.DifficultyHard)) == len(words) {
		t.Fatalf("expected hard pool to be a strict subset")
	}
}

func TestLoadWordsFiltersAndSkipsBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("hello\n\n  world \nnaïve\nco-op\n"), 0o644); err != nil {
		t.Fatalf("write words: %v", err)
	}
	words, err := LoadWords(path)
	if err != nil {
		t.Fatalf("LoadWords failed: %v", err)
	}
	if len(words) != 2 || words[0] != "hello" || words[1] != "world" {
		t.Fatalf("unexpected words: %v", words)
	}
}

func TestLoadWordsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatalf("write words: %v", err)
	}
	if _, err := LoadWords(path); err == nil {
		t.Fatalf("expected error for empty list")
	}
}
