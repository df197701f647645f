// Package wordlist loads word lists and splits them into difficulty pools.
package wordlist

import (
	"bufio"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/verte-zerg/typerace/internal/model"
)

//go:embed words.txt
var builtinWords string

// easyMaxLen and hardMinLen bound the easy and hard pools by word length.
const (
	easyMaxLen = 5
	hardMinLen = 6
)

var builtin = parseWords(builtinWords)

// Builtin returns the built-in word pool. Rooms always generate from it so a
// stored seed reproduces the passage on any machine.
func Builtin() []string {
	return append([]string(nil), builtin...)
}

// Pools holds the three difficulty pools derived from one word list.
type Pools struct {
	all  []string
	easy []string
	hard []string
}

// NewPools splits words into difficulty pools, preserving list order.
func NewPools(words []string) Pools {
	p := Pools{all: words}
	for _, w := range words {
		n := len([]rune(w))
		if n <= easyMaxLen {
			p.easy = append(p.easy, w)
		}
		if n >= hardMinLen {
			p.hard = append(p.hard, w)
		}
	}
	return p
}

// For returns the pool for a difficulty, or the full list when that pool is empty.
func (p Pools) For(d model.Difficulty) []string {
	var pool []string
	switch d {
	case model.DifficultyEasy:
		pool = p.easy
	case model.DifficultyHard:
		pool = p.hard
	default:
		pool = p.all
	}
	if len(pool) == 0 {
		return p.all
	}
	return pool
}

// LoadWords reads one word per line from the provided file path, keeping only
// words that pass Accept.
func LoadWords(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only word list.
			_ = cerr
		}
	}()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !Accept(line) {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return words, nil
}

func parseWords(raw string) []string {
	var words []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		words = append(words, line)
	}
	return words
}
