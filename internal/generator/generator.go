// Package generator builds deterministic typing passages from a seed.
package generator

import (
	"hash/fnv"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/wordlist"
)

// Sizing assumptions for WordCountForDuration.
const (
	AverageWPM   = 55
	BufferFactor = 1.8

	untimedSizingSeconds = 60
)

const punctAfterWord = ",.?!:;"

var punctuationRate = map[model.Difficulty]float64{
	model.DifficultyEasy:   0.08,
	model.DifficultyMedium: 0.18,
	model.DifficultyHard:   0.28,
}

// Generator produces passages from a fixed word list.
type Generator struct {
	pools wordlist.Pools
}

// New returns a Generator over the built-in word list.
func New() *Generator {
	return NewWithWords(wordlist.Builtin())
}

// NewWithWords returns a Generator over a custom word list.
func NewWithWords(words []string) *Generator {
	return &Generator{pools: wordlist.NewPools(words)}
}

var builtinGenerator = New()

// Generate is the built-in generator's Generate.
func Generate(seed string, wordCount int, d model.Difficulty) string {
	return builtinGenerator.Generate(seed, wordCount, d)
}

// Generate returns wordCount words drawn from the difficulty pool. The output
// depends only on the inputs and the word list.
func (g *Generator) Generate(seed string, wordCount int, d model.Difficulty) string {
	if wordCount <= 0 {
		return ""
	}
	rnd := NewMulberry32(HashSeed(seed))
	pool := g.pools.For(d)
	rate, ok := punctuationRate[d]
	if !ok {
		rate = punctuationRate[model.DifficultyMedium]
	}

	var b strings.Builder
	for i := 0; i < wordCount; i++ {
		b.WriteString(pool[rnd.Intn(len(pool))])
		if i == wordCount-1 {
			break
		}
		if rnd.Float64() < rate {
			b.WriteByte(punctAfterWord[rnd.Intn(len(punctAfterWord))])
		}
		b.WriteByte(' ')
	}
	return strings.TrimSpace(b.String())
}

// WordCountForDuration sizes a passage so a typist at AverageWPM cannot run
// out of text before the timer ends. Untimed sessions size as a one-minute race.
func WordCountForDuration(seconds int) int {
	if seconds <= 0 {
		seconds = untimedSizingSeconds
	}
	return int(math.Ceil(float64(seconds) / 60 * AverageWPM * BufferFactor))
}

// NewSeed returns a fresh random seed.
func NewSeed() string {
	return uuid.NewString()
}

// HashSeed folds a seed string into 32 bits with FNV-1a.
func HashSeed(seed string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return h.Sum32()
}
