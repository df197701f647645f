// Package session implements the client-local typing state machine.
package session

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/verte-zerg/typerace/internal/stats"
)

// Status is the engine state.
type Status string

// Engine states.
const (
	StatusIdle      Status = "idle"
	StatusCountdown Status = "countdown"
	StatusPlaying   Status = "playing"
	StatusPaused    Status = "paused"
	StatusFinished  Status = "finished"
)

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	Status      Status
	Passage     string
	Typed       string
	Cursor      int
	Results     []bool
	Correct     int
	Mistakes    int
	WPM         int
	Accuracy    int
	Progress    int
	Duration    int
	TimeLeft    int
	PausedTotal time.Duration
}

// Engine turns keystrokes against a passage into live metrics. It is not safe
// for concurrent use; every mutator returns immediately.
type Engine struct {
	clock clockwork.Clock

	status   Status
	passage  []rune
	typed    []rune
	results  []bool
	correct  int
	mistakes int
	wpm      int
	accuracy int

	// duration 0 means count-up; timeLeft then holds elapsed seconds.
	duration int
	timeLeft int

	startedAt   time.Time
	pausedTotal time.Duration
	pauseStart  time.Time
}

// New returns an idle engine reading time from clock.
func New(clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{clock: clock, status: StatusIdle, accuracy: 100}
}

// SetPassage installs a new passage and resets the engine to idle.
func (e *Engine) SetPassage(passage string) {
	e.passage = []rune(passage)
	e.Reset()
}

// SetDuration sets the timer length in seconds; 0 counts up.
func (e *Engine) SetDuration(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	e.duration = seconds
	e.timeLeft = seconds
}

// StartCountdown moves idle to countdown.
func (e *Engine) StartCountdown() {
	if e.status == StatusIdle {
		e.status = StatusCountdown
	}
}

// Start begins typing, clearing all counters and stamping the start time.
// An engine without a passage stays where it is.
func (e *Engine) Start() {
	if len(e.passage) == 0 {
		return
	}
	if e.status != StatusIdle && e.status != StatusCountdown {
		return
	}
	e.clearProgress()
	e.status = StatusPlaying
	e.startedAt = e.clock.Now()
}

// Pause stamps a pause start.
func (e *Engine) Pause() {
	if e.status != StatusPlaying {
		return
	}
	e.status = StatusPaused
	e.pauseStart = e.clock.Now()
}

// Resume shifts the start time forward by the pause length so elapsed time
// excludes pauses.
func (e *Engine) Resume() {
	if e.status != StatusPaused {
		return
	}
	paused := e.clock.Since(e.pauseStart)
	e.startedAt = e.startedAt.Add(paused)
	e.pausedTotal += paused
	e.pauseStart = time.Time{}
	e.status = StatusPlaying
}

// TypeChar records one keystroke against the passage.
func (e *Engine) TypeChar(c rune) {
	if e.status != StatusPlaying || len(e.typed) >= len(e.passage) {
		return
	}
	ok := c == e.passage[len(e.typed)]
	e.typed = append(e.typed, c)
	e.results = append(e.results, ok)
	if ok {
		e.correct++
	} else {
		e.mistakes++
	}
	e.recompute()
	if len(e.typed) == len(e.passage) {
		e.End()
	}
}

// DeleteChar undoes the most recent keystroke.
func (e *Engine) DeleteChar() {
	if e.status != StatusPlaying || len(e.typed) == 0 {
		return
	}
	last := len(e.typed) - 1
	if e.results[last] {
		e.correct--
	} else {
		e.mistakes--
	}
	e.typed = e.typed[:last]
	e.results = e.results[:last]
	e.recompute()
}

// Tick advances the session timer by one second.
func (e *Engine) Tick() {
	if e.status != StatusPlaying {
		return
	}
	if e.duration == 0 {
		e.timeLeft++
		return
	}
	e.timeLeft--
	if e.timeLeft <= 0 {
		e.timeLeft = 0
		e.End()
	}
}

// End forces the session to finish regardless of cursor position.
func (e *Engine) End() {
	e.status = StatusFinished
}

// Reset returns to idle with the current passage and duration.
func (e *Engine) Reset() {
	e.clearProgress()
	e.status = StatusIdle
	e.startedAt = time.Time{}
}

// Status reports the current state.
func (e *Engine) Status() Status {
	return e.status
}

// Elapsed returns typing time excluding pauses.
func (e *Engine) Elapsed() time.Duration {
	if e.startedAt.IsZero() {
		return 0
	}
	now := e.clock.Now()
	if e.status == StatusPaused {
		now = e.pauseStart
	}
	return now.Sub(e.startedAt)
}

// Snapshot copies the engine state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Status:      e.status,
		Passage:     string(e.passage),
		Typed:       string(e.typed),
		Cursor:      len(e.typed),
		Results:     append([]bool(nil), e.results...),
		Correct:     e.correct,
		Mistakes:    e.mistakes,
		WPM:         e.wpm,
		Accuracy:    e.accuracy,
		Progress:    stats.ProgressPercent(len(e.typed), len(e.passage)),
		Duration:    e.duration,
		TimeLeft:    e.timeLeft,
		PausedTotal: e.pausedTotal,
	}
}

func (e *Engine) clearProgress() {
	e.typed = nil
	e.results = nil
	e.correct = 0
	e.mistakes = 0
	e.wpm = 0
	e.accuracy = 100
	e.timeLeft = e.duration
	e.pausedTotal = 0
	e.pauseStart = time.Time{}
}

func (e *Engine) recompute() {
	e.accuracy = stats.Accuracy(e.correct, len(e.typed))
	e.wpm = stats.WPM(e.correct, e.Elapsed())
}
