package presence

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Sweeper runs Tracker.Sweep on a fixed interval.
type Sweeper struct {
	tracker  *Tracker
	clock    clockwork.Clock
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper builds a sweeper for tracker.
func NewSweeper(tracker *Tracker, clock clockwork.Clock, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{tracker: tracker, clock: clock, interval: interval, log: log}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("presence sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("presence sweeper stopped")
			return
		case <-ticker.Chan():
			if _, err := s.tracker.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("presence sweep failed")
			}
		}
	}
}
