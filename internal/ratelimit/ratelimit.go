// Package ratelimit implements fixed-window counters per identity and action.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/store"
)

// Default policy.
const (
	DefaultWindow    = time.Hour
	DefaultCreateMax = 10
	DefaultJoinMax   = 30
)

// Limiter decides whether an action is allowed. Counters live in the store so
// the check and the guarded mutation share one transaction.
type Limiter struct {
	clock    clockwork.Clock
	window   time.Duration
	ceilings map[model.ActionKind]int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow overrides the window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithCeiling overrides the ceiling for one action.
func WithCeiling(action model.ActionKind, n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.ceilings[action] = n
		}
	}
}

// New returns a Limiter with the default policy.
func New(clock clockwork.Clock, opts ...Option) *Limiter {
	l := &Limiter{
		clock:  clock,
		window: DefaultWindow,
		ceilings: map[model.ActionKind]int{
			model.ActionCreate: DefaultCreateMax,
			model.ActionJoin:   DefaultJoinMax,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ceiling returns the per-window ceiling for action.
func (l *Limiter) Ceiling(action model.ActionKind) int {
	return l.ceilings[action]
}

// Allow consumes one attempt for identity and reports whether it is within the
// ceiling. Rejected attempts do not advance the counter.
func (l *Limiter) Allow(ctx context.Context, tx *store.Tx, identity string, action model.ActionKind) (bool, error) {
	now := l.clock.Now()
	counter, err := tx.RateLimit(ctx, identity, action)
	if errors.Is(err, store.ErrNotFound) {
		return true, tx.PutRateLimit(ctx, &model.RateLimitCounter{
			Identity: identity, Action: action, Count: 1, WindowStart: now,
		})
	}
	if err != nil {
		return false, err
	}
	if now.Sub(counter.WindowStart) >= l.window {
		counter.Count = 1
		counter.WindowStart = now
		return true, tx.PutRateLimit(ctx, counter)
	}
	if counter.Count >= l.ceilings[action] {
		return false, nil
	}
	counter.Count++
	return true, tx.PutRateLimit(ctx, counter)
}
