package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/verte-zerg/typerace/internal/model"
)

// RateLimit loads the counter for identity and action.
func (t *Tx) RateLimit(ctx context.Context, identity string, action model.ActionKind) (*model.RateLimitCounter, error) {
	var (
		c           = model.RateLimitCounter{Identity: identity, Action: action}
		windowStart int64
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT count, window_start_ms FROM rate_limits WHERE identity = ? AND action = ?`,
		identity, string(action)).Scan(&c.Count, &windowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.WindowStart = fromMillis(windowStart)
	return &c, nil
}

// PutRateLimit inserts or overwrites a counter.
func (t *Tx) PutRateLimit(ctx context.Context, c *model.RateLimitCounter) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO rate_limits (identity, action, count, window_start_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identity, action) DO UPDATE SET
			count = excluded.count,
			window_start_ms = excluded.window_start_ms`,
		c.Identity, string(c.Action), c.Count, toMillis(c.WindowStart))
	return err
}
