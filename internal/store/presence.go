package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
)

const presenceColumns = `identity, display_name, room_id, state, last_heartbeat_ms, connected_at_ms`

func scanPresence(row rowScanner) (*model.PresenceRecord, error) {
	var (
		rec                  model.PresenceRecord
		state                string
		heartbeat, connected int64
	)
	err := row.Scan(&rec.Identity, &rec.DisplayName, &rec.RoomID, &state, &heartbeat, &connected)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.State = model.ActivityState(state)
	rec.LastHeartbeatAt = fromMillis(heartbeat)
	rec.ConnectedAt = fromMillis(connected)
	return &rec, nil
}

// Presence loads the presence record for identity.
func (t *Tx) Presence(ctx context.Context, identity string) (*model.PresenceRecord, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+presenceColumns+` FROM presence WHERE identity = ?`, identity)
	return scanPresence(row)
}

// PutPresence inserts or overwrites the presence record for rec.Identity.
func (t *Tx) PutPresence(ctx context.Context, rec *model.PresenceRecord) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO presence (`+presenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			display_name = excluded.display_name,
			room_id = excluded.room_id,
			state = excluded.state,
			last_heartbeat_ms = excluded.last_heartbeat_ms,
			connected_at_ms = excluded.connected_at_ms`,
		rec.Identity, rec.DisplayName, rec.RoomID, string(rec.State),
		toMillis(rec.LastHeartbeatAt), toMillis(rec.ConnectedAt))
	return err
}

// DeletePresence removes the record for identity. Missing records are not an error.
func (t *Tx) DeletePresence(ctx context.Context, identity string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM presence WHERE identity = ?`, identity)
	return err
}

// StalePresence lists records whose last heartbeat is before cutoff.
func (t *Tx) StalePresence(ctx context.Context, cutoff time.Time) ([]model.PresenceRecord, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+presenceColumns+` FROM presence
		WHERE last_heartbeat_ms < ?
		ORDER BY last_heartbeat_ms ASC`, toMillis(cutoff))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.PresenceRecord
	for rows.Next() {
		rec, err := scanPresence(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
