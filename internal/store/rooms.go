package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
)

const roomColumns = `id, name, visibility, password, host_identity, status, passage, passage_seed, difficulty,
	duration_seconds, countdown, time_remaining, elapsed_seconds, created_at_ms, capacity, roster, join_code`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*model.Room, error) {
	var (
		room                           model.Room
		visibility, status, difficulty string
		roster                         string
		createdAtMs                    int64
	)
	err := row.Scan(&room.ID, &room.Name, &visibility, &room.Password, &room.HostIdentity, &status,
		&room.Passage, &room.PassageSeed, &difficulty, &room.DurationSeconds, &room.Countdown,
		&room.TimeRemaining, &room.ElapsedSeconds, &createdAtMs, &room.Capacity, &roster, &room.JoinCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	room.Visibility = model.Visibility(visibility)
	room.Status = model.RoomStatus(status)
	room.Difficulty = model.Difficulty(difficulty)
	room.CreatedAt = fromMillis(createdAtMs)
	room.HasPassword = room.Password != ""
	if err := json.Unmarshal([]byte(roster), &room.Roster); err != nil {
		return nil, fmt.Errorf("failed to decode roster for room %s: %w", room.ID, err)
	}
	return &room, nil
}

// Room loads a room by id.
func (t *Tx) Room(ctx context.Context, id string) (*model.Room, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	return scanRoom(row)
}

// RoomByCode loads a room by its normalized join code.
func (t *Tx) RoomByCode(ctx context.Context, code string) (*model.Room, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE join_code = ?`, code)
	return scanRoom(row)
}

// JoinCodeTaken reports whether any live room uses code.
func (t *Tx) JoinCodeTaken(ctx context.Context, code string) (bool, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM rooms WHERE join_code = ?`, code).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertRoom creates a new room record.
func (t *Tx) InsertRoom(ctx context.Context, room *model.Room) error {
	roster, err := json.Marshal(room.Roster)
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID, room.Name, string(room.Visibility), room.Password, room.HostIdentity, string(room.Status),
		room.Passage, room.PassageSeed, string(room.Difficulty), room.DurationSeconds, room.Countdown,
		room.TimeRemaining, room.ElapsedSeconds, toMillis(room.CreatedAt), room.Capacity, string(roster), room.JoinCode)
	return err
}

// SaveRoom overwrites the mutable fields of a room, replacing the roster wholesale.
func (t *Tx) SaveRoom(ctx context.Context, room *model.Room) error {
	roster, err := json.Marshal(room.Roster)
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE rooms SET
		name = ?, host_identity = ?, status = ?, countdown = ?, time_remaining = ?, elapsed_seconds = ?, roster = ?
		WHERE id = ?`,
		room.Name, room.HostIdentity, string(room.Status), room.Countdown, room.TimeRemaining,
		room.ElapsedSeconds, string(roster), room.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteRoom removes a room.
func (t *Tx) DeleteRoom(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListPublicWaiting returns public rooms in the waiting state, newest first.
func (t *Tx) ListPublicWaiting(ctx context.Context, limit int) ([]model.Room, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms
		WHERE visibility = ? AND status = ?
		ORDER BY created_at_ms DESC, id DESC
		LIMIT ?`, string(model.VisibilityPublic), string(model.RoomWaiting), limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var rooms []model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

// DeleteRoomsCreatedBefore deletes rooms in status created before cutoff and
// returns their ids.
func (t *Tx) DeleteRoomsCreatedBefore(ctx context.Context, status model.RoomStatus, cutoff time.Time) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM rooms WHERE status = ? AND created_at_ms < ?`,
		string(status), toMillis(cutoff))
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
