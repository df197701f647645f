// Package store handles SQLite persistence.
//
// Every shared record (rooms, presence, rate-limit counters) is read and
// written inside one transaction per protocol operation. The database is
// opened with a single connection, so transactions are serialized and each
// read-modify-write observes no half-applied peer mutation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/typerace/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps SQLite access for rooms, presence, rate limits and practice history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			visibility TEXT NOT NULL,
			password TEXT NOT NULL DEFAULT '',
			host_identity TEXT NOT NULL,
			status TEXT NOT NULL,
			passage TEXT NOT NULL,
			passage_seed TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL,
			countdown INTEGER NOT NULL,
			time_remaining INTEGER NOT NULL,
			elapsed_seconds INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL,
			capacity INTEGER NOT NULL,
			roster TEXT NOT NULL,
			join_code TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS presence (
			identity TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			room_id TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			last_heartbeat_ms INTEGER NOT NULL,
			connected_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rate_limits (
			identity TEXT NOT NULL,
			action TEXT NOT NULL,
			count INTEGER NOT NULL,
			window_start_ms INTEGER NOT NULL,
			PRIMARY KEY (identity, action)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			seed TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			words INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			mistakes INTEGER NOT NULL,
			wpm INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_public_waiting ON rooms(visibility, status, created_at_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_status_created ON rooms(status, created_at_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_presence_heartbeat ON presence(last_heartbeat_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Update runs fn in a read-write transaction, committing when fn returns nil.
// Typed failures returned by fn roll the transaction back like any error.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := sqlTx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rerr := sqlTx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			// Best-effort rollback.
			_ = rerr
		}
	}()
	return fn(&Tx{tx: sqlTx})
}

// Tx exposes keyed record access inside one transaction.
type Tx struct {
	tx *sql.Tx
}

// InsertSession stores a completed practice session.
func (s *Store) InsertSession(ctx context.Context, stats model.SessionStats) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (started_at, ended_at, seed, difficulty, words, duration, correct, mistakes, wpm, accuracy, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.StartedAt.UTC().Format(time.RFC3339Nano),
		stats.EndedAt.UTC().Format(time.RFC3339Nano),
		stats.Seed,
		string(stats.Difficulty),
		stats.Words,
		stats.Duration,
		stats.Correct,
		stats.Mistakes,
		stats.WPM,
		stats.Accuracy,
		stats.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSessions returns stored practice sessions filtered by cfg, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.HistoryConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Difficulty != "" {
		clauses = append(clauses, "difficulty = ?")
		args = append(args, string(cfg.Difficulty))
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, difficulty, correct, mistakes, wpm, accuracy, duration_ms
		FROM sessions
		WHERE %s
		ORDER BY id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt, difficulty string
		if err := rows.Scan(&agg.SessionID, &endedAt, &difficulty, &agg.Correct, &agg.Mistakes, &agg.WPM, &agg.Accuracy, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		agg.Difficulty = model.Difficulty(difficulty)
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	return sessions, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
