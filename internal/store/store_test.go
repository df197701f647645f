package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "typerace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func testRoom(id, code string, created time.Time) *model.Room {
	return &model.Room{
		ID:              id,
		Name:            "room " + id,
		Visibility:      model.VisibilityPublic,
		HostIdentity:    "host",
		Status:          model.RoomWaiting,
		Passage:         "the quick fox",
		PassageSeed:     "seed",
		Difficulty:      model.DifficultyMedium,
		DurationSeconds: 60,
		Countdown:       3,
		TimeRemaining:   60,
		CreatedAt:       created,
		Capacity:        4,
		Roster:          []model.RoomPlayer{{Identity: "host", DisplayName: "Host"}},
		JoinCode:        code,
	}
}

func TestRoomRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	created := time.UnixMilli(1_700_000_000_000).UTC()

	err := st.Update(ctx, func(tx *Tx) error {
		room := testRoom("r1", "ABCDEF", created)
		room.Password = "secret"
		return tx.InsertRoom(ctx, room)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = st.Update(ctx, func(tx *Tx) error {
		room, err := tx.RoomByCode(ctx, "ABCDEF")
		if err != nil {
			return err
		}
		room.Roster = append(room.Roster, model.RoomPlayer{Identity: "p2", DisplayName: "Two", Progress: 40})
		room.Status = model.RoomRacing
		return tx.SaveRoom(ctx, room)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var got *model.Room
	err = st.View(ctx, func(tx *Tx) error {
		var err error
		got, err = tx.Room(ctx, "r1")
		return err
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if got.Status != model.RoomRacing || len(got.Roster) != 2 || got.Roster[1].Progress != 40 {
		t.Fatalf("unexpected room: %+v", got)
	}
	if !got.HasPassword || got.Password != "secret" {
		t.Fatalf("expected password to round trip")
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("expected created %v, got %v", created, got.CreatedAt)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")
	err := st.Update(ctx, func(tx *Tx) error {
		if err := tx.InsertRoom(ctx, testRoom("r1", "AAAAAA", time.Now())); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	err = st.View(ctx, func(tx *Tx) error {
		_, err := tx.Room(ctx, "r1")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rolled back insert, got %v", err)
	}
}

func TestJoinCodeUnique(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.Update(ctx, func(tx *Tx) error {
		return tx.InsertRoom(ctx, testRoom("r1", "SAME22", time.Now()))
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := st.Update(ctx, func(tx *Tx) error {
		taken, err := tx.JoinCodeTaken(ctx, "SAME22")
		if err != nil {
			return err
		}
		if !taken {
			t.Fatalf("expected code to be taken")
		}
		return tx.InsertRoom(ctx, testRoom("r2", "SAME22", time.Now()))
	})
	if err == nil {
		t.Fatalf("expected unique constraint violation")
	}
}

func TestListPublicWaitingNewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	err := st.Update(ctx, func(tx *Tx) error {
		for i, code := range []string{"AAAAA1", "AAAAA2", "AAAAA3"} {
			room := testRoom(code, code, base.Add(time.Duration(i)*time.Second))
			if i == 1 {
				room.Visibility = model.VisibilityPrivate
			}
			if err := tx.InsertRoom(ctx, room); err != nil {
				return err
			}
		}
		started := testRoom("started", "AAAAA4", base.Add(time.Hour))
		started.Status = model.RoomRacing
		return tx.InsertRoom(ctx, started)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	var rooms []model.Room
	err = st.View(ctx, func(tx *Tx) error {
		var err error
		rooms, err = tx.ListPublicWaiting(ctx, 50)
		return err
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != "AAAAA3" || rooms[1].ID != "AAAAA1" {
		t.Fatalf("unexpected listing: %+v", rooms)
	}
}

func TestDeleteRoomsCreatedBefore(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	err := st.Update(ctx, func(tx *Tx) error {
		if err := tx.InsertRoom(ctx, testRoom("old", "OLD000", now.Add(-time.Hour))); err != nil {
			return err
		}
		return tx.InsertRoom(ctx, testRoom("new", "NEW000", now))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	var ids []string
	err = st.Update(ctx, func(tx *Tx) error {
		var err error
		ids, err = tx.DeleteRoomsCreatedBefore(ctx, model.RoomWaiting, now.Add(-10*time.Minute))
		return err
	})
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("unexpected deleted ids: %v", ids)
	}
}

func TestPresenceUpsertAndStale(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()
	err := st.Update(ctx, func(tx *Tx) error {
		if err := tx.PutPresence(ctx, &model.PresenceRecord{
			Identity: "a", DisplayName: "A", State: model.ActivityOnline,
			LastHeartbeatAt: now.Add(-time.Minute), ConnectedAt: now.Add(-time.Minute),
		}); err != nil {
			return err
		}
		if err := tx.PutPresence(ctx, &model.PresenceRecord{
			Identity: "b", DisplayName: "B", State: model.ActivityOnline,
			LastHeartbeatAt: now.Add(-time.Minute), ConnectedAt: now.Add(-time.Minute),
		}); err != nil {
			return err
		}
		return tx.PutPresence(ctx, &model.PresenceRecord{
			Identity: "b", DisplayName: "B2", RoomID: "r1", State: model.ActivityInRoom,
			LastHeartbeatAt: now, ConnectedAt: now.Add(-time.Minute),
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	err = st.View(ctx, func(tx *Tx) error {
		stale, err := tx.StalePresence(ctx, now.Add(-30*time.Second))
		if err != nil {
			return err
		}
		if len(stale) != 1 || stale[0].Identity != "a" {
			t.Fatalf("unexpected stale set: %+v", stale)
		}
		b, err := tx.Presence(ctx, "b")
		if err != nil {
			return err
		}
		if b.DisplayName != "B2" || b.RoomID != "r1" || b.State != model.ActivityInRoom {
			t.Fatalf("expected overwritten record: %+v", b)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRateLimitRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000).UTC()
	err := st.Update(ctx, func(tx *Tx) error {
		if _, err := tx.RateLimit(ctx, "a", model.ActionCreate); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if err := tx.PutRateLimit(ctx, &model.RateLimitCounter{Identity: "a", Action: model.ActionCreate, Count: 1, WindowStart: start}); err != nil {
			return err
		}
		return tx.PutRateLimit(ctx, &model.RateLimitCounter{Identity: "a", Action: model.ActionCreate, Count: 2, WindowStart: start})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	err = st.View(ctx, func(tx *Tx) error {
		c, err := tx.RateLimit(ctx, "a", model.ActionCreate)
		if err != nil {
			return err
		}
		if c.Count != 2 || !c.WindowStart.Equal(start) {
			t.Fatalf("unexpected counter: %+v", c)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSessionsHistory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		end := start.Add(30 * time.Second)
		difficulty := model.DifficultyMedium
		if i == 0 {
			difficulty = model.DifficultyHard
		}
		if _, err := st.InsertSession(ctx, model.SessionStats{
			StartedAt: start, EndedAt: end, Seed: "s", Difficulty: difficulty, Words: 10,
			Correct: 50, Mistakes: 2, WPM: 20 + i, Accuracy: 96, DurationMs: end.Sub(start).Milliseconds(),
		}); err != nil {
			t.Fatalf("insert session: %v", err)
		}
	}
	all, err := st.ListSessions(ctx, model.HistoryConfig{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].WPM != 20 || all[2].WPM != 22 {
		t.Fatalf("unexpected sessions: %+v", all)
	}
	medium, err := st.ListSessions(ctx, model.HistoryConfig{Difficulty: model.DifficultyMedium, Last: 1})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(medium) != 1 || medium[0].WPM != 22 {
		t.Fatalf("unexpected filtered sessions: %+v", medium)
	}
}
