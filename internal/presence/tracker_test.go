package presence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/ratelimit"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/store"
)

type fixture struct {
	tracker *Tracker
	rooms   *room.Service
	clock   *clockwork.FakeClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "typerace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	rooms := room.NewService(st, ratelimit.New(clock), clock)
	return &fixture{
		tracker: NewTracker(st, rooms, clock, DefaultTimeout, zerolog.Nop()),
		rooms:   rooms,
		clock:   clock,
	}
}

func (f *fixture) seat(t *testing.T, host string, others ...string) *model.Room {
	t.Helper()
	ctx := context.Background()
	r, err := f.rooms.Create(ctx, room.CreateParams{Identity: host, DisplayName: host, Name: "room", Capacity: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.tracker.Register(ctx, host, host, r.ID, model.ActivityInRoom); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, id := range others {
		if _, err := f.rooms.Join(ctx, r.ID, id, id, ""); err != nil {
			t.Fatalf("join: %v", err)
		}
		if _, err := f.tracker.Register(ctx, id, id, r.ID, model.ActivityInRoom); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return r
}

func TestRegisterKeepsConnectedAt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first, err := f.tracker.Register(ctx, "alice", "Alice", "", model.ActivityOnline)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	f.clock.Advance(5 * time.Second)
	second, err := f.tracker.Register(ctx, "alice", "Alice B", "room-1", model.ActivityInRoom)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if !second.ConnectedAt.Equal(first.ConnectedAt) {
		t.Fatalf("connectedAt changed: %v -> %v", first.ConnectedAt, second.ConnectedAt)
	}
	got, err := f.tracker.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DisplayName != "Alice B" || got.RoomID != "room-1" || got.State != model.ActivityInRoom {
		t.Fatalf("record not overwritten: %+v", got)
	}
	if !got.LastHeartbeatAt.Equal(f.clock.Now()) {
		t.Fatalf("expected heartbeat %v, got %v", f.clock.Now(), got.LastHeartbeatAt)
	}
}

func TestRegisterRejectsUnknownState(t *testing.T) {
	f := setup(t)
	_, err := f.tracker.Register(context.Background(), "alice", "Alice", "", "asleep")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestKeepAlive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	found, err := f.tracker.KeepAlive(ctx, "ghost", "")
	if err != nil || found {
		t.Fatalf("keepalive for unknown identity: found=%v err=%v", found, err)
	}

	if _, err := f.tracker.Register(ctx, "alice", "Alice", "", model.ActivityOnline); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.clock.Advance(20 * time.Second)
	found, err = f.tracker.KeepAlive(ctx, "alice", "")
	if err != nil || !found {
		t.Fatalf("keepalive: found=%v err=%v", found, err)
	}
	got, _ := f.tracker.Get(ctx, "alice")
	if got.State != model.ActivityOnline || !got.LastHeartbeatAt.Equal(f.clock.Now()) {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := f.tracker.KeepAlive(ctx, "alice", model.ActivityIdle); err != nil {
		t.Fatalf("keepalive with state: %v", err)
	}
	got, _ = f.tracker.Get(ctx, "alice")
	if got.State != model.ActivityIdle {
		t.Fatalf("expected idle, got %s", got.State)
	}
}

func TestRemove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if _, err := f.tracker.Register(ctx, "alice", "Alice", "", model.ActivityOnline); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.tracker.Remove(ctx, "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.tracker.Get(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := f.tracker.Remove(ctx, "alice"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestSweepEvictsStaleHostAndPromotes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.seat(t, "alice", "bob")

	f.clock.Advance(20 * time.Second)
	if _, err := f.tracker.KeepAlive(ctx, "bob", ""); err != nil {
		t.Fatalf("keepalive: %v", err)
	}
	f.clock.Advance(15 * time.Second)

	evicted, err := f.tracker.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "alice" {
		t.Fatalf("expected alice evicted, got %v", evicted)
	}
	got, err := f.rooms.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.HostIdentity != "bob" || len(got.Roster) != 1 {
		t.Fatalf("expected bob as sole host, got %+v", got)
	}
	if _, err := f.tracker.Get(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("stale record kept: %v", err)
	}
	if _, err := f.tracker.Get(ctx, "bob"); err != nil {
		t.Fatalf("fresh record evicted: %v", err)
	}
}

func TestSweepDeletesAbandonedRoom(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.seat(t, "alice", "bob")

	f.clock.Advance(DefaultTimeout + time.Second)
	evicted, err := f.tracker.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(evicted) != 2 {
		t.Fatalf("expected both evicted, got %v", evicted)
	}
	if _, err := f.rooms.Get(ctx, r.ID); !room.IsKind(err, room.KindNotFound) {
		t.Fatalf("abandoned room kept: %v", err)
	}
}

func TestSweepToleratesMissingRoom(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if _, err := f.tracker.Register(ctx, "alice", "Alice", "gone", model.ActivityInRoom); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.clock.Advance(time.Minute)
	evicted, err := f.tracker.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(evicted) != 1 {
		t.Fatalf("expected eviction, got %v", evicted)
	}
}

func TestStateForRoom(t *testing.T) {
	cases := map[model.RoomStatus]model.ActivityState{
		model.RoomWaiting:   model.ActivityInRoom,
		model.RoomCountdown: model.ActivityInRoom,
		model.RoomRacing:    model.ActivityInRace,
		model.RoomFinished:  model.ActivityOnline,
	}
	for status, want := range cases {
		if got := StateForRoom(status); got != want {
			t.Fatalf("%s: expected %s, got %s", status, want, got)
		}
	}
}
