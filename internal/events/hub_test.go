package events

import (
	"testing"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
)

var _ room.Notifier = (*Hub)(nil)
var _ room.Notifier = (*NATSPublisher)(nil)
var _ room.Notifier = Multi(nil)

func TestHubDeliversToRoomSubscribers(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("r1")
	defer cancelA()
	other, cancelOther := h.Subscribe("r2")
	defer cancelOther()

	h.RoomChanged(&model.Room{ID: "r1", Countdown: 2})
	snap := <-a
	if snap.Room == nil || snap.Room.Countdown != 2 || snap.Deleted {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	select {
	case s := <-other:
		t.Fatalf("unrelated subscriber got %+v", s)
	default:
	}

	h.RoomDeleted("r1")
	if snap := <-a; !snap.Deleted {
		t.Fatalf("expected deletion, got %+v", snap)
	}
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("r1")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		h.RoomChanged(&model.Room{ID: "r1", ElapsedSeconds: i})
	}
	var last Snapshot
	for i := 0; i < subscriberBuffer; i++ {
		last = <-ch
	}
	if last.Room.ElapsedSeconds != subscriberBuffer+4 {
		t.Fatalf("expected newest snapshot last, got %d", last.Room.ElapsedSeconds)
	}
}

func TestHubCancelReleases(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("r1")
	if h.Subscribers("r1") != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel()
	if h.Subscribers("r1") != 0 {
		t.Fatalf("expected no subscribers")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	h.RoomChanged(&model.Room{ID: "r1"})
}

type countingNotifier struct{ changed, deleted int }

func (c *countingNotifier) RoomChanged(*model.Room) { c.changed++ }
func (c *countingNotifier) RoomDeleted(string)      { c.deleted++ }

func TestMultiForwards(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	m := Multi{a, b}
	m.RoomChanged(&model.Room{ID: "r"})
	m.RoomDeleted("r")
	if a.changed != 1 || b.changed != 1 || a.deleted != 1 || b.deleted != 1 {
		t.Fatalf("unexpected counts: %+v %+v", a, b)
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("abc"); got != "typerace.rooms.abc" {
		t.Fatalf("unexpected subject %q", got)
	}
}
