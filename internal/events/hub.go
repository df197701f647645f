// Package events fans committed room changes out to subscribers.
package events

import (
	"sync"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
)

// Snapshot is one pushed room state. Deleted is set when the room is gone.
type Snapshot struct {
	Room    *model.Room `json:"room,omitempty"`
	Deleted bool        `json:"deleted,omitempty"`
}

const subscriberBuffer = 16

// Hub delivers snapshots to in-process subscribers keyed by room id.
// Slow subscribers lose their oldest pending snapshots; every snapshot is
// a full room state, so only the latest one matters.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Snapshot
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Snapshot)}
}

// Subscribe registers interest in roomID. The returned cancel func must be
// called to release the subscription; it closes the channel.
func (h *Hub) Subscribe(roomID string) (<-chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Snapshot, subscriberBuffer)
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[int]chan Snapshot)
	}
	h.subs[roomID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[roomID], id)
			if len(h.subs[roomID]) == 0 {
				delete(h.subs, roomID)
			}
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions for roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[roomID])
}

// RoomChanged implements room.Notifier.
func (h *Hub) RoomChanged(r *model.Room) {
	h.broadcast(r.ID, Snapshot{Room: r})
}

// RoomDeleted implements room.Notifier.
func (h *Hub) RoomDeleted(roomID string) {
	h.broadcast(roomID, Snapshot{Deleted: true})
}

func (h *Hub) broadcast(roomID string, snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[roomID] {
		for {
			select {
			case ch <- snap:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Multi forwards every change to each notifier in order.
type Multi []room.Notifier

// RoomChanged implements room.Notifier.
func (m Multi) RoomChanged(r *model.Room) {
	for _, n := range m {
		n.RoomChanged(r)
	}
}

// RoomDeleted implements room.Notifier.
func (m Multi) RoomDeleted(roomID string) {
	for _, n := range m {
		n.RoomDeleted(roomID)
	}
}
