package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/verte-zerg/typerace/internal/events"
	"github.com/verte-zerg/typerace/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleRoomSocket streams full room snapshots to one subscriber. The first
// frame is the current state; a {"deleted":true} frame ends the stream.
func (s *Server) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before reading so no change between the read and the
	// subscription is lost.
	snapshots, cancel := s.hub.Subscribe(roomID)
	defer cancel()

	current, err := s.rooms.Get(r.Context(), roomID)
	switch {
	case room.IsKind(err, room.KindNotFound):
		s.writeFrame(conn, events.Snapshot{Deleted: true})
		return
	case err != nil:
		s.log.Error().Err(err).Str("room_id", roomID).Msg("failed to load room for websocket")
		return
	}
	if !s.writeFrame(conn, events.Snapshot{Room: current}) {
		return
	}
	s.log.Debug().Str("room_id", roomID).Msg("websocket subscribed")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-snapshots:
			if !ok || !s.writeFrame(conn, snap) || snap.Deleted {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, snap events.Snapshot) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(snap); err != nil {
		s.log.Debug().Err(err).Msg("websocket write failed")
		return false
	}
	return true
}
