package client

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/api"
	"github.com/verte-zerg/typerace/internal/events"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
)

// Loop cadences.
const (
	ClockInterval     = time.Second
	HeartbeatInterval = 5 * time.Second
)

// ClockAPI advances a room's shared clock.
type ClockAPI interface {
	AdvanceCountdown(ctx context.Context, roomID, identity string) (*model.Room, error)
	AdvanceTimer(ctx context.Context, roomID, identity string) (*model.Room, error)
}

// PresenceAPI maintains a presence record.
type PresenceAPI interface {
	RegisterPresence(ctx context.Context, req api.PresenceRequest) error
	KeepAlive(ctx context.Context, identity string, state model.ActivityState) (bool, error)
	RemovePresence(ctx context.Context, identity string) error
}

// RunHostClock ticks the room clock once per ClockInterval while identity is
// the room's host. Clients that are not host never tick, but keep watching
// snapshots so a promoted client takes over. It returns when ctx is done or
// the snapshot stream ends.
func RunHostClock(ctx context.Context, clock clockwork.Clock, clk ClockAPI, roomID, identity string, snapshots <-chan events.Snapshot, log zerolog.Logger) {
	ticker := clock.NewTicker(ClockInterval)
	defer ticker.Stop()

	var latest *model.Room
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok || snap.Deleted {
				return
			}
			latest = snap.Room
		case <-ticker.Chan():
			if latest == nil || latest.HostIdentity != identity {
				continue
			}
			var (
				next *model.Room
				err  error
			)
			switch latest.Status {
			case model.RoomCountdown:
				next, err = clk.AdvanceCountdown(ctx, roomID, identity)
			case model.RoomRacing:
				next, err = clk.AdvanceTimer(ctx, roomID, identity)
			default:
				continue
			}
			if err != nil {
				if _, typed := room.AsError(err); typed {
					log.Debug().Err(err).Str("room_id", roomID).Msg("clock tick rejected")
				} else {
					log.Warn().Err(err).Str("room_id", roomID).Msg("clock tick failed")
				}
				continue
			}
			latest = next
		}
	}
}

// RunHeartbeat registers reg and refreshes it every HeartbeatInterval with
// the activity state reported by state. A record evicted by the server is
// registered again. The record is removed when ctx is done.
func RunHeartbeat(ctx context.Context, clock clockwork.Clock, p PresenceAPI, reg api.PresenceRequest, state func() model.ActivityState, log zerolog.Logger) {
	register := func() {
		reg.State = string(state())
		if err := p.RegisterPresence(ctx, reg); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("identity", reg.Identity).Msg("presence register failed")
		}
	}
	register()

	ticker := clock.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			removeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := p.RemovePresence(removeCtx, reg.Identity); err != nil {
				log.Debug().Err(err).Msg("presence remove failed")
			}
			cancel()
			return
		case <-ticker.Chan():
			found, err := p.KeepAlive(ctx, reg.Identity, state())
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("identity", reg.Identity).Msg("heartbeat failed")
				}
				continue
			}
			if !found {
				register()
			}
		}
	}
}
