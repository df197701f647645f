// Package presence keeps per-identity heartbeats and evicts identities whose
// clients stopped reporting, releasing their room seats.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/store"
)

// Liveness defaults.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultSweepInterval = 10 * time.Second
)

// Input errors.
var (
	ErrInvalidState     = errors.New("invalid activity state")
	ErrIdentityRequired = errors.New("identity is required")
)

// Tracker reads and writes presence records.
type Tracker struct {
	store   *store.Store
	rooms   *room.Service
	clock   clockwork.Clock
	timeout time.Duration
	log     zerolog.Logger
}

// NewTracker builds a tracker. Evicted identities leave their rooms through rooms.
func NewTracker(st *store.Store, rooms *room.Service, clock clockwork.Clock, timeout time.Duration, log zerolog.Logger) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{store: st, rooms: rooms, clock: clock, timeout: timeout, log: log}
}

// Register upserts the record for identity with a fresh heartbeat. The first
// registration fixes ConnectedAt; later ones keep it.
func (t *Tracker) Register(ctx context.Context, identity, displayName, roomID string, state model.ActivityState) (*model.PresenceRecord, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrIdentityRequired
	}
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	now := t.clock.Now()
	rec := &model.PresenceRecord{
		Identity:        identity,
		DisplayName:     strings.TrimSpace(displayName),
		RoomID:          roomID,
		State:           state,
		LastHeartbeatAt: now,
		ConnectedAt:     now,
	}
	err := t.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.Presence(ctx, identity)
		switch {
		case err == nil:
			rec.ConnectedAt = existing.ConnectedAt
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		return tx.PutPresence(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register presence: %w", err)
	}
	return rec, nil
}

// KeepAlive refreshes the heartbeat of a registered identity, replacing its
// state when state is non-empty. It reports false when identity has no record.
func (t *Tracker) KeepAlive(ctx context.Context, identity string, state model.ActivityState) (bool, error) {
	if state != "" && !state.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	found := false
	err := t.store.Update(ctx, func(tx *store.Tx) error {
		rec, err := tx.Presence(ctx, identity)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		rec.LastHeartbeatAt = t.clock.Now()
		if state != "" {
			rec.State = state
		}
		return tx.PutPresence(ctx, rec)
	})
	if err != nil {
		return false, fmt.Errorf("failed to refresh presence: %w", err)
	}
	return found, nil
}

// Remove deletes the record for identity, if any. Room seats are untouched;
// clients call Leave for that.
func (t *Tracker) Remove(ctx context.Context, identity string) error {
	err := t.store.Update(ctx, func(tx *store.Tx) error {
		return tx.DeletePresence(ctx, identity)
	})
	if err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

// Get returns the record for identity or store.ErrNotFound.
func (t *Tracker) Get(ctx context.Context, identity string) (*model.PresenceRecord, error) {
	var rec *model.PresenceRecord
	err := t.store.View(ctx, func(tx *store.Tx) error {
		var err error
		rec, err = tx.Presence(ctx, identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Sweep evicts every record whose heartbeat is older than the timeout. An
// evicted identity leaves its room exactly as an explicit Leave would, in the
// same transaction as the record deletion. It returns the evicted identities.
func (t *Tracker) Sweep(ctx context.Context) ([]string, error) {
	cutoff := t.clock.Now().Add(-t.timeout)
	var (
		evicted []string
		changes []room.Change
	)
	err := t.store.Update(ctx, func(tx *store.Tx) error {
		evicted, changes = nil, nil
		stale, err := tx.StalePresence(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, rec := range stale {
			if rec.RoomID != "" {
				change, err := t.rooms.RemoveMember(ctx, tx, rec.RoomID, rec.Identity)
				if err != nil && !room.IsKind(err, room.KindNotFound) {
					return err
				}
				if change.RoomID != "" {
					changes = append(changes, change)
				}
			}
			if err := tx.DeletePresence(ctx, rec.Identity); err != nil {
				return err
			}
			evicted = append(evicted, rec.Identity)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sweep presence: %w", err)
	}
	t.rooms.Announce(changes...)
	for _, id := range evicted {
		t.log.Info().Str("identity", id).Msg("stale presence evicted")
	}
	return evicted, nil
}

// StateForRoom maps a room status to the activity state a seated client reports.
func StateForRoom(status model.RoomStatus) model.ActivityState {
	switch status {
	case model.RoomWaiting, model.RoomCountdown:
		return model.ActivityInRoom
	case model.RoomRacing:
		return model.ActivityInRace
	default:
		return model.ActivityOnline
	}
}
