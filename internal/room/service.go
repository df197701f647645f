// Package room implements the shared race room and the rules for mutating it.
//
// Every operation runs in one store transaction: the room record is read,
// checked and written back wholesale, so concurrent callers observe either
// the state before or the state after a mutation. Expected failures are
// returned as *Error and still commit, so a rejected join keeps its rate-limit
// charge.
package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/generator"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/ratelimit"
	"github.com/verte-zerg/typerace/internal/store"
)

// Room limits.
const (
	MinCapacity       = 2
	MaxCapacity       = 8
	MaxDuration       = 600
	InitialCountdown  = 3
	MaxNameRunes      = 80
	MaxPlayerRunes    = 32
	PublicListLimit   = 50
	WaitingRetention  = 10 * time.Minute
	FinishedRetention = time.Hour
)

// Notifier receives room changes after they commit.
type Notifier interface {
	RoomChanged(room *model.Room)
	RoomDeleted(roomID string)
}

// Change describes the committed effect of one mutation on a room.
// Room is nil when the room was deleted.
type Change struct {
	RoomID string
	Room   *model.Room
}

// Service exposes the room operations.
type Service struct {
	store    *store.Store
	limiter  *ratelimit.Limiter
	clock    clockwork.Clock
	notifier Notifier
	log      zerolog.Logger
	drawCode func() string
	newID    func() string
	newSeed  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithCodeSource replaces the random join code source.
func WithCodeSource(fn func() string) Option {
	return func(s *Service) { s.drawCode = fn }
}

// WithSeedSource replaces the passage seed source.
func WithSeedSource(fn func() string) Option {
	return func(s *Service) { s.newSeed = fn }
}

// NewService builds a room service over st.
func NewService(st *store.Store, limiter *ratelimit.Limiter, clock clockwork.Clock, opts ...Option) *Service {
	s := &Service{
		store:    st,
		limiter:  limiter,
		clock:    clock,
		log:      zerolog.Nop(),
		drawCode: randomCode,
		newID:    uuid.NewString,
		newSeed:  generator.NewSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams describes a new room.
type CreateParams struct {
	Identity        string
	DisplayName     string
	Name            string
	Visibility      model.Visibility
	Password        string
	Capacity        int
	DurationSeconds int
	Difficulty      model.Difficulty
}

// ProgressReport is one player's self-reported race state.
type ProgressReport struct {
	Progress int
	WPM      int
	Mistakes int
	Finished bool
}

// Create validates params, charges the creator's create limit and stores a
// new waiting room seated with the creator as host.
func (s *Service) Create(ctx context.Context, p CreateParams) (*model.Room, error) {
	identity := strings.TrimSpace(p.Identity)
	if identity == "" {
		return nil, validation(ReasonIdentityRequired)
	}
	name := truncateRunes(strings.TrimSpace(p.Name), MaxNameRunes)
	if name == "" {
		return nil, validation(ReasonNameRequired)
	}
	player, err := playerName(p.DisplayName)
	if err != nil {
		return nil, err
	}
	if p.Capacity < MinCapacity || p.Capacity > MaxCapacity {
		return nil, capacityError(MinCapacity, MaxCapacity)
	}
	if p.DurationSeconds < 0 || p.DurationSeconds > MaxDuration {
		return nil, durationError(MaxDuration)
	}
	difficulty, ok := model.ParseDifficulty(string(p.Difficulty))
	if !ok {
		return nil, validation(fmt.Sprintf("Unknown difficulty %q", p.Difficulty))
	}
	visibility := p.Visibility
	switch visibility {
	case "":
		visibility = model.VisibilityPublic
	case model.VisibilityPublic, model.VisibilityPrivate:
	default:
		return nil, validation(fmt.Sprintf("Unknown visibility %q", p.Visibility))
	}

	return s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		allowed, err := s.limiter.Allow(ctx, tx, identity, model.ActionCreate)
		if err != nil {
			return Change{}, err
		}
		if !allowed {
			return Change{}, limited(ReasonCreateLimited)
		}
		code, err := s.allocateCode(ctx, tx)
		if err != nil {
			return Change{}, err
		}
		seed := s.newSeed()
		room := &model.Room{
			ID:              s.newID(),
			Name:            name,
			Visibility:      visibility,
			Password:        strings.TrimSpace(p.Password),
			HostIdentity:    identity,
			Status:          model.RoomWaiting,
			Passage:         generator.Generate(seed, generator.WordCountForDuration(p.DurationSeconds), difficulty),
			PassageSeed:     seed,
			Difficulty:      difficulty,
			DurationSeconds: p.DurationSeconds,
			Countdown:       InitialCountdown,
			TimeRemaining:   p.DurationSeconds,
			CreatedAt:       s.clock.Now(),
			Capacity:        p.Capacity,
			Roster:          []model.RoomPlayer{{Identity: identity, DisplayName: player}},
			JoinCode:        code,
		}
		room.HasPassword = room.Password != ""
		if err := tx.InsertRoom(ctx, room); err != nil {
			return Change{}, fmt.Errorf("failed to insert room: %w", err)
		}
		s.log.Info().Str("room_id", room.ID).Str("join_code", code).Str("host", identity).Msg("room created")
		return Change{RoomID: room.ID, Room: room}, nil
	})
}

// Join seats identity in the room with id roomID.
func (s *Service) Join(ctx context.Context, roomID, identity, displayName, password string) (*model.Room, error) {
	return s.join(ctx, identity, displayName, password, func(tx *store.Tx) (*model.Room, error) {
		return tx.Room(ctx, roomID)
	})
}

// JoinByCode seats identity in the room with the given join code.
func (s *Service) JoinByCode(ctx context.Context, code, identity, displayName, password string) (*model.Room, error) {
	code = NormalizeCode(code)
	return s.join(ctx, identity, displayName, password, func(tx *store.Tx) (*model.Room, error) {
		return tx.RoomByCode(ctx, code)
	})
}

func (s *Service) join(ctx context.Context, identity, displayName, password string, load func(*store.Tx) (*model.Room, error)) (*model.Room, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, validation(ReasonIdentityRequired)
	}
	player, err := playerName(displayName)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		allowed, err := s.limiter.Allow(ctx, tx, identity, model.ActionJoin)
		if err != nil {
			return Change{}, err
		}
		if !allowed {
			return Change{}, limited(ReasonJoinLimited)
		}
		room, err := loadRoom(load(tx))
		if err != nil {
			return Change{}, err
		}
		if room.Status != model.RoomWaiting {
			return Change{}, conflict(ReasonAlreadyStarted)
		}
		if room.Member(identity) >= 0 {
			return Change{RoomID: room.ID, Room: room}, nil
		}
		if len(room.Roster) >= room.Capacity {
			return Change{}, conflict(ReasonRoomFull)
		}
		if room.Password != "" && room.Password != strings.TrimSpace(password) {
			return Change{}, conflict(ReasonWrongPassword)
		}
		room.Roster = append(room.Roster, model.RoomPlayer{Identity: identity, DisplayName: player})
		if err := save(ctx, tx, room); err != nil {
			return Change{}, err
		}
		s.log.Info().Str("room_id", room.ID).Str("identity", identity).Int("players", len(room.Roster)).Msg("player joined")
		return Change{RoomID: room.ID, Room: room}, nil
	})
}

// Leave removes identity from the room. It reports whether the room was
// deleted because its roster emptied.
func (s *Service) Leave(ctx context.Context, roomID, identity string) (bool, error) {
	var deleted bool
	_, err := s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		change, err := s.RemoveMember(ctx, tx, roomID, identity)
		if err != nil {
			return Change{}, err
		}
		deleted = change.RoomID != "" && change.Room == nil
		return change, nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// RemoveMember applies leave semantics inside the caller's transaction: the
// identity is dropped, an empty room is deleted and a departing host is
// replaced by the first remaining roster entry. The caller publishes the
// returned change with Announce once the transaction commits. A zero Change
// means nothing was modified.
func (s *Service) RemoveMember(ctx context.Context, tx *store.Tx, roomID, identity string) (Change, error) {
	room, err := loadRoom(tx.Room(ctx, roomID))
	if err != nil {
		return Change{}, err
	}
	idx := room.Member(identity)
	if idx < 0 {
		return Change{}, nil
	}
	room.Roster = append(room.Roster[:idx], room.Roster[idx+1:]...)
	if len(room.Roster) == 0 {
		if err := tx.DeleteRoom(ctx, room.ID); err != nil {
			return Change{}, fmt.Errorf("failed to delete room: %w", err)
		}
		s.log.Info().Str("room_id", room.ID).Msg("room emptied and deleted")
		return Change{RoomID: room.ID}, nil
	}
	if room.HostIdentity == identity {
		room.HostIdentity = room.Roster[0].Identity
		s.log.Info().Str("room_id", room.ID).Str("host", room.HostIdentity).Msg("host reassigned")
	}
	if err := save(ctx, tx, room); err != nil {
		return Change{}, err
	}
	return Change{RoomID: room.ID, Room: room}, nil
}

// StartRace moves a waiting room into countdown. Host only.
func (s *Service) StartRace(ctx context.Context, roomID, identity string) (*model.Room, error) {
	return s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		room, err := loadRoom(tx.Room(ctx, roomID))
		if err != nil {
			return Change{}, err
		}
		if room.HostIdentity != identity {
			return Change{}, conflict(ReasonOnlyHostStart)
		}
		if room.Status != model.RoomWaiting {
			return Change{}, conflict(ReasonRaceStarted)
		}
		if len(room.Roster) < MinCapacity {
			return Change{}, conflict(ReasonNeedPlayers)
		}
		for i := range room.Roster {
			p := &room.Roster[i]
			p.Progress, p.WPM, p.Mistakes, p.Finished = 0, 0, 0, false
		}
		room.Status = model.RoomCountdown
		room.Countdown = InitialCountdown
		room.TimeRemaining = room.DurationSeconds
		room.ElapsedSeconds = 0
		if err := save(ctx, tx, room); err != nil {
			return Change{}, err
		}
		s.log.Info().Str("room_id", room.ID).Int("players", len(room.Roster)).Msg("race countdown started")
		return Change{RoomID: room.ID, Room: room}, nil
	})
}

// AdvanceCountdown takes one second off the countdown, entering the race at
// zero. Host only.
func (s *Service) AdvanceCountdown(ctx context.Context, roomID, identity string) (*model.Room, error) {
	return s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		room, err := loadRoom(tx.Room(ctx, roomID))
		if err != nil {
			return Change{}, err
		}
		if room.HostIdentity != identity {
			return Change{}, conflict(ReasonOnlyHostClock)
		}
		if room.Status != model.RoomCountdown {
			return Change{}, conflict(ReasonNoCountdown)
		}
		room.Countdown--
		if room.Countdown <= 0 {
			room.Countdown = 0
			room.Status = model.RoomRacing
		}
		if err := save(ctx, tx, room); err != nil {
			return Change{}, err
		}
		return Change{RoomID: room.ID, Room: room}, nil
	})
}

// AdvanceTimer records one more second of racing. Timed rooms finish when
// their remaining time reaches zero; untimed rooms only count up. Host only.
func (s *Service) AdvanceTimer(ctx context.Context, roomID, identity string) (*model.Room, error) {
	return s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		room, err := loadRoom(tx.Room(ctx, roomID))
		if err != nil {
			return Change{}, err
		}
		if room.HostIdentity != identity {
			return Change{}, conflict(ReasonOnlyHostClock)
		}
		if room.Status != model.RoomRacing {
			return Change{}, conflict(ReasonNotRacing)
		}
		room.ElapsedSeconds++
		if room.DurationSeconds > 0 {
			room.TimeRemaining--
			if room.TimeRemaining <= 0 {
				room.TimeRemaining = 0
				room.Status = model.RoomFinished
				s.log.Info().Str("room_id", room.ID).Msg("race time expired")
			}
		}
		if err := save(ctx, tx, room); err != nil {
			return Change{}, err
		}
		return Change{RoomID: room.ID, Room: room}, nil
	})
}

// ReportProgress overwrites the caller's roster row with clamped values.
// A finished report ends the race for the whole room.
func (s *Service) ReportProgress(ctx context.Context, roomID, identity string, r ProgressReport) (*model.Room, error) {
	return s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		room, err := loadRoom(tx.Room(ctx, roomID))
		if err != nil {
			return Change{}, err
		}
		idx := room.Member(identity)
		if idx < 0 {
			return Change{}, conflict(ReasonNotMember)
		}
		if room.Status != model.RoomRacing && room.Status != model.RoomFinished {
			return Change{}, conflict(ReasonNotRacing)
		}
		p := &room.Roster[idx]
		p.Progress = clamp(r.Progress, 0, 100)
		p.WPM = max(r.WPM, 0)
		p.Mistakes = max(r.Mistakes, 0)
		p.Finished = r.Finished
		if r.Finished && room.Status != model.RoomFinished {
			room.Status = model.RoomFinished
			s.log.Info().Str("room_id", room.ID).Str("identity", identity).Int("progress", p.Progress).Msg("first finisher ended race")
		}
		if err := save(ctx, tx, room); err != nil {
			return Change{}, err
		}
		return Change{RoomID: room.ID, Room: room}, nil
	})
}

// FinishRace ends a racing room. Any member may call it; finishing an
// already finished room is a no-op.
func (s *Service) FinishRace(ctx context.Context, roomID, identity string) (*model.Room, error) {
	return s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		room, err := loadRoom(tx.Room(ctx, roomID))
		if err != nil {
			return Change{}, err
		}
		if room.Member(identity) < 0 {
			return Change{}, conflict(ReasonNotMember)
		}
		switch room.Status {
		case model.RoomFinished:
			return Change{RoomID: room.ID, Room: room}, nil
		case model.RoomRacing:
		default:
			return Change{}, conflict(ReasonNotRacing)
		}
		room.Status = model.RoomFinished
		if err := save(ctx, tx, room); err != nil {
			return Change{}, err
		}
		return Change{RoomID: room.ID, Room: room}, nil
	})
}

// UpdateDisplayName renames the caller's roster row.
func (s *Service) UpdateDisplayName(ctx context.Context, roomID, identity, displayName string) (*model.Room, error) {
	name, err := playerName(displayName)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, func(tx *store.Tx) (Change, error) {
		room, err := loadRoom(tx.Room(ctx, roomID))
		if err != nil {
			return Change{}, err
		}
		idx := room.Member(identity)
		if idx < 0 {
			return Change{}, conflict(ReasonNotMember)
		}
		room.Roster[idx].DisplayName = name
		if err := save(ctx, tx, room); err != nil {
			return Change{}, err
		}
		return Change{RoomID: room.ID, Room: room}, nil
	})
}

// Get returns the room with id roomID.
func (s *Service) Get(ctx context.Context, roomID string) (*model.Room, error) {
	var room *model.Room
	err := s.store.View(ctx, func(tx *store.Tx) error {
		r, err := loadRoom(tx.Room(ctx, roomID))
		room = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// GetByCode returns the room with the given join code.
func (s *Service) GetByCode(ctx context.Context, code string) (*model.Room, error) {
	code = NormalizeCode(code)
	var room *model.Room
	err := s.store.View(ctx, func(tx *store.Tx) error {
		r, err := loadRoom(tx.RoomByCode(ctx, code))
		room = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ListPublic returns joinable public rooms, newest first.
func (s *Service) ListPublic(ctx context.Context) ([]model.RoomSummary, error) {
	var rooms []model.Room
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		rooms, err = tx.ListPublicWaiting(ctx, PublicListLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	summaries := make([]model.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, model.RoomSummary{
			ID:          r.ID,
			Name:        r.Name,
			JoinCode:    r.JoinCode,
			PlayerCount: len(r.Roster),
			Capacity:    r.Capacity,
			HasPassword: r.HasPassword,
			CreatedAt:   r.CreatedAt,
		})
	}
	return summaries, nil
}

// CleanupStale deletes abandoned waiting rooms and old finished rooms and
// returns how many were removed.
func (s *Service) CleanupStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var removed []string
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		waiting, err := tx.DeleteRoomsCreatedBefore(ctx, model.RoomWaiting, now.Add(-WaitingRetention))
		if err != nil {
			return err
		}
		finished, err := tx.DeleteRoomsCreatedBefore(ctx, model.RoomFinished, now.Add(-FinishedRetention))
		if err != nil {
			return err
		}
		removed = append(waiting, finished...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rooms: %w", err)
	}
	changes := make([]Change, 0, len(removed))
	for _, id := range removed {
		changes = append(changes, Change{RoomID: id})
	}
	s.Announce(changes...)
	if len(removed) > 0 {
		s.log.Info().Int("rooms", len(removed)).Msg("stale rooms removed")
	}
	return len(removed), nil
}

// Announce forwards committed changes to the notifier.
func (s *Service) Announce(changes ...Change) {
	if s.notifier == nil {
		return
	}
	for _, c := range changes {
		switch {
		case c.RoomID == "":
		case c.Room == nil:
			s.notifier.RoomDeleted(c.RoomID)
		default:
			s.notifier.RoomChanged(c.Room)
		}
	}
}

// mutate runs fn in a write transaction. Typed failures commit whatever fn
// already wrote (a rate-limit charge) and are returned to the caller.
func (s *Service) mutate(ctx context.Context, fn func(tx *store.Tx) (Change, error)) (*model.Room, error) {
	var (
		change  Change
		failure *Error
	)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		c, err := fn(tx)
		if errors.As(err, &failure) {
			return nil
		}
		if err != nil {
			return err
		}
		change = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	s.Announce(change)
	return change.Room, nil
}

func loadRoom(room *model.Room, err error) (*model.Room, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(ReasonRoomNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	return room, nil
}

func save(ctx context.Context, tx *store.Tx, room *model.Room) error {
	if err := tx.SaveRoom(ctx, room); err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

func playerName(name string) (string, error) {
	name = truncateRunes(strings.TrimSpace(name), MaxPlayerRunes)
	if name == "" {
		return "", validation(ReasonPlayerName)
	}
	return name, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
