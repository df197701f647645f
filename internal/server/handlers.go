package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verte-zerg/typerace/internal/api"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/presence"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/store"
)

const maxBodyBytes = 1 << 16

const (
	reasonBadBody     = "Invalid request body"
	reasonInternal    = "Internal error"
	reasonNoPresence  = "Presence not found"
	reasonBadActivity = "Unknown activity state"
	reasonNoIdentity  = "Identity is required"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.Response{OK: true})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.ListPublic(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rooms == nil {
		rooms = []model.RoomSummary{}
	}
	s.writeJSON(w, http.StatusOK, api.Response{OK: true, Rooms: rooms})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	created, err := s.rooms.Create(r.Context(), room.CreateParams{
		Identity:        req.Identity,
		DisplayName:     req.DisplayName,
		Name:            req.Name,
		Visibility:      model.Visibility(req.Visibility),
		Password:        req.Password,
		Capacity:        req.Capacity,
		DurationSeconds: req.DurationSeconds,
		Difficulty:      model.Difficulty(req.Difficulty),
	})
	s.writeRoom(w, http.StatusCreated, created, err)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	found, err := s.rooms.Get(r.Context(), mux.Vars(r)["id"])
	s.writeRoom(w, http.StatusOK, found, err)
}

func (s *Server) handleGetByCode(w http.ResponseWriter, r *http.Request) {
	found, err := s.rooms.GetByCode(r.Context(), mux.Vars(r)["code"])
	s.writeRoom(w, http.StatusOK, found, err)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req api.JoinRequest
	if !s.decode(w, r, &req) {
		return
	}
	joined, err := s.rooms.Join(r.Context(), mux.Vars(r)["id"], req.Identity, req.DisplayName, req.Password)
	s.writeRoom(w, http.StatusOK, joined, err)
}

func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	var req api.JoinRequest
	if !s.decode(w, r, &req) {
		return
	}
	joined, err := s.rooms.JoinByCode(r.Context(), req.Code, req.Identity, req.DisplayName, req.Password)
	s.writeRoom(w, http.StatusOK, joined, err)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req api.IdentityRequest
	if !s.decode(w, r, &req) {
		return
	}
	deleted, err := s.rooms.Leave(r.Context(), mux.Vars(r)["id"], req.Identity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Response{OK: true, Deleted: deleted})
}

// roomAction adapts an operation that only needs the caller's identity.
func (s *Server) roomAction(op func(ctx context.Context, roomID, identity string) (*model.Room, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.IdentityRequest
		if !s.decode(w, r, &req) {
			return
		}
		updated, err := op(r.Context(), mux.Vars(r)["id"], req.Identity)
		s.writeRoom(w, http.StatusOK, updated, err)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req api.ProgressRequest
	if !s.decode(w, r, &req) {
		return
	}
	updated, err := s.rooms.ReportProgress(r.Context(), mux.Vars(r)["id"], req.Identity, room.ProgressReport{
		Progress: req.Progress,
		WPM:      req.WPM,
		Mistakes: req.Mistakes,
		Finished: req.Finished,
	})
	s.writeRoom(w, http.StatusOK, updated, err)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req api.NameRequest
	if !s.decode(w, r, &req) {
		return
	}
	updated, err := s.rooms.UpdateDisplayName(r.Context(), mux.Vars(r)["id"], req.Identity, req.DisplayName)
	s.writeRoom(w, http.StatusOK, updated, err)
}

func (s *Server) handleRegisterPresence(w http.ResponseWriter, r *http.Request) {
	var req api.PresenceRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.presence.Register(r.Context(), req.Identity, req.DisplayName, req.RoomID, model.ActivityState(req.State))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Response{OK: true, Presence: rec, Found: true})
}

func (s *Server) handleKeepAlive(w http.ResponseWriter, r *http.Request) {
	var req api.KeepAliveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Identity == "" {
		s.writeFailure(w, http.StatusBadRequest, room.KindValidation, reasonNoIdentity)
		return
	}
	found, err := s.presence.KeepAlive(r.Context(), req.Identity, model.ActivityState(req.State))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Response{OK: true, Found: found})
}

func (s *Server) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	rec, err := s.presence.Get(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Response{OK: true, Presence: rec, Found: true})
}

func (s *Server) handleRemovePresence(w http.ResponseWriter, r *http.Request) {
	if err := s.presence.Remove(r.Context(), mux.Vars(r)["identity"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Response{OK: true})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeFailure(w, http.StatusBadRequest, room.KindValidation, reasonBadBody)
		return false
	}
	return true
}

func (s *Server) writeRoom(w http.ResponseWriter, status int, rm *model.Room, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, status, api.Response{OK: true, Room: rm})
}

// writeError maps typed failures to 4xx replies and anything else to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if e, ok := room.AsError(err); ok {
		s.writeFailure(w, statusFor(e.Kind), e.Kind, e.Reason)
		return
	}
	switch {
	case errors.Is(err, presence.ErrIdentityRequired):
		s.writeFailure(w, http.StatusBadRequest, room.KindValidation, reasonNoIdentity)
	case errors.Is(err, presence.ErrInvalidState):
		s.writeFailure(w, http.StatusBadRequest, room.KindValidation, reasonBadActivity)
	case errors.Is(err, store.ErrNotFound):
		s.writeFailure(w, http.StatusNotFound, room.KindNotFound, reasonNoPresence)
	default:
		s.log.Error().Err(err).Msg("request failed")
		s.writeJSON(w, http.StatusInternalServerError, api.Response{OK: false, Error: reasonInternal})
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, kind room.Kind, reason string) {
	s.writeJSON(w, status, api.Response{OK: false, Kind: string(kind), Error: reason})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body api.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func statusFor(kind room.Kind) int {
	switch kind {
	case room.KindValidation:
		return http.StatusBadRequest
	case room.KindNotFound:
		return http.StatusNotFound
	case room.KindConflict:
		return http.StatusConflict
	case room.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
