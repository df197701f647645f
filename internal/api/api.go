// Package api defines the JSON bodies exchanged between the server and clients.
package api

import "github.com/verte-zerg/typerace/internal/model"

// Response is the envelope of every API reply. On failure OK is false and
// Kind and Error carry the typed failure.
type Response struct {
	OK       bool                  `json:"ok"`
	Kind     string                `json:"kind,omitempty"`
	Error    string                `json:"error,omitempty"`
	Room     *model.Room           `json:"room,omitempty"`
	Rooms    []model.RoomSummary   `json:"rooms,omitempty"`
	Deleted  bool                  `json:"deleted,omitempty"`
	Presence *model.PresenceRecord `json:"presence,omitempty"`
	Found    bool                  `json:"found,omitempty"`
}

// CreateRoomRequest is the body of POST /api/rooms.
type CreateRoomRequest struct {
	Identity        string `json:"identity"`
	DisplayName     string `json:"displayName"`
	Name            string `json:"name"`
	Visibility      string `json:"visibility,omitempty"`
	Password        string `json:"password,omitempty"`
	Capacity        int    `json:"capacity"`
	DurationSeconds int    `json:"durationSeconds"`
	Difficulty      string `json:"difficulty,omitempty"`
}

// JoinRequest is the body of the join endpoints. Code is only read by the
// join-by-code endpoint.
type JoinRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password,omitempty"`
	Code        string `json:"code,omitempty"`
}

// IdentityRequest carries the caller for operations with no other input.
type IdentityRequest struct {
	Identity string `json:"identity"`
}

// ProgressRequest is the body of POST /api/rooms/{id}/progress.
type ProgressRequest struct {
	Identity string `json:"identity"`
	Progress int    `json:"progress"`
	WPM      int    `json:"wpm"`
	Mistakes int    `json:"mistakes"`
	Finished bool   `json:"finished"`
}

// NameRequest is the body of POST /api/rooms/{id}/name.
type NameRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
}

// PresenceRequest is the body of POST /api/presence.
type PresenceRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	RoomID      string `json:"roomId,omitempty"`
	State       string `json:"state"`
}

// KeepAliveRequest is the body of POST /api/presence/keepalive. An empty
// State keeps the stored one.
type KeepAliveRequest struct {
	Identity string `json:"identity"`
	State    string `json:"state,omitempty"`
}
