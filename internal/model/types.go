// Package model defines shared data structures.
package model

import "time"

// Difficulty selects the word pool and punctuation rate for a passage.
type Difficulty string

// Passage difficulties.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty normalizes a difficulty name. Unknown names map to medium.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(s), true
	case "":
		return DifficultyMedium, true
	default:
		return DifficultyMedium, false
	}
}

// Config defines solo practice settings.
type Config struct {
	Words        int
	Duration     int
	Difficulty   Difficulty
	Seed         string
	WordListPath string
}

// RoomStatus is the shared race state.
type RoomStatus string

// Room states, in transition order.
const (
	RoomWaiting   RoomStatus = "waiting"
	RoomCountdown RoomStatus = "countdown"
	RoomRacing    RoomStatus = "racing"
	RoomFinished  RoomStatus = "finished"
)

// Visibility controls whether a room shows up in public listings.
type Visibility string

// Room visibilities.
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// RoomPlayer is one roster row.
type RoomPlayer struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Progress    int    `json:"progress"`
	WPM         int    `json:"wpm"`
	Mistakes    int    `json:"mistakes"`
	Finished    bool   `json:"finished"`
}

// Room is the server-authoritative record for one race.
type Room struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Visibility      Visibility   `json:"visibility"`
	Password        string       `json:"-"`
	HostIdentity    string       `json:"hostIdentity"`
	Status          RoomStatus   `json:"status"`
	Passage         string       `json:"passage"`
	PassageSeed     string       `json:"passageSeed"`
	Difficulty      Difficulty   `json:"difficulty"`
	DurationSeconds int          `json:"durationSeconds"`
	Countdown       int          `json:"countdown"`
	TimeRemaining   int          `json:"timeRemaining"`
	ElapsedSeconds  int          `json:"elapsedSeconds"`
	CreatedAt       time.Time    `json:"createdAt"`
	Capacity        int          `json:"capacity"`
	Roster          []RoomPlayer `json:"roster"`
	JoinCode        string       `json:"joinCode"`
	HasPassword     bool         `json:"hasPassword"`
}

// Member reports the roster index for identity, or -1.
func (r *Room) Member(identity string) int {
	for i, p := range r.Roster {
		if p.Identity == identity {
			return i
		}
	}
	return -1
}

// RoomSummary is the public listing projection of a room.
type RoomSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	JoinCode    string    `json:"joinCode"`
	PlayerCount int       `json:"playerCount"`
	Capacity    int       `json:"capacity"`
	HasPassword bool      `json:"hasPassword"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ActivityState is what a presence heartbeat says the client is doing.
type ActivityState string

// Activity states.
const (
	ActivityOnline ActivityState = "online"
	ActivityIdle   ActivityState = "idle"
	ActivityInRoom ActivityState = "in_room"
	ActivityInRace ActivityState = "in_race"
)

// Valid reports whether s is a known activity state.
func (s ActivityState) Valid() bool {
	switch s {
	case ActivityOnline, ActivityIdle, ActivityInRoom, ActivityInRace:
		return true
	}
	return false
}

// PresenceRecord is the liveness record for one identity.
type PresenceRecord struct {
	Identity        string        `json:"identity"`
	DisplayName     string        `json:"displayName"`
	RoomID          string        `json:"roomId,omitempty"`
	State           ActivityState `json:"state"`
	LastHeartbeatAt time.Time     `json:"lastHeartbeatAt"`
	ConnectedAt     time.Time     `json:"connectedAt"`
}

// ActionKind names a rate-limited action.
type ActionKind string

// Rate-limited actions.
const (
	ActionCreate ActionKind = "create"
	ActionJoin   ActionKind = "join"
)

// RateLimitCounter is a fixed-window counter for one identity and action.
type RateLimitCounter struct {
	Identity    string
	Action      ActionKind
	Count       int
	WindowStart time.Time
}

// SessionStats captures a completed solo practice session.
type SessionStats struct {
	StartedAt  time.Time
	EndedAt    time.Time
	Seed       string
	Difficulty Difficulty
	Words      int
	Duration   int
	Correct    int
	Mistakes   int
	WPM        int
	Accuracy   int
	DurationMs int64
}

// HistoryConfig defines filters for practice history output.
type HistoryConfig struct {
	Difficulty Difficulty
	Since      *time.Time
	Last       int
}

// SessionAggregate summarizes a stored session for reporting.
type SessionAggregate struct {
	SessionID  int64
	EndedAt    time.Time
	Difficulty Difficulty
	Correct    int
	Mistakes   int
	WPM        int
	Accuracy   int
	DurationMs int64
}
