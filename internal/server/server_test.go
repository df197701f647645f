package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/api"
	"github.com/verte-zerg/typerace/internal/events"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/presence"
	"github.com/verte-zerg/typerace/internal/ratelimit"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/store"
)

type harness struct {
	srv   *Server
	http  *httptest.Server
	rooms *room.Service
	clock *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "typerace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	hub := events.NewHub()
	rooms := room.NewService(st, ratelimit.New(clock), clock, room.WithNotifier(hub))
	tracker := presence.NewTracker(st, rooms, clock, presence.DefaultTimeout, zerolog.Nop())
	srv := New(rooms, tracker, nil, hub, clock, DefaultConfig(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{srv: srv, http: ts, rooms: rooms, clock: clock}
}

func (h *harness) do(t *testing.T, method, path string, body any) (int, api.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.http.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out api.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func (h *harness) createRoom(t *testing.T, host string) *model.Room {
	t.Helper()
	status, resp := h.do(t, http.MethodPost, "/api/rooms", api.CreateRoomRequest{
		Identity: host, DisplayName: host, Name: "Lunch race", Capacity: 2, DurationSeconds: 30,
	})
	if status != http.StatusCreated || !resp.OK || resp.Room == nil {
		t.Fatalf("create: %d %+v", status, resp)
	}
	return resp.Room
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, resp := h.do(t, http.MethodGet, "/health", nil)
	if status != http.StatusOK || !resp.OK {
		t.Fatalf("health: %d %+v", status, resp)
	}
}

func TestRaceFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	created := h.createRoom(t, "alice")

	status, resp := h.do(t, http.MethodGet, "/api/rooms", nil)
	if status != http.StatusOK || len(resp.Rooms) != 1 || resp.Rooms[0].JoinCode != created.JoinCode {
		t.Fatalf("list: %d %+v", status, resp)
	}

	status, resp = h.do(t, http.MethodPost, "/api/rooms/join", api.JoinRequest{
		Identity: "bob", DisplayName: "Bob", Code: strings.ToLower(created.JoinCode),
	})
	if status != http.StatusOK || len(resp.Room.Roster) != 2 {
		t.Fatalf("join by code: %d %+v", status, resp)
	}

	base := "/api/rooms/" + created.ID
	if status, resp = h.do(t, http.MethodPost, base+"/start", api.IdentityRequest{Identity: "alice"}); status != http.StatusOK {
		t.Fatalf("start: %d %+v", status, resp)
	}
	for i := 0; i < room.InitialCountdown; i++ {
		status, resp = h.do(t, http.MethodPost, base+"/countdown", api.IdentityRequest{Identity: "alice"})
		if status != http.StatusOK {
			t.Fatalf("countdown: %d %+v", status, resp)
		}
	}
	if resp.Room.Status != model.RoomRacing {
		t.Fatalf("expected racing, got %s", resp.Room.Status)
	}
	status, resp = h.do(t, http.MethodPost, base+"/timer", api.IdentityRequest{Identity: "alice"})
	if status != http.StatusOK || resp.Room.TimeRemaining != 29 {
		t.Fatalf("timer: %d %+v", status, resp)
	}
	status, resp = h.do(t, http.MethodPost, base+"/progress", api.ProgressRequest{Identity: "bob", Progress: 100, WPM: 90, Finished: true})
	if status != http.StatusOK || resp.Room.Status != model.RoomFinished {
		t.Fatalf("progress: %d %+v", status, resp)
	}
	status, resp = h.do(t, http.MethodPost, base+"/name", api.NameRequest{Identity: "bob", DisplayName: "Robert"})
	if status != http.StatusOK || resp.Room.Roster[1].DisplayName != "Robert" {
		t.Fatalf("rename: %d %+v", status, resp)
	}
	status, resp = h.do(t, http.MethodGet, "/api/rooms/code/"+created.JoinCode, nil)
	if status != http.StatusOK || resp.Room.ID != created.ID {
		t.Fatalf("get by code: %d %+v", status, resp)
	}

	h.do(t, http.MethodPost, base+"/leave", api.IdentityRequest{Identity: "alice"})
	status, resp = h.do(t, http.MethodPost, base+"/leave", api.IdentityRequest{Identity: "bob"})
	if status != http.StatusOK || !resp.Deleted {
		t.Fatalf("leave: %d %+v", status, resp)
	}
}

func TestFailureStatuses(t *testing.T) {
	h := newHarness(t)
	created := h.createRoom(t, "alice")
	base := "/api/rooms/" + created.ID

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   room.Kind
		reason string
	}{
		{"validation", http.MethodPost, "/api/rooms", api.CreateRoomRequest{Identity: "x", DisplayName: "x", Name: " ", Capacity: 2}, http.StatusBadRequest, room.KindValidation, room.ReasonNameRequired},
		{"not found", http.MethodGet, "/api/rooms/nope", nil, http.StatusNotFound, room.KindNotFound, room.ReasonRoomNotFound},
		{"not host", http.MethodPost, base + "/start", api.IdentityRequest{Identity: "bob"}, http.StatusConflict, room.KindConflict, room.ReasonOnlyHostStart},
		{"not racing", http.MethodPost, base + "/timer", api.IdentityRequest{Identity: "alice"}, http.StatusConflict, room.KindConflict, room.ReasonNotRacing},
		{"bad body", http.MethodPost, base + "/join", "not an object", http.StatusBadRequest, room.KindValidation, reasonBadBody},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := h.do(t, tc.method, tc.path, tc.body)
			if status != tc.status || resp.OK || resp.Kind != string(tc.kind) || resp.Error != tc.reason {
				t.Fatalf("expected %d %s %q, got %d %+v", tc.status, tc.kind, tc.reason, status, resp)
			}
		})
	}
}

func TestRateLimitedStatus(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < ratelimit.DefaultCreateMax; i++ {
		h.createRoom(t, "alice")
	}
	status, resp := h.do(t, http.MethodPost, "/api/rooms", api.CreateRoomRequest{
		Identity: "alice", DisplayName: "alice", Name: "again", Capacity: 2,
	})
	if status != http.StatusTooManyRequests || resp.Kind != string(room.KindRateLimited) {
		t.Fatalf("expected 429, got %d %+v", status, resp)
	}
}

func TestPresenceEndpoints(t *testing.T) {
	h := newHarness(t)

	status, resp := h.do(t, http.MethodPost, "/api/presence", api.PresenceRequest{Identity: "alice", DisplayName: "Alice", State: "online"})
	if status != http.StatusOK || resp.Presence == nil || resp.Presence.State != model.ActivityOnline {
		t.Fatalf("register: %d %+v", status, resp)
	}
	status, resp = h.do(t, http.MethodPost, "/api/presence", api.PresenceRequest{Identity: "alice", State: "sleeping"})
	if status != http.StatusBadRequest || resp.Error != reasonBadActivity {
		t.Fatalf("bad state: %d %+v", status, resp)
	}
	status, resp = h.do(t, http.MethodPost, "/api/presence/keepalive", api.KeepAliveRequest{Identity: "alice", State: "idle"})
	if status != http.StatusOK || !resp.Found {
		t.Fatalf("keepalive: %d %+v", status, resp)
	}
	status, resp = h.do(t, http.MethodGet, "/api/presence/alice", nil)
	if status != http.StatusOK || resp.Presence.State != model.ActivityIdle {
		t.Fatalf("get: %d %+v", status, resp)
	}
	if status, _ = h.do(t, http.MethodDelete, "/api/presence/alice", nil); status != http.StatusOK {
		t.Fatalf("delete: %d", status)
	}
	status, resp = h.do(t, http.MethodGet, "/api/presence/alice", nil)
	if status != http.StatusNotFound || resp.Error != reasonNoPresence {
		t.Fatalf("get after delete: %d %+v", status, resp)
	}
	status, resp = h.do(t, http.MethodPost, "/api/presence/keepalive", api.KeepAliveRequest{Identity: "alice"})
	if status != http.StatusOK || resp.Found {
		t.Fatalf("keepalive unknown: %d %+v", status, resp)
	}
}

func dial(t *testing.T, h *harness, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws/rooms/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) events.Snapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap events.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return snap
}

func TestWebSocketPushesSnapshots(t *testing.T) {
	h := newHarness(t)
	created := h.createRoom(t, "alice")
	conn := dial(t, h, created.ID)

	first := readSnapshot(t, conn)
	if first.Room == nil || first.Room.ID != created.ID || len(first.Room.Roster) != 1 {
		t.Fatalf("unexpected first frame: %+v", first)
	}

	h.do(t, http.MethodPost, "/api/rooms/"+created.ID+"/join", api.JoinRequest{Identity: "bob", DisplayName: "Bob"})
	next := readSnapshot(t, conn)
	if next.Room == nil || len(next.Room.Roster) != 2 {
		t.Fatalf("expected join snapshot, got %+v", next)
	}

	h.do(t, http.MethodPost, "/api/rooms/"+created.ID+"/leave", api.IdentityRequest{Identity: "alice"})
	h.do(t, http.MethodPost, "/api/rooms/"+created.ID+"/leave", api.IdentityRequest{Identity: "bob"})
	for {
		snap := readSnapshot(t, conn)
		if snap.Deleted {
			break
		}
	}
}

func TestWebSocketMissingRoom(t *testing.T) {
	h := newHarness(t)
	conn := dial(t, h, "missing")
	if snap := readSnapshot(t, conn); !snap.Deleted {
		t.Fatalf("expected deleted frame, got %+v", snap)
	}
}

func TestJanitorRemovesStaleRooms(t *testing.T) {
	h := newHarness(t)
	created := h.createRoom(t, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.srv.RunJanitor(ctx)
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("wait for janitor: %v", err)
	}

	h.clock.Advance(room.WaitingRetention)
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.clock.Advance(time.Minute)
		if _, err := h.rooms.Get(ctx, created.ID); room.IsKind(err, room.KindNotFound) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("janitor never removed room")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
