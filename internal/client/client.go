// Package client talks to a typerace server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verte-zerg/typerace/internal/api"
	"github.com/verte-zerg/typerace/internal/events"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
)

// Client calls the HTTP API of one server.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the server at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ListRooms returns joinable public rooms.
func (c *Client) ListRooms(ctx context.Context) ([]model.RoomSummary, error) {
	resp, err := c.call(ctx, http.MethodGet, "/api/rooms", nil)
	if err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// CreateRoom creates a room hosted by req.Identity.
func (c *Client) CreateRoom(ctx context.Context, req api.CreateRoomRequest) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, "/api/rooms", req)
}

// GetRoom fetches a room by id.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	return c.room(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil)
}

// GetRoomByCode fetches a room by join code.
func (c *Client) GetRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	return c.room(ctx, http.MethodGet, "/api/rooms/code/"+url.PathEscape(room.NormalizeCode(code)), nil)
}

// Join seats identity in a room by id.
func (c *Client) Join(ctx context.Context, roomID string, req api.JoinRequest) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, roomPath(roomID, "join"), req)
}

// JoinByCode seats identity in the room with req.Code.
func (c *Client) JoinByCode(ctx context.Context, req api.JoinRequest) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, "/api/rooms/join", req)
}

// Leave removes identity from a room and reports whether the room was deleted.
func (c *Client) Leave(ctx context.Context, roomID, identity string) (bool, error) {
	resp, err := c.call(ctx, http.MethodPost, roomPath(roomID, "leave"), api.IdentityRequest{Identity: identity})
	if err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

// StartRace starts the countdown. Host only.
func (c *Client) StartRace(ctx context.Context, roomID, identity string) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, roomPath(roomID, "start"), api.IdentityRequest{Identity: identity})
}

// AdvanceCountdown ticks the countdown. Host only.
func (c *Client) AdvanceCountdown(ctx context.Context, roomID, identity string) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, roomPath(roomID, "countdown"), api.IdentityRequest{Identity: identity})
}

// AdvanceTimer ticks the race clock. Host only.
func (c *Client) AdvanceTimer(ctx context.Context, roomID, identity string) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, roomPath(roomID, "timer"), api.IdentityRequest{Identity: identity})
}

// ReportProgress sends the caller's race state.
func (c *Client) ReportProgress(ctx context.Context, roomID string, req api.ProgressRequest) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, roomPath(roomID, "progress"), req)
}

// FinishRace ends a racing room.
func (c *Client) FinishRace(ctx context.Context, roomID, identity string) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, roomPath(roomID, "finish"), api.IdentityRequest{Identity: identity})
}

// UpdateDisplayName renames the caller inside a room.
func (c *Client) UpdateDisplayName(ctx context.Context, roomID, identity, name string) (*model.Room, error) {
	return c.room(ctx, http.MethodPost, roomPath(roomID, "name"), api.NameRequest{Identity: identity, DisplayName: name})
}

// RegisterPresence upserts the caller's presence record.
func (c *Client) RegisterPresence(ctx context.Context, req api.PresenceRequest) error {
	_, err := c.call(ctx, http.MethodPost, "/api/presence", req)
	return err
}

// KeepAlive refreshes the caller's heartbeat. It reports false when the
// server has no record for identity.
func (c *Client) KeepAlive(ctx context.Context, identity string, state model.ActivityState) (bool, error) {
	resp, err := c.call(ctx, http.MethodPost, "/api/presence/keepalive", api.KeepAliveRequest{Identity: identity, State: string(state)})
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

// RemovePresence deletes the caller's presence record.
func (c *Client) RemovePresence(ctx context.Context, identity string) error {
	_, err := c.call(ctx, http.MethodDelete, "/api/presence/"+url.PathEscape(identity), nil)
	return err
}

// Subscribe dials the room's snapshot stream. Snapshots are delivered on the
// returned channel until the room is deleted, the connection drops or ctx is
// cancelled; the channel is then closed.
func (c *Client) Subscribe(ctx context.Context, roomID string) (<-chan events.Snapshot, error) {
	wsURL, err := c.socketURL(roomID)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial room stream: %w", err)
	}
	out := make(chan events.Snapshot, 8)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var snap events.Snapshot
			if err := conn.ReadJSON(&snap); err != nil {
				return
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if snap.Deleted {
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) socketURL(roomID string) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("failed to parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/rooms/" + url.PathEscape(roomID)
	return u.String(), nil
}

func (c *Client) room(ctx context.Context, method, path string, body any) (*model.Room, error) {
	resp, err := c.call(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.Room == nil {
		return nil, fmt.Errorf("server returned no room for %s %s", method, path)
	}
	return resp.Room, nil
}

// call performs one request. Failure envelopes come back as *room.Error so
// callers branch on the same taxonomy as in-process code.
func (c *Client) call(ctx context.Context, method, path string, body any) (*api.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer httpResp.Body.Close()

	var resp api.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", httpResp.StatusCode, err)
	}
	if !resp.OK {
		if resp.Kind != "" {
			return nil, &room.Error{Kind: room.Kind(resp.Kind), Reason: resp.Error}
		}
		return nil, fmt.Errorf("server error (status %d): %s", httpResp.StatusCode, resp.Error)
	}
	return &resp, nil
}

func roomPath(roomID, action string) string {
	return "/api/rooms/" + url.PathEscape(roomID) + "/" + action
}
