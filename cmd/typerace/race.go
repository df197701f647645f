package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/typerace/internal/api"
	"github.com/verte-zerg/typerace/internal/client"
	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/identity"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/stats"
	"github.com/verte-zerg/typerace/internal/tui"
)

const (
	defaultServerURL    = "http://localhost:8080"
	defaultCapacity     = 4
	defaultRaceDuration = 60
	httpTimeout         = 10 * time.Second
)

var (
	raceServer     string
	raceCreate     bool
	raceCode       string
	raceRoomName   string
	racePassword   string
	racePrivate    bool
	raceCapacity   int
	raceDuration   int
	raceDifficulty string
)

func newRaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race",
		Short: "Create or join a multiplayer race",
		Long:  "Create a room with --create, join one with --code, or pick a public room from the lobby.",
		Args:  cobra.NoArgs,
		RunE:  runRaceCmd,
	}
	cmd.Flags().StringVar(&raceServer, "server", defaultServerURL, "race server URL")
	cmd.Flags().BoolVar(&raceCreate, "create", false, "create a new room")
	cmd.Flags().StringVar(&raceCode, "code", "", "join the room with this code")
	cmd.Flags().StringVar(&raceRoomName, "name", "", "room name when creating (default: <your name>'s room)")
	cmd.Flags().StringVar(&racePassword, "password", "", "room password")
	cmd.Flags().BoolVar(&racePrivate, "private", false, "hide the created room from the lobby")
	cmd.Flags().IntVar(&raceCapacity, "capacity", defaultCapacity, "players per created room")
	cmd.Flags().IntVar(&raceDuration, "duration", defaultRaceDuration, "race time limit in seconds (0 counts up)")
	cmd.Flags().StringVar(&raceDifficulty, "difficulty", defaultDifficulty, "passage difficulty (easy, medium, hard)")
	return cmd
}

func newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List public rooms waiting for players",
		Args:  cobra.NoArgs,
		RunE:  runRoomsCmd,
	}
	cmd.Flags().StringVar(&raceServer, "server", defaultServerURL, "race server URL")
	return cmd
}

func applyClientConfig(cmd *cobra.Command) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "server", &raceServer, fileCfg.Client.Server)
	if cmd.Flags().Lookup("capacity") != nil {
		applyIntConfig(cmd, "capacity", &raceCapacity, fileCfg.Client.Capacity)
		applyIntConfig(cmd, "duration", &raceDuration, fileCfg.Client.Duration)
		applyStringConfig(cmd, "difficulty", &raceDifficulty, fileCfg.Client.Difficulty)
	}
	return nil
}

func newClient() *client.Client {
	return client.New(raceServer, &http.Client{Timeout: httpTimeout})
}

func runRoomsCmd(cmd *cobra.Command, _ []string) error {
	if err := applyClientConfig(cmd); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), httpTimeout)
	defer cancel()
	rooms, err := newClient().ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}
	return stats.RenderRoomList(cmd.OutOrStdout(), rooms)
}

func runRaceCmd(cmd *cobra.Command, _ []string) error {
	if err := applyClientConfig(cmd); err != nil {
		return err
	}
	if raceCreate && raceCode != "" {
		return fmt.Errorf("--create and --code are mutually exclusive")
	}
	if err := requireTerminal(); err != nil {
		return err
	}
	me, err := identity.LoadOrCreate(config.DefaultIdentityPath())
	if err != nil {
		return err
	}
	log, closeLog, err := fileLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	c := newClient()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	joined, err := enterRoom(ctx, c, me)
	if err != nil || joined == nil {
		return err
	}

	uiStream, err := c.Subscribe(ctx, joined.ID)
	if err != nil {
		leaveQuietly(c, joined.ID, me.ID)
		return fmt.Errorf("failed to subscribe to room: %w", err)
	}
	clockStream, err := c.Subscribe(ctx, joined.ID)
	if err != nil {
		leaveQuietly(c, joined.ID, me.ID)
		return fmt.Errorf("failed to subscribe to room: %w", err)
	}

	clock := clockwork.NewRealClock()
	screen := tui.NewRace(c, joined, me.ID, uiStream, clock, log)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		client.RunHostClock(ctx, clock, c, joined.ID, me.ID, clockStream, log)
	}()
	go func() {
		defer wg.Done()
		client.RunHeartbeat(ctx, clock, c, api.PresenceRequest{
			Identity:    me.ID,
			DisplayName: me.Name,
			RoomID:      joined.ID,
		}, screen.State, log)
	}()

	program := tea.NewProgram(screen, tea.WithAltScreen())
	_, runErr := program.Run()
	cancel()
	wg.Wait()
	if runErr != nil {
		leaveQuietly(c, joined.ID, me.ID)
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	if notice := screen.Notice(); notice != "" {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), notice)
	}
	return nil
}

// enterRoom creates or joins a room per the flags, falling back to the lobby.
// A nil room with a nil error means the user left the lobby.
func enterRoom(ctx context.Context, c *client.Client, me identity.Identity) (*model.Room, error) {
	reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	if raceCreate {
		difficulty, ok := model.ParseDifficulty(raceDifficulty)
		if !ok {
			return nil, fmt.Errorf("--difficulty must be one of easy, medium, hard")
		}
		name := strings.TrimSpace(raceRoomName)
		if name == "" {
			name = me.Name + "'s room"
		}
		visibility := model.VisibilityPublic
		if racePrivate {
			visibility = model.VisibilityPrivate
		}
		r, err := c.CreateRoom(reqCtx, api.CreateRoomRequest{
			Identity:        me.ID,
			DisplayName:     me.Name,
			Name:            name,
			Visibility:      string(visibility),
			Password:        racePassword,
			Capacity:        raceCapacity,
			DurationSeconds: raceDuration,
			Difficulty:      string(difficulty),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}
		return r, nil
	}

	roomID, code := "", raceCode
	if code == "" {
		lobby := tui.NewLobby(c)
		if _, err := tea.NewProgram(lobby, tea.WithAltScreen()).Run(); err != nil {
			return nil, fmt.Errorf("failed to run lobby: %w", err)
		}
		var locked bool
		roomID, code, locked = lobby.Choice()
		if roomID == "" && code == "" {
			return nil, nil
		}
		if locked && racePassword == "" {
			pw, err := promptPassword()
			if err != nil {
				return nil, err
			}
			racePassword = pw
		}
	}

	req := api.JoinRequest{Identity: me.ID, DisplayName: me.Name, Password: racePassword, Code: code}
	var (
		r   *model.Room
		err error
	)
	if roomID != "" {
		r, err = c.Join(reqCtx, roomID, req)
	} else {
		r, err = c.JoinByCode(reqCtx, req)
	}
	if e, ok := room.AsError(err); ok && e.Reason == room.ReasonWrongPassword && racePassword == "" {
		pw, perr := promptPassword()
		if perr != nil {
			return nil, perr
		}
		req.Password = pw
		if roomID != "" {
			r, err = c.Join(reqCtx, roomID, req)
		} else {
			r, err = c.JoinByCode(reqCtx, req)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	return r, nil
}

func promptPassword() (string, error) {
	_, _ = fmt.Fprint(os.Stderr, "Room password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(pw)), nil
}

func leaveQuietly(c *client.Client, roomID, identityID string) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()
	_, _ = c.Leave(ctx, roomID, identityID)
}
