// Package server exposes the room and presence operations over HTTP and
// pushes room snapshots over WebSocket.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/events"
	"github.com/verte-zerg/typerace/internal/presence"
	"github.com/verte-zerg/typerace/internal/room"
)

// Config holds server tuning.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	CleanupInterval time.Duration
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the defaults used by the serve command.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		AllowedOrigins:  []string{"*"},
		CleanupInterval: time.Minute,
		PingInterval:    30 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server wires the HTTP surface to the room and presence services.
type Server struct {
	rooms    *room.Service
	presence *presence.Tracker
	sweeper  *presence.Sweeper
	hub      *events.Hub
	clock    clockwork.Clock
	cfg      Config
	log      zerolog.Logger
}

// New builds a server. The hub must be registered as the room service's
// notifier for WebSocket subscribers to see changes.
func New(rooms *room.Service, tracker *presence.Tracker, sweeper *presence.Sweeper, hub *events.Hub, clock clockwork.Clock, cfg Config, log zerolog.Logger) *Server {
	def := DefaultConfig()
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = def.AllowedOrigins
	}
	return &Server{
		rooms:    rooms,
		presence: tracker,
		sweeper:  sweeper,
		hub:      hub,
		clock:    clock,
		cfg:      cfg,
		log:      log,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/join", s.handleJoinByCode).Methods(http.MethodPost)
	api.HandleFunc("/rooms/code/{code}", s.handleGetByCode).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/join", s.handleJoin).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/leave", s.handleLeave).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/start", s.roomAction(s.rooms.StartRace)).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/countdown", s.roomAction(s.rooms.AdvanceCountdown)).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/timer", s.roomAction(s.rooms.AdvanceTimer)).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/finish", s.roomAction(s.rooms.FinishRace)).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/progress", s.handleProgress).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/name", s.handleRename).Methods(http.MethodPost)

	api.HandleFunc("/presence", s.handleRegisterPresence).Methods(http.MethodPost)
	api.HandleFunc("/presence/keepalive", s.handleKeepAlive).Methods(http.MethodPost)
	api.HandleFunc("/presence/{identity}", s.handleGetPresence).Methods(http.MethodGet)
	api.HandleFunc("/presence/{identity}", s.handleRemovePresence).Methods(http.MethodDelete)

	r.HandleFunc("/ws/rooms/{id}", s.handleRoomSocket).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// Run serves HTTP on cfg.Addr and runs the presence sweeper and the room
// janitor until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.sweeper != nil {
		go s.sweeper.Run(bgCtx)
	}
	go s.RunJanitor(bgCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.log.Info().Msg("server stopped")
	return nil
}

// RunJanitor removes stale rooms every CleanupInterval until ctx is cancelled.
func (s *Server) RunJanitor(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := s.rooms.CleanupStale(ctx); err != nil {
				s.log.Error().Err(err).Msg("room cleanup failed")
			}
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets WebSocket upgrades pass through the logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
