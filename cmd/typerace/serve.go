package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/events"
	"github.com/verte-zerg/typerace/internal/presence"
	"github.com/verte-zerg/typerace/internal/ratelimit"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/server"
	"github.com/verte-zerg/typerace/internal/store"
)

const defaultAddr = ":8080"

var (
	serveAddr    string
	serveDB      string
	serveNATSURL string
	serveOrigins []string
	serveEnvFile string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the race server",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&serveDB, "db", "", "room database path (default: XDG data dir)")
	cmd.Flags().StringVar(&serveNATSURL, "nats-url", "", "also publish room snapshots to this NATS server")
	cmd.Flags().StringSliceVar(&serveOrigins, "allowed-origins", []string{"*"}, "CORS allowed origins")
	cmd.Flags().StringVar(&serveEnvFile, "env-file", ".env", "dotenv file with TYPERACE_* settings")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(serveEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", serveEnvFile, err)
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	srvCfg := fileCfg.Server
	srvCfg.ApplyEnv(os.LookupEnv)

	applyStringConfig(cmd, "addr", &serveAddr, srvCfg.Addr)
	applyStringConfig(cmd, "db", &serveDB, srvCfg.DB)
	applyStringConfig(cmd, "nats-url", &serveNATSURL, srvCfg.NATSURL)
	applyStringConfig(cmd, "log-level", &logLevel, srvCfg.LogLevel)
	if len(srvCfg.AllowedOrigins) > 0 && !cmd.Flags().Changed("allowed-origins") {
		serveOrigins = srvCfg.AllowedOrigins
	}
	if serveDB == "" {
		serveDB = config.DefaultServerDBPath()
	}

	log, err := consoleLogger(os.Stderr)
	if err != nil {
		return err
	}

	st, err := store.Open(serveDB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close db")
		}
	}()

	clock := clockwork.NewRealClock()
	hub := events.NewHub()
	notifier := events.Multi{hub}
	if serveNATSURL != "" {
		pub, err := events.NewNATSPublisher(events.DefaultNATSConfig(serveNATSURL), log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() {
			if cerr := pub.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("failed to drain NATS connection")
			}
		}()
		notifier = append(notifier, pub)
		log.Info().Str("url", serveNATSURL).Msg("publishing room snapshots to NATS")
	}

	rooms := room.NewService(st, ratelimit.New(clock), clock,
		room.WithNotifier(notifier),
		room.WithLogger(log),
	)
	tracker := presence.NewTracker(st, rooms, clock, presence.DefaultTimeout, log)
	sweeper := presence.NewSweeper(tracker, clock, presence.DefaultSweepInterval, log)

	cfg := server.DefaultConfig()
	cfg.Addr = serveAddr
	cfg.AllowedOrigins = serveOrigins
	srv := server.New(rooms, tracker, sweeper, hub, clock, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info().Str("db", serveDB).Msg("starting server")
	return srv.Run(ctx)
}
