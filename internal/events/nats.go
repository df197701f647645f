package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/model"
)

// SubjectPrefix prefixes per-room NATS subjects.
const SubjectPrefix = "typerace.rooms"

// Subject returns the NATS subject carrying snapshots for roomID.
func Subject(roomID string) string {
	return SubjectPrefix + "." + roomID
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns reconnect defaults for url.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher mirrors room snapshots onto NATS subjects so processes other
// than the server can follow rooms.
type NATSPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NewNATSPublisher connects to the configured server.
func NewNATSPublisher(cfg NATSConfig, log zerolog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("typerace"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, log: log}, nil
}

// RoomChanged implements room.Notifier.
func (p *NATSPublisher) RoomChanged(r *model.Room) {
	p.publish(r.ID, Snapshot{Room: r})
}

// RoomDeleted implements room.Notifier.
func (p *NATSPublisher) RoomDeleted(roomID string) {
	p.publish(roomID, Snapshot{Deleted: true})
}

func (p *NATSPublisher) publish(roomID string, snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		p.log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode snapshot")
		return
	}
	if err := p.nc.Publish(Subject(roomID), data); err != nil {
		p.log.Error().Err(err).Str("room_id", roomID).Msg("failed to publish snapshot")
	}
}

// Close drains pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
