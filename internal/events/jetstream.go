package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mcoot/turnclock/internal/model"
)

// JetStreamConfig holds NATS JetStream settings
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // how long to keep events
	Replicas        int
	DuplicateWindow time.Duration
}

// DefaultJetStreamConfig returns sensible defaults
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "ROOM_EVENTS",
		SubjectPrefix:   "tclock.rooms",
		MaxReconnects:   -1, // infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
	}
}

// envelope is the wire form of a command event
type envelope struct {
	EventID   string          `json:"eventId"`
	RoomID    string          `json:"roomId"`
	Command   string          `json:"command"`
	SentBy    model.PlayerRef `json:"sentBy"`
	Version   int64           `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
}

// JetStreamPublisher publishes command events to a JetStream stream, one
// subject per room: <prefix>.<roomId>.<command>
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	cfg    JetStreamConfig
	logger *slog.Logger
}

// Ensure JetStreamPublisher implements Publisher
var _ Publisher = (*JetStreamPublisher)(nil)

// NewJetStreamPublisher connects to NATS and ensures the stream exists
func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig, logger *slog.Logger) (*JetStreamPublisher, error) {
	logger = logger.With(slog.String("component", "jetstream_publisher"))

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", slog.String("error", err.Error()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, cfg: cfg, logger: logger}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	_, err := p.js.CreateOrUpdateStream(ctx, StreamConfig(p.cfg))
	if err != nil {
		return err
	}
	p.logger.Info("JetStream stream ready", slog.String("stream", p.cfg.StreamName))
	return nil
}

// StreamConfig returns the stream definition for the configuration
func StreamConfig(cfg JetStreamConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Commands applied to turnclock rooms",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}
}

// Subject returns the subject an event is published on
func Subject(prefix string, event model.CommandEvent) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.RoomID, event.Command)
}

// MessageID returns the deduplication id of an event. Committed room
// versions are unique per room; deletions carry no version and get a
// random id.
func MessageID(event model.CommandEvent) string {
	if event.Version > 0 {
		return string(event.RoomID) + "@" + strconv.FormatInt(event.Version, 10)
	}
	return uuid.NewString()
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event model.CommandEvent) error {
	id := MessageID(event)
	data, err := json.Marshal(envelope{
		EventID:   id,
		RoomID:    string(event.RoomID),
		Command:   event.Command,
		SentBy:    event.SentBy,
		Version:   event.Version,
		Timestamp: event.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: Subject(p.cfg.SubjectPrefix, event),
		Data:    data,
		Header: nats.Header{
			"Event-ID": []string{id},
			"Room-ID":  []string{string(event.RoomID)},
			"Command":  []string{event.Command},
		},
	}, jetstream.WithMsgID(id))
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	if ack.Duplicate {
		p.logger.Debug("duplicate room event ignored", slog.String("event_id", id))
	}
	return nil
}

// Close drains the connection
func (p *JetStreamPublisher) Close() error {
	return p.nc.Drain()
}
