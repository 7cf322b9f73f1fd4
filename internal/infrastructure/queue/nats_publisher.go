package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"PropDashboards/internal/config"
	"PropDashboards/internal/domain"
	"PropDashboards/internal/ports"
)

const (
	reconnectAttempts = 3
	reconnectWait     = time.Second
	eventRetention    = 30 * 24 * time.Hour
)

// GeneratedMsg is the JetStream payload announcing one rendered dashboard.
type GeneratedMsg struct {
	Dashboard domain.GeneratedDashboard `json:"dashboard"`
}

// streamPublisher is the part of jetstream.JetStream the publisher needs.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher implements ports.EventPublisher on top of NATS JetStream.
type Publisher struct {
	nc      *nats.Conn
	js      streamPublisher
	subject string
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Connect dials NATS, ensures the stream exists and returns a publisher.
func Connect(ctx context.Context, cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("prop-dashboards"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(reconnectAttempts),
		nats.ReconnectWait(reconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    eventRetention,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}

	return &Publisher{nc: nc, js: js, subject: cfg.Subject}, nil
}

// PublishGenerated sends the dashboard event. The message id lets JetStream
// drop duplicates of the same render.
func (p *Publisher) PublishGenerated(ctx context.Context, dashboard domain.GeneratedDashboard) error {
	data, err := Encode(GeneratedMsg{Dashboard: dashboard})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.subject, data, jetstream.WithMsgID(MessageID(dashboard))); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// MessageID identifies one render of one firm dashboard.
func MessageID(d domain.GeneratedDashboard) string {
	return fmt.Sprintf("%s/%s/%s/%s", d.Category, d.Week, d.Firm, d.Fingerprint)
}

// Encode serializes a message to JSON bytes.
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeGenerated deserializes a GeneratedMsg from JSON bytes.
func DecodeGenerated(data []byte) (*GeneratedMsg, error) {
	var msg GeneratedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
