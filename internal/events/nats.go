package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// StreamName is the JetStream stream receiving forwarded events.
const StreamName = "EVENTS"

// Forwarder republishes bus messages to NATS JetStream under
// events.<topic>.
type Forwarder struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewForwarder connects to NATS and ensures the stream exists.
func NewForwarder(ctx context.Context, url string) (*Forwarder, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"events.>"},
		Storage:  jetstream.FileStorage,
	}); err != nil {
		log.Warn().Err(err).Str("stream", StreamName).Msg("Failed to ensure NATS stream")
	}
	return &Forwarder{nc: nc, js: js}, nil
}

// Start forwards every message of topic until ctx ends or the bus closes.
func (f *Forwarder) Start(ctx context.Context, bus *Bus, topic string) error {
	messages, err := bus.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	subject := "events." + topic
	go func() {
		for msg := range messages {
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if _, err := f.js.Publish(pctx, subject, msg.Payload); err != nil {
				log.Warn().Err(err).Str("subject", subject).Msg("Failed to forward event to NATS")
			}
			cancel()
			msg.Ack()
		}
	}()
	return nil
}

// Close closes the NATS connection.
func (f *Forwarder) Close() {
	if f.nc != nil {
		f.nc.Close()
	}
}
