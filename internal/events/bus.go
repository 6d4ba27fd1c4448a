// Package events carries background accounting off the request path. The
// dispatcher publishes inference rows on an in-process watermill channel;
// consumers persist them and optionally forward them to NATS JetStream.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// TopicInference carries one models.InferenceLog per message.
const TopicInference = "inference.logs"

// Bus is the in-process publish/subscribe channel.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates a bus. Every subscriber of a topic receives every message.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			watermill.NewStdLogger(false, false),
		),
	}
}

// PublishInference publishes an accounting row. Failures are logged, never
// returned.
func (b *Bus) PublishInference(entry models.InferenceLog) {
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("project", entry.Project).Msg("Failed to encode inference log")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicInference, msg); err != nil {
		log.Error().Err(err).Str("project", entry.Project).Msg("Failed to publish inference log")
	}
}

// Subscribe returns the message channel of topic. It closes when ctx ends
// or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close stops the bus and closes every subscription.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
