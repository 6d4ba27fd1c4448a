package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/agentoven/ragserve/internal/registry"
	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// Accountant persists inference rows with their costs.
type Accountant struct {
	store    store.InferenceLogStore
	registry *registry.Registry
}

// NewAccountant creates the accounting consumer.
func NewAccountant(s store.InferenceLogStore, reg *registry.Registry) *Accountant {
	return &Accountant{store: s, registry: reg}
}

// Start subscribes to the bus and persists rows in a background goroutine
// until ctx ends or the bus closes.
func (a *Accountant) Start(ctx context.Context, bus *Bus) error {
	messages, err := bus.Subscribe(ctx, TopicInference)
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			a.process(ctx, msg)
		}
	}()
	return nil
}

func (a *Accountant) process(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var entry models.InferenceLog
	if err := json.Unmarshal(msg.Payload, &entry); err != nil {
		log.Error().Err(err).Str("message", msg.UUID).Msg("Dropping malformed inference log")
		return
	}
	a.Price(ctx, &entry)
	if err := a.store.CreateInferenceLog(ctx, &entry); err != nil {
		log.Error().Err(err).Str("project", entry.Project).Msg("Failed to persist inference log")
	}
}

// Price fills the cost columns from the LLM's registry definition. Unknown
// LLMs cost nothing.
func (a *Accountant) Price(ctx context.Context, entry *models.InferenceLog) {
	def, err := a.registry.LLM(ctx, entry.LLM)
	if err != nil {
		return
	}
	entry.InputCost, entry.OutputCost = registry.Cost(def, entry.InputTokens, entry.OutputTokens)
}
