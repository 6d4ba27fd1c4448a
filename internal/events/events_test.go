package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentoven/ragserve/internal/events"
	"github.com/agentoven/ragserve/internal/registry"
	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountantPersistsPricedRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := store.NewMemoryStore("")
	defer s.Close()
	bus := events.NewBus()
	defer bus.Close()

	require.NoError(t, events.NewAccountant(s, registry.New(s)).Start(ctx, bus))

	bus.PublishInference(models.InferenceLog{
		ID:           "log-1",
		Project:      "demo",
		LLM:          "gpt-4o",
		Question:     "hi",
		Answer:       "hello",
		InputTokens:  1000,
		OutputTokens: 1000,
		Date:         time.Now().UTC(),
	})

	var logs []models.InferenceLog
	require.Eventually(t, func() bool {
		logs, _ = s.ListInferenceLogs(ctx, "demo", store.ListFilter{})
		return len(logs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "log-1", logs[0].ID)
	assert.InDelta(t, 0.0025, logs[0].InputCost, 1e-9)
	assert.InDelta(t, 0.01, logs[0].OutputCost, 1e-9)
}

func TestPriceUnknownLLM(t *testing.T) {
	a := events.NewAccountant(nil, registry.New(nil))
	entry := models.InferenceLog{LLM: "nope", InputTokens: 500}
	a.Price(context.Background(), &entry)
	assert.Zero(t, entry.InputCost)
}
