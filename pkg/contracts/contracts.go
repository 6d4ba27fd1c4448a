// Package contracts defines the collaborator interfaces the ragserve
// orchestration core consumes.
//
// The core (dispatcher, strategies, cache, guard) only ever talks to these
// interfaces. Concrete adapters live under internal/ (llm, embeddings,
// vectorstore, sessions, rerank, tools) and tests swap in scripted fakes.
package contracts

import (
	"context"

	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/models"
)

// Store is a type alias for the internal Store interface.
type Store = store.Store

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = store.ErrNotFound

// ── LLM ─────────────────────────────────────────────────────

// Completion is the result of one LLM call. Token counts are those reported
// by the provider, or zero when the provider does not report usage.
type Completion struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// DeltaFunc receives incremental text as a stream progresses. Returning an
// error aborts the stream.
type DeltaFunc func(delta string) error

// LLM is a chat-capable model client.
type LLM interface {
	// Chat performs a single blocking completion.
	Chat(ctx context.Context, messages []models.ChatMessage) (*Completion, error)

	// StreamChat streams the completion through onDelta and returns the
	// assembled completion once the stream has finished.
	StreamChat(ctx context.Context, messages []models.ChatMessage, onDelta DeltaFunc) (*Completion, error)

	// Complete performs a multimodal completion. Images are data URIs.
	Complete(ctx context.Context, prompt string, images []string) (*Completion, error)
}

// ── Embeddings ──────────────────────────────────────────────

// Embedder converts text into vectors.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimensions() int
}

// ── Vector Index ────────────────────────────────────────────

// VectorIndex is a nearest-neighbour index partitioned into collections.
type VectorIndex interface {
	Upsert(ctx context.Context, collection string, docs []models.VectorDoc) error
	Search(ctx context.Context, collection string, vector []float64, topK int) ([]models.SearchResult, error)
	DeleteBySource(ctx context.Context, collection, source string) (int, error)
	DeleteByID(ctx context.Context, collection, id string) error
	DeleteCollection(ctx context.Context, collection string) error
	Count(ctx context.Context, collection string) (int, error)
	Backend() string
}

// ── Chat Store ──────────────────────────────────────────────

// ChatStore persists conversation history keyed by session key.
type ChatStore interface {
	Messages(ctx context.Context, key string) ([]models.ChatMessage, error)
	Append(ctx context.Context, key string, msgs ...models.ChatMessage) error
	Replace(ctx context.Context, key string, msgs []models.ChatMessage) error
	Delete(ctx context.Context, key string) error
}

// ── Rerank ──────────────────────────────────────────────────

// Reranker reorders retrieval candidates and keeps at most topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.SearchResult, topN int) ([]models.SearchResult, error)
}

// ── Tools ───────────────────────────────────────────────────

// Tool is a callable capability exposed to agent projects.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Call(ctx context.Context, args map[string]interface{}) (string, error)
}

// ── Token Counting ──────────────────────────────────────────

// TokenCounter estimates the token length of text.
type TokenCounter interface {
	Count(text string) int
}
