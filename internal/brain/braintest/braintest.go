// Package braintest builds a Brain backed by in-memory stores and scripted
// model clients for tests.
package braintest

import (
	"context"
	"testing"
	"time"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/internal/embeddings/embedtest"
	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

// Default messages of the test configuration.
const (
	DefaultSystem     = "You are a helpful assistant."
	DefaultCensorship = "I'm sorry, I don't know the answer to that."
	EmbeddingName     = "embedtest"
)

// Env is a Brain with its backing store.
type Env struct {
	Brain    *brain.Brain
	Store    *store.MemoryStore
	Embedder *embedtest.Embedder
}

// Config returns a deterministic configuration that ignores the
// environment.
func Config() *config.Config {
	return &config.Config{
		Version: "test",
		Inference: config.InferenceConfig{
			DefaultSystem:      DefaultSystem,
			DefaultCensorship:  DefaultCensorship,
			DefaultK:           4,
			AgentMaxIterations: 5,
			ChatTokenLimit:     3000,
			ChatSessionTTL:     time.Hour,
			EvalLLM:            "eval",
			VisionSlots:        1,
		},
	}
}

// New builds an Env with the hashing embedder registered as "embedtest".
func New(t testing.TB) *Env {
	t.Helper()
	s := store.NewMemoryStore("")
	b := brain.New(brain.Options{Config: Config(), Store: s})
	t.Cleanup(func() {
		b.Close()
		s.Close()
	})

	e := &Env{Brain: b, Store: s, Embedder: embedtest.New()}
	b.Registry.RegisterEmbedding(models.EmbeddingDefinition{
		Name: EmbeddingName, Class: models.LLMClassOllama, Model: EmbeddingName, Dimensions: e.Embedder.Dims,
	})
	b.PutEmbedder(EmbeddingName, e.Embedder)
	return e
}

// LLM registers a scripted client under name.
func (e *Env) LLM(name string, llm contracts.LLM) {
	e.Brain.Registry.RegisterLLM(models.LLMDefinition{
		Name: name, Class: models.LLMClassOllama, Model: name, Type: models.LLMTypeChat, Privacy: models.PrivacyPrivate,
	})
	e.Brain.PutLLM(name, llm)
}

// Project creates p through the Brain, failing the test on error.
func (e *Env) Project(t testing.TB, p models.Project) {
	t.Helper()
	if p.Type == models.ProjectRAG {
		if p.Embeddings == "" {
			p.Embeddings = EmbeddingName
		}
		if p.VectorStore == "" {
			p.VectorStore = models.VectorStoreEmbedded
		}
	}
	if err := e.Brain.CreateProject(context.Background(), &p); err != nil {
		t.Fatalf("create project %s: %v", p.Name, err)
	}
}
