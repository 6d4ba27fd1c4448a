// Package brain owns the long-lived, shared state of the inference core:
// memoized model clients, the tool registry, the chat store, the vector
// index backends and the per-project wrapper cache.
//
// A Brain is built once in main and passed by reference to the dispatcher,
// the strategies and the handlers.
package brain

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/internal/embeddings"
	"github.com/agentoven/ragserve/internal/guard"
	"github.com/agentoven/ragserve/internal/jobs"
	"github.com/agentoven/ragserve/internal/llm"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/internal/registry"
	"github.com/agentoven/ragserve/internal/rerank"
	"github.com/agentoven/ragserve/internal/sessions"
	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/internal/tools"
	"github.com/agentoven/ragserve/internal/vectorstore"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// LLMFactory builds a client for a resolved definition.
type LLMFactory func(def models.LLMDefinition, cfg config.ProviderConfig) (contracts.LLM, error)

// EmbedderFactory builds an embedder for a resolved definition.
type EmbedderFactory func(def models.EmbeddingDefinition, cfg config.ProviderConfig) (contracts.Embedder, error)

// Options wires a Brain. Nil fields get in-process defaults.
type Options struct {
	Config   *config.Config
	Store    store.Store
	Registry *registry.Registry
	Tools    *tools.Registry
	Chats    contracts.ChatStore
	Counter  contracts.TokenCounter
	Indexes  *vectorstore.Registry
	Jobs     *jobs.Queue
	Colbert  contracts.Reranker
	Dial     tools.Dialer

	NewLLM      LLMFactory
	NewEmbedder EmbedderFactory
}

// Brain is the shared model cache.
type Brain struct {
	Config   *config.Config
	Store    store.Store
	Registry *registry.Registry
	Tools    *tools.Registry
	Chats    contracts.ChatStore
	Counter  contracts.TokenCounter
	Indexes  *vectorstore.Registry
	Jobs     *jobs.Queue
	Colbert  contracts.Reranker // nil when no rerank service is configured
	Dial     tools.Dialer

	newLLM      LLMFactory
	newEmbedder EmbedderFactory

	mu        sync.RWMutex
	llms      map[string]contracts.LLM
	embedders map[string]contracts.Embedder

	projMu   sync.RWMutex
	projects map[string]*project.Project
}

// New creates a Brain. Config and Store are required.
func New(opts Options) *Brain {
	cfg := opts.Config
	b := &Brain{
		Config:      cfg,
		Store:       opts.Store,
		Registry:    opts.Registry,
		Tools:       opts.Tools,
		Chats:       opts.Chats,
		Counter:     opts.Counter,
		Indexes:     opts.Indexes,
		Jobs:        opts.Jobs,
		Colbert:     opts.Colbert,
		Dial:        opts.Dial,
		newLLM:      opts.NewLLM,
		newEmbedder: opts.NewEmbedder,
		llms:        make(map[string]contracts.LLM),
		embedders:   make(map[string]contracts.Embedder),
		projects:    make(map[string]*project.Project),
	}
	if b.Registry == nil {
		b.Registry = registry.New(opts.Store)
	}
	if b.Tools == nil {
		b.Tools = tools.NewDefaultRegistry()
	}
	if b.Chats == nil {
		b.Chats = sessions.NewMemoryStore(cfg.Inference.ChatSessionTTL)
	}
	if b.Counter == nil {
		b.Counter = sessions.DefaultCounter()
	}
	if b.Indexes == nil {
		b.Indexes = vectorstore.NewRegistry()
		b.Indexes.Register(models.VectorStoreEmbedded, vectorstore.NewEmbeddedStore())
	}
	if b.Jobs == nil {
		b.Jobs = jobs.NewQueue(map[string]int{jobs.ClassVision: cfg.Inference.VisionSlots})
	}
	if b.Dial == nil {
		b.Dial = tools.DialStreamable
	}
	if b.newLLM == nil {
		b.newLLM = llm.New
	}
	if b.newEmbedder == nil {
		b.newEmbedder = embeddings.New
	}
	if b.Colbert == nil && cfg.Providers.RerankURL != "" {
		b.Colbert = rerank.NewService(cfg.Providers.RerankURL, cfg.Providers.RerankModel, cfg.Providers.RerankKey)
	}
	return b
}

// ── Model clients ───────────────────────────────────────────

// LLM returns the memoized client for name, building it on first use.
func (b *Brain) LLM(ctx context.Context, name string) (contracts.LLM, error) {
	b.mu.RLock()
	c, ok := b.llms[name]
	b.mu.RUnlock()
	if ok {
		return c, nil
	}

	def, err := b.Registry.LLM(ctx, name)
	if err != nil {
		return nil, err
	}
	c, err = b.newLLM(def, b.Config.Providers)
	if err != nil {
		return nil, fmt.Errorf("build llm %s: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.llms[name]; ok {
		return existing, nil
	}
	b.llms[name] = c
	log.Debug().Str("llm", name).Str("class", string(def.Class)).Msg("LLM client created")
	return c, nil
}

// PutLLM installs a ready client under name, replacing any memoized one.
func (b *Brain) PutLLM(name string, c contracts.LLM) {
	b.mu.Lock()
	b.llms[name] = c
	b.mu.Unlock()
}

// ForgetLLM drops the memoized client so the next call rebuilds it from
// the current definition.
func (b *Brain) ForgetLLM(name string) {
	b.mu.Lock()
	delete(b.llms, name)
	b.mu.Unlock()
}

// Embedder returns the memoized embedder for name.
func (b *Brain) Embedder(name string) (contracts.Embedder, error) {
	b.mu.RLock()
	e, ok := b.embedders[name]
	b.mu.RUnlock()
	if ok {
		return e, nil
	}

	def, err := b.Registry.Embedding(name)
	if err != nil {
		return nil, err
	}
	e, err = b.newEmbedder(def, b.Config.Providers)
	if err != nil {
		return nil, fmt.Errorf("build embedder %s: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.embedders[name]; ok {
		return existing, nil
	}
	b.embedders[name] = e
	return e, nil
}

// PutEmbedder installs a ready embedder under name.
func (b *Brain) PutEmbedder(name string, e contracts.Embedder) {
	b.mu.Lock()
	b.embedders[name] = e
	b.mu.Unlock()
}

// Judge returns an LLM-judge reranker driven by the named LLM.
func (b *Brain) Judge(ctx context.Context, llmName string) (contracts.Reranker, error) {
	c, err := b.LLM(ctx, llmName)
	if err != nil {
		return nil, err
	}
	return rerank.NewLLMJudge(c), nil
}

// Guard builds the classifier of the named guard project.
func (b *Brain) Guard(ctx context.Context, name string) (*guard.Guard, error) {
	p, err := b.Project(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("guard project: %w", err)
	}
	c, err := b.LLM(ctx, p.LLM)
	if err != nil {
		return nil, err
	}
	return guard.New(p.Name, c, p.System), nil
}

// Session opens the chat session id, generating one when id is empty.
func (b *Brain) Session(id string) *sessions.Session {
	return sessions.Open(b.Chats, b.Counter, id, b.Config.Inference.ChatTokenLimit)
}

// ── Project wrappers ────────────────────────────────────────

// Project returns the cached wrapper of the named project, loading the row
// on first access.
func (b *Brain) Project(ctx context.Context, name string) (*project.Project, error) {
	b.projMu.RLock()
	p, ok := b.projects[name]
	b.projMu.RUnlock()
	if ok {
		return p, nil
	}

	def, err := b.Store.GetProject(ctx, name)
	if err != nil {
		return nil, err
	}
	p = project.New(*def, b.attach)

	b.projMu.Lock()
	defer b.projMu.Unlock()
	if existing, ok := b.projects[name]; ok {
		return existing, nil
	}
	b.projects[name] = p
	return p, nil
}

// Evict drops the cached wrapper so the next request rebuilds it.
func (b *Brain) Evict(name string) {
	b.projMu.Lock()
	delete(b.projects, name)
	b.projMu.Unlock()
}

// attach resolves the vector index and embedder of a rag project.
func (b *Brain) attach(_ context.Context, def models.Project) (contracts.VectorIndex, contracts.Embedder, error) {
	idx, err := b.Indexes.Get(def.VectorStore)
	if err != nil {
		return nil, nil, err
	}
	emb, err := b.Embedder(def.Embeddings)
	if err != nil {
		return nil, nil, err
	}
	return idx, emb, nil
}

// Close releases the job queue.
func (b *Brain) Close() {
	b.Jobs.Close()
}
