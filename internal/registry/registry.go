// Package registry maps symbolic LLM and embedding names to provider
// definitions with cost and privacy metadata.
//
// Three layers are consulted, most specific first: the dynamic LLM table in
// the store, the hot-reloaded catalog file, and the static built-in tables.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/models"
)

// staticLLMs are always available. Costs are USD per 1K tokens.
var staticLLMs = []models.LLMDefinition{
	{Name: "gpt-4o", Class: models.LLMClassOpenAI, Model: "gpt-4o", Type: models.LLMTypeVision, Privacy: models.PrivacyPublic, ContextWindow: 128000, InputCost: 0.0025, OutputCost: 0.01, Description: "OpenAI GPT-4o"},
	{Name: "gpt-4o-mini", Class: models.LLMClassOpenAI, Model: "gpt-4o-mini", Type: models.LLMTypeVision, Privacy: models.PrivacyPublic, ContextWindow: 128000, InputCost: 0.00015, OutputCost: 0.0006, Description: "OpenAI GPT-4o mini"},
	{Name: "gpt-4-turbo", Class: models.LLMClassOpenAI, Model: "gpt-4-turbo", Type: models.LLMTypeChat, Privacy: models.PrivacyPublic, ContextWindow: 128000, InputCost: 0.01, OutputCost: 0.03},
	{Name: "claude-sonnet-4", Class: models.LLMClassAnthropic, Model: "claude-sonnet-4-20250514", Type: models.LLMTypeVision, Privacy: models.PrivacyPublic, ContextWindow: 200000, InputCost: 0.003, OutputCost: 0.015},
	{Name: "claude-3-5-haiku", Class: models.LLMClassAnthropic, Model: "claude-3-5-haiku-20241022", Type: models.LLMTypeChat, Privacy: models.PrivacyPublic, ContextWindow: 200000, InputCost: 0.001, OutputCost: 0.005},
	{Name: "llama3.1_8b", Class: models.LLMClassOllama, Model: "llama3.1:8b", Type: models.LLMTypeChat, Privacy: models.PrivacyPrivate, ContextWindow: 8192},
	{Name: "mistral_7b", Class: models.LLMClassOllama, Model: "mistral:7b", Type: models.LLMTypeChat, Privacy: models.PrivacyPrivate, ContextWindow: 8192},
	{Name: "qwen2.5_7b", Class: models.LLMClassOllama, Model: "qwen2.5:7b", Type: models.LLMTypeChat, Privacy: models.PrivacyPrivate, ContextWindow: 32768},
	{Name: "deepseek-r1_8b", Class: models.LLMClassOllama, Model: "deepseek-r1:8b", Type: models.LLMTypeChat, Privacy: models.PrivacyPrivate, ContextWindow: 32768, Description: "emits <think> reasoning blocks"},
	{Name: "llava_13b", Class: models.LLMClassOllama, Model: "llava:13b", Type: models.LLMTypeVision, Privacy: models.PrivacyPrivate, ContextWindow: 4096},
}

var staticEmbeddings = []models.EmbeddingDefinition{
	{Name: "text-embedding-3-small", Class: models.LLMClassOpenAI, Model: "text-embedding-3-small", Dimensions: 1536, Privacy: models.PrivacyPublic},
	{Name: "text-embedding-3-large", Class: models.LLMClassOpenAI, Model: "text-embedding-3-large", Dimensions: 3072, Privacy: models.PrivacyPublic},
	{Name: "nomic-embed-text", Class: models.LLMClassOllama, Model: "nomic-embed-text", Dimensions: 768, Privacy: models.PrivacyPrivate},
	{Name: "all-minilm", Class: models.LLMClassOllama, Model: "all-minilm", Dimensions: 384, Privacy: models.PrivacyPrivate},
}

// Registry resolves LLM and embedding names.
type Registry struct {
	store store.LLMStore

	mu         sync.RWMutex
	static     map[string]models.LLMDefinition
	catalog    map[string]models.LLMDefinition
	embeddings map[string]models.EmbeddingDefinition
}

// New creates a registry seeded with the built-in tables. s may be nil.
func New(s store.LLMStore) *Registry {
	r := &Registry{
		store:      s,
		static:     make(map[string]models.LLMDefinition, len(staticLLMs)),
		catalog:    make(map[string]models.LLMDefinition),
		embeddings: make(map[string]models.EmbeddingDefinition, len(staticEmbeddings)),
	}
	for _, d := range staticLLMs {
		r.static[d.Name] = d
	}
	for _, e := range staticEmbeddings {
		r.embeddings[e.Name] = e
	}
	return r
}

// RegisterLLM adds or replaces a static definition.
func (r *Registry) RegisterLLM(def models.LLMDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[def.Name] = def
}

// RegisterEmbedding adds or replaces an embedding definition.
func (r *Registry) RegisterEmbedding(def models.EmbeddingDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[def.Name] = def
}

// SetCatalog replaces the file-backed layer.
func (r *Registry) SetCatalog(defs []models.LLMDefinition) {
	catalog := make(map[string]models.LLMDefinition, len(defs))
	for _, d := range defs {
		d.Dynamic = true
		catalog[d.Name] = d
	}
	r.mu.Lock()
	r.catalog = catalog
	r.mu.Unlock()
}

// LLM resolves a name to its definition.
func (r *Registry) LLM(ctx context.Context, name string) (models.LLMDefinition, error) {
	if r.store != nil {
		def, err := r.store.GetLLM(ctx, name)
		if err == nil {
			return *def, nil
		}
		var nf *store.ErrNotFound
		if !errors.As(err, &nf) {
			return models.LLMDefinition{}, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.catalog[name]; ok {
		return def, nil
	}
	if def, ok := r.static[name]; ok {
		return def, nil
	}
	return models.LLMDefinition{}, &store.ErrNotFound{Entity: "llm", Key: name}
}

// LLMs lists every resolvable LLM, with overridden names reported once.
func (r *Registry) LLMs(ctx context.Context) ([]models.LLMDefinition, error) {
	merged := make(map[string]models.LLMDefinition)

	r.mu.RLock()
	for k, v := range r.static {
		merged[k] = v
	}
	for k, v := range r.catalog {
		merged[k] = v
	}
	r.mu.RUnlock()

	if r.store != nil {
		dynamic, err := r.store.ListLLMs(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range dynamic {
			merged[d.Name] = d
		}
	}

	result := make([]models.LLMDefinition, 0, len(merged))
	for _, d := range merged {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Embedding resolves an embedding model name.
func (r *Registry) Embedding(name string) (models.EmbeddingDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.embeddings[name]; ok {
		return def, nil
	}
	return models.EmbeddingDefinition{}, &store.ErrNotFound{Entity: "embedding", Key: name}
}

// Embeddings lists every known embedding model.
func (r *Registry) Embeddings() []models.EmbeddingDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.EmbeddingDefinition, 0, len(r.embeddings))
	for _, e := range r.embeddings {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Cost returns the USD cost of a call given its token counts.
func Cost(def models.LLMDefinition, inputTokens, outputTokens int) (input, output float64) {
	return float64(inputTokens) / 1000 * def.InputCost, float64(outputTokens) / 1000 * def.OutputCost
}
