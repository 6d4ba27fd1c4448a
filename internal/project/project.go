// Package project wraps a persisted project row with the runtime resources
// it needs: the vector index and embedder of a rag project, and the
// semantic cache when caching is on. Both attach on first access.
package project

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agentoven/ragserve/internal/cache"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

// AttachFunc resolves the index and embedder of a rag project.
type AttachFunc func(ctx context.Context, def models.Project) (contracts.VectorIndex, contracts.Embedder, error)

// Project is the runtime view of one project. The embedded row is
// read-only; edits go through the store and evict the wrapper.
type Project struct {
	models.Project

	attach AttachFunc

	mu       sync.Mutex
	index    contracts.VectorIndex
	embedder contracts.Embedder
	cache    *cache.Cache
}

// New wraps def. Nothing is attached until first use.
func New(def models.Project, attach AttachFunc) *Project {
	return &Project{Project: def, attach: attach}
}

// Collection is the vector collection holding the project's documents.
func (p *Project) Collection() string { return p.Name }

// Index returns the vector index and embedder, attaching them on first
// call. Only rag projects have an index.
func (p *Project) Index(ctx context.Context) (contracts.VectorIndex, contracts.Embedder, error) {
	if p.Type != models.ProjectRAG {
		return nil, nil, fmt.Errorf("project %s of type %s has no vector index", p.Name, p.Type)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index != nil {
		return p.index, p.embedder, nil
	}
	idx, emb, err := p.attach(ctx, p.Project)
	if err != nil {
		return nil, nil, fmt.Errorf("attach index for %s: %w", p.Name, err)
	}
	p.index, p.embedder = idx, emb
	return idx, emb, nil
}

// Cache returns the semantic cache, or nil when the project does not cache.
func (p *Project) Cache(ctx context.Context) (*cache.Cache, error) {
	if p.Type != models.ProjectRAG || !p.Options.Cache {
		return nil, nil
	}
	idx, emb, err := p.Index(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cache == nil {
		threshold := 0.0
		if p.Options.CacheThreshold != nil {
			threshold = *p.Options.CacheThreshold
		}
		p.cache = cache.New(p.Name, idx, emb, threshold)
	}
	return p.cache, nil
}

// CensorshipOr returns the project's fallback message, or fallback when
// the project has none.
func (p *Project) CensorshipOr(fallback string) string {
	if p.Censorship != "" {
		return p.Censorship
	}
	return fallback
}

// ── Validation ──────────────────────────────────────────────

// ValidationError reports a project definition that breaks an invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid project %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a definition. It does not
// resolve model names.
func Validate(def *models.Project) error {
	if strings.TrimSpace(def.Name) == "" {
		return invalid("name", "is required")
	}
	if strings.ContainsAny(def.Name, "/ ") {
		return invalid("name", "must not contain spaces or slashes")
	}
	if !def.Type.Valid() {
		return invalid("type", "unknown type %q", def.Type)
	}
	if def.LLM == "" {
		return invalid("llm", "is required")
	}

	rag := def.Type == models.ProjectRAG
	switch {
	case rag && def.Embeddings == "":
		return invalid("embeddings", "is required for rag projects")
	case rag && def.VectorStore == "":
		return invalid("vectorstore", "is required for rag projects")
	case !rag && def.Embeddings != "":
		return invalid("embeddings", "is only allowed on rag projects")
	case !rag && def.VectorStore != "":
		return invalid("vectorstore", "is only allowed on rag projects")
	}
	if rag && def.VectorStore != models.VectorStoreEmbedded && def.VectorStore != models.VectorStorePgvector {
		return invalid("vectorstore", "unknown backend %q", def.VectorStore)
	}

	router := def.Type == models.ProjectRouter
	if router && len(def.Entrances) == 0 {
		return invalid("entrances", "are required for router projects")
	}
	if !router && len(def.Entrances) > 0 {
		return invalid("entrances", "are only allowed on router projects")
	}
	for i, e := range def.Entrances {
		if e.Destination == "" {
			return invalid("entrances", "entry %d has no destination", i)
		}
		if e.Destination == def.Name {
			return invalid("entrances", "entry %d routes to the router itself", i)
		}
	}

	if def.Type == models.ProjectRAGSQL && def.Options.Connection == "" {
		return invalid("options.connection", "is required for ragsql projects")
	}
	if t := def.Options.CacheThreshold; t != nil && (*t <= 0 || *t > 1) {
		return invalid("options.cache_threshold", "must be in (0,1]")
	}
	if k := def.Options.K; k != nil && (*k < 1 || *k > 25) {
		return invalid("options.k", "must be between 1 and 25")
	}
	if def.Guard == def.Name && def.Guard != "" {
		return invalid("guard", "a project cannot guard itself")
	}
	return nil
}

// ApplyUpdate merges the editable fields of upd into def.
func ApplyUpdate(def *models.Project, upd models.ProjectUpdate) {
	if upd.LLM != nil {
		def.LLM = *upd.LLM
	}
	if upd.Embeddings != nil {
		def.Embeddings = *upd.Embeddings
	}
	if upd.System != nil {
		def.System = *upd.System
	}
	if upd.Censorship != nil {
		def.Censorship = *upd.Censorship
	}
	if upd.Sandboxed != nil {
		def.Sandboxed = *upd.Sandboxed
	}
	if upd.Guard != nil {
		def.Guard = *upd.Guard
	}
	if upd.Options != nil {
		def.Options = *upd.Options
	}
	if upd.Entrances != nil {
		def.Entrances = upd.Entrances
	}
	if upd.Public != nil {
		def.Public = *upd.Public
	}
	if upd.HumanName != nil {
		def.HumanName = *upd.HumanName
	}
	if upd.HumanDescription != nil {
		def.HumanDescription = *upd.HumanDescription
	}
	def.Options.Version = models.ProjectOptionsVersion
}
