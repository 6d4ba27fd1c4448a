// Package vectorstore provides the vector index backends a project can be
// bound to: embedded (in-memory brute force) and pgvector.
package vectorstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// Registry holds the configured index per backend tag. Thread-safe.
type Registry struct {
	mu      sync.RWMutex
	indexes map[models.VectorStoreBackend]contracts.VectorIndex
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		indexes: make(map[models.VectorStoreBackend]contracts.VectorIndex),
	}
}

// Register binds a backend tag to an index. Overwrites if exists.
func (r *Registry) Register(backend models.VectorStoreBackend, index contracts.VectorIndex) {
	r.mu.Lock()
	r.indexes[backend] = index
	r.mu.Unlock()
	log.Info().Str("backend", string(backend)).Msg("Vector store registered")
}

// Get returns the index for a backend tag.
func (r *Registry) Get(backend models.VectorStoreBackend) (contracts.VectorIndex, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexes[backend]
	if !ok {
		return nil, fmt.Errorf("vector store backend not configured: %s", backend)
	}
	return idx, nil
}

// List returns the configured backend tags.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.indexes))
	for b := range r.indexes {
		names = append(names, string(b))
	}
	sort.Strings(names)
	return names
}
