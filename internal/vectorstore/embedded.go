package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxVectors is the default cap for the embedded store (50K).
const DefaultMaxVectors = 50_000

// EmbeddedStore is an in-memory vector index using brute-force search.
// Results are ordered by ascending Euclidean distance. Suitable for
// development and small workloads; use pgvector beyond that.
type EmbeddedStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*models.VectorDoc
	total       int
	maxVectors  int
}

// EmbeddedOption configures the embedded store.
type EmbeddedOption func(*EmbeddedStore)

// WithMaxVectors sets the maximum number of vectors across all collections.
func WithMaxVectors(max int) EmbeddedOption {
	return func(s *EmbeddedStore) { s.maxVectors = max }
}

// NewEmbeddedStore creates an in-memory vector index.
func NewEmbeddedStore(opts ...EmbeddedOption) *EmbeddedStore {
	s := &EmbeddedStore{
		collections: make(map[string]map[string]*models.VectorDoc),
		maxVectors:  DefaultMaxVectors,
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Info().Int("max_vectors", s.maxVectors).Msg("📦 Embedded vector store initialized")
	return s
}

func (s *EmbeddedStore) Backend() string { return string(models.VectorStoreEmbedded) }

func (s *EmbeddedStore) Upsert(_ context.Context, collection string, docs []models.VectorDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	newCount := 0
	for _, d := range docs {
		if d.ID == "" || coll[d.ID] == nil {
			newCount++
		}
	}
	total := s.total + newCount
	if total > s.maxVectors {
		return fmt.Errorf("embedded vector store capacity exceeded: %d > %d (consider pgvector)", total, s.maxVectors)
	}
	if total > int(float64(s.maxVectors)*0.9) {
		log.Warn().Int("count", total).Int("max", s.maxVectors).Msg("Embedded vector store nearing capacity")
	}

	if coll == nil {
		coll = make(map[string]*models.VectorDoc)
		s.collections[collection] = coll
	}
	now := time.Now()
	for _, d := range docs {
		cp := d
		cp.Collection = collection
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.Vector = append([]float64(nil), d.Vector...)
		coll[cp.ID] = &cp
	}
	s.total = total
	return nil
}

func (s *EmbeddedStore) Search(_ context.Context, collection string, vector []float64, topK int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []models.SearchResult
	for _, d := range s.collections[collection] {
		if len(d.Vector) != len(vector) {
			continue
		}
		cp := *d
		candidates = append(candidates, models.SearchResult{
			Doc:      cp,
			Score:    clamp01(cosineSimilarity(vector, d.Vector)),
			Distance: euclidean(vector, d.Vector),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Doc.ID < candidates[j].Doc.ID
	})

	if topK < len(candidates) {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *EmbeddedStore) DeleteBySource(_ context.Context, collection, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, d := range s.collections[collection] {
		if d.Metadata[models.MetaSource] == source {
			delete(s.collections[collection], id)
			n++
		}
	}
	s.total -= n
	return n, nil
}

func (s *EmbeddedStore) DeleteByID(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("vector %s not found in %s", id, collection)
	}
	delete(s.collections[collection], id)
	s.total--
	return nil
}

func (s *EmbeddedStore) DeleteCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total -= len(s.collections[collection])
	delete(s.collections, collection)
	return nil
}

func (s *EmbeddedStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection]), nil
}

// ── Helpers ─────────────────────────────────────────────────

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
