package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
	"github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process ChatStore. Histories expire after the TTL
// given at construction, refreshed on every write.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStore creates a go-cache backed store that purges expired
// histories every 10 minutes.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, 10*time.Minute)}
}

func (s *MemoryStore) get(key string) []models.ChatMessage {
	if x, found := s.cache.Get(key); found {
		return x.([]models.ChatMessage)
	}
	return nil
}

// Messages returns a copy of the history under key.
func (s *MemoryStore) Messages(_ context.Context, key string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.get(key)...), nil
}

// Append adds msgs to the end of the history.
func (s *MemoryStore) Append(_ context.Context, key string, msgs ...models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.get(key)
	next := make([]models.ChatMessage, 0, len(cur)+len(msgs))
	next = append(next, cur...)
	next = append(next, msgs...)
	s.cache.Set(key, next, cache.DefaultExpiration)
	return nil
}

// Replace overwrites the history.
func (s *MemoryStore) Replace(_ context.Context, key string, msgs []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, append([]models.ChatMessage(nil), msgs...), cache.DefaultExpiration)
	return nil
}

// Delete drops the history.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
