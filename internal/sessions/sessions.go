// Package sessions provides token-bounded chat memory for multi-turn
// conversations, on top of a pluggable contracts.ChatStore.
package sessions

import (
	"context"
	"fmt"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/google/uuid"
)

// KeyPrefix namespaces chat histories in the store.
const KeyPrefix = "memory_"

// Key returns the store key for a session id.
func Key(id string) string { return KeyPrefix + id }

// Session is one conversation. It is cheap to build per request; all
// state lives in the store.
type Session struct {
	ID      string
	store   contracts.ChatStore
	counter contracts.TokenCounter
	limit   int
}

// Open binds a session to the store. An empty id starts a new session with
// a generated UUID.
func Open(store contracts.ChatStore, counter contracts.TokenCounter, id string, limit int) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{ID: id, store: store, counter: counter, limit: limit}
}

// Key returns the store key of this session.
func (s *Session) Key() string { return Key(s.ID) }

// Messages returns the current history.
func (s *Session) Messages(ctx context.Context) ([]models.ChatMessage, error) {
	msgs, err := s.store.Messages(ctx, s.Key())
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", s.ID, err)
	}
	return msgs, nil
}

// Seed writes the system message when the history is empty and returns
// the resulting history.
func (s *Session) Seed(ctx context.Context, system string) ([]models.ChatMessage, error) {
	msgs, err := s.Messages(ctx)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 || system == "" {
		return msgs, nil
	}
	seed := models.ChatMessage{Role: models.RoleSystem, Content: system}
	if err := s.store.Append(ctx, s.Key(), seed); err != nil {
		return nil, fmt.Errorf("seed session %s: %w", s.ID, err)
	}
	return []models.ChatMessage{seed}, nil
}

// AppendTurn records one user and one assistant message, then evicts the
// oldest non-system messages while the history exceeds the token limit.
func (s *Session) AppendTurn(ctx context.Context, question, answer string) error {
	msgs, err := s.Messages(ctx)
	if err != nil {
		return err
	}
	msgs = append(msgs,
		models.ChatMessage{Role: models.RoleUser, Content: question},
		models.ChatMessage{Role: models.RoleAssistant, Content: answer},
	)
	trimmed := Trim(msgs, s.counter, s.limit)
	if len(trimmed) == len(msgs) {
		if err := s.store.Append(ctx, s.Key(), msgs[len(msgs)-2:]...); err != nil {
			return fmt.Errorf("append session %s: %w", s.ID, err)
		}
		return nil
	}
	if err := s.store.Replace(ctx, s.Key(), trimmed); err != nil {
		return fmt.Errorf("replace session %s: %w", s.ID, err)
	}
	return nil
}

// Trim drops the oldest non-system messages until the token count is
// within limit. System messages and the final message are always kept.
// A limit of zero or less disables trimming.
func Trim(msgs []models.ChatMessage, counter contracts.TokenCounter, limit int) []models.ChatMessage {
	if limit <= 0 || counter == nil {
		return msgs
	}
	total := 0
	for _, m := range msgs {
		total += counter.Count(m.Content)
	}
	if total <= limit {
		return msgs
	}

	drop := make([]bool, len(msgs))
	for i := 0; i < len(msgs)-1 && total > limit; i++ {
		if msgs[i].Role == models.RoleSystem {
			continue
		}
		drop[i] = true
		total -= counter.Count(msgs[i].Content)
	}

	out := make([]models.ChatMessage, 0, len(msgs))
	for i, m := range msgs {
		if !drop[i] {
			out = append(out, m)
		}
	}
	return out
}
