package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each history as a Redis list of JSON messages. Every
// write refreshes the key TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// DialRedis parses url and connects. A bare host:port is accepted.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) Messages(ctx context.Context, key string) ([]models.ChatMessage, error) {
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}
	out := make([]models.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message in %s: %w", key, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func encode(msgs []models.ChatMessage) ([]interface{}, error) {
	vals := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		vals = append(vals, string(b))
	}
	return vals, nil
}

func (s *RedisStore) Append(ctx context.Context, key string, msgs ...models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	vals, err := encode(msgs)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Replace(ctx context.Context, key string, msgs []models.ChatMessage) error {
	vals, err := encode(msgs)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(vals) > 0 {
		pipe.RPush(ctx, key, vals...)
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis replace %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
