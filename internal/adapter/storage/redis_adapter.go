package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	cartKeyPrefix  = "cart:sess:"
	sessionCartTTL = 30 * 24 * time.Hour
)

// RedisAdapter holds the ephemeral carts of anonymous sessions: one hash
// per session key, one JSON-encoded line per product field. The TTL is
// refreshed on every write; durable carts never pass through here.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func cartKey(sessionID string) string {
	return cartKeyPrefix + sessionID
}

func (r *RedisAdapter) Lines(ctx context.Context, ownerKey string) ([]domain.CartLine, error) {
	fields, err := r.client.HGetAll(ctx, cartKey(ownerKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("read session cart: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(fields))
	for _, raw := range fields {
		var line domain.CartLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("decode cart line: %w", err)
		}
		lines = append(lines, line)
	}

	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].ProductID < lines[j].ProductID
		}
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines, nil
}

func (r *RedisAdapter) UpsertLine(ctx context.Context, ownerKey string, line domain.CartLine) error {
	raw, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encode cart line: %w", err)
	}

	key := cartKey(ownerKey)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, line.ProductID, raw)
	pipe.Expire(ctx, key, sessionCartTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write session cart: %w", err)
	}
	return nil
}

func (r *RedisAdapter) RemoveLine(ctx context.Context, ownerKey, productID string) error {
	if err := r.client.HDel(ctx, cartKey(ownerKey), productID).Err(); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (r *RedisAdapter) Clear(ctx context.Context, ownerKey string) error {
	if err := r.client.Del(ctx, cartKey(ownerKey)).Err(); err != nil {
		return fmt.Errorf("clear session cart: %w", err)
	}
	return nil
}
