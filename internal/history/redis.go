package history

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores each chat's history in a capped list with a TTL, so several
// gateway replicas share it.
type Redis struct {
	client *redis.Client
	size   int
	ttl    time.Duration
	prefix string
}

var _ Store = (*Redis)(nil)

// NewRedis keeps size messages per chat. Lists expire ttl after the last
// write; ttl <= 0 disables expiry.
func NewRedis(client *redis.Client, size int, ttl time.Duration) *Redis {
	if size < 1 {
		size = 1
	}
	return &Redis{client: client, size: size, ttl: ttl, prefix: "lago:history:"}
}

// Dial connects and pings, failing fast on a bad address.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) key(chatID string) string { return r.prefix + chatID }

func (r *Redis) Recent(ctx context.Context, chatID string) ([]string, error) {
	msgs, err := r.client.LRange(ctx, r.key(chatID), 0, int64(r.size-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	return msgs, nil
}

func (r *Redis) Add(ctx context.Context, chatID, text string) error {
	key := r.key(chatID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, text)
		p.LTrim(ctx, key, 0, int64(r.size-1))
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	return nil
}
