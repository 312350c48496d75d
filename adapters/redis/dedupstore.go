// Package redis provides a Redis-backed dedup store for webhook
// notification keys. Each key is claimed with SET NX so concurrent
// deliveries of the same notification race safely: exactly one caller
// observes the key as unseen.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/replygate/replygate/ports"
)

const keyPrefix = "replygate:dedup:"

// DedupStore records notification dedup keys in Redis with a TTL.
type DedupStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.DedupStore = (*DedupStore)(nil)

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*DedupStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *DedupStore {
	return &DedupStore{client: client, ttl: ttl}
}

// Seen claims key atomically. It returns false the first time a key is
// claimed and true for every claim within the TTL after that.
func (s *DedupStore) Seen(ctx context.Context, key string) (bool, error) {
	set, err := s.client.SetNX(ctx, keyPrefix+key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !set, nil
}

// Close releases the underlying connection pool.
func (s *DedupStore) Close() error {
	return s.client.Close()
}
