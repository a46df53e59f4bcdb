// Package cache wraps Redis for read-path caching.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// New creates a Redis client and verifies connectivity.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Store caches JSON documents with a fixed TTL. A nil Store is a no-op,
// so callers never need to branch on cache availability.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewStore instantiates the cache helper.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// FetchJSON loads a cached value or populates it using the loader.
func (s *Store) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if s == nil || s.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return remarshal(value, dest)
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("platform/cache: get %s: %w", key, err)
	}

	// Concurrent misses on the same key run the loader once.
	result, err, _ := s.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
			return nil, fmt.Errorf("platform/cache: set %s: %w", key, err)
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), dest)
}

// Invalidate drops keys matching the given prefix.
func (s *Store) Invalidate(ctx context.Context, prefix string) error {
	if s == nil || s.client == nil {
		return nil
	}
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func remarshal(src, dest any) error {
	encoded, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, dest)
}
