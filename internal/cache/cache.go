// Package cache stores classifier predictions in Redis so redelivered
// alerts get the same answer without another inference call.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Entry is a cached prediction.
type Entry struct {
	Probabilities []float64      `msgpack:"probabilities"`
	Aux           map[string]any `msgpack:"aux,omitempty"`
	Digest        string         `msgpack:"digest"`
	CreatedMs     int64          `msgpack:"created_ms"`
}

// Cache is a Redis-backed prediction store.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New returns a Cache writing keys under prefix. A zero ttl keeps entries forever.
func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Key identifies one prediction: a deployment, a model version and an alert.
func (c *Cache) Key(deployment, digest, objectID string, sourceID int64) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", c.prefix, deployment, digest, objectID, sourceID)
}

// Get returns the entry stored at key. A miss returns (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &e, true, nil
}

// Set stores e at key.
func (c *Cache) Set(ctx context.Context, key string, e *Entry) error {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
