package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func setupCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "predictions", ttl), mr
}

func TestCache_SetGet(t *testing.T) {
	c, _ := setupCache(t, time.Hour)
	ctx := context.Background()
	key := c.Key("supernnova", "abc123", "obj-1", 42)

	if key != "predictions:supernnova:abc123:obj-1:42" {
		t.Errorf("Key() = %q", key)
	}

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get() on empty cache = %v, %v", ok, err)
	}

	want := &Entry{Probabilities: []float64{0.25, 0.75}, Digest: "abc123", CreatedMs: 1700000000000}
	if err := c.Set(ctx, key, want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_Expiry(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	key := c.Key("microlia", "d", "o", 1)

	if err := c.Set(ctx, key, &Entry{Probabilities: []float64{1}}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Errorf("Get() after expiry = %v, %v, want miss", ok, err)
	}
}

func TestCache_CorruptEntry(t *testing.T) {
	c, mr := setupCache(t, 0)
	key := c.Key("supernnova", "d", "o", 1)
	if err := mr.Set(key, "\xc1"); err != nil {
		t.Fatalf("miniredis Set() error = %v", err)
	}

	if _, _, err := c.Get(context.Background(), key); err == nil {
		t.Error("Get() on corrupt entry: want error")
	}
}

func TestCache_Unavailable(t *testing.T) {
	c, mr := setupCache(t, 0)
	mr.Close()

	if err := c.Set(context.Background(), "k", &Entry{}); err == nil {
		t.Error("Set() with server down: want error")
	}
}
