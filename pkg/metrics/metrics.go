// Package metrics counts what a classifier deployment does and reports
// periodic snapshots to Redis, where operators read them back.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for deployment snapshots.
	KeyPrefix = "metrics:classifier:"
	// TTL is how long a snapshot stays in Redis if not refreshed.
	TTL = 2 * time.Minute
	// DefaultReportInterval is the default interval between snapshots.
	DefaultReportInterval = 30 * time.Second
)

// Snapshot is a point-in-time view of one deployment's counters.
type Snapshot struct {
	Deployment  string    `json:"deployment"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"`

	AlertsReceived  uint64 `json:"alerts_received"`
	AlertsProcessed uint64 `json:"alerts_processed"`
	AlertsPublished uint64 `json:"alerts_published"`

	// Errors counts failed requests by error class.
	Errors map[string]uint64 `json:"errors,omitempty"`

	AlertsPerSecond float64 `json:"alerts_per_second"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`

	Counters map[string]uint64 `json:"counters,omitempty"`
}

// counterSet is a set of named counters created on first use.
type counterSet struct {
	mu sync.RWMutex
	m  map[string]*atomic.Uint64
}

func (s *counterSet) add(name string, n uint64) {
	s.mu.RLock()
	c, ok := s.m[name]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if c, ok = s.m[name]; !ok {
			c = &atomic.Uint64{}
			s.m[name] = c
		}
		s.mu.Unlock()
	}
	c.Add(n)
}

func (s *counterSet) values() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint64, len(s.m))
	for name, c := range s.m {
		out[name] = c.Load()
	}
	return out
}

// Collector counts events for one deployment. A nil Redis client keeps
// counting without reporting.
type Collector struct {
	deployment     string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	received  atomic.Uint64
	processed atomic.Uint64
	published atomic.Uint64

	totalLatencyNs atomic.Uint64

	errors   counterSet
	counters counterSet

	// Rate state, touched only by the reporting goroutine.
	lastReport    time.Time
	lastProcessed uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector creates a collector for deployment.
func NewCollector(deployment string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		deployment:     deployment,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReport:     now,
		errors:         counterSet{m: make(map[string]*atomic.Uint64)},
		counters:       counterSet{m: make(map[string]*atomic.Uint64)},
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval between snapshots.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start reports snapshots until ctx is done or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.report(context.Background())
				return
			case <-c.stopCh:
				c.report(context.Background())
				return
			case <-ticker.C:
				c.report(ctx)
			}
		}
	}()
}

// Stop stops reporting after a final snapshot.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// RecordReceived counts an incoming push request.
func (c *Collector) RecordReceived() {
	c.received.Add(1)
}

// RecordProcessed counts a fully handled alert and its latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.processed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
}

// RecordPublished counts a published classification.
func (c *Collector) RecordPublished() {
	c.published.Add(1)
}

// RecordError counts a failed request under its error class.
func (c *Collector) RecordError(class string) {
	c.errors.add(class, 1)
}

// Increment adds one to a named counter.
func (c *Collector) Increment(name string) {
	c.counters.add(name, 1)
}

// Snapshot returns the current counters without reporting them.
func (c *Collector) Snapshot() *Snapshot {
	now := time.Now().UTC()
	processed := c.processed.Load()

	var rate float64
	if elapsed := now.Sub(c.lastReport).Seconds(); elapsed > 0 {
		rate = float64(processed-c.lastProcessed) / elapsed
	}
	var avgMs float64
	if processed > 0 {
		avgMs = float64(c.totalLatencyNs.Load()) / float64(processed) / 1e6
	}

	return &Snapshot{
		Deployment:      c.deployment,
		StartedAt:       c.startedAt,
		LastUpdated:     now,
		Status:          "healthy",
		AlertsReceived:  c.received.Load(),
		AlertsProcessed: processed,
		AlertsPublished: c.published.Load(),
		Errors:          c.errors.values(),
		AlertsPerSecond: rate,
		AvgLatencyMs:    avgMs,
		Counters:        c.counters.values(),
	}
}

// Flush writes a snapshot to Redis now.
func (c *Collector) Flush(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	snap := c.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	if err := c.redis.Set(ctx, KeyPrefix+c.deployment, data, TTL).Err(); err != nil {
		return fmt.Errorf("failed to write metrics to Redis: %w", err)
	}
	return nil
}

func (c *Collector) report(ctx context.Context) {
	if err := c.Flush(ctx); err != nil {
		slog.Error("Failed to report metrics", "deployment", c.deployment, "error", err)
		return
	}
	c.lastReport = time.Now().UTC()
	c.lastProcessed = c.processed.Load()
}

// Reader reads deployment snapshots from Redis.
type Reader struct {
	redis *redis.Client
}

// NewReader creates a new metrics reader.
func NewReader(redisClient *redis.Client) *Reader {
	return &Reader{redis: redisClient}
}

// Get returns the latest snapshot for deployment. Snapshots older than TTL
// are marked unhealthy.
func (r *Reader) Get(ctx context.Context, deployment string) (*Snapshot, error) {
	data, err := r.redis.Get(ctx, KeyPrefix+deployment).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("no metrics found for deployment: %s", deployment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if time.Since(snap.LastUpdated) > TTL {
		snap.Status = "unhealthy"
	}
	return &snap, nil
}

// All returns every deployment's snapshot, ordered by deployment name.
func (r *Reader) All(ctx context.Context) ([]*Snapshot, error) {
	var names []string
	iter := r.redis.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, iter.Val()[len(KeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list metrics keys: %w", err)
	}
	sort.Strings(names)

	out := make([]*Snapshot, 0, len(names))
	for _, name := range names {
		snap, err := r.Get(ctx, name)
		if err != nil {
			slog.Warn("Failed to read metrics for deployment", "deployment", name, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
