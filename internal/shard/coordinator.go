package shard

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultBucketSpacing is the documented gap between identify buckets.
const DefaultBucketSpacing = 5 * time.Second

// Coordinator gates shard startup by bucket. It is shared by every Manager
// of a Set and is safe for concurrent use.
type Coordinator struct {
	spacing time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	windows  map[int]time.Time // bucket -> last time it opened
	expected map[int]bool      // buckets run by this process, nil means all
	changed  chan struct{}
}

// NewCoordinator creates a Coordinator. A zero spacing uses DefaultBucketSpacing.
func NewCoordinator(spacing time.Duration, logger *slog.Logger) *Coordinator {
	if spacing <= 0 {
		spacing = DefaultBucketSpacing
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		spacing: spacing,
		now:     time.Now,
		logger:  logger,
		windows: make(map[int]time.Time),
		changed: make(chan struct{}),
	}
}

// Expect limits gating to the buckets of the given shards. Without it every
// lower bucket is assumed to connect.
func (c *Coordinator) Expect(shards []int, maxConcurrency int) {
	maxConcurrency = max(maxConcurrency, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.expected = make(map[int]bool, len(shards))
	for _, s := range shards {
		c.expected[s/maxConcurrency] = true
	}
}

// WaitForOtherShards blocks until shardIndex's bucket may identify, then
// records the bucket's window.
func (c *Coordinator) WaitForOtherShards(ctx context.Context, shardIndex, maxConcurrency int) error {
	maxConcurrency = max(maxConcurrency, 1)
	bucket := shardIndex / maxConcurrency

	for {
		c.mu.Lock()
		now := c.now()
		wait, ready := c.waitLocked(bucket, now)
		if ready {
			if opened, ok := c.windows[bucket]; !ok || now.Sub(opened) >= c.spacing {
				c.windows[bucket] = now
				close(c.changed)
				c.changed = make(chan struct{})
			}
			c.mu.Unlock()
			return nil
		}
		changed := c.changed
		c.mu.Unlock()

		c.logger.Debug("shard waiting for bucket",
			"shard", shardIndex,
			"bucket", bucket,
			"wait", wait,
		)

		if err := sleepUntil(ctx, wait, changed); err != nil {
			return err
		}
	}
}

// sleepUntil waits for d, or for changed when d is zero.
func sleepUntil(ctx context.Context, d time.Duration, changed <-chan struct{}) error {
	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
	case <-timeout:
	}
	return nil
}

// waitLocked returns the remaining wait for bucket. A zero wait with ready
// false means the previous bucket has not opened yet.
func (c *Coordinator) waitLocked(bucket int, now time.Time) (time.Duration, bool) {
	prev, ok := c.previousBucketLocked(bucket)
	if !ok {
		return 0, true
	}
	opened, ok := c.windows[prev]
	if !ok {
		return 0, false
	}
	wait := opened.Add(c.spacing).Sub(now)
	if wait <= 0 {
		return 0, true
	}
	return wait, false
}

func (c *Coordinator) previousBucketLocked(bucket int) (int, bool) {
	if c.expected == nil {
		return bucket - 1, bucket > 0
	}
	prev, found := -1, false
	for b := range c.expected {
		if b < bucket && b > prev {
			prev, found = b, true
		}
	}
	return prev, found
}

// Window is one bucket opening.
type Window struct {
	Bucket   int       `json:"bucket"`
	OpenedAt time.Time `json:"opened_at"`
}

// Windows returns the recorded bucket openings ordered by bucket.
func (c *Coordinator) Windows() []Window {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Window, 0, len(c.windows))
	for b, t := range c.windows {
		out = append(out, Window{Bucket: b, OpenedAt: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out
}
