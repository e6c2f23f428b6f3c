package connection

import (
	"math"
	"sync"
	"time"
)

// BackoffConfig parameterizes Backoff.
type BackoffConfig struct {
	Base        float64
	MaxExponent int
	Coefficient time.Duration
	MinBackoff  time.Duration
}

// DefaultBackoffConfig returns the defaults used for gateway connections.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:        2,
		MaxExponent: 7,
		Coefficient: time.Second,
		MinBackoff:  15 * time.Second,
	}
}

// Backoff computes the wait before a connection attempt. The try count is
// only reset after a fully established session, which caps how often a
// failing client identifies.
type Backoff struct {
	cfg BackoffConfig
	now func() time.Time

	mu       sync.Mutex
	tries    int
	previous time.Time
}

// NewBackoff creates a Backoff. A nil clock uses time.Now.
func NewBackoff(cfg BackoffConfig, now func() time.Time) *Backoff {
	if now == nil {
		now = time.Now
	}
	return &Backoff{cfg: cfg, now: now}
}

// CanPerformIn returns how long to wait before the next attempt, and false
// when no wait is needed. Every call counts as an attempt.
func (b *Backoff) CanPerformIn() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var elapsed time.Duration
	if b.previous.IsZero() {
		elapsed = time.Duration(math.MaxInt64)
	} else {
		elapsed = b.now().Sub(b.previous)
	}

	try := b.tries
	b.tries++

	wait := b.cfg.MinBackoff - elapsed
	if try > 0 {
		exp := min(try, b.cfg.MaxExponent)
		scaled := time.Duration(float64(b.cfg.Coefficient) * math.Pow(b.cfg.Base, float64(exp)))
		wait = max(scaled-elapsed, wait)
	}
	if wait <= 0 {
		return 0, false
	}
	return wait, true
}

// WillTry stamps the current time as the previous attempt.
func (b *Backoff) WillTry() {
	b.mu.Lock()
	b.previous = b.now()
	b.mu.Unlock()
}

// ResetTryCount is called once a session is fully established.
func (b *Backoff) ResetTryCount() {
	b.mu.Lock()
	b.tries = 0
	b.mu.Unlock()
}

// Tries returns the current try count.
func (b *Backoff) Tries() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tries
}
