package connection

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SendQueue runs at most one task per interval. Excess tasks are delayed,
// never dropped, and run in submission order.
type SendQueue struct {
	interval time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
	gen     uint64 // bumped by Reset
}

// NewSendQueue creates a queue allowing one task per interval.
func NewSendQueue(interval time.Duration) *SendQueue {
	q := &SendQueue{interval: interval}
	q.limiter = q.newLimiter()
	return q
}

func (q *SendQueue) newLimiter() *rate.Limiter {
	if q.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(q.interval), 1)
}

// Perform runs task now if a slot is free, or schedules it for its slot.
// A scheduled task whose slot was taken on a limiter since replaced by Reset
// reserves a new slot when it fires.
func (q *SendQueue) Perform(task func()) {
	q.mu.Lock()
	gen := q.gen
	delay := q.limiter.Reserve().Delay()
	q.mu.Unlock()

	if delay <= 0 {
		task()
		return
	}
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		stale := q.gen != gen
		q.mu.Unlock()

		if stale {
			q.Perform(task)
			return
		}
		task()
	})
}

// Reset allows the next task to run immediately. Tasks already scheduled
// queue again behind it.
func (q *SendQueue) Reset() {
	q.mu.Lock()
	q.limiter = q.newLimiter()
	q.gen++
	q.mu.Unlock()
}
