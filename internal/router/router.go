package router

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler consumes one event on the router goroutine. Handlers run in
// registration order and must not block for long.
type Handler[T any] func(T)

// Router reads one input stream and hands every item to its handlers and
// subscriber streams, in input order.
type Router[T any] interface {
	// Handle registers a handler. Must be called before Start.
	Handle(name string, h Handler[T])

	// Subscribe returns a new stream that receives every routed item.
	// Must be called before Start.
	Subscribe() *Stream[T]

	// Start begins routing.
	Start(ctx context.Context) error

	// Stop waits for the routing goroutine and closes subscriber streams.
	Stop(ctx context.Context) error

	// Stats returns current router statistics.
	Stats() RouterStats
}

type namedHandler[T any] struct {
	name string
	fn   Handler[T]
}

type router[T any] struct {
	cfg    RouterConfig
	logger *slog.Logger
	input  <-chan T

	handlers    []namedHandler[T]
	subscribers []*Stream[T]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	received atomic.Int64
	handled  atomic.Int64
}

// NewRouter creates a router over input.
func NewRouter[T any](cfg RouterConfig, input <-chan T, logger *slog.Logger) Router[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SubscriberBufferSize <= 0 {
		cfg.SubscriberBufferSize = DefaultRouterConfig().SubscriberBufferSize
	}
	return &router[T]{
		cfg:    cfg,
		logger: logger,
		input:  input,
	}
}

func (r *router[T]) Handle(name string, h Handler[T]) {
	r.handlers = append(r.handlers, namedHandler[T]{name: name, fn: h})
}

func (r *router[T]) Subscribe() *Stream[T] {
	s := NewStream[T](r.cfg.SubscriberBufferSize)
	r.subscribers = append(r.subscribers, s)
	return s
}

func (r *router[T]) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started",
		"handlers", len(r.handlers),
		"subscribers", len(r.subscribers),
	)
	return nil
}

func (r *router[T]) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}

	for _, s := range r.subscribers {
		s.Close()
	}
	return nil
}

func (r *router[T]) Stats() RouterStats {
	stats := RouterStats{
		Received: r.received.Load(),
		Handled:  r.handled.Load(),
	}
	for _, s := range r.subscribers {
		stats.Subscribers = append(stats.Subscribers, s.Stats())
	}
	return stats
}

func (r *router[T]) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case item, ok := <-r.input:
			if !ok {
				r.logger.Info("router input closed")
				for _, s := range r.subscribers {
					s.Close()
				}
				return
			}
			r.route(item)
		}
	}
}

func (r *router[T]) route(item T) {
	r.received.Add(1)

	for _, h := range r.handlers {
		r.invoke(h, item)
	}
	for _, s := range r.subscribers {
		s.Send(item)
	}
}

// invoke runs one handler, containing a panic so one bad handler cannot
// stop delivery to the others.
func (r *router[T]) invoke(h namedHandler[T], item T) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("event handler panicked", "handler", h.name, "panic", p)
		}
	}()
	h.fn(item)
	r.handled.Add(1)
}
