package router

import "sync"

// Stream is an unbounded, ordered event stream. Send never blocks; a pump
// goroutine moves items from the buffer to the channel returned by C.
type Stream[T any] struct {
	buf  *GrowableBuffer[T]
	out  chan T
	once sync.Once
}

// NewStream creates a stream and starts its pump.
func NewStream[T any](initialCapacity int) *Stream[T] {
	s := &Stream[T]{
		buf: NewGrowableBuffer[T](initialCapacity),
		out: make(chan T),
	}
	go s.pump()
	return s
}

func (s *Stream[T]) pump() {
	defer close(s.out)
	for {
		item, ok := s.buf.Receive()
		if !ok {
			return
		}
		s.out <- item
	}
}

// Send enqueues an item. It returns false once the stream is closed.
func (s *Stream[T]) Send(item T) bool {
	return s.buf.Send(item)
}

// C returns the receive side. It is closed after Close once buffered items
// have been delivered.
func (s *Stream[T]) C() <-chan T {
	return s.out
}

// Close ends the stream. Safe to call more than once.
func (s *Stream[T]) Close() {
	s.once.Do(s.buf.Close)
}

// Closed reports whether Close was called.
func (s *Stream[T]) Closed() bool {
	return s.buf.Closed()
}

// Stats returns the backing buffer's statistics.
func (s *Stream[T]) Stats() BufferStats {
	return s.buf.Stats()
}

// Merge forwards every input into one stream. Items of one input keep their
// order; items of different inputs interleave. The result closes when every
// input channel has closed.
func Merge[T any](initialCapacity int, inputs ...<-chan T) *Stream[T] {
	merged := NewStream[T](initialCapacity)

	var wg sync.WaitGroup
	wg.Add(len(inputs))
	for _, in := range inputs {
		go func(in <-chan T) {
			defer wg.Done()
			for item := range in {
				merged.Send(item)
			}
		}(in)
	}
	go func() {
		wg.Wait()
		merged.Close()
	}()

	return merged
}
