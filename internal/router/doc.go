// Package router moves gateway events between goroutines without ever
// blocking the producer.
//
// GrowableBuffer is an unbounded FIFO. Stream wraps one behind a channel so
// consumers can range over it. Merge fans several streams into one while
// keeping the per-stream order, and Router hands every event of a stream to
// a fixed list of handlers and subscriber streams.
package router
