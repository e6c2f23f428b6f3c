// Package cache folds the decoded gateway event sequence into an in-memory
// view of guilds, channels, messages and the other entities a bot observes.
//
// A single goroutine calls Apply (usually through Run) in stream order.
// Readers use the accessor methods, which return copies and may be called
// concurrently with Apply.
package cache
