// Package connection implements one logical gateway connection.
//
// A Manager owns the lifecycle of a single shard's connection:
//   - dials the gateway through a gorilla/websocket Client
//   - identifies or resumes the session after hello
//   - heartbeats and reconnects after three missed acknowledgements
//   - classifies close codes into retryable and terminal
//   - funnels every outbound control frame through a SendQueue
//   - fans decoded events out to subscriber streams
//
// Every socket gets a new epoch. Goroutines, timers and queued sends capture
// the epoch they were started under and do nothing once it has moved on.
package connection
