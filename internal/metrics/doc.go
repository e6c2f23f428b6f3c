// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Gateway connection state, reconnects and heartbeat latency per shard
//   - Received dispatch events and frame decode errors
//   - Outbound control frames
//   - Cache apply throughput, collection sizes and evictions
//   - Snapshot persistence latency and failures
//
// Every method is safe on a nil *Metrics, so components can run without a
// registry in tests.
package metrics
