// Package writer persists cache snapshots to PostgreSQL.
//
// SnapshotWriter serializes the cache on a fixed interval and upserts the
// result into the cache_snapshots table, one row per key. A final snapshot
// is written on Stop. LoadSnapshot reads a row back so a restarted process
// can warm its cache before the first READY.
package writer
