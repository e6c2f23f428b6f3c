// Package shard runs a set of gateway connections that partition one bot's
// guilds by shard index.
//
// A Coordinator gates identifies so that at most max_concurrency shards
// start inside one spacing window: shards are grouped into buckets of
// index/max_concurrency, and bucket k waits until bucket k-1 opened its
// window Spacing ago. A Set owns one connection.Manager per shard, discovers
// the shard count lazily, and fans the per-shard event streams into one.
package shard
