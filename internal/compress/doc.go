// Package compress implements the gateway's transport compression.
//
// Both zlib-stream and zstd-stream keep a single compression context for the
// whole socket lifetime, so a Decompressor must see every frame of one socket
// in order and must be discarded when the socket is replaced.
package compress
