// Package protocol implements the gateway wire format.
//
// Inbound frames are JSON envelopes {op, d, s, t}. Decode maps (op, t) to exactly
// one Payload type; an unknown dispatch name is reported as an
// *UnhandledDispatchError rather than dropped silently.
//
// Outbound frames are produced by Encode, which only accepts the opcodes a client
// is allowed to send.
package protocol
