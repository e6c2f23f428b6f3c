// Package model defines the gateway entities shared by the protocol codec and the cache.
//
// Only the fields the cache reads or patches are modelled; everything else is
// dropped on decode.
//
// Conventions:
//   - IDs: Snowflake (decimal string on the wire)
//   - Timestamps: ISO 8601 strings as sent by the gateway
//   - Bit fields: BitField / StringBitField keep unknown bits on re-encode
package model
