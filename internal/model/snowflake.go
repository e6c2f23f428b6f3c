package model

import (
	"strconv"
	"time"
)

// Epoch is the first millisecond of 2015, the base of every snowflake timestamp.
const Epoch = 1420070400000

// Snowflake is a 64-bit entity id, transported as a decimal string.
type Snowflake string

// Uint64 parses the id. Malformed ids parse as 0.
func (s Snowflake) Uint64() uint64 {
	v, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Time returns the creation time encoded in the id.
func (s Snowflake) Time() time.Time {
	return time.UnixMilli(int64(s.Uint64()>>22) + Epoch)
}

// IsValid reports whether s is a non-empty decimal id.
func (s Snowflake) IsValid() bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(string(s), 10, 64)
	return err == nil
}

// ShardFor returns the shard index that receives events for guild id s.
func ShardFor(s Snowflake, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	return int((s.Uint64() >> 22) % uint64(shardCount))
}
