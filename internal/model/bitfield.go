package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Flag is a named bit position of a BitField.
type Flag interface {
	~uint
	IsKnown() bool
}

// BitField splits an integer into named flags and raw unknown bit positions.
// Encoding it again yields the union of both, so flags added to the protocol
// after this build survive a decode/encode cycle.
type BitField[F Flag] struct {
	Known   []F
	Unknown []uint
}

// ParseBitField splits v into known and unknown bits.
func ParseBitField[F Flag](v uint64) BitField[F] {
	var b BitField[F]
	for pos := uint(0); pos < 64; pos++ {
		if v&(1<<pos) == 0 {
			continue
		}
		if f := F(pos); f.IsKnown() {
			b.Known = append(b.Known, f)
		} else {
			b.Unknown = append(b.Unknown, pos)
		}
	}
	return b
}

// NewBitField builds a bit field from flags.
func NewBitField[F Flag](flags ...F) BitField[F] {
	var v uint64
	for _, f := range flags {
		v |= 1 << uint(f)
	}
	return ParseBitField[F](v)
}

// Uint64 re-encodes known and unknown bits.
func (b BitField[F]) Uint64() uint64 {
	var v uint64
	for _, f := range b.Known {
		v |= 1 << uint(f)
	}
	for _, pos := range b.Unknown {
		v |= 1 << pos
	}
	return v
}

// Has reports whether f is set.
func (b BitField[F]) Has(f F) bool {
	return b.Uint64()&(1<<uint(f)) != 0
}

// With returns a copy with flags added.
func (b BitField[F]) With(flags ...F) BitField[F] {
	v := b.Uint64()
	for _, f := range flags {
		v |= 1 << uint(f)
	}
	return ParseBitField[F](v)
}

// Without returns a copy with flags cleared.
func (b BitField[F]) Without(flags ...F) BitField[F] {
	v := b.Uint64()
	for _, f := range flags {
		v &^= 1 << uint(f)
	}
	return ParseBitField[F](v)
}

// IsEmpty reports whether no bit is set.
func (b BitField[F]) IsEmpty() bool {
	return len(b.Known) == 0 && len(b.Unknown) == 0
}

// MarshalJSON encodes the field as a JSON number.
func (b BitField[F]) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(b.Uint64(), 10)), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string.
func (b *BitField[F]) UnmarshalJSON(data []byte) error {
	v, err := parseBits(data)
	if err != nil {
		return err
	}
	*b = ParseBitField[F](v)
	return nil
}

// StringBitField is a BitField transported as a decimal string (permissions).
type StringBitField[F Flag] struct {
	BitField[F]
}

// MarshalJSON encodes the field as a JSON string.
func (b StringBitField[F]) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(b.Uint64(), 10))), nil
}

// UnmarshalJSON accepts a decimal string or a JSON number.
func (b *StringBitField[F]) UnmarshalJSON(data []byte) error {
	v, err := parseBits(data)
	if err != nil {
		return err
	}
	b.BitField = ParseBitField[F](v)
	return nil
}

func parseBits(data []byte) (uint64, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return 0, nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse bit field %q: %w", data, err)
	}
	return v, nil
}

func sortedFlags[F Flag](m map[F]string) []F {
	out := make([]F, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
