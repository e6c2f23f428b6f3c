package compress

import (
	"errors"
	"fmt"
)

// Mode selects the transport compression negotiated in the gateway URL.
type Mode string

const (
	ModeNone       Mode = ""
	ModeZlibStream Mode = "zlib-stream"
	ModeZstdStream Mode = "zstd-stream"
)

// ParseMode accepts the names used in configuration files.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none":
		return ModeNone, nil
	case "zlib", "zlib-stream":
		return ModeZlibStream, nil
	case "zstd", "zstd-stream":
		return ModeZstdStream, nil
	}
	return ModeNone, fmt.Errorf("unknown compression mode %q", s)
}

var (
	// ErrIncompleteFrame means the frame was buffered and more input is needed
	// before a message can be produced.
	ErrIncompleteFrame = errors.New("incomplete compressed frame")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("decompressor closed")

	// ErrCorrupt wraps errors from a damaged compression stream.
	ErrCorrupt = errors.New("corrupt compressed stream")
)

// Decompressor turns socket frames into complete decompressed messages.
type Decompressor interface {
	// Decompress consumes one binary frame and returns one complete message.
	Decompress(frame []byte) ([]byte, error)
	Close() error
}

// Options tunes a Decompressor.
type Options struct {
	// InitialCapacity is the starting output buffer size. Zero uses a multiple
	// of the input length.
	InitialCapacity int
}

const (
	zlibMultiplier = 10
	zstdMultiplier = 14
	minCapacity    = 64
)

// New returns a Decompressor for mode. ModeNone returns nil.
func New(mode Mode, opts Options) (Decompressor, error) {
	switch mode {
	case ModeNone:
		return nil, nil
	case ModeZlibStream:
		return newZlibStream(opts), nil
	case ModeZstdStream:
		return newZstdStream(opts)
	}
	return nil, fmt.Errorf("unknown compression mode %q", mode)
}

// outputBuffer is a growable write buffer. When full it doubles and writing
// continues at the current offset, so output is never truncated.
type outputBuffer struct {
	buf []byte
	n   int
}

func newOutputBuffer(inputLen, multiplier, initial int) *outputBuffer {
	size := initial
	if size <= 0 {
		size = inputLen * multiplier
	}
	if size < minCapacity && initial <= 0 {
		size = minCapacity
	}
	if size < 1 {
		size = 1
	}
	return &outputBuffer{buf: make([]byte, size)}
}

// free returns the writable tail, growing the buffer first if it is full.
func (o *outputBuffer) free() []byte {
	if o.n == len(o.buf) {
		grown := make([]byte, len(o.buf)*2)
		copy(grown, o.buf[:o.n])
		o.buf = grown
	}
	return o.buf[o.n:]
}

func (o *outputBuffer) advance(n int) { o.n += n }

func (o *outputBuffer) write(p []byte) {
	for len(p) > 0 {
		n := copy(o.free(), p)
		o.advance(n)
		p = p[n:]
	}
}

func (o *outputBuffer) bytes() []byte { return o.buf[:o.n] }
