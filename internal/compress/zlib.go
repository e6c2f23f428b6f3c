package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

const windowSize = 32 << 10

var syncFlushSuffix = []byte{0x00, 0x00, 0xff, 0xff}

// finalEmptyBlock is an empty stored block with BFINAL set. Appended after a
// sync flush it ends the deflate stream, so a complete message reads to io.EOF.
var finalEmptyBlock = []byte{0x01, 0x00, 0x00, 0xff, 0xff}

// zlibStream inflates a zlib-stream socket. Every message ends with a
// sync flush, so each one is decoded on its own with the previous 32KiB of
// output as the preset dictionary.
type zlibStream struct {
	opts Options

	pending    []byte
	seenHeader bool
	window     []byte
	inflater   io.ReadCloser
	reader     *bytes.Reader
	tail       *bytes.Reader
	closed     bool
}

func newZlibStream(opts Options) *zlibStream {
	return &zlibStream{opts: opts, reader: bytes.NewReader(nil), tail: bytes.NewReader(nil)}
}

func (z *zlibStream) Decompress(frame []byte) ([]byte, error) {
	if z.closed {
		return nil, ErrClosed
	}

	z.pending = append(z.pending, frame...)
	if !bytes.HasSuffix(z.pending, syncFlushSuffix) {
		return nil, ErrIncompleteFrame
	}

	msg := z.pending
	z.pending = nil

	if !z.seenHeader {
		if len(msg) < 2 {
			return nil, fmt.Errorf("%w: short zlib header", ErrCorrupt)
		}
		if err := checkZlibHeader(msg[0], msg[1]); err != nil {
			return nil, err
		}
		msg = msg[2:]
		z.seenHeader = true
	}

	z.reader.Reset(msg)
	z.tail.Reset(finalEmptyBlock)
	src := io.MultiReader(z.reader, z.tail)
	if z.inflater == nil {
		z.inflater = flate.NewReaderDict(src, z.window)
	} else if err := z.inflater.(flate.Resetter).Reset(src, z.window); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	out := newOutputBuffer(len(msg), zlibMultiplier, z.opts.InitialCapacity)
	for {
		n, err := z.inflater.Read(out.free())
		out.advance(n)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		// Running out of input before the final block means the message
		// was cut short.
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	result := out.bytes()
	z.remember(result)
	return result, nil
}

// remember keeps the last windowSize bytes of output for back-references.
func (z *zlibStream) remember(p []byte) {
	if len(p) >= windowSize {
		z.window = append(z.window[:0], p[len(p)-windowSize:]...)
		return
	}
	keep := windowSize - len(p)
	if len(z.window) > keep {
		z.window = append(z.window[:0], z.window[len(z.window)-keep:]...)
	}
	z.window = append(z.window, p...)
}

func (z *zlibStream) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true
	z.pending = nil
	z.window = nil
	if z.inflater != nil {
		return z.inflater.Close()
	}
	return nil
}

func checkZlibHeader(cmf, flg byte) error {
	if cmf&0x0f != 8 || cmf>>4 > 7 {
		return fmt.Errorf("%w: unsupported zlib method 0x%02x", ErrCorrupt, cmf)
	}
	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return fmt.Errorf("%w: bad zlib header checksum", ErrCorrupt)
	}
	if flg&0x20 != 0 {
		return fmt.Errorf("%w: preset dictionary not supported", ErrCorrupt)
	}
	return nil
}
