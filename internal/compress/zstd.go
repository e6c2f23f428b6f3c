package compress

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const zstdChunk = 32 << 10

type zstdResult struct {
	data []byte
	err  error
	idle bool
}

// zstdStream feeds socket frames into one long-lived zstd stream decoder.
// The decoder runs on a pump goroutine; Decompress hands it a frame and
// collects output until the decoder asks for more input.
type zstdStream struct {
	opts Options

	frames  chan []byte
	results chan zstdResult
	done    chan struct{}
	exited  chan struct{}

	closeOnce sync.Once
	err       error
}

func newZstdStream(opts Options) (*zstdStream, error) {
	z := &zstdStream{
		opts:    opts,
		frames:  make(chan []byte, 1),
		results: make(chan zstdResult),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go z.pump()
	return z, nil
}

func (z *zstdStream) pump() {
	defer close(z.exited)

	in := &frameFeed{frames: z.frames, results: z.results, done: z.done}
	dec, err := zstd.NewReader(in, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
	if err != nil {
		z.emit(zstdResult{err: fmt.Errorf("%w: %v", ErrCorrupt, err)})
		return
	}
	defer dec.Close()

	buf := make([]byte, zstdChunk)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			if !z.emit(zstdResult{data: append([]byte(nil), buf[:n]...)}) {
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			z.emit(zstdResult{err: fmt.Errorf("%w: %v", ErrCorrupt, err)})
			return
		}
	}
}

func (z *zstdStream) emit(r zstdResult) bool {
	select {
	case z.results <- r:
		return true
	case <-z.done:
		return false
	}
}

func (z *zstdStream) Decompress(frame []byte) ([]byte, error) {
	if z.err != nil {
		return nil, z.err
	}

	select {
	case z.frames <- append([]byte(nil), frame...):
	case <-z.done:
		return nil, ErrClosed
	case <-z.exited:
		return nil, z.fail(ErrClosed)
	}

	out := newOutputBuffer(len(frame), zstdMultiplier, z.opts.InitialCapacity)
	for {
		select {
		case r := <-z.results:
			switch {
			case r.err != nil:
				return nil, z.fail(r.err)
			case r.idle:
				if len(out.bytes()) == 0 {
					return nil, ErrIncompleteFrame
				}
				return out.bytes(), nil
			default:
				out.write(r.data)
			}
		case <-z.done:
			return nil, ErrClosed
		}
	}
}

func (z *zstdStream) fail(err error) error {
	if z.err == nil {
		z.err = err
	}
	return z.err
}

func (z *zstdStream) Close() error {
	z.closeOnce.Do(func() {
		close(z.done)
		<-z.exited
	})
	return nil
}

// frameFeed is the decoder's input. It reports idle once a delivered frame
// has been consumed and the decoder asks for more.
type frameFeed struct {
	frames  <-chan []byte
	results chan<- zstdResult
	done    <-chan struct{}

	cur     []byte
	pending bool
}

func (f *frameFeed) Read(p []byte) (int, error) {
	for len(f.cur) == 0 {
		if f.pending {
			f.pending = false
			select {
			case f.results <- zstdResult{idle: true}:
			case <-f.done:
				return 0, io.EOF
			}
		}
		select {
		case frame := <-f.frames:
			f.cur = frame
			f.pending = true
		case <-f.done:
			return 0, io.EOF
		}
	}
	n := copy(p, f.cur)
	f.cur = f.cur[n:]
	return n, nil
}
