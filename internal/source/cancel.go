package source

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// errNotSeekable is returned by Cancelable.Seek when the wrapped source
// cannot seek.
var errNotSeekable = errors.New("source: not seekable")

// Cancelable wraps a source with an externally controlled liveness flag.
// Halting does not interrupt a read already in flight; the container sees
// the flag before its next packet read.
type Cancelable struct {
	src    ByteSource
	halted atomic.Bool
}

// WithCancel wraps src.
func WithCancel(src ByteSource) *Cancelable {
	return &Cancelable{src: src}
}

// Halt flips the liveness flag. It is safe to call from any goroutine.
func (c *Cancelable) Halt() { c.halted.Store(true) }

// WatchContext halts the source once ctx is done. The returned function
// stops watching.
func (c *Cancelable) WatchContext(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Halt()
		case <-done:
		}
	}()
	var once atomic.Bool
	return func() {
		if !once.Swap(true) {
			close(done)
		}
	}
}

func (c *Cancelable) Read(p []byte) (int, error) { return c.src.Read(p) }

// OKToRead reports false once halted or once the wrapped source stops.
func (c *Cancelable) OKToRead() bool {
	return !c.halted.Load() && c.src.OKToRead()
}

// Seekable reports whether the wrapped source can seek.
func (c *Cancelable) Seekable() bool { return Caps(c.src).Seekable }

func (c *Cancelable) Seek(offset int64, whence int) (int64, error) {
	if s, ok := c.src.(io.Seeker); ok && c.Seekable() {
		return s.Seek(offset, whence)
	}
	return 0, errNotSeekable
}

// Size delegates to the wrapped source, or returns -1 when it is unsized.
func (c *Cancelable) Size() int64 {
	if s, ok := c.src.(Sizer); ok {
		return s.Size()
	}
	return -1
}

// Close halts the source and closes the wrapped source when it is an
// io.Closer.
func (c *Cancelable) Close() error {
	c.Halt()
	if cl, ok := c.src.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
