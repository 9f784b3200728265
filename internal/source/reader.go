package source

import (
	"io"
	"sync/atomic"
)

// Reader adapts a sequential io.Reader into a ByteSource and counts the
// bytes read through it. It is never seekable, even when the wrapped reader
// is.
type Reader struct {
	r       io.Reader
	stats   *readCounter
	stopped atomic.Bool
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, stats: newReadCounter()}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.stats.record(n)
	return n, err
}

// OKToRead reports true until Close.
func (r *Reader) OKToRead() bool { return !r.stopped.Load() }

// Stats returns a snapshot of the read counters.
func (r *Reader) Stats() Stats { return r.stats.snapshot() }

// Close marks the source stopped and closes the wrapped reader when it is
// an io.Closer.
func (r *Reader) Close() error {
	if r.stopped.Swap(true) {
		return nil
	}
	if c, ok := r.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
