// Package source provides the byte sources a container reads from: local
// files, in-memory buffers, arbitrary readers, SRT caller connections and
// QUIC streams. Every source carries a liveness flag that the container polls
// before each packet read, so a consumer can stop ingestion from outside the
// decode loop.
package source

import (
	"io"
	"sync/atomic"
	"time"
)

// ByteSource is a readable byte stream with a liveness flag. Once OKToRead
// returns false the container stops issuing reads and reports itself halted.
type ByteSource interface {
	io.Reader
	OKToRead() bool
}

// Sizer is implemented by sources that know their total length.
type Sizer interface {
	Size() int64
}

// Capabilities summarises what a source supports.
type Capabilities struct {
	Readable bool
	Seekable bool
	Sized    bool
}

// Caps discovers the optional capabilities of src. A source that implements
// io.Seeker can veto seeking with a Seekable() bool method.
func Caps(src ByteSource) Capabilities {
	c := Capabilities{Readable: src != nil}
	if src == nil {
		return c
	}
	if _, ok := src.(io.Seeker); ok {
		c.Seekable = true
		if s, ok := src.(interface{ Seekable() bool }); ok {
			c.Seekable = s.Seekable()
		}
	}
	if s, ok := src.(Sizer); ok {
		c.Sized = s.Size() >= 0
	}
	return c
}

// Stats captures read-side metrics of a streaming source.
type Stats struct {
	BytesReceived int64  `json:"bytesReceived"`
	ReadCount     int64  `json:"readCount"`
	ConnectedAt   int64  `json:"connectedAt"`
	UptimeMs      int64  `json:"uptimeMs"`
	RemoteAddr    string `json:"remoteAddr,omitempty"`
}

// readCounter accumulates byte and read counts for streaming sources.
type readCounter struct {
	startedAt     time.Time
	bytesReceived atomic.Int64
	readCount     atomic.Int64
	remoteAddr    atomic.Value
}

func newReadCounter() *readCounter {
	return &readCounter{startedAt: time.Now()}
}

// record increments the byte and read counters after a successful read.
func (c *readCounter) record(n int) {
	if n <= 0 {
		return
	}
	c.bytesReceived.Add(int64(n))
	c.readCount.Add(1)
}

func (c *readCounter) setRemoteAddr(addr string) {
	c.remoteAddr.Store(addr)
}

func (c *readCounter) snapshot() Stats {
	addr, _ := c.remoteAddr.Load().(string)
	return Stats{
		BytesReceived: c.bytesReceived.Load(),
		ReadCount:     c.readCount.Load(),
		ConnectedAt:   c.startedAt.UnixMilli(),
		UptimeMs:      time.Since(c.startedAt).Milliseconds(),
		RemoteAddr:    addr,
	}
}
