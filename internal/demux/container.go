package demux

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/zsiec/framescope/internal/media"
	"github.com/zsiec/framescope/internal/source"
)

var (
	// ErrOpenFailed is returned when a container cannot be opened or its
	// format is not recognized.
	ErrOpenFailed = errors.New("demux: open failed")
	// ErrNoSuchStream is returned when a container has no stream of the
	// requested kind.
	ErrNoSuchStream = errors.New("demux: no such stream")
)

// Container is an opened media container. Stream count and codec identity
// are fixed once it is open.
//
// A container opened by path owns its file. A container opened from a
// custom source only borrows it to poll liveness; the caller keeps
// ownership and must close the source after the container.
type Container struct {
	log      *slog.Logger
	name     string
	format   Format
	reader   Reader
	input    *Input
	src      source.ByteSource // borrowed; nil when opened by path
	owned    io.Closer
	streams  []Stream
	probeErr error
	closed   bool
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger. If log is nil, slog.Default() is used.
func WithLogger(log *slog.Logger) Option {
	return func(c *Container) {
		if log != nil {
			c.log = log
		}
	}
}

// Open opens the media file at path.
func Open(path string, opts ...Option) (*Container, error) {
	f, err := source.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	c, err := open(f, filepath.Base(path), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.owned = f
	return c, nil
}

// OpenSource opens a container reading from src. nameHint, typically a
// file name, is reported by Name and its extension helps format detection.
func OpenSource(src source.ByteSource, nameHint string, opts ...Option) (*Container, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrOpenFailed)
	}
	c, err := open(src, nameHint, opts)
	if err != nil {
		return nil, err
	}
	c.src = src
	return c, nil
}

func open(src source.ByteSource, name string, opts []Option) (*Container, error) {
	c := &Container{log: slog.Default(), name: name}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "demux", "name", name)

	in, err := newInput(src, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, name, err)
	}
	f, err := detect(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, name, err)
	}
	r, err := f.Open(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s: %w", ErrOpenFailed, name, f.Name(), err)
	}
	c.format, c.reader, c.input = f, r, in

	if p, ok := r.(StreamProber); ok {
		if err := p.ProbeStreams(); err != nil {
			c.probeErr = err
			c.log.Warn("stream probe failed", "format", f.Name(), "error", err)
		}
	}
	c.streams = append([]Stream(nil), r.Streams()...)

	c.log.Info("opened", "format", f.Name(), "streams", len(c.streams))
	return c, nil
}

// Name returns the file name or name hint.
func (c *Container) Name() string { return c.name }

// FormatName returns the detected container format.
func (c *Container) FormatName() string { return c.format.Name() }

// Streams returns a copy of the stream list.
func (c *Container) Streams() []Stream {
	return append([]Stream(nil), c.streams...)
}

// ProbeErr returns the non-fatal stream probing error, if any.
func (c *Container) ProbeErr() error { return c.probeErr }

// FindStream returns the first stream of kind in container order. Later
// streams of the same kind are ignored.
func (c *Container) FindStream(kind media.Kind) (Stream, error) {
	for _, s := range c.streams {
		if s.Kind == kind {
			return s, nil
		}
	}
	if c.probeErr != nil {
		return Stream{}, fmt.Errorf("%w: %s (probe: %w)", ErrNoSuchStream, kind, c.probeErr)
	}
	return Stream{}, fmt.Errorf("%w: %s", ErrNoSuchStream, kind)
}

// DurationMicroseconds returns the container duration, or 0 when unknown.
func (c *Container) DurationMicroseconds() int64 {
	if d, ok := c.reader.(DurationReporter); ok {
		return d.DurationMicroseconds()
	}
	return 0
}

// BitRate returns the overall bit rate in bits per second, or 0 when
// unknown.
func (c *Container) BitRate() int64 {
	if d, ok := c.reader.(DurationReporter); ok {
		if br := d.BitRate(); br > 0 {
			return br
		}
	}
	if dur := c.DurationMicroseconds(); dur > 0 && c.input.Size > 0 {
		return c.input.Size * 8 * 1000000 / dur
	}
	return 0
}

// IsHalted reports whether a custom source has stopped accepting reads.
// It is always false for containers opened by path.
func (c *Container) IsHalted() bool {
	return c.src != nil && !c.src.OKToRead()
}

func (c *Container) readPacket(p *RawPacket) error {
	if c.closed {
		return io.ErrClosedPipe
	}
	return c.reader.ReadPacket(p)
}

// Close releases the format reader and, for containers opened by path, the
// file. It is safe to call more than once.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.reader.Close()
	if c.owned != nil {
		err = errors.Join(err, c.owned.Close())
	}
	return err
}
