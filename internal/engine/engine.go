// Package engine drives a demuxed container through its per-track decoders
// and hands the decoded pictures and audio blocks to a Handler.
//
// An Engine picks the first video and the first audio stream of its
// container. Each track's units are placed on a millisecond timeline that
// starts at 0. Decoding is pull based: every Decode or Step call reads at
// most as many packets as it needs, so a caller can interleave decoding
// with its own scheduling. An Engine is not safe for concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zsiec/framescope/internal/codec"
	"github.com/zsiec/framescope/internal/demux"
	"github.com/zsiec/framescope/internal/media"
	"github.com/zsiec/framescope/internal/source"
)

// ErrClosed is returned by Decode and Step after Close.
var ErrClosed = errors.New("engine: closed")

// Handler receives decoded units. index is the 1-based position of the
// unit within its track. Returning false stops that track; the other track
// keeps decoding.
type Handler interface {
	OnPicture(pic *media.Picture, index int) bool
	OnAudioBlock(b *media.AudioBlock, index int) bool
}

// HandlerFuncs adapts plain functions to a Handler. A nil function declines
// its track, stopping it at the first unit.
type HandlerFuncs struct {
	Picture func(pic *media.Picture, index int) bool
	Audio   func(b *media.AudioBlock, index int) bool
}

// OnPicture calls h.Picture, declining when it is nil.
func (h HandlerFuncs) OnPicture(pic *media.Picture, index int) bool {
	return h.Picture != nil && h.Picture(pic, index)
}

// OnAudioBlock calls h.Audio, declining when it is nil.
func (h HandlerFuncs) OnAudioBlock(b *media.AudioBlock, index int) bool {
	return h.Audio != nil && h.Audio(b, index)
}

// Engine owns a container and the decoders of its first video and audio
// streams.
type Engine struct {
	log       *slog.Logger
	base      *slog.Logger // caller's logger, without the engine component
	stats     StatsRecorder
	container *demux.Container
	packet    *demux.Packet
	video     *codec.TrackDecoder
	audio     *codec.TrackDecoder
	halted    bool
	ended     bool
	closed    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. If log is nil, slog.Default() is used.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithStats records decode events to r.
func WithStats(r StatsRecorder) Option {
	return func(e *Engine) { e.stats = r }
}

func newEngine(opts []Option) *Engine {
	e := &Engine{log: slog.Default(), packet: demux.NewPacket()}
	for _, o := range opts {
		o(e)
	}
	e.base = e.log
	e.log = e.log.With("component", "engine")
	return e
}

// Open opens the media file at path and builds its tracks.
func Open(path string, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	c, err := demux.Open(path, demux.WithLogger(e.base))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if err := e.attach(c); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenSource opens a container over src. The engine borrows src to poll
// its liveness; the caller closes src after closing the engine.
func OpenSource(src source.ByteSource, nameHint string, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	c, err := demux.OpenSource(src, nameHint, demux.WithLogger(e.base))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if err := e.attach(c); err != nil {
		return nil, err
	}
	return e, nil
}

// New builds an engine over an opened container and takes ownership of it.
// The container is closed if construction fails.
func New(c *demux.Container, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	if err := e.attach(c); err != nil {
		return nil, err
	}
	return e, nil
}

// attach builds one track per kind. A missing stream or decoder only drops
// that track.
func (e *Engine) attach(c *demux.Container) error {
	e.container = c
	e.log = e.log.With("container", c.Name(), "format", c.FormatName())
	trackLog := e.base.With("container", c.Name())

	var errs []error
	build := func(kind media.Kind) *codec.TrackDecoder {
		s, err := c.FindStream(kind)
		if err != nil {
			e.log.Warn("track unavailable", "kind", kind, "error", err)
			errs = append(errs, err)
			return nil
		}
		t, err := codec.NewTrackDecoder(s, trackLog)
		if err != nil {
			e.log.Warn("track unavailable", "kind", kind, "codec", s.Codec, "error", err)
			errs = append(errs, err)
			return nil
		}
		return t
	}
	e.video = build(media.KindVideo)
	e.audio = build(media.KindAudio)

	if e.video == nil && e.audio == nil {
		cerr := c.Close()
		return fmt.Errorf("engine: %s: no decodable track: %w", c.Name(), errors.Join(append(errs, cerr)...))
	}
	e.log.Info("engine opened",
		"video", e.CodecName(media.KindVideo),
		"audio", e.CodecName(media.KindAudio),
		"duration_us", c.DurationMicroseconds())
	return nil
}

func (e *Engine) tracks() []*codec.TrackDecoder {
	ts := make([]*codec.TrackDecoder, 0, 2)
	for _, t := range []*codec.TrackDecoder{e.video, e.audio} {
		if t != nil {
			ts = append(ts, t)
		}
	}
	return ts
}

func (e *Engine) track(kind media.Kind) *codec.TrackDecoder {
	if kind == media.KindVideo {
		return e.video
	}
	return e.audio
}

// Stopped reports whether every track has stopped, either because its
// handler declined further units or because it failed.
func (e *Engine) Stopped() bool {
	for _, t := range e.tracks() {
		if t.Active() {
			return false
		}
	}
	return true
}

// Halted reports whether decoding ended because the source halted.
func (e *Engine) Halted() bool { return e.halted }

// Ended reports whether the end of input was reached.
func (e *Engine) Ended() bool { return e.ended }

// Decode reads and decodes packets, delivering units to h. In single mode
// it returns after one packet has been decoded; otherwise it continues
// until end of input, halt or every track has stopped.
//
// Decode returns false only when it could not read a packet, at end of
// input or because the source halted. When no track is active it returns
// true without reading. A *codec.DecodeError returned alongside true has
// stopped its own track only.
func (e *Engine) Decode(h Handler, single bool) (bool, error) {
	if e.closed {
		return false, ErrClosed
	}
	for {
		if e.Stopped() {
			return true, nil
		}
		if ok, err := e.fill(); !ok {
			return false, err
		}
		err := e.dispatch(h)
		e.packet.Consume(e.packet.Size())
		if err != nil || single {
			return true, err
		}
	}
}

// fill reads until the packet holds data.
func (e *Engine) fill() (bool, error) {
	for e.packet.Empty() {
		ok, halted := e.packet.Read(e.container)
		if ok {
			if e.stats != nil {
				e.stats.RecordPacket(e.packet.StreamIndex(), e.packet.Size())
			}
			continue
		}
		if halted {
			if !e.halted {
				e.log.Info("source halted")
				if e.stats != nil {
					e.stats.RecordHalt()
				}
			}
			e.halted = true
			return false, nil
		}
		e.ended = true
		if err := e.packet.Err(); err != nil {
			return false, fmt.Errorf("engine: read: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// dispatch decodes the current packet on the track it belongs to.
// Packets of unselected streams are dropped.
func (e *Engine) dispatch(h Handler) error {
	idx := e.packet.StreamIndex()
	for _, t := range e.tracks() {
		if t.Stream().Index != idx {
			continue
		}
		for t.Active() {
			u, err := t.DecodeUnit(e.packet)
			if err != nil {
				kind := t.Stream().Kind
				e.log.Error("track stopped", "kind", kind, "error", err)
				if e.stats != nil {
					e.stats.RecordDecodeError(kind)
				}
				return err
			}
			if u == nil {
				break
			}
			t.Continue(e.deliver(h, u, t.Emitted()))
		}
		return nil
	}
	return nil
}

func (e *Engine) deliver(h Handler, u media.Unit, index int) bool {
	switch u := u.(type) {
	case *media.Picture:
		if e.stats != nil {
			e.stats.RecordPicture(u)
		}
		return h.OnPicture(u, index)
	case *media.AudioBlock:
		if e.stats != nil {
			e.stats.RecordAudioBlock(u)
		}
		return h.OnAudioBlock(u, index)
	}
	return false
}

// Run decodes in batch mode until end of input, halt, every track stopping
// or ctx being done. Track failures do not end the run; they are returned
// joined once it finishes.
func (e *Engine) Run(ctx context.Context, h Handler) error {
	var failures []error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(failures, err)...)
		}
		ok, err := e.Decode(h, true)
		if err != nil {
			var de *codec.DecodeError
			if !errors.As(err, &de) {
				return errors.Join(append(failures, err)...)
			}
			failures = append(failures, err)
		}
		if !ok || e.Stopped() {
			return errors.Join(failures...)
		}
	}
}

// ContainerName returns the container format name, e.g. "mpegts".
func (e *Engine) ContainerName() string { return e.container.FormatName() }

// DurationMicroseconds returns the container duration, or 0 when unknown.
func (e *Engine) DurationMicroseconds() int64 { return e.container.DurationMicroseconds() }

// BitRate returns the container bit rate, or 0 when unknown.
func (e *Engine) BitRate() int64 { return e.container.BitRate() }

// HasTrack reports whether a track of kind was built.
func (e *Engine) HasTrack(kind media.Kind) bool { return e.track(kind) != nil }

// CodecName returns the codec of the kind's track, or "" without one.
func (e *Engine) CodecName(kind media.Kind) string {
	if t := e.track(kind); t != nil {
		return t.Stream().Codec
	}
	return ""
}

// Track returns the stream behind the kind's track.
func (e *Engine) Track(kind media.Kind) (demux.Stream, bool) {
	if t := e.track(kind); t != nil {
		return t.Stream(), true
	}
	return demux.Stream{}, false
}

// Streams lists every stream of the container, selected or not.
func (e *Engine) Streams() []demux.Stream { return e.container.Streams() }

// Close closes the container. It is safe to call more than once.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.container.Close()
}
