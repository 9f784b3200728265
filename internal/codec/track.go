package codec

import (
	"log/slog"

	"github.com/zsiec/framescope/internal/demux"
	"github.com/zsiec/framescope/internal/media"
)

// TrackDecoder decodes the packets of one stream and places its units on a
// per-track millisecond timeline that starts at 0.
type TrackDecoder struct {
	log        *slog.Logger
	dec        Decoder
	stream     demux.Stream
	timeBase   float64
	timeOffset uint64
	emitted    int
	failed     bool
	cont       bool
}

// NewTrackDecoder creates the registered decoder for s. If log is nil,
// slog.Default() is used.
func NewTrackDecoder(s demux.Stream, log *slog.Logger) (*TrackDecoder, error) {
	dec, err := New(s)
	if err != nil {
		return nil, err
	}
	return NewTrackDecoderWith(s, dec, log), nil
}

// NewTrackDecoderWith binds an existing decoder to s.
func NewTrackDecoderWith(s demux.Stream, dec Decoder, log *slog.Logger) *TrackDecoder {
	if log == nil {
		log = slog.Default()
	}
	return &TrackDecoder{
		log:      log.With("component", "codec", "codec", s.Codec, "stream", s.Index),
		dec:      dec,
		stream:   s,
		timeBase: s.TimeBase.Float64(),
		cont:     true,
	}
}

// Stream returns the stream being decoded.
func (t *TrackDecoder) Stream() demux.Stream { return t.stream }

// Active reports whether the track still wants units.
func (t *TrackDecoder) Active() bool { return t.cont }

// Continue records the consumer's answer for the last unit. A false answer
// stops the track for good.
func (t *TrackDecoder) Continue(ok bool) { t.cont = t.cont && ok }

// Stop stops the track.
func (t *TrackDecoder) Stop() { t.cont = false }

// Emitted returns the number of units produced so far.
func (t *TrackDecoder) Emitted() int { return t.emitted }

// Failed reports whether the track has absorbed its one tolerated decode
// error.
func (t *TrackDecoder) Failed() bool { return t.failed }

// DecodeUnit decodes from p until one unit is produced or p is exhausted,
// in which case it returns a nil unit. Bytes the decoder reports as used
// are consumed; the rest of the packet is dropped when the decoder uses
// nothing or fails.
//
// The first decode error of the track is absorbed. Every later one stops
// the track and is returned as a *DecodeError.
func (t *TrackDecoder) DecodeUnit(p *demux.Packet) (media.Unit, error) {
	for !p.Empty() {
		n, u, err := t.dec.Decode(p.Data(), p.PTS())
		if err != nil || n <= 0 {
			p.Consume(p.Size())
		} else {
			p.Consume(n)
		}
		if err != nil {
			if !t.failed {
				t.failed = true
				t.log.Warn("decode error absorbed", "error", err)
				continue
			}
			t.cont = false
			return nil, &DecodeError{Stream: t.stream.Index, Codec: t.stream.Codec, Err: err}
		}
		if u != nil {
			t.stamp(u)
			return u, nil
		}
	}
	return nil, nil
}

// stamp applies the track time base and offset. The first unit fixes the
// offset so that its own timestamp is 0.
func (t *TrackDecoder) stamp(u media.Unit) {
	tm := u.Time()
	tm.TimeBase = t.timeBase
	if t.emitted == 0 {
		t.timeOffset = tm.RawMillis()
	}
	tm.TimeOffset = t.timeOffset
	t.emitted++
}
