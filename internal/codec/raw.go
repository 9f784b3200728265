package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zsiec/framescope/internal/demux"
	"github.com/zsiec/framescope/internal/media"
)

// pcmBlockFrames caps the sample frames per PCM audio block.
const pcmBlockFrames = 1024

// rawVideo unpacks tightly packed planar or packed pictures, one per
// frame-sized slice of the packet.
type rawVideo struct {
	format media.ImageFormat
	size   int
}

func newRawVideo(s demux.Stream) (Decoder, error) {
	if s.Image.Pixel == media.PixelFormatNone || s.Image.Width <= 0 || s.Image.Height <= 0 {
		return nil, fmt.Errorf("rawvideo: unusable format %s", s.Image)
	}
	return &rawVideo{format: s.Image, size: s.Image.FrameSize()}, nil
}

func (d *rawVideo) Decode(data []byte, pts int64) (int, media.Unit, error) {
	if len(data) < d.size {
		return 0, nil, fmt.Errorf("rawvideo: short frame: %d of %d bytes", len(data), d.size)
	}
	pic := media.NewPicture(d.format)
	off := 0
	for _, pl := range pic.Planes {
		off += copy(pl, data[off:off+len(pl)])
	}
	pic.Keyframe = true
	pic.SourceTimestamp = pts
	return d.size, pic, nil
}

// blockClock timestamps the blocks cut from one packet: the first block
// takes the packet PTS, later ones are advanced by the samples before
// them. A packet is recognised as new by a change of PTS, so packets
// without their own PTS keep advancing from the previous one.
type blockClock struct {
	timeBase media.Rational
	last     int64
	started  bool
	done     int64
}

func (c *blockClock) next(pts int64, samples, rate int) int64 {
	if !c.started || pts != c.last {
		c.last, c.started, c.done = pts, true, 0
	}
	ts := pts
	if div := int64(rate) * c.timeBase.Num; div > 0 {
		ts += c.done * c.timeBase.Den / div
	}
	c.done += int64(samples)
	return ts
}

// pcm converts interleaved PCM to native little-endian blocks.
type pcm struct {
	format    media.AudioFormat
	swap      bool
	frameSize int
	clock     blockClock
}

func newPCM(s demux.Stream) (Decoder, error) {
	f := media.AudioFormat{Channels: s.Audio.Channels, SampleRate: s.Audio.SampleRate}
	swap := false
	switch s.Codec {
	case "pcm_u8":
		f.Sample = media.SampleFormatU8
	case "pcm_s16le":
		f.Sample = media.SampleFormatS16
	case "pcm_s16be":
		f.Sample = media.SampleFormatS16
		swap = true
	case "pcm_s32le":
		f.Sample = media.SampleFormatS32
	case "pcm_f32le":
		f.Sample = media.SampleFormatF32
	default:
		return nil, fmt.Errorf("pcm: unknown codec %q", s.Codec)
	}
	if f.Channels <= 0 || f.SampleRate <= 0 {
		return nil, errors.New("pcm: missing channel count or sample rate")
	}
	return &pcm{
		format:    f,
		swap:      swap,
		frameSize: f.FrameBytes(),
		clock:     blockClock{timeBase: s.TimeBase},
	}, nil
}

func (d *pcm) Decode(data []byte, pts int64) (int, media.Unit, error) {
	frames := min(len(data)/d.frameSize, pcmBlockFrames)
	if frames == 0 {
		// A trailing partial sample frame is dropped.
		return len(data), nil, nil
	}
	b := media.NewAudioBlock(d.format, frames)
	n := copy(b.Data, data[:frames*d.frameSize])
	if d.swap {
		for i := 0; i+1 < n; i += 2 {
			binary.LittleEndian.PutUint16(b.Data[i:], binary.BigEndian.Uint16(b.Data[i:]))
		}
	}
	b.SourceTimestamp = d.clock.next(pts, frames, d.format.SampleRate)
	return n, b, nil
}
