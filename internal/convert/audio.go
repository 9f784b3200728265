package convert

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zsiec/framescope/internal/media"
)

// SampleConverter converts audio blocks to one target format. Zero
// Channels or SampleRate in the target keep the source value.
//
// Each block is resampled on its own; no filter state carries over between
// blocks.
type SampleConverter struct {
	dst media.AudioFormat
	buf []float32
}

// NewSampleConverter returns a converter to dst.
func NewSampleConverter(dst media.AudioFormat) (*SampleConverter, error) {
	if dst.Sample == media.SampleFormatNone || dst.Channels < 0 || dst.SampleRate < 0 {
		return nil, fmt.Errorf("%w: unusable target %s", ErrConversion, dst)
	}
	return &SampleConverter{dst: dst}, nil
}

// AudioBlock converts src to dst with a one-off converter.
func AudioBlock(dst media.AudioFormat, src *media.AudioBlock) (*media.AudioBlock, error) {
	c, err := NewSampleConverter(dst)
	if err != nil {
		return nil, err
	}
	return c.Convert(src)
}

// Convert returns a new block in the target format.
func (c *SampleConverter) Convert(src *media.AudioBlock) (*media.AudioBlock, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil audio block", ErrConversion)
	}
	if src.IsCoded() {
		return nil, fmt.Errorf("%w: coded audio block", ErrConversion)
	}
	sf := src.Format
	if sf.Channels <= 0 || sf.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid source format %s", ErrConversion, sf)
	}
	if src.Samples < 0 || len(src.Data) < src.Samples*sf.FrameBytes() {
		return nil, fmt.Errorf("%w: %d samples do not fit %d bytes", ErrConversion, src.Samples, len(src.Data))
	}

	dst := c.dst
	if dst.Channels == 0 {
		dst.Channels = sf.Channels
	}
	if dst.SampleRate == 0 {
		dst.SampleRate = sf.SampleRate
	}

	if dst == sf {
		out := media.NewAudioBlock(dst, src.Samples)
		copy(out.Data, src.Data)
		out.Timing = src.Timing
		return out, nil
	}

	in := c.decode(src)
	in = remix(in, src.Samples, sf.Channels, dst.Channels)
	in, frames := resample(in, src.Samples, dst.Channels, sf.SampleRate, dst.SampleRate)

	out := media.NewAudioBlock(dst, frames)
	out.Timing = src.Timing
	encode(out.Data, in, dst.Sample)
	return out, nil
}

func (c *SampleConverter) decode(b *media.AudioBlock) []float32 {
	n := b.Samples * b.Format.Channels
	if cap(c.buf) < n {
		c.buf = make([]float32, n)
	}
	out := c.buf[:n]
	d := b.Data
	switch b.Format.Sample {
	case media.SampleFormatU8:
		for i := range out {
			out[i] = (float32(d[i]) - 128) / 128
		}
	case media.SampleFormatS16:
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(d[2*i:]))) / 32768
		}
	case media.SampleFormatS32:
		for i := range out {
			out[i] = float32(float64(int32(binary.LittleEndian.Uint32(d[4*i:]))) / 2147483648)
		}
	case media.SampleFormatF32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(d[4*i:]))
		}
	}
	return out
}

// remix maps src channels onto dst channels: down-mixing averages the
// source channels folded onto each output, up-mixing repeats them.
func remix(in []float32, frames, src, dst int) []float32 {
	if src == dst {
		return in
	}
	out := make([]float32, frames*dst)
	for f := range frames {
		frame := in[f*src : (f+1)*src]
		o := out[f*dst : (f+1)*dst]
		if dst < src {
			for i, v := range frame {
				o[i%dst] += v
			}
			for j := range o {
				o[j] /= float32((src - j + dst - 1) / dst)
			}
			continue
		}
		for j := range o {
			o[j] = frame[j%src]
		}
	}
	return out
}

// resample converts the sample rate by linear interpolation.
func resample(in []float32, frames, channels, from, to int) ([]float32, int) {
	if from == to || frames == 0 {
		return in, frames
	}
	outFrames := int(int64(frames) * int64(to) / int64(from))
	out := make([]float32, outFrames*channels)
	step := float64(from) / float64(to)
	for j := range outFrames {
		pos := float64(j) * step
		i0 := int(pos)
		i1 := min(i0+1, frames-1)
		frac := float32(pos - float64(i0))
		for ch := range channels {
			a := in[i0*channels+ch]
			b := in[i1*channels+ch]
			out[j*channels+ch] = a + (b-a)*frac
		}
	}
	return out, outFrames
}

func encode(dst []byte, in []float32, sf media.SampleFormat) {
	for i, v := range in {
		v = max(-1, min(1, v))
		switch sf {
		case media.SampleFormatU8:
			dst[i] = byte(math.Round(float64(v)*127) + 128)
		case media.SampleFormatS16:
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(int16(math.Round(float64(v)*32767))))
		case media.SampleFormatS32:
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(int32(math.Round(float64(v)*2147483647))))
		case media.SampleFormatF32:
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	}
}
