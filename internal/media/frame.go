// Package media defines the decoded unit types that flow out of the decode
// engine: pictures and audio blocks, their pixel and sample layouts, and the
// timing pipeline that turns raw stream ticks into a per-track millisecond
// timeline.
package media

// Kind identifies the media type of a stream or decoded unit.
type Kind int

// Supported media kinds.
const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Unit is implemented by *Picture and *AudioBlock.
type Unit interface {
	Kind() Kind
	Time() *Timing
}

// Caption is a CEA-608 (channels 1-4) or CEA-708 (services 7-12) caption
// text update carried by a video access unit.
type Caption struct {
	Channel int
	Text    string
}

// Picture is one decoded video frame. Raw pictures carry their pixels in
// Planes; pictures produced by bitstream-level decoders carry the coded
// access unit in Coded and have Format.Pixel == PixelFormatNone.
type Picture struct {
	Timing
	Format   ImageFormat
	Planes   [][]byte
	Strides  []int
	Keyframe bool
	Coded    []byte
	Captions []Caption
	// Timecode is the SMPTE timecode from a pic_timing SEI, or "".
	Timecode string
}

// NewPicture allocates a tightly packed picture for the given format.
func NewPicture(f ImageFormat) *Picture {
	p := &Picture{Timing: NewTiming(), Format: f}
	for i := 0; i < f.Pixel.Planes(); i++ {
		w, h := f.PlaneSize(i)
		stride := w * f.Pixel.PlaneBytesPerPixel()
		p.Planes = append(p.Planes, make([]byte, stride*h))
		p.Strides = append(p.Strides, stride)
	}
	return p
}

// Kind implements Unit.
func (p *Picture) Kind() Kind { return KindVideo }

// Time implements Unit.
func (p *Picture) Time() *Timing { return &p.Timing }

// IsCoded reports whether the picture carries compressed data only.
func (p *Picture) IsCoded() bool {
	return p.Format.Pixel == PixelFormatNone
}

// Size returns the payload size in bytes.
func (p *Picture) Size() int {
	if p.IsCoded() {
		return len(p.Coded)
	}
	n := 0
	for _, pl := range p.Planes {
		n += len(pl)
	}
	return n
}

// AudioBlock is one decoded block of interleaved audio samples. Blocks from
// bitstream-level decoders carry the coded frame in Coded and have
// Format.Sample == SampleFormatNone.
type AudioBlock struct {
	Timing
	Format  AudioFormat
	Data    []byte
	Samples int // per channel
	Coded   []byte
}

// NewAudioBlock allocates a block holding samples frames of format f.
func NewAudioBlock(f AudioFormat, samples int) *AudioBlock {
	return &AudioBlock{
		Timing:  NewTiming(),
		Format:  f,
		Data:    make([]byte, samples*f.FrameBytes()),
		Samples: samples,
	}
}

// Kind implements Unit.
func (b *AudioBlock) Kind() Kind { return KindAudio }

// Time implements Unit.
func (b *AudioBlock) Time() *Timing { return &b.Timing }

// IsCoded reports whether the block carries compressed data only.
func (b *AudioBlock) IsCoded() bool {
	return b.Format.Sample == SampleFormatNone
}

// Size returns the payload size in bytes.
func (b *AudioBlock) Size() int {
	if b.IsCoded() {
		return len(b.Coded)
	}
	return len(b.Data)
}
