package media

import "fmt"

// PixelFormat is the in-memory layout of a raw picture.
type PixelFormat int

// Supported pixel formats. PixelFormatNone marks a coded picture.
const (
	PixelFormatNone PixelFormat = iota
	PixelFormatYUV420P
	PixelFormatRGB24
	PixelFormatRGBA
	PixelFormatGray8
)

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatNone:    "none",
	PixelFormatYUV420P: "yuv420p",
	PixelFormatRGB24:   "rgb24",
	PixelFormatRGBA:    "rgba",
	PixelFormatGray8:   "gray",
}

func (f PixelFormat) String() string {
	if s, ok := pixelFormatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("pixfmt(%d)", int(f))
}

// ParsePixelFormat maps a pixel format name to its value.
func ParsePixelFormat(name string) (PixelFormat, bool) {
	for f, s := range pixelFormatNames {
		if s == name {
			return f, true
		}
	}
	return PixelFormatNone, false
}

// Planes returns the number of planes of the format.
func (f PixelFormat) Planes() int {
	switch f {
	case PixelFormatYUV420P:
		return 3
	case PixelFormatRGB24, PixelFormatRGBA, PixelFormatGray8:
		return 1
	default:
		return 0
	}
}

// PlaneBytesPerPixel returns bytes per sample in each plane.
func (f PixelFormat) PlaneBytesPerPixel() int {
	switch f {
	case PixelFormatRGB24:
		return 3
	case PixelFormatRGBA:
		return 4
	case PixelFormatYUV420P, PixelFormatGray8:
		return 1
	default:
		return 0
	}
}

// ImageFormat describes picture geometry and layout.
type ImageFormat struct {
	Width  int
	Height int
	Pixel  PixelFormat
}

func (f ImageFormat) String() string {
	return fmt.Sprintf("%dx%d %s", f.Width, f.Height, f.Pixel)
}

// PlaneSize returns the width and height in samples of plane i.
func (f ImageFormat) PlaneSize(i int) (int, int) {
	if f.Pixel == PixelFormatYUV420P && i > 0 {
		return (f.Width + 1) / 2, (f.Height + 1) / 2
	}
	return f.Width, f.Height
}

// FrameSize returns the byte size of one tightly packed picture.
func (f ImageFormat) FrameSize() int {
	n := 0
	for i := 0; i < f.Pixel.Planes(); i++ {
		w, h := f.PlaneSize(i)
		n += w * h * f.Pixel.PlaneBytesPerPixel()
	}
	return n
}

// SampleFormat is the in-memory layout of raw audio samples. All formats
// are interleaved and little-endian.
type SampleFormat int

// Supported sample formats. SampleFormatNone marks a coded block.
const (
	SampleFormatNone SampleFormat = iota
	SampleFormatU8
	SampleFormatS16
	SampleFormatS32
	SampleFormatF32
)

var sampleFormatNames = map[SampleFormat]string{
	SampleFormatNone: "none",
	SampleFormatU8:   "u8",
	SampleFormatS16:  "s16",
	SampleFormatS32:  "s32",
	SampleFormatF32:  "f32",
}

func (f SampleFormat) String() string {
	if s, ok := sampleFormatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("smpfmt(%d)", int(f))
}

// ParseSampleFormat maps a sample format name to its value.
func ParseSampleFormat(name string) (SampleFormat, bool) {
	for f, s := range sampleFormatNames {
		if s == name {
			return f, true
		}
	}
	return SampleFormatNone, false
}

// BytesPerSample returns the size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatF32:
		return 4
	default:
		return 0
	}
}

// AudioFormat describes the layout of an audio block.
type AudioFormat struct {
	Sample     SampleFormat
	Channels   int
	SampleRate int
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%s %dch %dHz", f.Sample, f.Channels, f.SampleRate)
}

// FrameBytes returns the byte size of one sample across all channels.
func (f AudioFormat) FrameBytes() int {
	return f.Sample.BytesPerSample() * f.Channels
}
