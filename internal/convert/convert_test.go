package convert

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/zsiec/framescope/internal/media"
)

func testTiming() media.Timing {
	return media.Timing{TimeBase: 1.0 / 90000, TimeOffset: 123, SourceTimestamp: 987654}
}

func fillPicture(t *testing.T, f media.ImageFormat, vals ...byte) *media.Picture {
	t.Helper()
	p := media.NewPicture(f)
	p.Timing = testTiming()
	for i, pl := range p.Planes {
		for j := range pl {
			pl[j] = vals[i%len(vals)]
		}
	}
	return p
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestPictureConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  media.ImageFormat
		vals []byte
		dst  media.ImageFormat
		// want is the expected value of the first byte of every plane.
		want []byte
	}{
		{
			name: "gray yuv to rgba",
			src:  media.ImageFormat{Width: 8, Height: 6, Pixel: media.PixelFormatYUV420P},
			vals: []byte{128, 128, 128},
			dst:  media.ImageFormat{Width: 8, Height: 6, Pixel: media.PixelFormatRGBA},
			want: []byte{128},
		},
		{
			name: "gray8 to rgb24",
			src:  media.ImageFormat{Width: 4, Height: 4, Pixel: media.PixelFormatGray8},
			vals: []byte{200},
			dst:  media.ImageFormat{Width: 4, Height: 4, Pixel: media.PixelFormatRGB24},
			want: []byte{200},
		},
		{
			name: "rgb24 to gray8",
			src:  media.ImageFormat{Width: 4, Height: 4, Pixel: media.PixelFormatRGB24},
			vals: []byte{90},
			dst:  media.ImageFormat{Width: 4, Height: 4, Pixel: media.PixelFormatGray8},
			want: []byte{90},
		},
		{
			name: "rgba downscale to yuv",
			src:  media.ImageFormat{Width: 16, Height: 12, Pixel: media.PixelFormatRGBA},
			vals: []byte{255},
			dst:  media.ImageFormat{Width: 8, Height: 6, Pixel: media.PixelFormatYUV420P},
			want: []byte{255, 128, 128},
		},
		{
			name: "yuv upscale keeps luma",
			src:  media.ImageFormat{Width: 4, Height: 4, Pixel: media.PixelFormatYUV420P},
			vals: []byte{60, 128, 128},
			dst:  media.ImageFormat{Width: 9, Height: 7, Pixel: media.PixelFormatYUV420P},
			want: []byte{60, 128, 128},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := fillPicture(t, tt.src, tt.vals...)
			out, err := Picture(tt.dst, src)
			if err != nil {
				t.Fatalf("Picture: %v", err)
			}
			if out.Format != tt.dst {
				t.Errorf("format = %v, want %v", out.Format, tt.dst)
			}
			if out.Timing != src.Timing {
				t.Errorf("timing = %+v, want %+v", out.Timing, src.Timing)
			}
			if out.Size() != tt.dst.FrameSize() {
				t.Errorf("size = %d, want %d", out.Size(), tt.dst.FrameSize())
			}
			for i, w := range tt.want {
				if got := out.Planes[i][0]; absDiff(got, w) > 2 {
					t.Errorf("plane %d = %d, want %d", i, got, w)
				}
			}
		})
	}
}

func TestPictureSameFormatCopies(t *testing.T) {
	t.Parallel()
	f := media.ImageFormat{Width: 5, Height: 3, Pixel: media.PixelFormatYUV420P}
	src := fillPicture(t, f, 10, 20, 30)
	src.Keyframe = true
	src.Captions = []media.Caption{{Channel: 1, Text: "HELLO"}}

	c, err := NewImageConverter(media.ImageFormat{Pixel: media.PixelFormatYUV420P})
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Convert(src)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for i := range src.Planes {
		if !bytes.Equal(out.Planes[i], src.Planes[i]) {
			t.Errorf("plane %d differs", i)
		}
	}
	out.Planes[0][0] = 99
	if src.Planes[0][0] == 99 {
		t.Error("output aliases source planes")
	}
	if !out.Keyframe || len(out.Captions) != 1 {
		t.Errorf("metadata not carried: keyframe=%v captions=%v", out.Keyframe, out.Captions)
	}
}

func TestPictureErrors(t *testing.T) {
	t.Parallel()
	rgba := media.ImageFormat{Width: 4, Height: 4, Pixel: media.PixelFormatRGBA}

	coded := &media.Picture{Format: media.ImageFormat{Width: 4, Height: 4}, Coded: []byte{1}}
	empty := media.NewPicture(media.ImageFormat{Pixel: media.PixelFormatGray8})
	short := media.NewPicture(media.ImageFormat{Width: 4, Height: 4, Pixel: media.PixelFormatGray8})
	short.Planes[0] = short.Planes[0][:3]

	for name, src := range map[string]*media.Picture{"nil": nil, "coded": coded, "empty": empty, "short": short} {
		if _, err := Picture(rgba, src); !errors.Is(err, ErrConversion) {
			t.Errorf("%s: err = %v, want ErrConversion", name, err)
		}
	}
	if _, err := NewImageConverter(media.ImageFormat{Width: 4, Height: 4}); !errors.Is(err, ErrConversion) {
		t.Errorf("None target: err = %v, want ErrConversion", err)
	}
}

func s16Block(t *testing.T, channels, rate int, samples ...int16) *media.AudioBlock {
	t.Helper()
	f := media.AudioFormat{Sample: media.SampleFormatS16, Channels: channels, SampleRate: rate}
	b := media.NewAudioBlock(f, len(samples)/channels)
	b.Timing = testTiming()
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b.Data[2*i:], uint16(s))
	}
	return b
}

func TestAudioDownmixToFloat(t *testing.T) {
	t.Parallel()
	src := s16Block(t, 2, 48000, 16384, 0, -16384, -16384)
	out, err := AudioBlock(media.AudioFormat{Sample: media.SampleFormatF32, Channels: 1}, src)
	if err != nil {
		t.Fatalf("AudioBlock: %v", err)
	}
	if out.Samples != 2 || out.Format.SampleRate != 48000 {
		t.Fatalf("block = %d samples %v", out.Samples, out.Format)
	}
	if out.Timing != src.Timing {
		t.Errorf("timing = %+v, want %+v", out.Timing, src.Timing)
	}
	want := []float32{0.25, -0.5}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(out.Data[4*i:]))
		if math.Abs(float64(got-w)) > 1e-4 {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

func TestAudioUpmixAndResample(t *testing.T) {
	t.Parallel()
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = 1000
	}
	src := s16Block(t, 1, 48000, samples...)
	out, err := AudioBlock(media.AudioFormat{Sample: media.SampleFormatS16, Channels: 2, SampleRate: 24000}, src)
	if err != nil {
		t.Fatalf("AudioBlock: %v", err)
	}
	if out.Samples != 240 || out.Format.Channels != 2 {
		t.Fatalf("block = %d samples %v", out.Samples, out.Format)
	}
	for i := 0; i < len(out.Data); i += 2 {
		v := int16(binary.LittleEndian.Uint16(out.Data[i:]))
		if v < 999 || v > 1001 {
			t.Fatalf("sample %d = %d, want ~1000", i/2, v)
		}
	}
}

func TestAudioU8ToS16(t *testing.T) {
	t.Parallel()
	src := &media.AudioBlock{
		Timing:  testTiming(),
		Format:  media.AudioFormat{Sample: media.SampleFormatU8, Channels: 1, SampleRate: 8000},
		Data:    []byte{128, 255, 0},
		Samples: 3,
	}
	out, err := AudioBlock(media.AudioFormat{Sample: media.SampleFormatS16}, src)
	if err != nil {
		t.Fatalf("AudioBlock: %v", err)
	}
	got := []int16{
		int16(binary.LittleEndian.Uint16(out.Data[0:])),
		int16(binary.LittleEndian.Uint16(out.Data[2:])),
		int16(binary.LittleEndian.Uint16(out.Data[4:])),
	}
	if got[0] != 0 || got[1] < 32000 || got[2] != -32767 {
		t.Errorf("samples = %v", got)
	}
}

func TestAudioErrors(t *testing.T) {
	t.Parallel()
	dst := media.AudioFormat{Sample: media.SampleFormatS16}
	coded := &media.AudioBlock{Format: media.AudioFormat{Channels: 2, SampleRate: 48000}, Coded: []byte{1}, Samples: 1024}
	short := s16Block(t, 2, 48000, 1, 2)
	short.Samples = 4

	for name, src := range map[string]*media.AudioBlock{"nil": nil, "coded": coded, "short": short} {
		if _, err := AudioBlock(dst, src); !errors.Is(err, ErrConversion) {
			t.Errorf("%s: err = %v, want ErrConversion", name, err)
		}
	}
	if _, err := NewSampleConverter(media.AudioFormat{}); !errors.Is(err, ErrConversion) {
		t.Errorf("None target: err = %v, want ErrConversion", err)
	}
}

func TestThumbnailEncoder(t *testing.T) {
	t.Parallel()
	src := fillPicture(t, media.ImageFormat{Width: 32, Height: 24, Pixel: media.PixelFormatYUV420P}, 100, 128, 128)

	for _, codec := range []string{"mjpeg", "jpeg", "png"} {
		t.Run(codec, func(t *testing.T) {
			t.Parallel()
			enc, err := NewThumbnailEncoder(codec, 16, 12)
			if err != nil {
				t.Fatalf("NewThumbnailEncoder: %v", err)
			}
			var buf bytes.Buffer
			n, err := enc.Encode(&buf, src)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if n != buf.Len() || n == 0 {
				t.Errorf("n = %d, buffer holds %d", n, buf.Len())
			}
			var w, h int
			if enc.Codec() == "png" {
				img, err := png.Decode(&buf)
				if err != nil {
					t.Fatalf("png.Decode: %v", err)
				}
				w, h = img.Bounds().Dx(), img.Bounds().Dy()
			} else {
				img, err := jpeg.Decode(&buf)
				if err != nil {
					t.Fatalf("jpeg.Decode: %v", err)
				}
				w, h = img.Bounds().Dx(), img.Bounds().Dy()
			}
			if w != 16 || h != 12 {
				t.Errorf("size = %dx%d, want 16x12", w, h)
			}
		})
	}
}

func TestThumbnailEncoderErrors(t *testing.T) {
	t.Parallel()
	if _, err := NewThumbnailEncoder("gif", 8, 8); !errors.Is(err, ErrNoEncoder) {
		t.Errorf("err = %v, want ErrNoEncoder", err)
	}
	enc, err := NewThumbnailEncoder("png", 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	coded := &media.Picture{Format: media.ImageFormat{Width: 8, Height: 8}, Coded: []byte{1}}
	_, err = enc.Encode(&bytes.Buffer{}, coded)
	if !errors.Is(err, ErrEncode) || !errors.Is(err, ErrConversion) {
		t.Errorf("err = %v, want ErrEncode wrapping ErrConversion", err)
	}
}
