package media

import "testing"

func TestTimingTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		timing Timing
		want   uint64
	}{
		{name: "unit time base", timing: Timing{TimeBase: 0.001, SourceTimestamp: 1500}, want: 1500},
		{name: "90kHz", timing: Timing{TimeBase: 1.0 / 90000, SourceTimestamp: 90000}, want: 1000},
		{name: "offset subtracted", timing: Timing{TimeBase: 0.001, SourceTimestamp: 1500, TimeOffset: 500}, want: 1000},
		{name: "offset above raw clamps to zero", timing: Timing{TimeBase: 0.001, SourceTimestamp: 100, TimeOffset: 500}, want: 0},
		{name: "negative raw clamps to zero", timing: Timing{TimeBase: 0.001, SourceTimestamp: -40}, want: 0},
		{name: "zero time base", timing: Timing{SourceTimestamp: 1000}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.timing.Timestamp(); got != tc.want {
				t.Errorf("Timestamp() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNewPictureAllocatesPlanes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  ImageFormat
		planes  int
		size    int
		strides []int
	}{
		{ImageFormat{Width: 4, Height: 2, Pixel: PixelFormatYUV420P}, 3, 8 + 2 + 2, []int{4, 2, 2}},
		{ImageFormat{Width: 5, Height: 3, Pixel: PixelFormatYUV420P}, 3, 15 + 6 + 6, []int{5, 3, 3}},
		{ImageFormat{Width: 4, Height: 2, Pixel: PixelFormatRGB24}, 1, 24, []int{12}},
		{ImageFormat{Width: 4, Height: 2, Pixel: PixelFormatRGBA}, 1, 32, []int{16}},
		{ImageFormat{Width: 4, Height: 2, Pixel: PixelFormatGray8}, 1, 8, []int{4}},
	}

	for _, tc := range tests {
		t.Run(tc.format.String(), func(t *testing.T) {
			t.Parallel()
			p := NewPicture(tc.format)
			if len(p.Planes) != tc.planes {
				t.Fatalf("planes = %d, want %d", len(p.Planes), tc.planes)
			}
			if p.Size() != tc.size {
				t.Errorf("size = %d, want %d", p.Size(), tc.size)
			}
			if tc.format.FrameSize() != tc.size {
				t.Errorf("FrameSize() = %d, want %d", tc.format.FrameSize(), tc.size)
			}
			for i, s := range tc.strides {
				if p.Strides[i] != s {
					t.Errorf("stride[%d] = %d, want %d", i, p.Strides[i], s)
				}
			}
			if p.IsCoded() {
				t.Error("raw picture reported as coded")
			}
		})
	}
}

func TestAudioBlockSize(t *testing.T) {
	t.Parallel()
	b := NewAudioBlock(AudioFormat{Sample: SampleFormatS16, Channels: 2, SampleRate: 48000}, 1024)
	if b.Size() != 4096 {
		t.Errorf("size = %d, want 4096", b.Size())
	}

	coded := &AudioBlock{Coded: []byte{1, 2, 3}}
	if !coded.IsCoded() || coded.Size() != 3 {
		t.Errorf("coded block: IsCoded=%v Size=%d", coded.IsCoded(), coded.Size())
	}
}

func TestParseFormats(t *testing.T) {
	t.Parallel()
	if f, ok := ParsePixelFormat("rgba"); !ok || f != PixelFormatRGBA {
		t.Errorf("ParsePixelFormat(rgba) = %v, %v", f, ok)
	}
	if _, ok := ParsePixelFormat("nv12"); ok {
		t.Error("ParsePixelFormat(nv12) should fail")
	}
	if f, ok := ParseSampleFormat("f32"); !ok || f != SampleFormatF32 {
		t.Errorf("ParseSampleFormat(f32) = %v, %v", f, ok)
	}
}
