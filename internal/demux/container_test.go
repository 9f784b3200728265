package demux

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/zsiec/framescope/internal/media"
	"github.com/zsiec/framescope/internal/mediatest"
	"github.com/zsiec/framescope/internal/mpegts"
	"github.com/zsiec/framescope/internal/source"
)

// buildAVTS returns a transport stream with an H.264 and an AAC stream:
// three video PES at 0/3000/6000 and two audio PES at 0/1920, with PCRs on
// the video PID.
func buildAVTS(t *testing.T) []byte {
	t.Helper()
	ts := mediatest.NewTS(
		mediatest.ES{StreamType: mpegts.StreamTypeH264, PID: mediatest.VideoPID},
		mediatest.ES{StreamType: mpegts.StreamTypeAAC, PID: mediatest.AudioPID},
	)
	ts.WritePES(mediatest.VideoPID, mediatest.StreamIDVideo, 0, -1, mediatest.AccessUnit(true), true, 0)
	ts.WritePES(mediatest.AudioPID, mediatest.StreamIDAudio, 0, -1, mediatest.ADTSFrame(2, 32), false, -1)
	ts.WritePES(mediatest.VideoPID, mediatest.StreamIDVideo, 3000, -1, mediatest.AccessUnit(false), false, 3000)
	ts.WritePES(mediatest.AudioPID, mediatest.StreamIDAudio, 1920, -1, mediatest.ADTSFrame(2, 32), false, -1)
	ts.WritePES(mediatest.VideoPID, mediatest.StreamIDVideo, 6000, -1, mediatest.AccessUnit(false), false, 6000)
	return ts.Bytes()
}

func openMemory(t *testing.T, data []byte, name string) *Container {
	t.Helper()
	c, err := OpenSource(source.NewMemory(data), name)
	if err != nil {
		t.Fatalf("OpenSource(%s): %v", name, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// readAll drains c and returns the packets read, copying their data.
func readAll(t *testing.T, c *Container) []RawPacket {
	t.Helper()
	var out []RawPacket
	p := NewPacket()
	for {
		ok, halted := p.Read(c)
		if halted {
			t.Fatal("unexpected halt")
		}
		if !ok {
			if err := p.Err(); err != nil {
				t.Fatalf("read: %v", err)
			}
			return out
		}
		out = append(out, RawPacket{
			StreamIndex: p.StreamIndex(),
			Data:        append([]byte(nil), p.Data()...),
			PTS:         p.PTS(),
			DTS:         p.DTS(),
			Keyframe:    p.Keyframe(),
		})
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		hint string
		want string
	}{
		{"y4m", mediatest.Y4M(4, 4, 25, 1, 1), "clip", "y4m"},
		{"wav", mediatest.WAV(8000, 1, 10), "tone", "wav"},
		{"mpegts", buildAVTS(t), "live", "mpegts"},
		{"flv", append([]byte("FLV\x01\x05\x00\x00\x00\x09"), make([]byte, 16)...), "x", "flv"},
		{"mp4", append([]byte{0, 0, 0, 16}, []byte("ftypisom\x00\x00\x02\x00")...), "x", "mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in, err := newInput(source.NewMemory(tt.data), tt.hint)
			if err != nil {
				t.Fatalf("newInput: %v", err)
			}
			f, err := detect(in)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if f.Name() != tt.want {
				t.Errorf("format = %q, want %q", f.Name(), tt.want)
			}
		})
	}
}

func TestOpenFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("this is not a media file at all")},
		{"bad y4m header", []byte("YUV4MPEG2 W0 H0\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := OpenSource(source.NewMemory(tt.data), "input")
			if !errors.Is(err, ErrOpenFailed) {
				t.Fatalf("err = %v, want ErrOpenFailed", err)
			}
		})
	}

	t.Run("missing path", func(t *testing.T) {
		t.Parallel()
		_, err := Open(filepath.Join(t.TempDir(), "nope.ts"))
		if !errors.Is(err, ErrOpenFailed) {
			t.Fatalf("err = %v, want ErrOpenFailed", err)
		}
	})
	t.Run("nil source", func(t *testing.T) {
		t.Parallel()
		if _, err := OpenSource(nil, "x"); !errors.Is(err, ErrOpenFailed) {
			t.Fatalf("err = %v, want ErrOpenFailed", err)
		}
	})
}

func TestOpenPathOwnsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "clip.y4m")
	if err := os.WriteFile(path, mediatest.Y4M(8, 6, 30, 1, 3), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.Name() != "clip.y4m" {
		t.Errorf("Name = %q", c.Name())
	}
	if c.IsHalted() {
		t.Error("path-opened container reports halted")
	}
	if got := len(readAll(t, c)); got != 3 {
		t.Errorf("packets = %d, want 3", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	p := NewPacket()
	if ok, _ := p.Read(c); ok {
		t.Error("read succeeded after Close")
	}
}

func TestY4M(t *testing.T) {
	t.Parallel()
	c := openMemory(t, mediatest.Y4M(8, 6, 30000, 1001, 4), "clip.y4m")

	if c.FormatName() != "y4m" {
		t.Errorf("FormatName = %q", c.FormatName())
	}
	s, err := c.FindStream(media.KindVideo)
	if err != nil {
		t.Fatalf("FindStream: %v", err)
	}
	if s.Codec != "rawvideo" || s.Image.Width != 8 || s.Image.Height != 6 || s.Image.Pixel != media.PixelFormatYUV420P {
		t.Errorf("stream = %+v", s)
	}
	if s.TimeBase != (media.Rational{Num: 1001, Den: 30000}) {
		t.Errorf("TimeBase = %v", s.TimeBase)
	}
	if _, err := c.FindStream(media.KindAudio); !errors.Is(err, ErrNoSuchStream) {
		t.Errorf("FindStream(audio) err = %v, want ErrNoSuchStream", err)
	}
	if d := c.DurationMicroseconds(); d != 4*1001*1000000/30000 {
		t.Errorf("DurationMicroseconds = %d", d)
	}

	pkts := readAll(t, c)
	if len(pkts) != 4 {
		t.Fatalf("packets = %d, want 4", len(pkts))
	}
	for i, p := range pkts {
		if p.PTS != int64(i) {
			t.Errorf("packet %d PTS = %d", i, p.PTS)
		}
		if len(p.Data) != 8*6+2*4*3 {
			t.Errorf("packet %d size = %d", i, len(p.Data))
		}
		if p.Data[0] != byte(i) {
			t.Errorf("packet %d first byte = %d", i, p.Data[0])
		}
	}
}

func TestWAV(t *testing.T) {
	t.Parallel()
	const frames = 5000
	c := openMemory(t, mediatest.WAV(48000, 2, frames), "tone.wav")

	s, err := c.FindStream(media.KindAudio)
	if err != nil {
		t.Fatalf("FindStream: %v", err)
	}
	want := media.AudioFormat{Sample: media.SampleFormatS16, Channels: 2, SampleRate: 48000}
	if s.Codec != "pcm_s16le" || s.Audio != want {
		t.Errorf("stream = %+v", s)
	}
	if br := c.BitRate(); br != 48000*4*8 {
		t.Errorf("BitRate = %d", br)
	}
	if d := c.DurationMicroseconds(); d != frames*1000000/48000 {
		t.Errorf("DurationMicroseconds = %d", d)
	}

	pkts := readAll(t, c)
	if len(pkts) != 2 {
		t.Fatalf("packets = %d, want 2", len(pkts))
	}
	if pkts[0].PTS != 0 || pkts[1].PTS != wavPacketFrames {
		t.Errorf("PTS = %d, %d", pkts[0].PTS, pkts[1].PTS)
	}
	if len(pkts[1].Data) != (frames-wavPacketFrames)*4 {
		t.Errorf("tail packet size = %d", len(pkts[1].Data))
	}
}

func TestWAVCodecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  uint16
		bits int
		want string
		sf   media.SampleFormat
	}{
		{wavFormatPCM, 8, "pcm_u8", media.SampleFormatU8},
		{wavFormatPCM, 16, "pcm_s16le", media.SampleFormatS16},
		{wavFormatPCM, 24, "pcm_s24le", media.SampleFormatNone},
		{wavFormatPCM, 32, "pcm_s32le", media.SampleFormatS32},
		{wavFormatFloat, 32, "pcm_f32le", media.SampleFormatF32},
		{0x0055, 16, "wav_0x0055", media.SampleFormatNone},
	}
	for _, tt := range tests {
		codec, sf := wavCodec(tt.tag, tt.bits)
		if codec != tt.want || sf != tt.sf {
			t.Errorf("wavCodec(%#x, %d) = %q, %v; want %q, %v", tt.tag, tt.bits, codec, sf, tt.want, tt.sf)
		}
	}
}

func TestMPEGTS(t *testing.T) {
	t.Parallel()
	c := openMemory(t, buildAVTS(t), "live.ts")

	streams := c.Streams()
	if len(streams) != 2 {
		t.Fatalf("streams = %d, want 2", len(streams))
	}
	if streams[0].Codec != "h264" || streams[0].Kind != media.KindVideo {
		t.Errorf("stream 0 = %+v", streams[0])
	}
	if streams[1].Codec != "aac" || streams[1].Kind != media.KindAudio {
		t.Errorf("stream 1 = %+v", streams[1])
	}
	if streams[0].TimeBase != (media.Rational{Num: 1, Den: 90000}) {
		t.Errorf("TimeBase = %v", streams[0].TimeBase)
	}
	if d := c.DurationMicroseconds(); d != 6000*1000000/90000 {
		t.Errorf("DurationMicroseconds = %d", d)
	}
	if c.BitRate() <= 0 {
		t.Error("BitRate not positive")
	}

	var video, audio []int64
	var keys []bool
	for _, p := range readAll(t, c) {
		switch p.StreamIndex {
		case 0:
			video = append(video, p.PTS)
			keys = append(keys, p.Keyframe)
		case 1:
			audio = append(audio, p.PTS)
		}
	}
	if !slices.Equal(video, []int64{0, 3000, 6000}) {
		t.Errorf("video PTS = %v", video)
	}
	if !slices.Equal(audio, []int64{0, 1920}) {
		t.Errorf("audio PTS = %v", audio)
	}
	if !slices.Equal(keys, []bool{true, false, false}) {
		t.Errorf("keyframes = %v", keys)
	}
}

func TestMPEGTSNoPMTIsNonFatal(t *testing.T) {
	t.Parallel()
	ts := mediatest.NewTS()
	data := ts.Bytes()[:mediatest.TSPacketSize] // PAT only
	data = append(data, data...)
	data = append(data, data...)

	c := openMemory(t, data, "pat-only.ts")
	if c.ProbeErr() == nil {
		t.Fatal("expected a probe error")
	}
	if _, err := c.FindStream(media.KindVideo); !errors.Is(err, ErrNoSuchStream) {
		t.Errorf("FindStream err = %v, want ErrNoSuchStream", err)
	}
}

func TestFLVWithoutTagsIsNonFatal(t *testing.T) {
	t.Parallel()
	data := append([]byte("FLV\x01\x05\x00\x00\x00\x09"), 0, 0, 0, 0)

	c := openMemory(t, data, "empty.flv")
	if c.FormatName() != "flv" {
		t.Errorf("format = %q", c.FormatName())
	}
	if c.ProbeErr() == nil {
		t.Fatal("expected a probe error")
	}
	if len(c.Streams()) != 0 {
		t.Errorf("streams = %v", c.Streams())
	}
}

func TestIsHalted(t *testing.T) {
	t.Parallel()
	src := source.WithCancel(source.NewMemory(mediatest.Y4M(4, 4, 25, 1, 3)))
	c, err := OpenSource(src, "clip.y4m")
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer c.Close()

	p := NewPacket()
	if ok, halted := p.Read(c); !ok || halted {
		t.Fatalf("first read ok=%v halted=%v", ok, halted)
	}
	src.Halt()
	if !c.IsHalted() {
		t.Fatal("IsHalted = false after Halt")
	}
	for range 2 {
		ok, halted := p.Read(c)
		if ok || !halted {
			t.Fatalf("read after halt ok=%v halted=%v", ok, halted)
		}
		if !p.Empty() {
			t.Fatal("packet not empty after halted read")
		}
	}
}

type fakeFormat struct{ name string }

func (f fakeFormat) Name() string { return f.name }

func (fakeFormat) Probe(header []byte, ext string) int {
	if string(header[:min(len(header), 4)]) == "FAKE" {
		return 100
	}
	return 0
}

func (fakeFormat) Open(in *Input) (Reader, error) { return &fakeReader{}, nil }

type fakeReader struct{ n int }

func (*fakeReader) Streams() []Stream {
	return []Stream{{Index: 0, Kind: media.KindVideo, Codec: "fake"}}
}

func (r *fakeReader) ReadPacket(p *RawPacket) error {
	if r.n == 2 {
		return io.EOF
	}
	r.n++
	*p = RawPacket{Data: []byte{byte(r.n)}, PTS: int64(r.n)}
	return nil
}

func (*fakeReader) Close() error { return nil }

var registerFake sync.Once

func TestRegister(t *testing.T) {
	t.Parallel()
	registerFake.Do(func() { Register(fakeFormat{name: "fake-container"}) })

	if !slices.Contains(Formats(), "fake-container") {
		t.Fatalf("Formats() = %v", Formats())
	}
	c := openMemory(t, []byte("FAKE data"), "x.fake")
	if c.FormatName() != "fake-container" {
		t.Errorf("FormatName = %q", c.FormatName())
	}
	if got := len(readAll(t, c)); got != 2 {
		t.Errorf("packets = %d, want 2", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register(fakeFormat{name: "fake-container"})
}
