package demux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zsiec/framescope/internal/media"
)

// wavPacketFrames is the number of sample frames per WAV packet.
const wavPacketFrames = 4096

const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE
)

type wavFormat struct{}

func (wavFormat) Name() string { return "wav" }

func (wavFormat) Probe(header []byte, ext string) int {
	if len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")) {
		return 100
	}
	return 0
}

func (wavFormat) Open(in *Input) (Reader, error) {
	rd, err := in.Reader()
	if err != nil {
		return nil, err
	}
	var riff [12]byte
	if _, err := io.ReadFull(rd, riff[:]); err != nil {
		return nil, fmt.Errorf("wav: riff header: %w", err)
	}

	r := &wavReader{r: rd}
	var haveFmt bool
	for {
		var ch [8]byte
		if _, err := io.ReadFull(rd, ch[:]); err != nil {
			return nil, fmt.Errorf("wav: no data chunk: %w", err)
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(rd, body); err != nil {
				return nil, fmt.Errorf("wav: fmt chunk: %w", err)
			}
			if err := r.parseFmt(body); err != nil {
				return nil, err
			}
			haveFmt = true
			if size%2 == 1 {
				io.CopyN(io.Discard, rd, 1)
			}
		case "data":
			if !haveFmt {
				return nil, errors.New("wav: data chunk before fmt chunk")
			}
			r.dataSize = size
			if size == 0 || size == 0xFFFFFFFF {
				// Streamed WAV: unknown length.
				r.dataSize = -1
			}
			r.buf = make([]byte, wavPacketFrames*int(r.blockAlign))
			return r, nil
		default:
			if _, err := io.CopyN(io.Discard, rd, size+size%2); err != nil {
				return nil, fmt.Errorf("wav: skip %q chunk: %w", id, err)
			}
		}
	}
}

type wavReader struct {
	r          io.Reader
	stream     Stream
	blockAlign uint16
	byteRate   uint32
	dataSize   int64
	read       int64
	buf        []byte
	frames     int64
}

func (r *wavReader) parseFmt(b []byte) error {
	if len(b) < 16 {
		return errors.New("wav: fmt chunk too short")
	}
	tag := binary.LittleEndian.Uint16(b[0:2])
	channels := int(binary.LittleEndian.Uint16(b[2:4]))
	rate := int(binary.LittleEndian.Uint32(b[4:8]))
	r.byteRate = binary.LittleEndian.Uint32(b[8:12])
	r.blockAlign = binary.LittleEndian.Uint16(b[12:14])
	bits := int(binary.LittleEndian.Uint16(b[14:16]))

	if tag == wavFormatExtensible && len(b) >= 26 {
		tag = binary.LittleEndian.Uint16(b[24:26])
	}
	if channels <= 0 || rate <= 0 || r.blockAlign == 0 {
		return fmt.Errorf("wav: invalid format: %d channels, %d Hz, block %d", channels, rate, r.blockAlign)
	}

	codec, sf := wavCodec(tag, bits)
	r.stream = Stream{
		Index:    0,
		Kind:     media.KindAudio,
		Codec:    codec,
		TimeBase: media.Rational{Num: 1, Den: int64(rate)},
		Audio:    media.AudioFormat{Sample: sf, Channels: channels, SampleRate: rate},
	}
	return nil
}

func wavCodec(tag uint16, bits int) (string, media.SampleFormat) {
	switch {
	case tag == wavFormatPCM && bits == 8:
		return "pcm_u8", media.SampleFormatU8
	case tag == wavFormatPCM && bits == 16:
		return "pcm_s16le", media.SampleFormatS16
	case tag == wavFormatPCM && bits == 24:
		return "pcm_s24le", media.SampleFormatNone
	case tag == wavFormatPCM && bits == 32:
		return "pcm_s32le", media.SampleFormatS32
	case tag == wavFormatFloat && bits == 32:
		return "pcm_f32le", media.SampleFormatF32
	case tag == wavFormatFloat && bits == 64:
		return "pcm_f64le", media.SampleFormatNone
	default:
		return fmt.Sprintf("wav_0x%04x", tag), media.SampleFormatNone
	}
}

func (r *wavReader) Streams() []Stream { return []Stream{r.stream} }

func (r *wavReader) ReadPacket(pkt *RawPacket) error {
	want := len(r.buf)
	if r.dataSize >= 0 {
		left := r.dataSize - r.read
		if left <= 0 {
			return io.EOF
		}
		want = int(min(int64(want), left))
	}
	n, err := io.ReadFull(r.r, r.buf[:want])
	n -= n % int(r.blockAlign)
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	r.read += int64(n)

	*pkt = RawPacket{
		StreamIndex: 0,
		Data:        r.buf[:n],
		PTS:         r.frames,
		DTS:         r.frames,
		Keyframe:    true,
	}
	r.frames += int64(n / int(r.blockAlign))
	return nil
}

func (r *wavReader) DurationMicroseconds() int64 {
	if r.dataSize <= 0 {
		return 0
	}
	frames := r.dataSize / int64(r.blockAlign)
	return frames * 1000000 / int64(r.stream.Audio.SampleRate)
}

func (r *wavReader) BitRate() int64 { return int64(r.byteRate) * 8 }

func (r *wavReader) Close() error { return nil }
