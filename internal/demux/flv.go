package demux

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/yapingcat/gomedia/go-codec"
	flv "github.com/yapingcat/gomedia/go-flv"

	"github.com/zsiec/framescope/internal/media"
)

const (
	flvChunkSize  = 32 * 1024
	flvProbeBytes = 2 << 20
	flvFlagAudio  = 0x04
	flvFlagVideo  = 0x01
)

var flvTimeBase = media.Rational{Num: 1, Den: 1000}

type flvFormat struct{}

func (flvFormat) Name() string { return "flv" }

func (flvFormat) Probe(header []byte, ext string) int {
	if len(header) >= 9 && bytes.Equal(header[0:3], []byte("FLV")) && header[3] == 1 {
		return 100
	}
	return 0
}

func (flvFormat) Open(in *Input) (Reader, error) {
	rd, err := in.Reader()
	if err != nil {
		return nil, err
	}
	r := &flvReader{
		r:     rd,
		fr:    flv.CreateFlvReader(),
		buf:   make([]byte, flvChunkSize),
		index: map[media.Kind]int{},
		flags: in.Header()[4],
	}
	r.fr.OnFrame = r.onFrame
	return r, nil
}

type flvFrame struct {
	kind     media.Kind
	codec    string
	data     []byte
	pts, dts int64
}

// flvReader feeds the byte stream through the gomedia tag parser, which
// hands back Annex B video and ADTS audio frames.
type flvReader struct {
	r       io.Reader
	fr      *flv.FlvReader
	buf     []byte
	queue   []flvFrame
	streams []Stream
	index   map[media.Kind]int
	flags   byte
	eof     bool
	read    int64
	lastMs  int64
}

func (r *flvReader) onFrame(cid codec.CodecID, frame []byte, pts, dts uint32) {
	f := flvFrame{
		data: append([]byte(nil), frame...),
		pts:  int64(pts),
		dts:  int64(dts),
	}
	switch cid {
	case codec.CODECID_VIDEO_H264:
		f.kind, f.codec = media.KindVideo, "h264"
	case codec.CODECID_VIDEO_H265:
		f.kind, f.codec = media.KindVideo, "hevc"
	case codec.CODECID_AUDIO_AAC:
		f.kind, f.codec = media.KindAudio, "aac"
	case codec.CODECID_AUDIO_MP3:
		f.kind, f.codec = media.KindAudio, "mp3"
	default:
		return
	}
	r.queue = append(r.queue, f)
}

// fill feeds one chunk of input to the tag parser.
func (r *flvReader) fill() error {
	if r.eof {
		return io.EOF
	}
	n, err := r.r.Read(r.buf)
	if n > 0 {
		r.read += int64(n)
		if ferr := r.fr.Input(r.buf[:n]); ferr != nil {
			return fmt.Errorf("flv: %w", ferr)
		}
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		return err
	}
	return nil
}

func (r *flvReader) wantKinds() []media.Kind {
	var kinds []media.Kind
	if r.flags&flvFlagVideo != 0 {
		kinds = append(kinds, media.KindVideo)
	}
	if r.flags&flvFlagAudio != 0 {
		kinds = append(kinds, media.KindAudio)
	}
	return kinds
}

// ProbeStreams reads ahead until a frame of every kind announced in the
// file header has been seen. Streams are indexed in order of first
// appearance.
func (r *flvReader) ProbeStreams() error {
	scanned := 0
	for {
		for ; scanned < len(r.queue); scanned++ {
			r.addStream(r.queue[scanned])
		}
		if len(r.streams) > 0 && r.announcedSeen() {
			return nil
		}
		if r.eof || r.read > flvProbeBytes {
			if len(r.streams) == 0 {
				return errors.New("flv: no audio or video tags")
			}
			return nil
		}
		if err := r.fill(); err != nil {
			return err
		}
	}
}

func (r *flvReader) announcedSeen() bool {
	for _, k := range r.wantKinds() {
		if _, ok := r.index[k]; !ok {
			return false
		}
	}
	return true
}

func (r *flvReader) addStream(f flvFrame) {
	if _, ok := r.index[f.kind]; ok {
		return
	}
	s := Stream{
		Index:    len(r.streams),
		Kind:     f.kind,
		Codec:    f.codec,
		TimeBase: flvTimeBase,
	}
	r.index[f.kind] = s.Index
	r.streams = append(r.streams, s)
}

func (r *flvReader) Streams() []Stream { return r.streams }

func (r *flvReader) ReadPacket(pkt *RawPacket) error {
	for {
		for len(r.queue) > 0 {
			f := r.queue[0]
			r.queue = r.queue[1:]
			idx, ok := r.index[f.kind]
			if !ok {
				continue
			}
			r.lastMs = max(r.lastMs, f.pts)
			*pkt = RawPacket{
				StreamIndex: idx,
				Data:        f.data,
				PTS:         f.pts,
				DTS:         f.dts,
			}
			return nil
		}
		if r.eof {
			return io.EOF
		}
		if err := r.fill(); err != nil {
			return err
		}
	}
}

// DurationMicroseconds reports the highest timestamp read so far.
func (r *flvReader) DurationMicroseconds() int64 {
	return r.lastMs * 1000
}

func (r *flvReader) BitRate() int64 {
	if d := r.DurationMicroseconds(); d > 0 {
		return r.read * 8 * 1000000 / d
	}
	return 0
}

func (r *flvReader) Close() error { return nil }
