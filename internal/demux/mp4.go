package demux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Eyevinn/mp4ff/hevc"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/deepch/vdk/codec/aacparser"

	"github.com/zsiec/framescope/internal/media"
)

type mp4Format struct{}

func (mp4Format) Name() string { return "mp4" }

func (mp4Format) Probe(header []byte, ext string) int {
	if len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")) {
		return 100
	}
	if len(header) >= 8 {
		switch string(header[4:8]) {
		case "moov", "mdat", "free", "wide", "skip":
			switch ext {
			case ".mp4", ".m4a", ".m4v", ".mov":
				return 60
			}
		}
	}
	return 0
}

// Open decodes the box tree lazily and flattens every supported track's
// sample table into one list ordered by file offset. Fragmented files expose
// their tracks but no samples.
func (mp4Format) Open(in *Input) (Reader, error) {
	rs, ok := in.Seeker()
	if !ok {
		return nil, errors.New("mp4: input is not seekable")
	}
	f, err := mp4.DecodeFile(rs, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, fmt.Errorf("mp4: decode: %w", err)
	}
	if f.Moov == nil {
		return nil, errors.New("mp4: no moov box")
	}

	r := &mp4Reader{rs: rs, size: in.Size}
	if f.Moov.Mvhd != nil && f.Moov.Mvhd.Timescale > 0 {
		r.duration = int64(f.Moov.Mvhd.Duration) * 1000000 / int64(f.Moov.Mvhd.Timescale)
	}

	for _, trak := range f.Moov.Traks {
		t, err := newMP4Track(trak, len(r.streams))
		if err != nil || t == nil {
			continue
		}
		r.streams = append(r.streams, t.stream)
		r.tracks = append(r.tracks, t)
		r.samples = append(r.samples, t.samples...)
	}
	sort.SliceStable(r.samples, func(i, j int) bool {
		return r.samples[i].offset < r.samples[j].offset
	})
	return r, nil
}

type mp4Sample struct {
	track    *mp4Track
	offset   int64
	size     int
	dts      int64
	pts      int64
	keyframe bool
}

type mp4Track struct {
	stream  Stream
	samples []mp4Sample
	// paramSets is prepended in Annex B form to every sync sample.
	paramSets []byte
	// aacConfig is set for AAC tracks, whose samples are wrapped in ADTS.
	aacConfig *aacparser.MPEG4AudioConfig
	avcc      bool
}

func newMP4Track(trak *mp4.TrakBox, index int) (*mp4Track, error) {
	if trak.Mdia == nil || trak.Mdia.Mdhd == nil || trak.Mdia.Hdlr == nil ||
		trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, errors.New("mp4: incomplete track")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsd == nil {
		return nil, errors.New("mp4: no sample description")
	}
	t := &mp4Track{stream: Stream{
		Index:    index,
		TimeBase: media.Rational{Num: 1, Den: int64(trak.Mdia.Mdhd.Timescale)},
	}}

	switch {
	case stbl.Stsd.AvcX != nil:
		t.stream.Kind = media.KindVideo
		t.stream.Codec = "h264"
		t.stream.Image = media.ImageFormat{
			Width:  int(stbl.Stsd.AvcX.Width),
			Height: int(stbl.Stsd.AvcX.Height),
		}
		t.avcc = true
		if avcC := stbl.Stsd.AvcX.AvcC; avcC != nil {
			for _, nalu := range avcC.SPSnalus {
				t.paramSets = appendAnnexB(t.paramSets, nalu)
			}
			for _, nalu := range avcC.PPSnalus {
				t.paramSets = appendAnnexB(t.paramSets, nalu)
			}
		}
	case stbl.Stsd.HvcX != nil:
		t.stream.Kind = media.KindVideo
		t.stream.Codec = "hevc"
		t.stream.Image = media.ImageFormat{
			Width:  int(stbl.Stsd.HvcX.Width),
			Height: int(stbl.Stsd.HvcX.Height),
		}
		t.avcc = true
		if hvcC := stbl.Stsd.HvcX.HvcC; hvcC != nil {
			for _, typ := range []hevc.NaluType{hevc.NALU_VPS, hevc.NALU_SPS, hevc.NALU_PPS} {
				for _, nalu := range hvcC.GetNalusForType(typ) {
					t.paramSets = appendAnnexB(t.paramSets, nalu)
				}
			}
		}
	case stbl.Stsd.Mp4a != nil:
		t.stream.Kind = media.KindAudio
		t.stream.Codec = "aac"
		t.stream.Audio = media.AudioFormat{
			Channels:   int(stbl.Stsd.Mp4a.ChannelCount),
			SampleRate: int(stbl.Stsd.Mp4a.SampleRate),
		}
		if asc := mp4aConfig(stbl.Stsd.Mp4a); asc != nil {
			if cfg, err := aacparser.ParseMPEG4AudioConfigBytes(asc); err == nil {
				t.aacConfig = &cfg
				t.stream.Extradata = append([]byte(nil), asc...)
				t.stream.Audio.SampleRate = cfg.SampleRate
				t.stream.Audio.Channels = cfg.ChannelLayout.Count()
			}
		}
		if t.aacConfig == nil {
			return nil, errors.New("mp4: aac track without decoder config")
		}
	default:
		return nil, nil
	}

	if err := t.buildSamples(stbl); err != nil {
		return nil, err
	}
	return t, nil
}

// mp4aConfig returns the AudioSpecificConfig carried in the esds box, or
// nil.
func mp4aConfig(e *mp4.AudioSampleEntryBox) []byte {
	if e.Esds == nil || e.Esds.DecConfigDescriptor == nil || e.Esds.DecConfigDescriptor.DecSpecificInfo == nil {
		return nil
	}
	return e.Esds.DecConfigDescriptor.DecSpecificInfo.DecConfig
}

func (t *mp4Track) buildSamples(stbl *mp4.StblBox) error {
	if stbl.Stsz == nil || stbl.Stts == nil || stbl.Stsc == nil {
		return nil
	}
	n := int(stbl.Stsz.GetNrSamples())
	t.samples = make([]mp4Sample, 0, n)

	prevChunk := -1
	var offset int64
	for nr := 1; nr <= n; nr++ {
		chunkNr, _, err := stbl.Stsc.ChunkNrFromSampleNr(nr)
		if err != nil {
			return fmt.Errorf("mp4: sample %d: %w", nr, err)
		}
		if chunkNr != prevChunk {
			off, err := chunkOffset(stbl, chunkNr)
			if err != nil {
				return err
			}
			offset = off
			prevChunk = chunkNr
		}
		size := int(stbl.Stsz.GetSampleSize(nr))
		dts, _ := stbl.Stts.GetDecodeTime(uint32(nr))
		pts := int64(dts)
		if stbl.Ctts != nil {
			pts += int64(stbl.Ctts.GetCompositionTimeOffset(uint32(nr)))
		}
		key := true
		if stbl.Stss != nil {
			key = stbl.Stss.IsSyncSample(uint32(nr))
		}
		t.samples = append(t.samples, mp4Sample{
			track:    t,
			offset:   offset,
			size:     size,
			dts:      int64(dts),
			pts:      pts,
			keyframe: key,
		})
		offset += int64(size)
	}
	return nil
}

func chunkOffset(stbl *mp4.StblBox, chunkNr int) (int64, error) {
	switch {
	case stbl.Stco != nil && chunkNr >= 1 && chunkNr <= len(stbl.Stco.ChunkOffset):
		return int64(stbl.Stco.ChunkOffset[chunkNr-1]), nil
	case stbl.Co64 != nil && chunkNr >= 1 && chunkNr <= len(stbl.Co64.ChunkOffset):
		return int64(stbl.Co64.ChunkOffset[chunkNr-1]), nil
	}
	return 0, fmt.Errorf("mp4: chunk %d has no offset", chunkNr)
}

type mp4Reader struct {
	rs       io.ReadSeeker
	size     int64
	streams  []Stream
	tracks   []*mp4Track
	samples  []mp4Sample
	next     int
	duration int64
	raw      []byte
	out      []byte
}

func (r *mp4Reader) Streams() []Stream { return r.streams }

func (r *mp4Reader) ReadPacket(pkt *RawPacket) error {
	if r.next >= len(r.samples) {
		return io.EOF
	}
	s := r.samples[r.next]
	r.next++

	if cap(r.raw) < s.size {
		r.raw = make([]byte, s.size)
	}
	r.raw = r.raw[:s.size]
	if _, err := r.rs.Seek(s.offset, io.SeekStart); err != nil {
		return fmt.Errorf("mp4: seek sample: %w", err)
	}
	if _, err := io.ReadFull(r.rs, r.raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return fmt.Errorf("mp4: read sample: %w", err)
	}

	t := s.track
	data := r.raw
	switch {
	case t.avcc:
		r.out = r.out[:0]
		if s.keyframe {
			r.out = append(r.out, t.paramSets...)
		}
		r.out = avccToAnnexB(r.out, r.raw)
		data = r.out
	case t.aacConfig != nil:
		r.out = append(r.out[:0], make([]byte, 7)...)
		aacparser.FillADTSHeader(r.out, *t.aacConfig, 1024, len(r.raw))
		r.out = append(r.out, r.raw...)
		data = r.out
	}

	*pkt = RawPacket{
		StreamIndex: t.stream.Index,
		Data:        data,
		PTS:         s.pts,
		DTS:         s.dts,
		Keyframe:    s.keyframe,
	}
	return nil
}

func (r *mp4Reader) DurationMicroseconds() int64 { return r.duration }

func (r *mp4Reader) BitRate() int64 { return 0 }

func (r *mp4Reader) Close() error { return nil }

var annexBStartCode = []byte{0, 0, 0, 1}

func appendAnnexB(dst, nalu []byte) []byte {
	dst = append(dst, annexBStartCode...)
	return append(dst, nalu...)
}

// avccToAnnexB rewrites 4-byte length-prefixed NAL units with start codes.
// A truncated trailing unit is dropped.
func avccToAnnexB(dst, src []byte) []byte {
	for len(src) >= 4 {
		n := int(binary.BigEndian.Uint32(src))
		src = src[4:]
		if n <= 0 || n > len(src) {
			break
		}
		dst = appendAnnexB(dst, src[:n])
		src = src[n:]
	}
	return dst
}
