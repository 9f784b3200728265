package demux

import (
	"errors"
	"fmt"
	"io"

	"github.com/zsiec/framescope/internal/media"
	"github.com/zsiec/framescope/internal/mpegts"
)

const (
	// tsScanWindow is the number of bytes scanned at each end of a seekable
	// transport stream to estimate its duration from PCRs.
	tsScanWindow = 1 << 20
	// tsProbeLimit bounds how many packets are read looking for the first
	// PMT.
	tsProbeLimit = 20000
)

var tsTimeBase = media.Rational{Num: 1, Den: 90000}

type tsFormat struct{}

func (tsFormat) Name() string { return "mpegts" }

func (tsFormat) Probe(header []byte, ext string) int {
	if !mpegts.LooksLikeTS(header) {
		return 0
	}
	score := 20
	if len(header) > 2*188 {
		score = 90
	}
	switch ext {
	case ".ts", ".m2ts", ".mts", ".tsv":
		score += 10
	}
	return min(score, 100)
}

func (tsFormat) Open(in *Input) (Reader, error) {
	r := &tsReader{
		size:     in.Size,
		pidIndex: make(map[uint16]int),
		lastPTS:  make(map[int]int64),
		wrap:     make(map[int]int64),
	}
	if rs, ok := in.Seeker(); ok && in.Size > 0 {
		r.scanDuration(rs, in.Size)
	}
	rd, err := in.Reader()
	if err != nil {
		return nil, err
	}
	r.ts = mpegts.NewReader(rd)
	return r, nil
}

type tsReader struct {
	ts       *mpegts.Reader
	size     int64
	streams  []Stream
	pidIndex map[uint16]int
	lastPTS  map[int]int64
	wrap     map[int]int64

	scannedDuration int64
}

// scanDuration estimates the duration from the first PCR in the head window
// and the last PCR in the tail window.
func (r *tsReader) scanDuration(rs io.ReadSeeker, size int64) {
	n := min(size, tsScanWindow)
	head := make([]byte, n)
	if _, err := io.ReadFull(rs, head); err != nil {
		return
	}
	first, _, ok := mpegts.ScanPCR(head, -1)
	if !ok {
		return
	}
	tail := head
	if size > tsScanWindow {
		if _, err := rs.Seek(size-n, io.SeekStart); err != nil {
			return
		}
		tail = make([]byte, n)
		if _, err := io.ReadFull(rs, tail); err != nil {
			return
		}
	}
	_, last, ok := mpegts.ScanPCR(tail, -1)
	if !ok {
		return
	}
	r.scannedDuration = mpegts.PCRDurationMicros(first, last)
}

func (r *tsReader) Streams() []Stream { return r.streams }

// ProbeStreams reads up to the first PMT and builds the stream list from
// its audio and video entries, in PMT order. Later PMT versions do not
// change the list.
func (r *tsReader) ProbeStreams() error {
	prog, err := r.ts.ReadProgram(tsProbeLimit)
	if err != nil {
		if errors.Is(err, mpegts.ErrNoProgram) {
			return fmt.Errorf("mpegts: no PMT in the first %d packets: %w", tsProbeLimit, err)
		}
		return err
	}
	for _, es := range prog.Streams {
		codec, video, ok := mpegts.StreamTypeInfo(es.Type)
		if !ok {
			continue
		}
		kind := media.KindAudio
		if video {
			kind = media.KindVideo
		}
		idx := len(r.streams)
		r.pidIndex[es.PID] = idx
		r.streams = append(r.streams, Stream{
			Index:    idx,
			Kind:     kind,
			Codec:    codec,
			TimeBase: tsTimeBase,
		})
	}
	return nil
}

func (r *tsReader) ReadPacket(pkt *RawPacket) error {
	for {
		pes, err := r.ts.Next()
		if err != nil {
			return err
		}
		idx, ok := r.pidIndex[pes.PID]
		if !ok || len(pes.Data) == 0 {
			continue
		}

		pts, dts, ok := pes.Timestamps()
		offset := int64(0)
		if ok {
			offset = compositionOffset(pts, dts)
			pts = r.unwrap(idx, pts)
			r.lastPTS[idx] = pts
		} else {
			pts = r.lastPTS[idx]
		}

		*pkt = RawPacket{
			StreamIndex: idx,
			Data:        pes.Data,
			PTS:         pts,
			DTS:         pts - offset,
			Keyframe:    pes.RandomAccess,
		}
		return nil
	}
}

// unwrap extends 33-bit PTS values past the wrap point.
func (r *tsReader) unwrap(idx int, pts int64) int64 {
	const period = int64(1) << 33
	pts += r.wrap[idx]
	if last, ok := r.lastPTS[idx]; ok && last-pts > period/2 {
		r.wrap[idx] += period
		pts += period
	}
	return pts
}

// compositionOffset returns PTS minus DTS, allowing for a wrap between
// the two.
func compositionOffset(pts, dts int64) int64 {
	d := pts - dts
	if d < 0 {
		d += 1 << 33
	}
	return d
}

func (r *tsReader) DurationMicroseconds() int64 {
	if r.scannedDuration > 0 {
		return r.scannedDuration
	}
	if first, last, ok := r.ts.PCRRange(); ok {
		return mpegts.PCRDurationMicros(first, last)
	}
	return 0
}

func (r *tsReader) BitRate() int64 {
	dur := r.DurationMicroseconds()
	if dur <= 0 {
		return 0
	}
	if r.size > 0 && r.scannedDuration > 0 {
		return r.size * 8 * 1000000 / dur
	}
	return r.ts.Counters().Bytes * 8 * 1000000 / dur
}

func (r *tsReader) Close() error { return nil }
