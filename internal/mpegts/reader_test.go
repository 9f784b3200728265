package mpegts_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/zsiec/framescope/internal/mediatest"
	"github.com/zsiec/framescope/internal/mpegts"
)

func newStream() *mediatest.TS {
	return mediatest.NewTS(
		mediatest.ES{StreamType: mpegts.StreamTypeH264, PID: mediatest.VideoPID},
		mediatest.ES{StreamType: mpegts.StreamTypeAAC, PID: mediatest.AudioPID},
		mediatest.ES{StreamType: 0x86, PID: 0x0102},
	)
}

func TestReadProgram(t *testing.T) {
	t.Parallel()

	r := mpegts.NewReader(bytes.NewReader(newStream().Bytes()))
	prog, err := r.ReadProgram(10)
	if err != nil {
		t.Fatal(err)
	}
	if prog.Number != 1 || prog.PMTPID != mediatest.PMTPID || prog.PCRPID != mediatest.VideoPID {
		t.Errorf("program = %+v", prog)
	}
	want := []mpegts.ElementaryStream{
		{PID: mediatest.VideoPID, Type: mpegts.StreamTypeH264},
		{PID: mediatest.AudioPID, Type: mpegts.StreamTypeAAC},
		{PID: 0x0102, Type: 0x86},
	}
	if len(prog.Streams) != len(want) {
		t.Fatalf("streams = %+v", prog.Streams)
	}
	for i := range want {
		if prog.Streams[i] != want[i] {
			t.Errorf("stream %d = %+v, want %+v", i, prog.Streams[i], want[i])
		}
	}
	if r.Program() != prog {
		t.Error("Program does not return the program just read")
	}
}

func TestReadProgramMissing(t *testing.T) {
	t.Parallel()

	full := newStream().Bytes()
	tests := []struct {
		name  string
		data  []byte
		limit int
	}{
		{"PAT only", full[:mediatest.TSPacketSize], 100},
		{"limit reached", full, 1},
		{"empty", nil, 100},
	}
	for _, tt := range tests {
		r := mpegts.NewReader(bytes.NewReader(tt.data))
		if _, err := r.ReadProgram(tt.limit); !errors.Is(err, mpegts.ErrNoProgram) {
			t.Errorf("%s: err = %v, want ErrNoProgram", tt.name, err)
		}
	}
}

func TestReaderUnits(t *testing.T) {
	t.Parallel()

	key := mediatest.AccessUnit(true)
	delta := mediatest.AccessUnit(false)
	adts := mediatest.ADTSFrame(2, 32)

	ts := newStream()
	ts.WritePES(mediatest.VideoPID, mediatest.StreamIDVideo, 3003, 0, key, true, 0)
	ts.WritePES(mediatest.AudioPID, mediatest.StreamIDAudio, 0, -1, adts, false, -1)
	ts.WritePES(0x0102, 0xBD, 0, -1, []byte{0xFC}, false, -1)
	ts.WritePES(mediatest.VideoPID, mediatest.StreamIDVideo, 6006, 3003, delta, false, 3003)
	data := ts.Bytes()

	r := mpegts.NewReader(bytes.NewReader(data))
	if _, err := r.ReadProgram(10); err != nil {
		t.Fatal(err)
	}
	type unit struct {
		pid      uint16
		pts, dts int64
		ra       bool
		data     []byte
	}
	want := []unit{
		{mediatest.VideoPID, 3003, 0, true, key},
		{mediatest.AudioPID, 0, 0, false, adts},
		{mediatest.VideoPID, 6006, 3003, false, delta},
	}
	for i, w := range want {
		p, err := r.Next()
		if err != nil {
			t.Fatalf("unit %d: %v", i, err)
		}
		pts, dts, ok := p.Timestamps()
		if p.PID != w.pid || !ok || pts != w.pts || dts != w.dts || p.RandomAccess != w.ra {
			t.Errorf("unit %d = pid 0x%04X pts %d dts %d ra %v", i, p.PID, pts, dts, p.RandomAccess)
		}
		if !bytes.Equal(p.Data, w.data) {
			t.Errorf("unit %d data = %d bytes, want %d", i, len(p.Data), len(w.data))
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("after last unit err = %v, want EOF", err)
	}

	c := r.Counters()
	if c.Bytes != int64(len(data)) || c.Packets != int64(len(data)/mediatest.TSPacketSize) {
		t.Errorf("counters = %+v for %d bytes", c, len(data))
	}
	if c.Resyncs != 0 || c.ContinuityErrors != 0 || c.Invalid != 0 {
		t.Errorf("counters = %+v, want no errors", c)
	}
	if first, last, ok := r.PCRRange(); !ok || first != 0 || last != 3003 {
		t.Errorf("PCRRange = %d, %d, %v", first, last, ok)
	}
}

func TestReaderUnboundedVideo(t *testing.T) {
	t.Parallel()

	// Units too large for PES_packet_length end only at the next unit
	// start on their PID, or at end of input.
	big := func(b byte) []byte { return bytes.Repeat([]byte{b}, 70000) }
	ts := newStream()
	ts.WritePES(mediatest.VideoPID, mediatest.StreamIDVideo, 0, -1, big(1), true, -1)
	ts.WritePES(mediatest.AudioPID, mediatest.StreamIDAudio, 0, -1, []byte{9}, false, -1)
	ts.WritePES(mediatest.VideoPID, mediatest.StreamIDVideo, 3000, -1, big(2), false, -1)

	r := mpegts.NewReader(bytes.NewReader(ts.Bytes()))
	var pids []uint16
	var sizes []int
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		pids = append(pids, p.PID)
		sizes = append(sizes, len(p.Data))
	}
	wantPIDs := []uint16{mediatest.AudioPID, mediatest.VideoPID, mediatest.VideoPID}
	wantSizes := []int{1, 70000, 70000}
	if len(pids) != len(wantPIDs) {
		t.Fatalf("pids = %v, want %v", pids, wantPIDs)
	}
	for i := range pids {
		if pids[i] != wantPIDs[i] || sizes[i] != wantSizes[i] {
			t.Errorf("unit %d = pid 0x%04X %d bytes, want 0x%04X %d bytes", i, pids[i], sizes[i], wantPIDs[i], wantSizes[i])
		}
	}
}
