package mpegts

import (
	"bytes"
	"testing"
)

func TestScanPCR(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x11, 0x47}) // leading garbage
	buf.Write(tsPacket(0x100, 0, false, pcrField(900), nil))
	buf.Write(tsPacket(0x101, 0, true, nil, []byte{1, 2, 3}))
	buf.Write(tsPacket(0x200, 0, false, pcrField(5), nil))
	buf.Write(tsPacket(0x100, 1, false, pcrField(90900), nil))

	tests := []struct {
		name        string
		data        []byte
		pid         int
		first, last int64
		ok          bool
	}{
		{"one pid", buf.Bytes(), 0x100, 900, 90900, true},
		{"any pid", buf.Bytes(), -1, 900, 90900, true},
		{"other pid", buf.Bytes(), 0x200, 5, 5, true},
		{"no pcr on pid", buf.Bytes(), 0x101, 0, 0, false},
		{"not a transport stream", []byte("not a transport stream"), -1, 0, 0, false},
	}
	for _, tt := range tests {
		first, last, ok := ScanPCR(tt.data, tt.pid)
		if first != tt.first || last != tt.last || ok != tt.ok {
			t.Errorf("%s: ScanPCR = %d, %d, %v; want %d, %d, %v", tt.name, first, last, ok, tt.first, tt.last, tt.ok)
		}
	}
}

func TestPCRDurationMicros(t *testing.T) {
	t.Parallel()
	if got := PCRDurationMicros(900, 90900); got != 1000000 {
		t.Errorf("PCRDurationMicros = %d, want 1000000", got)
	}
	if got := PCRDurationMicros(1<<33-90000, 0); got != 1000000 {
		t.Errorf("PCRDurationMicros across the wrap = %d, want 1000000", got)
	}
}

func TestLooksLikeTS(t *testing.T) {
	t.Parallel()

	var ts []byte
	for i := range 3 {
		ts = append(ts, tsPacket(0x100, uint8(i), false, nil, []byte{0})...)
	}
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"three packets", ts, true},
		{"one packet", ts[:packetSize], true},
		{"misaligned", append([]byte{0}, ts...), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		if got := LooksLikeTS(tt.data); got != tt.want {
			t.Errorf("%s: LooksLikeTS = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStreamTypeInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		st    uint8
		codec string
		video bool
		ok    bool
	}{
		{StreamTypeH264, "h264", true, true},
		{StreamTypeH265, "hevc", true, true},
		{StreamTypeAAC, "aac", false, true},
		{StreamTypeMPEG1Audio, "mp2", false, true},
		{StreamTypeAC3, "ac3", false, true},
		{0x86, "", false, false},
	}
	for _, tt := range tests {
		codec, video, ok := StreamTypeInfo(tt.st)
		if codec != tt.codec || video != tt.video || ok != tt.ok {
			t.Errorf("StreamTypeInfo(0x%02X) = %q, %v, %v", tt.st, codec, video, ok)
		}
	}
}
