// Package mediatest builds small synthetic media streams (MPEG-TS, MP4, FLV,
// Y4M, WAV, H.264 access units, ADTS frames) for tests. Nothing here is used
// outside _test.go files.
package mediatest

import (
	"bytes"
	"encoding/binary"

	"github.com/zsiec/framescope/internal/mpegts"
)

// TSPacketSize is the fixed size of an MPEG-TS packet.
const TSPacketSize = 188

// Well-known PIDs used by NewTS.
const (
	PMTPID   uint16 = 0x1000
	VideoPID uint16 = 0x0100
	AudioPID uint16 = 0x0101
)

// PES stream ids.
const (
	StreamIDVideo byte = 0xE0
	StreamIDAudio byte = 0xC0
)

// ES is one elementary stream entry of a PMT.
type ES struct {
	StreamType uint8
	PID        uint16
}

// TS accumulates transport stream packets with per-PID continuity counters.
type TS struct {
	buf bytes.Buffer
	cc  map[uint16]byte
}

// NewTS starts a transport stream with a PAT and a PMT listing streams.
// The first stream carries the PCR.
func NewTS(streams ...ES) *TS {
	ts := &TS{cc: make(map[uint16]byte)}
	pcrPID := uint16(0x1FFF)
	if len(streams) > 0 {
		pcrPID = streams[0].PID
	}
	ts.WritePSI(0, PAT(1, PMTPID))
	ts.WritePSI(PMTPID, PMT(1, pcrPID, streams))
	return ts
}

// Bytes returns the stream written so far.
func (ts *TS) Bytes() []byte { return ts.buf.Bytes() }

// WritePSI writes one PSI section behind a zero pointer field.
func (ts *TS) WritePSI(pid uint16, section []byte) {
	payload := append([]byte{0}, section...)
	ts.packetize(pid, payload, false, -1)
}

// WritePES writes one PES packet carrying data with the given 90 kHz PTS.
// dts < 0 omits the DTS. pcr >= 0 adds a PCR to the first TS packet.
// key sets the random access indicator.
func (ts *TS) WritePES(pid uint16, streamID byte, pts, dts int64, data []byte, key bool, pcr int64) {
	ts.packetize(pid, PES(streamID, pts, dts, data), key, pcr)
}

// WriteRaw appends arbitrary bytes, e.g. garbage to exercise resync.
func (ts *TS) WriteRaw(b []byte) { ts.buf.Write(b) }

// packetize splits payload into TS packets on pid. The first packet gets
// the payload unit start flag and, when requested, an adaptation field
// with the random access indicator and PCR. Short tails are padded with
// adaptation field stuffing.
func (ts *TS) packetize(pid uint16, payload []byte, key bool, pcr int64) {
	first := true
	for first || len(payload) > 0 {
		var pkt [TSPacketSize]byte
		pkt[0] = 0x47
		pkt[1] = byte(pid>>8) & 0x1F
		pkt[2] = byte(pid)
		if first {
			pkt[1] |= 0x40
		}
		cc := ts.cc[pid]
		ts.cc[pid] = (cc + 1) & 0x0F
		pkt[3] = 0x10 | cc

		var af []byte
		hasAF := false
		if first && (key || pcr >= 0) {
			hasAF = true
			var flags byte
			if key {
				flags |= 0x40
			}
			af = []byte{flags}
			if pcr >= 0 {
				af[0] |= 0x10
				af = append(af, PCRBytes(pcr)...)
			}
		}
		afTotal := 0
		if hasAF {
			afTotal = 1 + len(af)
		}
		n := min(len(payload), TSPacketSize-4-afTotal)
		if stuff := TSPacketSize - 4 - afTotal - n; stuff > 0 {
			switch {
			case hasAF:
				af = append(af, bytes.Repeat([]byte{0xFF}, stuff)...)
			case stuff == 1:
				hasAF = true
			default:
				hasAF = true
				af = append([]byte{0}, bytes.Repeat([]byte{0xFF}, stuff-2)...)
			}
		}
		off := 4
		if hasAF {
			pkt[3] |= 0x20
			pkt[4] = byte(len(af))
			copy(pkt[5:], af)
			off = 5 + len(af)
		}
		copy(pkt[off:], payload[:n])
		payload = payload[n:]
		first = false
		ts.buf.Write(pkt[:])
	}
}

// PAT builds a PAT section with one program.
func PAT(program, pmtPID uint16) []byte {
	const sectionLength = 5 + 4 + 4
	data := make([]byte, 3+sectionLength)
	data[0] = 0x00
	data[1] = 0xB0
	data[2] = sectionLength
	data[3], data[4] = 0x00, 0x01
	data[5] = 0xC1
	binary.BigEndian.PutUint16(data[8:], program)
	data[10] = 0xE0 | byte(pmtPID>>8)&0x1F
	data[11] = byte(pmtPID)
	binary.BigEndian.PutUint32(data[12:], mpegts.SectionCRC32(data[:12]))
	return data
}

// PMT builds a PMT section for program.
func PMT(program, pcrPID uint16, streams []ES) []byte {
	sectionLength := 9 + 5*len(streams) + 4
	data := make([]byte, 3+sectionLength)
	data[0] = 0x02
	data[1] = 0xB0 | byte(sectionLength>>8)&0x0F
	data[2] = byte(sectionLength)
	binary.BigEndian.PutUint16(data[3:], program)
	data[5] = 0xC1
	data[8] = 0xE0 | byte(pcrPID>>8)&0x1F
	data[9] = byte(pcrPID)
	data[10] = 0xF0
	off := 12
	for _, s := range streams {
		data[off] = s.StreamType
		data[off+1] = 0xE0 | byte(s.PID>>8)&0x1F
		data[off+2] = byte(s.PID)
		data[off+3] = 0xF0
		off += 5
	}
	binary.BigEndian.PutUint32(data[off:], mpegts.SectionCRC32(data[:off]))
	return data
}

// PES builds a PES packet. The length field is left zero when the packet
// is too large for it.
func PES(streamID byte, pts, dts int64, data []byte) []byte {
	hdr := []byte{0x00, 0x00, 0x01, streamID, 0, 0, 0x80, 0x80, 5}
	if dts >= 0 {
		hdr[7] = 0xC0
		hdr[8] = 10
		hdr = append(hdr, timestampBytes(0x3, pts)...)
		hdr = append(hdr, timestampBytes(0x1, dts)...)
	} else {
		hdr = append(hdr, timestampBytes(0x2, pts)...)
	}
	if n := len(hdr) - 6 + len(data); n <= 0xFFFF {
		binary.BigEndian.PutUint16(hdr[4:], uint16(n))
	}
	return append(hdr, data...)
}

func timestampBytes(prefix byte, ts int64) []byte {
	return []byte{
		prefix<<4 | byte(ts>>29)&0x0E | 1,
		byte(ts >> 22),
		byte(ts>>14)&0xFE | 1,
		byte(ts >> 7),
		byte(ts<<1)&0xFE | 1,
	}
}

// PCRBytes encodes a 90 kHz PCR base with a zero extension.
func PCRBytes(base int64) []byte {
	return []byte{
		byte(base >> 25),
		byte(base >> 17),
		byte(base >> 9),
		byte(base >> 1),
		byte(base&1)<<7 | 0x7E,
		0,
	}
}
