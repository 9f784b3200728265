package mpegts

import (
	"encoding/binary"
	"fmt"
)

// PES is one reassembled packetized elementary stream packet.
type PES struct {
	PID      uint16
	StreamID uint8
	// PTS and DTS are 33-bit 90 kHz values, meaningful only when the
	// matching Has flag is set.
	PTS, DTS       int64
	HasPTS, HasDTS bool
	// RandomAccess is the random access indicator of the first transport
	// packet of the unit.
	RandomAccess bool
	Data         []byte
}

// Timestamps returns the unit's PTS and DTS, filling a missing one from the
// other. ok is false when the header carries neither.
func (p *PES) Timestamps() (pts, dts int64, ok bool) {
	switch {
	case p.HasPTS && p.HasDTS:
		return p.PTS, p.DTS, true
	case p.HasPTS:
		return p.PTS, p.PTS, true
	case p.HasDTS:
		return p.DTS, p.DTS, true
	}
	return 0, 0, false
}

// pesBuffer collects the transport payloads of one PES unit.
type pesBuffer struct {
	data         []byte
	randomAccess bool
	// size is the full unit size announced by PES_packet_length, or 0
	// while unknown or for unbounded video units.
	size int
}

func (b *pesBuffer) start(payload []byte, randomAccess bool) {
	b.data = append(b.data[:0:0], payload...)
	b.randomAccess = randomAccess
	b.size = 0
	b.sizeFromHeader()
}

func (b *pesBuffer) add(payload []byte) {
	b.data = append(b.data, payload...)
	if b.size == 0 {
		b.sizeFromHeader()
	}
}

func (b *pesBuffer) sizeFromHeader() {
	if len(b.data) >= 6 {
		if n := int(binary.BigEndian.Uint16(b.data[4:6])); n > 0 {
			b.size = 6 + n
		}
	}
}

// full reports whether a bounded unit has all its bytes.
func (b *pesBuffer) full() bool { return b.size > 0 && len(b.data) >= b.size }

func (b *pesBuffer) empty() bool { return len(b.data) == 0 }

// take returns the buffered unit and resets the buffer.
func (b *pesBuffer) take() (data []byte, randomAccess bool) {
	data, randomAccess = b.data, b.randomAccess
	if b.size > 0 && len(data) > b.size {
		data = data[:b.size]
	}
	b.data, b.size, b.randomAccess = nil, 0, false
	return data, randomAccess
}

// streamHasHeader reports whether PES packets of streamID carry the
// optional header with flags and timestamps.
func streamHasHeader(streamID uint8) bool {
	switch streamID {
	case 0xBC, 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return false
	}
	return true
}

// parsePES decodes a complete PES unit.
func parsePES(pid uint16, raw []byte, randomAccess bool) (*PES, error) {
	if len(raw) < 6 || raw[0] != 0 || raw[1] != 0 || raw[2] != 1 {
		return nil, fmt.Errorf("mpegts: pid 0x%04X: missing PES start code", pid)
	}
	p := &PES{PID: pid, StreamID: raw[3], RandomAccess: randomAccess}
	if !streamHasHeader(p.StreamID) {
		p.Data = raw[6:]
		return p, nil
	}
	if len(raw) < 9 || raw[6]&0xC0 != 0x80 {
		return nil, fmt.Errorf("mpegts: pid 0x%04X: bad PES header", pid)
	}
	end := 9 + int(raw[8])
	if end > len(raw) {
		return nil, fmt.Errorf("mpegts: pid 0x%04X: PES header of %d bytes overruns unit", pid, raw[8])
	}
	opt := raw[9:end]
	switch raw[7] >> 6 {
	case 0x2:
		if len(opt) < 5 {
			return nil, fmt.Errorf("mpegts: pid 0x%04X: truncated PTS", pid)
		}
		p.PTS, p.HasPTS = timestamp(opt), true
	case 0x3:
		if len(opt) < 10 {
			return nil, fmt.Errorf("mpegts: pid 0x%04X: truncated PTS/DTS", pid)
		}
		p.PTS, p.HasPTS = timestamp(opt), true
		p.DTS, p.HasDTS = timestamp(opt[5:]), true
	}
	p.Data = raw[end:]
	return p, nil
}

// timestamp decodes a 5-byte PTS or DTS field, marker bits included.
func timestamp(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1)
}
