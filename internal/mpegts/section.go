package mpegts

import (
	"encoding/binary"
	"fmt"
)

const (
	tablePAT = 0x00
	tablePMT = 0x02
)

// Program is a PMT: one program's PCR PID and its elementary streams, in
// PMT order.
type Program struct {
	Number  uint16
	PMTPID  uint16
	PCRPID  uint16
	Version uint8
	Streams []ElementaryStream
}

// ElementaryStream is one PMT entry.
type ElementaryStream struct {
	PID  uint16
	Type uint8
}

// sectionBuffer reassembles the PSI sections carried on one PID.
type sectionBuffer struct {
	// buf holds the bytes of the section being assembled. nil means the
	// next section start has not been seen yet.
	buf []byte
}

// push adds a packet payload and returns the sections it completes.
func (s *sectionBuffer) push(unitStart bool, p []byte) [][]byte {
	var out [][]byte
	if unitStart {
		if len(p) == 0 {
			s.buf = nil
			return nil
		}
		ptr := int(p[0])
		p = p[1:]
		if ptr > len(p) {
			s.buf = nil
			return nil
		}
		if s.buf != nil {
			s.buf = append(s.buf, p[:ptr]...)
			out = s.take(out)
		}
		s.buf = append(make([]byte, 0, len(p)-ptr), p[ptr:]...)
	} else {
		if s.buf == nil {
			return nil
		}
		s.buf = append(s.buf, p...)
	}
	return s.take(out)
}

// take moves complete sections off the front of the buffer. A 0xFF table
// id is stuffing and ends the packet.
func (s *sectionBuffer) take(out [][]byte) [][]byte {
	for len(s.buf) >= 3 && s.buf[0] != 0xFF {
		n := 3 + int(binary.BigEndian.Uint16(s.buf[1:3])&0x0FFF)
		if len(s.buf) < n {
			return out
		}
		out = append(out, s.buf[:n:n])
		s.buf = s.buf[n:]
	}
	if len(s.buf) == 0 || s.buf[0] == 0xFF {
		s.buf = nil
	}
	return out
}

// checkSection validates the long section header and CRC of sec and returns
// the table body between the header and the CRC.
func checkSection(sec []byte, table byte) ([]byte, error) {
	if len(sec) < 12 {
		return nil, fmt.Errorf("mpegts: table 0x%02X: section of %d bytes", table, len(sec))
	}
	if sec[0] != table {
		return nil, fmt.Errorf("mpegts: table id 0x%02X, want 0x%02X", sec[0], table)
	}
	if sec[1]&0x80 == 0 {
		return nil, fmt.Errorf("mpegts: table 0x%02X: short section syntax", table)
	}
	if SectionCRC32(sec) != 0 {
		return nil, fmt.Errorf("mpegts: table 0x%02X: CRC mismatch", table)
	}
	return sec[8 : len(sec)-4], nil
}

// current reports whether a section applies now rather than next.
func current(sec []byte) bool { return sec[5]&0x01 != 0 }

// parsePAT returns the PMT PID of the first program in a PAT section.
// Program 0 points at the network PID and is skipped.
func parsePAT(sec []byte) (number, pmtPID uint16, err error) {
	body, err := checkSection(sec, tablePAT)
	if err != nil {
		return 0, 0, err
	}
	for ; len(body) >= 4; body = body[4:] {
		number = binary.BigEndian.Uint16(body)
		if number == 0 {
			continue
		}
		return number, binary.BigEndian.Uint16(body[2:]) & 0x1FFF, nil
	}
	return 0, 0, fmt.Errorf("mpegts: PAT lists no program")
}

// parsePMT decodes a PMT section.
func parsePMT(sec []byte, pmtPID uint16) (*Program, error) {
	body, err := checkSection(sec, tablePMT)
	if err != nil {
		return nil, err
	}
	if len(body) < 4 {
		return nil, fmt.Errorf("mpegts: PMT body of %d bytes", len(body))
	}
	prog := &Program{
		Number:  binary.BigEndian.Uint16(sec[3:5]),
		PMTPID:  pmtPID,
		PCRPID:  binary.BigEndian.Uint16(body) & 0x1FFF,
		Version: sec[5] >> 1 & 0x1F,
	}
	infoLen := int(binary.BigEndian.Uint16(body[2:]) & 0x0FFF)
	if 4+infoLen > len(body) {
		return nil, fmt.Errorf("mpegts: PMT program info of %d bytes overruns section", infoLen)
	}
	for es := body[4+infoLen:]; len(es) > 0; {
		if len(es) < 5 {
			return nil, fmt.Errorf("mpegts: PMT stream entry of %d bytes", len(es))
		}
		n := 5 + int(binary.BigEndian.Uint16(es[3:5])&0x0FFF)
		if n > len(es) {
			return nil, fmt.Errorf("mpegts: PMT stream 0x%04X: descriptors overrun section", binary.BigEndian.Uint16(es[1:3])&0x1FFF)
		}
		prog.Streams = append(prog.Streams, ElementaryStream{
			PID:  binary.BigEndian.Uint16(es[1:3]) & 0x1FFF,
			Type: es[0],
		})
		es = es[n:]
	}
	return prog, nil
}
