package mpegts

import "fmt"

// header is the fixed part of a transport packet plus the adaptation field
// flags the reader cares about.
type header struct {
	pid           uint16
	cc            uint8
	unitStart     bool
	transportErr  bool
	hasPayload    bool
	discontinuity bool
	randomAccess  bool
	// pcr is the 90 kHz PCR base, or -1 when the packet carries none.
	pcr int64
}

// parseHeader decodes the header of the 188-byte packet pkt and returns the
// payload, which aliases pkt.
func parseHeader(pkt []byte) (header, []byte, error) {
	if len(pkt) != packetSize {
		return header{}, nil, fmt.Errorf("mpegts: packet is %d bytes", len(pkt))
	}
	if pkt[0] != syncByte {
		return header{}, nil, fmt.Errorf("mpegts: sync byte 0x%02X", pkt[0])
	}
	h := header{
		pid:          uint16(pkt[1]&0x1F)<<8 | uint16(pkt[2]),
		cc:           pkt[3] & 0x0F,
		unitStart:    pkt[1]&0x40 != 0,
		transportErr: pkt[1]&0x80 != 0,
		hasPayload:   pkt[3]&0x10 != 0,
		pcr:          -1,
	}

	body := pkt[4:]
	if pkt[3]&0x20 != 0 {
		afLen := int(body[0])
		if afLen > len(body)-1 {
			return h, nil, fmt.Errorf("mpegts: pid 0x%04X: adaptation field of %d bytes", h.pid, afLen)
		}
		if afLen > 0 {
			af := body[1 : 1+afLen]
			h.discontinuity = af[0]&0x80 != 0
			h.randomAccess = af[0]&0x40 != 0
			if af[0]&0x10 != 0 && len(af) >= 7 {
				h.pcr = pcrBase(af[1:7])
			}
		}
		body = body[1+afLen:]
	}
	if !h.hasPayload {
		return h, nil, nil
	}
	return h, body, nil
}

// pcrBase decodes the 33-bit base of a 6-byte program clock reference. The
// 27 MHz extension is dropped.
func pcrBase(b []byte) int64 {
	return int64(b[0])<<25 | int64(b[1])<<17 | int64(b[2])<<9 | int64(b[3])<<1 | int64(b[4])>>7
}
