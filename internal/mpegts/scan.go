package mpegts

// ScanPCR walks the 188-byte packets in data, starting at the first
// position where three consecutive sync bytes line up, and returns the first
// and last PCR bases found on pid. A negative pid accepts PCRs from any PID.
func ScanPCR(data []byte, pid int) (first, last int64, ok bool) {
	start := alignment(data)
	if start < 0 {
		return 0, 0, false
	}
	for off := start; off+packetSize <= len(data); off += packetSize {
		if data[off] != syncByte {
			continue
		}
		h, _, err := parseHeader(data[off : off+packetSize])
		if err != nil || h.pcr < 0 {
			continue
		}
		if pid >= 0 && int(h.pid) != pid {
			continue
		}
		if !ok {
			first, ok = h.pcr, true
		}
		last = h.pcr
	}
	return first, last, ok
}

// LooksLikeTS reports whether data starts with aligned transport stream
// packets.
func LooksLikeTS(data []byte) bool {
	switch {
	case len(data) >= 2*packetSize+1:
		return data[0] == syncByte && data[packetSize] == syncByte && data[2*packetSize] == syncByte
	case len(data) >= packetSize+1:
		return data[0] == syncByte && data[packetSize] == syncByte
	default:
		return len(data) > 0 && data[0] == syncByte
	}
}

func alignment(data []byte) int {
	for i := 0; i < packetSize && i < len(data); i++ {
		if LooksLikeTS(data[i:]) {
			return i
		}
	}
	return -1
}

// PCRDurationMicros converts a PCR base span to microseconds, handling one
// 33-bit wrap.
func PCRDurationMicros(first, last int64) int64 {
	d := last - first
	if d < 0 {
		d += 1 << 33
	}
	return d * 1000000 / 90000
}
