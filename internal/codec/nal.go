package codec

import (
	"bytes"

	"github.com/deepch/vdk/codec/h265parser"
)

// H.264 NAL unit types.
const (
	nalSlice = 1
	nalIDR   = 5
	nalSEI   = 6
	nalSPS   = 7
	nalPPS   = 8
)

var startCode = []byte{0, 0, 1}

// nalUnit is one NAL unit with its header, without the start code.
type nalUnit struct {
	typ  byte
	data []byte
}

// splitAnnexB cuts an Annex B byte stream at its start codes. A zero byte
// in front of a three-byte start code, like any other trailing zeros, is
// trimmed from the preceding unit. Bytes before the first start code are
// ignored.
func splitAnnexB(b []byte) [][]byte {
	var out [][]byte
	i := bytes.Index(b, startCode)
	for i >= 0 {
		b = b[i+len(startCode):]
		i = bytes.Index(b, startCode)
		unit := b
		if i >= 0 {
			unit = b[:i]
		}
		if unit = bytes.TrimRight(unit, "\x00"); len(unit) > 0 {
			out = append(out, unit)
		}
	}
	return out
}

// h264Units splits an Annex B H.264 access unit.
func h264Units(b []byte) []nalUnit {
	raw := splitAnnexB(b)
	units := make([]nalUnit, 0, len(raw))
	for _, u := range raw {
		units = append(units, nalUnit{typ: u[0] & 0x1F, data: u})
	}
	return units
}

// hevcUnits splits an Annex B HEVC access unit. Units shorter than the
// two-byte HEVC header are dropped.
func hevcUnits(b []byte) []nalUnit {
	raw := splitAnnexB(b)
	units := make([]nalUnit, 0, len(raw))
	for _, u := range raw {
		if len(u) < 2 {
			continue
		}
		units = append(units, nalUnit{typ: u[0] >> 1 & 0x3F, data: u})
	}
	return units
}

// hevcRandomAccess reports whether an HEVC NAL type is an IRAP picture:
// BLA, IDR or CRA.
func hevcRandomAccess(typ byte) bool {
	switch typ {
	case h265parser.NAL_UNIT_CODED_SLICE_BLA_W_LP,
		h265parser.NAL_UNIT_CODED_SLICE_BLA_W_RADL,
		h265parser.NAL_UNIT_CODED_SLICE_BLA_N_LP,
		h265parser.NAL_UNIT_CODED_SLICE_IDR_W_RADL,
		h265parser.NAL_UNIT_CODED_SLICE_IDR_N_LP,
		h265parser.NAL_UNIT_CODED_SLICE_CRA:
		return true
	}
	return false
}
