package mediatest

// SPS256x192 is an H.264 Main profile SPS for a 256x192 picture.
var SPS256x192 = []byte{
	0x67, 0x4d, 0x40, 0x1f, 0xb9, 0x08, 0x08, 0x0c,
	0xd8, 0x0b, 0x50, 0x10, 0x10, 0x14, 0x00, 0x00,
	0x0f, 0xa4, 0x00, 0x02, 0xee, 0x03, 0x81, 0x80,
	0x04, 0x93, 0xc0, 0x02, 0x49, 0xe8, 0xa0, 0xc0,
	0x3a, 0x8e, 0x18, 0xc9,
}

// PPS is a minimal H.264 PPS NAL unit.
var PPS = []byte{0x68, 0xee, 0x3c, 0x80}

// IDRSlice and PSlice are the slice NAL units AccessUnit emits.
var (
	IDRSlice = []byte{0x65, 0x88, 0x84, 0x00, 0x33}
	PSlice   = []byte{0x41, 0x9a, 0x02, 0x04, 0x11}
)

var startCode = []byte{0, 0, 0, 1}

// AccessUnit builds an Annex B H.264 access unit. A keyframe carries
// SPS, PPS and an IDR slice; otherwise a single non-IDR slice. Extra NAL
// units (e.g. SEI) are inserted before the slice.
func AccessUnit(key bool, extra ...[]byte) []byte {
	var au []byte
	if key {
		au = appendNAL(au, SPS256x192)
		au = appendNAL(au, PPS)
	}
	for _, nal := range extra {
		au = appendNAL(au, nal)
	}
	if key {
		return appendNAL(au, IDRSlice)
	}
	return appendNAL(au, PSlice)
}

func appendNAL(dst, nal []byte) []byte {
	dst = append(dst, startCode...)
	return append(dst, nal...)
}

// ADTSFrame builds one AAC-LC ADTS frame at 48 kHz with the given channel
// count and payload size.
func ADTSFrame(channels, payload int) []byte {
	frameLen := 7 + payload
	hdr := []byte{
		0xFF,
		0xF1,
		1<<6 | 3<<2 | byte(channels>>2)&0x01,
		byte(channels&0x03)<<6 | byte(frameLen>>11)&0x03,
		byte(frameLen >> 3),
		byte(frameLen&0x07)<<5 | 0x1F,
		0xFC,
	}
	out := append(hdr, make([]byte, payload)...)
	for i := 7; i < len(out); i++ {
		out[i] = byte(i)
	}
	return out
}
