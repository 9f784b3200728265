package codec

import "errors"

var errTruncated = errors.New("codec: truncated bitstream")

// bitReader reads MSB-first fields from an RBSP. A read past the end
// yields zero and latches err, so parsers check err once per section
// instead of after every field.
type bitReader struct {
	buf []byte
	pos int // in bits
	err error
}

func (r *bitReader) u(n int) uint {
	var v uint
	for range n {
		if r.pos >= 8*len(r.buf) {
			r.err = errTruncated
			return 0
		}
		v = v<<1 | uint(r.buf[r.pos>>3]>>(7-r.pos&7)&1)
		r.pos++
	}
	return v
}

func (r *bitReader) flag() bool { return r.u(1) == 1 }

func (r *bitReader) skip(n int) { r.u(n) }

// ue reads an unsigned Exp-Golomb code.
func (r *bitReader) ue() uint {
	zeros := 0
	for !r.flag() {
		if r.err != nil {
			return 0
		}
		if zeros++; zeros > 31 {
			r.err = errTruncated
			return 0
		}
	}
	return 1<<zeros - 1 + r.u(zeros)
}

// se reads a signed Exp-Golomb code.
func (r *bitReader) se() int {
	v := r.ue()
	if v&1 == 1 {
		return int(v+1) / 2
	}
	return -int(v / 2)
}

// unescape strips emulation prevention bytes, turning a NAL unit payload
// into its RBSP.
func unescape(nal []byte) []byte {
	out := make([]byte, 0, len(nal))
	zeros := 0
	for _, b := range nal {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
