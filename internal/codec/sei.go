package codec

import "fmt"

const seiPicTiming = 1

// Timecode is a SMPTE 12M time taken from an H.264 pic_timing SEI clock
// timestamp.
type Timecode struct {
	Hours, Minutes, Seconds, Frames int
}

// String formats the timecode as HH:MM:SS:FF.
func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}

// picTimingTimecode returns the first clock timestamp of the pic_timing
// message in an SEI NAL unit. The SPS must carry HRD parameters and
// pic_struct_present_flag for the message to be parsable.
func picTimingTimecode(nal []byte, sps *avcSPS) (Timecode, bool) {
	if len(nal) < 2 || !sps.picStruct || !sps.hrd {
		return Timecode{}, false
	}
	rbsp := unescape(nal[1:])
	for len(rbsp) > 0 && rbsp[0] != 0x80 {
		typ, rest, ok := seiValue(rbsp)
		if !ok {
			break
		}
		size, rest, ok := seiValue(rest)
		if !ok || size > len(rest) {
			break
		}
		if typ == seiPicTiming {
			if tc, ok := parsePicTiming(rest[:size], sps); ok {
				return tc, true
			}
		}
		rbsp = rest[size:]
	}
	return Timecode{}, false
}

// seiValue reads an SEI payload type or size: a run of 0xFF bytes each
// worth 255, then a final byte.
func seiValue(b []byte) (int, []byte, bool) {
	v := 0
	for len(b) > 0 && b[0] == 0xFF {
		v += 255
		b = b[1:]
	}
	if len(b) == 0 {
		return 0, nil, false
	}
	return v + int(b[0]), b[1:], true
}

// clockTimestamps is NumClockTS for each pic_struct value.
var clockTimestamps = [16]int{1, 1, 1, 2, 2, 3, 3, 3, 3, 1, 1, 1, 1, 1, 1, 1}

func parsePicTiming(payload []byte, sps *avcSPS) (Timecode, bool) {
	r := &bitReader{buf: payload}
	r.skip(sps.cpbDelayLen + sps.dpbDelayLen)
	n := clockTimestamps[r.u(4)]
	for range n {
		if !r.flag() { // clock_timestamp_flag
			continue
		}
		r.skip(2 + 1 + 5) // ct_type, nuit_field_based_flag, counting_type
		full := r.flag()
		r.skip(2) // discontinuity_flag, cnt_dropped_flag
		tc := Timecode{Frames: int(r.u(8))}
		switch {
		case full:
			tc.Seconds, tc.Minutes, tc.Hours = int(r.u(6)), int(r.u(6)), int(r.u(5))
		case r.flag():
			tc.Seconds = int(r.u(6))
			if r.flag() {
				tc.Minutes = int(r.u(6))
				if r.flag() {
					tc.Hours = int(r.u(5))
				}
			}
		}
		if r.err != nil {
			return Timecode{}, false
		}
		return tc, true
	}
	return Timecode{}, false
}
