// Package mpegts reads MPEG transport streams. A Reader locates the first
// program through its PAT and PMT, then hands back one PES unit at a time for
// the program's audio and video streams. Sync is recovered after corrupt
// bytes, continuity counter gaps discard the damaged unit, and PCRs are
// tracked so callers can estimate duration and bit rate.
package mpegts

import "errors"

const (
	packetSize = 188
	syncByte   = 0x47

	pidPAT  = 0x0000
	pidNull = 0x1FFF
)

// ErrNoProgram is returned by ReadProgram when no usable PMT turns up.
var ErrNoProgram = errors.New("mpegts: no program map table")

// Elementary stream types recognised in PMTs.
const (
	StreamTypeMPEG1Audio = 0x03
	StreamTypeMPEG2Audio = 0x04
	StreamTypeAAC        = 0x0F
	StreamTypeH264       = 0x1B
	StreamTypeH265       = 0x24
	StreamTypeAC3        = 0x81
)

// StreamTypeInfo maps a PMT stream type to a codec name and whether the
// stream is video. ok is false for anything that is neither audio nor
// video, such as private data or SCTE-35 sections.
func StreamTypeInfo(streamType uint8) (codec string, video bool, ok bool) {
	switch streamType {
	case StreamTypeH264:
		return "h264", true, true
	case StreamTypeH265:
		return "hevc", true, true
	case StreamTypeAAC:
		return "aac", false, true
	case StreamTypeMPEG1Audio, StreamTypeMPEG2Audio:
		return "mp2", false, true
	case StreamTypeAC3:
		return "ac3", false, true
	}
	return "", false, false
}
