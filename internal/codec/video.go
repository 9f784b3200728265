package codec

import (
	"errors"

	"github.com/deepch/vdk/codec/h265parser"

	"github.com/zsiec/framescope/internal/demux"
	"github.com/zsiec/framescope/internal/media"
)

var errNoNALUnits = errors.New("codec: no NAL units in access unit")

// accessUnitDecoder is a bitstream-level H.264/H.265 decoder. It does not
// reconstruct pixels: every access unit becomes one coded picture that
// carries the SPS geometry, keyframe flag, captions and timecode.
type accessUnitDecoder struct {
	hevc     bool
	format   media.ImageFormat
	sps      avcSPS
	captions *captionDecoder
}

func newH264(s demux.Stream) (Decoder, error) {
	return newAccessUnitDecoder(s, false), nil
}

func newHEVC(s demux.Stream) (Decoder, error) {
	return newAccessUnitDecoder(s, true), nil
}

func newAccessUnitDecoder(s demux.Stream, hevc bool) *accessUnitDecoder {
	return &accessUnitDecoder{
		hevc:     hevc,
		format:   media.ImageFormat{Width: s.Image.Width, Height: s.Image.Height},
		captions: newCaptionDecoder(),
	}
}

// Decode consumes the whole packet as one access unit.
func (d *accessUnitDecoder) Decode(data []byte, pts int64) (int, media.Unit, error) {
	pic := &media.Picture{Timing: media.NewTiming()}
	var ok bool
	if d.hevc {
		ok = d.scanHEVC(data, pic)
	} else {
		ok = d.scanH264(data, pic)
	}
	if !ok {
		return len(data), nil, errNoNALUnits
	}
	d.captions.nextPicture()
	pic.Format = d.format
	pic.Coded = append([]byte(nil), data...)
	pic.SourceTimestamp = pts
	return len(data), pic, nil
}

func (d *accessUnitDecoder) scanH264(data []byte, pic *media.Picture) bool {
	units := h264Units(data)
	if len(units) == 0 {
		return false
	}
	for _, u := range units {
		switch u.typ {
		case nalSPS:
			pic.Keyframe = true
			if sps, err := parseAVCSPS(u.data); err == nil {
				d.sps = sps
				d.format.Width, d.format.Height = sps.width, sps.height
			}
		case nalIDR:
			pic.Keyframe = true
		case nalSEI:
			if tc, ok := picTimingTimecode(u.data, &d.sps); ok {
				pic.Timecode = tc.String()
			}
			pic.Captions = append(pic.Captions, d.captions.decodeSEI(u.data)...)
		}
	}
	return true
}

func (d *accessUnitDecoder) scanHEVC(data []byte, pic *media.Picture) bool {
	units := hevcUnits(data)
	if len(units) == 0 {
		return false
	}
	for _, u := range units {
		switch {
		case u.typ == h265parser.NAL_UNIT_SPS:
			if sps, err := parseHEVCSPS(u.data); err == nil {
				d.format.Width, d.format.Height = sps.width, sps.height
			}
		case hevcRandomAccess(u.typ):
			pic.Keyframe = true
		case u.typ == h265parser.NAL_UNIT_PREFIX_SEI:
			pic.Captions = append(pic.Captions, d.captions.decodeSEI(u.data)...)
		}
	}
	return true
}
