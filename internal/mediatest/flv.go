package mediatest

import (
	"bytes"
	"fmt"

	flv "github.com/yapingcat/gomedia/go-flv"
)

// FLVFrame is one Annex B H.264 access unit or ADTS AAC frame. PTS and DTS
// are in milliseconds.
type FLVFrame struct {
	Audio    bool
	Data     []byte
	PTS, DTS uint32
}

// FLV muxes frames, in order, into an FLV file announcing audio and video.
// The first frame of each kind is preceded by its sequence header tag.
func FLV(frames ...FLVFrame) ([]byte, error) {
	var b bytes.Buffer
	w := flv.CreateFlvWriter(&b)
	if err := w.WriteFlvHeader(); err != nil {
		return nil, fmt.Errorf("mediatest: flv header: %w", err)
	}
	for _, f := range frames {
		var err error
		if f.Audio {
			err = w.WriteAAC(f.Data, f.PTS, f.DTS)
		} else {
			err = w.WriteH264(f.Data, f.PTS, f.DTS)
		}
		if err != nil {
			return nil, fmt.Errorf("mediatest: flv frame at %d ms: %w", f.DTS, err)
		}
	}
	return b.Bytes(), nil
}
