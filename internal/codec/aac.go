package codec

import (
	"fmt"

	"github.com/deepch/vdk/codec/aacparser"

	"github.com/zsiec/framescope/internal/demux"
	"github.com/zsiec/framescope/internal/media"
)

// aacDecoder splits an ADTS stream into frames. Like the video decoders it
// works at bitstream level: each frame becomes a coded audio block.
type aacDecoder struct {
	clock blockClock
}

func newAAC(s demux.Stream) (Decoder, error) {
	return &aacDecoder{clock: blockClock{timeBase: s.TimeBase}}, nil
}

func (d *aacDecoder) Decode(data []byte, pts int64) (int, media.Unit, error) {
	if len(data) < aacparser.ADTSHeaderLength {
		return 0, nil, fmt.Errorf("aac: truncated header: %d bytes", len(data))
	}
	cfg, _, frameLen, samples, err := aacparser.ParseADTSHeader(data)
	if err != nil {
		return 0, nil, fmt.Errorf("aac: %w", err)
	}
	if frameLen <= 0 || frameLen > len(data) {
		return 0, nil, fmt.Errorf("aac: truncated frame: %d of %d bytes", len(data), frameLen)
	}
	b := &media.AudioBlock{
		Timing: media.NewTiming(),
		Format: media.AudioFormat{
			Channels:   cfg.ChannelLayout.Count(),
			SampleRate: cfg.SampleRate,
		},
		Samples: samples,
		Coded:   append([]byte(nil), data[:frameLen]...),
	}
	b.SourceTimestamp = d.clock.next(pts, samples, cfg.SampleRate)
	return frameLen, b, nil
}
