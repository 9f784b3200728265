package codec

import (
	"github.com/zsiec/ccx"

	"github.com/zsiec/framescope/internal/media"
)

// captionDecoder extracts CEA-608 and CEA-708 caption text from the SEI
// user data of successive pictures of one video stream. 608 channels are
// reported as 1-4, 708 services as 7-12.
type captionDecoder struct {
	cea608 map[int]*ccx.CEA608Decoder
	cea708 map[int]*ccx.CEA708Service
	dtvcc  []byte
	frames int64

	lastCtrl      [2][2]byte
	lastWasCtrl   [2]bool
	lastCtrlFrame [2]int64
}

func newCaptionDecoder() *captionDecoder {
	d := &captionDecoder{
		cea608: make(map[int]*ccx.CEA608Decoder, 4),
		cea708: make(map[int]*ccx.CEA708Service, 6),
	}
	for ch := 1; ch <= 4; ch++ {
		d.cea608[ch] = ccx.NewCEA608Decoder()
	}
	for svc := 1; svc <= 6; svc++ {
		d.cea708[svc] = ccx.NewCEA708Service()
	}
	return d
}

// nextPicture advances the picture counter used to drop redundant 608
// control code pairs.
func (d *captionDecoder) nextPicture() { d.frames++ }

// decodeSEI feeds one SEI NAL unit and returns the caption text completed
// by it.
func (d *captionDecoder) decodeSEI(sei []byte) []media.Caption {
	cd := ccx.ExtractCaptions(sei)
	if cd == nil {
		return nil
	}

	var out []media.Caption
	for _, pair := range cd.CC608Pairs {
		cc1, cc2 := pair.Data[0], pair.Data[1]

		// Control codes are transmitted twice; drop the repeat.
		f := pair.Field
		if cc1 >= 0x10 && cc1 <= 0x1F {
			cp := [2]byte{cc1, cc2}
			if d.lastWasCtrl[f] && d.lastCtrl[f] == cp && d.frames-d.lastCtrlFrame[f] <= 2 {
				d.lastWasCtrl[f] = false
				continue
			}
			d.lastCtrl[f] = cp
			d.lastWasCtrl[f] = true
			d.lastCtrlFrame[f] = d.frames
		} else {
			d.lastWasCtrl[f] = false
		}

		dec := d.cea608[pair.Channel]
		if dec == nil {
			continue
		}
		if text := dec.Decode(cc1, cc2); text != "" {
			out = append(out, media.Caption{Channel: pair.Channel, Text: text})
		}
	}

	for _, t := range cd.DTVCC {
		if t.Start {
			out = append(out, d.drainDTVCC()...)
			d.dtvcc = d.dtvcc[:0]
		}
		d.dtvcc = append(d.dtvcc, t.Data[0], t.Data[1])
	}
	return out
}

func (d *captionDecoder) drainDTVCC() []media.Caption {
	if len(d.dtvcc) < 1 {
		return nil
	}
	size := ccx.DTVCCPacketSize(d.dtvcc[0])
	if len(d.dtvcc) < size {
		return nil
	}

	var out []media.Caption
	for _, block := range ccx.ParseDTVCCPacket(d.dtvcc[:size]) {
		svc := d.cea708[block.ServiceNum]
		if svc == nil {
			continue
		}
		if svc.ProcessBlock(block.Data) {
			if text := svc.DisplayText(); text != "" {
				out = append(out, media.Caption{Channel: block.ServiceNum + 6, Text: text})
			}
		}
	}
	d.dtvcc = d.dtvcc[size:]
	return out
}
