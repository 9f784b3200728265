package mediatest

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/hevc"
	"github.com/Eyevinn/mp4ff/mp4"
)

// AACConfig is the AudioSpecificConfig of AAC-LC, 48 kHz, stereo.
var AACConfig = []byte{0x11, 0x90}

// MP4Track describes one track of a progressive MP4 built by MP4.
type MP4Track struct {
	Handler   string // "video" or "audio"
	Timescale uint32
	Entry     mp4.Box // sample entry, e.g. from AVC1Entry
	Delta     uint32  // duration of every sample
	// CTO holds per-sample composition offsets; nil writes no ctts.
	CTO []int32
	// Sync lists 1-based sync samples; nil writes no stss.
	Sync []uint32
}

// MP4Chunk is a run of samples of one track stored contiguously in mdat.
type MP4Chunk struct {
	Track   int
	Samples [][]byte
}

// MP4 builds a progressive MP4 (ftyp, moov, mdat) whose mdat holds the
// chunks in the given order. Each track's sample table is derived from its
// chunks, so interleaving chunks of different sizes yields multi-entry stsc
// tables.
func MP4(tracks []MP4Track, chunks []MP4Chunk) ([]byte, error) {
	moov := mp4.NewMoovBox()
	mvhd := mp4.CreateMvhd()
	mvhd.Timescale = 1000
	mvhd.Duration = 100
	mvhd.NextTrackID = uint32(len(tracks) + 1)
	moov.AddChild(mvhd)

	stbls := make([]*mp4.StblBox, len(tracks))
	lastRun := make([]int, len(tracks))
	for i, tr := range tracks {
		trak := mp4.CreateEmptyTrak(uint32(i+1), tr.Timescale, tr.Handler, "und")
		stbl := trak.Mdia.Minf.Stbl
		stbl.Stsd.AddChild(tr.Entry)
		if tr.CTO != nil {
			ctts := &mp4.CttsBox{}
			counts := make([]uint32, len(tr.CTO))
			for j := range counts {
				counts[j] = 1
			}
			if err := ctts.AddSampleCountsAndOffset(counts, tr.CTO); err != nil {
				return nil, fmt.Errorf("mediatest: ctts: %w", err)
			}
			stbl.AddChild(ctts)
		}
		if tr.Sync != nil {
			stbl.AddChild(&mp4.StssBox{SampleNumber: tr.Sync})
		}
		moov.AddChild(trak)
		stbls[i] = stbl
	}

	for _, c := range chunks {
		if c.Track < 0 || c.Track >= len(tracks) {
			return nil, fmt.Errorf("mediatest: chunk for unknown track %d", c.Track)
		}
		stbl := stbls[c.Track]
		chunkNr := len(stbl.Stco.ChunkOffset) + 1
		if n := len(c.Samples); n != lastRun[c.Track] {
			if err := stbl.Stsc.AddEntry(uint32(chunkNr), uint32(n), 1); err != nil {
				return nil, fmt.Errorf("mediatest: stsc: %w", err)
			}
			lastRun[c.Track] = n
		}
		for _, s := range c.Samples {
			stbl.Stsz.SampleSize = append(stbl.Stsz.SampleSize, uint32(len(s)))
		}
		stbl.Stco.ChunkOffset = append(stbl.Stco.ChunkOffset, 0)
	}
	for i, tr := range tracks {
		stbl := stbls[i]
		stbl.Stsz.SampleNumber = uint32(len(stbl.Stsz.SampleSize))
		stbl.Stts.SampleCount = []uint32{stbl.Stsz.SampleNumber}
		stbl.Stts.SampleTimeDelta = []uint32{tr.Delta}
	}

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	pos := ftyp.Size() + moov.Size() + 8
	next := make([]int, len(tracks))
	var payload []byte
	for _, c := range chunks {
		stbls[c.Track].Stco.ChunkOffset[next[c.Track]] = uint32(pos)
		next[c.Track]++
		for _, s := range c.Samples {
			payload = append(payload, s...)
			pos += uint64(len(s))
		}
	}

	var b bytes.Buffer
	for _, box := range []mp4.Box{ftyp, moov, &mp4.MdatBox{Data: payload}} {
		if err := box.Encode(&b); err != nil {
			return nil, fmt.Errorf("mediatest: encode %s: %w", box.Type(), err)
		}
	}
	return b.Bytes(), nil
}

// AVC1Entry returns an avc1 sample entry for the 256x192 SPS256x192/PPS pair.
func AVC1Entry() mp4.Box {
	avcC := &mp4.AvcCBox{DecConfRec: avc.DecConfRec{
		AVCProfileIndication: SPS256x192[1],
		ProfileCompatibility: SPS256x192[2],
		AVCLevelIndication:   SPS256x192[3],
		SPSnalus:             [][]byte{SPS256x192},
		PPSnalus:             [][]byte{PPS},
	}}
	return mp4.CreateVisualSampleEntryBox("avc1", 256, 192, avcC)
}

// HVC1Entry returns an hvc1 sample entry whose hvcC carries the given
// parameter sets.
func HVC1Entry(width, height uint16, vps, sps, pps []byte) mp4.Box {
	hvcC := &mp4.HvcCBox{DecConfRec: hevc.DecConfRec{
		ConfigurationVersion: 1,
		GeneralProfileIDC:    1,
		ChromaFormatIDC:      1,
		LengthSizeMinusOne:   3,
		NaluArrays: []hevc.NaluArray{
			hevc.NewNaluArray(true, hevc.NALU_VPS, [][]byte{vps}),
			hevc.NewNaluArray(true, hevc.NALU_SPS, [][]byte{sps}),
			hevc.NewNaluArray(true, hevc.NALU_PPS, [][]byte{pps}),
		},
	}}
	return mp4.CreateVisualSampleEntryBox("hvc1", width, height, hvcC)
}

// MP4AEntry returns an mp4a sample entry carrying AACConfig.
func MP4AEntry() mp4.Box {
	return mp4.CreateAudioSampleEntryBox("mp4a", 2, 16, 48000, mp4.CreateEsdsBox(AACConfig))
}

// AVCC rewrites NAL units as 4-byte length-prefixed sample data.
func AVCC(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, byte(len(n)>>24), byte(len(n)>>16), byte(len(n)>>8), byte(len(n)))
		out = append(out, n...)
	}
	return out
}

// AVCAACMP4 builds a progressive MP4 with a 256x192 H.264 track of three
// samples (IDRSlice then two PSlice at 90 kHz, one keyframe, composition
// offsets 3000, 6000 and 0) and a 48 kHz AAC track of two 32-byte frames
// taken from ADTSFrame. mdat holds the chunks [v1 v2] [a1] [v3] [a2].
func AVCAACMP4() ([]byte, error) {
	aac := ADTSFrame(2, 32)[7:]
	return MP4(
		[]MP4Track{
			{Handler: "video", Timescale: 90000, Entry: AVC1Entry(), Delta: 3000,
				CTO: []int32{3000, 6000, 0}, Sync: []uint32{1}},
			{Handler: "audio", Timescale: 48000, Entry: MP4AEntry(), Delta: 1024},
		},
		[]MP4Chunk{
			{Track: 0, Samples: [][]byte{AVCC(IDRSlice), AVCC(PSlice)}},
			{Track: 1, Samples: [][]byte{aac}},
			{Track: 0, Samples: [][]byte{AVCC(PSlice)}},
			{Track: 1, Samples: [][]byte{aac}},
		},
	)
}
