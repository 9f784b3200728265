package mediatest

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Y4M builds a 4:2:0 YUV4MPEG2 stream of n frames. Every byte of frame i
// is i, so frames are distinguishable after decoding.
func Y4M(w, h, fpsNum, fpsDen, n int) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C420jpeg\n", w, h, fpsNum, fpsDen)
	cw, ch := (w+1)/2, (h+1)/2
	size := w*h + 2*cw*ch
	for i := range n {
		b.WriteString("FRAME\n")
		b.Write(bytes.Repeat([]byte{byte(i)}, size))
	}
	return b.Bytes()
}

// WAV builds a 16-bit PCM WAV file with frames sample frames. Sample k of
// channel c holds int16(k*channels + c).
func WAV(sampleRate, channels, frames int) []byte {
	data := make([]byte, frames*channels*2)
	for k := range frames {
		for c := range channels {
			v := int16(k*channels + c)
			binary.LittleEndian.PutUint16(data[(k*channels+c)*2:], uint16(v))
		}
	}
	return WAVFile(1, sampleRate, channels, 16, data)
}

// WAVFile wraps data in a RIFF/WAVE container with the given format tag.
// A LIST chunk precedes the data chunk to exercise chunk skipping.
func WAVFile(tag uint16, sampleRate, channels, bits int, data []byte) []byte {
	blockAlign := channels * bits / 8
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(4+8+16+8+4+8+len(data)))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, tag)
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&b, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&b, binary.LittleEndian, uint16(bits))

	b.WriteString("LIST")
	binary.Write(&b, binary.LittleEndian, uint32(4))
	b.WriteString("INFO")

	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}
