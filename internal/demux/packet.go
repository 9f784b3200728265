package demux

import (
	"errors"
	"io"
)

// Packet is a reusable read buffer for one container packet that decoders
// consume incrementally. It is not safe for concurrent use.
type Packet struct {
	raw      RawPacket
	off      int
	complete bool
	err      error
}

// NewPacket returns an empty packet.
func NewPacket() *Packet { return &Packet{} }

// Read replaces the packet contents with the next packet from c. halted is
// true when c's source has stopped accepting reads; no read is attempted in
// that case. ok is false on end of input, halt or read error.
func (p *Packet) Read(c *Container) (ok, halted bool) {
	p.complete = false
	p.off = 0
	p.err = nil
	p.raw.Data = p.raw.Data[:0]
	if c.IsHalted() {
		return false, true
	}
	if err := c.readPacket(&p.raw); err != nil {
		if !errors.Is(err, io.EOF) {
			p.err = err
		}
		return false, c.IsHalted()
	}
	p.complete = true
	return true, false
}

// Consume advances past n bytes, clamped to the remaining size. A
// negative n is a no-op.
func (p *Packet) Consume(n int) {
	if n <= 0 {
		return
	}
	p.off += min(n, p.Size())
}

// Size returns the number of unconsumed bytes.
func (p *Packet) Size() int {
	if !p.complete {
		return 0
	}
	return len(p.raw.Data) - p.off
}

// Data returns the unconsumed bytes.
func (p *Packet) Data() []byte {
	if !p.complete {
		return nil
	}
	return p.raw.Data[p.off:]
}

// Empty reports whether there is no decode work left in the packet.
func (p *Packet) Empty() bool { return !p.complete || p.Size() == 0 }

// StreamIndex returns the index of the stream the packet belongs to.
func (p *Packet) StreamIndex() int { return p.raw.StreamIndex }

// PTS returns the presentation timestamp in stream time base ticks.
func (p *Packet) PTS() int64 { return p.raw.PTS }

// DTS returns the decode timestamp in stream time base ticks.
func (p *Packet) DTS() int64 { return p.raw.DTS }

// Keyframe reports whether the container flagged the packet as a random
// access point.
func (p *Packet) Keyframe() bool { return p.raw.Keyframe }

// Err returns the last read error other than end of input.
func (p *Packet) Err() error { return p.err }

// PacketOf returns a complete packet holding raw, for feeding decoders with
// data that did not come from a Container.
func PacketOf(raw RawPacket) *Packet {
	return &Packet{raw: raw, complete: true}
}
