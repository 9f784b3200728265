package mpegts

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"slices"
)

// Counters report what a Reader has consumed so far.
type Counters struct {
	Bytes   int64
	Packets int64
	// Resyncs counts runs of bytes skipped to find a sync byte.
	Resyncs int
	// ContinuityErrors counts continuity counter gaps. Each one discards
	// the unit being assembled on that PID.
	ContinuityErrors int
	// Invalid counts packets, sections and PES units that failed to parse.
	Invalid int
}

// Reader pulls PES units for the audio and video streams of the first
// program of a transport stream. It is not safe for concurrent use.
type Reader struct {
	br  *bufio.Reader
	pkt [packetSize]byte

	synced   bool
	skipping bool
	done     bool
	counters Counters

	pmtPID  int
	program *Program
	psi     map[uint16]*sectionBuffer
	units   map[uint16]*pesBuffer
	cc      map[uint16]uint8
	ready   []*PES

	pcrFirst, pcrLast int64
	pcrSeen           bool
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br:     bufio.NewReaderSize(r, 64*packetSize),
		pmtPID: -1,
		psi:    make(map[uint16]*sectionBuffer),
		units:  make(map[uint16]*pesBuffer),
		cc:     make(map[uint16]uint8),
	}
}

// Program returns the current program, or nil before a PMT has been read.
func (r *Reader) Program() *Program { return r.program }

// Counters returns a copy of the read counters.
func (r *Reader) Counters() Counters { return r.counters }

// PCRRange returns the first and last PCR bases seen on the program's PCR
// PID. Before the PMT is known, PCRs on any PID count.
func (r *Reader) PCRRange() (first, last int64, ok bool) {
	return r.pcrFirst, r.pcrLast, r.pcrSeen
}

// ReadProgram reads packets until the first PMT has been parsed, giving up
// after maxPackets packets. No PES unit is lost: assembly only starts for
// the streams a PMT lists.
func (r *Reader) ReadProgram(maxPackets int) (*Program, error) {
	for n := 0; r.program == nil; n++ {
		if n >= maxPackets {
			return nil, ErrNoProgram
		}
		if err := r.readPacket(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoProgram
			}
			return nil, err
		}
		r.handle(r.pkt[:])
	}
	return r.program, nil
}

// Next returns the next PES unit. Units of different PIDs come back in the
// order they complete; at end of input the partial units left over are
// returned by ascending PID, then io.EOF.
func (r *Reader) Next() (*PES, error) {
	for len(r.ready) == 0 {
		if r.done {
			return nil, io.EOF
		}
		if err := r.readPacket(); err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			r.done = true
			r.drain()
			continue
		}
		r.handle(r.pkt[:])
	}
	p := r.ready[0]
	r.ready[0] = nil
	r.ready = r.ready[1:]
	return p, nil
}

// readPacket reads the next packet into r.pkt. Out of sync, a candidate
// sync byte is only accepted when another one follows a packet later.
func (r *Reader) readPacket() error {
	for {
		want := packetSize
		if !r.synced {
			want = 2 * packetSize
		}
		b, err := r.br.Peek(want)
		if len(b) < packetSize {
			if errors.Is(err, io.EOF) {
				r.discard(len(b))
				return io.EOF
			}
			return err
		}
		if b[0] == syncByte && (r.synced || len(b) < 2*packetSize || b[packetSize] == syncByte) {
			copy(r.pkt[:], b[:packetSize])
			r.discard(packetSize)
			r.synced, r.skipping = true, false
			r.counters.Packets++
			return nil
		}
		if !r.skipping {
			r.counters.Resyncs++
			r.skipping = true
		}
		r.synced = false
		skip := len(b)
		if i := bytes.IndexByte(b[1:], syncByte); i >= 0 {
			skip = i + 1
		}
		r.discard(skip)
	}
}

func (r *Reader) discard(n int) {
	d, _ := r.br.Discard(n)
	r.counters.Bytes += int64(d)
}

func (r *Reader) handle(pkt []byte) {
	h, payload, err := parseHeader(pkt)
	if err != nil {
		r.counters.Invalid++
		return
	}
	if h.pid == pidNull {
		return
	}
	if h.pcr >= 0 && (r.program == nil || h.pid == r.program.PCRPID) {
		r.trackPCR(h.pcr)
	}
	if h.transportErr {
		r.counters.Invalid++
		r.abandon(h.pid)
		return
	}
	if !h.hasPayload {
		return
	}
	if !r.continuous(h) {
		return
	}

	switch {
	case h.pid == pidPAT || int(h.pid) == r.pmtPID:
		r.handlePSI(h, payload)
	case r.units[h.pid] != nil:
		r.handlePES(h, payload)
	}
}

// continuous checks the continuity counter of a payload-carrying packet. It
// returns false for a duplicate, which must be dropped. A gap discards the
// unit in progress, and the packet itself is still used.
func (r *Reader) continuous(h header) bool {
	last, seen := r.cc[h.pid]
	r.cc[h.pid] = h.cc
	if !seen || h.discontinuity {
		return true
	}
	switch h.cc {
	case last:
		return false
	case (last + 1) & 0x0F:
		return true
	}
	r.counters.ContinuityErrors++
	r.abandon(h.pid)
	return true
}

// abandon drops whatever was being assembled on pid.
func (r *Reader) abandon(pid uint16) {
	if s := r.psi[pid]; s != nil {
		s.buf = nil
	}
	if u := r.units[pid]; u != nil {
		u.take()
	}
}

func (r *Reader) trackPCR(base int64) {
	if !r.pcrSeen {
		r.pcrFirst, r.pcrSeen = base, true
	}
	r.pcrLast = base
}

func (r *Reader) handlePSI(h header, payload []byte) {
	s := r.psi[h.pid]
	if s == nil {
		s = &sectionBuffer{}
		r.psi[h.pid] = s
	}
	for _, sec := range s.push(h.unitStart, payload) {
		if err := r.section(h.pid, sec); err != nil {
			r.counters.Invalid++
		}
	}
}

func (r *Reader) section(pid uint16, sec []byte) error {
	if pid == pidPAT {
		if sec[0] != tablePAT {
			return nil
		}
		_, pmtPID, err := parsePAT(sec)
		if err != nil {
			return err
		}
		if !current(sec) {
			return nil
		}
		if int(pmtPID) != r.pmtPID {
			if r.pmtPID >= 0 {
				delete(r.psi, uint16(r.pmtPID))
			}
			r.pmtPID = int(pmtPID)
		}
		return nil
	}
	if sec[0] != tablePMT {
		return nil
	}
	prog, err := parsePMT(sec, pid)
	if err != nil {
		return err
	}
	if !current(sec) {
		return nil
	}
	if r.program != nil && r.program.Version == prog.Version && r.program.Number == prog.Number {
		return nil
	}
	r.adopt(prog)
	return nil
}

// adopt makes prog the current program: assembly starts for its audio and
// video PIDs and stops for PIDs it no longer lists.
func (r *Reader) adopt(prog *Program) {
	r.program = prog
	keep := make(map[uint16]bool, len(prog.Streams))
	for _, es := range prog.Streams {
		if _, _, ok := StreamTypeInfo(es.Type); !ok {
			continue
		}
		keep[es.PID] = true
		if r.units[es.PID] == nil {
			r.units[es.PID] = &pesBuffer{}
		}
	}
	for pid := range r.units {
		if !keep[pid] {
			delete(r.units, pid)
		}
	}
}

func (r *Reader) handlePES(h header, payload []byte) {
	u := r.units[h.pid]
	if h.unitStart {
		if !u.empty() {
			r.emit(h.pid, u)
		}
		u.start(payload, h.randomAccess)
	} else {
		if u.empty() {
			return
		}
		u.add(payload)
	}
	if u.full() {
		r.emit(h.pid, u)
	}
}

func (r *Reader) emit(pid uint16, u *pesBuffer) {
	data, ra := u.take()
	p, err := parsePES(pid, data, ra)
	if err != nil {
		r.counters.Invalid++
		return
	}
	r.ready = append(r.ready, p)
}

// drain queues the units still being assembled at end of input.
func (r *Reader) drain() {
	pids := make([]uint16, 0, len(r.units))
	for pid, u := range r.units {
		if !u.empty() {
			pids = append(pids, pid)
		}
	}
	slices.Sort(pids)
	for _, pid := range pids {
		r.emit(pid, r.units[pid])
	}
}
