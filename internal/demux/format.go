package demux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zsiec/framescope/internal/media"
	"github.com/zsiec/framescope/internal/source"
)

// probeSize is the number of leading bytes offered to Format.Probe.
const probeSize = 4096

// Format is a container format implementation.
type Format interface {
	// Name is the short format name, e.g. "mpegts".
	Name() string
	// Probe scores how likely header (up to 4 KiB of leading input) is in
	// this format, from 0 (not at all) to 100 (certain). ext is the
	// lower-case extension of the name hint including the dot, or "".
	Probe(header []byte, ext string) int
	// Open prepares a reader. Formats that discover their streams lazily
	// implement StreamProber.
	Open(in *Input) (Reader, error)
}

// Reader is an opened container.
type Reader interface {
	// Streams lists the streams in container-declared order. It must not
	// change once ProbeStreams (if implemented) has returned.
	Streams() []Stream
	// ReadPacket reads the next packet. It returns io.EOF at the end of
	// input. pkt.Data may alias an internal buffer valid until the next
	// call.
	ReadPacket(pkt *RawPacket) error
	Close() error
}

// StreamProber is implemented by readers that must read ahead to discover
// their streams. A probe failure is not fatal to the container.
type StreamProber interface {
	ProbeStreams() error
}

// DurationReporter is implemented by readers that know their duration and
// bit rate.
type DurationReporter interface {
	DurationMicroseconds() int64
	BitRate() int64
}

// RawPacket is one compressed or raw unit of a single stream as read from
// the container.
type RawPacket struct {
	StreamIndex int
	Data        []byte
	PTS         int64 // stream time base ticks
	DTS         int64
	Keyframe    bool
}

// Stream describes one elementary stream.
type Stream struct {
	Index     int
	Kind      media.Kind
	Codec     string
	TimeBase  media.Rational
	Image     media.ImageFormat
	Audio     media.AudioFormat
	Extradata []byte
}

// Input is the byte input handed to Format.Open.
type Input struct {
	// Name is the file name or name hint.
	Name string
	// Size is the total input size, or -1 when unknown.
	Size int64

	header []byte
	br     *bufio.Reader
	seeker io.ReadSeeker
	dirty  bool
}

func newInput(src source.ByteSource, name string) (*Input, error) {
	in := &Input{Name: name, Size: -1}
	caps := source.Caps(src)
	if caps.Sized {
		in.Size = src.(source.Sizer).Size()
	}
	if caps.Seekable {
		in.seeker = readSeeker{src}
	}
	in.br = bufio.NewReaderSize(src, 64*1024)
	hdr, err := in.br.Peek(probeSize)
	if len(hdr) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			err = errors.New("empty input")
		}
		return nil, err
	}
	in.header = hdr
	return in, nil
}

// readSeeker joins a source's Read with its Seek.
type readSeeker struct {
	source.ByteSource
}

func (r readSeeker) Seek(offset int64, whence int) (int64, error) {
	return r.ByteSource.(io.Seeker).Seek(offset, whence)
}

// Header returns the leading bytes used for probing.
func (in *Input) Header() []byte { return in.header }

// Ext returns the lower-case extension of Name.
func (in *Input) Ext() string { return strings.ToLower(filepath.Ext(in.Name)) }

// Reader returns a sequential reader positioned at the start of input.
func (in *Input) Reader() (io.Reader, error) {
	if !in.dirty {
		return in.br, nil
	}
	if _, err := in.seeker.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	in.br.Reset(in.seeker)
	in.dirty = false
	return in.br, nil
}

// Seeker returns the underlying seekable input positioned at offset 0, or
// false when the input cannot seek. After a call to Seeker, Reader rewinds
// before returning.
func (in *Input) Seeker() (io.ReadSeeker, bool) {
	if in.seeker == nil {
		return nil, false
	}
	if _, err := in.seeker.Seek(0, io.SeekStart); err != nil {
		return nil, false
	}
	in.dirty = true
	return in.seeker, true
}

var (
	registryOnce sync.Once
	registryMu   sync.RWMutex
	formats      []Format
)

func initRegistry() {
	registryOnce.Do(func() {
		registryMu.Lock()
		defer registryMu.Unlock()
		formats = append([]Format{
			tsFormat{},
			mp4Format{},
			flvFormat{},
			y4mFormat{},
			wavFormat{},
		}, formats...)
	})
}

// Register adds a container format. Formats registered later win ties
// against built-in formats of equal score. Register panics on a duplicate
// name.
func Register(f Format) {
	initRegistry()
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, existing := range formats {
		if existing.Name() == f.Name() {
			panic(fmt.Sprintf("demux: format %q already registered", f.Name()))
		}
	}
	formats = append(formats, f)
}

// Formats returns the names of all registered formats.
func Formats() []string {
	initRegistry()
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.Name()
	}
	return names
}

// detect returns the highest-scoring format for the input.
func detect(in *Input) (Format, error) {
	initRegistry()
	registryMu.RLock()
	defer registryMu.RUnlock()

	var best Format
	bestScore := 0
	for _, f := range formats {
		if s := f.Probe(in.header, in.Ext()); s > 0 && s >= bestScore {
			best, bestScore = f, s
		}
	}
	if best == nil {
		return nil, errors.New("unrecognized container format")
	}
	return best, nil
}
