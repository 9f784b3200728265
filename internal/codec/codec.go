// Package codec turns demuxed packets into decoded units.
//
// Decoders are looked up by codec name in a process-wide registry that is
// populated with the built-in codecs on first use. A [TrackDecoder] binds
// one decoder to one stream and implements the decode-until-unit loop
// over a [demux.Packet], including the warm-up failure policy: the first
// decode error of a track is absorbed, later ones are reported as
// [*DecodeError].
package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zsiec/framescope/internal/demux"
	"github.com/zsiec/framescope/internal/media"
)

var (
	// ErrDecode is wrapped by every reported decode failure.
	ErrDecode = errors.New("codec: decode failed")
	// ErrNoDecoder is returned when no decoder is registered for a codec.
	ErrNoDecoder = errors.New("codec: no decoder")
)

// DecodeError is a fatal decode failure of one track.
type DecodeError struct {
	Stream int
	Codec  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: %s stream %d: decode failed: %v", e.Codec, e.Stream, e.Err)
}

// Unwrap exposes both ErrDecode and the underlying cause to errors.Is.
func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// Decoder decodes one stream.
type Decoder interface {
	// Decode decodes from the front of data, the unconsumed part of a packet
	// whose presentation timestamp is pts (stream time base ticks). It
	// returns how many bytes it used and at most one unit. consumed <= 0 or
	// a non-nil error make the caller drop the rest of the packet.
	Decode(data []byte, pts int64) (consumed int, unit media.Unit, err error)
}

// Factory creates a decoder for a stream.
type Factory func(s demux.Stream) (Decoder, error)

var (
	registryOnce sync.Once
	registryMu   sync.RWMutex
	factories    map[string]Factory
)

func initRegistry() {
	registryOnce.Do(func() {
		registryMu.Lock()
		defer registryMu.Unlock()
		builtin := map[string]Factory{
			"rawvideo":  newRawVideo,
			"pcm_u8":    newPCM,
			"pcm_s16le": newPCM,
			"pcm_s16be": newPCM,
			"pcm_s32le": newPCM,
			"pcm_f32le": newPCM,
			"h264":      newH264,
			"hevc":      newHEVC,
			"aac":       newAAC,
		}
		if factories == nil {
			factories = make(map[string]Factory, len(builtin))
		}
		for name, f := range builtin {
			if _, ok := factories[name]; !ok {
				factories[name] = f
			}
		}
	})
}

// Register installs f for codec name, replacing any decoder registered
// before, built-in ones included.
func Register(name string, f Factory) {
	initRegistry()
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Codecs returns the registered codec names in sorted order.
func Codecs() []string {
	initRegistry()
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a decoder for s.
func New(s demux.Stream) (Decoder, error) {
	initRegistry()
	registryMu.RLock()
	f, ok := factories[s.Codec]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoDecoder, s.Codec)
	}
	d, err := f(s)
	if err != nil {
		return nil, fmt.Errorf("%w for %q: %w", ErrNoDecoder, s.Codec, err)
	}
	return d, nil
}
