package engine

import (
	"sync"
	"sync/atomic"

	"github.com/zsiec/framescope/internal/media"
)

// StatsRecorder receives per-packet and per-unit events from an Engine.
// Implementations must be safe for concurrent reads while the engine
// records.
type StatsRecorder interface {
	RecordPacket(stream int, bytes int)
	RecordPicture(pic *media.Picture)
	RecordAudioBlock(b *media.AudioBlock)
	RecordDecodeError(kind media.Kind)
	RecordHalt()
}

// Compile-time interface check.
var _ StatsRecorder = (*Stats)(nil)

// Stats accumulates decode statistics with atomic counters so snapshots can
// be taken from another goroutine.
type Stats struct {
	packets      atomic.Int64
	packetBytes  atomic.Int64
	pictures     atomic.Int64
	keyframes    atomic.Int64
	codedBytes   atomic.Int64
	captions     atomic.Int64
	audioBlocks  atomic.Int64
	audioSamples atomic.Int64
	videoErrors  atomic.Int64
	audioErrors  atomic.Int64
	halts        atomic.Int64

	firstVideoMs atomic.Int64
	lastVideoMs  atomic.Int64
	lastAudioMs  atomic.Int64
	firstSet     atomic.Bool
	regressions  atomic.Int64
	width        atomic.Int32
	height       atomic.Int32

	// timecodeMu guards timecode
	timecodeMu sync.RWMutex
	timecode   string
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Packets      int64   `json:"packets"`
	PacketBytes  int64   `json:"packetBytes"`
	Pictures     int64   `json:"pictures"`
	Keyframes    int64   `json:"keyframes"`
	CodedBytes   int64   `json:"codedBytes"`
	Captions     int64   `json:"captions"`
	AudioBlocks  int64   `json:"audioBlocks"`
	AudioSamples int64   `json:"audioSamples"`
	VideoErrors  int64   `json:"videoErrors"`
	AudioErrors  int64   `json:"audioErrors"`
	Halts        int64   `json:"halts"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	LastVideoMs  int64   `json:"lastVideoMs"`
	LastAudioMs  int64   `json:"lastAudioMs"`
	Regressions  int64   `json:"timestampRegressions"`
	FrameRate    float64 `json:"frameRate"`
	Timecode     string  `json:"timecode,omitempty"`
}

// NewStats returns an empty Stats.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) RecordPacket(stream int, bytes int) {
	s.packets.Add(1)
	s.packetBytes.Add(int64(bytes))
}

// RecordPicture counts a delivered picture and tracks its timestamp,
// counting any step backwards as a regression.
func (s *Stats) RecordPicture(pic *media.Picture) {
	s.pictures.Add(1)
	if pic.Keyframe {
		s.keyframes.Add(1)
	}
	if pic.IsCoded() {
		s.codedBytes.Add(int64(len(pic.Coded)))
	}
	s.captions.Add(int64(len(pic.Captions)))
	s.width.Store(int32(pic.Format.Width))
	s.height.Store(int32(pic.Format.Height))

	ms := int64(pic.Timestamp())
	if !s.firstSet.Swap(true) {
		s.firstVideoMs.Store(ms)
	}
	if last := s.lastVideoMs.Swap(ms); ms < last {
		s.regressions.Add(1)
	}
	if pic.Timecode != "" {
		s.timecodeMu.Lock()
		s.timecode = pic.Timecode
		s.timecodeMu.Unlock()
	}
}

func (s *Stats) RecordAudioBlock(b *media.AudioBlock) {
	s.audioBlocks.Add(1)
	s.audioSamples.Add(int64(b.Samples))
	ms := int64(b.Timestamp())
	if last := s.lastAudioMs.Swap(ms); ms < last {
		s.regressions.Add(1)
	}
}

func (s *Stats) RecordDecodeError(kind media.Kind) {
	if kind == media.KindVideo {
		s.videoErrors.Add(1)
		return
	}
	s.audioErrors.Add(1)
}

func (s *Stats) RecordHalt() { s.halts.Add(1) }

// Snapshot returns the current counters. FrameRate is derived from the
// media timestamps of the pictures seen so far.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Packets:      s.packets.Load(),
		PacketBytes:  s.packetBytes.Load(),
		Pictures:     s.pictures.Load(),
		Keyframes:    s.keyframes.Load(),
		CodedBytes:   s.codedBytes.Load(),
		Captions:     s.captions.Load(),
		AudioBlocks:  s.audioBlocks.Load(),
		AudioSamples: s.audioSamples.Load(),
		VideoErrors:  s.videoErrors.Load(),
		AudioErrors:  s.audioErrors.Load(),
		Halts:        s.halts.Load(),
		Width:        int(s.width.Load()),
		Height:       int(s.height.Load()),
		LastVideoMs:  s.lastVideoMs.Load(),
		LastAudioMs:  s.lastAudioMs.Load(),
		Regressions:  s.regressions.Load(),
	}
	if span := snap.LastVideoMs - s.firstVideoMs.Load(); span > 0 && snap.Pictures > 1 {
		snap.FrameRate = float64(snap.Pictures-1) * 1000 / float64(span)
	}
	s.timecodeMu.RLock()
	snap.Timecode = s.timecode
	s.timecodeMu.RUnlock()
	return snap
}
