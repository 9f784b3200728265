package media

import "fmt"

// Rational is a stream time base expressed as seconds per tick.
type Rational struct {
	Num int64
	Den int64
}

// Float64 returns the time base in seconds per tick, or 0 when undefined.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Timing carries the presentation timestamp pipeline of a decoded unit:
// raw decoder tick -> milliseconds -> offset-adjusted milliseconds.
type Timing struct {
	// TimeBase is seconds per raw tick.
	TimeBase float64
	// TimeOffset is subtracted from the millisecond timestamp.
	TimeOffset uint64
	// SourceTimestamp is the raw decoder-reported tick. It is only
	// monotonic within a track.
	SourceTimestamp int64
}

// NewTiming returns timing with a unit time base and no offset.
func NewTiming() Timing {
	return Timing{TimeBase: 1}
}

// RawMillis converts SourceTimestamp to milliseconds without the offset.
// Negative source timestamps clamp to zero.
func (t Timing) RawMillis() uint64 {
	if t.SourceTimestamp <= 0 || t.TimeBase <= 0 {
		return 0
	}
	return uint64(float64(t.SourceTimestamp) * t.TimeBase * 1000.0)
}

// Timestamp returns the presentation timestamp in milliseconds:
// max(raw ms, offset) - offset. It is never negative.
func (t Timing) Timestamp() uint64 {
	ms := t.RawMillis()
	return max(ms, t.TimeOffset) - t.TimeOffset
}
