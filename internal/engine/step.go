package engine

import "github.com/zsiec/framescope/internal/media"

// Status is the outcome of one Step.
type Status int

const (
	// StatusProduced means the step delivered at least one unit.
	StatusProduced Status = iota
	// StatusNeedsMore means a packet was consumed without delivering a unit.
	StatusNeedsMore
	// StatusHalted means the source stopped accepting reads.
	StatusHalted
	// StatusEnded means the input is exhausted.
	StatusEnded
	// StatusStopped means no track wants further units.
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusProduced:
		return "produced"
	case StatusNeedsMore:
		return "needs-more"
	case StatusHalted:
		return "halted"
	case StatusEnded:
		return "ended"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StepResult reports what one Step did.
type StepResult struct {
	Status Status
	Units  int
}

// Done reports whether further steps can produce nothing.
func (r StepResult) Done() bool {
	return r.Status == StatusHalted || r.Status == StatusEnded || r.Status == StatusStopped
}

// countingHandler forwards to a Handler and counts delivered units.
type countingHandler struct {
	h     Handler
	units int
}

func (c *countingHandler) OnPicture(pic *media.Picture, index int) bool {
	c.units++
	return c.h.OnPicture(pic, index)
}

func (c *countingHandler) OnAudioBlock(b *media.AudioBlock, index int) bool {
	c.units++
	return c.h.OnAudioBlock(b, index)
}

// Step decodes at most one packet. A returned *codec.DecodeError has
// stopped its own track; the result still describes the step.
func (e *Engine) Step(h Handler) (StepResult, error) {
	if !e.closed && e.Stopped() {
		return StepResult{Status: StatusStopped}, nil
	}
	ch := &countingHandler{h: h}
	ok, err := e.Decode(ch, true)
	res := StepResult{Units: ch.units}
	switch {
	case !ok && e.halted:
		res.Status = StatusHalted
	case !ok:
		res.Status = StatusEnded
	case ch.units > 0:
		res.Status = StatusProduced
	case e.Stopped():
		res.Status = StatusStopped
	default:
		res.Status = StatusNeedsMore
	}
	return res, err
}
