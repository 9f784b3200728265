// Package player paces decoded pictures to a Renderer on a timer.
//
// A Player holds one active engine at a time. Opening a new input builds
// the replacement engine first and then swaps it in, so a failed open
// leaves the current input playing.
package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/framescope/internal/convert"
	"github.com/zsiec/framescope/internal/engine"
	"github.com/zsiec/framescope/internal/media"
	"github.com/zsiec/framescope/internal/source"
)

// DefaultFPS is the tick rate used by Run when none is given.
const DefaultFPS = 30

// Renderer displays pictures. FeedFrame is called from the goroutine
// driving Tick and must not retain pic past the call unless it copies it.
type Renderer interface {
	FeedFrame(pic *media.Picture)
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(pic *media.Picture)

func (f RendererFunc) FeedFrame(pic *media.Picture) { f(pic) }

// Player feeds one picture per Tick to its renderer.
type Player struct {
	log      *slog.Logger
	base     *slog.Logger // caller's logger, handed to engines
	renderer Renderer
	target   *media.ImageFormat
	engOpts  []engine.Option

	mu      sync.Mutex
	eng     *engine.Engine
	src     io.Closer
	conv    *convert.ImageConverter
	queue   []*media.Picture
	fed     int
	dropped int
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the logger. If log is nil, slog.Default() is used.
func WithLogger(log *slog.Logger) Option {
	return func(p *Player) {
		if log != nil {
			p.log = log
		}
	}
}

// WithTarget converts every picture to f before feeding it.
func WithTarget(f media.ImageFormat) Option {
	return func(p *Player) { p.target = &f }
}

// WithEngineOptions passes opts to every engine the player opens.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(p *Player) { p.engOpts = append(p.engOpts, opts...) }
}

// New returns a player feeding r. It has no input until Open.
func New(r Renderer, opts ...Option) (*Player, error) {
	p := &Player{log: slog.Default(), renderer: r}
	for _, o := range opts {
		o(p)
	}
	p.base = p.log
	p.log = p.log.With("component", "player")
	if p.target != nil {
		conv, err := convert.NewImageConverter(*p.target)
		if err != nil {
			return nil, fmt.Errorf("player: %w", err)
		}
		p.conv = conv
	}
	return p, nil
}

func (p *Player) engineOptions() []engine.Option {
	return append([]engine.Option{engine.WithLogger(p.base)}, p.engOpts...)
}

// Open plays the media file at path, replacing the current input.
func (p *Player) Open(path string) error {
	eng, err := engine.Open(path, p.engineOptions()...)
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	p.swap(eng, nil)
	p.log.Info("playing", "path", path, "format", eng.ContainerName())
	return nil
}

// OpenSource plays src, replacing the current input. The player takes
// ownership of src and closes it, if it is an io.Closer, when the input is
// replaced or the player is closed, also when OpenSource fails.
func (p *Player) OpenSource(src source.ByteSource, nameHint string) error {
	closer, _ := src.(io.Closer)
	eng, err := engine.OpenSource(src, nameHint, p.engineOptions()...)
	if err != nil {
		closeInput(nil, closer)
		return fmt.Errorf("player: %w", err)
	}
	p.swap(eng, closer)
	p.log.Info("playing", "source", nameHint, "format", eng.ContainerName())
	return nil
}

func (p *Player) swap(eng *engine.Engine, src io.Closer) {
	p.mu.Lock()
	oldEng, oldSrc := p.eng, p.src
	p.eng, p.src = eng, src
	p.queue = p.queue[:0]
	p.fed, p.dropped = 0, 0
	p.mu.Unlock()

	closeInput(oldEng, oldSrc)
}

func closeInput(eng *engine.Engine, src io.Closer) {
	if eng != nil {
		eng.Close()
	}
	if src != nil {
		src.Close()
	}
}

func (p *Player) enqueue(pic *media.Picture, index int) bool {
	p.queue = append(p.queue, pic)
	return true
}

// Tick feeds the next picture to the renderer, decoding as many packets as
// needed. It returns false once the input is finished or there is none.
func (p *Player) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.eng == nil {
		return false
	}
	for len(p.queue) == 0 {
		if p.eng.Stopped() {
			return false
		}
		// A nil audio callback stops the audio track at its first block.
		ok, err := p.eng.Decode(engine.HandlerFuncs{Picture: p.enqueue}, true)
		if err != nil {
			p.log.Warn("decode failed", "error", err)
		}
		if !ok && len(p.queue) == 0 {
			return false
		}
	}
	pic := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]

	if p.conv != nil {
		out, err := p.conv.Convert(pic)
		if err != nil {
			if p.dropped == 0 {
				p.log.Warn("picture not converted", "error", err)
			}
			p.dropped++
			return true
		}
		pic = out
	}
	p.renderer.FeedFrame(pic)
	p.fed++
	return true
}

// Run calls Tick fps times per second until the input finishes or ctx is
// done. A non-positive fps uses DefaultFPS.
func (p *Player) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.Tick() {
				p.log.Info("playback finished", "fed", p.Fed())
				return nil
			}
		}
	}
}

// Fed returns the number of pictures fed for the current input.
func (p *Player) Fed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fed
}

// Dropped returns the number of pictures of the current input that could
// not be converted to the target format.
func (p *Player) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Engine returns the active engine, or nil.
func (p *Player) Engine() *engine.Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eng
}

// Close closes the current input.
func (p *Player) Close() error {
	p.mu.Lock()
	eng, src := p.eng, p.src
	p.eng, p.src = nil, nil
	p.queue = nil
	p.mu.Unlock()
	closeInput(eng, src)
	return nil
}
