// Package extract writes thumbnails of the pictures an engine decodes.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zsiec/framescope/internal/convert"
	"github.com/zsiec/framescope/internal/engine"
	"github.com/zsiec/framescope/internal/media"
)

// Options controls an extraction.
type Options struct {
	// MaxFrames stops after this many thumbnails. 0 means no limit.
	MaxFrames int
	// Every writes one thumbnail per Every pictures, starting with the
	// first. Values below 1 mean every picture.
	Every int
	// OutDir receives the thumbnails. It is created if missing.
	OutDir string
	// Prefix is prepended to each file name.
	Prefix string
	// Encoder encodes thumbnails. Nil means JPEG at the source size.
	Encoder *convert.ThumbnailEncoder
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result summarises an extraction.
type Result struct {
	Pictures int      // pictures delivered by the engine
	Coded    int      // coded pictures skipped
	Failed   int      // pictures that could not be encoded
	Files    []string // thumbnails written, in order
}

// Run walks eng in batch mode and writes every Nth raw picture to
// opts.OutDir. Coded pictures cannot be thumbnailed; they are counted and
// skipped. Encoding failures are counted and do not stop the run; file
// system errors do.
func Run(ctx context.Context, eng *engine.Engine, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "extract")
	every := max(opts.Every, 1)
	enc := opts.Encoder
	if enc == nil {
		var err error
		if enc, err = convert.NewThumbnailEncoder("jpeg", 0, 0); err != nil {
			return Result{}, fmt.Errorf("extract: %w", err)
		}
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("extract: %w", err)
	}

	var (
		res     Result
		seen    int
		fsErr   error
		lastErr error
	)
	write := func(pic *media.Picture, index int) bool {
		res.Pictures++
		if pic.IsCoded() {
			res.Coded++
			return true
		}
		seen++
		if (seen-1)%every != 0 {
			return true
		}
		name := filepath.Join(opts.OutDir, fmt.Sprintf("%s%06d%s", opts.Prefix, index, enc.Ext()))
		if err := writeThumbnail(name, enc, pic); err != nil {
			if errors.Is(err, convert.ErrEncode) {
				res.Failed++
				lastErr = err
				return true
			}
			fsErr = err
			return false
		}
		res.Files = append(res.Files, name)
		log.Debug("thumbnail written", "file", name, "ts_ms", pic.Timestamp())
		return opts.MaxFrames <= 0 || len(res.Files) < opts.MaxFrames
	}

	err := eng.Run(ctx, engine.HandlerFuncs{Picture: write})
	if fsErr != nil {
		err = errors.Join(fsErr, err)
	}
	if res.Failed > 0 {
		log.Warn("pictures not encoded", "count", res.Failed, "last_error", lastErr)
	}
	if res.Coded > 0 && res.Coded == res.Pictures {
		log.Warn("only coded pictures decoded; no thumbnails possible", "codec", eng.CodecName(media.KindVideo))
	}
	log.Info("extraction finished", "pictures", res.Pictures, "written", len(res.Files), "coded", res.Coded)
	if err != nil {
		return res, fmt.Errorf("extract: %w", err)
	}
	return res, nil
}

func writeThumbnail(name string, enc *convert.ThumbnailEncoder, pic *media.Picture) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := enc.Encode(f, pic); err != nil {
		f.Close()
		os.Remove(name)
		return err
	}
	return f.Close()
}
