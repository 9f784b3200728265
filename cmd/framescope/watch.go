package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zsiec/framescope/internal/engine"
	"github.com/zsiec/framescope/internal/media"
	"github.com/zsiec/framescope/internal/player"
	"github.com/zsiec/framescope/internal/source"
)

// logRenderer stands in for a display: it logs keyframes, captions and
// timecode changes at Info and every other picture at Debug.
type logRenderer struct {
	log      *slog.Logger
	timecode string
}

func (r *logRenderer) FeedFrame(pic *media.Picture) {
	attrs := []any{"ts_ms", pic.Timestamp(), "format", pic.Format.String(), "keyframe", pic.Keyframe}
	for _, c := range pic.Captions {
		r.log.Info("caption", "ts_ms", pic.Timestamp(), "channel", c.Channel, "text", c.Text)
	}
	if pic.Timecode != "" && pic.Timecode != r.timecode {
		r.timecode = pic.Timecode
		attrs = append(attrs, "timecode", pic.Timecode)
	}
	if pic.Keyframe {
		r.log.Info("frame", attrs...)
		return
	}
	r.log.Debug("frame", attrs...)
}

func newWatchCmd(a *app) *cobra.Command {
	var fps int
	cmd := &cobra.Command{
		Use:   "watch <uri>",
		Short: "Play an input at a fixed frame rate, logging each picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc := a.cfg.Watch
			if cmd.Flags().Changed("fps") {
				wc.FPS = fps
			}
			target, err := wc.Target()
			if err != nil {
				return err
			}

			stats := engine.NewStats()
			opts := []player.Option{
				player.WithLogger(a.log),
				player.WithEngineOptions(engine.WithStats(stats)),
			}
			if target != nil {
				opts = append(opts, player.WithTarget(*target))
			}
			p, err := player.New(&logRenderer{log: a.log.With("component", "renderer")}, opts...)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			raw, name, err := source.Open(ctx, args[0], a.log)
			if err != nil {
				return err
			}
			src := source.WithCancel(raw)
			stop := src.WatchContext(ctx)
			defer stop()
			if err := p.OpenSource(src, name); err != nil {
				return err
			}

			err = p.Run(ctx, wc.FPS)
			snap := stats.Snapshot()
			a.log.Info("watch finished",
				"fed", p.Fed(),
				"dropped", p.Dropped(),
				"pictures", snap.Pictures,
				"frame_rate", snap.FrameRate,
				"captions", snap.Captions,
				"decode_errors", snap.VideoErrors)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&fps, "fps", 0, "ticks per second")
	return cmd
}
