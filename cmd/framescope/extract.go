package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/framescope/internal/convert"
	"github.com/zsiec/framescope/internal/extract"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		outDir           string
		codecName        string
		every, maxFrames int
		width, height    int
		parallel         int
	)
	cmd := &cobra.Command{
		Use:   "extract <uri>...",
		Short: "Write thumbnails of decoded pictures",
		Long: "Write thumbnails of decoded pictures. Inputs are extracted concurrently;\n" +
			"with more than one input each gets its own subdirectory.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ec := a.cfg.Extract
			flags := cmd.Flags()
			if flags.Changed("out") {
				ec.OutDir = outDir
			}
			if flags.Changed("codec") {
				ec.Codec = codecName
			}
			if flags.Changed("every") {
				ec.Every = every
			}
			if flags.Changed("max") {
				ec.MaxFrames = maxFrames
			}
			if flags.Changed("width") {
				ec.Width = width
			}
			if flags.Changed("height") {
				ec.Height = height
			}
			if flags.Changed("parallel") {
				ec.Parallel = parallel
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(ec.Parallel, 1))
			for i, uri := range args {
				g.Go(func() error {
					enc, err := convert.NewThumbnailEncoder(ec.Codec, ec.Width, ec.Height)
					if err != nil {
						return err
					}
					enc.SetQuality(ec.Quality)

					in, err := a.openInput(ctx, uri)
					if err != nil {
						return fmt.Errorf("%s: %w", uri, err)
					}
					defer in.Close()

					dir := ec.OutDir
					if len(args) > 1 {
						dir = filepath.Join(dir, fmt.Sprintf("%02d-%s", i+1, safeName(in.name)))
					}
					res, err := extract.Run(ctx, in.eng, extract.Options{
						MaxFrames: ec.MaxFrames,
						Every:     ec.Every,
						OutDir:    dir,
						Encoder:   enc,
						Logger:    a.log.With("input", in.name),
					})
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pictures, %d thumbnails in %s, %d coded skipped\n",
						in.name, res.Pictures, len(res.Files), dir, res.Coded)
					if err != nil {
						return fmt.Errorf("%s: %w", uri, err)
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	f := cmd.Flags()
	f.StringVarP(&outDir, "out", "o", "", "output directory")
	f.StringVar(&codecName, "codec", "", "thumbnail codec: jpeg, mjpeg or png")
	f.IntVar(&every, "every", 0, "write one thumbnail per N pictures")
	f.IntVar(&maxFrames, "max", 0, "stop after N thumbnails per input (0 = no limit)")
	f.IntVar(&width, "width", 0, "thumbnail width (0 = source width)")
	f.IntVar(&height, "height", 0, "thumbnail height (0 = source height)")
	f.IntVarP(&parallel, "parallel", "j", 0, "inputs extracted at once")
	return cmd
}

// safeName maps a source name to something usable as a directory name.
func safeName(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
