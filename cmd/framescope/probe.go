package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zsiec/framescope/internal/demux"
	"github.com/zsiec/framescope/internal/engine"
	"github.com/zsiec/framescope/internal/media"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		packets int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "probe <uri>",
		Short: "Print container and stream information",
		Long: "Print container and stream information. With --packets, decode that many\n" +
			"packets and report decode statistics as well.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats := engine.NewStats()
			in, err := a.openInput(cmd.Context(), args[0], engine.WithStats(stats))
			if err != nil {
				return err
			}
			defer in.Close()

			report := probeReport{
				Name:       in.name,
				Format:     in.eng.ContainerName(),
				DurationUs: in.eng.DurationMicroseconds(),
				BitRate:    in.eng.BitRate(),
				Streams:    in.eng.Streams(),
				VideoCodec: in.eng.CodecName(media.KindVideo),
				AudioCodec: in.eng.CodecName(media.KindAudio),
			}
			if packets > 0 {
				h := engine.HandlerFuncs{
					Picture: func(*media.Picture, int) bool { return true },
					Audio:   func(*media.AudioBlock, int) bool { return true },
				}
				for range packets {
					ok, err := in.eng.Decode(h, true)
					if err != nil {
						a.log.Warn("decode failed", "error", err)
					}
					if !ok || in.eng.Stopped() {
						break
					}
				}
				snap := stats.Snapshot()
				report.Stats = &snap
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return report.write(cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&packets, "packets", 0, "decode up to this many packets and report statistics")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type probeReport struct {
	Name       string                `json:"name"`
	Format     string                `json:"format"`
	DurationUs int64                 `json:"durationUs"`
	BitRate    int64                 `json:"bitRate"`
	Streams    []demux.Stream        `json:"streams"`
	VideoCodec string                `json:"videoCodec,omitempty"`
	AudioCodec string                `json:"audioCodec,omitempty"`
	Stats      *engine.StatsSnapshot `json:"stats,omitempty"`
}

func (r probeReport) write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "input\t%s\n", r.Name)
	fmt.Fprintf(tw, "format\t%s\n", r.Format)
	fmt.Fprintf(tw, "duration\t%s\n", time.Duration(r.DurationUs)*time.Microsecond)
	fmt.Fprintf(tw, "bit rate\t%d b/s\n", r.BitRate)
	for _, s := range r.Streams {
		detail := ""
		switch s.Kind {
		case media.KindVideo:
			detail = fmt.Sprintf("%dx%d", s.Image.Width, s.Image.Height)
		case media.KindAudio:
			detail = fmt.Sprintf("%d Hz, %d ch", s.Audio.SampleRate, s.Audio.Channels)
		}
		fmt.Fprintf(tw, "stream %d\t%s\t%s\t%s\ttb %s\n", s.Index, s.Kind, s.Codec, detail, s.TimeBase)
	}
	fmt.Fprintf(tw, "video track\t%s\n", orNone(r.VideoCodec))
	fmt.Fprintf(tw, "audio track\t%s\n", orNone(r.AudioCodec))
	if s := r.Stats; s != nil {
		fmt.Fprintf(tw, "packets\t%d (%d bytes)\n", s.Packets, s.PacketBytes)
		fmt.Fprintf(tw, "pictures\t%d (%d keyframes, %.2f fps)\n", s.Pictures, s.Keyframes, s.FrameRate)
		fmt.Fprintf(tw, "audio blocks\t%d (%d samples)\n", s.AudioBlocks, s.AudioSamples)
		fmt.Fprintf(tw, "captions\t%d\n", s.Captions)
		if s.Timecode != "" {
			fmt.Fprintf(tw, "timecode\t%s\n", s.Timecode)
		}
		fmt.Fprintf(tw, "decode errors\tvideo %d, audio %d\n", s.VideoErrors, s.AudioErrors)
	}
	return tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
