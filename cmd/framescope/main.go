package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zsiec/framescope/internal/config"
	"github.com/zsiec/framescope/internal/engine"
	"github.com/zsiec/framescope/internal/source"
)

var version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg        config.Config
	log        *slog.Logger
	configPath string
	debug      bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("framescope failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "framescope",
		Short:         "Inspect, thumbnail and play media files and live streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newProbeCmd(a),
		newExtractCmd(a),
		newWatchCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the framescope version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "framescope", version)
			},
		},
	)
	return root
}

// setup loads the config and installs the process logger. DEBUG in the
// environment or --debug override the configured level.
func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if a.debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.log)
	return nil
}

// input is an opened URI: the engine and the source it borrows.
type input struct {
	name string
	eng  *engine.Engine
	src  *source.Cancelable
	stop func()
}

// openInput resolves uri and opens an engine over it. The source halts
// when ctx is done, so a blocked live input ends cleanly on shutdown.
func (a *app) openInput(ctx context.Context, uri string, opts ...engine.Option) (*input, error) {
	raw, name, err := source.Open(ctx, uri, a.log)
	if err != nil {
		return nil, err
	}
	src := source.WithCancel(raw)
	stop := src.WatchContext(ctx)
	eng, err := engine.OpenSource(src, name, append([]engine.Option{engine.WithLogger(a.log.With("input", name))}, opts...)...)
	if err != nil {
		stop()
		src.Close()
		return nil, err
	}
	return &input{name: name, eng: eng, src: src, stop: stop}, nil
}

func (in *input) Close() error {
	in.stop()
	err := in.eng.Close()
	if cerr := in.src.Close(); err == nil {
		err = cerr
	}
	return err
}
