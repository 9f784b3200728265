// Package config loads framescope settings from an optional YAML file and
// FRAMESCOPE_* environment variables. Environment values win over the
// file, and the file wins over the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/framescope/internal/media"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FRAMESCOPE_"

// Config is the complete framescope configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string        `yaml:"log_level"`
	Extract  ExtractConfig `yaml:"extract"`
	Watch    WatchConfig   `yaml:"watch"`
}

// ExtractConfig controls thumbnail extraction.
type ExtractConfig struct {
	OutDir    string `yaml:"out_dir"`
	Codec     string `yaml:"codec"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Quality   int    `yaml:"quality"`
	Every     int    `yaml:"every"`
	MaxFrames int    `yaml:"max_frames"`
	// Parallel bounds the inputs extracted at once.
	Parallel int `yaml:"parallel"`
}

// WatchConfig controls the watch player.
type WatchConfig struct {
	FPS int `yaml:"fps"`
	// Pixel is the pixel format pictures are converted to, or "" to feed
	// them unconverted.
	Pixel  string `yaml:"pixel"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Extract: ExtractConfig{
			OutDir:   "thumbnails",
			Codec:    "jpeg",
			Quality:  85,
			Every:    1,
			Parallel: 4,
		},
		Watch: WatchConfig{FPS: 30},
	}
}

// Load reads path over Default and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.Extract.OutDir = envOr("OUT_DIR", c.Extract.OutDir)
	c.Extract.Codec = envOr("THUMB_CODEC", c.Extract.Codec)
	c.Watch.Pixel = envOr("WATCH_PIXEL", c.Watch.Pixel)

	var err error
	for _, v := range []struct {
		key string
		dst *int
	}{
		{"THUMB_WIDTH", &c.Extract.Width},
		{"THUMB_HEIGHT", &c.Extract.Height},
		{"THUMB_QUALITY", &c.Extract.Quality},
		{"EVERY", &c.Extract.Every},
		{"MAX_FRAMES", &c.Extract.MaxFrames},
		{"PARALLEL", &c.Extract.Parallel},
		{"WATCH_FPS", &c.Watch.FPS},
	} {
		if *v.dst, err = envIntOr(v.key, *v.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	var errs []error
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q", c.LogLevel))
	}
	switch c.Extract.Codec {
	case "jpeg", "mjpeg", "png":
	default:
		errs = append(errs, fmt.Errorf("extract.codec %q", c.Extract.Codec))
	}
	if c.Extract.Width < 0 || c.Extract.Height < 0 {
		errs = append(errs, errors.New("extract size must not be negative"))
	}
	if c.Extract.Parallel < 1 {
		errs = append(errs, fmt.Errorf("extract.parallel %d", c.Extract.Parallel))
	}
	if c.Watch.FPS < 1 {
		errs = append(errs, fmt.Errorf("watch.fps %d", c.Watch.FPS))
	}
	if _, err := c.Watch.Target(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// Target returns the conversion target, or nil when pictures are fed as
// decoded.
func (w WatchConfig) Target() (*media.ImageFormat, error) {
	if w.Pixel == "" {
		return nil, nil
	}
	pix, ok := media.ParsePixelFormat(w.Pixel)
	if !ok || pix == media.PixelFormatNone {
		return nil, fmt.Errorf("watch.pixel %q", w.Pixel)
	}
	return &media.ImageFormat{Width: w.Width, Height: w.Height, Pixel: pix}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	return n, nil
}
