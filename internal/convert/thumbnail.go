package convert

import (
	"fmt"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/zsiec/framescope/internal/media"
)

// ThumbnailEncoder scales pictures to a fixed size and writes them as
// single still images.
type ThumbnailEncoder struct {
	codec   string
	conv    *ImageConverter
	quality int
}

// NewThumbnailEncoder returns an encoder for codec "jpeg" (alias "mjpeg")
// or "png" producing w x h images. A zero w or h keeps the source size.
func NewThumbnailEncoder(codec string, w, h int) (*ThumbnailEncoder, error) {
	pix := media.PixelFormatNone
	switch codec {
	case "jpeg", "mjpeg":
		codec, pix = "jpeg", media.PixelFormatYUV420P
	case "png":
		pix = media.PixelFormatRGBA
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoEncoder, codec)
	}
	conv, err := NewImageConverter(media.ImageFormat{Width: w, Height: h, Pixel: pix})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return &ThumbnailEncoder{codec: codec, conv: conv, quality: jpeg.DefaultQuality}, nil
}

// Codec returns the canonical codec name.
func (e *ThumbnailEncoder) Codec() string { return e.codec }

// Ext returns the file extension for encoded images, including the dot.
func (e *ThumbnailEncoder) Ext() string {
	if e.codec == "png" {
		return ".png"
	}
	return ".jpg"
}

// SetQuality sets the JPEG quality, 1 to 100.
func (e *ThumbnailEncoder) SetQuality(q int) {
	e.quality = max(1, min(100, q))
}

// Encode converts pic and writes one image to w. It returns the number of
// bytes written.
func (e *ThumbnailEncoder) Encode(w io.Writer, pic *media.Picture) (int, error) {
	scaled, err := e.conv.Convert(pic)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	cw := &countingWriter{w: w}
	img := asImage(scaled)
	switch e.codec {
	case "png":
		err = png.Encode(cw, img)
	default:
		err = jpeg.Encode(cw, img, &jpeg.Options{Quality: e.quality})
	}
	if err != nil {
		return cw.n, fmt.Errorf("%w: %s: %w", ErrEncode, e.codec, err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
