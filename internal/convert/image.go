// Package convert converts decoded pictures and audio blocks between
// formats and encodes pictures as thumbnails.
//
// Conversion only touches the payload: timing is copied unchanged. Coded
// units from bitstream-level decoders cannot be converted and fail with
// [ErrConversion].
package convert

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/zsiec/framescope/internal/media"
)

var (
	// ErrConversion is returned when a unit cannot be converted.
	ErrConversion = errors.New("convert: conversion failed")
	// ErrEncode is returned when a thumbnail cannot be encoded.
	ErrEncode = errors.New("convert: encode failed")
	// ErrNoEncoder is returned for an unknown thumbnail codec.
	ErrNoEncoder = errors.New("convert: no encoder")
)

// ImageConverter converts pictures to one target format. It keeps a
// scratch canvas between calls and is not safe for concurrent use.
type ImageConverter struct {
	dst    media.ImageFormat
	scaler draw.Interpolator
	canvas *image.RGBA
}

// NewImageConverter returns a converter to dst. A zero Width or Height in
// dst keeps the source size.
func NewImageConverter(dst media.ImageFormat) (*ImageConverter, error) {
	if dst.Pixel == media.PixelFormatNone || dst.Width < 0 || dst.Height < 0 {
		return nil, fmt.Errorf("%w: unusable target %s", ErrConversion, dst)
	}
	return &ImageConverter{dst: dst, scaler: draw.CatmullRom}, nil
}

// Picture converts src to dst with a one-off converter.
func Picture(dst media.ImageFormat, src *media.Picture) (*media.Picture, error) {
	c, err := NewImageConverter(dst)
	if err != nil {
		return nil, err
	}
	return c.Convert(src)
}

// target resolves a zero target size against src.
func (c *ImageConverter) target(src media.ImageFormat) media.ImageFormat {
	t := c.dst
	if t.Width == 0 {
		t.Width = src.Width
	}
	if t.Height == 0 {
		t.Height = src.Height
	}
	return t
}

// Convert returns a new picture in the target format.
func (c *ImageConverter) Convert(src *media.Picture) (*media.Picture, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil picture", ErrConversion)
	}
	if src.IsCoded() {
		return nil, fmt.Errorf("%w: coded picture", ErrConversion)
	}
	if src.Format.Width <= 0 || src.Format.Height <= 0 {
		return nil, fmt.Errorf("%w: empty picture %s", ErrConversion, src.Format)
	}
	if err := checkPlanes(src); err != nil {
		return nil, err
	}
	dst := c.target(src.Format)

	out := media.NewPicture(dst)
	out.Timing = src.Timing
	out.Keyframe = src.Keyframe
	out.Captions = src.Captions
	out.Timecode = src.Timecode

	if dst == src.Format {
		copyPlanes(out, src)
		return out, nil
	}

	in := asImage(src)
	if c.canvas == nil || c.canvas.Rect.Dx() != dst.Width || c.canvas.Rect.Dy() != dst.Height {
		c.canvas = image.NewRGBA(image.Rect(0, 0, dst.Width, dst.Height))
	}
	if dst.Width == src.Format.Width && dst.Height == src.Format.Height {
		draw.Copy(c.canvas, image.Point{}, in, in.Bounds(), draw.Src, nil)
	} else {
		c.scaler.Scale(c.canvas, c.canvas.Rect, in, in.Bounds(), draw.Src, nil)
	}
	fromRGBA(out, c.canvas)
	return out, nil
}

func checkPlanes(p *media.Picture) error {
	n := p.Format.Pixel.Planes()
	if n == 0 || len(p.Planes) < n || len(p.Strides) < n {
		return fmt.Errorf("%w: picture has %d planes, %s needs %d", ErrConversion, len(p.Planes), p.Format.Pixel, n)
	}
	for i := range n {
		w, h := p.Format.PlaneSize(i)
		if p.Strides[i] < w*p.Format.Pixel.PlaneBytesPerPixel() || len(p.Planes[i]) < p.Strides[i]*(h-1)+w*p.Format.Pixel.PlaneBytesPerPixel() {
			return fmt.Errorf("%w: plane %d too small", ErrConversion, i)
		}
	}
	return nil
}

func copyPlanes(dst, src *media.Picture) {
	for i := range dst.Planes {
		w, h := dst.Format.PlaneSize(i)
		row := w * dst.Format.Pixel.PlaneBytesPerPixel()
		for y := range h {
			copy(dst.Planes[i][y*dst.Strides[i]:][:row], src.Planes[i][y*src.Strides[i]:][:row])
		}
	}
}

// asImage wraps the planes of p without copying where the standard image
// types allow it.
func asImage(p *media.Picture) image.Image {
	r := image.Rect(0, 0, p.Format.Width, p.Format.Height)
	switch p.Format.Pixel {
	case media.PixelFormatYUV420P:
		return &image.YCbCr{
			Y: p.Planes[0], Cb: p.Planes[1], Cr: p.Planes[2],
			YStride: p.Strides[0], CStride: p.Strides[1],
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           r,
		}
	case media.PixelFormatGray8:
		return &image.Gray{Pix: p.Planes[0], Stride: p.Strides[0], Rect: r}
	case media.PixelFormatRGBA:
		return &image.NRGBA{Pix: p.Planes[0], Stride: p.Strides[0], Rect: r}
	default: // RGB24
		img := image.NewNRGBA(r)
		for y := range p.Format.Height {
			src := p.Planes[0][y*p.Strides[0]:]
			dst := img.Pix[y*img.Stride:]
			for x := range p.Format.Width {
				dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = src[3*x], src[3*x+1], src[3*x+2], 0xFF
			}
		}
		return img
	}
}

// fromRGBA packs the canvas into out's pixel format.
func fromRGBA(out *media.Picture, c *image.RGBA) {
	w, h := out.Format.Width, out.Format.Height
	switch out.Format.Pixel {
	case media.PixelFormatRGBA:
		for y := range h {
			copy(out.Planes[0][y*out.Strides[0]:][:4*w], c.Pix[y*c.Stride:])
		}
	case media.PixelFormatRGB24:
		for y := range h {
			src := c.Pix[y*c.Stride:]
			dst := out.Planes[0][y*out.Strides[0]:]
			for x := range w {
				dst[3*x], dst[3*x+1], dst[3*x+2] = src[4*x], src[4*x+1], src[4*x+2]
			}
		}
	case media.PixelFormatGray8:
		for y := range h {
			dst := out.Planes[0][y*out.Strides[0]:]
			for x := range w {
				dst[x] = color.GrayModel.Convert(c.RGBAAt(x, y)).(color.Gray).Y
			}
		}
	case media.PixelFormatYUV420P:
		toYUV420(out, c)
	}
}

// toYUV420 converts with BT.601 full-range coefficients, averaging chroma
// over each 2x2 block.
func toYUV420(out *media.Picture, c *image.RGBA) {
	w, h := out.Format.Width, out.Format.Height
	for y := range h {
		row := out.Planes[0][y*out.Strides[0]:]
		for x := range w {
			px := c.RGBAAt(x, y)
			row[x], _, _ = color.RGBToYCbCr(px.R, px.G, px.B)
		}
	}
	cw, ch := out.Format.PlaneSize(1)
	for cy := range ch {
		for cx := range cw {
			var cb, cr, n int
			for dy := range 2 {
				for dx := range 2 {
					x, y := 2*cx+dx, 2*cy+dy
					if x >= w || y >= h {
						continue
					}
					px := c.RGBAAt(x, y)
					_, b, r := color.RGBToYCbCr(px.R, px.G, px.B)
					cb += int(b)
					cr += int(r)
					n++
				}
			}
			out.Planes[1][cy*out.Strides[1]+cx] = byte(cb / n)
			out.Planes[2][cy*out.Strides[2]+cx] = byte(cr / n)
		}
	}
}
