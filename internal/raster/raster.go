// Package raster holds the in-memory pixel buffer passed between scan stages.
package raster

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrBufferSize is returned when a pixel buffer does not hold exactly W*H*4 bytes.
var ErrBufferSize = errors.New("raster: pixel buffer size does not match dimensions")

// Image is a width x height raster stored as a flat, row-major R,G,B,A byte
// sequence with non-premultiplied alpha. A stage that receives an Image
// must not mutate it; stages return a newly owned Image instead.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a zeroed raster.
func New(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{Width: width, Height: height, Pix: make([]uint8, width*height*4)}
}

// FromImage converts any decoded image into an owned raster.
func FromImage(src image.Image) *Image {
	if src == nil {
		return nil
	}
	// imaging.Clone always yields a zero-origin NRGBA with a tight stride
	n := imaging.Clone(src)
	b := n.Bounds()
	return &Image{Width: b.Dx(), Height: b.Dy(), Pix: n.Pix}
}

// Empty reports whether the raster has no pixels.
func (im *Image) Empty() bool {
	return im == nil || im.Width <= 0 || im.Height <= 0 || len(im.Pix) == 0
}

// Validate checks the buffer length invariant.
func (im *Image) Validate() error {
	if im == nil {
		return fmt.Errorf("%w: nil image", ErrBufferSize)
	}
	if want := im.Width * im.Height * 4; len(im.Pix) != want {
		return fmt.Errorf("%w: have %d bytes, want %d", ErrBufferSize, len(im.Pix), want)
	}
	return nil
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	if im == nil {
		return nil
	}
	pix := make([]uint8, len(im.Pix))
	copy(pix, im.Pix)
	return &Image{Width: im.Width, Height: im.Height, Pix: pix}
}

// NRGBA exposes the raster as a standard library image sharing the same buffer.
func (im *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    im.Pix,
		Stride: im.Width * 4,
		Rect:   image.Rect(0, 0, im.Width, im.Height),
	}
}

// PixelCount returns Width*Height.
func (im *Image) PixelCount() int {
	if im == nil {
		return 0
	}
	return im.Width * im.Height
}
