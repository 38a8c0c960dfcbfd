package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/alirezacodev/card-scanner/internal/raster"

	"github.com/disintegration/imaging"
)

// ErrInvalidGeometry is returned when the crop region collapses to zero pixels.
var ErrInvalidGeometry = errors.New("invalid crop geometry")

// Fractions of the source frame that contain the VIN line on a registration card.
const (
	vinRegionLeft   = 0.05
	vinRegionTop    = 0.55
	vinRegionWidth  = 0.9
	vinRegionHeight = 0.35
)

// CropRegion is a pixel rectangle inside a source image.
type CropRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the region to an image.Rectangle.
func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// VINRegion returns the horizontally centred band starting just past the
// vertical midpoint of a width x height frame. Fractional pixels are truncated.
func VINRegion(width, height int) (CropRegion, error) {
	w, h := float64(width), float64(height)

	r := CropRegion{
		X:      int(w * vinRegionLeft),
		Y:      int(h * vinRegionTop),
		Width:  int(w * vinRegionWidth),
		Height: int(h * vinRegionHeight),
	}
	if r.X+r.Width > width {
		r.Width = width - r.X
	}
	if r.Y+r.Height > height {
		r.Height = height - r.Y
	}

	if r.Width <= 0 || r.Height <= 0 {
		return CropRegion{}, fmt.Errorf("%w: %dx%d source yields %dx%d region",
			ErrInvalidGeometry, width, height, r.Width, r.Height)
	}
	return r, nil
}

// Crop extracts the VIN region from src into a new raster.
func Crop(src *raster.Image) (*raster.Image, CropRegion, error) {
	if src.Empty() {
		return nil, CropRegion{}, fmt.Errorf("%w: empty source", ErrInvalidGeometry)
	}
	if err := src.Validate(); err != nil {
		return nil, CropRegion{}, err
	}

	region, err := VINRegion(src.Width, src.Height)
	if err != nil {
		return nil, CropRegion{}, err
	}

	cropped := imaging.Crop(src.NRGBA(), region.Rect())
	return &raster.Image{
		Width:  cropped.Bounds().Dx(),
		Height: cropped.Bounds().Dy(),
		Pix:    cropped.Pix,
	}, region, nil
}
