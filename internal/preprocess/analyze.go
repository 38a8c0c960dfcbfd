package preprocess

import (
	"errors"
	"math"

	"github.com/alirezacodev/card-scanner/internal/raster"
)

// ErrEmptyImage is returned when statistics are requested for a zero-pixel image.
var ErrEmptyImage = errors.New("image has no pixels")

// Rec. 601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Statistics summarises the luminance distribution of an image.
// Brightness is mean luma / 255 and Contrast is luma standard deviation / 255.
type Statistics struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
}

func luma(r, g, b uint8) float64 {
	return lumaR*float64(r) + lumaG*float64(g) + lumaB*float64(b)
}

// Analyze computes brightness and contrast in one pass over the pixel buffer.
// Alpha is ignored.
func Analyze(im *raster.Image) (Statistics, error) {
	if im.Empty() {
		return Statistics{}, ErrEmptyImage
	}
	if err := im.Validate(); err != nil {
		return Statistics{}, err
	}

	var sum, sumSq float64
	pix := im.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		l := luma(pix[i], pix[i+1], pix[i+2])
		sum += l
		sumSq += l * l
	}

	n := float64(im.PixelCount())
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		// float cancellation on uniform images
		variance = 0
	}

	return Statistics{
		Brightness: mean / 255,
		Contrast:   math.Sqrt(variance) / 255,
	}, nil
}
