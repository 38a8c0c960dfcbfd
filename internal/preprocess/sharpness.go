package preprocess

import (
	"sync"

	"github.com/alirezacodev/card-scanner/internal/raster"

	"gonum.org/v1/gonum/stat"
)

// DefaultBlurThreshold is the Laplacian variance under which a capture is reported as blurry.
const DefaultBlurThreshold = 100.0

// Sharpness describes how much edge detail survives in an image.
type Sharpness struct {
	LaplacianVariance float64 `json:"laplacian_variance"`
	Blurry            bool    `json:"blurry"`
}

// SharpnessMeter measures focus using the variance of the Laplacian of luma.
type SharpnessMeter struct {
	threshold float64
	slicePool sync.Pool
}

// NewSharpnessMeter creates a meter. Non-positive thresholds fall back to DefaultBlurThreshold.
func NewSharpnessMeter(threshold float64) *SharpnessMeter {
	if threshold <= 0 {
		threshold = DefaultBlurThreshold
	}
	return &SharpnessMeter{
		threshold: threshold,
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// Measure computes the Laplacian variance. Images smaller than 3x3 have no
// interior and report zero variance.
func (m *SharpnessMeter) Measure(im *raster.Image) (Sharpness, error) {
	if im.Empty() {
		return Sharpness{}, ErrEmptyImage
	}
	if err := im.Validate(); err != nil {
		return Sharpness{}, err
	}

	w, h := im.Width, im.Height
	gray := make([]float64, w*h)
	for i, j := 0, 0; j < len(gray); i, j = i+4, j+1 {
		gray[j] = luma(im.Pix[i], im.Pix[i+1], im.Pix[i+2])
	}

	data := m.slicePool.Get().([]float64)
	defer func() { m.slicePool.Put(data[:0]) }()
	if need := (w - 2) * (h - 2); need > 0 && cap(data) < need {
		data = make([]float64, 0, need)
	}

	// kernel [0 1 0; 1 -4 1; 0 1 0]
	for y := 1; y < h-1; y++ {
		row := y * w
		for x := 1; x < w-1; x++ {
			c := row + x
			data = append(data, gray[c-w]+gray[c+w]+gray[c-1]+gray[c+1]-4*gray[c])
		}
	}

	if len(data) < 2 {
		return Sharpness{Blurry: true}, nil
	}

	v := stat.Variance(data, nil)
	return Sharpness{LaplacianVariance: v, Blurry: v < m.threshold}, nil
}
