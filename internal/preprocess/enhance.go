package preprocess

import (
	"math"

	"github.com/alirezacodev/card-scanner/internal/raster"
)

// Enhancement thresholds and gains.
const (
	brightnessThreshold = 0.4
	brightnessTarget    = 0.5
	brightnessGain      = 1.5

	contrastThreshold = 0.2
	contrastTarget    = 0.3
	contrastGain      = 2.0

	contrastPivot = 128.0
)

// Plan holds the correction factors derived from image statistics.
// A zero factor disables that correction.
type Plan struct {
	BrightnessFactor float64 `json:"brightness_factor"`
	ContrastFactor   float64 `json:"contrast_factor"`
}

// NoOp reports whether the plan leaves pixels untouched.
func (p Plan) NoOp() bool {
	return p.BrightnessFactor <= 0 && p.ContrastFactor <= 0
}

// PlanFor derives an enhancement plan. Only dark or flat images are corrected.
func PlanFor(s Statistics) Plan {
	var p Plan
	if s.Brightness < brightnessThreshold {
		p.BrightnessFactor = (brightnessTarget - s.Brightness) * brightnessGain
	}
	if s.Contrast < contrastThreshold {
		p.ContrastFactor = (contrastTarget - s.Contrast) * contrastGain
	}
	return p
}

// storeChannel clamps to the byte range and rounds half to even, the same
// conversion a clamped byte array performs on assignment.
func storeChannel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return math.RoundToEven(v)
}

// lookupTable precomputes the per-channel mapping for a plan. The brightness
// shift is stored before the contrast stretch reads it.
func (p Plan) lookupTable() [256]uint8 {
	var lut [256]uint8

	shift := p.BrightnessFactor * 255
	factor := 1 + p.ContrastFactor
	intercept := contrastPivot * (1 - factor)

	for v := 0; v < 256; v++ {
		c := float64(v)
		if p.BrightnessFactor > 0 {
			c = storeChannel(math.Min(255, c+shift))
		}
		if p.ContrastFactor > 0 {
			c = storeChannel(c*factor + intercept)
		}
		lut[v] = uint8(c)
	}
	return lut
}

// Enhancer applies adaptive brightness and contrast correction.
type Enhancer struct {
	pool *raster.Pool
}

// NewEnhancer creates an enhancer. pool may be nil.
func NewEnhancer(pool *raster.Pool) *Enhancer {
	return &Enhancer{pool: pool}
}

// Enhance returns a new raster with plan applied to R, G and B. Alpha is
// copied unchanged. A no-op plan yields a plain copy.
func (e *Enhancer) Enhance(src *raster.Image, plan Plan) (*raster.Image, error) {
	if src.Empty() {
		return nil, ErrEmptyImage
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	dst := e.pool.Get(src.Width, src.Height)
	if plan.NoOp() {
		copy(dst.Pix, src.Pix)
		return dst, nil
	}

	lut := plan.lookupTable()
	in, out := src.Pix, dst.Pix
	for i := 0; i+3 < len(in); i += 4 {
		out[i] = lut[in[i]]
		out[i+1] = lut[in[i+1]]
		out[i+2] = lut[in[i+2]]
		out[i+3] = in[i+3]
	}
	return dst, nil
}

// Release returns an enhanced raster's buffer to the pool.
func (e *Enhancer) Release(im *raster.Image) {
	e.pool.Put(im)
}

// AnalyzeAndEnhance runs Analyze then Enhance and reports the statistics and
// plan that were used.
func (e *Enhancer) AnalyzeAndEnhance(src *raster.Image) (*raster.Image, Statistics, Plan, error) {
	stats, err := Analyze(src)
	if err != nil {
		return nil, Statistics{}, Plan{}, err
	}
	plan := PlanFor(stats)
	out, err := e.Enhance(src, plan)
	if err != nil {
		return nil, stats, plan, err
	}
	return out, stats, plan, nil
}
