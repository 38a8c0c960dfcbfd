package scanner

import "github.com/alirezacodev/card-scanner/internal/preprocess"

// Options tunes a Scanner.
type Options struct {
	// Language is the OCR hint used when a request does not carry one.
	Language string

	// Stage toggles. Skipped stages pass their input through unchanged.
	SkipCrop    bool
	SkipEnhance bool

	// MeasureSharpness reports the Laplacian variance of the OCR input.
	MeasureSharpness bool
	BlurThreshold    float64

	// UseBufferPool recycles enhancement buffers between scans.
	UseBufferPool bool
}

// DefaultOptions returns the full pipeline.
func DefaultOptions() Options {
	return Options{
		Language:         "eng",
		MeasureSharpness: true,
		BlurThreshold:    preprocess.DefaultBlurThreshold,
		UseBufferPool:    true,
	}
}

// FastOptions skips quality diagnostics.
func FastOptions() Options {
	opts := DefaultOptions()
	opts.MeasureSharpness = false
	return opts
}

// RawOptions sends the image to OCR untouched.
func RawOptions() Options {
	opts := FastOptions()
	opts.SkipCrop = true
	opts.SkipEnhance = true
	return opts
}
