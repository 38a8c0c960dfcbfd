package scanner

import (
	"errors"
	"time"

	"github.com/alirezacodev/card-scanner/internal/preprocess"
	"github.com/alirezacodev/card-scanner/internal/raster"
)

var (
	// ErrNoImageProvided is returned when Scan is called without pixels.
	ErrNoImageProvided = errors.New("no image provided")
	// ErrExtractionFailed wraps an OCR failure that ended a scan.
	ErrExtractionFailed = errors.New("vin extraction failed")
)

// State is a position in the scan state machine:
//
//	idle -> cropping -> enhancing -> recognizing -> matching -> matched | not_matched
//
// Any state may move to failed.
type State string

const (
	StateIdle        State = "idle"
	StateCropping    State = "cropping"
	StateEnhancing   State = "enhancing"
	StateRecognizing State = "recognizing"
	StateMatching    State = "matching"
	StateMatched     State = "matched"
	StateNotMatched  State = "not_matched"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateMatched || s == StateNotMatched || s == StateFailed
}

// StageResult is what a single pipeline stage hands back. Err is set when
// the stage failed; Image is then the input the stage received.
type StageResult struct {
	Stage State
	Image *raster.Image
	Err   error
	owned bool
}

// StageError records a recovered stage failure.
type StageError struct {
	Stage   State  `json:"stage"`
	Message string `json:"message"`
}

// Diagnostics is the side information collected during a scan.
type Diagnostics struct {
	Region      *preprocess.CropRegion `json:"crop_region,omitempty"`
	Statistics  *preprocess.Statistics `json:"statistics,omitempty"`
	Plan        *preprocess.Plan       `json:"enhancement,omitempty"`
	Sharpness   *preprocess.Sharpness  `json:"sharpness,omitempty"`
	StageErrors []StageError           `json:"stage_errors,omitempty"`
	Transitions []State                `json:"transitions"`
	OCREngine   string                 `json:"ocr_engine,omitempty"`
	Language    string                 `json:"language,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

// Outcome is the terminal result of a scan. Transcription is populated
// whenever OCR ran, including when no VIN was found.
type Outcome struct {
	State         State       `json:"state"`
	VIN           string      `json:"vin,omitempty"`
	Transcription string      `json:"transcription"`
	Err           error       `json:"-"`
	Diagnostics   Diagnostics `json:"diagnostics"`
}

// Matched reports whether a VIN was found.
func (o Outcome) Matched() bool {
	return o.State == StateMatched
}

// Reason returns the failure message, or "" for successful scans.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
