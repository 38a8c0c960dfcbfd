// Package scanner runs the VIN extraction pipeline: crop, enhance,
// recognise, match. Stage failures before recognition degrade to the
// previous image instead of aborting the scan.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/alirezacodev/card-scanner/internal/observer"
	"github.com/alirezacodev/card-scanner/internal/preprocess"
	"github.com/alirezacodev/card-scanner/internal/raster"
	"github.com/alirezacodev/card-scanner/internal/vin"
)

// Recognizer turns a raster into text. *ocr.Adapter implements it.
type Recognizer interface {
	Recognize(ctx context.Context, im *raster.Image, language string) (string, error)
	EngineName() string
}

// Request is a single scan.
type Request struct {
	ScanID   string
	Image    *raster.Image
	Language string
}

// Scanner is safe for concurrent use; it holds no per-scan state.
type Scanner struct {
	recognizer Recognizer
	enhancer   *preprocess.Enhancer
	sharpness  *preprocess.SharpnessMeter
	events     observer.Subject
	opts       Options
}

// New creates a Scanner. events may be nil.
func New(recognizer Recognizer, opts Options, events observer.Subject) *Scanner {
	var pool *raster.Pool
	if opts.UseBufferPool {
		pool = raster.NewPool()
	}
	if opts.Language == "" {
		opts.Language = DefaultOptions().Language
	}

	s := &Scanner{
		recognizer: recognizer,
		enhancer:   preprocess.NewEnhancer(pool),
		events:     events,
		opts:       opts,
	}
	if opts.MeasureSharpness {
		s.sharpness = preprocess.NewSharpnessMeter(opts.BlurThreshold)
	}
	return s
}

// run tracks one scan's transitions and diagnostics.
type run struct {
	s       *Scanner
	ctx     context.Context
	scanID  string
	start   time.Time
	state   State
	diag    Diagnostics
	release []*raster.Image
}

func (r *run) enter(next State) {
	r.state = next
	r.diag.Transitions = append(r.diag.Transitions, next)
	r.notify(observer.ScanEvent{EventType: observer.StageEntered, Stage: string(next)})
}

func (r *run) degrade(res StageResult) {
	r.diag.StageErrors = append(r.diag.StageErrors, StageError{Stage: res.Stage, Message: res.Err.Error()})
	r.notify(observer.ScanEvent{EventType: observer.StageDegraded, Stage: string(res.Stage), Error: res.Err.Error()})
}

func (r *run) notify(ev observer.ScanEvent) {
	if r.s.events == nil {
		return
	}
	ev.ScanID = r.scanID
	ev.Elapsed = time.Since(r.start)
	r.s.events.Notify(r.ctx, ev)
}

func (r *run) finish(out Outcome) Outcome {
	for _, im := range r.release {
		r.s.enhancer.Release(im)
	}
	r.release = nil

	r.enter(out.State)
	r.diag.Duration = time.Since(r.start)
	out.Diagnostics = r.diag

	ev := observer.ScanEvent{EventType: observer.ScanFinished, Outcome: string(out.State)}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	if out.VIN != "" {
		ev.Metadata = map[string]interface{}{"vin": out.VIN}
	}
	r.notify(ev)
	return out
}

// Scan runs the pipeline on req.Image. It never returns an error directly;
// failures are reported through Outcome.State == StateFailed and Outcome.Err.
// The input image is never modified.
func (s *Scanner) Scan(ctx context.Context, req Request) Outcome {
	r := &run{
		s:      s,
		ctx:    ctx,
		scanID: req.ScanID,
		start:  time.Now(),
		state:  StateIdle,
		diag:   Diagnostics{Transitions: []State{StateIdle}},
	}
	r.notify(observer.ScanEvent{EventType: observer.ScanStarted})

	if req.Image.Empty() {
		return r.finish(Outcome{State: StateFailed, Err: ErrNoImageProvided})
	}

	language := req.Language
	if language == "" {
		language = s.opts.Language
	}
	r.diag.Language = language
	r.diag.OCREngine = s.recognizer.EngineName()

	current := req.Image

	r.enter(StateCropping)
	if !s.opts.SkipCrop {
		res := s.crop(current, &r.diag)
		current = r.accept(res)
	}

	r.enter(StateEnhancing)
	if !s.opts.SkipEnhance {
		res := s.enhance(current, &r.diag)
		current = r.accept(res)
	}

	if s.sharpness != nil {
		if sh, err := s.sharpness.Measure(current); err == nil {
			r.diag.Sharpness = &sh
		}
	}

	r.enter(StateRecognizing)
	text, err := s.recognizer.Recognize(ctx, current, language)
	if err != nil {
		return r.finish(Outcome{
			State: StateFailed,
			Err:   fmt.Errorf("%w: %w", ErrExtractionFailed, err),
		})
	}

	r.enter(StateMatching)
	m := vin.Find(text)
	if !m.Found {
		return r.finish(Outcome{State: StateNotMatched, Transcription: text})
	}
	return r.finish(Outcome{State: StateMatched, VIN: m.Value, Transcription: text})
}

// accept returns the image the next stage should use and records failures.
func (r *run) accept(res StageResult) *raster.Image {
	if res.Err != nil {
		r.degrade(res)
		return res.Image
	}
	if res.owned {
		r.release = append(r.release, res.Image)
	}
	return res.Image
}

func (s *Scanner) crop(in *raster.Image, diag *Diagnostics) StageResult {
	out, region, err := preprocess.Crop(in)
	if err != nil {
		return StageResult{Stage: StateCropping, Image: in, Err: err}
	}
	diag.Region = &region
	return StageResult{Stage: StateCropping, Image: out}
}

func (s *Scanner) enhance(in *raster.Image, diag *Diagnostics) StageResult {
	out, stats, plan, err := s.enhancer.AnalyzeAndEnhance(in)
	if err != nil {
		return StageResult{Stage: StateEnhancing, Image: in, Err: err}
	}
	diag.Statistics = &stats
	diag.Plan = &plan
	return StageResult{Stage: StateEnhancing, Image: out, owned: true}
}
