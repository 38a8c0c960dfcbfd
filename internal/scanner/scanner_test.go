package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alirezacodev/card-scanner/internal/observer"
	"github.com/alirezacodev/card-scanner/internal/ocr"
	"github.com/alirezacodev/card-scanner/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecognizer struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    atomic.Int32
	lastW    int
	lastH    int
	lastLang string
}

func (s *stubRecognizer) Recognize(_ context.Context, im *raster.Image, language string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastW, s.lastH, s.lastLang = im.Width, im.Height, language
	s.mu.Unlock()
	return s.text, s.err
}

func (s *stubRecognizer) EngineName() string { return "stub" }

func greyImage(w, h int, v uint8) *raster.Image {
	im := raster.New(w, h)
	for i := 0; i < len(im.Pix); i += 4 {
		im.Pix[i], im.Pix[i+1], im.Pix[i+2], im.Pix[i+3] = v, v, v, 255
	}
	return im
}

func TestScan_RoundTrip(t *testing.T) {
	rec := &stubRecognizer{text: "IRAN\nNAHCR123456789012\n1398"}
	s := New(rec, DefaultOptions(), nil)

	out := s.Scan(context.Background(), Request{ScanID: "t1", Image: greyImage(1000, 800, 60)})

	require.NoError(t, out.Err)
	assert.Equal(t, StateMatched, out.State)
	assert.True(t, out.Matched())
	assert.Equal(t, "NAHCR123456789012", out.VIN)
	assert.Equal(t, rec.text, out.Transcription)
	assert.Empty(t, out.Reason())

	assert.Equal(t, 900, rec.lastW)
	assert.Equal(t, 280, rec.lastH)
	assert.Equal(t, "eng", rec.lastLang)

	assert.Equal(t, []State{StateIdle, StateCropping, StateEnhancing, StateRecognizing, StateMatching, StateMatched},
		out.Diagnostics.Transitions)
	require.NotNil(t, out.Diagnostics.Region)
	require.NotNil(t, out.Diagnostics.Statistics)
	require.NotNil(t, out.Diagnostics.Plan)
	assert.False(t, out.Diagnostics.Plan.NoOp())
	require.NotNil(t, out.Diagnostics.Sharpness)
	assert.Empty(t, out.Diagnostics.StageErrors)
	assert.Equal(t, "stub", out.Diagnostics.OCREngine)
}

func TestScan_NotMatchedKeepsTranscription(t *testing.T) {
	rec := &stubRecognizer{text: "no chassis number here"}
	out := New(rec, FastOptions(), nil).Scan(context.Background(), Request{Image: greyImage(50, 50, 200)})

	assert.Equal(t, StateNotMatched, out.State)
	assert.NoError(t, out.Err)
	assert.Empty(t, out.VIN)
	assert.Equal(t, "no chassis number here", out.Transcription)
	assert.Nil(t, out.Diagnostics.Sharpness)
}

func TestScan_SinglePixelFallsBackToOriginal(t *testing.T) {
	rec := &stubRecognizer{text: "NAAM1234567890ABC"}
	out := New(rec, DefaultOptions(), nil).Scan(context.Background(), Request{Image: greyImage(1, 1, 10)})

	assert.Equal(t, StateMatched, out.State)
	assert.Equal(t, 1, rec.lastW)
	assert.Equal(t, 1, rec.lastH)
	require.Len(t, out.Diagnostics.StageErrors, 1)
	assert.Equal(t, StateCropping, out.Diagnostics.StageErrors[0].Stage)
	assert.Nil(t, out.Diagnostics.Region)
}

func TestScan_OCRFailureSurfaces(t *testing.T) {
	cause := fmt.Errorf("%w: engine exploded", ocr.ErrOCRFailure)
	rec := &stubRecognizer{err: cause}
	out := New(rec, DefaultOptions(), nil).Scan(context.Background(), Request{Image: greyImage(100, 100, 128)})

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrExtractionFailed)
	assert.ErrorIs(t, out.Err, ocr.ErrOCRFailure)
	assert.Contains(t, out.Reason(), "engine exploded")
	assert.Empty(t, out.VIN)
	assert.EqualValues(t, 1, rec.calls.Load(), "no retry")
	assert.Equal(t, StateFailed, out.Diagnostics.Transitions[len(out.Diagnostics.Transitions)-1])
}

func TestScan_NoImage(t *testing.T) {
	rec := &stubRecognizer{text: "NAAM1234567890ABC"}
	s := New(rec, DefaultOptions(), nil)

	for name, im := range map[string]*raster.Image{"nil": nil, "zero size": raster.New(0, 0)} {
		t.Run(name, func(t *testing.T) {
			out := s.Scan(context.Background(), Request{Image: im})
			assert.Equal(t, StateFailed, out.State)
			assert.True(t, errors.Is(out.Err, ErrNoImageProvided))
			assert.Equal(t, []State{StateIdle, StateFailed}, out.Diagnostics.Transitions)
		})
	}
	assert.EqualValues(t, 0, rec.calls.Load())
}

func TestScan_RawOptionsPassThrough(t *testing.T) {
	rec := &stubRecognizer{text: ""}
	out := New(rec, RawOptions(), nil).Scan(context.Background(), Request{Image: greyImage(40, 30, 0), Language: "fas"})

	assert.Equal(t, StateNotMatched, out.State)
	assert.Equal(t, 40, rec.lastW)
	assert.Equal(t, 30, rec.lastH)
	assert.Equal(t, "fas", rec.lastLang)
	assert.Nil(t, out.Diagnostics.Plan)
}

func TestScan_DoesNotModifyInput(t *testing.T) {
	src := greyImage(200, 100, 30)
	before := src.Clone()

	New(&stubRecognizer{}, DefaultOptions(), nil).Scan(context.Background(), Request{Image: src})
	assert.Equal(t, before.Pix, src.Pix)
}

func TestScan_EmitsEvents(t *testing.T) {
	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher(metrics)
	s := New(&stubRecognizer{text: "NAAM1234567890ABC"}, DefaultOptions(), events)

	s.Scan(context.Background(), Request{ScanID: "a", Image: greyImage(1, 1, 0)})
	s.Scan(context.Background(), Request{ScanID: "b"})

	snap := metrics.Snapshot()
	assert.EqualValues(t, 2, snap["scans_started"])
	assert.Equal(t, map[string]int64{"matched": 1, "failed": 1}, snap["outcomes"])
	assert.Equal(t, map[string]int64{"cropping": 1}, snap["stage_degradations"])
}

func TestScan_Concurrent(t *testing.T) {
	rec := &stubRecognizer{text: "NAAM1234567890ABC"}
	s := New(rec, DefaultOptions(), observer.NewEventPublisher(observer.NewMetricsObserver()))

	var wg sync.WaitGroup
	results := make([]Outcome, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Scan(context.Background(), Request{
				ScanID: fmt.Sprintf("scan-%d", i),
				Image:  greyImage(120, 80, uint8(i*10)),
			})
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		assert.Equal(t, StateMatched, out.State, "scan %d", i)
	}
	assert.EqualValues(t, 16, rec.calls.Load())
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateMatched.Terminal())
	assert.True(t, StateNotMatched.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateRecognizing.Terminal())
	assert.False(t, StateIdle.Terminal())
}
