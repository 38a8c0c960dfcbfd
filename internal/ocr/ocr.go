// Package ocr adapts text-recognition engines to the scan pipeline.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alirezacodev/card-scanner/internal/logger"
	"github.com/alirezacodev/card-scanner/internal/raster"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// DefaultLanguage is the recognition language used when none is given.
const DefaultLanguage = "eng"

// ErrOCRFailure wraps every error raised while encoding, opening a session
// or recognising text.
var ErrOCRFailure = errors.New("ocr failure")

// Session is an acquired engine instance. It is used by one goroutine at a
// time and must be closed after use.
type Session interface {
	Recognize(ctx context.Context, png []byte, language string) (string, error)
	Close() error
}

// Engine hands out recognition sessions.
type Engine interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}

// WithSession opens a session, runs fn with it and closes it on every exit
// path, including panics inside fn.
func WithSession(ctx context.Context, engine Engine, fn func(Session) error) error {
	s, err := engine.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s session: %w", engine.Name(), err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.WithError(cerr).WithField("engine", engine.Name()).Warn("Failed to release OCR session")
		}
	}()
	return fn(s)
}

// Adapter turns a raster into a transcription using an Engine.
type Adapter struct {
	engine   Engine
	language string
	timeout  time.Duration
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLanguage sets the default language hint.
func WithLanguage(lang string) Option {
	return func(a *Adapter) {
		if lang != "" {
			a.language = lang
		}
	}
}

// WithTimeout bounds each recognition call. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		a.timeout = d
	}
}

// NewAdapter wraps engine.
func NewAdapter(engine Engine, opts ...Option) *Adapter {
	a := &Adapter{engine: engine, language: DefaultLanguage}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EngineName reports the wrapped engine's name.
func (a *Adapter) EngineName() string {
	return a.engine.Name()
}

// Language reports the default language hint.
func (a *Adapter) Language() string {
	return a.language
}

// EncodePNG serialises a raster losslessly.
func EncodePNG(im *raster.Image) ([]byte, error) {
	if err := im.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, im.NRGBA(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Recognize transcribes im. An empty language uses the adapter default.
// The call blocks the calling goroutine only. Every failure wraps ErrOCRFailure.
func (a *Adapter) Recognize(ctx context.Context, im *raster.Image, language string) (string, error) {
	if language == "" {
		language = a.language
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrOCRFailure, err)
	}

	png, err := EncodePNG(im)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOCRFailure, err)
	}

	start := time.Now()
	var text string
	err = WithSession(ctx, a.engine, func(s Session) error {
		var rerr error
		text, rerr = s.Recognize(ctx, png, language)
		return rerr
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOCRFailure, err)
	}

	logger.WithFields(logrus.Fields{
		"engine":     a.engine.Name(),
		"language":   language,
		"png_bytes":  len(png),
		"chars":      len(text),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("OCR completed")

	return text, nil
}
