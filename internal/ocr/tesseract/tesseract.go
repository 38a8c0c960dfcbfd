// Package tesseract runs OCR in-process through libtesseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/alirezacodev/card-scanner/internal/ocr"

	"github.com/otiai10/gosseract/v2"
)

// Config tunes the tesseract client created for each session.
type Config struct {
	// TessdataPrefix overrides the traineddata directory. Empty uses the system default.
	TessdataPrefix string
	// Whitelist restricts recognised characters. Empty allows everything.
	Whitelist string
	// DisableDictionary turns off word-list correction, which mangles serial numbers.
	DisableDictionary bool
	PageSegMode       gosseract.PageSegMode
}

// DefaultConfig treats the crop as a single block of text with dictionaries off.
func DefaultConfig() Config {
	return Config{
		DisableDictionary: true,
		PageSegMode:       gosseract.PSM_SINGLE_BLOCK,
	}
}

// Engine creates one gosseract client per session.
type Engine struct {
	cfg Config
}

// New creates a tesseract engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Name implements ocr.Engine.
func (e *Engine) Name() string {
	return "tesseract"
}

// Open implements ocr.Engine.
func (e *Engine) Open(ctx context.Context) (ocr.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if e.cfg.TessdataPrefix != "" {
		client.TessdataPrefix = e.cfg.TessdataPrefix
	}

	if e.cfg.DisableDictionary {
		_ = client.SetVariable("load_system_dawg", "false")
		_ = client.SetVariable("load_freq_dawg", "false")
	}
	if e.cfg.PageSegMode != 0 {
		if err := client.SetPageSegMode(e.cfg.PageSegMode); err != nil {
			client.Close()
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if e.cfg.Whitelist != "" {
		if err := client.SetWhitelist(e.cfg.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}

	return &session{client: client}, nil
}

type session struct {
	client *gosseract.Client
}

func (s *session) Recognize(ctx context.Context, png []byte, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// "eng+fas" style hints select several traineddata files
	if err := s.client.SetLanguage(strings.Split(language, "+")...); err != nil {
		return "", fmt.Errorf("set language %q: %w", language, err)
	}
	if err := s.client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := s.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}

func (s *session) Close() error {
	return s.client.Close()
}
