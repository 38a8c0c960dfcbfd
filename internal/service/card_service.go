package service

import (
	"context"
	"time"

	"github.com/alirezacodev/card-scanner/internal/card"
	apperrors "github.com/alirezacodev/card-scanner/internal/errors"
	"github.com/alirezacodev/card-scanner/internal/logger"
	"github.com/alirezacodev/card-scanner/internal/storage"
	"github.com/alirezacodev/card-scanner/pkg/validation"
)

// CardExtractor is satisfied by *card.Relay.
type CardExtractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (card.CarCardData, error)
	Provider() string
}

// CardService reads every field of a vehicle registration card photo.
type CardService interface {
	ExtractCard(ctx context.Context, upload *storage.Payload) (*card.CarCardData, error)
}

type cardService struct {
	extractor CardExtractor
	uploads   *validation.UploadValidator
}

// NewCardService returns a service that reports unavailable when extractor is nil.
func NewCardService(extractor CardExtractor, uploads *validation.UploadValidator) CardService {
	if uploads == nil {
		uploads = validation.NewUploadValidator(5 * 1024 * 1024)
	}
	return &cardService{extractor: extractor, uploads: uploads}
}

func (s *cardService) ExtractCard(ctx context.Context, upload *storage.Payload) (*card.CarCardData, error) {
	if upload == nil {
		return nil, apperrors.NewValidationError(validation.MsgImageRequired, nil)
	}
	if err := s.uploads.Validate(int64(len(upload.Data)), upload.ContentType); err != nil {
		return nil, err
	}
	if s.extractor == nil {
		return nil, apperrors.NewUnavailableError("AI provider is not configured", nil)
	}

	start := time.Now()
	data, err := s.extractor.Extract(ctx, upload.Data, upload.ContentType)
	if err != nil {
		logger.WithError(err).WithField("provider", s.extractor.Provider()).Error("Card extraction failed")
		return nil, apperrors.NewInternalError(err.Error(), err)
	}

	logger.WithFields(map[string]interface{}{
		"provider": s.extractor.Provider(),
		"vin":      data.VIN,
		"duration": time.Since(start).String(),
	}).Info("Card extracted")
	return &data, nil
}
