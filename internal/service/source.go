package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/alirezacodev/card-scanner/internal/errors"
	"github.com/alirezacodev/card-scanner/internal/storage"
	"github.com/alirezacodev/card-scanner/pkg/models"
	"github.com/alirezacodev/card-scanner/pkg/validation"
)

// Source names where the image of a scan comes from. Exactly one field is set.
type Source struct {
	Upload *storage.Payload
	URL    string
	Blob   *models.BlobRef
}

// Kind is recorded with each scan.
func (s Source) Kind() string {
	switch {
	case s.Upload != nil:
		return "upload"
	case s.URL != "":
		return "url"
	case s.Blob != nil:
		return "blob"
	}
	return ""
}

// resolve loads the raw image bytes for src and checks them against the
// upload rules.
func (s *VINScanService) resolve(ctx context.Context, src Source) (*storage.Payload, error) {
	var (
		payload *storage.Payload
		err     error
	)

	switch src.Kind() {
	case "upload":
		payload = src.Upload
	case "url":
		if err := s.urls.ValidateImageURL(src.URL); err != nil {
			return nil, err
		}
		payload, err = s.fetcher.FetchImage(ctx, src.URL)
		if err != nil {
			return nil, fetchError("failed to fetch image", err)
		}
	case "blob":
		if s.blobs == nil {
			return nil, apperrors.NewUnavailableError("blob storage is not configured", nil)
		}
		if strings.TrimSpace(src.Blob.Container) == "" || strings.TrimSpace(src.Blob.Name) == "" {
			return nil, apperrors.NewValidationError("blob container and name are required", nil)
		}
		payload, err = s.blobs.GetImage(ctx, src.Blob.Container, src.Blob.Name)
		if err != nil {
			return nil, fetchError("failed to download blob", err)
		}
	default:
		return nil, apperrors.NewValidationError(validation.MsgImageRequired, nil)
	}

	if payload == nil {
		return nil, apperrors.NewValidationError(validation.MsgImageRequired, nil)
	}
	if err := s.uploads.Validate(int64(len(payload.Data)), payload.ContentType); err != nil {
		return nil, err
	}
	return payload, nil
}

func fetchError(message string, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, storage.ErrTooLarge):
		return apperrors.NewPayloadTooLargeError(validation.MsgFileTooLarge, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError(message, err)
	}
	return apperrors.NewNetworkError(message, err).WithDetails(fmt.Sprint(err))
}
