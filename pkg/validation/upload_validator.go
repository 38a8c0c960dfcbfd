package validation

import (
	"fmt"
	"strings"

	apperrors "github.com/alirezacodev/card-scanner/internal/errors"
)

// Messages returned to clients of the extraction endpoint.
const (
	MsgImageRequired   = "Image is required"
	MsgUnsupportedType = "Unsupported file type"
	MsgFileTooLarge    = "File too large"
)

// DefaultAllowedTypes are the media types accepted for card photos.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// UploadValidator checks an uploaded image before it is decoded.
type UploadValidator struct {
	allowedTypes map[string]struct{}
	maxBytes     int64
}

// NewUploadValidator accepts types (DefaultAllowedTypes when empty) up to maxBytes.
func NewUploadValidator(maxBytes int64, types ...string) *UploadValidator {
	if len(types) == 0 {
		types = DefaultAllowedTypes
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &UploadValidator{allowedTypes: allowed, maxBytes: maxBytes}
}

func (v *UploadValidator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate checks presence, media type and size, in that order.
func (v *UploadValidator) Validate(size int64, contentType string) error {
	if size <= 0 {
		return apperrors.NewValidationError(MsgImageRequired, nil)
	}
	if !v.Allowed(contentType) {
		return apperrors.NewValidationError(MsgUnsupportedType, nil).
			WithDetails(fmt.Sprintf("got %q", contentType))
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		return apperrors.NewValidationError(MsgFileTooLarge, nil).
			WithDetails(fmt.Sprintf("%d bytes exceeds limit of %d", size, v.maxBytes))
	}
	return nil
}

// Allowed reports whether contentType, ignoring parameters, is accepted.
func (v *UploadValidator) Allowed(contentType string) bool {
	mt := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	_, ok := v.allowedTypes[mt]
	return ok
}
