package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    *AppError
		typ    ErrorType
		status int
	}{
		{"validation", NewValidationError("bad", cause), ErrorTypeValidation, http.StatusBadRequest},
		{"media", NewUnsupportedMediaError("bad type", nil), ErrorTypeUnsupportedMedia, http.StatusUnsupportedMediaType},
		{"too large", NewPayloadTooLargeError("big", nil), ErrorTypePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"network", NewNetworkError("down", cause), ErrorTypeNetwork, http.StatusBadGateway},
		{"processing", NewProcessingError("decode", cause), ErrorTypeProcessing, http.StatusUnprocessableEntity},
		{"ocr", NewOCRError("engine", cause), ErrorTypeOCR, http.StatusBadGateway},
		{"timeout", NewTimeoutError("slow", cause), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"unavailable", NewUnavailableError("no redis", nil), ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{"internal", NewInternalError("oops", cause), ErrorTypeInternal, http.StatusInternalServerError},
		{"not found", NewNotFoundError("missing", nil), ErrorTypeNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.True(t, IsType(tt.err, tt.typ))
			assert.Equal(t, tt.status, GetStatusCode(tt.err))
		})
	}
}

func TestWrappedAppError(t *testing.T) {
	cause := errors.New("connection reset")
	appErr := NewNetworkError("Failed to fetch image", cause)
	wrapped := fmt.Errorf("scan: %w", appErr)

	assert.True(t, IsType(wrapped, ErrorTypeNetwork))
	assert.Equal(t, http.StatusBadGateway, GetStatusCode(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "Failed to fetch image", Message(wrapped, "fallback"))
	assert.Contains(t, appErr.Error(), "caused by: connection reset")
}

func TestPlainError(t *testing.T) {
	err := errors.New("plain")
	assert.False(t, IsType(err, ErrorTypeInternal))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(err))
	assert.Equal(t, "fallback", Message(err, "fallback"))
	assert.Equal(t, "validation: x", NewValidationError("x", nil).Error())
	assert.Equal(t, "d", NewValidationError("x", nil).WithDetails("d").Details)
}
