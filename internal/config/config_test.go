package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"HOST", "PORT", "REQUEST_TIMEOUT", "IMAGE_FETCH_TIMEOUT", "OCR_TIMEOUT", "MAX_UPLOAD_SIZE",
	"OCR_ENGINE", "OCR_LANGUAGE", "OCR_MIN_CONFIDENCE", "AI_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL",
	"OPENAI_BASE_URL", "GEMINI_API_KEY", "GEMINI_MODEL", "WORKER_CONCURRENCY", "AZURE_STORAGE_ACCOUNT",
	"AZURE_STORAGE_KEY", "ALLOWED_IMAGE_HOSTS", "USE_BUFFER_POOL", "REDIS_URL", "DATABASE_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, 30*time.Second, cfg.OCRTimeout)
	assert.Equal(t, OCREngineTesseract, cfg.OCR.Engine)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 4, cfg.Queue.Concurrency)
	assert.Equal(t, 24*time.Hour, cfg.Queue.StatusTTL)
	assert.True(t, cfg.Scanner.UseBufferPool)
	assert.False(t, cfg.AzureEnabled())
	assert.Empty(t, cfg.Storage.AllowedImageHosts)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", " 9090 ")
	t.Setenv("OCR_ENGINE", "Rekognition")
	t.Setenv("OCR_TIMEOUT", "5s")
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("OPENAI_API_KEY", "ignored")
	t.Setenv("USE_BUFFER_POOL", "false")
	t.Setenv("ALLOWED_IMAGE_HOSTS", "cdn.example.com, , img.example.com")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")
	t.Setenv("AZURE_STORAGE_KEY", "a2V5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.ServerAddress())
	assert.Equal(t, OCREngineRekognition, cfg.OCR.Engine)
	assert.Equal(t, 5*time.Second, cfg.OCRTimeout)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "g-key", cfg.AI.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.AI.Model)
	assert.False(t, cfg.Scanner.UseBufferPool)
	assert.Equal(t, []string{"cdn.example.com", "img.example.com"}, cfg.Storage.AllowedImageHosts)
	assert.True(t, cfg.AzureEnabled())
}

func TestLoadFromEnv_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_TIMEOUT", "-3s")
	t.Setenv("MAX_UPLOAD_SIZE", "lots")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.OCRTimeout)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadSize)
}

func TestLoadFromEnv_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"port not numeric", map[string]string{"PORT": "http"}, "invalid PORT"},
		{"port out of range", map[string]string{"PORT": "70000"}, "invalid PORT"},
		{"negative upload size", map[string]string{"MAX_UPLOAD_SIZE": "-1"}, "MAX_UPLOAD_SIZE"},
		{"unknown engine", map[string]string{"OCR_ENGINE": "easyocr"}, "unsupported OCR_ENGINE"},
		{"confidence range", map[string]string{"OCR_MIN_CONFIDENCE": "120"}, "OCR_MIN_CONFIDENCE"},
		{"worker concurrency", map[string]string{"WORKER_CONCURRENCY": "0"}, "WORKER_CONCURRENCY"},
		{"half azure config", map[string]string{"AZURE_STORAGE_ACCOUNT": "acct"}, "AZURE_STORAGE_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
