package repository

import (
	"context"
	"encoding/json"
	"time"
)

// ScanRepository stores completed scans.
type ScanRepository interface {
	// Save inserts or replaces the record with the same ID.
	Save(ctx context.Context, record *ScanRecord) error

	// Get returns ErrNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*ScanRecord, error)

	// List returns the newest records first.
	List(ctx context.Context, limit int) ([]*ScanRecord, error)

	Close() error
}

// DefaultListLimit applies when List is called with limit <= 0.
const DefaultListLimit = 50

// ScanRecord is the persisted form of a scan outcome.
type ScanRecord struct {
	ID            string          `json:"id"`
	Source        string          `json:"source"`
	State         string          `json:"state"`
	VIN           string          `json:"vin,omitempty"`
	Transcription string          `json:"transcription"`
	FailureReason string          `json:"failure_reason,omitempty"`
	OCREngine     string          `json:"ocr_engine,omitempty"`
	Language      string          `json:"language,omitempty"`
	StageErrors   []string        `json:"stage_errors,omitempty"`
	Diagnostics   json.RawMessage `json:"diagnostics,omitempty"`
	Accuracy      json.RawMessage `json:"accuracy,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
	CreatedAt     time.Time       `json:"created_at"`
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
