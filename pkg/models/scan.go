package models

import (
	"time"

	"github.com/alirezacodev/card-scanner/internal/scanner"
	"github.com/alirezacodev/card-scanner/internal/vin"
)

// ScanResponse reports a finished scan. Both matched and not_matched
// scans are successful responses; State tells them apart.
type ScanResponse struct {
	ScanID        string              `json:"scan_id"`
	Source        string              `json:"source"`
	State         scanner.State       `json:"state"`
	VIN           string              `json:"vin,omitempty"`
	Transcription string              `json:"transcription"`
	FailureReason string              `json:"failure_reason,omitempty"`
	Accuracy      *vin.Accuracy       `json:"accuracy,omitempty"`
	Diagnostics   scanner.Diagnostics `json:"diagnostics"`
	DurationMS    int64               `json:"duration_ms"`
	Timestamp     time.Time           `json:"timestamp"`
}

// AsyncScanResponse is returned with 202 Accepted.
type AsyncScanResponse struct {
	ScanID    string `json:"scan_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// ScanStatusResponse describes a scan looked up by ID. Result is set once
// the scan has finished.
type ScanStatusResponse struct {
	ScanID    string        `json:"scan_id"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Result    *ScanResponse `json:"result,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ScanListResponse is the history listing.
type ScanListResponse struct {
	Scans []ScanResponse `json:"scans"`
	Count int            `json:"count"`
}
