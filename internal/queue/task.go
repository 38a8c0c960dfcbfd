// Package queue runs VIN scans in the background on Redis through asynq
// and tracks their progress in a Redis status store.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeScanVIN is the asynq task type for a background VIN scan.
const TypeScanVIN = "scan:vin"

// ErrInvalidPayload is returned for tasks that cannot be decoded.
var ErrInvalidPayload = errors.New("invalid scan payload")

// ScanPayload carries everything a worker needs to repeat a scan. Image
// holds the undecoded upload; it is base64 encoded on the wire.
type ScanPayload struct {
	ScanID      string `json:"scan_id"`
	Source      string `json:"source"`
	Image       []byte `json:"image"`
	ContentType string `json:"content_type,omitempty"`
	Language    string `json:"language,omitempty"`
	ExpectedVIN string `json:"expected_vin,omitempty"`
}

// NewScanTask encodes p as a scan:vin task.
func NewScanTask(p ScanPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if p.ScanID == "" || len(p.Image) == 0 {
		return nil, fmt.Errorf("%w: scan id and image are required", ErrInvalidPayload)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode scan payload: %w", err)
	}
	return asynq.NewTask(TypeScanVIN, data, opts...), nil
}

// ParseScanPayload decodes a scan:vin task.
func ParseScanPayload(task *asynq.Task) (ScanPayload, error) {
	var p ScanPayload
	if task.Type() != TypeScanVIN {
		return p, fmt.Errorf("%w: unexpected task type %q", ErrInvalidPayload, task.Type())
	}
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.ScanID == "" || len(p.Image) == 0 {
		return p, fmt.Errorf("%w: scan id and image are required", ErrInvalidPayload)
	}
	return p, nil
}
