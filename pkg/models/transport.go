package models

// ScanRequest is the JSON body of the scan endpoints. Exactly one of URL
// and Blob must be set; multipart uploads bypass it.
type ScanRequest struct {
	URL         string   `json:"url,omitempty"`
	Blob        *BlobRef `json:"blob,omitempty"`
	Language    string   `json:"language,omitempty"`
	ExpectedVIN string   `json:"expected_vin,omitempty"`
}

// BlobRef names an image in Azure Blob Storage.
type BlobRef struct {
	Container string `json:"container"`
	Name      string `json:"name"`
}

// ErrorResponse is returned by the /v1 endpoints on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// Envelope is the response shape of /api/extract.
type Envelope struct {
	OK    bool           `json:"ok"`
	Data  interface{}    `json:"data,omitempty"`
	Error *EnvelopeError `json:"error,omitempty"`
}

type EnvelopeError struct {
	Message string `json:"message"`
}

// Success wraps data in an ok envelope.
func Success(data interface{}) Envelope {
	return Envelope{OK: true, Data: data}
}

// Failure wraps message in an error envelope.
func Failure(message string) Envelope {
	return Envelope{OK: false, Error: &EnvelopeError{Message: message}}
}
