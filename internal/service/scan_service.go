package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/alirezacodev/card-scanner/internal/errors"
	"github.com/alirezacodev/card-scanner/internal/logger"
	"github.com/alirezacodev/card-scanner/internal/queue"
	"github.com/alirezacodev/card-scanner/internal/raster"
	"github.com/alirezacodev/card-scanner/internal/repository"
	"github.com/alirezacodev/card-scanner/internal/scanner"
	"github.com/alirezacodev/card-scanner/internal/storage"
	"github.com/alirezacodev/card-scanner/internal/vin"
	"github.com/alirezacodev/card-scanner/pkg/models"
	"github.com/alirezacodev/card-scanner/pkg/validation"
	"github.com/google/uuid"
)

// ScanOptions are the per-request knobs of a scan.
type ScanOptions struct {
	Language    string
	ExpectedVIN string
}

// ScanService runs VIN scans synchronously or through the queue and
// serves scan history.
type ScanService interface {
	Scan(ctx context.Context, src Source, opts ScanOptions) (*models.ScanResponse, error)
	Enqueue(ctx context.Context, src Source, opts ScanOptions) (*models.AsyncScanResponse, error)
	GetScan(ctx context.Context, scanID string) (*models.ScanStatusResponse, error)
	ListScans(ctx context.Context, limit int) (*models.ScanListResponse, error)
	AsyncEnabled() bool
}

// Pipeline is satisfied by *scanner.Scanner.
type Pipeline interface {
	Scan(ctx context.Context, req scanner.Request) scanner.Outcome
}

// JobQueue is satisfied by *queue.Client.
type JobQueue interface {
	Enqueue(ctx context.Context, p queue.ScanPayload) error
	Status(ctx context.Context, scanID string) (*queue.JobStatus, error)
}

// Dependencies groups the collaborators of the scan service. Blobs and
// Jobs are optional.
type Dependencies struct {
	Pipeline     Pipeline
	Fetcher      storage.ImageFetcher
	Blobs        storage.BlobStorage
	URLValidator *validation.URLValidator
	Uploads      *validation.UploadValidator
	Repository   repository.ScanRepository
	Jobs         JobQueue
}

// VINScanService implements ScanService and queue.Processor.
type VINScanService struct {
	pipeline Pipeline
	fetcher  storage.ImageFetcher
	blobs    storage.BlobStorage
	urls     *validation.URLValidator
	uploads  *validation.UploadValidator
	repo     repository.ScanRepository
	jobs     JobQueue
	newID    func() string
	now      func() time.Time
}

// NewScanService wires deps. Missing validators and repository get defaults.
func NewScanService(deps Dependencies) *VINScanService {
	s := &VINScanService{
		pipeline: deps.Pipeline,
		fetcher:  deps.Fetcher,
		blobs:    deps.Blobs,
		urls:     deps.URLValidator,
		uploads:  deps.Uploads,
		repo:     deps.Repository,
		jobs:     deps.Jobs,
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.urls == nil {
		s.urls = validation.NewURLValidator()
	}
	if s.uploads == nil {
		s.uploads = validation.NewUploadValidator(5 * 1024 * 1024)
	}
	if s.repo == nil {
		s.repo = repository.NewMemoryRepository(1000)
	}
	return s
}

func (s *VINScanService) AsyncEnabled() bool {
	return s.jobs != nil
}

func (s *VINScanService) Scan(ctx context.Context, src Source, opts ScanOptions) (*models.ScanResponse, error) {
	payload, err := s.resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, s.newID(), src.Kind(), payload, opts)
}

// ProcessQueued implements queue.Processor.
func (s *VINScanService) ProcessQueued(ctx context.Context, p queue.ScanPayload) (interface{}, error) {
	payload := &storage.Payload{Data: p.Image, ContentType: p.ContentType}
	return s.run(ctx, p.ScanID, p.Source, payload, ScanOptions{Language: p.Language, ExpectedVIN: p.ExpectedVIN})
}

// run decodes payload, scans it and records the result. A scan that ends
// in the failed state is recorded and then returned as an error.
func (s *VINScanService) run(ctx context.Context, scanID, source string, payload *storage.Payload, opts ScanOptions) (*models.ScanResponse, error) {
	img, _, err := storage.DecodeImage(payload.Data)
	if err != nil {
		return nil, apperrors.NewValidationError(validation.MsgUnsupportedType, err)
	}

	outcome := s.pipeline.Scan(ctx, scanner.Request{
		ScanID:   scanID,
		Image:    raster.FromImage(img),
		Language: opts.Language,
	})

	resp := &models.ScanResponse{
		ScanID:        scanID,
		Source:        source,
		State:         outcome.State,
		VIN:           outcome.VIN,
		Transcription: outcome.Transcription,
		FailureReason: outcome.Reason(),
		Diagnostics:   outcome.Diagnostics,
		DurationMS:    outcome.Diagnostics.Duration.Milliseconds(),
		Timestamp:     s.now(),
	}
	if opts.ExpectedVIN != "" && outcome.State != scanner.StateFailed {
		actual := outcome.VIN
		if !outcome.Matched() {
			actual = outcome.Transcription
		}
		acc := vin.Compare(opts.ExpectedVIN, actual)
		resp.Accuracy = &acc
	}

	s.save(ctx, resp)

	if outcome.State == scanner.StateFailed {
		return nil, outcomeError(ctx, outcome.Err)
	}

	logger.WithFields(map[string]interface{}{
		"scan_id": scanID,
		"source":  source,
		"state":   string(outcome.State),
		"ms":      resp.DurationMS,
	}).Info("Scan completed")
	return resp, nil
}

func outcomeError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, scanner.ErrNoImageProvided):
		return apperrors.NewValidationError(validation.MsgImageRequired, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.NewTimeoutError("VIN extraction timed out", err)
	case errors.Is(err, scanner.ErrExtractionFailed):
		return apperrors.NewOCRError("VIN extraction failed", err)
	}
	return apperrors.NewInternalError("scan failed", err)
}

func (s *VINScanService) save(ctx context.Context, resp *models.ScanResponse) {
	record, err := toRecord(resp)
	if err == nil {
		err = s.repo.Save(ctx, record)
	}
	if err != nil {
		logger.WithError(err).WithField("scan_id", resp.ScanID).Warn("Failed to record scan")
	}
}

func (s *VINScanService) Enqueue(ctx context.Context, src Source, opts ScanOptions) (*models.AsyncScanResponse, error) {
	if s.jobs == nil {
		return nil, apperrors.NewUnavailableError("background scans are not configured", nil)
	}
	payload, err := s.resolve(ctx, src)
	if err != nil {
		return nil, err
	}

	scanID := s.newID()
	err = s.jobs.Enqueue(ctx, queue.ScanPayload{
		ScanID:      scanID,
		Source:      src.Kind(),
		Image:       payload.Data,
		ContentType: payload.ContentType,
		Language:    opts.Language,
		ExpectedVIN: opts.ExpectedVIN,
	})
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to queue scan", err)
	}

	return &models.AsyncScanResponse{
		ScanID:    scanID,
		Status:    string(queue.StatusQueued),
		StatusURL: "/v1/scans/" + scanID,
	}, nil
}

// GetScan prefers the live job status and falls back to history.
func (s *VINScanService) GetScan(ctx context.Context, scanID string) (*models.ScanStatusResponse, error) {
	if _, err := uuid.Parse(scanID); err != nil {
		return nil, apperrors.NewValidationError("invalid scan id", err)
	}

	if s.jobs != nil {
		st, err := s.jobs.Status(ctx, scanID)
		switch {
		case err == nil:
			return fromJobStatus(st)
		case !errors.Is(err, queue.ErrStatusNotFound):
			logger.WithError(err).WithField("scan_id", scanID).Warn("Job status lookup failed")
		}
	}

	record, err := s.repo.Get(ctx, scanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("scan not found", err)
		}
		return nil, apperrors.NewInternalError("failed to load scan", err)
	}
	resp, err := fromRecord(record)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to decode scan", err)
	}

	status := queue.StatusDone
	if resp.State == scanner.StateFailed {
		status = queue.StatusFailed
	}
	return &models.ScanStatusResponse{
		ScanID:    scanID,
		Status:    string(status),
		Error:     resp.FailureReason,
		Result:    resp,
		UpdatedAt: record.CreatedAt,
	}, nil
}

func (s *VINScanService) ListScans(ctx context.Context, limit int) (*models.ScanListResponse, error) {
	records, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list scans", err)
	}
	out := &models.ScanListResponse{Scans: make([]models.ScanResponse, 0, len(records))}
	for _, r := range records {
		resp, err := fromRecord(r)
		if err != nil {
			logger.WithError(err).WithField("scan_id", r.ID).Warn("Skipping undecodable scan record")
			continue
		}
		out.Scans = append(out.Scans, *resp)
	}
	out.Count = len(out.Scans)
	return out, nil
}

func fromJobStatus(st *queue.JobStatus) (*models.ScanStatusResponse, error) {
	out := &models.ScanStatusResponse{
		ScanID:    st.ScanID,
		Status:    string(st.Status),
		Error:     st.Error,
		UpdatedAt: st.UpdatedAt,
	}
	if len(st.Result) > 0 {
		var resp models.ScanResponse
		if err := json.Unmarshal(st.Result, &resp); err != nil {
			return nil, apperrors.NewInternalError("failed to decode scan result", err)
		}
		out.Result = &resp
	}
	return out, nil
}

func toRecord(resp *models.ScanResponse) (*repository.ScanRecord, error) {
	diag, err := json.Marshal(resp.Diagnostics)
	if err != nil {
		return nil, fmt.Errorf("encode diagnostics: %w", err)
	}
	record := &repository.ScanRecord{
		ID:            resp.ScanID,
		Source:        resp.Source,
		State:         string(resp.State),
		VIN:           resp.VIN,
		Transcription: resp.Transcription,
		FailureReason: resp.FailureReason,
		OCREngine:     resp.Diagnostics.OCREngine,
		Language:      resp.Diagnostics.Language,
		Diagnostics:   diag,
		DurationMS:    resp.DurationMS,
		CreatedAt:     resp.Timestamp,
	}
	for _, se := range resp.Diagnostics.StageErrors {
		record.StageErrors = append(record.StageErrors, string(se.Stage)+": "+se.Message)
	}
	if resp.Accuracy != nil {
		if record.Accuracy, err = json.Marshal(resp.Accuracy); err != nil {
			return nil, fmt.Errorf("encode accuracy: %w", err)
		}
	}
	return record, nil
}

func fromRecord(r *repository.ScanRecord) (*models.ScanResponse, error) {
	resp := &models.ScanResponse{
		ScanID:        r.ID,
		Source:        r.Source,
		State:         scanner.State(r.State),
		VIN:           r.VIN,
		Transcription: r.Transcription,
		FailureReason: r.FailureReason,
		DurationMS:    r.DurationMS,
		Timestamp:     r.CreatedAt,
	}
	if len(r.Diagnostics) > 0 {
		if err := json.Unmarshal(r.Diagnostics, &resp.Diagnostics); err != nil {
			return nil, err
		}
	}
	if len(r.Accuracy) > 0 {
		var acc vin.Accuracy
		if err := json.Unmarshal(r.Accuracy, &acc); err != nil {
			return nil, err
		}
		resp.Accuracy = &acc
	}
	return resp, nil
}
