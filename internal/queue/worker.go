package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/alirezacodev/card-scanner/internal/errors"
	"github.com/alirezacodev/card-scanner/internal/logger"
	"github.com/hibiken/asynq"
)

// Processor runs a queued scan and returns a JSON-encodable result.
type Processor interface {
	ProcessQueued(ctx context.Context, p ScanPayload) (interface{}, error)
}

// Handler turns scan:vin tasks into Processor calls and status updates.
type Handler struct {
	processor Processor
	status    StatusStore
}

func NewHandler(processor Processor, status StatusStore) *Handler {
	return &Handler{processor: processor, status: status}
}

// permanent reports errors a retry cannot fix: bad payloads and any
// application error with a 4xx status.
func permanent(err error) bool {
	if errors.Is(err, ErrInvalidPayload) {
		return true
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

func (h *Handler) setStatus(ctx context.Context, st JobStatus) {
	if err := h.status.SetStatus(ctx, st); err != nil {
		logger.WithError(err).WithField("scan_id", st.ScanID).Warn("Failed to update scan status")
	}
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	p, err := ParseScanPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	attempt := retried + 1

	log := logger.WithFields(map[string]interface{}{"scan_id": p.ScanID, "attempt": attempt})
	h.setStatus(ctx, JobStatus{ScanID: p.ScanID, Status: StatusProcessing, Attempt: attempt})

	start := time.Now()
	result, err := h.processor.ProcessQueued(ctx, p)
	if err != nil {
		final := permanent(err) || retried >= maxRetry
		st := JobStatus{ScanID: p.ScanID, Status: StatusQueued, Attempt: attempt, Error: err.Error()}
		if final {
			st.Status = StatusFailed
		}
		h.setStatus(ctx, st)
		log.WithError(err).WithField("final", final).Warn("Background scan failed")
		if permanent(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		h.setStatus(ctx, JobStatus{ScanID: p.ScanID, Status: StatusFailed, Attempt: attempt, Error: err.Error()})
		return fmt.Errorf("encode result: %v: %w", err, asynq.SkipRetry)
	}
	h.setStatus(ctx, JobStatus{ScanID: p.ScanID, Status: StatusDone, Attempt: attempt, Result: data})
	log.WithField("duration", time.Since(start).String()).Info("Background scan completed")
	return nil
}

// Worker consumes scan:vin tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker configures an asynq server for the scan queue.
func NewWorker(redisURL string, concurrency int, handler *Handler) (*Worker, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueName: 10,
			"default": 1,
		},
		RetryDelayFunc: retryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.WithError(err).WithField("task_type", task.Type()).Error("Task processing error")
		}),
		Logger: asynqLogger{},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeScanVIN, handler)

	return &Worker{server: server, mux: mux}, nil
}

// retryDelay backs off 5s, 10s, 20s ... capped at one minute.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > time.Minute || delay <= 0 {
		delay = time.Minute
	}
	return delay
}

// Run blocks until SIGTERM or SIGINT.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Start processes tasks in the background until Shutdown.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// asynqLogger routes asynq's internal logging through logrus.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) {
	logger.WithField("component", "asynq").Debug(fmt.Sprint(args...))
}

func (asynqLogger) Info(args ...interface{}) {
	logger.WithField("component", "asynq").Info(fmt.Sprint(args...))
}

func (asynqLogger) Warn(args ...interface{}) {
	logger.WithField("component", "asynq").Warn(fmt.Sprint(args...))
}

func (asynqLogger) Error(args ...interface{}) {
	logger.WithField("component", "asynq").Error(fmt.Sprint(args...))
}

func (asynqLogger) Fatal(args ...interface{}) {
	logger.WithField("component", "asynq").Fatal(fmt.Sprint(args...))
}
