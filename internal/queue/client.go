package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/alirezacodev/card-scanner/internal/logger"
	"github.com/hibiken/asynq"
)

// QueueName is the asynq queue scan tasks are published on.
const QueueName = "vin_scans"

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client publishes scans for the worker.
type Client struct {
	client   enqueuer
	status   StatusStore
	maxRetry int
	timeout  time.Duration
}

// NewClient connects to the Redis instance at redisURL.
func NewClient(redisURL string, status StatusStore, maxRetry int, timeout time.Duration) (*Client, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return newClient(asynq.NewClient(redisOpt), status, maxRetry, timeout), nil
}

func newClient(e enqueuer, status StatusStore, maxRetry int, timeout time.Duration) *Client {
	return &Client{client: e, status: status, maxRetry: maxRetry, timeout: timeout}
}

// Enqueue records the scan as queued and publishes it. The scan ID doubles
// as the asynq task ID so a scan cannot be queued twice.
func (c *Client) Enqueue(ctx context.Context, p ScanPayload) error {
	task, err := NewScanTask(p)
	if err != nil {
		return err
	}

	if err := c.status.SetStatus(ctx, JobStatus{ScanID: p.ScanID, Status: StatusQueued}); err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueName),
		asynq.TaskID(p.ScanID),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
	)
	if err != nil {
		// best effort; the enqueue error is what the caller needs
		_ = c.status.SetStatus(ctx, JobStatus{ScanID: p.ScanID, Status: StatusFailed, Error: err.Error()})
		return fmt.Errorf("enqueue scan %s: %w", p.ScanID, err)
	}

	logger.WithFields(map[string]interface{}{
		"scan_id": p.ScanID,
		"task_id": info.ID,
		"queue":   info.Queue,
	}).Info("Scan enqueued")
	return nil
}

// Status returns the stored status of a scan.
func (c *Client) Status(ctx context.Context, scanID string) (*JobStatus, error) {
	return c.status.GetStatus(ctx, scanID)
}

func (c *Client) Close() error {
	return c.client.Close()
}
