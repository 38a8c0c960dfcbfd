package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status is the lifecycle position of a background scan.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// ErrStatusNotFound is returned for unknown or expired scan IDs.
var ErrStatusNotFound = errors.New("scan status not found")

// JobStatus is stored under scan:<id>.
type JobStatus struct {
	ScanID    string          `json:"scan_id"`
	Status    Status          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Attempt   int             `json:"attempt"`
	Result    json.RawMessage `json:"result,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StatusStore persists JobStatus values.
type StatusStore interface {
	SetStatus(ctx context.Context, status JobStatus) error
	GetStatus(ctx context.Context, scanID string) (*JobStatus, error)
}

// RedisStatusStore keeps statuses as JSON strings with a TTL.
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusStore parses redisURL and pings the server.
func NewRedisStatusStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStatusStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStatusStore{client: client, ttl: ttl}, nil
}

// NewRedisStatusStoreFromClient wraps an existing client.
func NewRedisStatusStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{client: client, ttl: ttl}
}

func statusKey(scanID string) string {
	return "scan:" + scanID
}

func (s *RedisStatusStore) SetStatus(ctx context.Context, status JobStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := s.client.Set(ctx, statusKey(status.ScanID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store status for %s: %w", status.ScanID, err)
	}
	return nil
}

func (s *RedisStatusStore) GetStatus(ctx context.Context, scanID string) (*JobStatus, error) {
	data, err := s.client.Get(ctx, statusKey(scanID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStatusNotFound
		}
		return nil, fmt.Errorf("load status for %s: %w", scanID, err)
	}
	var st JobStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode status for %s: %w", scanID, err)
	}
	return &st, nil
}

func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}
