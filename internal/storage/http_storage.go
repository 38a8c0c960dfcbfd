package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Payload is an undecoded image and the media type reported or sniffed for it.
type Payload struct {
	Data        []byte
	ContentType string
}

// ImageFetcher downloads images by URL.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*Payload, error)
}

// HTTPImageFetcher downloads with bounded retries.
type HTTPImageFetcher struct {
	client      *http.Client
	maxBytes    int64
	maxAttempts int
	backoff     time.Duration
}

// FetcherOption configures an HTTPImageFetcher.
type FetcherOption func(*HTTPImageFetcher)

// WithBackoff sets the base delay between attempts. Attempt n waits n*d.
func WithBackoff(d time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) { h.backoff = d }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(h *HTTPImageFetcher) { h.client = c }
}

// NewHTTPImageFetcher creates a fetcher that refuses bodies over maxBytes.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64, opts ...FetcherOption) *HTTPImageFetcher {
	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes:    maxBytes,
		maxAttempts: 3,
		backoff:     time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchImage retries network errors and 5xx responses; 4xx responses fail immediately.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*Payload, error) {
	var lastErr error

	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		payload, retryable, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if !retryable || attempt == h.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * h.backoff):
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", h.maxAttempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) (*Payload, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, */*")
	req.Header.Set("User-Agent", "card-scanner/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if h.maxBytes > 0 && resp.ContentLength > h.maxBytes {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}
	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, false, err
	}

	return &Payload{Data: data, ContentType: DetectContentType(data, resp.Header.Get("Content-Type"))}, false, nil
}

// readLimited reads r fully, failing with ErrTooLarge past limit. limit <= 0 disables the check.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
