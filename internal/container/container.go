package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alirezacodev/card-scanner/internal/card"
	"github.com/alirezacodev/card-scanner/internal/config"
	"github.com/alirezacodev/card-scanner/internal/logger"
	"github.com/alirezacodev/card-scanner/internal/observer"
	"github.com/alirezacodev/card-scanner/internal/ocr"
	"github.com/alirezacodev/card-scanner/internal/ocr/rekognition"
	"github.com/alirezacodev/card-scanner/internal/ocr/tesseract"
	"github.com/alirezacodev/card-scanner/internal/queue"
	"github.com/alirezacodev/card-scanner/internal/repository"
	"github.com/alirezacodev/card-scanner/internal/scanner"
	"github.com/alirezacodev/card-scanner/internal/service"
	"github.com/alirezacodev/card-scanner/internal/storage"
	"github.com/alirezacodev/card-scanner/internal/transport"
	"github.com/alirezacodev/card-scanner/pkg/validation"
)

// ErrQueueDisabled is returned by Worker when REDIS_URL is not set.
var ErrQueueDisabled = errors.New("REDIS_URL is required for background scans")

// Container holds all application dependencies
type Container struct {
	config      *config.Config
	metrics     *observer.MetricsObserver
	scanService *service.VINScanService
	cardService service.CardService
	status      *queue.RedisStatusStore
	handler     http.Handler
	closers     []func() error
}

// NewContainer builds the dependency graph from cfg. Optional backends
// (Postgres, Redis, Azure, the AI provider) are only wired when configured.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{config: cfg, metrics: observer.NewMetricsObserver()}

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	adapter := ocr.NewAdapter(engine, ocr.WithLanguage(cfg.OCR.Language), ocr.WithTimeout(cfg.OCRTimeout))

	events := observer.NewEventPublisher(observer.NewLoggingObserver(logger.Logger), c.metrics)
	pipeline := scanner.New(adapter, scannerOptions(cfg), events)

	uploads := validation.NewUploadValidator(cfg.MaxUploadSize)
	deps := service.Dependencies{
		Pipeline:     pipeline,
		Fetcher:      storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxUploadSize),
		URLValidator: validation.NewURLValidator(cfg.Storage.AllowedImageHosts...),
		Uploads:      uploads,
	}

	if cfg.AzureEnabled() {
		blobs, err := storage.NewAzureStorage(cfg.Storage.AzureAccountName, cfg.Storage.AzureAccountKey, cfg.MaxUploadSize)
		if err != nil {
			return nil, err
		}
		deps.Blobs = blobs
	}

	if cfg.Storage.DatabaseURL != "" {
		repo, err := repository.NewPostgresRepository(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		deps.Repository = repo
		c.closers = append(c.closers, repo.Close)
	} else {
		deps.Repository = repository.NewMemoryRepository(1000)
	}

	if cfg.Queue.RedisURL != "" {
		status, err := queue.NewRedisStatusStore(ctx, cfg.Queue.RedisURL, cfg.Queue.StatusTTL)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.status = status
		c.closers = append(c.closers, status.Close)

		client, err := queue.NewClient(cfg.Queue.RedisURL, status, cfg.Queue.MaxRetry, cfg.Queue.TaskTimeout)
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Jobs = client
		c.closers = append(c.closers, client.Close)
	}

	c.scanService = service.NewScanService(deps)

	var extractor service.CardExtractor
	relay, err := card.NewRelayFromConfig(ctx, card.ProviderConfig{
		Provider:  cfg.AI.Provider,
		Model:     cfg.AI.Model,
		APIKey:    cfg.AI.APIKey,
		BaseURL:   cfg.AI.BaseURL,
		MaxTokens: cfg.AI.MaxTokens,
	})
	if err != nil {
		logger.WithError(err).WithField("provider", cfg.AI.Provider).Warn("Card extraction disabled")
	} else {
		extractor = relay
	}
	c.cardService = service.NewCardService(extractor, uploads)

	c.handler = transport.NewHandler(transport.Dependencies{
		Scans:   c.scanService,
		Cards:   c.cardService,
		Metrics: c.metrics,
		Config:  cfg,
	})

	logger.WithFields(map[string]interface{}{
		"ocr_engine": engine.Name(),
		"history":    historyBackend(cfg),
		"async":      c.scanService.AsyncEnabled(),
		"azure":      cfg.AzureEnabled(),
	}).Info("Container initialized")

	return c, nil
}

func newEngine(ctx context.Context, cfg *config.Config) (ocr.Engine, error) {
	switch cfg.OCR.Engine {
	case config.OCREngineRekognition:
		return rekognition.NewFromRegion(ctx, cfg.OCR.AWSRegion, float32(cfg.OCR.MinConfidence))
	default:
		tc := tesseract.DefaultConfig()
		tc.TessdataPrefix = cfg.OCR.TessdataPrefix
		tc.Whitelist = cfg.OCR.Whitelist
		return tesseract.New(tc), nil
	}
}

func scannerOptions(cfg *config.Config) scanner.Options {
	opts := scanner.DefaultOptions()
	opts.Language = cfg.OCR.Language
	opts.UseBufferPool = cfg.Scanner.UseBufferPool
	opts.MeasureSharpness = cfg.Scanner.MeasureSharpness
	if cfg.Scanner.BlurThreshold > 0 {
		opts.BlurThreshold = cfg.Scanner.BlurThreshold
	}
	return opts
}

func historyBackend(cfg *config.Config) string {
	if cfg.Storage.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}

// Worker builds the background scan consumer. It shares the scan service,
// so queued scans are recorded in the same history.
func (c *Container) Worker() (*queue.Worker, error) {
	if c.status == nil {
		return nil, ErrQueueDisabled
	}
	handler := queue.NewHandler(c.scanService, c.status)
	return queue.NewWorker(c.config.Queue.RedisURL, c.config.Queue.Concurrency, handler)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases backend connections in reverse order of creation.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
