package main

import (
	"context"
	"time"

	"github.com/alirezacodev/card-scanner/internal/config"
	"github.com/alirezacodev/card-scanner/internal/container"
	"github.com/alirezacodev/card-scanner/internal/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	c, err := container.NewContainer(startCtx, cfg)
	cancelStart()
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize container")
	}
	defer c.Close()

	worker, err := c.Worker()
	if err != nil {
		logger.WithError(err).Fatal("Failed to create worker")
	}

	logger.WithFields(logrus.Fields{
		"concurrency": cfg.Queue.Concurrency,
		"ocr_engine":  cfg.OCR.Engine,
	}).Info("Starting scan worker")

	// Run returns after SIGINT or SIGTERM once in-flight scans finish.
	if err := worker.Run(); err != nil {
		logger.WithError(err).Error("Worker stopped")
	}
	logger.Info("Worker exited")
}
