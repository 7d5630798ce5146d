// Command matcher is the remote classifier: it reads match requests, asks
// the model for label to category assignments and publishes the results.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/grouper/internal/broker"
	"github.com/MrJamesThe3rd/grouper/internal/broker/azure"
	"github.com/MrJamesThe3rd/grouper/internal/classifier"
	"github.com/MrJamesThe3rd/grouper/internal/config"
	"github.com/MrJamesThe3rd/grouper/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.FromStrings(cfg.Log.Level, cfg.Log.Format))

	if err := run(cfg, logger); err != nil {
		logger.Error("matcher stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Queue.Backend != "azure" {
		return fmt.Errorf("matcher needs the azure queue backend, got %q", cfg.Queue.Backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := classifier.NewGemini(ctx, cfg.Classifier.APIKey, cfg.Classifier.Model)
	if err != nil {
		return fmt.Errorf("creating classifier model: %w", err)
	}

	service, err := azure.NewServiceClient(cfg.Queue.ServiceURL)
	if err != nil {
		return fmt.Errorf("creating queue client: %w", err)
	}

	opts := broker.Options{
		Workers:           cfg.Queue.Workers,
		BatchSize:         cfg.Queue.BatchSize,
		PollInterval:      cfg.Queue.PollInterval,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		MaxDequeueCount:   cfg.Queue.MaxDequeueCount,
	}

	requests := azure.New(service, cfg.Queue.RequestQueue, opts, logger)
	defer requests.Close()

	results := azure.New(service, cfg.Queue.ResultQueue, opts, logger)
	defer results.Close()

	worker := classifier.NewWorker(classifier.New(model), results, cfg.Classifier.MaxAttempts, logger)

	logger.Info("matcher started", "model", cfg.Classifier.Model, "queue", cfg.Queue.RequestQueue)

	if err := requests.Consume(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
