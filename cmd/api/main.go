package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/grouper/internal/auth"
	"github.com/MrJamesThe3rd/grouper/internal/broker"
	"github.com/MrJamesThe3rd/grouper/internal/broker/azure"
	"github.com/MrJamesThe3rd/grouper/internal/broker/memory"
	"github.com/MrJamesThe3rd/grouper/internal/category"
	categoryStore "github.com/MrJamesThe3rd/grouper/internal/category/store"
	"github.com/MrJamesThe3rd/grouper/internal/classifier"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	classifyStore "github.com/MrJamesThe3rd/grouper/internal/classify/store"
	"github.com/MrJamesThe3rd/grouper/internal/config"
	"github.com/MrJamesThe3rd/grouper/internal/database"
	grouperHttp "github.com/MrJamesThe3rd/grouper/internal/http"
	categoryHandler "github.com/MrJamesThe3rd/grouper/internal/http/category"
	importHandler "github.com/MrJamesThe3rd/grouper/internal/http/importcsv"
	matchingHandler "github.com/MrJamesThe3rd/grouper/internal/http/matching"
	ratesHandler "github.com/MrJamesThe3rd/grouper/internal/http/rates"
	reportHandler "github.com/MrJamesThe3rd/grouper/internal/http/report"
	txHandler "github.com/MrJamesThe3rd/grouper/internal/http/transaction"
	userHandler "github.com/MrJamesThe3rd/grouper/internal/http/user"
	"github.com/MrJamesThe3rd/grouper/internal/importer"
	"github.com/MrJamesThe3rd/grouper/internal/ingest"
	"github.com/MrJamesThe3rd/grouper/internal/logging"
	"github.com/MrJamesThe3rd/grouper/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/grouper/internal/matching/store"
	"github.com/MrJamesThe3rd/grouper/internal/rates"
	ratesStore "github.com/MrJamesThe3rd/grouper/internal/rates/store"
	"github.com/MrJamesThe3rd/grouper/internal/report"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	txStore "github.com/MrJamesThe3rd/grouper/internal/transaction/store"
	"github.com/MrJamesThe3rd/grouper/internal/user"
	userStore "github.com/MrJamesThe3rd/grouper/internal/user/store"
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
		logger.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	authenticator, err := auth.New(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	requests, results, err := openQueues(cfg, logger)
	if err != nil {
		return err
	}
	defer requests.Close()
	defer results.Close()

	var (
		categoryService    = category.NewService(categoryStore.New(db))
		userService        = user.NewService(userStore.New(db), categoryService)
		transactionService = transaction.NewService(txStore.New(db))
		matchingService    = matching.NewService(matchingStore.New(db))
		ratesService       = rates.NewService(ratesStore.New(db), cfg.Rates.TTL)
		importService      = importer.NewService()
		reportService      = report.NewService(transactionService, categoryService, userService, ratesService)
		tracker            = classifyStore.NewTracker(db)
	)

	applier := classify.NewBatchApplier(classifyStore.New(db), matchingService, ratesService,
		classify.WithBatchSize(cfg.Matching.ApplyBatchSize),
		classify.WithApplierLogger(logger),
	)

	dispatcher := classify.NewDispatcher(classify.NewQueuePublisher(requests), matchingService, applier,
		classify.WithTracker(tracker),
		classify.WithDispatcherLogger(logger),
	)

	completion := classify.NewCompletionHandler(matchingService, applier,
		classify.WithUpsertRetry(cfg.Matching.UpsertAttempts, cfg.Matching.UpsertDelay),
		classify.WithHandlerTracker(tracker),
		classify.WithHandlerLogger(logger),
	)

	ingestService := ingest.NewService(transactionService, categoryService, dispatcher, logger)

	router := grouperHttp.New(authenticator, cfg.CORS.AllowedOrigins, grouperHttp.Handlers{
		Users:        userHandler.NewHandler(userService, authenticator, applier),
		Categories:   categoryHandler.NewHandler(categoryService),
		Transactions: txHandler.NewHandler(transactionService),
		Import:       importHandler.NewHandler(importService, ingestService),
		Matching:     matchingHandler.NewHandler(matchingService, applier, ingestService, tracker),
		Rates:        ratesHandler.NewHandler(ratesService),
		Reports:      reportHandler.NewHandler(reportService),
	})

	var wg sync.WaitGroup

	wg.Go(func() {
		consumer := classify.NewResultConsumer(completion, logger)
		if err := consumer.Run(ctx, results); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("result consumer stopped", "error", err)
			stop()
		}
	})

	wg.Go(func() {
		classify.NewSweeper(tracker, cfg.Matching.RequestTTL, cfg.Matching.SweepInterval, logger).Run(ctx)
	})

	if cfg.Queue.Backend == "memory" {
		worker, err := newInProcessWorker(ctx, cfg, results, logger)
		if err != nil {
			stop()
			wg.Wait()

			return err
		}

		wg.Go(func() {
			if err := requests.Consume(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("in-process classifier stopped", "error", err)
			}
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	wg.Go(func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	})

	logger.Info("starting server", "port", cfg.App.Port, "queue_backend", cfg.Queue.Backend)

	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	stop()
	wg.Wait()

	return err
}

func openQueues(cfg *config.Config, logger *slog.Logger) (broker.Queue, broker.Queue, error) {
	opts := broker.Options{
		Workers:           cfg.Queue.Workers,
		BatchSize:         cfg.Queue.BatchSize,
		PollInterval:      cfg.Queue.PollInterval,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		MaxDequeueCount:   cfg.Queue.MaxDequeueCount,
	}

	if cfg.Queue.Backend == "memory" {
		return memory.New(256, opts, memory.WithLogger(logger)),
			memory.New(256, opts, memory.WithLogger(logger)),
			nil
	}

	service, err := azure.NewServiceClient(cfg.Queue.ServiceURL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating queue client: %w", err)
	}

	return azure.New(service, cfg.Queue.RequestQueue, opts, logger),
		azure.New(service, cfg.Queue.ResultQueue, opts, logger),
		nil
}

func newInProcessWorker(ctx context.Context, cfg *config.Config, results broker.Sender, logger *slog.Logger) (*classifier.Worker, error) {
	model, err := classifier.NewGemini(ctx, cfg.Classifier.APIKey, cfg.Classifier.Model)
	if err != nil {
		return nil, fmt.Errorf("creating classifier model: %w", err)
	}

	return classifier.NewWorker(classifier.New(model), results, cfg.Classifier.MaxAttempts, logger), nil
}
