package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/amqp"
	"budgetcal/internal/backend"
	"budgetcal/internal/cli"
	"budgetcal/internal/log"
	"budgetcal/internal/worker"
)

const reportInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting budgetcal-worker")

	if err := run(logger); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend == backend.MemoryBackend.String() {
		return fmt.Errorf("the worker needs a shared SQL backend, got %q", cfg.DataBackend)
	}
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required for the worker")
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend configuration: %w", err)
	}
	storage, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	defer func() {
		if storage.Cleanup == nil {
			return
		}
		if err := storage.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	w := worker.NewPropagationWorker(storage.Storage, logger)
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeColorPropagation(gctx, w.Handle)
	})
	g.Go(func() error {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				handled, failed := w.Counts()
				logger.Info("Propagation worker stats", "handled", handled, "failed", failed)
			}
		}
	})

	err = g.Wait()
	handled, failed := w.Counts()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("message consumption (handled %d, failed %d): %w", handled, failed, err)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", "handled", handled, "failed", failed)
	return nil
}
