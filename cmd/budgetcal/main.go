package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/auth"
	"budgetcal/internal/backend"
	"budgetcal/internal/cache"
	"budgetcal/internal/calendar"
	"budgetcal/internal/cli"
	apphttp "budgetcal/internal/http"
	"budgetcal/internal/log"
	"budgetcal/internal/propagation"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	start, end, err := cfg.Months()
	if err != nil {
		logger.Error("Invalid calendar range", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	storage, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	prop, err := factory.CreatePropagation(context.Background(), backendCfg, storage.Storage)
	if err != nil {
		logger.Error("Failed to initialize propagation", log.FieldError, err, "mode", backendCfg.PropagationMode)
		closeAll(logger, storage.Cleanup)
		os.Exit(1)
	}

	authSvc, err := auth.NewService(storage.Storage, auth.Options{
		Secret: cfg.JWTSecret,
		TTL:    cfg.SessionTTL,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize authentication", log.FieldError, err)
		closeAll(logger, prop.Cleanup, storage.Cleanup)
		os.Exit(1)
	}

	cal := calendar.NewService(storage.Storage, prop.Propagator, calendar.Settings{
		Range:        calendar.MonthRange{Start: start, End: end},
		DailyLimit:   cfg.DailyLimit,
		DefaultColor: cfg.DefaultColor,
	}, logger)

	checks := map[string]apphttp.HealthCheck{}
	if storage.Health != nil {
		checks["storage"] = apphttp.HealthCheck(storage.Health)
	}
	if prop.Health != nil {
		checks["propagation"] = apphttp.HealthCheck(prop.Health)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Calendar:           cal,
		Auth:               authSvc,
		Logger:             logger,
		SessionTTL:         cfg.SessionTTL,
		SessionCacheSize:   cfg.SessionCacheSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Checks:             checks,
		PropagationStats:   prop.Propagator.Stats,
		Cleaners:           []cache.Cleaner{authSvc.Revocations()},
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		closeAll(logger, prop.Cleanup, storage.Cleanup)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		// Propagation drains before the store closes underneath it.
		closeAll(logger, prop.Cleanup, storage.Cleanup)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budgetcal server",
			"port", cfg.Port,
			"backend", backendCfg.Type,
			"propagation", backendCfg.PropagationMode,
			"range", start.String()+".."+end.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		drainResults(gctx, logger, prop.Propagator.Results())
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		if ctx.Err() == nil {
			closeAll(logger, prop.Cleanup, storage.Cleanup)
			os.Exit(1)
		}
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// drainResults logs finished propagation tasks until the stream closes.
func drainResults(ctx context.Context, logger *log.Logger, results <-chan propagation.Result) {
	logger = logger.WithComponent(log.ComponentPropagation)
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			if res.Err != nil {
				logger.Warn("Propagation result",
					log.FieldEventName, res.Task.Name,
					log.FieldUserID, res.Task.Actor.UserID,
					log.FieldError, res.Err)
				continue
			}
			logger.Debug("Propagation result",
				log.FieldEventName, res.Task.Name,
				log.FieldUpdated, res.Updated,
				log.FieldDuration, res.Duration.Milliseconds())
		}
	}
}

func closeAll(logger *log.Logger, fns ...backend.CleanupFunc) {
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(); err != nil {
			logger.Error("Cleanup failed", log.FieldOperation, log.OpShutdown, log.FieldError, err)
		}
	}
}
