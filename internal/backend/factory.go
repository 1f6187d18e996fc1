package backend

import (
	"context"
	"fmt"

	"budgetcal/internal/amqp"
	"budgetcal/internal/config"
	"budgetcal/internal/log"
	"budgetcal/internal/propagation"
	"budgetcal/internal/storage"
	"budgetcal/internal/store"
	"budgetcal/internal/store/memory"
)

const resultsBuffer = 64

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLBackend(ctx, storage.DialectSQLite, config.SQLiteDBPath, func() (*storage.Repository, error) {
			return storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		})
	case PostgresBackend:
		return f.createSQLBackend(ctx, storage.DialectPostgres, config.DatabaseURL, func() (*storage.Repository, error) {
			return storage.NewPostgresRepository(config.DatabaseURL, f.logger)
		})
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, dialect storage.Dialect, dsn string, open func() (*storage.Repository, error)) (*BackendResult, error) {
	if err := storage.RunMigrations(dialect, dsn); err != nil {
		return nil, fmt.Errorf("failed to migrate %s database: %w", dialect, err)
	}
	repo, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", dialect, err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", dialect, err)
	}

	f.logger.Info("Initialized SQL backend", "dialect", string(dialect))

	return &BackendResult{
		Storage: repo,
		Health:  repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	s, err := memory.NewFromFile(config.UsersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "users_file", config.UsersFile)

	return &BackendResult{
		Storage: s,
		Health:  func(context.Context) error { return nil },
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// CreatePropagation implements Factory.CreatePropagation. Local mode recolors
// through events in-process; amqp mode publishes to the worker.
func (f *DefaultFactory) CreatePropagation(_ context.Context, cfg Config, events store.EventStore) (*PropagationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.PropagationMode != config.PropagationAMQP {
		local := propagation.NewLocal(events, f.logger, resultsBuffer)
		f.logger.Info("Initialized local propagation")
		return &PropagationResult{
			Propagator: local,
			Health:     func(context.Context) error { return nil },
			Cleanup: func() error {
				local.Close()
				return nil
			},
		}, nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	queue := propagation.NewQueue(client, f.logger, resultsBuffer)

	f.logger.Info("Initialized AMQP propagation",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	return &PropagationResult{
		Propagator: queue,
		Health:     func(context.Context) error { return client.Ping() },
		Cleanup: func() error {
			queue.Close()
			return client.Close()
		},
	}, nil
}
