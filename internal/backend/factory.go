package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/repository"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/postgres"
)

// cacheCleanupInterval is how often expired cache entries are purged.
const cacheCleanupInterval = time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
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

	var (
		store   storage.KV
		closers []func() error
	)

	switch config.Type {
	case SQLiteBackend:
		s, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		store, closers = s, append(closers, s.Close)
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	case PostgresBackend:
		s, err := postgres.Connect(ctx, config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		store, closers = s, append(closers, s.Close)
		f.logger.Info("Initialized Postgres backend")

	case MemoryBackend:
		store = memory.New()
		f.logger.Info("Initialized memory backend")

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	caches := cache.NewManager()
	if config.CacheSize > 0 {
		cached := storage.NewCached(store, config.CacheSize, config.CacheTTL)
		caches.Register(cached.Cleaner())
		caches.StartCleanup(cacheCleanupInterval)
		store = cached
		f.logger.Info("Enabled store cache", "size", config.CacheSize, "ttl", config.CacheTTL)
	}
	closers = append(closers, func() error { caches.Stop(); return nil })

	// AMQP is optional: a broker that cannot be reached only disables
	// notification publishing.
	var broker *amqp.Client
	if config.AMQPURL != "" {
		c, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without broker", log.FieldError, err)
		} else {
			broker = c
			closers = append(closers, c.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	repo := repository.New(store,
		repository.WithTimeout(config.StoreTimeout),
		repository.WithLogger(f.logger),
	)

	return &BackendResult{
		Store:      store,
		Repository: repo,
		Broker:     broker,
		Caches:     caches,
		Cleanup:    cleanupAll(closers),
	}, nil
}

// cleanupAll runs closers in reverse order and joins their errors.
func cleanupAll(closers []func() error) CleanupFunc {
	return func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
