package backend

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	repo := ledger.NewRepository(store, ledger.WithLogger(f.logger))
	engine := analytics.NewEngine(repo, analytics.WithLocation(config.Location))

	b := &Backend{Store: store, Analytics: engine}
	opts := []services.Option{services.WithLogger(f.logger)}

	var manager *cache.Manager
	if config.CacheTTL > 0 && config.CacheSize > 0 {
		b.Cache = cache.NewEngine(engine, config.CacheSize, config.CacheTTL, f.logger)
		b.Analytics = b.Cache
		opts = append(opts, services.WithInvalidator(b.Cache))

		manager = cache.NewManager(f.logger)
		manager.Register(b.Cache.LRU())
		manager.StartCleanup(cleanupInterval(config.CacheTTL))
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			// Change events are best effort; the ledger works without them.
			f.logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		} else {
			b.Events = client
			opts = append(opts, services.WithPublisher(client))
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	if b.Cache != nil && b.Events != nil {
		b.Worker = worker.NewChangeWorker(b.Events, b.Cache, f.logger)
	}

	// Close order: stop the sweeper, drop the broker, then the store.
	if manager != nil {
		opts = append(opts, services.WithCloser(func() error { manager.Stop(); return nil }))
	}
	if b.Events != nil {
		opts = append(opts, services.WithCloser(b.Events.Close))
	}
	opts = append(opts, services.WithCloser(store.Close))

	b.Ledger = services.NewLedgerService(repo, opts...)
	b.Cleanup = b.Ledger.Close

	f.logger.Info("Initialized backend",
		log.FieldBackend, config.Type.String(),
		"cache_enabled", b.Cache != nil,
		"amqp_enabled", b.Events != nil)
	return b, nil
}

func (f *DefaultFactory) createStore(config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		s, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite store: %w", err)
		}
		f.logger.Info("Opened SQLite store", "db_path", config.SQLiteDBPath)
		return s, nil
	case PostgresBackend:
		s, err := storage.NewPostgresStore(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("initialize Postgres store: %w", err)
		}
		f.logger.Info("Opened Postgres store")
		return s, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory store; data is lost on exit")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return ttl
	}
	return time.Minute
}
