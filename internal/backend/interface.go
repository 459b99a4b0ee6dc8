// Package backend assembles the storage, ledger, analytics and messaging
// pieces selected by configuration.
package backend

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend is a fully wired application core.
type Backend struct {
	Store     storage.Store
	Ledger    *services.LedgerService
	Analytics cache.Aggregator

	// Cache is nil when caching is disabled.
	Cache *cache.Engine
	// Events is nil when AMQP is disabled or unreachable at startup.
	Events *amqp.Client
	// Worker is nil unless both Cache and Events are set.
	Worker *worker.ChangeWorker

	Cleanup CleanupFunc
}

// Ready reports whether the store answers.
func (b *Backend) Ready(ctx context.Context) error {
	if p, ok := b.Store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	CacheTTL  time.Duration
	CacheSize int

	Location *time.Location
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
