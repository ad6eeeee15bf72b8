package backend

import (
	"context"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/repository"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles everything a command needs to run transaction
// operations against the configured store.
type BackendResult struct {
	// Store is the raw key-value store, cached when a cache is configured.
	Store storage.KV
	// Repository runs transaction CRUD over Store.
	Repository *repository.Repository
	// Broker is nil when AMQP is not configured or unreachable.
	Broker *amqp.Client
	// Caches purges expired cache entries in the background.
	Caches  *cache.Manager
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
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
