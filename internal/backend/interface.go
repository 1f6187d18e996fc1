package backend

import (
	"context"

	"budgetcal/internal/propagation"
	"budgetcal/internal/store"
)

// Storage is everything the server needs from a data backend.
type Storage interface {
	store.EventStore
	store.UserDirectory
}

// Propagator is a running propagation pipeline.
type Propagator interface {
	propagation.Propagator
	Results() <-chan propagation.Result
	Stats() propagation.Stats
	Close()
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// BackendResult contains the storage instance and its lifecycle hooks
type BackendResult struct {
	Storage Storage
	Health  HealthFunc
	Cleanup CleanupFunc
}

// PropagationResult contains the propagator and its lifecycle hooks
type PropagationResult struct {
	Propagator Propagator
	Health     HealthFunc
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreatePropagation(ctx context.Context, config Config, events store.EventStore) (*PropagationResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
