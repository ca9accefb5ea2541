// Package backend assembles the store, notifier and report exporter selected
// by configuration.
package backend

import (
	"context"

	"pocketwise/internal/ports"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult holds the collaborators the services are built from.
type BackendResult struct {
	Store    ports.Store
	Notifier ports.Notifier
	// Exporter is nil when no report destination is configured.
	Exporter ports.ReportExporter
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
