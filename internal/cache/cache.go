// Package cache holds computed views so repeated dashboard reads skip the store.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the surface services depend on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string) int
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)

type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps expired entries out of registered caches until its context
// is cancelled.
type Manager struct {
	caches []Cleaner
	done   chan struct{}
}

func NewManager(caches ...Cleaner) *Manager {
	return &Manager{caches: caches, done: make(chan struct{})}
}

// Sweep cleans every cache once and returns the total removed.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Start launches the sweeper. Wait blocks until it exits.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					slog.DebugContext(ctx, "Cache sweep", "removed", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) Wait() {
	<-m.done
}
