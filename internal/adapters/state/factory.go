package state

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flowmetric/assetpulse/internal/core"
)

// NewStore creates a run store for the given backend ("sqlite" or "json") at
// the specified path.
func NewStore(backend, path string) (core.Store, error) {
	switch backend {
	case "", "sqlite":
		// Ensure path has .db extension for SQLite
		if !strings.HasSuffix(path, ".db") {
			path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
		}
		return NewSQLiteStore(path)
	case "json":
		if !strings.HasSuffix(path, ".json") {
			path = strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
		}
		return NewJSONStore(path), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", backend)
	}
}

// Closeable is an optional interface for stores that need cleanup.
type Closeable interface {
	Close() error
}

// CloseStore safely closes a store if it implements Closeable.
func CloseStore(s core.Store) error {
	if closeable, ok := s.(Closeable); ok {
		return closeable.Close()
	}
	return nil
}
