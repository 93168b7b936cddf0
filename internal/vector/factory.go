package vector

import (
	"context"
	"fmt"
)

// Backend names a Database implementation.
type Backend string

const (
	// BackendChroma is a remote Chroma server.
	BackendChroma Backend = "chroma"
	// BackendMemory keeps records in process memory.
	BackendMemory Backend = "memory"
	// BackendSQLite persists records in a local SQLite file.
	BackendSQLite Backend = "sqlite"
	// BackendPGVector stores records in PostgreSQL with pgvector.
	BackendPGVector Backend = "pgvector"
)

// Config selects and locates a backend.
type Config struct {
	Backend string
	// URL is the Chroma server URL.
	URL string
	// Path is the SQLite file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// Open connects to the backend named by cfg.Backend. Supported: chroma (default), memory, sqlite, pgvector.
func Open(ctx context.Context, cfg Config, opts ...Option) (Database, error) {
	switch Backend(cfg.Backend) {
	case BackendChroma, "":
		return NewChromaDatabase(cfg.URL, opts...)
	case BackendMemory:
		return NewMemoryDatabase(), nil
	case BackendSQLite:
		return NewSQLiteDatabase(cfg.Path, opts...)
	case BackendPGVector:
		return NewPGVectorDatabase(ctx, cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: chroma, memory, sqlite, pgvector)", cfg.Backend)
	}
}
