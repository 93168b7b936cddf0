// Package vector stores document embeddings with metadata in named collections.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested record or collection does not exist.
	ErrNotFound = errors.New("vector: not found")

	// ErrDimensionMismatch indicates a vector whose length differs from the collection's.
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")
)

// Record is one entry of a collection. IDs are unique within a collection.
type Record struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// Match is a query hit. Distance is cosine distance: 0 for identical direction.
type Match struct {
	Record
	Distance float64 `json:"distance"`
}

// Database is a connection to a vector store.
type Database interface {
	// Heartbeat checks that the store is reachable.
	Heartbeat(ctx context.Context) error
	// GetOrCreateCollection returns the named collection, creating it when absent.
	GetOrCreateCollection(ctx context.Context, name string) (Collection, error)
	Close() error
}

// Collection holds records for one logical index.
type Collection interface {
	Name() string
	// Upsert writes the record for id, replacing any existing embedding and metadata.
	Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error
	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	Count(ctx context.Context) (int, error)
	// Query returns up to k records nearest to embedding, closest first.
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
