package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryDatabase keeps collections in process memory. Contents are lost on exit.
type MemoryDatabase struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

// NewMemoryDatabase returns an empty in-memory store.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{collections: make(map[string]*MemoryCollection)}
}

// Heartbeat always succeeds.
func (d *MemoryDatabase) Heartbeat(ctx context.Context) error { return ctx.Err() }

// GetOrCreateCollection implements Database.
func (d *MemoryDatabase) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.collections[name]; ok {
		return c, nil
	}
	c := &MemoryCollection{name: name, records: make(map[string]Record)}
	d.collections[name] = c
	return c, nil
}

// Close is a no-op.
func (d *MemoryDatabase) Close() error { return nil }

// MemoryCollection is a brute-force collection guarded by a mutex.
type MemoryCollection struct {
	name       string
	mu         sync.RWMutex
	dimensions int
	records    map[string]Record
}

// Name implements Collection.
func (c *MemoryCollection) Name() string { return c.name }

// Upsert implements Collection. The first record fixes the collection's dimension.
func (c *MemoryCollection) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	if id == "" {
		return fmt.Errorf("record id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimensions == 0 {
		c.dimensions = len(embedding)
	} else if len(embedding) != c.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(embedding), c.dimensions)
	}
	c.records[id] = Record{
		ID:        id,
		Embedding: append([]float32(nil), embedding...),
		Metadata:  copyMetadata(metadata),
	}
	return nil
}

// Get implements Collection.
func (c *MemoryCollection) Get(ctx context.Context, id string) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	if !ok {
		return nil, fmt.Errorf("record %q: %w", id, ErrNotFound)
	}
	r.Embedding = append([]float32(nil), r.Embedding...)
	r.Metadata = copyMetadata(r.Metadata)
	return &r, nil
}

// Count implements Collection.
func (c *MemoryCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

// Query implements Collection.
func (c *MemoryCollection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dimensions != 0 && len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(embedding), c.dimensions)
	}
	ids := make([]string, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	records := make([]Record, len(ids))
	for i, id := range ids {
		records[i] = c.records[id]
	}
	return nearest(records, embedding, k), nil
}
