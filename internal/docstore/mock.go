package docstore

import (
	"context"
	"fmt"
	"sync"
)

// MockStore is an in-memory DocumentStore for tests.
type MockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	// Err, when set, is returned by every Get.
	Err   error
	calls int
}

// NewMockStore returns an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{objects: make(map[string][]byte)}
}

// Put stores content under bucket/key.
func (m *MockStore) Put(bucket, key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = content
}

// Get returns the stored content or ErrNotFound.
func (m *MockStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return data, nil
}

// Calls returns how many times Get was invoked.
func (m *MockStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
