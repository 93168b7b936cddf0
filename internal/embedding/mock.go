package embedding

import (
	"context"
	"math"
	"sync"

	"github.com/hyperjump/ingestor/pkg/utils"
)

// MockService is a deterministic Service for tests. With Vector set it always returns a copy
// of Vector; otherwise it derives a unit vector of the given dimensions from the text hash.
type MockService struct {
	mu         sync.Mutex
	dimensions int
	Vector     []float32
	Err        error
	calls      []MockCall
}

// MockCall records the arguments of one Embed call.
type MockCall struct {
	Text, Model, Task string
}

// NewMockService returns a hash-based mock of the given dimensions.
func NewMockService(dimensions int) *MockService {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockService{dimensions: dimensions}
}

// NewFixedMockService returns a mock that always answers vec.
func NewFixedMockService(vec []float32) *MockService {
	return &MockService{dimensions: len(vec), Vector: vec}
}

// Embed implements Service.
func (m *MockService) Embed(ctx context.Context, text, modelID, taskType string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Text: text, Model: modelID, Task: taskType})
	err, fixed := m.Err, m.Vector
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fixed != nil {
		return append([]float32(nil), fixed...), nil
	}
	h := hashToken(text)
	emb := make([]float32, m.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h%100003)*float64(i+1))*0.1 + 0.01)
	}
	utils.UnitVector(emb)
	return emb, nil
}

// Calls returns the recorded calls.
func (m *MockService) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
