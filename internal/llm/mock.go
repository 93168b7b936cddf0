package llm

import (
	"context"
	"sync"
)

// MockCompletion returns a fixed response and records prompts.
type MockCompletion struct {
	mu       sync.Mutex
	Response string
	Err      error
	prompts  []string
}

// NewMockCompletion returns a mock answering response.
func NewMockCompletion(response string) *MockCompletion {
	return &MockCompletion{Response: response}
}

// Complete records prompt and returns the configured response or error.
func (m *MockCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Prompts returns every prompt received so far.
func (m *MockCompletion) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
