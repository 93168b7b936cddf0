package embedding

import (
	"container/list"
	"context"
	"sync"
)

// cacheKey identifies one embedding request. The same text embeds differently per model and task.
type cacheKey struct {
	model    string
	taskType string
	text     string
}

type cached struct {
	key    cacheKey
	vector []float32
}

// CachedService serves repeated (model, task type, text) requests from a bounded LRU.
type CachedService struct {
	inner    Service
	capacity int

	mu      sync.Mutex
	order   *list.List
	entries map[cacheKey]*list.Element
}

// NewCachedService wraps inner. A non-positive capacity disables caching.
func NewCachedService(inner Service, capacity int) Service {
	if capacity <= 0 {
		return inner
	}
	return &CachedService{
		inner:    inner,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[cacheKey]*list.Element, capacity),
	}
}

// Embed implements Service. Failed and empty results are not cached.
func (s *CachedService) Embed(ctx context.Context, text, modelID, taskType string) ([]float32, error) {
	key := cacheKey{model: modelID, taskType: taskType, text: text}
	if v, ok := s.lookup(key); ok {
		return v, nil
	}
	v, err := s.inner.Embed(ctx, text, modelID, taskType)
	if err != nil {
		return nil, err
	}
	if len(v) > 0 {
		s.remember(key, v)
	}
	return v, nil
}

// Len returns the number of cached vectors.
func (s *CachedService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// lookup returns a copy so callers can't mutate the cached vector.
func (s *CachedService) lookup(key cacheKey) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(elem)
	return append([]float32(nil), elem.Value.(*cached).vector...), true
}

func (s *CachedService) remember(key cacheKey, v []float32) {
	v = append([]float32(nil), v...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.entries[key]; ok {
		elem.Value.(*cached).vector = v
		s.order.MoveToFront(elem)
		return
	}
	s.entries[key] = s.order.PushFront(&cached{key: key, vector: v})
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*cached).key)
	}
}
