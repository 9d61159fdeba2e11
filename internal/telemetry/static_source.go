package telemetry

import (
	"context"
	"sync"
)

// StaticSource is an in-memory Source. It backs tests and the fallback
// wiring when no transport is configured.
type StaticSource struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewStaticSource(values map[string]string) *StaticSource {
	s := &StaticSource{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *StaticSource) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

func (s *StaticSource) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

func (s *StaticSource) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}
