package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore is an in-process ObjectStore used in development and tests.
// URLs are formed as <baseURL>/<key>.
type MemoryStore struct {
	baseURL string
	logger  *zap.Logger

	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(baseURL string, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		objects: make(map[string]Object),
	}
}

// Store saves the object, overwriting any previous version of the key
func (s *MemoryStore) Store(ctx context.Context, obj Object) (string, error) {
	if obj.Key == "" {
		return "", fmt.Errorf("object key is required")
	}

	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	obj.Data = data

	s.mu.Lock()
	s.objects[obj.Key] = obj
	s.mu.Unlock()

	s.logger.Debug("object stored",
		zap.String("key", obj.Key),
		zap.Int("bytes", len(obj.Data)))

	return s.baseURL + "/" + obj.Key, nil
}

// Fetch returns a copy of the stored object
func (s *MemoryStore) Fetch(ctx context.Context, key string) (*Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrObjectNotFound
	}

	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	obj.Data = data
	return &obj, nil
}

// Delete removes the object if present
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored objects
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
