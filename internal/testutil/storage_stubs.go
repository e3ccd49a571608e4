package testutil

import (
	"context"
	"sync"

	"buspass/internal/storage"
)

// MemoryStore is an in-memory storage.Store.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	// GetErr, when set, is returned by Get for every key.
	GetErr error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

var _ storage.Store = (*MemoryStore)(nil)

func (m *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) error {
	key, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	key, err := storage.CleanKey(key)
	if err != nil {
		return nil, err
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, err := storage.CleanKey(key)
	if err != nil {
		return false, err
	}
	_, ok := m.objects[key]
	return ok, nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// ContentType returns the content type recorded for key.
func (m *MemoryStore) ContentType(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[key]
}
