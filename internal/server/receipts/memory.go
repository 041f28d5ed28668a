package receipts

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in a map. Used when no S3 endpoint is configured
// and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Object
	puts    int
}

// Object is a stored blob.
type Object struct {
	ContentType string
	Body        []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]Object{}}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{ContentType: contentType, Body: append([]byte(nil), body...)}
	m.puts++
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) URL(_ context.Context, key string) (string, error) {
	return "memory://" + key, nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Puts counts writes, so tests can assert that nothing was regenerated.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
